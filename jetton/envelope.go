package jetton

import (
	"fmt"

	"github.com/ton-community/mintless-jetton/cell"
)

// Envelope is the structural classification of an untrusted proof cell. The
// set of implementations is closed.
type Envelope interface {
	envelope()
}

type OrdinaryEnvelope struct {
	Cell *cell.Cell
}

type PrunedBranchEnvelope struct {
	Mask  uint8
	Hash  [32]byte
	Depth uint16
}

type LibraryEnvelope struct {
	Hash [32]byte
}

type MerkleProofEnvelope struct {
	Hash  [32]byte
	Depth uint16
	Child *cell.Cell
}

type MerkleUpdateEnvelope struct {
	FromHash, ToHash   [32]byte
	FromDepth, ToDepth uint16
	FromChild, ToChild *cell.Cell
}

func (OrdinaryEnvelope) envelope()     {}
func (PrunedBranchEnvelope) envelope() {}
func (LibraryEnvelope) envelope()      {}
func (MerkleProofEnvelope) envelope()  {}
func (MerkleUpdateEnvelope) envelope() {}

const (
	merkleProofBits  = 8 + 256 + 16
	libraryBits      = 8 + 256
	merkleUpdateBits = 8 + 2*256 + 2*16
)

// ParseEnvelope reads the exotic discriminant first and the variant fields
// second. It does not check any declared hash.
func ParseEnvelope(c *cell.Cell) (Envelope, error) {
	if c == nil {
		return nil, walletErr(ERR_NOT_EXOTIC, "missing proof cell")
	}
	if !c.IsExotic() {
		return OrdinaryEnvelope{Cell: c}, nil
	}
	s := c.BeginParse()
	tag, err := s.LoadUint(8)
	if err != nil {
		return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
	}
	switch cell.Type(tag) {
	case cell.MerkleProof:
		if c.BitLen() != merkleProofBits || c.RefsCount() != 1 {
			return nil, walletErr(ERR_NOT_MERKLE_PROOF,
				fmt.Sprintf("malformed merkle proof: %d bits, %d refs", c.BitLen(), c.RefsCount()))
		}
		var e MerkleProofEnvelope
		if err := loadHash(s, &e.Hash); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if e.Depth, err = loadDepth(s); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if e.Child, err = s.LoadRef(); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		return e, nil

	case cell.PrunedBranch:
		mask, err := s.LoadUint(8)
		if err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		e := PrunedBranchEnvelope{Mask: uint8(mask)}
		if err := loadHash(s, &e.Hash); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		// depths follow all stored hashes
		stored := c.LevelMask().HashIndex()
		if err := s.Skip((stored - 1) * 256); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if e.Depth, err = loadDepth(s); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		return e, nil

	case cell.Library:
		if c.BitLen() != libraryBits || c.RefsCount() != 0 {
			return nil, walletErr(ERR_NOT_MERKLE_PROOF, "malformed library cell")
		}
		var e LibraryEnvelope
		if err := loadHash(s, &e.Hash); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		return e, nil

	case cell.MerkleUpdate:
		if c.BitLen() != merkleUpdateBits || c.RefsCount() != 2 {
			return nil, walletErr(ERR_NOT_MERKLE_PROOF, "malformed merkle update")
		}
		var e MerkleUpdateEnvelope
		if err := loadHash(s, &e.FromHash); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if err := loadHash(s, &e.ToHash); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if e.FromDepth, err = loadDepth(s); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if e.ToDepth, err = loadDepth(s); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if e.FromChild, err = s.LoadRef(); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		if e.ToChild, err = s.LoadRef(); err != nil {
			return nil, wrapErr(ERR_NOT_MERKLE_PROOF, err)
		}
		return e, nil
	}
	return nil, walletErr(ERR_NOT_MERKLE_PROOF, fmt.Sprintf("unknown exotic tag %d", tag))
}

func loadHash(s *cell.Slice, dst *[32]byte) error {
	b, err := s.LoadBytes(32)
	if err != nil {
		return err
	}
	copy(dst[:], b)
	return nil
}

func loadDepth(s *cell.Slice) (uint16, error) {
	v, err := s.LoadUint(16)
	// #nosec G115 -- 16-bit field.
	return uint16(v), err
}

// VerifyClaimProof accepts only a Merkle proof whose declared hash and depth
// match its child as recomputed here and whose hash equals root. It returns
// the child as the dictionary root.
func VerifyClaimProof(proof *cell.Cell, root [32]byte) (*cell.Cell, error) {
	env, err := ParseEnvelope(proof)
	if err != nil {
		return nil, err
	}
	switch e := env.(type) {
	case OrdinaryEnvelope:
		return nil, walletErr(ERR_NOT_EXOTIC, "proof is an ordinary cell")
	case PrunedBranchEnvelope:
		return nil, walletErr(ERR_NOT_MERKLE_PROOF, "pruned branch cannot carry a claim")
	case LibraryEnvelope:
		return nil, walletErr(ERR_NOT_MERKLE_PROOF, "library cell cannot carry a claim")
	case MerkleUpdateEnvelope:
		return nil, walletErr(ERR_NOT_MERKLE_PROOF, "merkle update cannot carry a claim")
	case MerkleProofEnvelope:
		if e.Child.Hash(0) != e.Hash {
			return nil, walletErr(ERR_WRONG_HASH, "declared hash does not match the proof body")
		}
		if e.Child.Depth(0) != e.Depth {
			return nil, walletErr(ERR_WRONG_HASH,
				fmt.Sprintf("declared depth %d, proof body depth %d", e.Depth, e.Child.Depth(0)))
		}
		if e.Hash != root {
			return nil, walletErr(ERR_WRONG_HASH, "proof is not rooted at the merkle root")
		}
		return e.Child, nil
	default:
		return nil, walletErr(ERR_NOT_MERKLE_PROOF, fmt.Sprintf("unexpected envelope %T", env))
	}
}
