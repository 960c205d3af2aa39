package cell

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"

	sha256simd "github.com/minio/sha256-simd"
)

const (
	MaxBits  = 1023
	MaxRefs  = 4
	MaxLevel = 3
	MaxDepth = 1024
)

var (
	ErrTooManyBits   = errors.New("cell: bit length exceeds 1023")
	ErrTooManyRefs   = errors.New("cell: more than 4 refs")
	ErrInvalidExotic = errors.New("cell: invalid exotic cell")
	ErrDepthLimit    = errors.New("cell: depth limit exceeded")
)

// Type is the exotic type tag stored in the first data byte of an exotic cell.
// Ordinary cells carry no tag.
type Type uint8

const (
	Ordinary     Type = 0
	PrunedBranch Type = 1
	Library      Type = 2
	MerkleProof  Type = 3
	MerkleUpdate Type = 4
)

func (t Type) String() string {
	switch t {
	case Ordinary:
		return "ordinary"
	case PrunedBranch:
		return "pruned_branch"
	case Library:
		return "library"
	case MerkleProof:
		return "merkle_proof"
	case MerkleUpdate:
		return "merkle_update"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// LevelMask holds one bit per Merkle level (1..3) at which the cell has a distinct hash.
type LevelMask uint8

func (m LevelMask) Level() int { return bits.Len8(uint8(m)) }

func (m LevelMask) HashIndex() int { return bits.OnesCount8(uint8(m)) }

func (m LevelMask) HashCount() int { return m.HashIndex() + 1 }

// Apply truncates the mask to the levels strictly below level.
func (m LevelMask) Apply(level int) LevelMask {
	if level >= 8 {
		return m
	}
	return m & LevelMask((1<<uint(level))-1)
}

func (m LevelMask) IsSignificant(level int) bool {
	return level == 0 || (m>>uint(level-1))&1 != 0
}

// Cell is an immutable node of at most 1023 bits and 4 references. Hashes
// and depths for every level are computed once in New.
type Cell struct {
	typ    Type
	data   []byte
	bitLen int
	refs   []*Cell
	mask   LevelMask

	hashes [MaxLevel + 1][32]byte
	depths [MaxLevel + 1]uint16
}

// New builds a cell from raw bits. For exotic cells the first data byte is the
// type tag. Exotic payloads are checked only as far as needed to derive the
// level mask; declared hashes inside Merkle cells are not verified here.
func New(exotic bool, data []byte, bitLen int, refs []*Cell) (*Cell, error) {
	if bitLen < 0 || bitLen > MaxBits {
		return nil, ErrTooManyBits
	}
	if len(data)*8 < bitLen {
		return nil, fmt.Errorf("cell: %d data bytes cannot hold %d bits", len(data), bitLen)
	}
	if len(refs) > MaxRefs {
		return nil, ErrTooManyRefs
	}
	for i, r := range refs {
		if r == nil {
			return nil, fmt.Errorf("cell: nil ref %d", i)
		}
	}
	c := &Cell{
		data:   make([]byte, (bitLen+7)/8),
		bitLen: bitLen,
		refs:   append([]*Cell(nil), refs...),
	}
	copy(c.data, data)
	if rem := bitLen % 8; rem != 0 {
		c.data[len(c.data)-1] &= 0xff << uint(8-rem)
	}
	if exotic {
		if bitLen < 8 {
			return nil, fmt.Errorf("%w: missing type byte", ErrInvalidExotic)
		}
		switch t := Type(c.data[0]); t {
		case PrunedBranch, Library, MerkleProof, MerkleUpdate:
			c.typ = t
		default:
			return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidExotic, c.data[0])
		}
	}
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cell) finalize() error {
	switch c.typ {
	case PrunedBranch:
		m, err := c.prunedMask()
		if err != nil {
			return err
		}
		c.mask = m
	case Library:
		c.mask = 0
	case MerkleProof, MerkleUpdate:
		c.mask = c.childMask() >> 1
	default:
		c.mask = c.childMask()
	}

	total := c.mask.HashCount()
	computed := total
	if c.typ == PrunedBranch {
		computed = 1
	}
	offset := total - computed

	var hashes [MaxLevel + 1][32]byte
	var depths [MaxLevel + 1]uint16
	hashI := 0
	for level := 0; level <= c.mask.Level(); level++ {
		if !c.mask.IsSignificant(level) {
			continue
		}
		if hashI < offset {
			hashI++
			continue
		}
		var prev []byte
		if hashI != offset {
			prev = hashes[hashI-offset-1][:]
		}
		depth, err := c.childDepth(level)
		if err != nil {
			return err
		}
		hashes[hashI-offset] = sha256simd.Sum256(c.repr(level, prev))
		depths[hashI-offset] = depth
		hashI++
	}

	top := c.mask.HashIndex()
	for level := 0; level <= MaxLevel; level++ {
		idx := c.mask.Apply(level).HashIndex()
		if c.typ == PrunedBranch {
			if idx != top {
				c.hashes[level] = c.prunedHash(idx)
				c.depths[level] = c.prunedDepth(idx)
			} else {
				c.hashes[level] = hashes[0]
				c.depths[level] = depths[0]
			}
			continue
		}
		c.hashes[level] = hashes[idx]
		c.depths[level] = depths[idx]
	}
	return nil
}

func (c *Cell) childMask() LevelMask {
	var m LevelMask
	for _, r := range c.refs {
		m |= r.mask
	}
	return m
}

func (c *Cell) childLevel(level int) int {
	if c.typ == MerkleProof || c.typ == MerkleUpdate {
		return level + 1
	}
	return level
}

func (c *Cell) childDepth(level int) (uint16, error) {
	if len(c.refs) == 0 {
		return 0, nil
	}
	cl := c.childLevel(level)
	var d uint16
	for _, r := range c.refs {
		if rd := r.Depth(cl); rd > d {
			d = rd
		}
	}
	d++
	if d > MaxDepth {
		return 0, ErrDepthLimit
	}
	return d, nil
}

// repr assembles the representation bytes hashed at level. prev is the hash
// of the previous significant level, nil on the first one.
func (c *Cell) repr(level int, prev []byte) []byte {
	buf := make([]byte, 0, 2+len(c.data)+len(c.refs)*34)
	buf = append(buf, c.refsDescriptor(c.mask.Apply(level)), c.bitsDescriptor())
	if prev == nil {
		buf = append(buf, c.paddedData()...)
	} else {
		buf = append(buf, prev...)
	}
	cl := c.childLevel(level)
	for _, r := range c.refs {
		d := r.Depth(cl)
		buf = append(buf, byte(d>>8), byte(d))
	}
	for _, r := range c.refs {
		h := r.Hash(cl)
		buf = append(buf, h[:]...)
	}
	return buf
}

func (c *Cell) refsDescriptor(m LevelMask) byte {
	// #nosec G115 -- refs <= 4 and mask <= 7.
	d := byte(len(c.refs)) + byte(m)<<5
	if c.typ != Ordinary {
		d += 8
	}
	return d
}

func (c *Cell) bitsDescriptor() byte {
	// #nosec G115 -- bitLen <= 1023 so the sum is at most 255.
	return byte(c.bitLen/8 + (c.bitLen+7)/8)
}

// paddedData returns the data with the completion tag appended when the bit
// length is not a multiple of 8.
func (c *Cell) paddedData() []byte {
	out := append([]byte(nil), c.data...)
	if rem := c.bitLen % 8; rem != 0 {
		out[len(out)-1] |= 1 << uint(7-rem)
	}
	return out
}

func (c *Cell) prunedMask() (LevelMask, error) {
	if len(c.refs) != 0 {
		return 0, fmt.Errorf("%w: pruned branch with refs", ErrInvalidExotic)
	}
	if c.bitLen < 16 {
		return 0, fmt.Errorf("%w: pruned branch too short", ErrInvalidExotic)
	}
	m := LevelMask(c.data[1])
	if m == 0 || m > 7 {
		return 0, fmt.Errorf("%w: pruned branch level mask %d", ErrInvalidExotic, m)
	}
	if c.bitLen != 16+m.HashIndex()*(256+16) {
		return 0, fmt.Errorf("%w: pruned branch bit length %d", ErrInvalidExotic, c.bitLen)
	}
	return m, nil
}

func (c *Cell) prunedHash(i int) [32]byte {
	var h [32]byte
	copy(h[:], c.data[2+i*32:])
	return h
}

func (c *Cell) prunedDepth(i int) uint16 {
	off := 2 + c.mask.HashIndex()*32 + i*2
	return uint16(c.data[off])<<8 | uint16(c.data[off+1])
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// Hash returns the hash of the cell seen at the given Merkle level. Hash(MaxLevel)
// is the representation hash.
func (c *Cell) Hash(level int) [32]byte { return c.hashes[clampLevel(level)] }

func (c *Cell) Depth(level int) uint16 { return c.depths[clampLevel(level)] }

func (c *Cell) Type() Type { return c.typ }

func (c *Cell) IsExotic() bool { return c.typ != Ordinary }

func (c *Cell) LevelMask() LevelMask { return c.mask }

func (c *Cell) Level() int { return c.mask.Level() }

func (c *Cell) BitLen() int { return c.bitLen }

// Data returns a copy of the data bytes with unused trailing bits cleared.
func (c *Cell) Data() []byte { return append([]byte(nil), c.data...) }

func (c *Cell) RefsCount() int { return len(c.refs) }

func (c *Cell) Ref(i int) (*Cell, error) {
	if i < 0 || i >= len(c.refs) {
		return nil, fmt.Errorf("cell: ref %d out of range (%d refs)", i, len(c.refs))
	}
	return c.refs[i], nil
}

func (c *Cell) BeginParse() *Slice {
	return &Slice{data: c.data, bitLen: c.bitLen, refs: c.refs}
}

// Equal compares representation hashes.
func (c *Cell) Equal(o *Cell) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.Hash(MaxLevel) == o.Hash(MaxLevel)
}

func (c *Cell) String() string {
	h := c.Hash(MaxLevel)
	return fmt.Sprintf("%s[%d bits, %d refs, %s]", c.typ, c.bitLen, len(c.refs), hex.EncodeToString(h[:8]))
}
