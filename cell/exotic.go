package cell

import "fmt"

// NewPrunedBranch replaces c by a level-1 pruned branch carrying its level 0
// hash and depth. Only level 0 cells can be pruned.
func NewPrunedBranch(c *Cell) (*Cell, error) {
	if c.Level() != 0 {
		return nil, fmt.Errorf("cell: pruning a level %d cell is not supported", c.Level())
	}
	h := c.Hash(0)
	d := c.Depth(0)
	return BeginCell().
		StoreUint(uint64(PrunedBranch), 8).
		StoreUint(1, 8).
		StoreBytes(h[:]).
		StoreUint(uint64(d), 16).
		EndExotic()
}

// NewMerkleProof wraps root in a Merkle proof cell declaring its level 0 hash
// and depth.
func NewMerkleProof(root *Cell) (*Cell, error) {
	h := root.Hash(0)
	d := root.Depth(0)
	return BeginCell().
		StoreUint(uint64(MerkleProof), 8).
		StoreBytes(h[:]).
		StoreUint(uint64(d), 16).
		StoreRef(root).
		EndExotic()
}

func NewMerkleUpdate(from, to *Cell) (*Cell, error) {
	fh, th := from.Hash(0), to.Hash(0)
	return BeginCell().
		StoreUint(uint64(MerkleUpdate), 8).
		StoreBytes(fh[:]).
		StoreBytes(th[:]).
		StoreUint(uint64(from.Depth(0)), 16).
		StoreUint(uint64(to.Depth(0)), 16).
		StoreRef(from).
		StoreRef(to).
		EndExotic()
}

// NewLibrary builds a library reference cell for the given code hash.
func NewLibrary(hash [32]byte) (*Cell, error) {
	return BeginCell().
		StoreUint(uint64(Library), 8).
		StoreBytes(hash[:]).
		EndExotic()
}
