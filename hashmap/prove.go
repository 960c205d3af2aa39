package hashmap

import (
	"fmt"

	"github.com/ton-community/mintless-jetton/cell"
)

// Prove returns a Merkle proof over root that keeps every cell on the path
// of key and replaces all other subtrees by pruned branches. The proof also
// works for absent keys: the diverging edge is kept with its children pruned.
func Prove(root *cell.Cell, key [32]byte) (*cell.Cell, error) {
	if root == nil {
		return nil, ErrEmpty
	}
	kept, err := provePath(root, &key, 0)
	if err != nil {
		return nil, err
	}
	return cell.NewMerkleProof(kept)
}

func provePath(c *cell.Cell, key *[32]byte, pos int) (*cell.Cell, error) {
	if c.IsExotic() {
		return nil, fmt.Errorf("%w: %s cell at key bit %d", ErrMalformed, c.Type(), pos)
	}
	s := c.BeginParse()
	label, n, err := loadLabel(s, KeyBits-pos)
	if err != nil {
		return nil, fmt.Errorf("%w: label at key bit %d: %v", ErrMalformed, pos, err)
	}
	if pos+n == KeyBits {
		return c, nil
	}

	onPath := true
	for i := 0; i < n; i++ {
		if (label[i/8]>>uint(7-i%8))&1 != keyBit(key, pos+i) {
			onPath = false
			break
		}
	}
	if c.RefsCount() != 2 {
		return nil, fmt.Errorf("%w: fork at key bit %d has %d refs", ErrMalformed, pos+n, c.RefsCount())
	}

	refs := make([]*cell.Cell, 2)
	for i := range refs {
		child, err := c.Ref(i)
		if err != nil {
			return nil, err
		}
		if onPath && i == int(keyBit(key, pos+n)) {
			refs[i], err = provePath(child, key, pos+n+1)
		} else {
			refs[i], err = cell.NewPrunedBranch(child)
		}
		if err != nil {
			return nil, err
		}
	}
	return cell.New(false, c.Data(), c.BitLen(), refs)
}
