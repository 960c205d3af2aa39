package hashmap

import (
	"fmt"

	"github.com/ton-community/mintless-jetton/cell"
)

// Lookup walks the dictionary rooted at root along key and returns the value
// slice of the matching leaf.
//
// ErrKeyAbsent means the tree authoritatively does not contain key: a label
// diverged from it. ErrPrunedPath means the walk hit a pruned branch before
// the key was exhausted, so the tree cannot tell. Any other structural
// problem is ErrMalformed.
func Lookup(root *cell.Cell, key [32]byte) (*cell.Slice, error) {
	if root == nil {
		return nil, ErrKeyAbsent
	}
	c := root
	pos := 0
	for {
		switch c.Type() {
		case cell.Ordinary:
		case cell.PrunedBranch:
			return nil, fmt.Errorf("%w: at key bit %d", ErrPrunedPath, pos)
		default:
			return nil, fmt.Errorf("%w: %s cell at key bit %d", ErrMalformed, c.Type(), pos)
		}
		m := KeyBits - pos
		s := c.BeginParse()
		label, n, err := loadLabel(s, m)
		if err != nil {
			return nil, fmt.Errorf("%w: label at key bit %d: %v", ErrMalformed, pos, err)
		}
		for i := 0; i < n; i++ {
			if (label[i/8]>>uint(7-i%8))&1 != keyBit(&key, pos+i) {
				return nil, ErrKeyAbsent
			}
		}
		pos += n
		if pos == KeyBits {
			return s, nil
		}
		if s.RefsLeft() != 2 {
			return nil, fmt.Errorf("%w: fork at key bit %d has %d refs", ErrMalformed, pos, s.RefsLeft())
		}
		next, err := c.Ref(int(keyBit(&key, pos)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		c = next
		pos++
	}
}
