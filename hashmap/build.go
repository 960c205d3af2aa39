package hashmap

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ton-community/mintless-jetton/cell"
)

// Entry is one dictionary item. The bits and refs of Value are stored inline
// in the leaf after its label.
type Entry struct {
	Key   [32]byte
	Value *cell.Cell
}

// Build returns the root cell of a Hashmap 256 holding entries.
func Build(entries []Entry) (*cell.Cell, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Key[:], sorted[j].Key[:]) < 0
	})
	for i := range sorted {
		if sorted[i].Value == nil {
			return nil, fmt.Errorf("hashmap: nil value for key %x", sorted[i].Key)
		}
		if i > 0 && sorted[i].Key == sorted[i-1].Key {
			return nil, fmt.Errorf("%w: %x", ErrDuplicate, sorted[i].Key)
		}
	}
	return buildEdge(sorted, 0)
}

// buildEdge encodes entries sharing their first pos key bits.
func buildEdge(entries []Entry, pos int) (*cell.Cell, error) {
	m := KeyBits - pos
	first := &entries[0].Key
	last := &entries[len(entries)-1].Key

	// entries are sorted, so the common prefix of the set is that of its ends
	l := 0
	for l < m && keyBit(first, pos+l) == keyBit(last, pos+l) {
		l++
	}

	b := cell.BeginCell()
	storeLabel(b, first, pos, l, m)
	if l == m {
		b.StoreSlice(entries[0].Value.BeginParse())
		return b.EndCell()
	}

	split := pos + l
	cut := sort.Search(len(entries), func(i int) bool {
		return keyBit(&entries[i].Key, split) == 1
	})
	left, err := buildEdge(entries[:cut], split+1)
	if err != nil {
		return nil, err
	}
	right, err := buildEdge(entries[cut:], split+1)
	if err != nil {
		return nil, err
	}
	return b.StoreRef(left).StoreRef(right).EndCell()
}
