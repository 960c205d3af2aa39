// Package hashmap implements the TON Hashmap layout for 256-bit keys: building
// a dictionary, looking keys up in a possibly pruned tree and producing
// Merkle proofs for a single key.
package hashmap

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/ton-community/mintless-jetton/cell"
)

// KeyBits is the key width of every dictionary in this package.
const KeyBits = 256

var (
	ErrKeyAbsent  = errors.New("hashmap: key absent")
	ErrPrunedPath = errors.New("hashmap: path leads into a pruned branch")
	ErrMalformed  = errors.New("hashmap: malformed dictionary")
	ErrEmpty      = errors.New("hashmap: no entries")
	ErrDuplicate  = errors.New("hashmap: duplicate key")
)

func keyBit(key *[32]byte, i int) uint8 {
	return (key[i/8] >> uint(7-i%8)) & 1
}

// lenBits is the width of a label length field when at most m bits remain.
func lenBits(m int) int { return bits.Len(uint(m)) }

// loadLabel reads an HmLabel with at most m bits and returns the label bits
// packed MSB-first and their count.
func loadLabel(s *cell.Slice, m int) ([]byte, int, error) {
	first, err := s.LoadBit()
	if err != nil {
		return nil, 0, err
	}
	if !first {
		// hml_short$0: unary length then the bits
		n := 0
		for {
			b, err := s.LoadBit()
			if err != nil {
				return nil, 0, err
			}
			if !b {
				break
			}
			n++
			if n > m {
				return nil, 0, fmt.Errorf("short label longer than %d", m)
			}
		}
		p, err := s.LoadBits(n)
		return p, n, err
	}
	second, err := s.LoadBit()
	if err != nil {
		return nil, 0, err
	}
	if !second {
		// hml_long$10
		n64, err := s.LoadUint(lenBits(m))
		if err != nil {
			return nil, 0, err
		}
		if n64 > uint64(m) {
			return nil, 0, fmt.Errorf("long label %d longer than %d", n64, m)
		}
		n := int(n64)
		p, err := s.LoadBits(n)
		return p, n, err
	}
	// hml_same$11
	v, err := s.LoadBit()
	if err != nil {
		return nil, 0, err
	}
	n64, err := s.LoadUint(lenBits(m))
	if err != nil {
		return nil, 0, err
	}
	if n64 > uint64(m) {
		return nil, 0, fmt.Errorf("same label %d longer than %d", n64, m)
	}
	n := int(n64)
	p := make([]byte, (n+7)/8)
	if v {
		for i := 0; i < n; i++ {
			p[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return p, n, nil
}

// storeLabel writes key bits [from, from+n) as the shortest HmLabel for m
// remaining bits. Ties prefer short, then long.
func storeLabel(b *cell.Builder, key *[32]byte, from, n, m int) {
	shortLen := 2*n + 2
	longLen := 2 + lenBits(m) + n
	sameLen := 3 + lenBits(m)

	same := true
	for i := 1; i < n; i++ {
		if keyBit(key, from+i) != keyBit(key, from) {
			same = false
			break
		}
	}

	kind, best := 0, shortLen
	if longLen < best {
		kind, best = 1, longLen
	}
	if same && sameLen < best {
		kind = 2
	}

	switch kind {
	case 0:
		b.StoreBit(false)
		for i := 0; i < n; i++ {
			b.StoreBit(true)
		}
		b.StoreBit(false)
		storeKeyBits(b, key, from, n)
	case 1:
		b.StoreUint(0b10, 2).StoreUint(uint64(n), lenBits(m))
		storeKeyBits(b, key, from, n)
	default:
		b.StoreUint(0b11, 2).StoreBit(n > 0 && keyBit(key, from) == 1).StoreUint(uint64(n), lenBits(m))
	}
}

func storeKeyBits(b *cell.Builder, key *[32]byte, from, n int) {
	for i := 0; i < n; i++ {
		b.StoreBit(keyBit(key, from+i) == 1)
	}
}
