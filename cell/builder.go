package cell

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Builder accumulates bits and refs for a new cell. The first error sticks
// and is reported by EndCell; later stores are no-ops.
type Builder struct {
	data   []byte
	bitLen int
	refs   []*Cell
	err    error
}

func BeginCell() *Builder { return &Builder{} }

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) Err() error { return b.err }

func (b *Builder) BitLen() int { return b.bitLen }

func (b *Builder) RefsCount() int { return len(b.refs) }

func (b *Builder) appendBit(bit bool) {
	if b.bitLen%8 == 0 {
		b.data = append(b.data, 0)
	}
	if bit {
		b.data[b.bitLen/8] |= 0x80 >> uint(b.bitLen%8)
	}
	b.bitLen++
}

func (b *Builder) room(n int) bool {
	if b.err != nil {
		return false
	}
	if n < 0 || b.bitLen+n > MaxBits {
		b.fail(fmt.Errorf("%w: %d + %d", ErrTooManyBits, b.bitLen, n))
		return false
	}
	return true
}

func (b *Builder) StoreBit(bit bool) *Builder {
	if b.room(1) {
		b.appendBit(bit)
	}
	return b
}

// StoreUint stores the low n bits of v, most significant first. v must fit.
func (b *Builder) StoreUint(v uint64, n int) *Builder {
	if n > 64 {
		return b.fail(fmt.Errorf("cell: uint width %d", n))
	}
	if n < 64 && v>>uint(n) != 0 {
		return b.fail(fmt.Errorf("cell: value %d does not fit %d bits", v, n))
	}
	if !b.room(n) {
		return b
	}
	for i := n - 1; i >= 0; i-- {
		b.appendBit((v>>uint(i))&1 == 1)
	}
	return b
}

// StoreInt stores v as an n-bit two's complement integer.
func (b *Builder) StoreInt(v int64, n int) *Builder {
	if n < 1 || n > 64 {
		return b.fail(fmt.Errorf("cell: int width %d", n))
	}
	if n < 64 {
		lim := int64(1) << uint(n-1)
		if v < -lim || v >= lim {
			return b.fail(fmt.Errorf("cell: value %d does not fit %d-bit int", v, n))
		}
	}
	u := uint64(v)
	if n < 64 {
		u &= (uint64(1) << uint(n)) - 1
	}
	return b.StoreUint(u, n)
}

// StoreBits stores the first n bits of p, most significant bit of p[0] first.
func (b *Builder) StoreBits(p []byte, n int) *Builder {
	if len(p)*8 < n {
		return b.fail(fmt.Errorf("cell: %d bytes cannot supply %d bits", len(p), n))
	}
	if !b.room(n) {
		return b
	}
	if b.bitLen%8 == 0 && n%8 == 0 {
		b.data = append(b.data, p[:n/8]...)
		b.bitLen += n
		return b
	}
	for i := 0; i < n; i++ {
		b.appendBit(p[i/8]&(0x80>>uint(i%8)) != 0)
	}
	return b
}

func (b *Builder) StoreBytes(p []byte) *Builder { return b.StoreBits(p, len(p)*8) }

func (b *Builder) StoreRef(c *Cell) *Builder {
	if b.err != nil {
		return b
	}
	if c == nil {
		return b.fail(fmt.Errorf("cell: nil ref"))
	}
	if len(b.refs) >= MaxRefs {
		return b.fail(ErrTooManyRefs)
	}
	b.refs = append(b.refs, c)
	return b
}

// StoreMaybeRef stores a presence bit followed by the ref when c is non-nil.
func (b *Builder) StoreMaybeRef(c *Cell) *Builder {
	if c == nil {
		return b.StoreBit(false)
	}
	return b.StoreBit(true).StoreRef(c)
}

// StoreSlice appends the unread bits and refs of s without consuming it.
func (b *Builder) StoreSlice(s *Slice) *Builder {
	if s == nil {
		return b
	}
	cp := s.Copy()
	n := cp.BitsLeft()
	p, err := cp.LoadBits(n)
	if err != nil {
		return b.fail(err)
	}
	b.StoreBits(p, n)
	for cp.RefsLeft() > 0 {
		r, err := cp.LoadRef()
		if err != nil {
			return b.fail(err)
		}
		b.StoreRef(r)
	}
	return b
}

// StoreCoins stores v as VarUInteger 16: a 4-bit byte length then the
// big-endian value. nil stores zero.
func (b *Builder) StoreCoins(v *uint256.Int) *Builder {
	if v == nil {
		return b.StoreUint(0, 4)
	}
	n := v.ByteLen()
	if n > coinsMaxBytes {
		return b.fail(fmt.Errorf("%w: %d bytes", ErrCoinsOverflow, n))
	}
	// #nosec G115 -- n <= 15.
	return b.StoreUint(uint64(n), 4).StoreBytes(v.Bytes())
}

// StoreAddress stores addr_std, or addr_none when a is nil.
func (b *Builder) StoreAddress(a *Address) *Builder {
	if a == nil {
		return b.StoreUint(0, 2)
	}
	return b.StoreUint(0b100, 3).StoreInt(int64(a.Workchain), 8).StoreBytes(a.Hash[:])
}

func (b *Builder) EndCell() (*Cell, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(false, b.data, b.bitLen, b.refs)
}

// EndExotic finishes an exotic cell; the first stored byte must be its type.
func (b *Builder) EndExotic() (*Cell, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(true, b.data, b.bitLen, b.refs)
}
