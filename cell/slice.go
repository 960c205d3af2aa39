package cell

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const coinsMaxBytes = 15

var (
	ErrUnderflow          = errors.New("cell: underflow")
	ErrCoinsOverflow      = errors.New("cell: coins exceed 120 bits")
	ErrUnsupportedAddress = errors.New("cell: unsupported address")
	ErrNoneAddress        = errors.New("cell: addr_none where an address is required")
)

// Slice is a read cursor over a cell's bits and refs.
type Slice struct {
	data   []byte
	bitLen int
	pos    int
	refs   []*Cell
	refPos int
}

func (s *Slice) BitsLeft() int { return s.bitLen - s.pos }

func (s *Slice) RefsLeft() int { return len(s.refs) - s.refPos }

func (s *Slice) Copy() *Slice {
	cp := *s
	return &cp
}

func (s *Slice) bit(i int) bool {
	return s.data[i/8]&(0x80>>uint(i%8)) != 0
}

func (s *Slice) need(n int) error {
	if n < 0 || s.pos+n > s.bitLen {
		return fmt.Errorf("%w: need %d bits, have %d", ErrUnderflow, n, s.BitsLeft())
	}
	return nil
}

func (s *Slice) LoadBit() (bool, error) {
	if err := s.need(1); err != nil {
		return false, err
	}
	v := s.bit(s.pos)
	s.pos++
	return v, nil
}

func (s *Slice) LoadUint(n int) (uint64, error) {
	if n > 64 {
		return 0, fmt.Errorf("cell: uint width %d", n)
	}
	if err := s.need(n); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < n; i++ {
		v <<= 1
		if s.bit(s.pos + i) {
			v |= 1
		}
	}
	s.pos += n
	return v, nil
}

func (s *Slice) PreloadUint(n int) (uint64, error) {
	return s.Copy().LoadUint(n)
}

func (s *Slice) LoadInt(n int) (int64, error) {
	if n < 1 || n > 64 {
		return 0, fmt.Errorf("cell: int width %d", n)
	}
	u, err := s.LoadUint(n)
	if err != nil {
		return 0, err
	}
	if n < 64 && u&(uint64(1)<<uint(n-1)) != 0 {
		u |= ^uint64(0) << uint(n)
	}
	// #nosec G115 -- two's complement reinterpretation.
	return int64(u), nil
}

// LoadBits returns n bits packed most significant first into ceil(n/8) bytes.
func (s *Slice) LoadBits(n int) ([]byte, error) {
	if err := s.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, (n+7)/8)
	if s.pos%8 == 0 {
		copy(out, s.data[s.pos/8:])
		if rem := n % 8; rem != 0 {
			out[len(out)-1] &= 0xff << uint(8-rem)
		}
	} else {
		for i := 0; i < n; i++ {
			if s.bit(s.pos + i) {
				out[i/8] |= 0x80 >> uint(i%8)
			}
		}
	}
	s.pos += n
	return out, nil
}

func (s *Slice) LoadBytes(n int) ([]byte, error) { return s.LoadBits(n * 8) }

func (s *Slice) Skip(n int) error {
	if err := s.need(n); err != nil {
		return err
	}
	s.pos += n
	return nil
}

func (s *Slice) LoadRef() (*Cell, error) {
	if s.refPos >= len(s.refs) {
		return nil, fmt.Errorf("%w: no refs left", ErrUnderflow)
	}
	r := s.refs[s.refPos]
	s.refPos++
	return r, nil
}

func (s *Slice) LoadMaybeRef() (*Cell, error) {
	has, err := s.LoadBit()
	if err != nil || !has {
		return nil, err
	}
	return s.LoadRef()
}

func (s *Slice) LoadCoins() (*uint256.Int, error) {
	n, err := s.LoadUint(4)
	if err != nil {
		return nil, err
	}
	p, err := s.LoadBytes(int(n))
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(p), nil
}

// LoadMaybeAddress reads a MsgAddress restricted to addr_none and addr_std
// without anycast. addr_none yields nil.
func (s *Slice) LoadMaybeAddress() (*Address, error) {
	tag, err := s.LoadUint(2)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0b00:
		return nil, nil
	case 0b10:
	default:
		return nil, fmt.Errorf("%w: tag %02b", ErrUnsupportedAddress, tag)
	}
	anycast, err := s.LoadBit()
	if err != nil {
		return nil, err
	}
	if anycast {
		return nil, fmt.Errorf("%w: anycast", ErrUnsupportedAddress)
	}
	wc, err := s.LoadInt(8)
	if err != nil {
		return nil, err
	}
	h, err := s.LoadBytes(32)
	if err != nil {
		return nil, err
	}
	// #nosec G115 -- loaded as an 8-bit signed value.
	a := &Address{Workchain: int8(wc)}
	copy(a.Hash[:], h)
	return a, nil
}

func (s *Slice) LoadAddress() (Address, error) {
	a, err := s.LoadMaybeAddress()
	if err != nil {
		return Address{}, err
	}
	if a == nil {
		return Address{}, ErrNoneAddress
	}
	return *a, nil
}

// ToCell packs the unread bits and refs into a new ordinary cell.
func (s *Slice) ToCell() (*Cell, error) {
	return BeginCell().StoreSlice(s).EndCell()
}
