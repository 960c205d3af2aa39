package cell

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is an internal standard address (addr_std without anycast).
type Address struct {
	Workchain int8
	Hash      [32]byte
}

// String renders the raw form "<workchain>:<64 hex>".
func (a Address) String() string {
	return fmt.Sprintf("%d:%s", a.Workchain, hex.EncodeToString(a.Hash[:]))
}

// ShardPrefix returns the top n (0..8) bits of the account hash.
func (a Address) ShardPrefix(n int) uint8 {
	if n <= 0 {
		return 0
	}
	if n > 8 {
		n = 8
	}
	return a.Hash[0] >> uint(8-n)
}

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	p, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = p
	return nil
}

// ParseAddress parses the raw "<workchain>:<64 hex>" form.
func ParseAddress(s string) (Address, error) {
	wcs, hs, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Address{}, fmt.Errorf("address %q: missing workchain separator", s)
	}
	wc, err := strconv.ParseInt(wcs, 10, 8)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: workchain: %w", s, err)
	}
	h, err := hex.DecodeString(hs)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: hash: %w", s, err)
	}
	if len(h) != 32 {
		return Address{}, fmt.Errorf("address %q: hash must be 32 bytes, got %d", s, len(h))
	}
	a := Address{Workchain: int8(wc)}
	copy(a.Hash[:], h)
	return a, nil
}
