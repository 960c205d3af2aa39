package jetton

import (
	"fmt"

	"github.com/holiman/uint256"
)

// addU64 returns a+b or an error if the sum overflows uint64.
func addU64(a, b uint64) (uint64, error) {
	if b > ^uint64(0)-a {
		return 0, fmt.Errorf("uint64 overflow: %d + %d", a, b)
	}
	return a + b, nil
}

// mulU64 returns a*b or an error if the product overflows uint64.
func mulU64(a, b uint64) (uint64, error) {
	if a != 0 && b > ^uint64(0)/a {
		return 0, fmt.Errorf("uint64 overflow: %d * %d", a, b)
	}
	return a * b, nil
}

func coins(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func isZero(v *uint256.Int) bool { return v == nil || v.IsZero() }
