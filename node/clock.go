package node

import "time"

// Clock supplies the unix time handlers see as now.
type Clock interface {
	Now() uint64
}

type SystemClock struct{}

func (SystemClock) Now() uint64 {
	t := time.Now().Unix()
	if t < 0 {
		return 0
	}
	return uint64(t)
}

// FixedClock always reports the same time.
type FixedClock uint64

func (c FixedClock) Now() uint64 { return uint64(c) }
