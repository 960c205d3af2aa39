package crypto

import "fmt"

// Provider is the narrow hashing interface used by the jetton core and the state store.
// SHA256 backs cell representation hashes; SHA3_256 backs store snapshot digests.
type Provider interface {
	SHA256(input []byte) [32]byte
	SHA3_256(input []byte) [32]byte
}

const (
	BackendStd  = "std"
	BackendSIMD = "simd"
)

// LoadProvider returns the provider registered under name. An empty name selects the SIMD backend.
func LoadProvider(name string) (Provider, error) {
	switch name {
	case "", BackendSIMD:
		return SIMDProvider{}, nil
	case BackendStd:
		return StdProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown hash backend %q", name)
	}
}
