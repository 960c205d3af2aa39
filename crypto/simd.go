package crypto

import (
	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// SIMDProvider hashes with the minio SHA-256 implementation (SHA-NI / AVX512 when available).
type SIMDProvider struct{}

func (SIMDProvider) SHA256(input []byte) [32]byte {
	return sha256simd.Sum256(input)
}

func (SIMDProvider) SHA3_256(input []byte) [32]byte {
	h := sha3.New256()
	_, _ = h.Write(input)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
