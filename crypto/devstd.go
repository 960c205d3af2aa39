package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// StdProvider hashes with the Go standard library SHA-256.
// The cheap wallet address derivation uses it so that it never shares a hash backend with the cell package.
type StdProvider struct{}

func (StdProvider) SHA256(input []byte) [32]byte {
	return sha256.Sum256(input)
}

func (StdProvider) SHA3_256(input []byte) [32]byte {
	return sha3.Sum256(input)
}
