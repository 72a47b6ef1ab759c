package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
)

// DefaultKeyBits is the RSA modulus size used when none is requested.
const DefaultKeyBits = 2048

var supportedKeyBits = map[int]bool{
	2048: true,
	3072: true,
	4096: true,
}

// KeyPair holds an RSA private key. The public half is always derived from
// it and never stored separately.
type KeyPair struct {
	Private *rsa.PrivateKey
}

// Public returns the public key derived from the private key.
func (k *KeyPair) Public() *rsa.PublicKey {
	return &k.Private.PublicKey
}

// Signer exposes the private key as a crypto.Signer.
func (k *KeyPair) Signer() crypto.Signer {
	return k.Private
}

// Bits returns the modulus size in bits.
func (k *KeyPair) Bits() int {
	return k.Private.N.BitLen()
}

// GenerateKey creates an RSA key pair of the given size. A zero size selects
// DefaultKeyBits and a nil random selects crypto/rand.
func GenerateKey(random io.Reader, bits int) (*KeyPair, error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}
	if !supportedKeyBits[bits] {
		return nil, fmt.Errorf("%w: unsupported RSA key size %d", ErrInvalidInput, bits)
	}
	if random == nil {
		random = rand.Reader
	}

	key, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return &KeyPair{Private: key}, nil
}
