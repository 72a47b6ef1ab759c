package security

import "errors"

var (
	// ErrInvalidInput reports a malformed request, such as a non-IPv4 target
	// or an unsupported modulus size.
	ErrInvalidInput = errors.New("invalid input")
	// ErrGeneration reports a failure of the entropy source or of key
	// construction. It is fatal for the run.
	ErrGeneration = errors.New("key generation failed")
	// ErrSigning reports a failure to produce the certificate signature.
	ErrSigning = errors.New("certificate signing failed")
)
