package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// PEM block labels.
const (
	BlockCertificate   = "CERTIFICATE"
	BlockPrivateKey    = "PRIVATE KEY"
	BlockRSAPrivateKey = "RSA PRIVATE KEY"
)

// KeyFormat selects the private key encoding.
type KeyFormat int

const (
	// KeyFormatPKCS8 emits an unencrypted "PRIVATE KEY" block.
	KeyFormatPKCS8 KeyFormat = iota
	// KeyFormatPKCS1 emits a traditional "RSA PRIVATE KEY" block, which some
	// older embedded TLS stacks require.
	KeyFormatPKCS1
)

// ParseKeyFormat maps "pkcs8" and "pkcs1" to a KeyFormat.
func ParseKeyFormat(s string) (KeyFormat, error) {
	switch s {
	case "", "pkcs8":
		return KeyFormatPKCS8, nil
	case "pkcs1":
		return KeyFormatPKCS1, nil
	default:
		return 0, fmt.Errorf("%w: unknown key format %q", ErrInvalidInput, s)
	}
}

// EncodeKey serializes the private key as an unencrypted PEM block.
func EncodeKey(kp *KeyPair, format KeyFormat) ([]byte, error) {
	if kp == nil || kp.Private == nil {
		return nil, fmt.Errorf("%w: missing key pair", ErrInvalidInput)
	}

	switch format {
	case KeyFormatPKCS1:
		der := x509.MarshalPKCS1PrivateKey(kp.Private)
		return pem.EncodeToMemory(&pem.Block{Type: BlockRSAPrivateKey, Bytes: der}), nil
	case KeyFormatPKCS8:
		der, err := x509.MarshalPKCS8PrivateKey(kp.Private)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal private key: %v", ErrInvalidInput, err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: BlockPrivateKey, Bytes: der}), nil
	default:
		return nil, fmt.Errorf("%w: unknown key format %d", ErrInvalidInput, format)
	}
}

// EncodeCertificate serializes the certificate as a PEM block.
func EncodeCertificate(cert *Certificate) ([]byte, error) {
	if cert == nil || len(cert.DER) == 0 {
		return nil, fmt.Errorf("%w: missing certificate", ErrInvalidInput)
	}
	return pem.EncodeToMemory(&pem.Block{Type: BlockCertificate, Bytes: cert.DER}), nil
}

// DecodeCertificate parses the first CERTIFICATE block in data.
func DecodeCertificate(data []byte) (*Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != BlockCertificate {
		return nil, fmt.Errorf("%w: no CERTIFICATE block", ErrInvalidInput)
	}
	parsed, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %v", ErrInvalidInput, err)
	}
	return &Certificate{DER: block.Bytes, X509: parsed}, nil
}

// DecodeKey parses the first private key block in data. Both PKCS#8 and
// PKCS#1 encodings are accepted.
func DecodeKey(data []byte) (*KeyPair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidInput)
	}

	switch block.Type {
	case BlockRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse PKCS#1 key: %v", ErrInvalidInput, err)
		}
		return &KeyPair{Private: key}, nil
	case BlockPrivateKey:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse PKCS#8 key: %v", ErrInvalidInput, err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is %T, want RSA", ErrInvalidInput, parsed)
		}
		return &KeyPair{Private: key}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidInput, block.Type)
	}
}

// WritePEM writes already-encoded PEM data to path with the given mode.
func WritePEM(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	_, err = f.Write(data)
	return err
}
