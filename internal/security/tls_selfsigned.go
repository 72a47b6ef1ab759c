package security

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	// DefaultValidityDays is the certificate lifetime when none is requested.
	DefaultValidityDays = 365
	// DefaultCommonName is the subject CN used when none is requested.
	DefaultCommonName = "ESP32-WebSocket"

	// maxValidityYear is the last year GeneralizedTime can encode.
	maxValidityYear = 9999
)

// Subject names the device the certificate identifies.
type Subject struct {
	CommonName   string
	Organization string
}

func (s Subject) name() pkix.Name {
	n := pkix.Name{CommonName: s.CommonName}
	if n.CommonName == "" {
		n.CommonName = DefaultCommonName
	}
	if s.Organization != "" {
		n.Organization = []string{s.Organization}
	}
	return n
}

// CertificateRequest carries the operator inputs for a single build.
type CertificateRequest struct {
	Subject      Subject
	TargetIP     string
	ValidityDays int
}

// Certificate is a built certificate in DER form together with its parsed
// representation.
type Certificate struct {
	DER  []byte
	X509 *x509.Certificate
}

// Fingerprint returns the OpenSSH-style SHA-256 fingerprint of the
// certificate's public key.
func (c *Certificate) Fingerprint() (string, error) {
	pub, err := ssh.NewPublicKey(c.X509.PublicKey)
	if err != nil {
		return "", fmt.Errorf("fingerprint public key: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

// Builder creates self-signed certificates. Rand and Now are injectable so
// builds are reproducible in tests.
type Builder struct {
	Rand io.Reader
	Now  func() time.Time
}

// NewBuilder returns a Builder backed by crypto/rand and the wall clock.
func NewBuilder() *Builder {
	return &Builder{Rand: rand.Reader, Now: time.Now}
}

// Build signs a self-signed certificate for req.TargetIP with kp.
func (b *Builder) Build(kp *KeyPair, req CertificateRequest) (*Certificate, error) {
	if kp == nil || kp.Private == nil {
		return nil, fmt.Errorf("%w: missing key pair", ErrInvalidInput)
	}

	ip, err := ParseIPv4(req.TargetIP)
	if err != nil {
		return nil, err
	}

	days := req.ValidityDays
	if days == 0 {
		days = DefaultValidityDays
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: validity must be positive, got %d days", ErrInvalidInput, days)
	}
	if days > maxValidityYear*366 {
		return nil, fmt.Errorf("%w: validity of %d days is out of range", ErrInvalidInput, days)
	}

	random := b.Rand
	if random == nil {
		random = rand.Reader
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	serial, err := newSerial(random)
	if err != nil {
		return nil, err
	}

	// x509 encodes validity at second precision.
	notBefore := now().UTC().Truncate(time.Second)
	notAfter := notBefore.AddDate(0, 0, days)
	if !notAfter.After(notBefore) || notAfter.Year() > maxValidityYear {
		return nil, fmt.Errorf("%w: validity of %d days is out of range", ErrInvalidInput, days)
	}

	name := req.Subject.name()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		Issuer:                name,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            -1,
		IPAddresses:           []net.IP{ip},
		KeyUsage: x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment |
			x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(random, template, template, kp.Public(), kp.Signer())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse signed certificate: %v", ErrSigning, err)
	}

	return &Certificate{DER: der, X509: parsed}, nil
}

// ParseIPv4 accepts a dotted-quad IPv4 literal only. IPv6 literals,
// IPv4-mapped IPv6 forms and host names are rejected.
func ParseIPv4(s string) (net.IP, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, ":") {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidInput, s)
	}
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidInput, s)
	}
	return ip, nil
}

func newSerial(random io.Reader) (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(random, max)
	if err != nil {
		return nil, fmt.Errorf("%w: serial number: %v", ErrGeneration, err)
	}
	return serial, nil
}
