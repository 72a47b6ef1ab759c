package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSMode describes how the harness server handles TLS.
type TLSMode int

const (
	// TLSModeOff serves plain ws:// (the default for the echo server).
	TLSModeOff TLSMode = iota
	// TLSModeFile loads a certificate and key from PEM files, typically the
	// pair produced by certgen.
	TLSModeFile
	// TLSModeEphemeral builds a fresh in-memory identity at startup.
	TLSModeEphemeral
)

// ParseTLSMode maps "off", "file" and "ephemeral" to a TLSMode.
func ParseTLSMode(s string) (TLSMode, error) {
	switch s {
	case "", "off":
		return TLSModeOff, nil
	case "file":
		return TLSModeFile, nil
	case "ephemeral":
		return TLSModeEphemeral, nil
	default:
		return 0, fmt.Errorf("%w: unknown TLS mode %q", ErrInvalidInput, s)
	}
}

func (m TLSMode) String() string {
	switch m {
	case TLSModeFile:
		return "file"
	case TLSModeEphemeral:
		return "ephemeral"
	default:
		return "off"
	}
}

// ServerTLS holds the inputs for building a server-side tls.Config.
type ServerTLS struct {
	Mode     TLSMode
	CertPath string
	KeyPath  string
	// TargetIP is the SAN used in ephemeral mode.
	TargetIP string
}

// Identity pairs a key and certificate into a tls.Certificate.
func Identity(kp *KeyPair, cert *Certificate) tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{cert.DER},
		PrivateKey:  kp.Private,
		Leaf:        cert.X509,
	}
}

// ServerConfig returns the tls.Config for the harness server, or nil when
// TLS is off.
func ServerConfig(opts ServerTLS) (*tls.Config, error) {
	var cert tls.Certificate

	switch opts.Mode {
	case TLSModeOff:
		return nil, nil
	case TLSModeFile:
		loaded, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load TLS keypair: %w", err)
		}
		cert = loaded
	case TLSModeEphemeral:
		kp, err := GenerateKey(nil, DefaultKeyBits)
		if err != nil {
			return nil, err
		}
		built, err := NewBuilder().Build(kp, CertificateRequest{TargetIP: opts.TargetIP})
		if err != nil {
			return nil, err
		}
		cert = Identity(kp, built)
	default:
		return nil, fmt.Errorf("%w: unknown TLS mode %d", ErrInvalidInput, opts.Mode)
	}

	// Embedded TLS stacks commonly top out at TLS 1.2.
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientTLS holds the inputs for building a client-side tls.Config.
type ClientTLS struct {
	ServerName string
	// RootCAFile, when set, replaces the system roots with the PEM
	// certificates in the file. A certgen certificate can be its own root.
	RootCAFile string
	// InsecureSkipVerify disables certificate and host name verification.
	// Test-only: the peer's identity is not checked at all.
	InsecureSkipVerify bool
}

// ClientConfig returns the tls.Config used by the requester.
func ClientConfig(opts ClientTLS) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: opts.ServerName,
		MinVersion: tls.VersionTLS12,
	}

	if opts.InsecureSkipVerify {
		cfg.InsecureSkipVerify = true //nolint:gosec
		return cfg, nil
	}

	if opts.RootCAFile != "" {
		caPEM, err := os.ReadFile(opts.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("load CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidInput, opts.RootCAFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
