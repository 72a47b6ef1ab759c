// Package security builds the TLS identity a device presents:
//
//   - RSA key material (2048-bit by default, exponent 65537)
//   - A self-signed certificate that acts as its own CA, with a single
//     IPv4 subject alternative name
//   - PEM encoding of both artifacts
//   - tls.Config construction for the harness server and client
//
// # Extension policy
//
// The certificate always carries BasicConstraints (CA, no path length,
// critical), a SubjectAlternativeName with exactly one IP address
// (non-critical), KeyUsage digitalSignature|keyEncipherment|keyCertSign|
// cRLSign (critical) and ExtendedKeyUsage serverAuth (non-critical).
// Browsers and embedded TLS stacks reject self-signed leaves that claim CA
// status without keyCertSign, or serve TLS without serverAuth.
package security
