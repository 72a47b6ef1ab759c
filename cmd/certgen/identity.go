package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avaropoint/devident/internal/literal"
	"github.com/avaropoint/devident/internal/security"
)

const (
	certFileName = "server_cert.pem"
	keyFileName  = "server_key.pem"
)

func newIdentityCmd(a *app) *cobra.Command {
	var (
		ip, cn, org       string
		days, bits        int
		certVar, keyVar   string
		keyFormat, outDir string
		quoted            bool
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate an RSA key and a self-signed certificate for a device IP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := &a.cfg.Identity
			flags := cmd.Flags()
			if flags.Changed("ip") {
				id.TargetIP = ip
			}
			if flags.Changed("cn") {
				id.CommonName = cn
			}
			if flags.Changed("org") {
				id.Organization = org
			}
			if flags.Changed("days") {
				id.ValidityDays = days
			}
			if flags.Changed("bits") {
				id.KeyBits = bits
			}
			if flags.Changed("cert-var") {
				id.CertVar = certVar
			}
			if flags.Changed("key-var") {
				id.KeyVar = keyVar
			}
			if flags.Changed("key-format") {
				id.KeyFormat = keyFormat
			}
			if flags.Changed("out-dir") {
				id.OutDir = outDir
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if id.TargetIP == "" {
				return fmt.Errorf("--ip is required")
			}
			return a.generate(cmd.OutOrStdout(), quoted)
		},
	}

	f := cmd.Flags()
	f.StringVar(&ip, "ip", "", "IPv4 address the device serves on (subjectAltName)")
	f.StringVar(&cn, "cn", security.DefaultCommonName, "Subject common name")
	f.StringVar(&org, "org", "", "Subject organization")
	f.IntVar(&days, "days", security.DefaultValidityDays, "Validity period in days")
	f.IntVar(&bits, "bits", security.DefaultKeyBits, "RSA key size (2048, 3072 or 4096)")
	f.StringVar(&certVar, "cert-var", "server_cert", "Variable name for the certificate literal")
	f.StringVar(&keyVar, "key-var", "server_key", "Variable name for the private key literal")
	f.StringVar(&keyFormat, "key-format", "pkcs8", "Private key encoding: pkcs8 or pkcs1")
	f.StringVar(&outDir, "out-dir", "", "Also write PEM files to this directory")
	f.BoolVar(&quoted, "quoted", false, "Emit one quoted string per line instead of raw literals")
	return cmd
}

func (a *app) generate(w io.Writer, quoted bool) error {
	id := a.cfg.Identity
	format, err := security.ParseKeyFormat(id.KeyFormat)
	if err != nil {
		return err
	}

	a.logger.Debug("Generating key", zap.Int("bits", id.KeyBits))
	kp, err := security.GenerateKey(nil, id.KeyBits)
	if err != nil {
		return err
	}

	cert, err := security.NewBuilder().Build(kp, a.cfg.CertificateRequest())
	if err != nil {
		return err
	}

	certPEM, err := security.EncodeCertificate(cert)
	if err != nil {
		return err
	}
	keyPEM, err := security.EncodeKey(kp, format)
	if err != nil {
		return err
	}

	fingerprint, err := cert.Fingerprint()
	if err != nil {
		return err
	}
	a.logger.Info("Certificate generated",
		zap.String("ip", id.TargetIP),
		zap.String("serial", cert.X509.SerialNumber.Text(16)),
		zap.Time("not_after", cert.X509.NotAfter),
		zap.String("fingerprint", fingerprint))

	if id.OutDir != "" {
		if err := writeFiles(id.OutDir, certPEM, keyPEM); err != nil {
			return err
		}
		a.logger.Info("PEM files written", zap.String("dir", id.OutDir))
	}

	fmt.Fprintf(w, "// %s %s\n", id.TargetIP, fingerprint)
	if err := render(w, certPEM, id.CertVar, quoted); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return render(w, keyPEM, id.KeyVar, quoted)
}

func render(w io.Writer, pemData []byte, name string, quoted bool) error {
	if !quoted {
		raw, err := literal.Raw(string(pemData), name)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, raw)
		return err
	}

	lit, err := literal.Emit(strings.Split(string(pemData), "\n"), name)
	if err != nil {
		return err
	}
	_, err = lit.WriteTo(w)
	return err
}

func writeFiles(dir string, certPEM, keyPEM []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := security.WritePEM(filepath.Join(dir, certFileName), certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := security.WritePEM(filepath.Join(dir, keyFileName), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}
