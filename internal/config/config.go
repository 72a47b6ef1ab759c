// Package config loads settings for the certgen, server and probe
// binaries from an optional YAML file, a .env file and DEVIDENT_*
// environment variables, in increasing priority. Command-line flags are
// applied on top by the binaries.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/avaropoint/devident/internal/harness"
	"github.com/avaropoint/devident/internal/literal"
	"github.com/avaropoint/devident/internal/security"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEVIDENT_"

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for %s=%s: %s", e.Field, e.Value, e.Message)
}

// Config is the full configuration.
type Config struct {
	Log struct {
		Debug bool   `yaml:"debug"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Identity drives certificate generation.
	Identity struct {
		TargetIP     string `yaml:"target_ip"`
		CommonName   string `yaml:"common_name"`
		Organization string `yaml:"organization"`
		ValidityDays int    `yaml:"validity_days"`
		KeyBits      int    `yaml:"key_bits"`
		KeyFormat    string `yaml:"key_format"` // pkcs8 | pkcs1
		CertVar      string `yaml:"cert_var"`
		KeyVar       string `yaml:"key_var"`
		OutDir       string `yaml:"out_dir"`
	} `yaml:"identity"`

	Literal struct {
		Name string `yaml:"name"`
	} `yaml:"literal"`

	Responder struct {
		Addr           string `yaml:"addr"`
		Path           string `yaml:"path"`
		MaxMessageSize int64  `yaml:"max_message_size"`
		Metrics        bool   `yaml:"metrics"`
		TLS            struct {
			Mode     string `yaml:"mode"` // off | file | ephemeral
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
			IP       string `yaml:"ip"`
		} `yaml:"tls"`
	} `yaml:"responder"`

	Requester struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Path string `yaml:"path"`
		// Plain selects ws:// instead of wss://.
		Plain bool `yaml:"plain"`
		// InsecureSkipVerify is for testing only.
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
		RootCAFile         string        `yaml:"root_ca_file"`
		Timeout            time.Duration `yaml:"timeout"`
		Message            string        `yaml:"message"`
	} `yaml:"requester"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	c := &Config{}
	c.Identity.CommonName = security.DefaultCommonName
	c.Identity.ValidityDays = security.DefaultValidityDays
	c.Identity.KeyBits = security.DefaultKeyBits
	c.Identity.KeyFormat = "pkcs8"
	c.Identity.CertVar = "server_cert"
	c.Identity.KeyVar = "server_key"

	c.Literal.Name = literal.DefaultName

	c.Responder.Addr = harness.DefaultResponderAddr
	c.Responder.Path = "/"
	c.Responder.TLS.Mode = "off"

	c.Requester.Port = harness.DefaultRequesterPort
	c.Requester.Path = "/"
	c.Requester.Timeout = 10 * time.Second
	c.Requester.Message = "Hello from Go!"
	return c
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), envFile (if it exists) and the process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		// Values already in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return ValidationError{Field: EnvPrefix + key, Value: v, Message: "must be an integer"}
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return ValidationError{Field: EnvPrefix + key, Value: v, Message: "must be a boolean"}
		}
		*dst = b
		return nil
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("TARGET_IP", &c.Identity.TargetIP)
	str("COMMON_NAME", &c.Identity.CommonName)
	str("ORGANIZATION", &c.Identity.Organization)
	str("KEY_FORMAT", &c.Identity.KeyFormat)
	str("OUT_DIR", &c.Identity.OutDir)
	str("LITERAL_NAME", &c.Literal.Name)
	str("RESPONDER_ADDR", &c.Responder.Addr)
	str("RESPONDER_TLS_MODE", &c.Responder.TLS.Mode)
	str("RESPONDER_TLS_CERT", &c.Responder.TLS.CertFile)
	str("RESPONDER_TLS_KEY", &c.Responder.TLS.KeyFile)
	str("RESPONDER_TLS_IP", &c.Responder.TLS.IP)
	str("REQUESTER_HOST", &c.Requester.Host)
	str("REQUESTER_ROOT_CA", &c.Requester.RootCAFile)
	str("REQUESTER_MESSAGE", &c.Requester.Message)

	for _, f := range []func() error{
		func() error { return flag("DEBUG", &c.Log.Debug) },
		func() error { return num("VALIDITY_DAYS", &c.Identity.ValidityDays) },
		func() error { return num("KEY_BITS", &c.Identity.KeyBits) },
		func() error { return flag("RESPONDER_METRICS", &c.Responder.Metrics) },
		func() error { return num("REQUESTER_PORT", &c.Requester.Port) },
		func() error { return flag("REQUESTER_PLAIN", &c.Requester.Plain) },
		func() error { return flag("REQUESTER_INSECURE_SKIP_VERIFY", &c.Requester.InsecureSkipVerify) },
	} {
		if err := f(); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "REQUESTER_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return ValidationError{Field: EnvPrefix + "REQUESTER_TIMEOUT", Value: v, Message: "must be a duration"}
		}
		c.Requester.Timeout = d
	}
	return nil
}

// Validate checks the sections used by every binary. Binary-specific
// requirements, such as a target IP for certgen, are checked where the
// value is consumed.
func (c *Config) Validate() error {
	if c.Identity.ValidityDays < 0 {
		return ValidationError{Field: "identity.validity_days", Value: strconv.Itoa(c.Identity.ValidityDays), Message: "must be positive"}
	}
	if _, err := security.ParseKeyFormat(c.Identity.KeyFormat); err != nil {
		return ValidationError{Field: "identity.key_format", Value: c.Identity.KeyFormat, Message: "must be pkcs8 or pkcs1"}
	}
	if _, err := security.ParseTLSMode(c.Responder.TLS.Mode); err != nil {
		return ValidationError{Field: "responder.tls.mode", Value: c.Responder.TLS.Mode, Message: "must be off, file or ephemeral"}
	}
	if c.Requester.Port < 0 || c.Requester.Port > 65535 {
		return ValidationError{Field: "requester.port", Value: strconv.Itoa(c.Requester.Port), Message: "must be a TCP port"}
	}
	if c.Requester.Timeout < 0 {
		return ValidationError{Field: "requester.timeout", Value: c.Requester.Timeout.String(), Message: "must not be negative"}
	}
	return nil
}

// CertificateRequest returns the builder input for the identity section.
func (c *Config) CertificateRequest() security.CertificateRequest {
	return security.CertificateRequest{
		Subject: security.Subject{
			CommonName:   c.Identity.CommonName,
			Organization: c.Identity.Organization,
		},
		TargetIP:     c.Identity.TargetIP,
		ValidityDays: c.Identity.ValidityDays,
	}
}

// ServerTLS returns the TLS inputs for the echo server.
func (c *Config) ServerTLS() (security.ServerTLS, error) {
	mode, err := security.ParseTLSMode(c.Responder.TLS.Mode)
	if err != nil {
		return security.ServerTLS{}, err
	}
	return security.ServerTLS{
		Mode:     mode,
		CertPath: c.Responder.TLS.CertFile,
		KeyPath:  c.Responder.TLS.KeyFile,
		TargetIP: c.Responder.TLS.IP,
	}, nil
}

// RequesterConfig returns the probe settings.
func (c *Config) RequesterConfig() harness.RequesterConfig {
	return harness.RequesterConfig{
		Host:               c.Requester.Host,
		Port:               c.Requester.Port,
		Path:               c.Requester.Path,
		Plain:              c.Requester.Plain,
		InsecureSkipVerify: c.Requester.InsecureSkipVerify,
		RootCAFile:         c.Requester.RootCAFile,
		Timeout:            c.Requester.Timeout,
	}
}
