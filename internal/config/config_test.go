package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaropoint/devident/internal/security"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10*time.Second, cfg.Requester.Timeout)
	assert.Equal(t, 443, cfg.Requester.Port)
	assert.Equal(t, ":8080", cfg.Responder.Addr)
	assert.Equal(t, "server_cert", cfg.Identity.CertVar)
	assert.Equal(t, "server_key", cfg.Identity.KeyVar)
	assert.Equal(t, "root_ca", cfg.Literal.Name)
	assert.Equal(t, security.DefaultValidityDays, cfg.Identity.ValidityDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "devident.yaml", `
identity:
  target_ip: 192.168.1.50
  validity_days: 30
  key_format: pkcs1
responder:
  addr: ":9000"
  tls:
    mode: ephemeral
    ip: 127.0.0.1
requester:
  host: 10.0.0.7
  timeout: 3s
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.50", cfg.Identity.TargetIP)
	assert.Equal(t, 30, cfg.Identity.ValidityDays)
	assert.Equal(t, "pkcs1", cfg.Identity.KeyFormat)
	assert.Equal(t, ":9000", cfg.Responder.Addr)
	assert.Equal(t, 3*time.Second, cfg.Requester.Timeout)
	// Unset keys keep their defaults.
	assert.Equal(t, 443, cfg.Requester.Port)
	assert.Equal(t, "server_key", cfg.Identity.KeyVar)

	tlsOpts, err := cfg.ServerTLS()
	require.NoError(t, err)
	assert.Equal(t, security.TLSModeEphemeral, tlsOpts.Mode)
	assert.Equal(t, "127.0.0.1", tlsOpts.TargetIP)

	req := cfg.CertificateRequest()
	assert.Equal(t, "192.168.1.50", req.TargetIP)
	assert.Equal(t, 30, req.ValidityDays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "requester: [unterminated")
	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "devident.yaml", "requester:\n  host: from-yaml\n")
	t.Setenv("DEVIDENT_REQUESTER_HOST", "from-env")
	t.Setenv("DEVIDENT_REQUESTER_PORT", "8443")
	t.Setenv("DEVIDENT_REQUESTER_TIMEOUT", "250ms")
	t.Setenv("DEVIDENT_REQUESTER_PLAIN", "true")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	rc := cfg.RequesterConfig()
	assert.Equal(t, "from-env", rc.Host)
	assert.Equal(t, 8443, rc.Port)
	assert.Equal(t, 250*time.Millisecond, rc.Timeout)
	assert.True(t, rc.Plain)
}

func TestLoadEnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "DEVIDENT_TARGET_IP=10.1.2.3\n")
	// godotenv sets the variable in the process; register it for cleanup.
	t.Setenv("DEVIDENT_TARGET_IP", "")
	require.NoError(t, os.Unsetenv("DEVIDENT_TARGET_IP"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", cfg.Identity.TargetIP)
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoadEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DEVIDENT_REQUESTER_PORT", "https"},
		{"DEVIDENT_DEBUG", "sometimes"},
		{"DEVIDENT_REQUESTER_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("", "")
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.key, ve.Field)
			assert.Equal(t, tt.value, ve.Value)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative days", func(c *Config) { c.Identity.ValidityDays = -1 }, "identity.validity_days"},
		{"key format", func(c *Config) { c.Identity.KeyFormat = "der" }, "identity.key_format"},
		{"tls mode", func(c *Config) { c.Responder.TLS.Mode = "auto" }, "responder.tls.mode"},
		{"port", func(c *Config) { c.Requester.Port = 70000 }, "requester.port"},
		{"timeout", func(c *Config) { c.Requester.Timeout = -time.Second }, "requester.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}
