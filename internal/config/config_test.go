package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "headache_data.json", cfg.Document.Name)
	assert.Equal(t, BackendDrive, cfg.Storage.Backend)
	assert.Equal(t, SourceSession, cfg.Storage.CredentialSource)
	assert.Equal(t, "info", cfg.LogLevel)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "migralog.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[server]
listen = ":9090"

[google]
allowed_email = "user@example.com"
client_id = "client"

[document]
name = "custom.json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "custom.json", cfg.Document.Name)
	// Untouched fields keep their defaults.
	assert.Equal(t, BackendDrive, cfg.Storage.Backend)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[google]
allowed_email = "file@example.com"
client_id = "client"
`)

	t.Setenv(EnvAllowedEmail, "env@example.com")
	t.Setenv(EnvListen, ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", cfg.Google.AllowedEmail)
	assert.Equal(t, ":7070", cfg.Server.Listen)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, `this is not toml ===`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Setenv(EnvAllowedEmail, "user@example.com")
	t.Setenv(EnvClientID, "client")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", cfg.Google.AllowedEmail)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Google.AllowedEmail = "user@example.com"
		cfg.Google.ClientID = "client"

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(_ *Config) {}, ""},
		{
			"unknown backend",
			func(c *Config) { c.Storage.Backend = "s3" },
			"storage.backend",
		},
		{
			"unknown credential source",
			func(c *Config) { c.Storage.CredentialSource = "vault" },
			"storage.credential_source",
		},
		{
			"empty document name",
			func(c *Config) { c.Document.Name = "" },
			"document.name",
		},
		{
			"drive backend requires allowed email",
			func(c *Config) { c.Google.AllowedEmail = "" },
			"allowed_email",
		},
		{
			"session source requires client id",
			func(c *Config) { c.Google.ClientID = "" },
			"client_id",
		},
		{
			"file backend needs no google config",
			func(c *Config) {
				c.Storage.Backend = BackendFile
				c.Google.AllowedEmail = ""
				c.Google.ClientID = ""
			},
			"",
		},
		{
			"empty listen address",
			func(c *Config) { c.Server.Listen = "" },
			"server.listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
