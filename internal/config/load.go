package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Environment variable names for overrides. The Google client pair and
// allowed email are commonly provisioned through the environment on
// hosted deployments, so they get first-class variables.
const (
	EnvConfig       = "MIGRALOG_CONFIG"
	EnvListen       = "MIGRALOG_LISTEN"
	EnvPublicURL    = "MIGRALOG_PUBLIC_URL"
	EnvDocName      = "MIGRALOG_DOCUMENT_NAME"
	EnvBackend      = "MIGRALOG_BACKEND"
	EnvCredSource   = "MIGRALOG_CREDENTIAL_SOURCE"
	EnvLogLevel     = "MIGRALOG_LOG_LEVEL"
	EnvClientID     = "GOOGLE_CLIENT_ID"
	EnvClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvAllowedEmail = "GOOGLE_USER_EMAIL"
)

// Load reads and parses a TOML config file, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads the config file if it exists, otherwise starts from
// defaults. Environment overrides and validation apply either way — this
// supports zero-config deployments driven entirely by the environment.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		applyEnv(cfg)

		if valErr := Validate(cfg); valErr != nil {
			return nil, fmt.Errorf("config: validation failed: %w", valErr)
		}

		return cfg, nil
	}

	return Load(path)
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	setIfPresent(EnvListen, &cfg.Server.Listen)
	setIfPresent(EnvPublicURL, &cfg.Server.PublicURL)
	setIfPresent(EnvDocName, &cfg.Document.Name)
	setIfPresent(EnvBackend, &cfg.Storage.Backend)
	setIfPresent(EnvCredSource, &cfg.Storage.CredentialSource)
	setIfPresent(EnvLogLevel, &cfg.LogLevel)
	setIfPresent(EnvClientID, &cfg.Google.ClientID)
	setIfPresent(EnvClientSecret, &cfg.Google.ClientSecret)
	setIfPresent(EnvAllowedEmail, &cfg.Google.AllowedEmail)
}

func setIfPresent(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
