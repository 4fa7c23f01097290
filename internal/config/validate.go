package config

import (
	"errors"
	"fmt"
)

// Validate checks cross-field consistency of a resolved config.
// Credential-related fields are only demanded by the modes that use them,
// so a file-backend development setup needs no Google client at all.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Storage.Backend {
	case BackendDrive, BackendFile:
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q",
			BackendDrive, BackendFile, cfg.Storage.Backend))
	}

	switch cfg.Storage.CredentialSource {
	case SourceSession, SourceEnv, SourceFile:
	default:
		errs = append(errs, fmt.Errorf("storage.credential_source must be %q, %q or %q, got %q",
			SourceSession, SourceEnv, SourceFile, cfg.Storage.CredentialSource))
	}

	if cfg.Document.Name == "" {
		errs = append(errs, errors.New("document.name must not be empty"))
	}

	if cfg.Storage.Backend == BackendDrive {
		if cfg.Google.AllowedEmail == "" {
			errs = append(errs, errors.New("google.allowed_email is required for the drive backend"))
		}

		if cfg.Storage.CredentialSource == SourceSession && cfg.Google.ClientID == "" {
			errs = append(errs, errors.New("google.client_id is required for the session credential source"))
		}
	}

	if cfg.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}

	return errors.Join(errs...)
}
