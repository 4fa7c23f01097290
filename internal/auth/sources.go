package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Environment variable names for the statically provisioned source.
const (
	EnvCredentials = "GOOGLE_CREDENTIALS"
	EnvToken       = "GOOGLE_TOKEN"
)

// File and directory permissions for persisted token material.
const (
	filePerms = 0o600
	dirPerms  = 0o700
)

// EnvSource reads statically provisioned service credentials from the
// process environment: GOOGLE_CREDENTIALS holds the client descriptor
// (client_id, client_secret, token_uri) and GOOGLE_TOKEN the token blob.
// Save writes the refreshed token back into the process environment so a
// later Load in the same process observes it.
type EnvSource struct{}

// envClientInfo is the GOOGLE_CREDENTIALS JSON shape.
type envClientInfo struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_uri"`
}

// Load returns (nil, nil) unless both environment variables are set.
func (EnvSource) Load(_ context.Context) (*Credential, error) {
	credsJSON := os.Getenv(EnvCredentials)
	tokenJSON := os.Getenv(EnvToken)

	if credsJSON == "" || tokenJSON == "" {
		return nil, nil //nolint:nilnil // sentinel for "absent"
	}

	var info envClientInfo
	if err := json.Unmarshal([]byte(credsJSON), &info); err != nil {
		return nil, fmt.Errorf("auth: decoding %s: %w", EnvCredentials, err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(tokenJSON), &cred); err != nil {
		return nil, fmt.Errorf("auth: decoding %s: %w", EnvToken, err)
	}

	// The client descriptor wins over whatever the token blob carries.
	cred.ClientID = info.ClientID
	cred.ClientSecret = info.ClientSecret
	cred.TokenURL = info.TokenURL

	if len(cred.Scopes) == 0 {
		cred.Scopes = Scopes
	}

	return &cred, nil
}

// Save writes the credential back to GOOGLE_TOKEN.
func (EnvSource) Save(_ context.Context, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("auth: encoding token: %w", err)
	}

	if err := os.Setenv(EnvToken, string(data)); err != nil {
		return fmt.Errorf("auth: writing %s: %w", EnvToken, err)
	}

	return nil
}

// FileSource persists the credential as a JSON file (token.json in the
// original deployment). Writes are atomic: temp file in the same
// directory, fsync, rename.
type FileSource struct {
	Path string
}

// Load reads the credential file. Returns (nil, nil) if it does not exist.
func (s FileSource) Load(_ context.Context) (*Credential, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "absent"
	}

	if err != nil {
		return nil, fmt.Errorf("auth: reading %s: %w", s.Path, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("auth: decoding %s: %w", s.Path, err)
	}

	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return nil, fmt.Errorf("auth: %s holds no token material (re-login required)", s.Path)
	}

	return &cred, nil
}

// Save writes the credential file atomically with 0600 permissions.
// Never logs token values.
func (s FileSource) Save(_ context.Context, cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encoding token: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if mkErr := os.MkdirAll(dir, dirPerms); mkErr != nil {
		return fmt.Errorf("auth: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("auth: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: writing: %w", err)
	}

	// Flush to stable storage before rename so a power loss between close
	// and rename cannot leave an empty or partial token file behind.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("auth: renaming: %w", err)
	}

	success = true

	return nil
}

// Clear removes the credential file. Returns nil if it does not exist
// (already logged out).
func (s FileSource) Clear() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
