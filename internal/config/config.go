// Package config loads migralog configuration from a TOML file with
// environment-variable overrides layered on top: defaults -> config file
// -> environment. The serve command's CLI flags win over all of it.
package config

import (
	"os"
	"path/filepath"
)

// Backend names for the document store.
const (
	BackendDrive = "drive"
	BackendFile  = "file"
)

// Credential source names.
const (
	SourceSession = "session" // interactive consent, credential per web session
	SourceEnv     = "env"     // GOOGLE_CREDENTIALS + GOOGLE_TOKEN environment pair
	SourceFile    = "file"    // token.json written by `migralog login`
)

// Config is the full application configuration.
type Config struct {
	LogLevel string `toml:"log_level"`

	Server   ServerConfig   `toml:"server"`
	Google   GoogleConfig   `toml:"google"`
	Document DocumentConfig `toml:"document"`
	Storage  StorageConfig  `toml:"storage"`
}

// ServerConfig configures the web collaborator.
type ServerConfig struct {
	Listen    string `toml:"listen"`
	StaticDir string `toml:"static_dir"`
	IndexFile string `toml:"index_file"`
	// PublicURL is the externally visible base URL, used to build the
	// OAuth redirect URL for the web callback route.
	PublicURL string `toml:"public_url"`
}

// GoogleConfig identifies the OAuth client and the allowed principal.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	// AllowedEmail is the single identity permitted past the gate.
	// Compared exactly, case-sensitive.
	AllowedEmail string `toml:"allowed_email"`
}

// DocumentConfig names the one document this deployment manages.
type DocumentConfig struct {
	Name string `toml:"name"`
}

// StorageConfig selects the document backend and credential source.
type StorageConfig struct {
	Backend          string `toml:"backend"`           // "drive" or "file"
	FilePath         string `toml:"file_path"`         // file backend: document path
	SessionDB        string `toml:"session_db"`        // session credential source: sqlite path
	TokenPath        string `toml:"token_path"`        // file credential source: token.json path
	CredentialSource string `toml:"credential_source"` // "session", "env", or "file"
}

// Default values. The document name matches what every deployment of the
// original service created, so an upgraded instance finds its data.
const (
	defaultListen       = ":8080"
	defaultStaticDir    = "static"
	defaultIndexFile    = "templates/index.html"
	defaultPublicURL    = "http://localhost:8080"
	defaultDocumentName = "headache_data.json"
	defaultLogLevel     = "info"
)

// DefaultConfig returns a Config populated with all default values.
// Used as the starting point for TOML decoding so unset fields retain
// defaults, and as the fallback when no config file exists.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		LogLevel: defaultLogLevel,
		Server: ServerConfig{
			Listen:    defaultListen,
			StaticDir: defaultStaticDir,
			IndexFile: defaultIndexFile,
			PublicURL: defaultPublicURL,
		},
		Document: DocumentConfig{
			Name: defaultDocumentName,
		},
		Storage: StorageConfig{
			Backend:          BackendDrive,
			FilePath:         filepath.Join(dataDir, "document.json"),
			SessionDB:        filepath.Join(dataDir, "sessions.db"),
			TokenPath:        filepath.Join(dataDir, "token.json"),
			CredentialSource: SourceSession,
		},
	}
}

// DefaultDataDir returns the per-user data directory for token and
// session state, honoring the platform config dir convention.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, "migralog")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "migralog.toml")
}
