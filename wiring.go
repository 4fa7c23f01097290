package main

import (
	"context"
	"log/slog"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/config"
	"github.com/migralog/migralog/internal/docstore"
	"github.com/migralog/migralog/internal/drive"
)

// credentialSource returns the statically provisioned credential source:
// the GOOGLE_CREDENTIALS/GOOGLE_TOKEN environment pair, or the token
// file written by `migralog login`. The session source is a web-layer
// concern and never used from the CLI.
func credentialSource(cfg *config.Config) auth.Source {
	if cfg.Storage.CredentialSource == config.SourceEnv {
		return auth.EnvSource{}
	}

	return auth.FileSource{Path: cfg.Storage.TokenPath}
}

// staticHolder builds a credential holder over the static source.
func staticHolder(cfg *config.Config, logger *slog.Logger) *auth.Holder {
	oauthCfg := auth.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)

	return auth.NewHolder(credentialSource(cfg), oauthCfg, logger)
}

// staticRemote builds a Drive client whose tokens come from the static
// credential source. ctx must outlive every call made through the client.
func staticRemote(ctx context.Context, cfg *config.Config, logger *slog.Logger) *drive.Client {
	holder := staticHolder(cfg, logger)

	return drive.NewClient(
		drive.DefaultBaseURL,
		drive.DefaultUploadBaseURL,
		defaultHTTPClient(),
		auth.NewTokenProvider(ctx, holder),
		logger,
	)
}

// buildStore assembles the document store for CLI commands: the local
// file backend, or a Drive store over the static credential source. The
// returned closer releases backend resources.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docstore.Store, func() error, error) {
	if cfg.Storage.Backend == config.BackendFile {
		fs, err := docstore.NewFileStore(cfg.Storage.FilePath, logger)
		if err != nil {
			return nil, nil, err
		}

		return fs, fs.Close, nil
	}

	locator := docstore.NewLocator(cfg.Google.AllowedEmail, docstore.NewMemoryCache(), logger)
	remote := staticRemote(ctx, cfg, logger)

	return docstore.NewDriveStore(remote, locator, cfg.Document.Name, logger), func() error { return nil }, nil
}
