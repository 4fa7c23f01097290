package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/config"
	"github.com/migralog/migralog/internal/docstore"
	"github.com/migralog/migralog/internal/gate"
	"github.com/migralog/migralog/internal/session"
	"github.com/migralog/migralog/internal/web"
)

// shutdownGrace is how long in-flight requests get to drain on shutdown.
const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := web.Options{
		Locator: docstore.NewLocator(cfg.Google.AllowedEmail, docstore.NewMemoryCache(), logger),
		HTTP:    defaultHTTPClient(),
		Logger:  logger,
	}

	switch {
	case cfg.Storage.Backend == config.BackendFile:
		fileStore, err := docstore.NewFileStore(cfg.Storage.FilePath, logger)
		if err != nil {
			return fmt.Errorf("opening file store: %w", err)
		}
		defer fileStore.Close()

		opts.Fixed = fileStore

	case cfg.Storage.CredentialSource == config.SourceSession:
		sessions, err := session.Open(ctx, cfg.Storage.SessionDB, logger)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		defer sessions.Close()

		oauthCfg := auth.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
		oauthCfg.RedirectURL = cfg.Server.PublicURL + "/auth/callback"

		opts.Sessions = sessions
		opts.OAuth = oauthCfg
		opts.Gate = gate.New(cfg.Google.AllowedEmail, oauthCfg, gate.GoogleResolver{}, logger)

	default:
		// Statically provisioned credential: authorize the identity behind
		// it once, before serving a single request.
		holder := staticHolder(cfg, logger)

		cred, err := holder.Fresh(ctx)
		if err != nil {
			return fmt.Errorf("loading provisioned credential: %w", err)
		}

		g := gate.New(cfg.Google.AllowedEmail,
			auth.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret),
			gate.GoogleResolver{}, logger)

		ident, err := g.Authorize(ctx, cred)
		if err != nil {
			return fmt.Errorf("authorizing provisioned credential: %w", err)
		}

		logger.Info("serving as provisioned identity", "email", ident.Email)

		remote := staticRemote(ctx, cfg, logger)
		opts.Remote = remote
		opts.Fixed = docstore.NewDriveStore(remote, opts.Locator, cfg.Document.Name, logger)
	}

	srv := web.New(cfg, opts)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(srv.Listen)

	eg.Go(func() error {
		<-egCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	// Periodically sweep sessions abandoned mid-consent or long logged
	// out. Only meaningful in interactive mode.
	if opts.Sessions != nil {
		eg.Go(func() error {
			ticker := time.NewTicker(6 * time.Hour)
			defer ticker.Stop()

			for {
				select {
				case <-egCtx.Done():
					return nil
				case <-ticker.C:
					if _, err := opts.Sessions.PurgeOlderThan(egCtx, 30*24*time.Hour); err != nil {
						logger.Warn("session purge failed", "error", err.Error())
					}
				}
			}
		})
	}

	return eg.Wait()
}
