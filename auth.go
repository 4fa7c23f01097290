package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/gate"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Google using the browser flow",
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved authentication token",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated identity",
		RunE:  runWhoami,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg
	ctx := context.Background()

	if cfg.Google.ClientID == "" {
		return fmt.Errorf("no OAuth client configured — set google.client_id or %s", "GOOGLE_CLIENT_ID")
	}

	source := auth.FileSource{Path: cfg.Storage.TokenPath}
	oauthCfg := auth.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)

	cred, err := auth.LoginWithBrowser(ctx, source, oauthCfg, openBrowser, logger)
	if err != nil {
		return err
	}

	// The gate applies to the CLI too: a login as the wrong account is
	// discarded immediately.
	if cfg.Google.AllowedEmail != "" {
		g := gate.New(cfg.Google.AllowedEmail, oauthCfg, gate.GoogleResolver{}, logger)

		if _, err := g.Authorize(ctx, cred); err != nil {
			if clearErr := source.Clear(); clearErr != nil {
				logger.Warn("clearing rejected token failed", "error", clearErr.Error())
			}

			return err
		}
	}

	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	cfg := resolvedCfg

	if err := (auth.FileSource{Path: cfg.Storage.TokenPath}).Clear(); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}

func runWhoami(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg
	ctx := context.Background()

	holder := staticHolder(cfg, logger)

	cred, err := holder.Fresh(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrAuthRequired) {
			return fmt.Errorf("not logged in — run 'migralog login' first")
		}

		return err
	}

	ident, err := gate.GoogleResolver{}.Resolve(ctx, oauth2.StaticTokenSource(cred.Token()))
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{"email": ident.Email})
	}

	fmt.Println(ident.Email)

	return nil
}

// openBrowser launches the platform's default browser at url.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	default:
		return fmt.Errorf("unsupported platform %s — open the URL manually", runtime.GOOS)
	}
}
