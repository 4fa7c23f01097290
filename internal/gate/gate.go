// Package gate maps an authenticated OAuth2 identity onto the single
// allowed principal. Any other identity is rejected outright: the caller
// must discard all session state for it, because authorization here is a
// hard boundary, not a warning.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/migralog/migralog/internal/auth"
)

// ErrRejected means the authenticated identity is not the allowed
// principal. Terminal for the session; the caller clears it entirely.
var ErrRejected = errors.New("gate: identity not allowed")

// Identity is the provider-resolved identity of an authenticated session.
// Immutable for the session lifetime.
type Identity struct {
	Email string
}

// Resolver turns a token source into the identity it belongs to.
type Resolver interface {
	Resolve(ctx context.Context, ts oauth2.TokenSource) (*Identity, error)
}

// Gate performs the consent-callback exchange and the allow-list check.
type Gate struct {
	allowedEmail string
	oauth        *oauth2.Config
	resolver     Resolver
	logger       *slog.Logger
}

// New creates a Gate for the given allowed principal. oauth must carry the
// redirect URL of the web callback route.
func New(allowedEmail string, oauth *oauth2.Config, resolver Resolver, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{
		allowedEmail: allowedEmail,
		oauth:        oauth,
		resolver:     resolver,
		logger:       logger,
	}
}

// ConsentURL returns the provider consent URL carrying the per-request
// anti-forgery state token. access_type=offline and prompt=consent force
// a refresh token even on repeat consent.
func (g *Gate) ConsentURL(state string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// HandleCallback exchanges the authorization code, resolves the identity,
// and enforces the allow-list. On mismatch it returns ErrRejected and no
// credential — nothing of the rejected identity may be retained.
func (g *Gate) HandleCallback(ctx context.Context, code string) (*auth.Credential, *Identity, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("gate: code exchange failed: %w", err)
	}

	ident, err := g.resolver.Resolve(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, nil, fmt.Errorf("gate: resolving identity: %w", err)
	}

	if err := g.check(ident); err != nil {
		return nil, nil, err
	}

	g.logger.Info("identity authorized", slog.String("email", ident.Email))

	return auth.FromToken(tok, g.oauth, nil), ident, nil
}

// Authorize resolves the identity behind an existing credential and
// enforces the allow-list. Used once per process for statically
// provisioned credentials, where no interactive consent happens.
func (g *Gate) Authorize(ctx context.Context, cred *auth.Credential) (*Identity, error) {
	ident, err := g.resolver.Resolve(ctx, oauth2.StaticTokenSource(cred.Token()))
	if err != nil {
		return nil, fmt.Errorf("gate: resolving identity: %w", err)
	}

	if err := g.check(ident); err != nil {
		return nil, err
	}

	return ident, nil
}

// check compares the identity to the allowed principal. Exact match,
// case-sensitive as configured.
func (g *Gate) check(ident *Identity) error {
	if ident.Email != g.allowedEmail {
		g.logger.Warn("identity rejected", slog.String("email", ident.Email))

		return fmt.Errorf("%w: %s", ErrRejected, ident.Email)
	}

	return nil
}
