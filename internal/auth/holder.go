package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew refreshes tokens slightly before their stated expiry so an
// in-flight request never carries a token that dies mid-call.
const expirySkew = 30 * time.Second

// Holder loads credentials from its source, refreshes them when expired,
// and writes every refresh back through to the same source. It keeps no
// credential of its own — all state lives in the source, so the holder
// works across stateless request cycles.
type Holder struct {
	source   Source
	fallback *oauth2.Config
	logger   *slog.Logger

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewHolder creates a Holder over the given source. fallback supplies the
// client ID/secret/token endpoint for credentials that do not carry their
// own (session-stored tokens from the consent flow).
func NewHolder(source Source, fallback *oauth2.Config, logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Holder{
		source:   source,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Load reads the current credential from the source. Returns (nil, nil)
// when the source holds none.
func (h *Holder) Load(ctx context.Context) (*Credential, error) {
	return h.source.Load(ctx)
}

// EnsureFresh returns a credential that is valid for immediate use.
//
// A nil credential fails with ErrAuthRequired. An expired credential with
// a refresh token is refreshed against its token endpoint and the result
// is persisted back to the source before returning; refresh failure (or a
// missing refresh token) fails with ErrAuthExpired. A credential that is
// not expired is returned unchanged.
func (h *Holder) EnsureFresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if cred == nil {
		return nil, ErrAuthRequired
	}

	if !h.expired(cred) {
		return cred, nil
	}

	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrAuthExpired)
	}

	fresh, err := h.refresh(ctx, cred)
	if err != nil {
		h.logger.Warn("credential refresh failed",
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %w", ErrAuthExpired, err)
	}

	// Write-through: the next Load from this source must observe the new
	// token, even when that load happens in a different request cycle.
	if saveErr := h.source.Save(ctx, fresh); saveErr != nil {
		return nil, fmt.Errorf("auth: persisting refreshed credential: %w", saveErr)
	}

	h.logger.Info("credential refreshed",
		slog.Time("new_expiry", fresh.Expiry),
	)

	return fresh, nil
}

// Fresh is Load followed by EnsureFresh.
func (h *Holder) Fresh(ctx context.Context) (*Credential, error) {
	cred, err := h.Load(ctx)
	if err != nil {
		return nil, err
	}

	return h.EnsureFresh(ctx, cred)
}

// expired reports whether the access token needs a refresh. A zero expiry
// means the source never recorded one (environment-provisioned blobs);
// those are treated as expired so the first use refreshes and persists a
// real expiry.
func (h *Holder) expired(cred *Credential) bool {
	if cred.AccessToken == "" {
		return true
	}

	if cred.Expiry.IsZero() {
		return cred.RefreshToken != ""
	}

	return h.now().After(cred.Expiry.Add(-expirySkew))
}

// refresh exchanges the refresh token for a new access token at the
// credential's token endpoint.
func (h *Holder) refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	cfg := h.configFor(cred)

	stale := &oauth2.Token{
		RefreshToken: cred.RefreshToken,
		// Expiry in the past forces TokenSource to hit the endpoint.
		Expiry: time.Unix(1, 0),
	}

	tok, err := cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	return FromToken(tok, cfg, cred), nil
}

// configFor builds the oauth2.Config for a credential, preferring the
// client material embedded in the credential over the fallback config.
func (h *Holder) configFor(cred *Credential) *oauth2.Config {
	cfg := &oauth2.Config{Scopes: Scopes}
	if h.fallback != nil {
		clone := *h.fallback
		cfg = &clone
	}

	if cred.ClientID != "" {
		cfg.ClientID = cred.ClientID
	}

	if cred.ClientSecret != "" {
		cfg.ClientSecret = cred.ClientSecret
	}

	if cred.TokenURL != "" {
		cfg.Endpoint.TokenURL = cred.TokenURL
	}

	if len(cred.Scopes) > 0 {
		cfg.Scopes = cred.Scopes
	}

	return cfg
}

// TokenProvider adapts a Holder to the bearer-token interface the Drive
// client consumes. ctx must outlive the provider — it is bound at
// construction because Token() has no context parameter.
type TokenProvider struct {
	ctx    context.Context //nolint:containedctx // bound per the consumer's contextless Token() contract
	holder *Holder
}

// NewTokenProvider binds ctx and holder into a TokenProvider.
func NewTokenProvider(ctx context.Context, holder *Holder) *TokenProvider {
	return &TokenProvider{ctx: ctx, holder: holder}
}

// Token loads, freshens, and returns the current access token.
func (p *TokenProvider) Token() (string, error) {
	cred, err := p.holder.Fresh(p.ctx)
	if err != nil {
		return "", err
	}

	return cred.AccessToken, nil
}
