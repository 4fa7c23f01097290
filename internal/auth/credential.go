// Package auth owns the OAuth2 credential lifecycle for the single
// allowed identity: loading token material from its configured source,
// detecting expiry, refreshing against Google's token endpoint, and
// writing every refresh back through to the source so stateless request
// cycles observe the new token.
package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested on consent. drive.file limits access to files this
// application created; userinfo.email is needed to resolve the identity
// for the allow-list check.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Sentinel errors for the credential lifecycle.
var (
	// ErrAuthRequired means no credential exists; the caller must start
	// the consent flow.
	ErrAuthRequired = errors.New("auth: authentication required")

	// ErrAuthExpired means the credential could not be refreshed; only a
	// full re-consent recovers.
	ErrAuthExpired = errors.New("auth: credential expired")
)

// Credential is the OAuth2 token material plus the client configuration
// it was issued under. The JSON field names match the token blob the
// deployment environment provisions (GOOGLE_TOKEN).
type Credential struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenURL     string    `json:"token_uri,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// Token converts the credential to an oauth2.Token.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
		TokenType:    "Bearer",
	}
}

// FromToken builds a Credential from an oauth2.Token and the client
// config it was obtained with. An empty refresh token in tok falls back
// to prev's — a refresh response may omit it, and once obtained the
// refresh token must never be discarded short of logout.
func FromToken(tok *oauth2.Token, cfg *oauth2.Config, prev *Credential) *Credential {
	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}

	if cfg != nil {
		cred.TokenURL = cfg.Endpoint.TokenURL
		cred.ClientID = cfg.ClientID
		cred.ClientSecret = cfg.ClientSecret
		cred.Scopes = cfg.Scopes
	}

	if cred.RefreshToken == "" && prev != nil {
		cred.RefreshToken = prev.RefreshToken
	}

	return cred
}

// Source persists credential material. Load returns (nil, nil) when the
// source holds no credential. Save must make the credential observable by
// the next Load from the same source — the holder may run in a stateless
// request cycle with no shared process memory across requests.
type Source interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
}

// OAuthConfig builds the oauth2.Config for Google's endpoints from a
// client ID/secret pair. RedirectURL is filled in by the consumer (web
// callback route or CLI localhost listener).
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}
