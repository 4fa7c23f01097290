package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySource is an in-memory credential source for holder tests.
type memorySource struct {
	cred  *Credential
	saves int
}

func (m *memorySource) Load(_ context.Context) (*Credential, error) {
	return m.cred, nil
}

func (m *memorySource) Save(_ context.Context, cred *Credential) error {
	m.cred = cred
	m.saves++

	return nil
}

// newTokenServer returns an httptest server that answers token refresh
// requests with the given response body.
func newTokenServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func newTestHolder(source Source) *Holder {
	h := NewHolder(source, nil, slog.Default())
	h.now = fixedNow

	return h
}

func TestEnsureFresh_NilCredential(t *testing.T) {
	h := newTestHolder(&memorySource{})

	_, err := h.EnsureFresh(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestEnsureFresh_ValidPassesThrough(t *testing.T) {
	source := &memorySource{}
	h := newTestHolder(source)

	cred := &Credential{
		AccessToken: "valid",
		Expiry:      fixedNow().Add(time.Hour),
	}

	got, err := h.EnsureFresh(context.Background(), cred)
	require.NoError(t, err)
	assert.Same(t, cred, got)
	assert.Zero(t, source.saves, "no refresh, no write-through")
}

func TestEnsureFresh_ExpiredWithoutRefreshToken(t *testing.T) {
	h := newTestHolder(&memorySource{})

	_, err := h.EnsureFresh(context.Background(), &Credential{
		AccessToken: "stale",
		Expiry:      fixedNow().Add(-time.Hour),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestEnsureFresh_RefreshesAndPersists(t *testing.T) {
	srv := newTokenServer(t, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	defer srv.Close()

	source := &memorySource{}
	h := newTestHolder(source)

	got, err := h.EnsureFresh(context.Background(), &Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh-token",
		TokenURL:     srv.URL,
		ClientID:     "client",
		Expiry:       fixedNow().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)

	// Write-through: the source observed the refresh before we returned.
	require.Equal(t, 1, source.saves)
	assert.Equal(t, "fresh", source.cred.AccessToken)
}

func TestEnsureFresh_PreservesRefreshToken(t *testing.T) {
	// Google omits refresh_token from refresh responses; the previous one
	// must survive.
	srv := newTokenServer(t, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	defer srv.Close()

	source := &memorySource{}
	h := newTestHolder(source)

	got, err := h.EnsureFresh(context.Background(), &Credential{
		AccessToken:  "stale",
		RefreshToken: "keep-me",
		TokenURL:     srv.URL,
		Expiry:       fixedNow().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "keep-me", got.RefreshToken)
	assert.Equal(t, "keep-me", source.cred.RefreshToken)
}

func TestEnsureFresh_ZeroExpiryTreatedAsExpired(t *testing.T) {
	// Environment-provisioned blobs carry no expiry; the first use must
	// refresh so a real expiry gets persisted.
	srv := newTokenServer(t, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	defer srv.Close()

	source := &memorySource{}
	h := newTestHolder(source)

	got, err := h.EnsureFresh(context.Background(), &Credential{
		AccessToken:  "unknown-age",
		RefreshToken: "refresh-token",
		TokenURL:     srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)
	assert.False(t, source.cred.Expiry.IsZero())
}

func TestEnsureFresh_ExpirySkew(t *testing.T) {
	h := newTestHolder(&memorySource{})

	// Inside the skew window counts as expired even though the stated
	// expiry is still ahead.
	_, err := h.EnsureFresh(context.Background(), &Credential{
		AccessToken: "about-to-die",
		Expiry:      fixedNow().Add(10 * time.Second),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestEnsureFresh_RefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	source := &memorySource{}
	h := newTestHolder(source)

	_, err := h.EnsureFresh(context.Background(), &Credential{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		TokenURL:     srv.URL,
		Expiry:       fixedNow().Add(-time.Hour),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Zero(t, source.saves)
}

func TestFresh_LoadsFromSource(t *testing.T) {
	source := &memorySource{cred: &Credential{
		AccessToken: "valid",
		Expiry:      fixedNow().Add(time.Hour),
	}}
	h := newTestHolder(source)

	cred, err := h.Fresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "valid", cred.AccessToken)
}

func TestFresh_EmptySource(t *testing.T) {
	h := newTestHolder(&memorySource{})

	_, err := h.Fresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestTokenProvider(t *testing.T) {
	source := &memorySource{cred: &Credential{
		AccessToken: "bearer-me",
		Expiry:      fixedNow().Add(time.Hour),
	}}
	h := newTestHolder(source)

	tok, err := NewTokenProvider(context.Background(), h).Token()
	require.NoError(t, err)
	assert.Equal(t, "bearer-me", tok)
}
