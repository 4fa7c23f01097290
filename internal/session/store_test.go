package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.False(t, sess.Authorized())

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Empty(t, got.Email)
	assert.Nil(t, got.Credential)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetState(ctx, sess.ID, "anti-forgery"))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "anti-forgery", got.OAuthState)
}

func TestSetState_UnknownSession(t *testing.T) {
	s := newTestStore(t)

	err := s.SetState(context.Background(), "nope", "state")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetIdentity_AuthorizesAndClearsState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetState(ctx, sess.ID, "pending"))

	cred := []byte(`{"token":"access","refresh_token":"refresh"}`)
	require.NoError(t, s.SetIdentity(ctx, sess.ID, "user@example.com", cred))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", got.Email)
	assert.Equal(t, cred, got.Credential)
	assert.Empty(t, got.OAuthState, "consumed state token must not survive")
	assert.True(t, got.Authorized())
}

func TestSetCredential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetIdentity(ctx, sess.ID, "user@example.com", []byte(`{"token":"old"}`)))

	// Refresh write-through replaces only the credential blob.
	require.NoError(t, s.SetCredential(ctx, sess.ID, []byte(`{"token":"new"}`)))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", got.Email)
	assert.Equal(t, []byte(`{"token":"new"}`), got.Credential)
}

func TestDelete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, sess.ID))
	require.NoError(t, s.Delete(ctx, sess.ID))

	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale, err := s.Create(ctx)
	require.NoError(t, err)

	// Backdate the stale session well past any cutoff.
	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-48*time.Hour).UnixNano(), stale.ID)
	require.NoError(t, err)

	fresh, err := s.Create(ctx)
	require.NoError(t, err)

	n, err := s.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestOpen_Reopens(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := Open(ctx, dbPath, slog.Default())
	require.NoError(t, err)

	sess, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopen: migrations are idempotent and the data survives.
	s2, err := Open(ctx, dbPath, slog.Default())
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}
