package web

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/session"
)

func TestSessionSource_RoundTrip(t *testing.T) {
	ctx := context.Background()

	sessions, err := session.Open(ctx, filepath.Join(t.TempDir(), "sessions.db"), slog.Default())
	require.NoError(t, err)
	defer sessions.Close()

	sess, err := sessions.Create(ctx)
	require.NoError(t, err)

	src := &sessionSource{store: sessions, id: sess.ID}

	// Nothing stored yet.
	cred, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	// Write-through and read back.
	require.NoError(t, src.Save(ctx, &auth.Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
	}))

	cred, err = src.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "access", cred.AccessToken)
	assert.Equal(t, "refresh", cred.RefreshToken)
}

func TestSessionSource_DeletedSession(t *testing.T) {
	ctx := context.Background()

	sessions, err := session.Open(ctx, filepath.Join(t.TempDir(), "sessions.db"), slog.Default())
	require.NoError(t, err)
	defer sessions.Close()

	src := &sessionSource{store: sessions, id: "gone"}

	cred, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
}
