package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGoogleResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer user-token")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"user@example.com","verified_email":true}`))
	}))
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "user-token"})

	ident, err := GoogleResolver{Endpoint: srv.URL}.Resolve(context.Background(), ts)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", ident.Email)
}

func TestGoogleResolver_NoEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "user-token"})

	_, err := GoogleResolver{Endpoint: srv.URL}.Resolve(context.Background(), ts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no email")
}

func TestGoogleResolver_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "user-token"})

	_, err := GoogleResolver{Endpoint: srv.URL}.Resolve(context.Background(), ts)
	require.Error(t, err)
}
