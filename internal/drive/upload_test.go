package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUploadSession(t *testing.T) {
	var sessionURL string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
		assert.Equal(t, "application/json", r.Header.Get("X-Upload-Content-Type"))
		assert.Equal(t, "2", r.Header.Get("X-Upload-Content-Length"))

		var meta createFileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&meta))
		assert.Equal(t, "doc.json", meta.Name)
		assert.Equal(t, []string{"root"}, meta.Parents)

		w.Header().Set("Location", sessionURL)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sessionURL = srv.URL + "/upload-session/xyz"

	client := newTestClient(t, srv.URL)
	session, err := client.CreateUploadSession(context.Background(), "doc.json", "application/json", []string{"root"}, 2)
	require.NoError(t, err)
	assert.Equal(t, sessionURL, session.URL)
}

func TestUpdateUploadSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/files/abc123", r.URL.Path)
		assert.Equal(t, "resumable", r.URL.Query().Get("uploadType"))

		w.Header().Set("Location", "https://upload.example.com/session")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	session, err := client.UpdateUploadSession(context.Background(), "abc123", "application/json", 42)
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example.com/session", session.URL)
}

func TestInitiateUpload_MissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CreateUploadSession(context.Background(), "doc.json", "application/json", nil, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
}

func TestInitiateUpload_RetriesOn503(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.Header().Set("Location", "https://upload.example.com/session")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	session, err := client.UpdateUploadSession(context.Background(), "abc123", "application/json", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example.com/session", session.URL)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUploadChunk_Intermediate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "bytes 0-262143/1048576000", r.Header.Get("Content-Range"))
		// The session URL is pre-authenticated; no bearer token goes out.
		assert.Empty(t, r.Header.Get("Authorization"))

		w.WriteHeader(statusResumeIncomplete)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	session := &UploadSession{URL: srv.URL + "/session"}

	f, err := client.UploadChunk(context.Background(),
		session, strings.NewReader("data"), 0, 262144, 1048576000)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestUploadChunk_Final(t *testing.T) {
	payload := []byte(`{"log":[]}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, body)

		_, _ = w.Write([]byte(`{"id":"abc123","name":"doc.json"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	session := &UploadSession{URL: srv.URL + "/session"}

	size := int64(len(payload))
	f, err := client.UploadChunk(context.Background(), session, bytes.NewReader(payload), 0, size, size)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "abc123", f.ID)
}

func TestUploadChunk_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"session expired"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	session := &UploadSession{URL: srv.URL + "/session"}

	_, err := client.UploadChunk(context.Background(), session, strings.NewReader("x"), 0, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
