// Package docstore reads and writes the single application document as
// one opaque JSON value. The Locator resolves the fixed logical document
// name to a stable remote identifier (creating the document on first
// use); the stores perform whole-document fetch and replace against it.
//
// Replace is not a merge: two overlapping writers resolve to
// last-writer-wins at the remote API layer, with no version token. That
// is a deliberate trade-off for a single-allowed-user system.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/migralog/migralog/internal/drive"
)

// Sentinel errors surfaced to the request boundary.
var (
	// ErrStoreUnavailable marks a transient remote failure. Safe to retry
	// at the caller's discretion; no retry policy is built in here beyond
	// the HTTP client's own backoff.
	ErrStoreUnavailable = errors.New("docstore: store unavailable")

	// ErrCorruptDocument means the remote content is empty or not valid
	// JSON. Never auto-repaired — the boundary decides what to do.
	ErrCorruptDocument = errors.New("docstore: corrupt document")

	// ErrTransferFailed marks a failed chunk during upload or download.
	// The whole operation is safe to retry: the remote API keeps the
	// prior committed version visible until an upload fully commits.
	ErrTransferFailed = errors.New("docstore: transfer failed")
)

// Handle binds the fixed logical document name to the remote identifier
// the storage service assigned it. At most one handle exists per logical
// name per process lifetime.
type Handle struct {
	LogicalName string
	RemoteID    string
}

// Store performs whole-document reads and full replacements. The document
// has no structure as far as the store is concerned.
type Store interface {
	Fetch(ctx context.Context) (json.RawMessage, error)
	Replace(ctx context.Context, doc json.RawMessage) error
}

// Remote is the subset of the Drive client the locator and store consume.
// In interactive deployments a fresh Remote is built per request around
// that request's session credential; the locator and its cache are shared.
type Remote interface {
	FindByName(ctx context.Context, name string) (*drive.File, error)
	GetFile(ctx context.Context, fileID string) (*drive.File, error)
	GrantWriter(ctx context.Context, fileID, email string) error
	CreateUploadSession(ctx context.Context, name, mimeType string, parents []string, size int64) (*drive.UploadSession, error)
	UpdateUploadSession(ctx context.Context, fileID, mimeType string, size int64) (*drive.UploadSession, error)
	UploadChunk(ctx context.Context, session *drive.UploadSession, chunk io.Reader, offset, length, total int64) (*drive.File, error)
	DownloadRange(ctx context.Context, fileID string, offset, length int64, w io.Writer) (int64, error)
}
