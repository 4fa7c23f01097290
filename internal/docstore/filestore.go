package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps the document in a plain local file — the original
// deployment's first storage backend, still used for development. Reads
// are served from an in-memory copy that an fsnotify watcher invalidates
// when anything else touches the file.
type FileStore struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	cached json.RawMessage // nil = must re-read
}

// NewFileStore creates a FileStore for path and starts the watcher. The
// watch is on the parent directory because the file itself may not exist
// yet. Call Close when done.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("docstore: creating %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("docstore: creating watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("docstore: watching %s: %w", dir, err)
	}

	s := &FileStore{
		path:    path,
		logger:  logger,
		watcher: watcher,
	}

	go s.watch()

	return s, nil
}

// watch invalidates the cached document whenever the file changes on
// disk. Runs until the watcher is closed.
func (s *FileStore) watch() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if ev.Name != s.path {
				continue
			}

			s.mu.Lock()
			s.cached = nil
			s.mu.Unlock()

			s.logger.Debug("document file changed on disk, cache invalidated",
				slog.String("op", ev.Op.String()),
			)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			s.logger.Warn("document file watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher.
func (s *FileStore) Close() error {
	return s.watcher.Close()
}

// Fetch returns the document, creating it with empty-object content on
// first use. Existing-but-invalid content fails with ErrCorruptDocument.
func (s *FileStore) Fetch(_ context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		out := make(json.RawMessage, len(s.cached))
		copy(out, s.cached)

		return out, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if writeErr := writeFileAtomic(s.path, emptyDocument); writeErr != nil {
			return nil, fmt.Errorf("%w: creating %s: %w", ErrStoreUnavailable, s.path, writeErr)
		}

		s.cached = append(json.RawMessage(nil), emptyDocument...)

		return append(json.RawMessage(nil), emptyDocument...), nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStoreUnavailable, s.path, err)
	}

	if len(data) == 0 || !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s holds %d bytes of non-JSON content", ErrCorruptDocument, s.path, len(data))
	}

	s.cached = data

	out := make(json.RawMessage, len(data))
	copy(out, data)

	return out, nil
}

// Replace writes doc as the full new file content, atomically.
func (s *FileStore) Replace(_ context.Context, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("%w: replacement payload is not valid JSON", ErrCorruptDocument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, doc); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrStoreUnavailable, s.path, err)
	}

	s.cached = append(json.RawMessage(nil), doc...)

	return nil
}

// File permissions for the local document file.
const (
	filePerms = 0o600
	dirPerms  = 0o700
)

// writeFileAtomic writes data via temp file + rename in the target's
// directory, so readers never observe a torn document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".doc-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming: %w", err)
	}

	success = true

	return nil
}
