package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/migralog/migralog/internal/drive"
)

// defaultChunkSize is 4 MiB — 16 upload alignment units.
const defaultChunkSize = 16 * drive.ChunkAlignment

// DriveStore reads and replaces the document in Google Drive. It drives
// the chunked transfer loops to completion itself; any chunk failure
// surfaces as ErrTransferFailed with no partial object visible to
// subsequent reads.
type DriveStore struct {
	remote    Remote
	locator   *Locator
	logical   string
	chunkSize int64
	logger    *slog.Logger
}

// NewDriveStore creates a store for the document named logical. The
// locator (and its handle cache) may be shared across stores built for
// different request credentials.
func NewDriveStore(remote Remote, locator *Locator, logical string, logger *slog.Logger) *DriveStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &DriveStore{
		remote:    remote,
		locator:   locator,
		logical:   logical,
		chunkSize: defaultChunkSize,
		logger:    logger,
	}
}

// Fetch downloads the whole document and decodes it as UTF-8 JSON.
// Empty or malformed content fails with ErrCorruptDocument rather than
// silently returning a default.
func (s *DriveStore) Fetch(ctx context.Context) (json.RawMessage, error) {
	handle, err := s.locator.Resolve(ctx, s.remote, s.logical)
	if err != nil {
		return nil, err
	}

	meta, err := s.remote.GetFile(ctx, handle.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading metadata of %q: %w", ErrStoreUnavailable, s.logical, err)
	}

	var buf bytes.Buffer

	for offset := int64(0); offset < meta.Size; {
		length := min(s.chunkSize, meta.Size-offset)

		n, chunkErr := s.remote.DownloadRange(ctx, handle.RemoteID, offset, length, &buf)
		if chunkErr != nil {
			return nil, fmt.Errorf("%w: downloading %q at offset %d: %w", ErrTransferFailed, s.logical, offset, chunkErr)
		}

		if n == 0 {
			return nil, fmt.Errorf("%w: downloading %q stalled at offset %d", ErrTransferFailed, s.logical, offset)
		}

		offset += n
	}

	doc := buf.Bytes()
	if len(doc) == 0 || !json.Valid(doc) {
		return nil, fmt.Errorf("%w: %q holds %d bytes of non-JSON content", ErrCorruptDocument, s.logical, len(doc))
	}

	s.logger.Debug("document fetched",
		slog.String("name", s.logical),
		slog.Int("bytes", len(doc)),
	)

	return json.RawMessage(doc), nil
}

// Replace serializes doc as the full new content of the document. Not a
// merge: concurrent writers resolve last-writer-wins. The remote's
// resumable upload keeps the prior version visible until the final chunk
// commits, so a failed upload never leaves a torn document behind.
func (s *DriveStore) Replace(ctx context.Context, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("%w: replacement payload is not valid JSON", ErrCorruptDocument)
	}

	handle, err := s.locator.Resolve(ctx, s.remote, s.logical)
	if err != nil {
		return err
	}

	size := int64(len(doc))

	session, err := s.remote.UpdateUploadSession(ctx, handle.RemoteID, "application/json", size)
	if err != nil {
		return fmt.Errorf("%w: opening upload for %q: %w", ErrStoreUnavailable, s.logical, err)
	}

	if err := s.uploadAll(ctx, session, bytes.NewReader(doc), size); err != nil {
		return err
	}

	s.logger.Info("document replaced",
		slog.String("name", s.logical),
		slog.Int64("bytes", size),
	)

	return nil
}

// UploadAttachment streams an opaque file (questionnaire PDFs) into the
// remote store next to the document, through the same resumable upload
// path. Returns the created file's metadata.
func (s *DriveStore) UploadAttachment(
	ctx context.Context, name, mimeType string, r io.Reader, size int64,
) (*drive.File, error) {
	session, err := s.remote.CreateUploadSession(ctx, name, mimeType, []string{"root"}, size)
	if err != nil {
		return nil, fmt.Errorf("%w: opening upload for %q: %w", ErrStoreUnavailable, name, err)
	}

	if err := s.uploadAll(ctx, session, r, size); err != nil {
		return nil, err
	}

	file, err := s.remote.FindByName(ctx, name)
	if err != nil || file == nil {
		// The upload committed; metadata lookup is best-effort.
		return &drive.File{Name: name}, nil
	}

	return file, nil
}

// uploadAll drives the chunk loop to completion. Every chunk except the
// last is a multiple of the alignment unit; the final chunk must yield
// the committed file.
func (s *DriveStore) uploadAll(ctx context.Context, session *drive.UploadSession, r io.Reader, total int64) error {
	if total <= 0 {
		return fmt.Errorf("%w: refusing zero-byte upload", ErrTransferFailed)
	}

	for offset := int64(0); ; {
		length := min(s.chunkSize, total-offset)

		file, err := s.remote.UploadChunk(ctx, session, io.LimitReader(r, length), offset, length, total)
		if err != nil {
			return fmt.Errorf("%w: uploading chunk at offset %d: %w", ErrTransferFailed, offset, err)
		}

		offset += length
		if offset < total {
			continue
		}

		if file == nil {
			return fmt.Errorf("%w: final chunk at offset %d did not commit", ErrTransferFailed, offset-length)
		}

		return nil
	}
}
