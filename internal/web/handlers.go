package web

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/gofiber/fiber/v3"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/docstore"
	"github.com/migralog/migralog/internal/drive"
)

func (s *Server) handleHealthz(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"backend": s.cfg.Storage.Backend,
	})
}

func (s *Server) handleIndex(c fiber.Ctx) error {
	return c.SendFile(s.cfg.Server.IndexFile)
}

// storeFor resolves the document store serving this request. Static
// deployments always use the fixed store; interactive ones build a store
// around the session's credential, failing with ErrAuthRequired for
// sessions that never completed the consent flow.
func (s *Server) storeFor(c fiber.Ctx) (docstore.Store, error) {
	if s.fixed != nil {
		return s.fixed, nil
	}

	sess, err := s.currentSession(c)
	if err != nil {
		return nil, err
	}

	if sess == nil || !sess.Authorized() {
		return nil, auth.ErrAuthRequired
	}

	remote := s.remoteFor(c.Context(), sess.ID)

	return docstore.NewDriveStore(remote, s.locator, s.cfg.Document.Name, s.logger), nil
}

// remoteFor builds a Drive client whose bearer tokens come from the
// session's credential, refreshed and written through on demand.
func (s *Server) remoteFor(ctx context.Context, sessionID string) *drive.Client {
	holder := auth.NewHolder(&sessionSource{store: s.sessions, id: sessionID}, s.oauth, s.logger)

	return drive.NewClient(
		drive.DefaultBaseURL,
		drive.DefaultUploadBaseURL,
		s.http,
		auth.NewTokenProvider(ctx, holder),
		s.logger,
	)
}

func (s *Server) handleGetData(c fiber.Ctx) error {
	store, err := s.storeFor(c)
	if err != nil {
		return s.renderError(c, err)
	}

	doc, err := store.Fetch(c.Context())
	if err != nil {
		return s.renderError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(doc)
}

func (s *Server) handlePostData(c fiber.Ctx) error {
	store, err := s.storeFor(c)
	if err != nil {
		return s.renderError(c, err)
	}

	if err := store.Replace(c.Context(), c.Body()); err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success"})
}

// attachmentStore is the optional capability of storing opaque files
// next to the document. The Drive-backed store implements it.
type attachmentStore interface {
	UploadAttachment(ctx context.Context, name, mimeType string, r io.Reader, size int64) (*drive.File, error)
}

// handleUploadReport stores an uploaded questionnaire PDF in the remote
// store, next to the document.
func (s *Server) handleUploadReport(c fiber.Ctx) error {
	store, err := s.storeFor(c)
	if err != nil {
		return s.renderError(c, err)
	}

	attachments, ok := store.(attachmentStore)
	if !ok {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "this backend does not store report files",
		})
	}

	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing file field",
		})
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	f, err := header.Open()
	if err != nil {
		return s.renderError(c, err)
	}
	defer f.Close()

	name := filepath.Base(header.Filename)

	file, err := attachments.UploadAttachment(c.Context(), name, mimeType, f, header.Size)
	if err != nil {
		return s.renderError(c, err)
	}

	s.logger.Info("report uploaded",
		slog.String("name", name),
		slog.Int64("bytes", header.Size),
	)

	return c.JSON(fiber.Map{
		"status": "success",
		"name":   file.Name,
		"id":     file.ID,
	})
}

// statusFile is one remote copy of the document, as reported by the
// status route for operator reconciliation.
type statusFile struct {
	ID      string   `json:"id"`
	Trashed bool     `json:"trashed"`
	Owners  []string `json:"owners,omitempty"`
	Link    string   `json:"link,omitempty"`
}

// handleStatus reports every remote copy of the document, trashed
// included. Name-based addressing means independent processes can race a
// first-access creation; this listing is how an operator finds and
// reconciles the duplicates.
func (s *Server) handleStatus(c fiber.Ctx) error {
	remote := s.remote

	if remote == nil && s.interactive() {
		sess, err := s.currentSession(c)
		if err != nil {
			return s.renderError(c, err)
		}

		if sess == nil || !sess.Authorized() {
			return s.renderError(c, auth.ErrAuthRequired)
		}

		remote = s.remoteFor(c.Context(), sess.ID)
	}

	if remote == nil {
		// File backend: nothing remote to reconcile.
		return c.JSON(fiber.Map{
			"backend":  s.cfg.Storage.Backend,
			"document": s.cfg.Document.Name,
		})
	}

	files, err := remote.ListByName(c.Context(), s.cfg.Document.Name)
	if err != nil {
		return s.renderError(c, err)
	}

	copies := make([]statusFile, 0, len(files))

	for _, f := range files {
		sf := statusFile{ID: f.ID, Trashed: f.Trashed, Link: f.WebViewLink}
		for _, o := range f.Owners {
			sf.Owners = append(sf.Owners, o.EmailAddress)
		}

		copies = append(copies, sf)
	}

	return c.JSON(fiber.Map{
		"backend":  s.cfg.Storage.Backend,
		"document": s.cfg.Document.Name,
		"copies":   copies,
	})
}
