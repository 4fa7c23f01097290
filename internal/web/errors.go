package web

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/docstore"
	"github.com/migralog/migralog/internal/gate"
)

// renderError maps domain errors onto HTTP responses. Missing or expired
// credentials redirect into the consent flow; everything else is a JSON
// error body with the status the failure class deserves.
func (s *Server) renderError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrAuthRequired), errors.Is(err, auth.ErrAuthExpired):
		if s.interactive() {
			return c.Redirect().To("/auth/login")
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})

	case errors.Is(err, gate.ErrRejected):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "account not allowed",
		})

	case errors.Is(err, docstore.ErrCorruptDocument):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "stored document is corrupt",
		})

	case errors.Is(err, docstore.ErrTransferFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "transfer to storage failed",
		})

	case errors.Is(err, docstore.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "storage unavailable",
		})

	default:
		s.logger.Error("request failed", slog.String("error", err.Error()))

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
