package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/gate"
	"github.com/migralog/migralog/internal/session"
)

const sessionCookie = "migralog_session"

// cookieMaxAge bounds how long an idle browser session stays resumable.
const cookieMaxAge = 30 * 24 * 60 * 60 // seconds

// handleLogin starts the consent flow: it binds a fresh anti-forgery
// state token to the caller's session and redirects to the provider's
// consent screen.
func (s *Server) handleLogin(c fiber.Ctx) error {
	sess, err := s.ensureSession(c)
	if err != nil {
		return s.renderError(c, err)
	}

	state, err := auth.GenerateState()
	if err != nil {
		return s.renderError(c, err)
	}

	if err := s.sessions.SetState(c.Context(), sess.ID, state); err != nil {
		return s.renderError(c, err)
	}

	return c.Redirect().To(s.gate.ConsentURL(state))
}

// handleCallback completes the consent flow. The state token must match
// the one bound to the session; the resolved identity must be the
// allowed principal, otherwise the whole session is discarded.
func (s *Server) handleCallback(c fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing authorization code",
		})
	}

	sess, err := s.currentSession(c)
	if err != nil {
		return s.renderError(c, err)
	}

	if sess == nil || sess.OAuthState == "" || sess.OAuthState != state {
		s.logger.Warn("callback with unknown or mismatched state")

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid state token",
		})
	}

	cred, ident, err := s.gate.HandleCallback(c.Context(), code)
	if err != nil {
		if errors.Is(err, gate.ErrRejected) {
			// Nothing of a rejected identity may be retained.
			s.discardSession(c, sess.ID)
		}

		return s.renderError(c, err)
	}

	blob, err := json.Marshal(cred)
	if err != nil {
		return s.renderError(c, fmt.Errorf("web: encoding credential: %w", err))
	}

	if err := s.sessions.SetIdentity(c.Context(), sess.ID, ident.Email, blob); err != nil {
		return s.renderError(c, err)
	}

	s.logger.Info("session authorized",
		slog.String("session_id", sess.ID),
		slog.String("email", ident.Email),
	)

	return c.Redirect().To("/")
}

// handleLogout discards the session entirely. Idempotent.
func (s *Server) handleLogout(c fiber.Ctx) error {
	if id := c.Cookies(sessionCookie); id != "" {
		s.discardSession(c, id)
	}

	return c.Redirect().To("/")
}

// currentSession loads the session named by the request cookie. Returns
// (nil, nil) when there is no cookie or the session no longer exists.
func (s *Server) currentSession(c fiber.Ctx) (*session.Session, error) {
	id := c.Cookies(sessionCookie)
	if id == "" {
		return nil, nil //nolint:nilnil // anonymous request
	}

	sess, err := s.sessions.Get(c.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil //nolint:nilnil // stale cookie
	}

	return sess, err
}

// ensureSession returns the request's session, creating one (and setting
// the cookie) for anonymous callers.
func (s *Server) ensureSession(c fiber.Ctx) (*session.Session, error) {
	sess, err := s.currentSession(c)
	if err != nil || sess != nil {
		return sess, err
	}

	sess, err = s.sessions.Create(c.Context())
	if err != nil {
		return nil, err
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return sess, nil
}

// discardSession deletes the session row and expires the cookie.
func (s *Server) discardSession(c fiber.Ctx, id string) {
	if err := s.sessions.Delete(c.Context(), id); err != nil {
		s.logger.Warn("deleting session failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
