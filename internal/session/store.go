// Package session persists web sessions in SQLite. A session carries the
// consent-flow state token, the resolved identity email, and the
// credential blob for the authorized principal — everything a stateless
// request cycle needs to resume where the last one left off.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// ErrNotFound is returned when no session exists for an ID.
var ErrNotFound = errors.New("session: not found")

// Session is one row of the sessions table.
type Session struct {
	ID         string
	Email      string
	Credential []byte // credential JSON; nil before the consent flow completes
	OAuthState string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Authorized reports whether the session completed the consent flow as
// the allowed principal.
func (s *Session) Authorized() bool {
	return s.Email != "" && len(s.Credential) > 0
}

// Store is the SQLite-backed session store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the session database at dbPath and
// applies pending migrations. The connection pool is capped at one
// connection — SQLite with a sole writer needs no busy-handling.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("session: creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new anonymous session and returns it.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, email, credential, oauth_state, created_at, updated_at)
		 VALUES (?, '', NULL, '', ?, ?)`,
		sess.ID, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("session: inserting session: %w", err)
	}

	s.logger.Debug("session created", slog.String("session_id", sess.ID))

	return sess, nil
}

// Get loads a session by ID. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, credential, oauth_state, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)

	var (
		sess       Session
		credential sql.NullString
		createdAt  int64
		updatedAt  int64
	)

	err := row.Scan(&sess.ID, &sess.Email, &credential, &sess.OAuthState, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("session: loading %s: %w", id, err)
	}

	if credential.Valid {
		sess.Credential = []byte(credential.String)
	}

	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	sess.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return &sess, nil
}

// SetState stores the pending consent-flow anti-forgery token.
func (s *Store) SetState(ctx context.Context, id, state string) error {
	return s.update(ctx, id,
		`UPDATE sessions SET oauth_state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now().UTC().UnixNano(), id)
}

// SetIdentity records the authorized identity and its credential, and
// clears the consumed state token.
func (s *Store) SetIdentity(ctx context.Context, id, email string, credential []byte) error {
	return s.update(ctx, id,
		`UPDATE sessions SET email = ?, credential = ?, oauth_state = '', updated_at = ? WHERE id = ?`,
		email, string(credential), time.Now().UTC().UnixNano(), id)
}

// SetCredential replaces the stored credential blob. This is the
// write-through target for token refreshes.
func (s *Store) SetCredential(ctx context.Context, id string, credential []byte) error {
	return s.update(ctx, id,
		`UPDATE sessions SET credential = ?, updated_at = ? WHERE id = ?`,
		string(credential), time.Now().UTC().UnixNano(), id)
}

// Delete removes a session entirely. Deleting a missing session is not an
// error — logout must be idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("session: deleting %s: %w", id, err)
	}

	return nil
}

// PurgeOlderThan deletes sessions not updated within maxAge. Returns the
// number purged.
func (s *Store) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).UnixNano()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session: purging: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: purge rows affected: %w", err)
	}

	if n > 0 {
		s.logger.Info("stale sessions purged", slog.Int64("count", n))
	}

	return n, nil
}

// update runs an UPDATE that must touch exactly one row.
func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("session: updating %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: update rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}
