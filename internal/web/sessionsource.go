package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/migralog/migralog/internal/auth"
	"github.com/migralog/migralog/internal/session"
)

// sessionSource adapts one session row to the credential source
// interface, so the holder's refresh write-through lands in SQLite and
// the next request on the same session observes the new token.
type sessionSource struct {
	store *session.Store
	id    string
}

func (s *sessionSource) Load(ctx context.Context) (*auth.Credential, error) {
	sess, err := s.store.Get(ctx, s.id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil //nolint:nilnil // absent credential, not a failure
	}

	if err != nil {
		return nil, err
	}

	if len(sess.Credential) == 0 {
		return nil, nil //nolint:nilnil // consent flow not completed yet
	}

	var cred auth.Credential
	if err := json.Unmarshal(sess.Credential, &cred); err != nil {
		return nil, fmt.Errorf("web: decoding session credential: %w", err)
	}

	return &cred, nil
}

func (s *sessionSource) Save(ctx context.Context, cred *auth.Credential) error {
	blob, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("web: encoding session credential: %w", err)
	}

	return s.store.SetCredential(ctx, s.id, blob)
}
