package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/imrishuroy/glaze-storefront/internal/docstore"
)

const SessionSchema = "session"

var SessionsSchema = docstore.Schema{Name: SessionSchema, Version: 1}

// Sessions persists the logged-in user of each client session so it
// survives a reload. The snapshot holds no credential.
type Sessions struct {
	docs *docstore.Store
}

func NewSessions(docs *docstore.Store) *Sessions {
	return &Sessions{docs: docs}
}

func sessionKey(id string) string { return "session:" + id }

type sessionDoc struct {
	User User `json:"user"`
}

// Save records user as the identity of session id.
func (s *Sessions) Save(ctx context.Context, id string, user User) error {
	_, err := docstore.Update(ctx, s.docs, sessionKey(id), SessionSchema, func() sessionDoc { return sessionDoc{} }, func(d *sessionDoc) error {
		d.User = user
		return nil
	})
	return err
}

// Load returns the user of session id, or nil when logged out.
func (s *Sessions) Load(ctx context.Context, id string) (*User, error) {
	var d sessionDoc
	_, err := s.docs.Load(ctx, sessionKey(id), SessionSchema, &d)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return &d.User, nil
}

// Delete forgets the identity of session id.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	return s.docs.Delete(ctx, sessionKey(id))
}
