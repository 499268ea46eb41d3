package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"classmark/internal/model"
	"classmark/internal/store"
)

// A fresh 128-bit token practically never collides; the retry loop exists
// so a collision degrades to another draw instead of a failed create.
const maxTokenAttempts = 3

// Registry creates and looks up class sessions. Every session carries one
// unguessable token that is its only check-in credential.
type Registry struct {
	store store.Store
}

// New creates a registry over the given store.
func New(s store.Store) *Registry {
	return &Registry{store: s}
}

// Create validates the inputs, draws a fresh token and persists the session.
func (r *Registry) Create(ctx context.Context, subject, scheduledAt string) (model.Session, error) {
	subject = strings.TrimSpace(subject)
	scheduledAt = strings.TrimSpace(scheduledAt)
	if subject == "" {
		return model.Session{}, model.NewValidationError("subject", "must not be empty")
	}
	if scheduledAt == "" {
		return model.Session{}, model.NewValidationError("scheduled_at", "must not be empty")
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		sess, err := r.store.InsertSession(ctx, subject, scheduledAt, uuid.NewString())
		if errors.Is(err, model.ErrDuplicateToken) {
			continue
		}
		return sess, err
	}
	return model.Session{}, fmt.Errorf("token collision after %d attempts", maxTokenAttempts)
}

// GetByID returns a session or model.ErrNotFound.
func (r *Registry) GetByID(ctx context.Context, id int64) (model.Session, error) {
	return r.store.GetSession(ctx, id)
}

// GetByToken resolves a check-in token by exact match only.
func (r *Registry) GetByToken(ctx context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, model.ErrNotFound
	}
	return r.store.GetSessionByToken(ctx, token)
}

// List returns all sessions, most recently scheduled first.
func (r *Registry) List(ctx context.Context) ([]model.Session, error) {
	return r.store.ListSessions(ctx)
}

// Delete removes a session together with all of its attendance records.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	return r.store.DeleteSession(ctx, id)
}
