// Package ledger is the authoritative attendance state machine. Any
// (participant, session) pair without a stored record reads as absent; a
// record is only ever created by an organic check-in or an organizer
// override.
package ledger

import (
	"context"
	"errors"
	"time"

	"classmark/internal/model"
	"classmark/internal/store"
)

// Ledger applies attendance transitions against the store.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// New creates a ledger over the given store.
func New(s store.Store) *Ledger {
	return &Ledger{store: s, now: time.Now}
}

// CheckIn records the organic absent -> present transition for the pair and
// returns the stamped time. If any record already exists the call is a no-op
// and returns model.ErrAlreadyCheckedIn; the store guarantees exactly one
// winner among concurrent callers. A missing session is model.ErrNotFound.
func (l *Ledger) CheckIn(ctx context.Context, participantID, sessionID int64) (time.Time, error) {
	if err := l.knownParticipant(ctx, participantID); err != nil {
		return time.Time{}, err
	}
	at := l.now().UTC()
	if err := l.store.CheckIn(ctx, participantID, sessionID, at); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// SetStatus is the organizer override: an unconditional, idempotent upsert.
// checked_in_at is stamped only for present and cleared for everything else.
func (l *Ledger) SetStatus(ctx context.Context, participantID, sessionID int64, status model.Status) error {
	if !status.Valid() {
		return model.NewValidationError("status", "must be absent, present or late")
	}
	if err := l.knownParticipant(ctx, participantID); err != nil {
		return err
	}
	var at *time.Time
	if status == model.StatusPresent {
		t := l.now().UTC()
		at = &t
	}
	return l.store.SetStatus(ctx, participantID, sessionID, status, at)
}

// Status reports the whole roster for a session, absent by default, ordered
// by (group, name).
func (l *Ledger) Status(ctx context.Context, sessionID int64) ([]model.AttendanceRow, error) {
	return l.store.AttendanceForSession(ctx, sessionID)
}

// ExportRows returns the session's roster rows in the shape consumed by
// external tabular formatters.
func (l *Ledger) ExportRows(ctx context.Context, sessionID int64) ([]model.ExportRow, error) {
	rows, err := l.Status(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ExportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ExportRow{
			Name:        r.Name,
			Group:       r.Group,
			Status:      r.Status,
			CheckedInAt: r.CheckedInAt,
		})
	}
	return out, nil
}

func (l *Ledger) knownParticipant(ctx context.Context, id int64) error {
	if _, err := l.store.GetParticipant(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrUnknownParticipant
		}
		return err
	}
	return nil
}
