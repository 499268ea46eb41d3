package store

import (
	"context"
	"time"

	"classmark/internal/model"
)

// Store is the persistence boundary shared by the roster, registry and
// ledger. Implementations must keep check-ins linearizable per
// (participant, session) pair: of N concurrent CheckIn calls for the same
// pair exactly one succeeds and the rest observe model.ErrAlreadyCheckedIn.
type Store interface {
	// Roster. Writes happen only at bootstrap.
	SeedParticipants(ctx context.Context, participants []model.Participant) error
	ListParticipants(ctx context.Context) ([]model.Participant, error)
	GetParticipant(ctx context.Context, id int64) (model.Participant, error)

	// Sessions. InsertSession returns model.ErrDuplicateToken on a token
	// collision so the registry can retry with a fresh one.
	InsertSession(ctx context.Context, subject, scheduledAt, token string) (model.Session, error)
	GetSession(ctx context.Context, id int64) (model.Session, error)
	GetSessionByToken(ctx context.Context, token string) (model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	// DeleteSession removes the session and every attendance record that
	// references it in one atomic step.
	DeleteSession(ctx context.Context, id int64) error

	// Ledger. CheckIn inserts a present record iff no record exists for the
	// pair. SetStatus upserts unconditionally. AttendanceForSession returns
	// the full roster left-joined against stored records, absent by default,
	// ordered by (group, name).
	CheckIn(ctx context.Context, participantID, sessionID int64, at time.Time) error
	SetStatus(ctx context.Context, participantID, sessionID int64, status model.Status, at *time.Time) error
	AttendanceForSession(ctx context.Context, sessionID int64) ([]model.AttendanceRow, error)

	Close() error
}
