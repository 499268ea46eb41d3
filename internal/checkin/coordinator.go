package checkin

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"classmark/internal/model"
)

// SessionResolver resolves a check-in token to its session.
type SessionResolver interface {
	GetByToken(ctx context.Context, token string) (model.Session, error)
}

// ParticipantDirectory looks up roster members.
type ParticipantDirectory interface {
	Get(ctx context.Context, id int64) (model.Participant, error)
}

// AttendanceMarker applies the organic check-in transition.
type AttendanceMarker interface {
	CheckIn(ctx context.Context, participantID, sessionID int64) (time.Time, error)
}

// Coordinator is the service facade for participant check-ins: token first,
// then roster, then the ledger write.
type Coordinator struct {
	sessions SessionResolver
	roster   ParticipantDirectory
	ledger   AttendanceMarker
	baseURL  string
}

// New wires a coordinator. baseURL is the public origin encoded into QR
// payloads.
func New(sessions SessionResolver, roster ParticipantDirectory, ledger AttendanceMarker, baseURL string) *Coordinator {
	return &Coordinator{
		sessions: sessions,
		roster:   roster,
		ledger:   ledger,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Result is a successful check-in.
type Result struct {
	Participant model.Participant
	Session     model.Session
	CheckedInAt time.Time
}

// SubmitCheckin validates the token and participant and records the
// check-in. Declines are sentinels: model.ErrInvalidToken,
// model.ErrUnknownParticipant, model.ErrAlreadyCheckedIn.
func (c *Coordinator) SubmitCheckin(ctx context.Context, token string, participantID int64) (Result, error) {
	sess, err := c.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Result{}, model.ErrInvalidToken
		}
		return Result{}, err
	}

	participant, err := c.roster.Get(ctx, participantID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Result{}, model.ErrUnknownParticipant
		}
		return Result{}, err
	}

	at, err := c.ledger.CheckIn(ctx, participantID, sess.ID)
	if err != nil {
		// The session can be deleted between token resolution and the
		// ledger write; the cascade means no row was left behind.
		if errors.Is(err, model.ErrNotFound) {
			return Result{}, model.ErrInvalidToken
		}
		return Result{}, err
	}

	return Result{Participant: participant, Session: sess, CheckedInAt: at}, nil
}

// RenderTarget builds the payload string an external QR renderer encodes.
// The token travels only inside this payload.
func (c *Coordinator) RenderTarget(token string) string {
	return c.baseURL + "/scan?token=" + url.QueryEscape(token)
}
