package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classmark/internal/model"
	"classmark/internal/store"
)

func newLedger(t *testing.T) (*Ledger, model.Session) {
	t.Helper()
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SeedParticipants(ctx, []model.Participant{
		{ID: 1, Name: "Ivan Petrov", Group: "101"},
		{ID: 2, Name: "Maria Sidorova", Group: "101"},
		{ID: 3, Name: "Alexey Ivanov", Group: "102"},
	}))
	sess, err := m.InsertSession(ctx, "Algorithms", "2024-05-01 10:00", "tok-1")
	require.NoError(t, err)
	return New(m), sess
}

func rowFor(t *testing.T, rows []model.AttendanceRow, participantID int64) model.AttendanceRow {
	t.Helper()
	for _, r := range rows {
		if r.ParticipantID == participantID {
			return r
		}
	}
	t.Fatalf("participant %d not in rows", participantID)
	return model.AttendanceRow{}
}

func TestCheckInStampsTime(t *testing.T) {
	l, sess := newLedger(t)
	fixed := time.Date(2024, 5, 1, 10, 3, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	at, err := l.CheckIn(context.Background(), 2, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, fixed, at)

	rows, err := l.Status(context.Background(), sess.ID)
	require.NoError(t, err)
	r := rowFor(t, rows, 2)
	assert.Equal(t, model.StatusPresent, r.Status)
	require.NotNil(t, r.CheckedInAt)
	assert.Equal(t, fixed, *r.CheckedInAt)
}

func TestCheckInSecondAttemptDeclined(t *testing.T) {
	l, sess := newLedger(t)
	ctx := context.Background()

	first, err := l.CheckIn(ctx, 2, sess.ID)
	require.NoError(t, err)

	_, err = l.CheckIn(ctx, 2, sess.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyCheckedIn)

	// The original check-in is untouched.
	rows, err := l.Status(ctx, sess.ID)
	require.NoError(t, err)
	r := rowFor(t, rows, 2)
	require.NotNil(t, r.CheckedInAt)
	assert.Equal(t, first, *r.CheckedInAt)
}

func TestCheckInUnknownParticipant(t *testing.T) {
	l, sess := newLedger(t)
	_, err := l.CheckIn(context.Background(), 99, sess.ID)
	assert.ErrorIs(t, err, model.ErrUnknownParticipant)
}

func TestCheckInAfterOverrideDeclined(t *testing.T) {
	l, sess := newLedger(t)
	ctx := context.Background()

	// An override to late materializes a record; the organic path must not
	// overwrite it.
	require.NoError(t, l.SetStatus(ctx, 1, sess.ID, model.StatusLate))
	_, err := l.CheckIn(ctx, 1, sess.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyCheckedIn)
}

func TestSetStatusRules(t *testing.T) {
	l, sess := newLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SetStatus(ctx, 1, sess.ID, model.StatusLate))
	rows, err := l.Status(ctx, sess.ID)
	require.NoError(t, err)
	r := rowFor(t, rows, 1)
	assert.Equal(t, model.StatusLate, r.Status)
	assert.Nil(t, r.CheckedInAt, "late carries no timestamp")

	require.NoError(t, l.SetStatus(ctx, 1, sess.ID, model.StatusPresent))
	rows, err = l.Status(ctx, sess.ID)
	require.NoError(t, err)
	r = rowFor(t, rows, 1)
	assert.Equal(t, model.StatusPresent, r.Status)
	assert.NotNil(t, r.CheckedInAt)

	// Reverting to absent clears the timestamp, twice yields the same state.
	require.NoError(t, l.SetStatus(ctx, 1, sess.ID, model.StatusAbsent))
	require.NoError(t, l.SetStatus(ctx, 1, sess.ID, model.StatusAbsent))
	rows, err = l.Status(ctx, sess.ID)
	require.NoError(t, err)
	r = rowFor(t, rows, 1)
	assert.Equal(t, model.StatusAbsent, r.Status)
	assert.Nil(t, r.CheckedInAt)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	l, sess := newLedger(t)
	err := l.SetStatus(context.Background(), 1, sess.ID, model.Status("vanished"))
	assert.True(t, model.IsValidation(err), "want validation error, got %v", err)
}

func TestExportRows(t *testing.T) {
	l, sess := newLedger(t)
	ctx := context.Background()
	_, err := l.CheckIn(ctx, 2, sess.ID)
	require.NoError(t, err)

	rows, err := l.ExportRows(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Ivan Petrov", rows[0].Name)
	assert.Equal(t, model.StatusAbsent, rows[0].Status)
	assert.Equal(t, "Maria Sidorova", rows[1].Name)
	assert.Equal(t, model.StatusPresent, rows[1].Status)
	assert.NotNil(t, rows[1].CheckedInAt)
}

func TestStatusUnknownSession(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Status(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
