package checkin

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classmark/internal/ledger"
	"classmark/internal/model"
	"classmark/internal/roster"
	"classmark/internal/session"
	"classmark/internal/store"
)

func newCoordinator(t *testing.T) (*Coordinator, *session.Registry, model.Session) {
	t.Helper()
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SeedParticipants(ctx, []model.Participant{
		{ID: 1, Name: "Ivan Petrov", Group: "101"},
		{ID: 2, Name: "Maria Sidorova", Group: "101"},
	}))
	reg := session.New(m)
	sess, err := reg.Create(ctx, "Algorithms", "2024-05-01 10:00")
	require.NoError(t, err)
	c := New(reg, roster.New(m), ledger.New(m), "https://class.example.com/")
	return c, reg, sess
}

func TestSubmitCheckin(t *testing.T) {
	c, _, sess := newCoordinator(t)
	ctx := context.Background()

	res, err := c.SubmitCheckin(ctx, sess.Token, 2)
	require.NoError(t, err)
	assert.Equal(t, "Maria Sidorova", res.Participant.Name)
	assert.Equal(t, sess.ID, res.Session.ID)
	assert.False(t, res.CheckedInAt.IsZero())

	_, err = c.SubmitCheckin(ctx, sess.Token, 2)
	assert.ErrorIs(t, err, model.ErrAlreadyCheckedIn)
}

func TestSubmitCheckinInvalidToken(t *testing.T) {
	c, _, _ := newCoordinator(t)
	_, err := c.SubmitCheckin(context.Background(), "no-such-token", 1)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestSubmitCheckinUnknownParticipant(t *testing.T) {
	c, _, sess := newCoordinator(t)
	_, err := c.SubmitCheckin(context.Background(), sess.Token, 77)
	assert.ErrorIs(t, err, model.ErrUnknownParticipant)
}

func TestSubmitCheckinSessionDeleted(t *testing.T) {
	c, reg, sess := newCoordinator(t)
	ctx := context.Background()
	require.NoError(t, reg.Delete(ctx, sess.ID))
	_, err := c.SubmitCheckin(ctx, sess.Token, 1)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestSubmitCheckinExactlyOnceConcurrent(t *testing.T) {
	c, _, sess := newCoordinator(t)
	ctx := context.Background()

	const callers = 50
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.SubmitCheckin(ctx, sess.Token, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, already int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case err == model.ErrAlreadyCheckedIn:
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, already)
}

func TestRenderTarget(t *testing.T) {
	c, _, sess := newCoordinator(t)
	payload := c.RenderTarget(sess.Token)
	assert.Equal(t, "https://class.example.com/scan?token="+sess.Token, payload)
}
