package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"classmark/internal/model"
)

type pairKey struct {
	participantID int64
	sessionID     int64
}

type record struct {
	status      model.Status
	checkedInAt *time.Time
}

// Memory is a mutex-guarded in-memory store for dev and tests. It keeps the
// same contract as the SQL backends, including the one-winner check-in rule.
type Memory struct {
	mu           sync.RWMutex
	participants map[int64]model.Participant
	sessions     map[int64]model.Session
	byToken      map[string]int64
	attendance   map[pairKey]record
	nextSession  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		participants: make(map[int64]model.Participant),
		sessions:     make(map[int64]model.Session),
		byToken:      make(map[string]int64),
		attendance:   make(map[pairKey]record),
	}
}

func (m *Memory) SeedParticipants(_ context.Context, participants []model.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range participants {
		if _, ok := m.participants[p.ID]; !ok {
			m.participants[p.ID] = p
		}
	}
	return nil
}

func (m *Memory) ListParticipants(_ context.Context) ([]model.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]model.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		res = append(res, p)
	}
	sortParticipants(res)
	return res, nil
}

func (m *Memory) GetParticipant(_ context.Context, id int64) (model.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[id]
	if !ok {
		return model.Participant{}, model.ErrNotFound
	}
	return p, nil
}

func (m *Memory) InsertSession(_ context.Context, subject, scheduledAt, token string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byToken[token]; ok {
		return model.Session{}, model.ErrDuplicateToken
	}
	m.nextSession++
	sess := model.Session{
		ID:          m.nextSession,
		Subject:     subject,
		ScheduledAt: scheduledAt,
		Token:       token,
		CreatedAt:   time.Now().UTC(),
	}
	m.sessions[sess.ID] = sess
	m.byToken[token] = sess.ID
	return sess, nil
}

func (m *Memory) GetSession(_ context.Context, id int64) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return model.Session{}, model.ErrNotFound
	}
	return sess, nil
}

func (m *Memory) GetSessionByToken(_ context.Context, token string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[token]
	if !ok {
		return model.Session{}, model.ErrNotFound
	}
	return m.sessions[id], nil
}

func (m *Memory) ListSessions(_ context.Context) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]model.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		res = append(res, sess)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ScheduledAt != res[j].ScheduledAt {
			return res[i].ScheduledAt > res[j].ScheduledAt
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

func (m *Memory) DeleteSession(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return model.ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.byToken, sess.Token)
	for k := range m.attendance {
		if k.sessionID == id {
			delete(m.attendance, k)
		}
	}
	return nil
}

func (m *Memory) CheckIn(_ context.Context, participantID, sessionID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return model.ErrNotFound
	}
	if _, ok := m.participants[participantID]; !ok {
		return model.ErrNotFound
	}
	key := pairKey{participantID, sessionID}
	if _, ok := m.attendance[key]; ok {
		return model.ErrAlreadyCheckedIn
	}
	t := at
	m.attendance[key] = record{status: model.StatusPresent, checkedInAt: &t}
	return nil
}

func (m *Memory) SetStatus(_ context.Context, participantID, sessionID int64, status model.Status, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return model.ErrNotFound
	}
	if _, ok := m.participants[participantID]; !ok {
		return model.ErrNotFound
	}
	m.attendance[pairKey{participantID, sessionID}] = record{status: status, checkedInAt: at}
	return nil
}

func (m *Memory) AttendanceForSession(_ context.Context, sessionID int64) ([]model.AttendanceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, model.ErrNotFound
	}
	roster := make([]model.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		roster = append(roster, p)
	}
	sortParticipants(roster)

	res := make([]model.AttendanceRow, 0, len(roster))
	for _, p := range roster {
		row := model.AttendanceRow{
			ParticipantID: p.ID,
			Name:          p.Name,
			Group:         p.Group,
			Status:        model.StatusAbsent,
		}
		if rec, ok := m.attendance[pairKey{p.ID, sessionID}]; ok {
			row.Status = rec.status
			row.CheckedInAt = rec.checkedInAt
		}
		res = append(res, row)
	}
	return res, nil
}

func (m *Memory) Close() error { return nil }

func sortParticipants(ps []model.Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Group != ps[j].Group {
			return ps[i].Group < ps[j].Group
		}
		return ps[i].Name < ps[j].Name
	})
}
