package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"classmark/internal/model"
)

// sqlStore runs the same queries against Postgres and SQLite; both accept
// $N placeholders and the upsert syntax used here. Backend differences are
// confined to the DDL and the constraint-error classifier.
type sqlStore struct {
	db *sql.DB
	// classify maps driver constraint violations onto model sentinels.
	classify func(error) error
}

func (s *sqlStore) SeedParticipants(ctx context.Context, participants []model.Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range participants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO participants (id, name, group_name)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.Group)
		if err != nil {
			return fmt.Errorf("seed participant %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, group_name FROM participants
		ORDER BY group_name, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var res []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Group); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *sqlStore) GetParticipant(ctx context.Context, id int64) (model.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, group_name FROM participants WHERE id = $1
	`, id)
	var p model.Participant
	if err := row.Scan(&p.ID, &p.Name, &p.Group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Participant{}, model.ErrNotFound
		}
		return model.Participant{}, fmt.Errorf("get participant %d: %w", id, err)
	}
	return p, nil
}

func (s *sqlStore) InsertSession(ctx context.Context, subject, scheduledAt, token string) (model.Session, error) {
	sess := model.Session{
		Subject:     subject,
		ScheduledAt: scheduledAt,
		Token:       token,
		CreatedAt:   time.Now().UTC(),
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (subject, scheduled_at, token, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, sess.Subject, sess.ScheduledAt, sess.Token, sess.CreatedAt)
	if err := row.Scan(&sess.ID); err != nil {
		return model.Session{}, s.classify(err)
	}
	return sess, nil
}

func (s *sqlStore) GetSession(ctx context.Context, id int64) (model.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, subject, scheduled_at, token, created_at
		FROM sessions WHERE id = $1
	`, id))
}

func (s *sqlStore) GetSessionByToken(ctx context.Context, token string) (model.Session, error) {
	// Exact equality only; no prefix or pattern matching on tokens.
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, subject, scheduled_at, token, created_at
		FROM sessions WHERE token = $1
	`, token))
}

func (s *sqlStore) scanSession(row *sql.Row) (model.Session, error) {
	var sess model.Session
	err := row.Scan(&sess.ID, &sess.Subject, &sess.ScheduledAt, &sess.Token, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, model.ErrNotFound
		}
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *sqlStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, scheduled_at, token, created_at
		FROM sessions
		ORDER BY scheduled_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var res []model.Session
	for rows.Next() {
		var sess model.Session
		if err := rows.Scan(&sess.ID, &sess.Subject, &sess.ScheduledAt, &sess.Token, &sess.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, rows.Err()
}

func (s *sqlStore) DeleteSession(ctx context.Context, id int64) error {
	// Attendance rows go with the session via ON DELETE CASCADE, so the
	// whole cascade is one atomic statement.
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *sqlStore) CheckIn(ctx context.Context, participantID, sessionID int64, at time.Time) error {
	// Insert-if-absent in a single statement: the primary key on
	// (participant_id, session_id) makes exactly one concurrent caller win.
	// A session deleted mid-request surfaces as a foreign key violation,
	// never as a dangling row.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (participant_id, session_id, status, checked_in_at)
		VALUES ($1, $2, 'present', $3)
		ON CONFLICT (participant_id, session_id) DO NOTHING
	`, participantID, sessionID, at)
	if err != nil {
		return s.classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrAlreadyCheckedIn
	}
	return nil
}

func (s *sqlStore) SetStatus(ctx context.Context, participantID, sessionID int64, status model.Status, at *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (participant_id, session_id, status, checked_in_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_id, session_id) DO UPDATE SET
			status = excluded.status,
			checked_in_at = excluded.checked_in_at
	`, participantID, sessionID, string(status), at)
	if err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *sqlStore) AttendanceForSession(ctx context.Context, sessionID int64) ([]model.AttendanceRow, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.group_name,
		       COALESCE(a.status, 'absent'), a.checked_in_at
		FROM participants p
		LEFT JOIN attendance a
			ON a.participant_id = p.id AND a.session_id = $1
		ORDER BY p.group_name, p.name
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("attendance for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var res []model.AttendanceRow
	for rows.Next() {
		var (
			r  model.AttendanceRow
			st string
			ts sql.NullTime
		)
		if err := rows.Scan(&r.ParticipantID, &r.Name, &r.Group, &st, &ts); err != nil {
			return nil, err
		}
		r.Status = model.Status(st)
		if ts.Valid {
			t := ts.Time
			r.CheckedInAt = &t
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
