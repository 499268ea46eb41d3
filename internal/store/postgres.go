package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"classmark/internal/model"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS participants (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		group_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		subject TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		participant_id BIGINT NOT NULL REFERENCES participants (id),
		session_id BIGINT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'absent',
		checked_in_at TIMESTAMPTZ,
		PRIMARY KEY (participant_id, session_id)
	)`,
}

// NewPostgres opens a pooled Postgres store via the pgx stdlib driver and
// bootstraps the schema.
func NewPostgres(ctx context.Context, connString string) (Store, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	for _, stmt := range pgSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &sqlStore{db: db, classify: classifyPg}, nil
}

func classifyPg(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %w", err)
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		if strings.Contains(pgErr.ConstraintName, "token") {
			return model.ErrDuplicateToken
		}
		return model.ErrAlreadyCheckedIn
	case "23503": // foreign_key_violation: the referenced session is gone
		return model.ErrNotFound
	}
	return fmt.Errorf("postgres: %w", err)
}
