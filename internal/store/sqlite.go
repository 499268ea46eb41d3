package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"classmark/internal/model"
)

var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON`,
	`PRAGMA journal_mode = WAL`,
	`PRAGMA synchronous = NORMAL`,
	`CREATE TABLE IF NOT EXISTS participants (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		group_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		participant_id INTEGER NOT NULL REFERENCES participants (id),
		session_id INTEGER NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'absent',
		checked_in_at TIMESTAMP,
		PRIMARY KEY (participant_id, session_id)
	)`,
}

// NewSQLite opens a file-backed SQLite store. Single writer, so check-in
// races serialize in the driver; the primary key still decides the winner.
func NewSQLite(ctx context.Context, path string) (Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_loc=UTC")
	if err != nil {
		return nil, err
	}
	// One connection keeps concurrent writers from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema %q: %w", stmt, err)
		}
	}
	return &sqlStore{db: db, classify: classifySQLite}, nil
}

func classifySQLite(err error) error {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return fmt.Errorf("sqlite: %w", err)
	}
	switch sqErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		if strings.Contains(sqErr.Error(), "sessions.token") {
			return model.ErrDuplicateToken
		}
		return model.ErrAlreadyCheckedIn
	case sqlite3.ErrConstraintForeignKey:
		return model.ErrNotFound
	}
	return fmt.Errorf("sqlite: %w", err)
}
