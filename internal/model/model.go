package model

import "time"

// Participant is a member of the fixed roster. Immutable after seeding.
type Participant struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// Session is a single scheduled class event. Token is the only credential
// required to check in and is never reused across sessions.
type Session struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	ScheduledAt string    `json:"scheduled_at"`
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"created_at"`
}

// Status is a participant's attendance state for one session.
type Status string

const (
	StatusAbsent  Status = "absent"
	StatusPresent Status = "present"
	StatusLate    Status = "late"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAbsent, StatusPresent, StatusLate:
		return true
	}
	return false
}

// AttendanceRow is one roster entry joined against the ledger for a session.
// Participants with no stored record appear as absent with a nil timestamp.
type AttendanceRow struct {
	ParticipantID int64      `json:"participant_id"`
	Name          string     `json:"name"`
	Group         string     `json:"group"`
	Status        Status     `json:"status"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
}

// ExportRow is the shape handed to external tabular formatters.
type ExportRow struct {
	Name        string     `json:"name"`
	Group       string     `json:"group"`
	Status      Status     `json:"status"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}
