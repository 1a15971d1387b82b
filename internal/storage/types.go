package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file
//   - "postgres": PostgreSQL via DSN
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
	History     int           // runs kept by file/sqlite; 0 keeps all
}

// RunRecord is one recompute attempt, successful or not.
// Keep it compact and schema-stable.
type RunRecord struct {
	ID           string    `json:"id"`
	At           time.Time `json:"at"`
	Reason       string    `json:"reason"`
	Project      string    `json:"project"`
	Jurisdiction string    `json:"jurisdiction"`
	OK           bool      `json:"ok"`
	Error        string    `json:"error,omitempty"`
	Tasks        int       `json:"tasks"`
	Unresolved   []string  `json:"unresolved,omitempty"`
	Passes       int       `json:"passes"`
	EndDate      string    `json:"end_date,omitempty"`
	Digest       string    `json:"digest,omitempty"`
	TookMS       int64     `json:"took_ms"`
}

// Snapshot is the rendered schedule of a successful run.
type Snapshot struct {
	RunID  string    `json:"run_id"`
	At     time.Time `json:"at"`
	Digest string    `json:"digest"`
	Body   []byte    `json:"body"` // report JSON
}

// NewRunID returns a time-ordered run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}
