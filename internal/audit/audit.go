// Package audit records staff access events (logins, logouts, questions) in SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded in the trail.
const (
	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionAskQuestion = "ask_question"
)

// Event is one audit entry.
type Event struct {
	ID              int64     `json:"id"`
	Time            time.Time `json:"timestamp"`
	Action          string    `json:"action"`
	Email           string    `json:"email"`
	Success         bool      `json:"success"`
	Question        string    `json:"question,omitempty"`
	Confidence      int       `json:"confidence,omitempty"`
	ConfidenceLabel string    `json:"confidence_label,omitempty"`
	RemoteAddr      string    `json:"remote_addr,omitempty"`
}

// Recorder stores and lists audit events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Nop discards events. Used when auditing is disabled.
type Nop struct{}

// Record discards e.
func (Nop) Record(context.Context, Event) error { return nil }

// Recent returns no events.
func (Nop) Recent(context.Context, int) ([]Event, error) { return []Event{}, nil }

// SQLiteStore is a Recorder backed by a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the audit database at dbPath.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: writes from concurrent handlers queue in the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		occurred_at TIMESTAMP NOT NULL,
		action TEXT NOT NULL,
		email TEXT NOT NULL,
		success INTEGER NOT NULL,
		question TEXT,
		confidence INTEGER,
		confidence_label TEXT,
		remote_addr TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_occurred_at ON audit_events(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_audit_email ON audit_events(email);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts e. A zero Time is set to now.
func (s *SQLiteStore) Record(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (occurred_at, action, email, success, question, confidence, confidence_label, remote_addr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Action, e.Email, e.Success, e.Question, e.Confidence, e.ConfidenceLabel, e.RemoteAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 means 50.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, occurred_at, action, email, success, question, confidence, confidence_label, remote_addr
		FROM audit_events ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			e                       Event
			question, label, remote sql.NullString
			confidence              sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Time, &e.Action, &e.Email, &e.Success, &question, &confidence, &label, &remote); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Question = question.String
		e.Confidence = int(confidence.Int64)
		e.ConfidenceLabel = label.String
		e.RemoteAddr = remote.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of recorded events.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}

// DiskUsage returns the size of the database including its WAL files.
func (s *SQLiteStore) DiskUsage() (int64, error) {
	return DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
