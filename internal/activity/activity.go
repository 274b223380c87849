// Package activity keeps a per-project audit log of job lifecycle
// events in SQLite. Logging is best-effort: the orchestrator records
// every phase transition and terminal outcome here, but a logging
// failure never fails the job that produced it.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/forgeworks/issuepilot/internal/types"
)

// EventType classifies an activity event.
type EventType string

const (
	// EventJobEnrolled indicates an issue was admitted into a pipeline
	EventJobEnrolled EventType = "job_enrolled"
	// EventPhaseTransition indicates a job moved to a new phase
	EventPhaseTransition EventType = "phase_transition"
	// EventJobCompleted indicates a job reached its terminal success state
	EventJobCompleted EventType = "job_completed"
	// EventJobFailed indicates a job reached the failed state
	EventJobFailed EventType = "job_failed"
	// EventBatchCompleted indicates a batch triage run finished
	EventBatchCompleted EventType = "batch_completed"
	// EventLabelsApplied indicates labels were pushed to the tracker
	EventLabelsApplied EventType = "labels_applied"
)

// Severity is the severity level of an activity event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one entry in the activity log.
type Event struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	Timestamp   time.Time              `json:"timestamp"`
	Pipeline    types.PipelineKind     `json:"pipeline"`
	IssueNumber int                    `json:"issue_number"`
	Severity    Severity               `json:"severity"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data"`
}

const schema = `
CREATE TABLE IF NOT EXISTS activity_events (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	timestamp    DATETIME NOT NULL,
	pipeline     TEXT NOT NULL,
	issue_number INTEGER NOT NULL,
	severity     TEXT NOT NULL,
	message      TEXT NOT NULL,
	data         TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_activity_timestamp ON activity_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_activity_issue ON activity_events(pipeline, issue_number);
`

// Log is a SQLite-backed activity log for one project.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the activity database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create activity directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open activity database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping activity database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize activity schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record inserts an event, stamping ID and timestamp if unset.
func (l *Log) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO activity_events (id, type, timestamp, pipeline, issue_number, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Type, event.Timestamp, event.Pipeline,
		event.IssueNumber, event.Severity, event.Message, string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store activity event (type=%s, issue=%d): %w", event.Type, event.IssueNumber, err)
	}
	return nil
}

// Recent returns the most recent events, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, type, timestamp, pipeline, issue_number, severity, message, data
		FROM activity_events
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ByIssue returns all events for one issue in one pipeline, oldest first.
func (l *Log) ByIssue(ctx context.Context, pipeline types.PipelineKind, issueNumber int) ([]*Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, type, timestamp, pipeline, issue_number, severity, message, data
		FROM activity_events
		WHERE pipeline = ? AND issue_number = ?
		ORDER BY timestamp ASC`, pipeline, issueNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity by issue: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var ev Event
		var dataJSON string
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Timestamp, &ev.Pipeline,
			&ev.IssueNumber, &ev.Severity, &ev.Message, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
			ev.Data = map[string]interface{}{}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
