package history

import (
	"database/sql"
	"fmt"
	"time"
)

// Outcome classifies how a probe attempt ended.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeNetworkError    Outcome = "network_error"
	OutcomeUnprobeableSize Outcome = "unprobeable_size"
	OutcomeParseError      Outcome = "parse_error"
)

// Attempt is one recorded probe attempt.
type Attempt struct {
	ID              int64     `json:"id"`
	RecordingID     string    `json:"recording_id"`
	Container       string    `json:"container"`
	ExpectedSeconds int64     `json:"expected_seconds"`
	DetectedSeconds *int64    `json:"detected_seconds,omitempty"`
	Outcome         Outcome   `json:"outcome"`
	Error           string    `json:"error,omitempty"`
	ProbedAt        time.Time `json:"probed_at"`
}

// Repository handles probe history database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new probe history repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record inserts a probe attempt.
func (r *Repository) Record(a Attempt) error {
	var detected sql.NullInt64
	if a.DetectedSeconds != nil {
		detected = sql.NullInt64{Int64: *a.DetectedSeconds, Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO probe_attempts (recording_id, container, expected_seconds, detected_seconds, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.RecordingID, a.Container, a.ExpectedSeconds, detected, string(a.Outcome), a.Error)
	if err != nil {
		return fmt.Errorf("failed to record probe attempt: %w", err)
	}
	return nil
}

// ListByRecording returns the most recent attempts for a recording,
// newest first.
func (r *Repository) ListByRecording(recordingID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, recording_id, container, expected_seconds, detected_seconds, outcome, COALESCE(error, ''), probed_at
		FROM probe_attempts
		WHERE recording_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, recordingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list probe attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var detected sql.NullInt64
		var outcome string
		if err := rows.Scan(&a.ID, &a.RecordingID, &a.Container, &a.ExpectedSeconds, &detected, &outcome, &a.Error, &a.ProbedAt); err != nil {
			return nil, fmt.Errorf("failed to scan probe attempt: %w", err)
		}
		if detected.Valid {
			v := detected.Int64
			a.DetectedSeconds = &v
		}
		a.Outcome = Outcome(outcome)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
