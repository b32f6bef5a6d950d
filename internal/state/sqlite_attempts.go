package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/leapstack-labs/scfdata/pkg/core"
)

// RecordAttempt stores the outcome of one molecule build.
// ID and CreatedAt are filled in when empty.
func (s *SQLiteStore) RecordAttempt(a *core.Attempt) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if a.ID == "" {
		a.ID = generateID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var errorPtr *string
	if a.Error != "" {
		errorPtr = &a.Error
	}

	_, err := s.db.Exec(
		`INSERT INTO attempts (id, run_id, key, name, subset, status, converged, iterations, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.Key, a.Name, a.Subset, string(a.Status), a.Converged, a.Iterations,
		errorPtr, a.DurationMS, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt for %s: %w", a.Name, err)
	}
	return nil
}

// GetAttemptsForRun returns the attempts of a run in the order they were recorded.
func (s *SQLiteStore) GetAttemptsForRun(runID string) ([]*core.Attempt, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, key, name, subset, status, converged, iterations, error, duration_ms, created_at
		 FROM attempts WHERE run_id = ? ORDER BY created_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []*core.Attempt
	for rows.Next() {
		a := &core.Attempt{}
		var status string
		var iterations sql.NullInt64
		var errMsg sql.NullString

		if err := rows.Scan(&a.ID, &a.RunID, &a.Key, &a.Name, &a.Subset, &status, &a.Converged,
			&iterations, &errMsg, &a.DurationMS, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}

		a.Status = core.AttemptStatus(status)
		if iterations.Valid {
			n := int(iterations.Int64)
			a.Iterations = &n
		}
		if errMsg.Valid {
			a.Error = errMsg.String
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	return attempts, nil
}
