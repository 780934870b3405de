package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runColumns = `id, run_id, wholesaler_id, type, status, started_at,
	heartbeat_at, completed_at, counters, error_summary`

func scanRun(row interface{ Scan(...any) error }) (*SyncRun, error) {
	r := &SyncRun{}
	var countersJSON string
	var heartbeat, completed sql.NullTime
	err := row.Scan(&r.ID, &r.RunID, &r.WholesalerID, &r.Type, &r.Status,
		&r.StartedAt, &heartbeat, &completed, &countersJSON, &r.ErrorSummary)
	if err != nil {
		return nil, err
	}
	if heartbeat.Valid {
		r.HeartbeatAt = &heartbeat.Time
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	if countersJSON != "" {
		_ = json.Unmarshal([]byte(countersJSON), &r.Counters)
	}
	return r, nil
}

// StartSyncRun inserts a running run record.
func (s *Storage) StartSyncRun(wholesalerID int64, syncType string) (*SyncRun, error) {
	run := &SyncRun{
		RunID:        uuid.NewString(),
		WholesalerID: wholesalerID,
		Type:         syncType,
		Status:       RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}

	res, err := s.q.Exec(`
		INSERT INTO sync_runs (run_id, wholesaler_id, type, status, started_at, counters)
		VALUES (?, ?, ?, ?, ?, '{}')`,
		run.RunID, run.WholesalerID, run.Type, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync run: %w", err)
	}
	run.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// HeartbeatSyncRun refreshes heartbeat_at for a running run. The status
// guard keeps heartbeats from resurrecting terminal runs.
func (s *Storage) HeartbeatSyncRun(runID string) error {
	_, err := s.q.Exec(`
		UPDATE sync_runs SET heartbeat_at = ?
		WHERE run_id = ? AND status = ?`,
		time.Now().UTC(), runID, RunStatusRunning,
	)
	return err
}

// FinishSyncRun transitions a running run to a terminal status. Runs already
// terminal are left untouched; transitions are strictly forward.
func (s *Storage) FinishSyncRun(runID string, status string, counters RunCounters, errorSummary string) error {
	if status != RunStatusCompleted && status != RunStatusFailed && status != RunStatusTimeout {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return err
	}

	_, err = s.q.Exec(`
		UPDATE sync_runs SET status = ?, completed_at = ?, counters = ?, error_summary = ?
		WHERE run_id = ? AND status = ?`,
		status, time.Now().UTC(), string(countersJSON), errorSummary,
		runID, RunStatusRunning,
	)
	return err
}

// GetSyncRun retrieves a run by its public ID.
func (s *Storage) GetSyncRun(runID string) (*SyncRun, error) {
	row := s.q.QueryRow(`SELECT `+runColumns+` FROM sync_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListSyncRuns returns recent runs, newest first. wholesalerID 0 means all.
func (s *Storage) ListSyncRuns(wholesalerID int64, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM sync_runs`
	args := []any{}
	if wholesalerID != 0 {
		query += ` WHERE wholesaler_id = ?`
		args = append(args, wholesalerID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ReapStuckRuns times out running runs whose heartbeat has not advanced
// within threshold. Runs that never wrote a heartbeat are judged by
// started_at instead.
func (s *Storage) ReapStuckRuns(threshold time.Duration, reason string) ([]SyncRun, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	rows, err := s.q.Query(`SELECT `+runColumns+` FROM sync_runs
		WHERE status = ?
		  AND ((heartbeat_at IS NULL AND started_at < ?) OR heartbeat_at < ?)`,
		RunStatusRunning, cutoff, cutoff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var stuck []SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		stuck = append(stuck, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range stuck {
		_, err := s.q.Exec(`
			UPDATE sync_runs SET status = ?, completed_at = ?, error_summary = ?
			WHERE run_id = ? AND status = ?`,
			RunStatusTimeout, now, reason, stuck[i].RunID, RunStatusRunning,
		)
		if err != nil {
			return stuck, fmt.Errorf("failed to time out run %s: %w", stuck[i].RunID, err)
		}
		stuck[i].Status = RunStatusTimeout
		stuck[i].CompletedAt = &now
		stuck[i].ErrorSummary = reason
	}

	return stuck, nil
}
