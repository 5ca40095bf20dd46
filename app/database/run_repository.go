package database

import (
	"database/sql"
	"fmt"
)

var _ RunRepository = (*SQLRunRepository)(nil)

// SQLRunRepository persists ingestion run bookkeeping.
type SQLRunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *SQLRunRepository {
	return &SQLRunRepository{db: db}
}

func (r *SQLRunRepository) InsertRun(run Run) error {
	_, err := r.db.Exec(`
		INSERT INTO ingestion_runs (id, trigger_source, status, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.TriggerSource, RunStatusRunning, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *SQLRunRepository) FinishRun(run Run) error {
	result, err := r.db.Exec(`
		UPDATE ingestion_runs
		SET status = ?, raw_groups = ?, public_groups = ?, skipped_groups = ?,
		    pages = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, run.Status, run.RawGroups, run.PublicGroups, run.SkippedGroups,
		run.Pages, run.Error, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finish result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}

	return nil
}

func (r *SQLRunRepository) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, trigger_source, status, raw_groups, public_groups,
		       skipped_groups, pages, error, started_at, finished_at
		FROM ingestion_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(&run.ID, &run.TriggerSource, &run.Status,
			&run.RawGroups, &run.PublicGroups, &run.SkippedGroups,
			&run.Pages, &run.Error, &run.StartedAt, &run.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *SQLRunRepository) GetRunCounts() (int, int, error) {
	var succeeded, failed int
	err := r.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN status = ? THEN 1 END),
			COUNT(CASE WHEN status = ? THEN 1 END)
		FROM ingestion_runs
	`, RunStatusSucceeded, RunStatusFailed).Scan(&succeeded, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return succeeded, failed, nil
}

func (r *SQLRunRepository) GetLastSuccessfulRun() (*Run, error) {
	var run Run
	err := r.db.QueryRow(`
		SELECT id, trigger_source, status, raw_groups, public_groups,
		       skipped_groups, pages, error, started_at, finished_at
		FROM ingestion_runs
		WHERE status = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, RunStatusSucceeded).Scan(&run.ID, &run.TriggerSource, &run.Status,
		&run.RawGroups, &run.PublicGroups, &run.SkippedGroups,
		&run.Pages, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last successful run: %w", err)
	}
	return &run, nil
}
