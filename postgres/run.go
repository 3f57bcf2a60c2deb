package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/workflow"
)

// DefaultRunLimit caps ListRuns when the caller passes a non-positive limit.
const DefaultRunLimit = 50

// RecordRun inserts one execution attempt. Recording the same id twice
// overwrites the earlier row.
func (s *PGStore) RecordRun(ctx context.Context, run *workflow.Run) error {
	updated := run.Updated
	if updated == nil {
		updated = []string{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO workflow_runs
		    (id, status, node_count, updated, request, result, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		    status = EXCLUDED.status,
		    node_count = EXCLUDED.node_count,
		    updated = EXCLUDED.updated,
		    request = EXCLUDED.request,
		    result = EXCLUDED.result,
		    error = EXCLUDED.error,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at`,
		run.ID, string(run.Status), run.NodeCount, updated, run.Request, run.Result,
		run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("workflow: insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListRuns(ctx context.Context, limit int) ([]workflow.Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, status, node_count, updated, request, result, error, started_at, finished_at
		   FROM workflow_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("workflow: list runs: %w", err)
	}
	defer rows.Close()

	runs := []workflow.Run{}
	for rows.Next() {
		var (
			r      workflow.Run
			status string
		)
		if err := rows.Scan(&r.ID, &status, &r.NodeCount, &r.Updated, &r.Request, &r.Result,
			&r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("workflow: scan run: %w", err)
		}
		r.Status = workflow.RunStatus(status)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows runs: %w", err)
	}

	return runs, nil
}
