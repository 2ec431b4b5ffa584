package indexrun

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository interface {
	Start(ctx context.Context, run *Run) error
	Finish(ctx context.Context, run *Run) error
	List(ctx context.Context, limit int) ([]Run, error)
	Get(ctx context.Context, id string) (*Run, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Start(ctx context.Context, run *Run) error {
	query := `INSERT INTO index_runs (mode, trigger, status) VALUES ($1, $2, $3) RETURNING id, started_at`
	return r.db.QueryRowContext(ctx, query, run.Mode, run.Trigger, run.Status).Scan(&run.ID, &run.StartedAt)
}

// Finish stores the outcome and skipped files of run in one transaction.
func (r *PostgresRepo) Finish(ctx context.Context, run *Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		UPDATE index_runs
		SET mode = $2, status = $3, files = $4, documents = $5, skipped = $6, chunks = $7,
			chunks_dropped = $8, duration_ms = $9, error = $10, finished_at = NOW()
		WHERE id = $1
		RETURNING finished_at
	`
	var finished sql.NullTime
	err = tx.QueryRowContext(ctx, query, run.ID, run.Mode, run.Status, run.Files, run.Documents, run.Skipped,
		run.Chunks, run.ChunksDropped, run.DurationMs, run.Error).Scan(&finished)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}

	for _, s := range run.Skips {
		_, err := tx.ExecContext(ctx, `INSERT INTO index_skips (run_id, path, reason, error) VALUES ($1, $2, $3, $4)`,
			run.ID, s.Path, s.Reason, s.Error)
		if err != nil {
			return fmt.Errorf("insert skip: %w", err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, mode, trigger, status, files, documents, skipped, chunks, chunks_dropped, duration_ms, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var finished sql.NullTime
	err := s.Scan(&run.ID, &run.Mode, &run.Trigger, &run.Status, &run.Files, &run.Documents, &run.Skipped,
		&run.Chunks, &run.ChunksDropped, &run.DurationMs, &run.Error, &run.StartedAt, &finished)
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, err
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM index_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM index_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT path, reason, error FROM index_skips WHERE run_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s Skip
		if err := rows.Scan(&s.Path, &s.Reason, &s.Error); err != nil {
			return nil, err
		}
		run.Skips = append(run.Skips, s)
	}
	return &run, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM index_runs`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
