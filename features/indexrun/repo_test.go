package indexrun

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runCols = []string{"id", "mode", "trigger", "status", "files", "documents", "skipped", "chunks", "chunks_dropped", "duration_ms", "error", "started_at", "finished_at"}

func TestPostgresRepo_Start(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO index_runs").
		WithArgs("auto", TriggerManual, StatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at"}).AddRow("run-1", started))

	repo := NewPostgresRepo(db)
	run := &Run{Mode: "auto", Trigger: TriggerManual, Status: StatusRunning}
	require.NoError(t, repo.Start(context.Background(), run))

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, started, run.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Finish(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	finished := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE index_runs").
		WithArgs("run-1", "create", StatusSucceeded, 3, 4, 1, 9, 2, int64(1500), "").
		WillReturnRows(sqlmock.NewRows([]string{"finished_at"}).AddRow(finished))
	mock.ExpectExec("INSERT INTO index_skips").
		WithArgs("run-1", "data/photo.gif", "unsupported extension", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewPostgresRepo(db)
	run := &Run{
		ID: "run-1", Mode: "create", Status: StatusSucceeded,
		Files: 3, Documents: 4, Skipped: 1, Chunks: 9, ChunksDropped: 2, DurationMs: 1500,
		Skips: []Skip{{Path: "data/photo.gif", Reason: "unsupported extension"}},
	}
	require.NoError(t, repo.Finish(context.Background(), run))

	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, finished, *run.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Finish_RollsBackOnSkipError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE index_runs").
		WillReturnRows(sqlmock.NewRows([]string{"finished_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO index_skips").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	repo := NewPostgresRepo(db)
	run := &Run{ID: "run-1", Skips: []Skip{{Path: "a.pdf", Reason: "pdf parse failed"}}}
	err = repo.Finish(context.Background(), run)

	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(runCols).
		AddRow("run-2", "upsert", TriggerAPI, StatusFailed, 1, 1, 0, 0, 0, int64(10), "boom", now, now).
		AddRow("run-1", "create", TriggerBoot, StatusRunning, 0, 0, 0, 0, 0, int64(0), "", now, nil)
	mock.ExpectQuery("SELECT (.+) FROM index_runs ORDER BY started_at DESC LIMIT").
		WithArgs(20).
		WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	runs, err := repo.List(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "boom", runs[0].Error)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[1].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM index_runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runCols).
			AddRow("run-1", "create", TriggerManual, StatusSucceeded, 2, 2, 1, 5, 0, int64(42), "", now, now))
	mock.ExpectQuery("SELECT path, reason, error FROM index_skips").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"path", "reason", "error"}).
			AddRow("cv.png", "image describer failed", "deadline exceeded"))

	repo := NewPostgresRepo(db)
	run, err := repo.Get(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, 5, run.Chunks)
	require.Len(t, run.Skips, 1)
	assert.Equal(t, "deadline exceeded", run.Skips[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM index_runs WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runCols))

	repo := NewPostgresRepo(db)
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM index_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	repo := NewPostgresRepo(db)
	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
