package indexrun

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps run history in process. Used when no database is configured.
type MemoryRepo struct {
	mu   sync.Mutex
	runs []Run
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Start(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = uuid.NewString()
	run.StartedAt = time.Now().UTC()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *MemoryRepo) Finish(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	run.FinishedAt = &now
	for i := range r.runs {
		if r.runs[i].ID == run.ID {
			r.runs[i] = *run
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *MemoryRepo) List(_ context.Context, limit int) ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Run, 0, len(r.runs))
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		run := r.runs[i]
		run.Skips = nil
		out = append(out, run)
	}
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			return &run, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs), nil
}
