package indexrun

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/config"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/ingest"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/worker"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Runner executes the indexing pipeline.
type Runner interface {
	Run(ctx context.Context, mode ingest.Mode) (ingest.RunReport, error)
}

type Service struct {
	repo   Repository
	runner Runner
	pub    EventPublisher

	mu sync.Mutex // one pipeline run at a time in this process
	wg sync.WaitGroup
}

// NewService builds the run service. A nil publisher makes Enqueue run the
// pipeline in a background goroutine instead of going through NSQ.
func NewService(repo Repository, runner Runner, pub EventPublisher) *Service {
	return &Service{repo: repo, runner: runner, pub: pub}
}

// Execute runs the pipeline synchronously and records the run. The returned
// run is populated even when the pipeline fails.
func (s *Service) Execute(ctx context.Context, mode ingest.Mode, trigger string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &Run{Mode: string(mode), Trigger: trigger, Status: StatusRunning}
	if err := s.repo.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	rep, runErr := s.runner.Run(ctx, mode)
	if rep.Mode != "" {
		run.Mode = string(rep.Mode)
	}
	run.Files = rep.Files
	run.Documents = rep.Documents
	run.Skipped = rep.Skipped
	run.Chunks = rep.Chunks
	run.ChunksDropped = rep.ChunksDropped
	run.DurationMs = rep.Duration.Milliseconds()
	for _, f := range rep.Skips {
		run.Skips = append(run.Skips, Skip{Path: f.Path, Reason: f.Reason, Error: f.Err})
	}

	run.Status = StatusSucceeded
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}

	// The run outcome is stored even if ctx was cancelled mid-run.
	if err := s.repo.Finish(context.WithoutCancel(ctx), run); err != nil {
		slog.ErrorContext(ctx, "failed to record run", "id", run.ID, "error", err)
	}

	if runErr != nil {
		return run, runErr
	}
	return run, nil
}

// HandleIndexTask runs a task received from the queue.
func (s *Service) HandleIndexTask(ctx context.Context, task worker.IndexTaskPayload) error {
	mode, err := ingest.ParseMode(task.Mode)
	if err != nil {
		return err
	}
	trigger := task.Trigger
	if trigger == "" {
		trigger = TriggerAPI
	}
	_, err = s.Execute(ctx, mode, trigger)
	return err
}

// Enqueue requests an asynchronous pipeline run.
func (s *Service) Enqueue(ctx context.Context, mode ingest.Mode, trigger string) error {
	task := worker.IndexTaskPayload{
		Mode:          string(mode),
		Trigger:       trigger,
		RequestedAt:   time.Now().UTC(),
		CorrelationID: middleware.GetCorrelationID(ctx),
	}

	if s.pub == nil {
		bg := context.WithoutCancel(ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.HandleIndexTask(bg, task); err != nil {
				slog.ErrorContext(bg, "background index run failed", "mode", mode, "error", err)
			}
		}()
		return nil
	}

	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(config.TopicIndexTask, body); err != nil {
		return fmt.Errorf("publish index task: %w", err)
	}
	return nil
}

// Wait blocks until background runs started by Enqueue have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.List(ctx, limit)
}

func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
