package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/ingest"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
)

// IndexTaskHandler runs one indexing task and records its outcome.
type IndexTaskHandler interface {
	HandleIndexTask(ctx context.Context, task IndexTaskPayload) error
}

// IndexConsumer runs index tasks from NSQ. Failed runs are recorded by the
// handler and not requeued: a failed embedding call needs an operator, not
// a retry loop.
type IndexConsumer struct {
	handler       IndexTaskHandler
	timeout       time.Duration
	touchInterval time.Duration
}

func NewIndexConsumer(h IndexTaskHandler, timeout time.Duration) *IndexConsumer {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &IndexConsumer{handler: h, timeout: timeout, touchInterval: 30 * time.Second}
}

func (c *IndexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task IndexTaskPayload
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if _, err := ingest.ParseMode(task.Mode); err != nil {
		slog.Error("poison pill: invalid index mode", "mode", task.Mode, "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stop := c.keepAlive(ctx, m)
	defer stop()

	slog.InfoContext(ctx, "index task received", "mode", task.Mode, "trigger", task.Trigger)
	if err := c.handler.HandleIndexTask(ctx, task); err != nil {
		slog.ErrorContext(ctx, "index task failed", "mode", task.Mode, "error", err)
	}
	return nil
}

// keepAlive touches m periodically so nsqd does not requeue a long run.
func (c *IndexConsumer) keepAlive(ctx context.Context, m *nsq.Message) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.touchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Touch()
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}
