package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/prompt"
)

const DefaultGenerationTimeout = 2 * time.Minute

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (string, error)
}

// Generator streams a model completion for msg given the system instruction
// and prior turns, passing each token to emit, and returns the full reply.
type Generator interface {
	Stream(ctx context.Context, system string, history []prompt.Message, msg string, emit func(string) error) (string, error)
}

type Service struct {
	retriever Retriever
	generator Generator
	templates *prompt.Templates
	sessions  *SessionStore
	timeout   time.Duration
}

func NewService(r Retriever, g Generator, t *prompt.Templates, sessions *SessionStore, timeout time.Duration) *Service {
	if t == nil {
		t = prompt.Default()
	}
	if sessions == nil {
		sessions = NewSessionStore()
	}
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &Service{retriever: r, generator: g, templates: t, sessions: sessions, timeout: timeout}
}

func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// Stream answers query within the session, emitting tokens as they arrive.
// The reply always ends with a newline. The transcript grows only when the
// whole exchange succeeds.
func (s *Service) Stream(ctx context.Context, sessionID, query string, emit func(string) error) error {
	ctx = middleware.WithSessionID(ctx, sessionID)

	sess := s.sessions.Acquire(sessionID)
	defer sess.Release()

	contextText, err := s.retriever.Retrieve(ctx, query, 0)
	if err != nil {
		return err
	}

	msg, err := s.templates.Render(query, contextText)
	if err != nil {
		return err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.generator.Stream(genCtx, s.templates.System, sess.History(), msg, emit)
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}
	if reply != "" && !strings.HasSuffix(reply, "\n") {
		if err := emit("\n"); err != nil {
			return err
		}
	}

	sess.Turns = append(sess.Turns,
		prompt.Message{Role: prompt.RoleUser, Text: msg},
		prompt.Message{Role: prompt.RoleModel, Text: reply},
	)
	slog.InfoContext(ctx, "chat reply streamed", "turns", len(sess.Turns), "reply_len", len(reply), "duration", time.Since(start))
	return nil
}
