package chat

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/retrieval"
)

//go:embed static
var staticFiles embed.FS

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// Chat streams the answer to a query as server-sent events. Failures before
// the first token get a JSON error; later ones an "error" event.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON", http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" || req.SessionID == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "query and session_id are required", http.StatusBadRequest)
		return
	}

	sse := &eventWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		sse.flusher = f
	}

	err := h.service.Stream(ctx, req.SessionID, req.Query, sse.token)
	if err == nil {
		_ = sse.event("done", "")
		return
	}

	slog.ErrorContext(middleware.WithSessionID(ctx, req.SessionID), "chat failed", "error", err, "streaming", sse.started)
	if sse.started {
		_ = sse.event("error", err.Error())
		return
	}
	if errors.Is(err, retrieval.ErrIndexUninitialized) {
		h.writeError(ctx, w, "INDEX_UNINITIALIZED", err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to generate reply", http.StatusInternalServerError)
}

// Index serves the embedded chat page.
func (h *Handler) Index() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// eventWriter writes text/event-stream frames, sending headers with the
// first frame.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (e *eventWriter) start() {
	if e.started {
		return
	}
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.started = true
}

func (e *eventWriter) token(s string) error {
	return e.event("", s)
}

// event writes one frame. Multi-line data becomes one data field per line.
func (e *eventWriter) event(name, data string) error {
	e.start()

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "event: %s\n", name)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := e.w.Write([]byte(b.String())); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
