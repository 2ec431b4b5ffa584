package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
)

type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

type RunCounter interface {
	Count(ctx context.Context) (int, error)
}

type SessionCounter interface {
	Len() int
}

type Handler struct {
	chunks   ChunkCounter
	runs     RunCounter
	sessions SessionCounter
}

func NewHandler(c ChunkCounter, r RunCounter, s SessionCounter) *Handler {
	return &Handler{chunks: c, runs: r, sessions: s}
}

type StatsResponse struct {
	Chunks    int `json:"chunks"`
	Sessions  int `json:"sessions"`
	IndexRuns int `json:"index_runs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	chunks, err := h.chunks.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	runs, err := h.runs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count index runs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count index runs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Chunks:    chunks,
		Sessions:  h.sessions.Len(),
		IndexRuns: runs,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
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
