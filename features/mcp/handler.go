// Package mcp exposes profile retrieval as Model Context Protocol tools over
// JSON-RPC, either as plain POST requests or through an SSE session.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/index"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/retrieval"
)

const (
	ToolSearch  = "profile_search"
	ToolContext = "profile_context"

	MaxLimit = 20
)

type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]index.Hit, error)
	Retrieve(ctx context.Context, query string, k int) (string, error)
}

type Handler struct {
	retriever    Retriever
	sessions     map[string]chan string // sessionId -> serialized JSON-RPC responses
	sessionsLock sync.RWMutex
	keepAlive    time.Duration
}

func NewHandler(r Retriever) *Handler {
	return &Handler{
		retriever: r,
		sessions:  make(map[string]chan string),
		keepAlive: 15 * time.Second,
	}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type SearchArgs struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

var tools = []Tool{
	{
		Name: ToolSearch,
		Description: `Searches Tauqeer Ali Khan's profile (CV, project notes, certificates) and returns the most relevant passages with their source file and score.

USAGE EXAMPLE:
profile_search(query="cloud certifications", limit=5)`,
		InputSchema: searchSchema("Max passages to return (default from settings)."),
	},
	{
		Name: ToolContext,
		Description: `Returns the exact context block the profile chat would use to answer a question: the top passages joined by "---" separators.

USAGE EXAMPLE:
profile_context(query="how can I contact him")`,
		InputSchema: searchSchema("Max passages to include (default from settings)."),
	},
}

func searchSchema(limitDesc string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]string{
				"type":        "string",
				"description": "The question or keywords",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": limitDesc,
				"minimum":     1,
				"maximum":     MaxLimit,
			},
		},
		"required": []string{"query"},
	}
}

// processRequest returns nil for notifications.
func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "profile-mcp",
					"version": "1.0.0",
				},
			},
		}
	case "notifications/initialized":
		return nil
	case "tools/list":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ListToolsResult{Tools: tools}}
	case "tools/call":
		return h.callTool(ctx, req)
	}

	slog.WarnContext(ctx, "unknown jsonrpc method", "method", req.Method)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
	return &resp
}

func (h *Handler) callTool(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
		return &resp
	}
	if params.Name != ToolSearch && params.Name != ToolContext {
		slog.WarnContext(ctx, "tool not found", "tool", params.Name)
		resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
		return &resp
	}

	var args SearchArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid arguments")
		return &resp
	}
	if strings.TrimSpace(args.Query) == "" {
		resp := makeErrorResponse(req.ID, ErrInvalidParams, "Query is required")
		return &resp
	}
	k := 0
	if args.Limit != nil {
		if *args.Limit < 1 || *args.Limit > MaxLimit {
			resp := makeErrorResponse(req.ID, ErrInvalidParams, fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
			return &resp
		}
		k = *args.Limit
	}

	var text string
	var err error
	if params.Name == ToolSearch {
		var hits []index.Hit
		hits, err = h.retriever.Search(ctx, args.Query, k)
		text = formatHits(hits)
	} else {
		text, err = h.retriever.Retrieve(ctx, args.Query, k)
		if err == nil && text == "" {
			text = "No results found."
		}
	}
	if err != nil {
		slog.ErrorContext(ctx, "tool execution failed", "tool", params.Name, "error", err)
		msg := "Error: " + err.Error()
		if errors.Is(err, retrieval.ErrIndexUninitialized) {
			msg = "The profile index has not been built yet."
		}
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  ToolResult{Content: []ToolContent{{Type: "text", Text: msg}}, IsError: true},
		}
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", params.Name)
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ToolResult{Content: []ToolContent{{Type: "text", Text: text}}},
	}
}

func formatHits(hits []index.Hit) string {
	if len(hits) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&b, "Result %d (Score: %.2f):\n", i+1, hit.Score)
		if src := hit.Metadata["source"]; src != "" {
			fmt.Fprintf(&b, "Source: %s\n", src)
		}
		if page := hit.Metadata["page"]; page != "" {
			fmt.Fprintf(&b, "Page: %s\n", page)
		}
		fmt.Fprintf(&b, "Content:\n%s\n---\n", hit.Content)
	}
	return b.String()
}

func makeErrorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

// ServeHTTP answers a single JSON-RPC request in the response body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, ErrParse, "Parse error")
		return
	}

	resp := h.processRequest(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// HandleSSE opens an SSE session. Responses to requests posted to the
// advertised endpoint are delivered as "message" events.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeHttpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", middleware.GetCorrelationID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := uuid.New().String()
	msgChan := make(chan string, 100)

	h.sessionsLock.Lock()
	h.sessions[sessionID] = msgChan
	h.sessionsLock.Unlock()

	defer func() {
		h.sessionsLock.Lock()
		delete(h.sessions, sessionID)
		close(msgChan)
		h.sessionsLock.Unlock()
		slog.Info("sse session ended", "session_id", sessionID)
	}()

	slog.Info("sse session started", "session_id", sessionID)

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp/messages?sessionId=%s\n\n", sessionID)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandleMessage accepts a JSON-RPC request for an SSE session and answers
// 202 right away; the response goes out on the session stream.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		h.writeHttpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing sessionId", correlationID)
		return
	}

	h.sessionsLock.RLock()
	_, exists := h.sessions[sessionID]
	h.sessionsLock.RUnlock()
	if !exists {
		h.writeHttpError(w, http.StatusNotFound, "NOT_FOUND", "Session not found", correlationID)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeHttpError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON", correlationID)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	bgCtx := context.WithoutCancel(r.Context())
	go func() {
		resp := h.processRequest(bgCtx, req)
		if resp == nil {
			return
		}
		respBytes, err := json.Marshal(resp)
		if err != nil {
			slog.ErrorContext(bgCtx, "failed to marshal response", "error", err)
			return
		}
		h.deliver(bgCtx, sessionID, string(respBytes))
	}()
}

// deliver holds the read lock while sending so the session channel cannot
// be closed underneath it.
func (h *Handler) deliver(ctx context.Context, sessionID, msg string) {
	h.sessionsLock.RLock()
	defer h.sessionsLock.RUnlock()

	msgChan, ok := h.sessions[sessionID]
	if !ok {
		slog.WarnContext(ctx, "sse session gone, dropping response", "session_id", sessionID)
		return
	}
	select {
	case msgChan <- msg:
	default:
		slog.WarnContext(ctx, "session channel full, dropping message", "session_id", sessionID)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	// JSON-RPC over HTTP reports errors in the body with 200 OK.
	w.WriteHeader(http.StatusOK)

	resp := makeErrorResponse(id, code, message)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func (h *Handler) writeHttpError(w http.ResponseWriter, status int, code string, message string, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"correlationId": correlationID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
