package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/index"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/retrieval"
)

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Search(ctx context.Context, query string, k int) ([]index.Hit, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.Hit), args.Error(1)
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, k int) (string, error) {
	args := m.Called(ctx, query, k)
	return args.String(0), args.Error(1)
}

func call(t *testing.T, h *Handler, body string) JSONRPCResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func toolText(t *testing.T, resp JSONRPCResponse) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var res ToolResult
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Len(t, res.Content, 1)
	return res.Content[0].Text, res.IsError
}

func TestHandler_Initialize(t *testing.T) {
	resp := call(t, NewHandler(nil), `{"jsonrpc":"2.0","method":"initialize","id":1}`)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	assert.Equal(t, float64(1), resp.ID)
}

func TestHandler_Notification(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandler_ToolsList(t *testing.T) {
	resp := call(t, NewHandler(nil), `{"jsonrpc":"2.0","method":"tools/list","id":2}`)

	raw, _ := json.Marshal(resp.Result)
	var list ListToolsResult
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Tools, 2)
	assert.Equal(t, ToolSearch, list.Tools[0].Name)
	assert.Equal(t, ToolContext, list.Tools[1].Name)
}

func TestHandler_ProfileSearch(t *testing.T) {
	r := new(MockRetriever)
	r.On("Search", mock.Anything, "contact details", 2).Return([]index.Hit{
		{Content: "Email: tauqeer@example.com", Metadata: map[string]string{"source": "data/cv.pdf", "page": "1"}, Score: 0.91},
	}, nil)

	resp := call(t, NewHandler(r), `{"jsonrpc":"2.0","method":"tools/call","id":3,"params":{"name":"profile_search","arguments":{"query":"contact details","limit":2}}}`)

	text, isErr := toolText(t, resp)
	assert.False(t, isErr)
	assert.Contains(t, text, "Result 1 (Score: 0.91)")
	assert.Contains(t, text, "Source: data/cv.pdf")
	assert.Contains(t, text, "Page: 1")
	assert.Contains(t, text, "Email: tauqeer@example.com")
	r.AssertExpectations(t)
}

func TestHandler_ProfileSearch_NoResults(t *testing.T) {
	r := new(MockRetriever)
	r.On("Search", mock.Anything, "hobbies", 0).Return([]index.Hit{}, nil)

	resp := call(t, NewHandler(r), `{"jsonrpc":"2.0","method":"tools/call","id":4,"params":{"name":"profile_search","arguments":{"query":"hobbies"}}}`)

	text, _ := toolText(t, resp)
	assert.Equal(t, "No results found.", text)
}

func TestHandler_ProfileContext(t *testing.T) {
	r := new(MockRetriever)
	r.On("Retrieve", mock.Anything, "skills", 0).Return("Go\n---\nKubernetes", nil)

	resp := call(t, NewHandler(r), `{"jsonrpc":"2.0","method":"tools/call","id":5,"params":{"name":"profile_context","arguments":{"query":"skills"}}}`)

	text, isErr := toolText(t, resp)
	assert.False(t, isErr)
	assert.Equal(t, "Go\n---\nKubernetes", text)
}

func TestHandler_ToolErrors(t *testing.T) {
	r := new(MockRetriever)
	r.On("Search", mock.Anything, "unindexed", 0).Return(nil, retrieval.ErrIndexUninitialized)
	r.On("Retrieve", mock.Anything, "broken", 0).Return("", errors.New("weaviate down"))
	h := NewHandler(r)

	resp := call(t, h, `{"jsonrpc":"2.0","method":"tools/call","id":6,"params":{"name":"profile_search","arguments":{"query":"unindexed"}}}`)
	text, isErr := toolText(t, resp)
	assert.True(t, isErr)
	assert.Equal(t, "The profile index has not been built yet.", text)

	resp = call(t, h, `{"jsonrpc":"2.0","method":"tools/call","id":7,"params":{"name":"profile_context","arguments":{"query":"broken"}}}`)
	text, isErr = toolText(t, resp)
	assert.True(t, isErr)
	assert.Contains(t, text, "weaviate down")
}

func TestHandler_InvalidCalls(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode float64
	}{
		{"parse error", `{`, ErrParse},
		{"unknown method", `{"jsonrpc":"2.0","method":"resources/list","id":1}`, ErrMethodNotFound},
		{"unknown tool", `{"jsonrpc":"2.0","method":"tools/call","id":1,"params":{"name":"web_search","arguments":{}}}`, ErrMethodNotFound},
		{"bad params", `{"jsonrpc":"2.0","method":"tools/call","id":1,"params":"nope"}`, ErrInvalidParams},
		{"empty query", `{"jsonrpc":"2.0","method":"tools/call","id":1,"params":{"name":"profile_search","arguments":{"query":" "}}}`, ErrInvalidParams},
		{"limit too large", `{"jsonrpc":"2.0","method":"tools/call","id":1,"params":{"name":"profile_search","arguments":{"query":"x","limit":500}}}`, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, NewHandler(new(MockRetriever)), tt.body)
			errMap, ok := resp.Error.(map[string]interface{})
			require.True(t, ok, "expected error object")
			assert.Equal(t, tt.wantCode, errMap["code"])
		})
	}
}

func TestHandler_HandleMessage_Validation(t *testing.T) {
	h := NewHandler(nil)
	h.sessions["known"] = make(chan string, 1)

	tests := []struct {
		name       string
		url        string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing session", "/mcp/messages", "{}", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown session", "/mcp/messages?sessionId=nope", "{}", http.StatusNotFound, "NOT_FOUND"},
		{"invalid json", "/mcp/messages?sessionId=known", "{bad", http.StatusBadRequest, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, tt.url, bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestHandler_SSERoundTrip(t *testing.T) {
	r := new(MockRetriever)
	r.On("Retrieve", mock.Anything, "skills", 0).Return("Go", nil)
	h := NewHandler(r)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /mcp/sse", h.HandleSSE)
	mux.HandleFunc("POST /mcp/messages", h.HandleMessage)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/mcp/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	events := bufio.NewReader(resp.Body)
	readData := func(event string) string {
		for {
			line, err := events.ReadString('\n')
			require.NoError(t, err)
			if line == "event: "+event+"\n" {
				data, err := events.ReadString('\n')
				require.NoError(t, err)
				return strings.TrimSuffix(strings.TrimPrefix(data, "data: "), "\n")
			}
		}
	}

	endpoint := readData("endpoint")
	require.True(t, strings.HasPrefix(endpoint, "/mcp/messages?sessionId="))

	post, err := http.Post(srv.URL+endpoint, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"tools/call","id":9,"params":{"name":"profile_context","arguments":{"query":"skills"}}}`))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusAccepted, post.StatusCode)

	var msg JSONRPCResponse
	require.NoError(t, json.Unmarshal([]byte(readData("message")), &msg))
	assert.Equal(t, float64(9), msg.ID)
	text, _ := toolText(t, msg)
	assert.Equal(t, "Go", text)
}
