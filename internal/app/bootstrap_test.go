package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/app"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/config"
)

type flakyChecker struct {
	calls     int
	failUntil int
}

func (c *flakyChecker) Ready(ctx context.Context) error {
	c.calls++
	if c.calls <= c.failUntil {
		return errors.New("not ready")
	}
	return nil
}

func TestWaitReady_Success(t *testing.T) {
	c := &flakyChecker{}
	require.NoError(t, app.WaitReady(context.Background(), c, 1, time.Millisecond))
	assert.Equal(t, 1, c.calls)
}

func TestWaitReady_Retries(t *testing.T) {
	c := &flakyChecker{failUntil: 2}
	require.NoError(t, app.WaitReady(context.Background(), c, 5, time.Millisecond))
	assert.Equal(t, 3, c.calls)
}

func TestWaitReady_Fail(t *testing.T) {
	c := &flakyChecker{failUntil: 10}
	err := app.WaitReady(context.Background(), c, 3, time.Millisecond)
	assert.EqualError(t, err, "not ready")
	assert.Equal(t, 3, c.calls)
}

func TestWaitReady_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &flakyChecker{failUntil: 10}
	err := app.WaitReady(ctx, c, 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBootstrap_AllDisabled(t *testing.T) {
	cfg := &config.Config{VectorBackend: config.BackendMemory}

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, deps.DB)
	assert.Nil(t, deps.Weaviate)
	assert.Nil(t, deps.NSQProducer)
	deps.Close()
}

func TestBootstrap_DBUnreachable(t *testing.T) {
	cfg := &config.Config{
		DBEnabled:              true,
		DBHost:                 "127.0.0.1",
		DBPort:                 1,
		DBUser:                 "chatbot",
		DBPass:                 "chatbot",
		DBName:                 "chatbot",
		VectorBackend:          config.BackendMemory,
		BootstrapRetryAttempts: 1,
	}

	_, err := app.Bootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping db")
}

func TestBootstrap_Weaviate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/.well-known/ready" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	cfg := &config.Config{
		VectorBackend:          config.BackendWeaviate,
		WeaviateHost:           strings.TrimPrefix(ts.URL, "http://"),
		WeaviateScheme:         "http",
		BootstrapRetryAttempts: 1,
	}

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, deps.Weaviate)
	deps.Close()
}

func TestBootstrap_WeaviateNotReady(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := &config.Config{
		VectorBackend:          config.BackendWeaviate,
		WeaviateHost:           strings.TrimPrefix(ts.URL, "http://"),
		WeaviateScheme:         "http",
		BootstrapRetryAttempts: 2,
	}

	_, err := app.Bootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weaviate not ready")
}
