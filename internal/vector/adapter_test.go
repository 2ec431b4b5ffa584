package vector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/vector"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *vector.WeaviateClientAdapter {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	client, err := weaviate.NewClient(weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"})
	require.NoError(t, err)
	return vector.NewWeaviateClientAdapter(client)
}

func TestWeaviateClientAdapter_ClassExists(t *testing.T) {
	t.Run("Exists", func(t *testing.T) {
		adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/schema/ProfileChunk", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(&models.Class{Class: "ProfileChunk"})
		})

		exists, err := adapter.ClassExists(context.Background(), "ProfileChunk")
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("NotFound", func(t *testing.T) {
		adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		exists, err := adapter.ClassExists(context.Background(), "ProfileChunk")
		assert.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestWeaviateClientAdapter_CreateClass(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schema", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var class models.Class
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&class))
		assert.Equal(t, "ProfileChunk", class.Class)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(class)
	})

	assert.NoError(t, adapter.CreateClass(context.Background(), &models.Class{Class: "ProfileChunk"}))
}

func TestWeaviateClientAdapter_GetClass(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schema/ProfileChunk", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(&models.Class{Class: "ProfileChunk"})
	})

	class, err := adapter.GetClass(context.Background(), "ProfileChunk")
	require.NoError(t, err)
	assert.Equal(t, "ProfileChunk", class.Class)
}

func TestWeaviateClientAdapter_AddProperty(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schema/ProfileChunk/properties", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"name":"page","dataType":["string"]}`))
	})

	prop := &models.Property{Name: "page", DataType: []string{"string"}}
	assert.NoError(t, adapter.AddProperty(context.Background(), "ProfileChunk", prop))
}

func TestWeaviateClientAdapter_Ready(t *testing.T) {
	t.Run("Ready", func(t *testing.T) {
		adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/.well-known/ready", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		assert.NoError(t, adapter.Ready(context.Background()))
	})

	t.Run("NotReady", func(t *testing.T) {
		adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		assert.Error(t, adapter.Ready(context.Background()))
	})
}
