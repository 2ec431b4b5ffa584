// Package index defines the contract of the embedding-indexed chunk store
// and an in-process implementation of it.
package index

import (
	"context"
	"errors"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/document"
)

// ErrUninitialized is returned by a store that was neither opened nor created.
var ErrUninitialized = errors.New("index store not initialized")

// Hit is one ranked similarity search result.
type Hit struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

// Embedder is the embedding function a store uses for both chunks and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is a persistent embedding-indexed chunk store.
//
// Exists reports whether a persisted collection is present. Open attaches to
// it and Create makes a new one; until one of them succeeds Upsert and
// SimilaritySearch fail with ErrUninitialized. Upsert inserts or replaces
// entries by identifier. Implementations must be safe for concurrent reads.
type Store interface {
	Exists(ctx context.Context) (bool, error)
	Open(ctx context.Context) error
	Create(ctx context.Context) error
	Upsert(ctx context.Context, chunks []document.Chunk, ids []string) error
	SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
}

// ErrLengthMismatch is returned when chunks and identifiers are not paired.
var ErrLengthMismatch = errors.New("chunks and ids length mismatch")
