package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/document"
)

type memoryEntry struct {
	id       string
	content  string
	metadata map[string]string
	vector   []float32
}

// MemoryStore keeps index entries in process memory and ranks them by
// cosine similarity. Entries are lost when the process exits.
type MemoryStore struct {
	embedder Embedder

	mu          sync.RWMutex
	created     bool
	initialized bool
	entries     map[string]*memoryEntry
	order       []string
}

func NewMemoryStore(e Embedder) *MemoryStore {
	return &MemoryStore{embedder: e, entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Exists(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created, nil
}

func (s *MemoryStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return fmt.Errorf("open: %w", ErrUninitialized)
	}
	s.initialized = true
	return nil
}

func (s *MemoryStore) Create(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	s.initialized = true
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, chunks []document.Chunk, ids []string) error {
	if len(chunks) != len(ids) {
		return ErrLengthMismatch
	}
	s.mu.RLock()
	ready := s.initialized
	s.mu.RUnlock()
	if !ready {
		return ErrUninitialized
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		if _, ok := s.entries[ids[i]]; !ok {
			s.order = append(s.order, ids[i])
		}
		s.entries[ids[i]] = &memoryEntry{
			id:       ids[i],
			content:  c.Content,
			metadata: document.CloneMetadata(c.Metadata),
			vector:   vectors[i],
		}
	}
	return nil
}

func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error) {
	s.mu.RLock()
	ready := s.initialized
	s.mu.RUnlock()
	if !ready {
		return nil, ErrUninitialized
	}

	qv, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		hits = append(hits, Hit{
			ID:       e.id,
			Content:  e.content,
			Metadata: document.CloneMetadata(e.metadata),
			Score:    cosine(qv, e.vector),
		})
	}
	s.mu.RUnlock()

	// Stable keeps insertion order among equal scores.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
