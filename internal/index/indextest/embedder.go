// Package indextest provides deterministic embedding doubles for tests.
package indextest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

const dims = 64

// BagOfWords embeds text as a hashed term-frequency vector, so texts sharing
// words are close under cosine similarity.
type BagOfWords struct {
	mu      sync.Mutex
	Calls   int
	Queries []string
	Err     error
}

func (b *BagOfWords) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	b.Calls++
	err := b.Err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (b *BagOfWords) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	b.mu.Lock()
	b.Queries = append(b.Queries, text)
	err := b.Err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return Vector(text), nil
}

// Vector returns the hashed term-frequency vector of text.
func Vector(text string) []float32 {
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%dims]++
	}
	return v
}
