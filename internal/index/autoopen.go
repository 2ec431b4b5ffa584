package index

import (
	"context"
	"errors"
)

type autoOpenStore struct {
	Store
}

// AutoOpen wraps s so a search that finds the store uninitialized attaches
// to the collection when one exists by now, then retries once. This covers
// collections built by another process after startup.
func AutoOpen(s Store) Store {
	return autoOpenStore{Store: s}
}

func (a autoOpenStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error) {
	hits, err := a.Store.SimilaritySearch(ctx, query, k)
	if !errors.Is(err, ErrUninitialized) {
		return hits, err
	}
	exists, existsErr := a.Exists(ctx)
	if existsErr != nil || !exists {
		return hits, err
	}
	if err := a.Open(ctx); err != nil {
		return nil, err
	}
	return a.Store.SimilaritySearch(ctx, query, k)
}
