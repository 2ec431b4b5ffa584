package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/index"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/settings"
)

// Separator is placed between retrieved chunks in the context string.
const Separator = "\n---\n"

var ErrIndexUninitialized = errors.New("index not initialized: run `index` first")

type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Service struct {
	store    index.Store
	reranker Reranker
	settings SettingsProvider
	logger   *QueryLogger
	rules    []RewriteRule
}

type Option func(*Service)

// WithRewriteRules replaces the default rewrite rules.
func WithRewriteRules(rules ...RewriteRule) Option {
	return func(s *Service) { s.rules = rules }
}

func WithReranker(r Reranker) Option {
	return func(s *Service) { s.reranker = r }
}

func WithQueryLogger(l *QueryLogger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store index.Store, set SettingsProvider, opts ...Option) *Service {
	s := &Service{store: store, settings: set, rules: DefaultRules()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search returns the ranked hits for query. A non-positive k uses the
// configured search_top_k.
func (s *Service) Search(ctx context.Context, query string, k int) (hits []index.Hit, err error) {
	start := time.Now()
	rewritten, applied := Rewrite(s.rules, query)

	defer func() {
		if s.logger != nil && err == nil {
			s.logger.Log(QueryLogEntry{
				Query:          query,
				RewrittenQuery: rewritten,
				Rules:          applied,
				NumResults:     len(hits),
				Duration:       time.Since(start),
				CorrelationID:  middleware.GetCorrelationID(ctx),
			})
		}
	}()

	if k <= 0 {
		k = s.topK(ctx)
	}

	hits, err = s.store.SimilaritySearch(ctx, rewritten, k)
	if err != nil {
		if errors.Is(err, index.ErrUninitialized) {
			return nil, ErrIndexUninitialized
		}
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	if s.reranker != nil && len(hits) > 1 {
		contents := make([]string, len(hits))
		for i, h := range hits {
			contents[i] = h.Content
		}
		indices, err := s.reranker.Rerank(ctx, rewritten, contents)
		if err != nil {
			return nil, fmt.Errorf("rerank: %w", err)
		}
		reranked := make([]index.Hit, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(hits) {
				reranked = append(reranked, hits[idx])
			}
		}
		hits = reranked
	}

	return hits, nil
}

// Retrieve returns the content of the top k hits joined by Separator.
func (s *Service) Retrieve(ctx context.Context, query string, k int) (string, error) {
	hits, err := s.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, Separator), nil
}

func (s *Service) topK(ctx context.Context) int {
	if s.settings == nil {
		return settings.DefaultSearchTopK
	}
	set, err := s.settings.Get(ctx)
	if err != nil || set.SearchTopK <= 0 {
		if err != nil {
			slog.WarnContext(ctx, "failed to read search settings, using default top k", "error", err)
		}
		return settings.DefaultSearchTopK
	}
	return set.SearchTopK
}
