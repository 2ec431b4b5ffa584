// Package weaviate stores profile chunks in a Weaviate class and searches
// them by vector similarity.
package weaviate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"golang.org/x/time/rate"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/document"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/index"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/vector"
)

// idNamespace derives Weaviate object UUIDs from chunk identifiers.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tauqeer-ali-khan-chatbot/chunk"))

const DefaultBatchSize = 50

// ObjectID maps a chunk identifier to the UUID of its Weaviate object.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(idNamespace, []byte(chunkID)).String())
}

type Store struct {
	client    *weaviate.Client
	schema    vector.SchemaClient
	className string
	embedder  index.Embedder
	batchSize int
	limiter   *rate.Limiter
	ready     atomic.Bool
}

type Option func(*Store)

func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithEmbedRate limits embedding calls to rps batches per second. Zero or
// less disables the limit.
func WithEmbedRate(rps float64) Option {
	return func(s *Store) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func NewStore(client *weaviate.Client, className string, e index.Embedder, opts ...Option) *Store {
	if className == "" {
		className = vector.DefaultClassName
	}
	s := &Store{
		client:    client,
		schema:    vector.NewWeaviateClientAdapter(client),
		className: className,
		embedder:  e,
		batchSize: DefaultBatchSize,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.schema.ClassExists(ctx, s.className)
}

// Open attaches to the existing class, adding properties an older schema
// lacks.
func (s *Store) Open(ctx context.Context) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.className, err)
	}
	if !exists {
		return fmt.Errorf("open %s: %w", s.className, index.ErrUninitialized)
	}
	if err := vector.EnsureSchema(ctx, s.schema, s.className); err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

// Create makes the class when it does not exist. An existing class is kept.
func (s *Store) Create(ctx context.Context) error {
	if err := vector.EnsureSchema(ctx, s.schema, s.className); err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

func (s *Store) Upsert(ctx context.Context, chunks []document.Chunk, ids []string) error {
	if len(chunks) != len(ids) {
		return index.ErrLengthMismatch
	}
	if !s.ready.Load() {
		return index.ErrUninitialized
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		if err := s.upsertBatch(ctx, chunks[start:end], ids[start:end]); err != nil {
			return err
		}
		slog.DebugContext(ctx, "upserted batch", "class", s.className, "from", start, "to", end)
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, chunks []document.Chunk, ids []string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
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

	objects := make([]*models.Object, len(chunks))
	for i, c := range chunks {
		objects[i] = &models.Object{
			Class: s.className,
			ID:    ObjectID(ids[i]),
			Properties: map[string]interface{}{
				vector.PropContent:    c.Content,
				vector.PropSource:     c.Source(),
				vector.PropType:       c.Metadata[document.MetaType],
				vector.PropPage:       c.Metadata[document.MetaPage],
				vector.PropChunkIndex: c.Index,
				vector.PropChunkID:    ids[i],
			},
			Vector: vectors[i],
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}

	var failures []string
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			failures = append(failures, e.Message)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("batch upsert: %d object errors: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]index.Hit, error) {
	if !s.ready.Load() {
		return nil, index.ErrUninitialized
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	fields := []graphql.Field{
		{Name: vector.PropContent},
		{Name: vector.PropSource},
		{Name: vector.PropType},
		{Name: vector.PropPage},
		{Name: vector.PropChunkIndex},
		{Name: vector.PropChunkID},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}

	var hits []index.Hit
	data, _ := res.Data["Get"].(map[string]interface{})
	objects, _ := data[s.className].([]interface{})
	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		hit := index.Hit{Metadata: map[string]string{}}
		hit.Content, _ = props[vector.PropContent].(string)
		hit.ID, _ = props[vector.PropChunkID].(string)
		for prop, key := range map[string]string{
			vector.PropSource: document.MetaSource,
			vector.PropType:   document.MetaType,
			vector.PropPage:   document.MetaPage,
		} {
			if v, ok := props[prop].(string); ok && v != "" {
				hit.Metadata[key] = v
			}
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				hit.Score = float32(1 - d)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of objects in the class, 0 before the class
// exists.
func (s *Store) Count(ctx context.Context) (int, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := agg[s.className].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}
