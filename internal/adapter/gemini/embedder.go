package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
)

// MaxBatchSize is the largest number of texts the API accepts in one
// batchEmbedContents call.
const MaxBatchSize = 100

type Embedder struct {
	clients   *ClientProvider
	model     string
	batchSize int
}

func NewEmbedder(clients *ClientProvider, model string, batchSize int) *Embedder {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Embedder{clients: clients, model: model, batchSize: batchSize}
}

// EmbedDocuments embeds texts with the retrieval-document task type.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := e.clients.Client(ctx)
	if err != nil {
		return nil, err
	}
	em := client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		slog.DebugContext(ctx, "embedding batch", "model", e.model, "size", end-start)
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("batch embed: got %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("empty embedding received")
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

// EmbedQuery embeds a search query with the retrieval-query task type.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	client, err := e.clients.Client(ctx)
	if err != nil {
		return nil, err
	}
	em := client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return res.Embedding.Values, nil
}
