package reranker

import (
	"context"
	"fmt"
	"sync"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/settings"
)

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// DynamicClient picks the provider and key from the current settings on
// every call, rebuilding its client only when they change.
type DynamicClient struct {
	settings SettingsProvider

	mu       sync.Mutex
	client   *Client
	provider string
	apiKey   string
}

func NewDynamicClient(s SettingsProvider) *DynamicClient {
	return &DynamicClient{settings: s}
}

func (d *DynamicClient) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	set, err := d.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if set.RerankProvider == "" || set.RerankProvider == settings.ProviderNone {
		return identity(len(docs)), nil
	}
	return d.getClient(set.RerankProvider, set.RerankAPIKey).Rerank(ctx, query, docs)
}

func (d *DynamicClient) getClient(provider, apiKey string) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil || d.provider != provider || d.apiKey != apiKey {
		d.client = NewClient(provider, apiKey)
		d.provider = provider
		d.apiKey = apiKey
	}
	return d.client
}
