// Package gemini adapts the Gemini API to the embedding, image description
// and chat interfaces of the service.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/settings"
)

var ErrMissingAPIKey = errors.New("gemini api key not configured")

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// ClientProvider hands out a genai client for the API key currently stored
// in settings, replacing the client when the key changes.
type ClientProvider struct {
	settings   SettingsProvider
	clientOpts []option.ClientOption

	mu         sync.RWMutex
	client     *genai.Client
	currentKey string
}

func NewClientProvider(s SettingsProvider, opts ...option.ClientOption) *ClientProvider {
	return &ClientProvider{settings: s, clientOpts: opts}
}

func (p *ClientProvider) Client(ctx context.Context) (*genai.Client, error) {
	s, err := p.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if s.GeminiAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return p.getClient(ctx, s.GeminiAPIKey)
}

func (p *ClientProvider) getClient(ctx context.Context, key string) (*genai.Client, error) {
	p.mu.RLock()
	if p.client != nil && p.currentKey == key {
		defer p.mu.RUnlock()
		return p.client, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.currentKey == key {
		return p.client, nil
	}

	if p.client != nil {
		if err := p.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := append(append([]option.ClientOption{}, p.clientOpts...), option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	p.client = client
	p.currentKey = key
	return client, nil
}

// Close releases the current client, if any.
func (p *ClientProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	p.currentKey = ""
	return err
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	return text
}
