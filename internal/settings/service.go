package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	DefaultSearchTopK = 3
	MaxSearchTopK     = 50
)

// Rerank providers.
const (
	ProviderNone   = "none"
	ProviderJina   = "jina"
	ProviderCohere = "cohere"
)

var ErrInvalid = errors.New("invalid settings")

type Settings struct {
	ID             int    `json:"-"`
	RerankProvider string `json:"rerank_provider"`
	RerankAPIKey   string `json:"rerank_api_key"`
	GeminiAPIKey   string `json:"gemini_api_key"`
	SearchTopK     int    `json:"search_top_k"`
}

// Redacted returns a copy safe to send to clients: API keys are reduced to
// their last four characters.
func (s Settings) Redacted() Settings {
	s.RerankAPIKey = mask(s.RerankAPIKey)
	s.GeminiAPIKey = mask(s.GeminiAPIKey)
	return s
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// Update validates and stores set. Blank API keys keep the stored value, so
// a client can resubmit redacted settings without erasing credentials.
func (s *Service) Update(ctx context.Context, set *Settings) error {
	if set.RerankProvider == "" {
		set.RerankProvider = ProviderNone
	}
	switch set.RerankProvider {
	case ProviderNone, ProviderJina, ProviderCohere:
	default:
		return fmt.Errorf("%w: unknown rerank provider %q", ErrInvalid, set.RerankProvider)
	}
	if set.SearchTopK < 1 || set.SearchTopK > MaxSearchTopK {
		return fmt.Errorf("%w: search_top_k must be between 1 and %d", ErrInvalid, MaxSearchTopK)
	}

	if set.GeminiAPIKey == "" || set.RerankAPIKey == "" {
		current, err := s.repo.Get(ctx)
		if err != nil {
			return err
		}
		if set.GeminiAPIKey == "" {
			set.GeminiAPIKey = current.GeminiAPIKey
		}
		if set.RerankAPIKey == "" {
			set.RerankAPIKey = current.RerankAPIKey
		}
	}
	return s.repo.Update(ctx, set)
}

// SeedGeminiKey stores key when no Gemini key is configured yet.
func (s *Service) SeedGeminiKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	set, err := s.repo.Get(ctx)
	if err != nil {
		slog.Warn("failed to fetch settings for seeding", "error", err)
		return
	}
	if set.GeminiAPIKey != "" {
		return
	}
	set.GeminiAPIKey = key
	if err := s.repo.Update(ctx, set); err != nil {
		slog.Warn("failed to seed gemini api key", "error", err)
		return
	}
	slog.Info("seeded gemini api key from environment")
}

// MemoryRepo keeps settings in process memory. Used when no database is
// reachable.
type MemoryRepo struct {
	mu  sync.Mutex
	set Settings
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{set: Settings{ID: 1, RerankProvider: ProviderNone, SearchTopK: DefaultSearchTopK}}
}

func (r *MemoryRepo) Get(ctx context.Context) (*Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.set
	return &s, nil
}

func (r *MemoryRepo) Update(ctx context.Context, s *Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = *s
	r.set.ID = 1
	return nil
}
