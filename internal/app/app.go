package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
	"google.golang.org/api/option"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/features/chat"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/features/indexrun"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/features/mcp"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/features/stats"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/adapter/gemini"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/adapter/reranker"
	wstore "github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/adapter/weaviate"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/config"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/index"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/ingest"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/middleware"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/prompt"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/retrieval"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/settings"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/text"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/worker"
)

type App struct {
	Handler  http.Handler
	Store    index.Store
	Pipeline *ingest.Pipeline
	Runs     *indexrun.Service
	Chat     *chat.Service

	cfg     *config.Config
	clients *gemini.ClientProvider
}

type options struct {
	geminiOpts []option.ClientOption
	embedder   index.Embedder
}

type Option func(*options)

// WithGeminiOptions passes client options to every Gemini client the app
// creates.
func WithGeminiOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.geminiOpts = append(o.geminiOpts, opts...) }
}

// WithEmbedder replaces the Gemini embedding model.
func WithEmbedder(e index.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

func New(ctx context.Context, cfg *config.Config, deps *Dependencies, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Feature: Settings
	var settingsRepo settings.Repository = settings.NewMemoryRepo()
	var runRepo indexrun.Repository = indexrun.NewMemoryRepo()
	if deps.DB != nil {
		settingsRepo = settings.NewPostgresRepo(deps.DB)
		runRepo = indexrun.NewPostgresRepo(deps.DB)
	}
	settingsService := settings.NewService(settingsRepo)
	settingsService.SeedGeminiKey(ctx, cfg.GeminiAPIKey)
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters
	clients := gemini.NewClientProvider(settingsService, o.geminiOpts...)
	embedder := o.embedder
	if embedder == nil {
		embedder = gemini.NewEmbedder(clients, cfg.EmbeddingModel, cfg.EmbedBatchSize)
	}

	var store index.Store
	switch {
	case cfg.VectorBackend == config.BackendMemory:
		store = index.NewMemoryStore(embedder)
	case deps.Weaviate != nil:
		store = wstore.NewStore(deps.Weaviate, cfg.IndexCollection, embedder,
			wstore.WithBatchSize(cfg.EmbedBatchSize),
			wstore.WithEmbedRate(cfg.EmbedRPS),
		)
	default:
		return nil, fmt.Errorf("vector backend %q has no client", cfg.VectorBackend)
	}
	store = index.AutoOpen(store)

	// Indexing
	describer := gemini.NewDescriber(clients, cfg.VisionModel, ingest.ImageInstruction)
	loader := ingest.NewLoader(describer,
		ingest.WithPattern(cfg.LoaderPattern),
		ingest.WithConcurrency(cfg.LoaderConcurrency),
		ingest.WithRemoteTimeout(cfg.RemoteTimeout()),
	)
	splitter := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkMinLength)
	pipeline := ingest.NewPipeline(loader, splitter, store, cfg.DataDir)

	// Feature: Index runs
	var pub indexrun.EventPublisher
	if deps.NSQProducer != nil {
		pub = deps.NSQProducer
	}
	runService := indexrun.NewService(runRepo, pipeline, pub)
	runHandler := indexrun.NewHandler(runService)

	// Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(store, settingsService,
		retrieval.WithReranker(reranker.NewDynamicClient(settingsService)),
		retrieval.WithQueryLogger(queryLogger),
	)

	// Feature: Chat
	templates, err := prompt.Load(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	generator := gemini.NewGenerator(clients, cfg.ChatModel)
	chatService := chat.NewService(retrievalService, generator, templates, chat.NewSessionStore(), cfg.GenerationTimeout())
	chatHandler := chat.NewHandler(chatService)

	// Feature: MCP & Stats
	mcpHandler := mcp.NewHandler(retrievalService)
	statsHandler := stats.NewHandler(store, runService, chatService.Sessions())

	// Routes
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(h))
	}

	mux.Handle("GET /{$}", chatHandler.Index())
	route("POST /chat", chatHandler.Chat)

	route("GET /settings", settingsHandler.GetSettings)
	route("PUT /settings", settingsHandler.UpdateSettings)

	route("GET /index/runs", runHandler.List)
	route("POST /index/runs", runHandler.Create)
	route("GET /index/runs/{id}", runHandler.Get)

	route("GET /stats", statsHandler.GetStats)

	mux.Handle("POST /mcp", middleware.CorrelationID(mcpHandler))
	route("GET /mcp/sse", mcpHandler.HandleSSE)
	route("POST /mcp/messages", mcpHandler.HandleMessage)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return &App{
		Handler:  middleware.CORS(cfg.AllowedOrigins())(mux),
		Store:    store,
		Pipeline: pipeline,
		Runs:     runService,
		Chat:     chatService,
		cfg:      cfg,
		clients:  clients,
	}, nil
}

// PrepareIndex attaches to an existing collection. With AUTO_INDEX set, a
// missing collection is built by an enqueued run.
func (a *App) PrepareIndex(ctx context.Context) error {
	exists, err := a.Store.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		slog.InfoContext(ctx, "attached to existing index")
		return a.Store.Open(ctx)
	}
	if !a.cfg.AutoIndex {
		slog.WarnContext(ctx, "index missing and AUTO_INDEX disabled; run `index` to build it")
		return nil
	}
	slog.InfoContext(ctx, "index missing, building it")
	return a.Runs.Enqueue(ctx, ingest.ModeCreate, indexrun.TriggerBoot)
}

// StartIndexWorker consumes index tasks one at a time so index writes never
// overlap.
func (a *App) StartIndexWorker() (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	nsqCfg.MsgTimeout = time.Minute

	consumer, err := nsq.NewConsumer(config.TopicIndexTask, config.ChannelIndexWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(worker.NewIndexConsumer(a.Runs, a.cfg.IndexTimeout()))
	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("connect to nsqlookupd: %w", err)
	}
	slog.Info("index worker connected", "topic", config.TopicIndexTask)
	return consumer, nil
}

// WatchDataDir requests an upsert whenever the data directory changes.
func (a *App) WatchDataDir(ctx context.Context) error {
	w := ingest.NewWatcher(a.cfg.DataDir, ingest.DefaultDebounce, func(ctx context.Context) error {
		return a.Runs.Enqueue(ctx, ingest.ModeUpsert, indexrun.TriggerWatcher)
	})
	return w.Run(ctx)
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close waits for background index runs and releases model clients.
func (a *App) Close() error {
	a.Runs.Wait()
	return a.clients.Close()
}
