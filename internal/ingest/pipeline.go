package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/document"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/index"
	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/text"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeCreate Mode = "create"
	ModeUpsert Mode = "upsert"
)

// ParseMode maps a user-supplied mode name to a Mode. The empty string is auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeCreate, ModeUpsert:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown index mode %q", s)
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	Mode          Mode          `json:"mode"`
	Files         int           `json:"files"`
	Documents     int           `json:"documents"`
	Skipped       int           `json:"skipped"`
	ChunksDropped int           `json:"chunksDropped"`
	Chunks        int           `json:"chunks"`
	Duration      time.Duration `json:"duration"`
	Skips         []FileResult  `json:"skips,omitempty"`
}

type DocumentLoader interface {
	Load(ctx context.Context, dir string) (LoadReport, error)
}

// Pipeline turns the data directory into index entries.
type Pipeline struct {
	loader   DocumentLoader
	splitter *text.Splitter
	store    index.Store
	dir      string
}

func NewPipeline(loader DocumentLoader, splitter *text.Splitter, store index.Store, dir string) *Pipeline {
	return &Pipeline{loader: loader, splitter: splitter, store: store, dir: dir}
}

// Run executes the pipeline. ModeAuto creates the collection when it does
// not exist yet and upserts into it otherwise.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (RunReport, error) {
	if mode == ModeAuto || mode == "" {
		exists, err := p.store.Exists(ctx)
		if err != nil {
			return RunReport{Mode: ModeAuto}, fmt.Errorf("check index: %w", err)
		}
		mode = ModeUpsert
		if !exists {
			mode = ModeCreate
		}
	}

	switch mode {
	case ModeCreate:
		return p.Create(ctx)
	case ModeUpsert:
		return p.Upsert(ctx)
	}
	return RunReport{Mode: mode}, fmt.Errorf("unknown index mode %q", mode)
}

// Create builds a new collection from every file in the data directory.
func (p *Pipeline) Create(ctx context.Context) (RunReport, error) {
	return p.run(ctx, ModeCreate, p.store.Create)
}

// Upsert opens the existing collection and inserts or replaces every chunk
// of the data directory. Entries whose source changed or disappeared are
// left in place.
func (p *Pipeline) Upsert(ctx context.Context) (RunReport, error) {
	return p.run(ctx, ModeUpsert, p.store.Open)
}

func (p *Pipeline) run(ctx context.Context, mode Mode, prepare func(context.Context) error) (RunReport, error) {
	start := time.Now()
	rep := RunReport{Mode: mode}

	loaded, err := p.loader.Load(ctx, p.dir)
	if err != nil {
		return rep, fmt.Errorf("load documents: %w", err)
	}
	docs := loaded.Documents()
	rep.Files = len(loaded.Files)
	rep.Documents = len(docs)
	rep.Skips = loaded.Skipped()
	rep.Skipped = len(rep.Skips)

	chunks, stats := p.splitter.Split(docs)
	rep.ChunksDropped = stats.Dropped

	chunks, ids := identify(chunks)
	rep.Chunks = len(chunks)

	if err := prepare(ctx); err != nil {
		return rep, fmt.Errorf("%s index: %w", mode, err)
	}
	if err := p.store.Upsert(ctx, chunks, ids); err != nil {
		return rep, fmt.Errorf("upsert chunks: %w", err)
	}

	rep.Duration = time.Since(start)
	slog.InfoContext(ctx, "index run completed",
		"mode", mode,
		"files", rep.Files,
		"documents", rep.Documents,
		"skipped", rep.Skipped,
		"chunks", rep.Chunks,
		"chunks_dropped", rep.ChunksDropped,
		"duration", rep.Duration,
	)
	return rep, nil
}

// identify assigns identifiers and collapses chunks sharing one, keeping the
// position of the first occurrence and the content of the last.
func identify(chunks []document.Chunk) ([]document.Chunk, []string) {
	pos := make(map[string]int, len(chunks))
	out := make([]document.Chunk, 0, len(chunks))
	ids := make([]string, 0, len(chunks))

	for _, c := range chunks {
		id := Identify(c.Content, c.Source(), c.Index)
		if i, ok := pos[id]; ok {
			out[i] = c
			continue
		}
		pos[id] = len(out)
		out = append(out, c)
		ids = append(ids, id)
	}
	return out, ids
}
