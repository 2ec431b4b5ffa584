package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/document"
)

// ImageInstruction is sent with every image to the describer.
const ImageInstruction = "Describe this image concisely and technically. Focus on any text, diagrams, " +
	"people, places or details that could answer questions about its owner. Respond with plain text only."

// Skip reasons recorded in the load report.
const (
	ReasonUnsupported    = "unsupported extension"
	ReasonNoDescriber    = "image description unavailable"
	ReasonDescribeFailed = "image description failed"
	ReasonReadFailed     = "read failed"
	ReasonPDFFailed      = "pdf parse failed"
	ReasonEmptyAfterLoad = "no non-empty content"
)

var ErrNoDescriber = errors.New("no image describer configured")

// Describer produces a text description of an image.
type Describer interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// FileResult is the outcome of loading one file: either documents, or a
// skip reason.
type FileResult struct {
	Path      string              `json:"path"`
	Documents []document.Document `json:"-"`
	Skipped   bool                `json:"skipped"`
	Reason    string              `json:"reason,omitempty"`
	Err       string              `json:"error,omitempty"`
	Discarded int                 `json:"discarded"`
}

// LoadReport collects the per-file results of one directory scan in file
// order.
type LoadReport struct {
	Files []FileResult
}

// Documents returns every loaded document in file order.
func (r LoadReport) Documents() []document.Document {
	var docs []document.Document
	for _, f := range r.Files {
		docs = append(docs, f.Documents...)
	}
	return docs
}

// Skipped returns the results of files that produced no documents.
func (r LoadReport) Skipped() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Skipped {
			out = append(out, f)
		}
	}
	return out
}

type pageReader func(path string) ([]string, error)

type Loader struct {
	describer   Describer
	pattern     string
	concurrency int
	timeout     time.Duration
	readPages   pageReader
}

type LoaderOption func(*Loader)

// WithPattern sets the doublestar pattern, relative to the scanned directory,
// selecting candidate files.
func WithPattern(p string) LoaderOption {
	return func(l *Loader) { l.pattern = p }
}

func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) { l.concurrency = n }
}

// WithRemoteTimeout bounds each image description call.
func WithRemoteTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// NewLoader creates a loader. A nil describer makes every image a skipped file.
func NewLoader(d Describer, opts ...LoaderOption) *Loader {
	l := &Loader{
		describer:   d,
		pattern:     "*",
		concurrency: 4,
		timeout:     60 * time.Second,
		readPages:   readPDFPages,
	}
	for _, o := range opts {
		o(l)
	}
	if l.concurrency <= 0 {
		l.concurrency = 1
	}
	if l.pattern == "" {
		l.pattern = "*"
	}
	return l
}

// Load reads every matching file of dir. Per-file failures are recorded in
// the report and never abort the scan; only an unreadable directory or a
// cancelled context fails the call.
func (l *Loader) Load(ctx context.Context, dir string) (LoadReport, error) {
	if _, err := os.Stat(dir); err != nil {
		return LoadReport{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), l.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return LoadReport{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	results := make([]FileResult, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, rel := range matches {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = l.loadFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LoadReport{}, err
	}

	return LoadReport{Files: results}, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) FileResult {
	res := FileResult{Path: path}
	ext := strings.ToLower(filepath.Ext(path))

	var docs []document.Document
	switch ext {
	case ".txt", ".md":
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from scanning the configured data directory
		if err != nil {
			return skip(res, ReasonReadFailed, err)
		}
		docs = []document.Document{newDocument(string(data), path, document.TypeText)}

	case ".pdf":
		pages, err := l.readPages(path)
		if err != nil {
			return skip(res, ReasonPDFFailed, err)
		}
		for i, text := range pages {
			d := newDocument(text, path, document.TypeText)
			d.Metadata[document.MetaPage] = strconv.Itoa(i + 1)
			docs = append(docs, d)
		}

	case ".jpg", ".jpeg", ".png":
		if l.describer == nil {
			return skip(res, ReasonNoDescriber, ErrNoDescriber)
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from scanning the configured data directory
		if err != nil {
			return skip(res, ReasonReadFailed, err)
		}
		dctx, cancel := context.WithTimeout(ctx, l.timeout)
		desc, err := l.describer.DescribeImage(dctx, data, mimeType(ext))
		cancel()
		if err != nil {
			return skip(res, ReasonDescribeFailed, err)
		}
		docs = []document.Document{newDocument(desc, path, document.TypeImageDescription)}

	default:
		res.Skipped = true
		res.Reason = ReasonUnsupported
		return res
	}

	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			res.Discarded++
			continue
		}
		res.Documents = append(res.Documents, d)
	}
	if res.Discarded > 0 {
		slog.InfoContext(ctx, "discarded empty documents", "path", path, "discarded", res.Discarded)
	}
	if len(res.Documents) == 0 {
		res.Skipped = true
		res.Reason = ReasonEmptyAfterLoad
	}
	return res
}

func skip(res FileResult, reason string, err error) FileResult {
	slog.Warn("skipping file", "path", res.Path, "reason", reason, "error", err)
	res.Skipped = true
	res.Reason = reason
	res.Err = err.Error()
	return res
}

func newDocument(content, path, typ string) document.Document {
	return document.Document{
		Content: content,
		Metadata: map[string]string{
			document.MetaSource: path,
			document.MetaType:   typ,
		},
	}
}

func mimeType(ext string) string {
	if ext == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}

// readPDFPages extracts the plain text of every page. The pdf package panics
// on some malformed inputs, so panics are turned into errors.
func readPDFPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
