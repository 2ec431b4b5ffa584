package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/document"
)

type fakeDescriber struct {
	desc  string
	err   error
	mimes []string
}

func (f *fakeDescriber) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.mimes = append(f.mimes, mimeType)
	if f.err != nil {
		return "", f.err
	}
	return f.desc, nil
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func resultFor(t *testing.T, rep LoadReport, name string) FileResult {
	t.Helper()
	for _, f := range rep.Files {
		if filepath.Base(f.Path) == name {
			return f
		}
	}
	t.Fatalf("no result for %s", name)
	return FileResult{}
}

func TestLoader_TextAndMarkdown(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"bio.txt":   "Name: Alice. Role: Engineer.",
		"notes.md":  "# Projects\n\nBuilt a search engine.",
		"empty.txt": "   \n\t ",
		"data.csv":  "a,b,c",
	})

	rep, err := NewLoader(nil).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, rep.Files, 4)

	docs := rep.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "Name: Alice. Role: Engineer.", docs[0].Content)
	assert.Equal(t, filepath.Join(dir, "bio.txt"), docs[0].Source())
	assert.Equal(t, document.TypeText, docs[0].Metadata[document.MetaType])
	assert.Equal(t, filepath.Join(dir, "notes.md"), docs[1].Source())

	csv := resultFor(t, rep, "data.csv")
	assert.True(t, csv.Skipped)
	assert.Equal(t, ReasonUnsupported, csv.Reason)
	assert.Empty(t, csv.Err)

	empty := resultFor(t, rep, "empty.txt")
	assert.True(t, empty.Skipped)
	assert.Equal(t, ReasonEmptyAfterLoad, empty.Reason)
	assert.Equal(t, 1, empty.Discarded)

	assert.Len(t, rep.Skipped(), 2)
}

func TestLoader_EmptyDirectory(t *testing.T) {
	rep, err := NewLoader(nil).Load(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, rep.Files)
	assert.Empty(t, rep.Documents())
}

func TestLoader_MissingDirectory(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoader_Images(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"photo.jpg":   "\xff\xd8fake",
		"diagram.png": "\x89PNGfake",
	})

	t.Run("described", func(t *testing.T) {
		d := &fakeDescriber{desc: "A photo of a person at a conference."}
		rep, err := NewLoader(d).Load(context.Background(), dir)
		require.NoError(t, err)

		docs := rep.Documents()
		require.Len(t, docs, 2)
		for _, doc := range docs {
			assert.Equal(t, "A photo of a person at a conference.", doc.Content)
			assert.Equal(t, document.TypeImageDescription, doc.Metadata[document.MetaType])
		}
		assert.ElementsMatch(t, []string{"image/jpeg", "image/png"}, d.mimes)
	})

	t.Run("describer fails", func(t *testing.T) {
		d := &fakeDescriber{err: errors.New("quota exceeded")}
		rep, err := NewLoader(d).Load(context.Background(), dir)
		require.NoError(t, err)

		assert.Empty(t, rep.Documents())
		for _, f := range rep.Files {
			assert.True(t, f.Skipped)
			assert.Equal(t, ReasonDescribeFailed, f.Reason)
			assert.Contains(t, f.Err, "quota exceeded")
		}
	})

	t.Run("no describer", func(t *testing.T) {
		rep, err := NewLoader(nil).Load(context.Background(), dir)
		require.NoError(t, err)

		assert.Empty(t, rep.Documents())
		for _, f := range rep.Files {
			assert.Equal(t, ReasonNoDescriber, f.Reason)
		}
	})

	t.Run("empty description discarded", func(t *testing.T) {
		rep, err := NewLoader(&fakeDescriber{desc: "  "}).Load(context.Background(), dir)
		require.NoError(t, err)
		assert.Empty(t, rep.Documents())
		assert.Len(t, rep.Skipped(), 2)
	})
}

func TestLoader_PDF(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"cv.pdf":     "%PDF-fake",
		"broken.pdf": "not a pdf",
	})

	l := NewLoader(nil)
	l.readPages = func(path string) ([]string, error) {
		if filepath.Base(path) == "broken.pdf" {
			return nil, errors.New("malformed pdf: bad xref")
		}
		return []string{"Experience at Acme.", "", "Education: BSc."}, nil
	}

	rep, err := l.Load(context.Background(), dir)
	require.NoError(t, err)

	cv := resultFor(t, rep, "cv.pdf")
	require.Len(t, cv.Documents, 2)
	assert.Equal(t, "1", cv.Documents[0].Metadata[document.MetaPage])
	assert.Equal(t, "3", cv.Documents[1].Metadata[document.MetaPage])
	assert.Equal(t, 1, cv.Discarded)

	broken := resultFor(t, rep, "broken.pdf")
	assert.True(t, broken.Skipped)
	assert.Equal(t, ReasonPDFFailed, broken.Reason)
}

func TestReadPDFPages_Malformed(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.pdf": "definitely not a pdf"})

	_, err := readPDFPages(filepath.Join(dir, "bad.pdf"))
	assert.Error(t, err)
}

func TestLoader_Pattern(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"top.txt":            "top level text",
		"nested/deep.md":     "nested markdown",
		"nested/ignored.csv": "x",
	})

	rep, err := NewLoader(nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, rep.Files, 1)

	rep, err = NewLoader(nil, WithPattern("**/*.{txt,md}")).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, rep.Documents(), 2)
	assert.Equal(t, "nested markdown", rep.Documents()[0].Content)
}

func TestLoader_Cancelled(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.txt": "content"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(nil).Load(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
