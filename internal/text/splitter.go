package text

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/document"
)

const (
	DefaultMaxSize   = 500
	DefaultOverlap   = 100
	DefaultMinLength = 30
)

// separator describes one level of the recursive split: how to cut text at
// that boundary and how to glue pieces back together when merging.
type separator struct {
	name  string
	split func(string) []string
	join  string
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// boundaries are tried in order: paragraph, line, sentence, word, character.
var boundaries = []separator{
	{name: "paragraph", split: func(s string) []string { return strings.Split(s, "\n\n") }, join: "\n\n"},
	{name: "line", split: func(s string) []string { return strings.Split(s, "\n") }, join: "\n"},
	{name: "sentence", split: splitSentences, join: " "},
	{name: "word", split: func(s string) []string { return strings.Split(s, " ") }, join: " "},
	{name: "char", split: splitRunes, join: ""},
}

// splitSentences cuts after sentence-ending punctuation and keeps the
// punctuation with the sentence it ends.
func splitSentences(s string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(s, -1) {
		out = append(out, s[last:loc[0]+1])
		last = loc[1]
	}
	return append(out, s[last:])
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func size(s string) int {
	return utf8.RuneCountInString(s)
}

// SplitStats reports what the splitter discarded.
type SplitStats struct {
	Produced int
	Dropped  int
}

// Splitter breaks documents into overlapping fragments of at most MaxSize
// characters, preferring paragraph, then sentence, then word boundaries.
// Fragments shorter than MinLength after trimming are dropped.
type Splitter struct {
	MaxSize   int
	Overlap   int
	MinLength int
}

func NewSplitter(maxSize, overlap, minLength int) *Splitter {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = 0
	}
	if minLength < 0 {
		minLength = 0
	}
	return &Splitter{MaxSize: maxSize, Overlap: overlap, MinLength: minLength}
}

// Split chunks every document in order. Chunk indices count kept chunks per
// document, so the same input always yields the same indices.
func (s *Splitter) Split(docs []document.Document) ([]document.Chunk, SplitStats) {
	var chunks []document.Chunk
	var stats SplitStats

	for _, doc := range docs {
		pieces := s.SplitText(doc.Content)
		dropped := 0
		idx := 0
		for _, p := range pieces {
			if size(strings.TrimSpace(p)) < s.MinLength {
				dropped++
				continue
			}
			chunks = append(chunks, document.Chunk{
				Content:  p,
				Metadata: document.CloneMetadata(doc.Metadata),
				Index:    idx,
			})
			idx++
		}
		stats.Produced += idx
		stats.Dropped += dropped
		if dropped > 0 {
			slog.Debug("dropped undersized chunks", "source", doc.Source(), "dropped", dropped, "min_length", s.MinLength)
		}
	}

	return chunks, stats
}

// SplitText splits a single text without applying the minimum length filter.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, boundaries)
}

func (s *Splitter) split(text string, seps []separator) []string {
	// Pick the first boundary that actually cuts this text.
	sep := seps[len(seps)-1]
	rest := []separator(nil)
	for i, candidate := range seps {
		if len(candidate.split(text)) > 1 || i == len(seps)-1 {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range sep.split(text) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		if size(piece) <= s.MaxSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, sep.join)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, sep.join)...)
	}
	return final
}

// merge packs pieces into fragments up to MaxSize, carrying up to Overlap
// characters of trailing pieces into the next fragment.
func (s *Splitter) merge(pieces []string, join string) []string {
	joinLen := size(join)
	var out []string
	var current []string
	total := 0

	sepFor := func(n int) int {
		if n > 0 {
			return joinLen
		}
		return 0
	}

	for _, p := range pieces {
		l := size(p)
		if total+l+sepFor(len(current)) > s.MaxSize && len(current) > 0 {
			if frag := strings.TrimSpace(strings.Join(current, join)); frag != "" {
				out = append(out, frag)
			}
			for total > s.Overlap || (total+l+sepFor(len(current)) > s.MaxSize && total > 0) {
				total -= size(current[0]) + sepFor(len(current)-1)
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l + sepFor(len(current)-1)
	}

	if frag := strings.TrimSpace(strings.Join(current, join)); frag != "" {
		out = append(out, frag)
	}
	return out
}
