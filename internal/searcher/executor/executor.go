// Package executor answers conjunctive queries against a finished index
// directory. Open loads the three dictionaries into memory and keeps
// corpus.index open for random-access reads of individual posting records.
package executor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

// NoResults is printed when a query matches no document.
const NoResults = "no results found"

type state int

const (
	stateNew state = iota
	stateReady
	stateClosed
)

type Executor struct {
	codec     codec.Codec
	noResults string
	metrics   *metrics.Metrics
	logger    *slog.Logger

	state       state
	dir         string
	dicts       *dictionary.Dictionaries
	file        *os.File
	size        int64
	fingerprint string
}

type Option func(*Executor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithNoResultsMessage overrides NoResults in Format output.
func WithNoResultsMessage(msg string) Option {
	return func(e *Executor) {
		if msg != "" {
			e.noResults = msg
		}
	}
}

func New(c codec.Codec, opts ...Option) *Executor {
	e := &Executor{
		codec:     c,
		noResults: NoResults,
		logger:    slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open loads the index in dir. Calling Open on a ready executor swaps in
// the new index; a closed executor cannot be reopened.
func (e *Executor) Open(dir string) error {
	if e.state == stateClosed {
		return fmt.Errorf("%w: executor is closed", apperrors.ErrNotReady)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return apperrors.Config("invalid index directory: %s", dir)
	}

	start := time.Now()
	dicts, err := dictionary.Load(dir)
	if err != nil {
		return fmt.Errorf("loading dictionaries from %s: %w", dir, err)
	}
	path := filepath.Join(dir, dictionary.IndexFile)
	f, err := os.Open(path)
	if err != nil {
		return apperrors.IO("opening", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return apperrors.IO("inspecting", path, err)
	}

	if e.file != nil {
		e.file.Close()
	}
	e.dir = dir
	e.dicts = dicts
	e.file = f
	e.size = fi.Size()
	e.fingerprint = fingerprint(dir, e.codec.Name(), fi)
	e.state = stateReady

	e.logger.Info("index opened",
		"dir", dir,
		"codec", e.codec.Name(),
		"terms", len(dicts.Terms),
		"docs", len(dicts.Docs),
		"index_bytes", e.size,
		"duration", time.Since(start),
	)
	return nil
}

// Fingerprint identifies the currently open index. It changes whenever a
// rebuilt index is opened.
func (e *Executor) Fingerprint() string {
	return e.fingerprint
}

type lookup struct {
	termID uint32
	entry  dictionary.PostingEntry
}

// Retrieve returns the ascending ids of the documents containing every term
// of query. An empty query or one naming an unknown term yields no ids.
func (e *Executor) Retrieve(ctx context.Context, query string) ([]uint32, error) {
	if e.state != stateReady {
		return nil, apperrors.ErrNotReady
	}
	plan := parser.Parse(query)
	if plan.Empty() {
		return []uint32{}, nil
	}

	lookups := make([]lookup, 0, len(plan.Terms))
	for _, term := range plan.Terms {
		termID, ok := e.dicts.Terms[term]
		if !ok {
			return []uint32{}, nil
		}
		entry, ok := e.dicts.Postings[termID]
		if !ok {
			return nil, fmt.Errorf("%w: term %q (id %d) has no posting entry", apperrors.ErrCorruptIndex, term, termID)
		}
		lookups = append(lookups, lookup{termID: termID, entry: entry})
	}
	slices.SortStableFunc(lookups, func(a, b lookup) int {
		switch {
		case a.entry.DocFreq < b.entry.DocFreq:
			return -1
		case a.entry.DocFreq > b.entry.DocFreq:
			return 1
		}
		return 0
	})

	result, err := e.postings(lookups[0])
	if err != nil {
		return nil, err
	}
	for _, l := range lookups[1:] {
		if len(result) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs, err := e.postings(l)
		if err != nil {
			return nil, err
		}
		result = index.Intersect(result, docs)
	}
	return result, nil
}

// postings reads one record at its dictionary offset and checks it against
// the dictionary.
func (e *Executor) postings(l lookup) ([]uint32, error) {
	p, ok, err := segment.ReadPostingAt(e.file, e.size, l.entry.Offset, e.codec)
	if err != nil {
		return nil, fmt.Errorf("reading postings of term %d: %w", l.termID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no record at offset %d for term %d", apperrors.ErrCorruptIndex, l.entry.Offset, l.termID)
	}
	if p.TermID != l.termID {
		return nil, fmt.Errorf("%w: record at offset %d holds term %d, want %d",
			apperrors.ErrCorruptIndex, l.entry.Offset, p.TermID, l.termID)
	}
	if uint32(p.DocFreq()) != l.entry.DocFreq {
		return nil, fmt.Errorf("%w: term %d has %d postings, dictionary says %d",
			apperrors.ErrCorruptIndex, l.termID, p.DocFreq(), l.entry.DocFreq)
	}
	e.metrics.ObservePostingDecoded()
	return p.DocIDs, nil
}

// Format renders matched documents as their paths in lexicographic order,
// one per line with a trailing newline, or the no-results message.
func (e *Executor) Format(docIDs []uint32) string {
	if len(docIDs) == 0 || e.dicts == nil {
		return e.noResults
	}
	paths := make([]string, 0, len(docIDs))
	for _, id := range docIDs {
		if p, ok := e.dicts.Docs[id]; ok {
			paths = append(paths, p)
		} else {
			e.logger.Warn("document id missing from doc dictionary", "doc_id", id)
		}
	}
	if len(paths) == 0 {
		return e.noResults
	}
	slices.Sort(paths)
	return strings.Join(paths, "\n") + "\n"
}

// Close releases the index file. Retrieve fails with ErrNotReady afterwards.
func (e *Executor) Close() error {
	if e.state == stateClosed {
		return nil
	}
	e.state = stateClosed
	e.dicts = nil
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	if err != nil {
		return apperrors.IO("closing", filepath.Join(e.dir, dictionary.IndexFile), err)
	}
	return nil
}

func fingerprint(dir, codecName string, fi os.FileInfo) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	raw := fmt.Sprintf("%s|%s|%d|%d", abs, codecName, fi.Size(), fi.ModTime().UnixNano())
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum[:8])
}
