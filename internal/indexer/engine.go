package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

// Stats summarises one completed indexing run.
type Stats struct {
	RunID       string        `json:"run_id"`
	Codec       string        `json:"codec"`
	DataDir     string        `json:"data_dir"`
	OutputDir   string        `json:"output_dir"`
	Partitions  int           `json:"partitions"`
	Files       int           `json:"files"`
	Terms       int           `json:"terms"`
	Postings    int           `json:"postings"`
	Blocks      int           `json:"blocks"`
	MergeRounds int           `json:"merge_rounds"`
	IndexBytes  int64         `json:"index_bytes"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// CompletionHook is notified after an index has been fully written. Hook
// failures are logged and do not fail the build.
type CompletionHook interface {
	OnIndexComplete(ctx context.Context, stats Stats) error
}

// Engine runs the block sort-based indexing pipeline: one block per
// partition, pairwise merges down to a single index file, then the
// dictionaries.
type Engine struct {
	cfg     config.IndexerConfig
	codec   codec.Codec
	metrics *metrics.Metrics
	hooks   []CompletionHook
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithCompletionHook(h CompletionHook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h) }
}

func NewEngine(cfg config.IndexerConfig, c codec.Codec, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		codec: c,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the state of a single Build call.
type run struct {
	id      string
	session *dictionary.Session
	queue   *segment.Queue
	block   *index.BlockIndex
	stats   Stats
	log     *slog.Logger
}

// Build indexes every partition under dataDir into outputDir, which is
// emptied (or created) first. On failure no corpus.index is left behind.
func (e *Engine) Build(ctx context.Context, dataDir, outputDir string) (stats *Stats, err error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveBuild(e.codec.Name(), time.Since(start), err)
	}()

	parts, err := corpus.Partitions(dataDir)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, apperrors.Config("data directory %s has no partition sub-directories", dataDir)
	}
	if err := prepareOutputDir(dataDir, outputDir); err != nil {
		return nil, err
	}

	r := &run{
		id:      fmt.Sprintf("run-%d", time.Now().UnixNano()),
		session: dictionary.NewSession(),
		queue:   segment.NewQueue(outputDir, e.cfg.TempPrefix),
		block:   index.NewBlockIndex(),
	}
	ctx = logger.WithRunID(ctx, r.id)
	r.log = logger.FromContext(ctx).With("component", "indexer")
	r.stats = Stats{
		RunID:      r.id,
		Codec:      e.codec.Name(),
		DataDir:    dataDir,
		OutputDir:  outputDir,
		Partitions: len(parts),
	}

	indexPath := filepath.Join(outputDir, dictionary.IndexFile)
	defer func() {
		if err == nil {
			return
		}
		for _, p := range r.queue.Paths() {
			os.Remove(p)
		}
		os.Remove(indexPath)
		for _, name := range []string{dictionary.TermDictFile, dictionary.DocDictFile, dictionary.PostingDictFile} {
			os.Remove(filepath.Join(outputDir, name))
		}
	}()

	r.log.Info("index build started",
		"codec", e.codec.Name(),
		"data_dir", dataDir,
		"output_dir", outputDir,
		"partitions", len(parts),
	)

	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("index build interrupted before partition %s: %w", part.Name, err)
		}
		blk, err := e.buildBlock(r, part)
		if err != nil {
			return nil, fmt.Errorf("building block for partition %s: %w", part.Name, err)
		}
		r.queue.Push(blk)
		r.stats.Blocks++
	}

	merger := segment.NewMerger(e.codec, r.session, e.cfg.ReadBufferSize, e.metrics)
	final, err := merger.MergeAll(ctx, r.queue)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(final.Path, indexPath); err != nil {
		os.Remove(final.Path)
		return nil, apperrors.IO("renaming final block to", indexPath, err)
	}
	r.log.Debug("final index written", "path", indexPath, "bytes", final.Bytes)
	if err := r.session.Save(outputDir); err != nil {
		return nil, fmt.Errorf("writing dictionaries: %w", err)
	}

	r.stats.Terms = r.session.Terms()
	r.stats.Postings = final.Postings
	r.stats.MergeRounds = merger.Rounds()
	r.stats.IndexBytes = final.Bytes
	r.stats.Duration = time.Since(start)
	r.stats.CompletedAt = time.Now().UTC()

	r.log.Info("index build complete",
		"files", r.stats.Files,
		"terms", r.stats.Terms,
		"blocks", r.stats.Blocks,
		"merge_rounds", r.stats.MergeRounds,
		"index_bytes", r.stats.IndexBytes,
		"duration", r.stats.Duration,
	)

	for _, h := range e.hooks {
		if hookErr := h.OnIndexComplete(ctx, r.stats); hookErr != nil {
			r.log.Error("completion hook failed", "error", hookErr)
		}
	}
	out := r.stats
	return &out, nil
}

// buildBlock tokenizes every document of one partition into the block index
// and flushes it, sorted by term id, to a new block file.
func (e *Engine) buildBlock(r *run, part corpus.Partition) (*segment.Block, error) {
	docs, err := part.Documents()
	if err != nil {
		return nil, err
	}
	r.block.Reset()
	for _, doc := range docs {
		docID, err := r.session.AddDocument(doc.Path)
		if err != nil {
			return nil, err
		}
		f, err := doc.Open()
		if err != nil {
			return nil, err
		}
		err = tokenizer.Scan(f, func(term string) error {
			r.block.Add(r.session.TermID(term), docID)
			return nil
		})
		f.Close()
		if err != nil {
			return nil, apperrors.IO("reading document", doc.FullPath, err)
		}
		r.block.MarkDocument()
		r.stats.Files++
		e.metrics.ObserveDocument()
	}

	terms, pairs := r.block.Terms(), r.block.Pairs()
	w, err := segment.Create(r.queue.NextPath(), e.codec, e.cfg.WriteBufferSize, r.session)
	if err != nil {
		return nil, err
	}
	if err := r.block.Drain(w.Write); err != nil {
		w.Abort()
		return nil, err
	}
	blk, err := w.Close()
	if err != nil {
		os.Remove(w.Path())
		return nil, err
	}
	r.block.Reset()

	e.metrics.ObserveBlock(blk.Postings, blk.Bytes)
	r.log.Info("partition processed",
		"partition", part.Name,
		"docs", len(docs),
		"terms", terms,
		"term_doc_pairs", pairs,
		"block", filepath.Base(blk.Path),
		"bytes", blk.Bytes,
	)
	return blk, nil
}

// prepareOutputDir empties outputDir, creating it if needed. It refuses an
// output directory that would contain the input data.
func prepareOutputDir(dataDir, outputDir string) error {
	absData, err := filepath.Abs(dataDir)
	if err != nil {
		return apperrors.Config("resolving data directory %s: %v", dataDir, err)
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return apperrors.Config("resolving output directory %s: %v", outputDir, err)
	}
	if absData == absOut || strings.HasPrefix(absData, absOut+string(filepath.Separator)) {
		return apperrors.Config("output directory %s would contain the data directory %s", outputDir, dataDir)
	}

	info, err := os.Stat(outputDir)
	switch {
	case err == nil && !info.IsDir():
		return apperrors.Config("invalid output directory: %s", outputDir)
	case err == nil:
		entries, err := os.ReadDir(outputDir)
		if err != nil {
			return apperrors.IO("listing", outputDir, err)
		}
		for _, entry := range entries {
			p := filepath.Join(outputDir, entry.Name())
			if err := os.RemoveAll(p); err != nil {
				return apperrors.IO("clearing", p, err)
			}
		}
		return nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return apperrors.Config("creating output directory %s: %v", outputDir, err)
		}
		return nil
	default:
		return apperrors.IO("inspecting", outputDir, err)
	}
}
