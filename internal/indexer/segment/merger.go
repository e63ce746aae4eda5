package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

var removeFile = os.Remove

// Merger combines term-sorted blocks pairwise until one remains.
type Merger struct {
	codec    codec.Codec
	recorder OffsetRecorder
	bufSize  int
	metrics  *metrics.Metrics
	logger   *slog.Logger
	rounds   int
}

func NewMerger(c codec.Codec, rec OffsetRecorder, bufSize int, m *metrics.Metrics) *Merger {
	return &Merger{
		codec:    c,
		recorder: rec,
		bufSize:  bufSize,
		metrics:  m,
		logger:   logger.WithComponent("block-merger"),
	}
}

// Rounds is the number of merge rounds completed so far.
func (m *Merger) Rounds() int {
	return m.rounds
}

// MergeAll merges the two oldest queued blocks and enqueues the result until
// a single block is left, which it removes from the queue and returns.
// Rounds log under the run id carried by ctx.
func (m *Merger) MergeAll(ctx context.Context, q *Queue) (*Block, error) {
	m.logger = logger.FromContext(ctx).With("component", "block-merger")
	if q.Len() == 0 {
		return nil, errors.New("merging blocks: queue is empty")
	}
	for q.Len() > 1 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("merge interrupted with %d blocks pending: %w", q.Len(), err)
		}
		a, b, _ := q.PopPair()
		merged, err := m.MergeRound(a, b, q.NextPath())
		if err != nil {
			q.Push(a)
			q.Push(b)
			return nil, err
		}
		q.Push(merged)
	}
	final, _ := q.Pop()
	return final, nil
}

// MergeRound merges blocks a and b into a new block at outPath. Both inputs
// are deleted once the output is complete. On failure the output is removed;
// the inputs survive unless deleting one of them was what failed.
func (m *Merger) MergeRound(a, b *Block, outPath string) (*Block, error) {
	start := time.Now()
	m.logger.Debug("merge round started",
		"left", a.Path,
		"right", b.Path,
		"output", outPath,
	)

	left, err := OpenReader(a.Path, m.codec, m.bufSize)
	if err != nil {
		return nil, err
	}
	defer left.Close()
	right, err := OpenReader(b.Path, m.codec, m.bufSize)
	if err != nil {
		return nil, err
	}
	defer right.Close()

	out, err := Create(outPath, m.codec, m.bufSize, m.recorder)
	if err != nil {
		return nil, err
	}
	if err := mergeJoin(left, right, out); err != nil {
		out.Abort()
		return nil, fmt.Errorf("merging %s and %s: %w", a.Path, b.Path, err)
	}
	merged, err := out.Close()
	if err != nil {
		os.Remove(outPath)
		return nil, err
	}

	left.Close()
	right.Close()
	for _, in := range []*Block{a, b} {
		if err := removeFile(in.Path); err != nil {
			os.Remove(merged.Path)
			return nil, apperrors.IO("removing merged block", in.Path, err)
		}
	}

	m.rounds++
	elapsed := time.Since(start)
	m.metrics.ObserveMergeRound(elapsed, merged.Bytes)
	m.logger.Info("merge round done",
		"round", m.rounds,
		"left_postings", a.Postings,
		"right_postings", b.Postings,
		"merged_postings", merged.Postings,
		"bytes", merged.Bytes,
		"duration", elapsed,
	)
	return merged, nil
}

// mergeJoin walks both inputs in term order. Matching terms get their doc
// ids unioned; otherwise the smaller term is copied through unchanged and
// only its side advances.
func mergeJoin(left, right *Reader, out *Writer) error {
	pl, okL, err := left.Next()
	if err != nil {
		return err
	}
	pr, okR, err := right.Next()
	if err != nil {
		return err
	}

	for okL && okR {
		switch {
		case pl.TermID == pr.TermID:
			merged := index.Posting{TermID: pl.TermID, DocIDs: index.Union(pl.DocIDs, pr.DocIDs)}
			if err := out.Write(merged); err != nil {
				return err
			}
			if pl, okL, err = left.Next(); err != nil {
				return err
			}
			if pr, okR, err = right.Next(); err != nil {
				return err
			}
		case pl.TermID < pr.TermID:
			if err := out.Write(pl); err != nil {
				return err
			}
			if pl, okL, err = left.Next(); err != nil {
				return err
			}
		default:
			if err := out.Write(pr); err != nil {
				return err
			}
			if pr, okR, err = right.Next(); err != nil {
				return err
			}
		}
	}

	for okL {
		if err := out.Write(pl); err != nil {
			return err
		}
		if pl, okL, err = left.Next(); err != nil {
			return err
		}
	}
	for okR {
		if err := out.Write(pr); err != nil {
			return err
		}
		if pr, okR, err = right.Next(); err != nil {
			return err
		}
	}
	return nil
}
