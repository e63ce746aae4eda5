// Package catalog records every completed index build in PostgreSQL so
// operators can see which codec, corpus and output directory produced the
// index a query service is serving.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer"
)

const schema = `CREATE TABLE IF NOT EXISTS index_runs (
	run_id        TEXT PRIMARY KEY,
	codec         TEXT        NOT NULL,
	data_dir      TEXT        NOT NULL,
	output_dir    TEXT        NOT NULL,
	partitions    INTEGER     NOT NULL,
	files         INTEGER     NOT NULL,
	terms         INTEGER     NOT NULL,
	postings      INTEGER     NOT NULL,
	blocks        INTEGER     NOT NULL,
	merge_rounds  INTEGER     NOT NULL,
	index_bytes   BIGINT      NOT NULL,
	duration_ms   BIGINT      NOT NULL,
	completed_at  TIMESTAMPTZ NOT NULL
)`

const insertRun = `INSERT INTO index_runs (
	run_id, codec, data_dir, output_dir, partitions, files, terms, postings,
	blocks, merge_rounds, index_bytes, duration_ms, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (run_id) DO NOTHING`

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Catalog struct {
	db     Execer
	logger *slog.Logger
}

func New(db Execer) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "index-catalog"),
	}
}

// Migrate creates the run table if it does not exist.
func (c *Catalog) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating index_runs table: %w", err)
	}
	return nil
}

// RecordRun inserts one build. Re-recording the same run id is a no-op.
func (c *Catalog) RecordRun(ctx context.Context, s indexer.Stats) error {
	res, err := c.db.ExecContext(ctx, insertRun,
		s.RunID, s.Codec, s.DataDir, s.OutputDir,
		s.Partitions, s.Files, s.Terms, s.Postings,
		s.Blocks, s.MergeRounds, s.IndexBytes,
		s.Duration.Milliseconds(), s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("recording index run %s: %w", s.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		c.logger.Warn("index run already recorded", "run_id", s.RunID)
		return nil
	}
	c.logger.Info("index run recorded", "run_id", s.RunID, "codec", s.Codec)
	return nil
}

// OnIndexComplete lets the catalog be registered as an engine hook.
func (c *Catalog) OnIndexComplete(ctx context.Context, s indexer.Stats) error {
	return c.RecordRun(ctx, s)
}
