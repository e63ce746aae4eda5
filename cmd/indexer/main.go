package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/postgres"
)

const usage = "usage: indexer [-config path] <Basic|VB> <data_dir> <output_dir>"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("indexer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return apperrors.ExitMisconfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return apperrors.ExitMisconfig
	}
	pos := fs.Args()
	if len(pos) > 3 {
		fmt.Fprintln(stderr, usage)
		return apperrors.ExitMisconfig
	}
	for i, dst := range []*string{&cfg.Indexer.Codec, &cfg.Indexer.DataDir, &cfg.Indexer.OutputDir} {
		if i < len(pos) {
			*dst = pos[i]
		}
	}
	if cfg.Indexer.DataDir == "" || cfg.Indexer.OutputDir == "" {
		fmt.Fprintln(stderr, usage)
		return apperrors.ExitMisconfig
	}

	logger.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)

	c, err := codec.ByName(cfg.Indexer.Codec)
	if err != nil {
		slog.Error("invalid codec", "error", err)
		fmt.Fprintln(stderr, usage)
		return apperrors.ExitCode(err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port, m, nil)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}
	opts := []indexer.Option{indexer.WithMetrics(m)}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, index runs will not be cataloged", "error", err)
		} else {
			defer pg.Close()
			cat := catalog.New(pg.DB)
			if err := cat.Migrate(ctx); err != nil {
				slog.Warn("catalog migration failed, index runs will not be cataloged", "error", err)
			} else {
				opts = append(opts, indexer.WithCompletionHook(cat))
			}
		}
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, indexer.WithCompletionHook(indexer.NewEventHook(producer)))
		slog.Info("index events enabled", "topic", producer.Topic())
	}

	engine := indexer.NewEngine(cfg.Indexer, c, opts...)
	stats, err := engine.Build(ctx, cfg.Indexer.DataDir, cfg.Indexer.OutputDir)
	if err != nil {
		slog.Error("indexing failed", "error", err)
		fmt.Fprintf(stderr, "indexer: %v\n", err)
		return apperrors.ExitCode(err)
	}

	fmt.Fprintf(stdout, "Total Files Indexed: %d\n", stats.Files)
	return apperrors.ExitOK
}
