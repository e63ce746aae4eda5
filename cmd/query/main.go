package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/redis"
)

const usage = "usage: query [-config path] <Basic|VB> <index_dir>"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
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
	if len(pos) > 2 {
		fmt.Fprintln(stderr, usage)
		return apperrors.ExitMisconfig
	}
	for i, dst := range []*string{&cfg.Search.Codec, &cfg.Search.IndexDir} {
		if i < len(pos) {
			*dst = pos[i]
		}
	}
	if cfg.Search.IndexDir == "" {
		fmt.Fprintln(stderr, usage)
		return apperrors.ExitMisconfig
	}

	logger.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
	ctx = logger.WithRunID(ctx, fmt.Sprintf("query-%d", time.Now().UnixNano()))

	c, err := codec.ByName(cfg.Search.Codec)
	if err != nil {
		slog.Error("invalid codec", "error", err)
		fmt.Fprintln(stderr, usage)
		return apperrors.ExitCode(err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	exec := executor.New(c,
		executor.WithMetrics(m),
		executor.WithNoResultsMessage(cfg.Search.NoResultsMessage),
	)
	if err := exec.Open(cfg.Search.IndexDir); err != nil {
		slog.Error("opening index failed", "error", err)
		fmt.Fprintf(stderr, "query: %v\n", err)
		return apperrors.ExitCode(err)
	}
	defer exec.Close()

	checker := health.NewChecker()
	checker.Register("index", func(context.Context) error {
		if exec.Fingerprint() == "" {
			return apperrors.ErrNotReady
		}
		return nil
	})

	hopts := []handler.Option{handler.WithMetrics(m)}
	if cfg.Redis.Enabled {
		rc, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer rc.Close()
			hopts = append(hopts, handler.WithCache(cache.New(rc, cfg.Redis.CacheTTL, m)))
			checker.RegisterOptional("redis", rc.Ping)
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		hopts = append(hopts, handler.WithEvents(producer))
		slog.Info("query events enabled", "topic", producer.Topic())
	}
	h := handler.New(exec, hopts...)

	if m != nil {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m, map[string]http.Handler{
			"GET /health/ready": checker.ReadyHandler(),
			"GET /cache/stats":  http.HandlerFunc(h.CacheStats),
		})
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	n, err := h.Serve(ctx, stdin, stdout)
	if err != nil {
		slog.Error("query loop stopped", "answered", n, "error", err)
		fmt.Fprintf(stderr, "query: %v\n", err)
		return apperrors.ExitCode(err)
	}
	slog.Info("query loop finished", "answered", n)
	return apperrors.ExitOK
}
