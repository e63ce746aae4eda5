// Package handler runs the interactive query loop: one query per input
// line, one result block per query on the output.
package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]uint32, error)
	Format(docIDs []uint32) string
	Fingerprint() string
}

type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// QueryEvent is published once per answered query when events are enabled.
type QueryEvent struct {
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	Results     int       `json:"results"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMs   int64     `json:"latency_ms"`
	Fingerprint string    `json:"index_fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
}

type Handler struct {
	exec    Retriever
	cache   *cache.QueryCache
	events  Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithEvents(p Publisher) Option {
	return func(h *Handler) { h.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(exec Retriever, opts ...Option) *Handler {
	h := &Handler{
		exec:   exec,
		logger: slog.Default().With("component", "query-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve answers every line of in until EOF, writing each result to out. A
// failing query stops the loop and its error is returned together with the
// number of queries answered before it.
func (h *Handler) Serve(ctx context.Context, in io.Reader, out io.Writer) (int, error) {
	r := bufio.NewReaderSize(in, 64*1024)
	w := bufio.NewWriter(out)
	answered := 0

	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return answered, fmt.Errorf("reading queries: %w", readErr)
		}
		if readErr != nil && line == "" {
			return answered, nil
		}
		if err := ctx.Err(); err != nil {
			return answered, err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		result, err := h.Query(ctx, line)
		if err != nil {
			return answered, err
		}
		if !strings.HasSuffix(result, "\n") {
			result += "\n"
		}
		if _, err := w.WriteString(result); err != nil {
			return answered, fmt.Errorf("writing query result: %w", err)
		}
		if err := w.Flush(); err != nil {
			return answered, fmt.Errorf("writing query result: %w", err)
		}
		answered++
		if readErr != nil {
			return answered, nil
		}
	}
}

// Query answers one query line and returns its formatted result.
func (h *Handler) Query(ctx context.Context, query string) (string, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	plan := parser.Parse(query)
	fingerprint := h.exec.Fingerprint()

	var ids []uint32
	var err error
	cacheHit := false
	cacheStatus := "disabled"
	if h.cache != nil && !plan.Empty() {
		ids, cacheHit, err = h.cache.GetOrCompute(ctx, fingerprint, plan, func() ([]uint32, error) {
			return h.exec.Retrieve(ctx, query)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		ids, err = h.exec.Retrieve(ctx, query)
	}
	if err != nil {
		log.Error("query failed", "query", query, "error", err)
		h.metrics.ObserveQuery("error", cacheStatus, time.Since(start), 0)
		return "", fmt.Errorf("query %q: %w", query, err)
	}

	latency := time.Since(start)
	resultType := "hits"
	if len(ids) == 0 {
		resultType = "empty"
	}
	h.metrics.ObserveQuery(resultType, cacheStatus, latency, len(ids))
	log.Debug("query answered",
		"query", query,
		"terms", len(plan.Terms),
		"results", len(ids),
		"cache", cacheStatus,
		"latency", latency,
	)

	if h.events != nil {
		ev := QueryEvent{
			Query:       query,
			Terms:       plan.Terms,
			Results:     len(ids),
			CacheHit:    cacheHit,
			LatencyMs:   latency.Milliseconds(),
			Fingerprint: fingerprint,
			Timestamp:   time.Now().UTC(),
		}
		if err := h.events.Publish(ctx, kafka.Event{Key: fingerprint, Value: ev}); err != nil {
			log.Warn("query event not published", "error", err)
		}
	}
	return h.exec.Format(ids), nil
}

// CacheStats reports result cache counters as JSON.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
