package indexer

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
)

// IndexCompleteEvent announces a new index so query services can reload it
// and drop cached results.
type IndexCompleteEvent struct {
	RunID       string    `json:"run_id"`
	Codec       string    `json:"codec"`
	OutputDir   string    `json:"output_dir"`
	Files       int       `json:"files"`
	Terms       int       `json:"terms"`
	IndexBytes  int64     `json:"index_bytes"`
	DurationMs  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// EventHook publishes an IndexCompleteEvent for every finished build.
type EventHook struct {
	publisher Publisher
}

func NewEventHook(p Publisher) *EventHook {
	return &EventHook{publisher: p}
}

func (h *EventHook) OnIndexComplete(ctx context.Context, s Stats) error {
	return h.publisher.Publish(ctx, kafka.Event{
		Key: s.OutputDir,
		Value: IndexCompleteEvent{
			RunID:       s.RunID,
			Codec:       s.Codec,
			OutputDir:   s.OutputDir,
			Files:       s.Files,
			Terms:       s.Terms,
			IndexBytes:  s.IndexBytes,
			DurationMs:  s.Duration.Milliseconds(),
			CompletedAt: s.CompletedAt,
		},
	})
}
