package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
)

type capturePublisher struct {
	events []kafka.Event
}

func (c *capturePublisher) Publish(_ context.Context, e kafka.Event) error {
	c.events = append(c.events, e)
	return nil
}

func TestEventHookPublishesAfterBuild(t *testing.T) {
	c, _ := codec.New(codec.VariableByte)
	pub := &capturePublisher{}
	out := filepath.Join(t.TempDir(), "idx")

	stats, err := NewEngine(testConfig(), c, WithCompletionHook(NewEventHook(pub))).
		Build(context.Background(), sampleCorpus(t), out)
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, out, pub.events[0].Key)
	ev, ok := pub.events[0].Value.(IndexCompleteEvent)
	require.True(t, ok)
	assert.Equal(t, stats.RunID, ev.RunID)
	assert.Equal(t, "VB", ev.Codec)
	assert.Equal(t, 3, ev.Files)
	assert.Equal(t, stats.IndexBytes, ev.IndexBytes)
}
