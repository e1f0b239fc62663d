package busbridge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

func TestRedisMirror_MirrorsEventToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{Addr: mr.Addr(), Stream: "nightwatch:bus"}
	mirror := NewRedisMirror(cfg, zap.NewNop())
	defer mirror.Close()

	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mirror.Run(ctx, b)

	// Give the mirror's goroutines time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	b.Publish(bus.TopicEvents, "radar", events.Event{Detector: "radar"})

	require.Eventually(t, func() bool {
		entries, _ := mr.Stream(cfg.Stream)
		return len(entries) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRedisMirror_UnreachableRedisDoesNotPanic(t *testing.T) {
	cfg := config.RedisConfig{Addr: "127.0.0.1:1", Stream: "nightwatch:bus"}
	mirror := NewRedisMirror(cfg, zap.NewNop())
	defer mirror.Close()

	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mirror.Run(ctx, b)

	time.Sleep(20 * time.Millisecond)
	assert.NotPanics(t, func() {
		b.Publish(bus.TopicEvents, "radar", events.Event{Detector: "radar"})
	})
}
