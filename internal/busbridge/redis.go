// Package busbridge mirrors in-process bus traffic to external sinks: a
// Redis Stream for durable external consumption (redis.go) and a
// websocket tail endpoint for local diagnostics (ws.go). Grounded on
// owl-common/redis's client wrapper and SPEC_FULL.md §11's Bus Bridge.
package busbridge

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
)

// RedisMirror subscribes to the events, channels and alerts bus topics and
// XADDs each message onto a single configured Redis Stream, tagged with its
// topic.
type RedisMirror struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisMirror builds a Redis client per cfg (no connection is made until
// the first command); the caller is responsible for
// checking cfg.Enabled before constructing one.
func NewRedisMirror(cfg config.RedisConfig, logger *zap.Logger) *RedisMirror {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisMirror{client: client, stream: cfg.Stream, logger: logger}
}

// Run subscribes to the events, channels and alerts topics on b and mirrors
// their messages until ctx is cancelled.
func (r *RedisMirror) Run(ctx context.Context, b *bus.Bus) {
	topics := []bus.Topic{bus.TopicEvents, bus.TopicChannels, bus.TopicAlerts}
	for _, t := range topics {
		sub := b.Subscribe(t)
		go r.drain(ctx, b, t, sub)
	}
	<-ctx.Done()
}

func (r *RedisMirror) drain(ctx context.Context, b *bus.Bus, topic bus.Topic, sub *bus.Subscription) {
	defer b.Unsubscribe(sub)
	for {
		msg, ok := sub.Receive(ctx)
		if !ok {
			return
		}
		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			continue
		}
		err = r.client.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			Values: map[string]interface{}{
				"topic":    string(topic),
				"producer": msg.Producer,
				"payload":  string(payload),
			},
		}).Err()
		if err != nil {
			r.logger.Warn("redis stream mirror failed", zap.Error(err))
		}
	}
}

// Close releases the underlying Redis connection.
func (r *RedisMirror) Close() error { return r.client.Close() }
