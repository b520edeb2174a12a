package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces the pub/sub channels, one per job.
const ChannelPrefix = "job_events:"

type redisBus struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisBus connects to url and verifies the connection.
func NewRedisBus(ctx context.Context, url string, log *slog.Logger) (Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &redisBus{client: client, log: log}, nil
}

func (b *redisBus) Publish(ctx context.Context, event JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode job event: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelPrefix+event.JobID, payload).Err(); err != nil {
		return fmt.Errorf("publish job event: %w", err)
	}
	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, jobID string) (<-chan JobEvent, func(), error) {
	channel := ChannelPrefix + jobID
	pubsub := b.client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so no event is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan JobEvent, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event JobEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.log.Warn("dropping malformed job event", "channel", channel, "error", err)
					continue
				}
				select {
				case out <- event:
				default:
					b.log.Warn("subscriber fell behind, closing job stream", "channel", channel)
					cancel()
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

func (b *redisBus) Close() error {
	return b.client.Close()
}
