// Package notify publishes mutation diffs so UIs can observe the forest
// passively instead of mutating it themselves.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/mutation"
	"github.com/redis/go-redis/v9"
)

// DefaultHistory is how many recent events are kept for late subscribers.
const DefaultHistory = 100

// Event is the JSON message published for each pipeline stage.
type Event struct {
	Event     string       `json:"event"` // apply, commit or rollback
	Forest    string       `json:"forest"`
	Op        string       `json:"op"`
	DraggedID string       `json:"dragged_id"`
	TargetID  string       `json:"target_id,omitempty"`
	Changes   []api.Change `json:"changes"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}

// RedisPublisher publishes events on a channel and keeps a capped history
// list next to it.
type RedisPublisher struct {
	client  *redis.Client
	forest  string
	history int64
}

// NewRedisPublisher connects to redisURL and publishes events for the
// named forest.
func NewRedisPublisher(redisURL, forest string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisPublisherWithClient(client, forest), nil
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(client *redis.Client, forest string) *RedisPublisher {
	return &RedisPublisher{client: client, forest: forest, history: DefaultHistory}
}

// Channel is the pub/sub channel events are published on.
func (p *RedisPublisher) Channel() string { return "arbor:diffs:" + p.forest }

// HistoryKey is the list holding the most recent events, newest first.
func (p *RedisPublisher) HistoryKey() string { return "arbor:history:" + p.forest }

func (p *RedisPublisher) OnApply(ctx context.Context, d mutation.Diff) {
	p.publish(ctx, "apply", d, nil)
}

func (p *RedisPublisher) OnCommit(ctx context.Context, d mutation.Diff) {
	p.publish(ctx, "commit", d, nil)
}

func (p *RedisPublisher) OnRollback(ctx context.Context, d mutation.Diff, cause error) {
	p.publish(ctx, "rollback", d, cause)
}

// Recent returns up to n events from the history list, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, n int64) ([]Event, error) {
	raw, err := p.client.LRange(ctx, p.HistoryKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// publish never fails the move: a dropped notification is logged.
func (p *RedisPublisher) publish(ctx context.Context, kind string, d mutation.Diff, cause error) {
	ev := Event{
		Event:     kind,
		Forest:    p.forest,
		Op:        d.Op.String(),
		DraggedID: d.DraggedID,
		TargetID:  d.TargetID,
		Changes:   d.Changes,
		At:        time.Now().UTC(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notify: marshal %s event: %v", kind, err)
		return
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.Channel(), data)
		pipe.LPush(ctx, p.HistoryKey(), data)
		pipe.LTrim(ctx, p.HistoryKey(), 0, p.history-1)
		return nil
	})
	if err != nil {
		log.Printf("notify: publish %s for %s: %v", kind, d.DraggedID, err)
	}
}

var _ mutation.Observer = (*RedisPublisher)(nil)
