package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// wakeList is the Redis list used as a cross-instance wake-up signal.
// Tokens carry no payload: the durable job store is the single source of
// truth, and a woken scheduler always re-reads the oldest pending job
// from it.
const wakeList = "storyreel:render_wake"

// Nudger wakes the scheduler when work arrives. Nudging is idempotent —
// the in-process channel holds at most one token, so nudging an
// already-awake scheduler is a no-op. When Redis is configured, nudges
// also fan out to other instances.
type Nudger struct {
	client *redis.Client // nil when Redis is not configured
	ch     chan struct{}
}

// New connects to Redis when redisURL is non-empty; otherwise the nudger
// is purely in-process.
func New(redisURL string) (*Nudger, error) {
	n := &Nudger{ch: make(chan struct{}, 1)}

	if redisURL == "" {
		return n, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	n.client = client
	return n, nil
}

func (n *Nudger) Close() error {
	if n.client != nil {
		return n.client.Close()
	}
	return nil
}

// Nudge signals that pending work may exist. Never blocks; the Redis push
// is best-effort — the scheduler's periodic re-scan covers a lost token.
func (n *Nudger) Nudge(ctx context.Context) {
	select {
	case n.ch <- struct{}{}:
	default:
	}

	if n.client != nil {
		if err := n.client.RPush(ctx, wakeList, "1").Err(); err != nil {
			log.Printf("[Queue] Warning: failed to publish wake token: %v", err)
		}
	}
}

// C is the wake channel the scheduler selects on.
func (n *Nudger) C() <-chan struct{} {
	return n.ch
}

// Listen forwards Redis wake tokens into the in-process channel until ctx
// is done. No-op without Redis.
func (n *Nudger) Listen(ctx context.Context) {
	if n.client == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := n.client.BLPop(ctx, 5*time.Second, wakeList).Result()
		if err == redis.Nil {
			continue // nothing arrived within the block window
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Queue] Error waiting for wake token: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if len(result) == 2 {
			select {
			case n.ch <- struct{}{}:
			default:
			}
		}
	}
}
