package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Queue implements domain.Queue on a Redis list. LPUSH is the tail,
// RPOP is the head, so pops come out in push order; re-enqueued
// retries land behind pending new work.
type Queue struct {
	client *Client
}

// NewQueue creates a new Queue
func NewQueue(client *Client) *Queue {
	return &Queue{client: client}
}

// Push appends a value to the tail of the queue.
func (q *Queue) Push(ctx context.Context, key string, value []byte) error {
	if err := q.client.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", key, err)
	}
	return nil
}

// Pop removes and returns the head of the queue, or (nil, nil) when
// the queue is empty.
func (q *Queue) Pop(ctx context.Context, key string) ([]byte, error) {
	value, err := q.client.client.RPop(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", key, err)
	}
	return value, nil
}

// Depth returns the number of items on the queue.
func (q *Queue) Depth(ctx context.Context, key string) (int64, error) {
	count, err := q.client.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth for %s: %w", key, err)
	}
	return count, nil
}
