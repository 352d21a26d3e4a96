package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Log is a capped, most-recent-first history log backed by a Redis list.
// Eviction is truncation at insert time: after every push the list is
// trimmed to the capacity, so at most Capacity entries ever exist.
type Log struct {
	client   *redis.Client
	key      string
	capacity int64
}

// NewLog builds a log over an existing Redis client.
func NewLog(client *redis.Client, key string, capacity int) (*Log, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("log key required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid capacity %d", capacity)
	}
	return &Log{client: client, key: key, capacity: int64(capacity)}, nil
}

// Push prepends a JSON-encoded entry and trims the log to capacity.
func (l *Log) Push(ctx context.Context, entry any) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, l.key, raw)
	pipe.LTrim(ctx, l.key, 0, l.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push entry: %w", err)
	}
	return nil
}

// List returns all entries most-recent-first as raw JSON.
func (l *Log) List(ctx context.Context) ([]json.RawMessage, error) {
	items, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	res := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		res = append(res, json.RawMessage(item))
	}
	return res, nil
}

// Len returns the current entry count.
func (l *Log) Len(ctx context.Context) (int64, error) {
	return l.client.LLen(ctx, l.key).Result()
}

// Clear removes every entry.
func (l *Log) Clear(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}
