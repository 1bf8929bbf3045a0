package redisbackend

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/serprank/internal/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the key the pagination counter is stored under.
const DefaultKey = "serprank:request_counter"

// ensure Counter implements storage.Counter and storage.Incrementer
var (
	_ storage.Counter     = (*Counter)(nil)
	_ storage.Incrementer = (*Counter)(nil)
)

// Counter is a Redis-backed storage.Counter. Advances use INCR and never
// lose an increment, but the window read and the run are only serialized
// inside one process, so one serprank instance should own a key.
type Counter struct {
	client *redis.Client
	key    string
}

// New connects to the Redis server at addr and verifies the connection.
func New(ctx context.Context, addr, password string, db int, key string) (*Counter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, key string) *Counter {
	if key == "" {
		key = DefaultKey
	}
	return &Counter{client: client, key: key}
}

func (c *Counter) Get(ctx context.Context) (int, error) {
	n, err := c.client.Get(ctx, c.key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get counter: %w", err)
	}
	return n, nil
}

func (c *Counter) Set(ctx context.Context, n int) error {
	// No expiry: the rotation must survive idle periods.
	if err := c.client.Set(ctx, c.key, n, 0).Err(); err != nil {
		return fmt.Errorf("redis set counter: %w", err)
	}
	return nil
}

// Incr adds one with INCR. A missing key counts up from zero.
func (c *Counter) Incr(ctx context.Context) (int, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr counter: %w", err)
	}
	return int(n), nil
}

func (c *Counter) Close() error {
	return c.client.Close()
}
