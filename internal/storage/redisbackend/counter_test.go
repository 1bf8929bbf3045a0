package redisbackend

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestRedisCounter(t *testing.T) {
	// Only run this test if SERPRANK_TEST_REDIS_ADDR is set
	addr := os.Getenv("SERPRANK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis counter test: SERPRANK_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	key := "serprank:test:" + uuid.New().String()
	c, err := New(ctx, addr, "", 0, key)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close()
	defer c.client.Del(ctx, key)

	n, err := c.Get(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Expected unset counter to read 0, got %d (err %v)", n, err)
	}
	if err := c.Set(ctx, 5); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	n, err = c.Get(ctx)
	if err != nil || n != 5 {
		t.Errorf("Expected 5, got %d (err %v)", n, err)
	}

	n, err = c.Incr(ctx)
	if err != nil || n != 6 {
		t.Errorf("Expected Incr to return 6, got %d (err %v)", n, err)
	}
	if n, _ := c.Get(ctx); n != 6 {
		t.Errorf("Expected 6 after Incr, got %d", n)
	}
}

func TestNewWithClient_DefaultKey(t *testing.T) {
	c := NewWithClient(nil, "")
	if c.key != DefaultKey {
		t.Errorf("expected default key %q, got %q", DefaultKey, c.key)
	}
}
