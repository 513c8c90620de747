package redis

import (
	"context"
	"testing"
	"time"
)

func TestCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", []byte("bar"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "foo")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if string(val) != "bar" {
		t.Fatalf("expected bar, got %s", val)
	}
}

func TestCacheDelete(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", []byte("bar"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := cache.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := cache.Get(ctx, "foo"); err == nil {
		t.Fatalf("expected error getting deleted key")
	}
}

func TestCacheDeletePrefix(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	keys := []string{
		"snapshot:acc-1:2025-06-01",
		"snapshot:acc-1:2025-06-02",
		"snapshot:acc-2:2025-06-01",
	}
	for _, k := range keys {
		if err := cache.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}

	if err := cache.DeletePrefix(ctx, "snapshot:acc-1:"); err != nil {
		t.Fatalf("delete prefix failed: %v", err)
	}

	for _, k := range keys[:2] {
		if _, err := cache.Get(ctx, k); err == nil {
			t.Fatalf("expected key %s to be deleted", k)
		}
	}

	if _, err := cache.Get(ctx, keys[2]); err != nil {
		t.Fatalf("expected other account's key to survive, got %v", err)
	}
}

func TestCacheDeletePrefixNoMatches(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)

	if err := cache.DeletePrefix(context.Background(), "snapshot:ghost:"); err != nil {
		t.Fatalf("expected no error on empty match, got %v", err)
	}
}
