package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/bucket"
)

func setupTestBucketStore(t *testing.T, cap int, ttl time.Duration) (*BucketStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := &Client{rdb: rdb, logger: zap.NewNop()}

	store := NewBucketStore(client, zap.NewNop(), cap, ttl)

	return store, func() {
		rdb.Close()
		mr.Close()
	}
}

func testEntry(id string) bucket.Entry {
	return bucket.Entry{
		ID:    id,
		Event: "notification",
		Data:  json.RawMessage(fmt.Sprintf(`{"id":%q}`, id)),
	}
}

func TestBucketStore_AppendAndDrain(t *testing.T) {
	store, cleanup := setupTestBucketStore(t, 50, 5*time.Minute)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, 42, testEntry(fmt.Sprintf("n%d", i))); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	entries, err := store.Drain(ctx, 42)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	for i, e := range entries {
		want := fmt.Sprintf("n%d", i)
		if e.ID != want {
			t.Errorf("entry %d: expected id %s, got %s", i, want, e.ID)
		}
		if e.Event != "notification" {
			t.Errorf("entry %d: expected event notification, got %s", i, e.Event)
		}
	}
}

func TestBucketStore_DrainClearsBucket(t *testing.T) {
	store, cleanup := setupTestBucketStore(t, 50, 5*time.Minute)
	defer cleanup()

	ctx := context.Background()
	store.Append(ctx, 42, testEntry("n0"))

	if _, err := store.Drain(ctx, 42); err != nil {
		t.Fatalf("first drain failed: %v", err)
	}

	entries, err := store.Drain(ctx, 42)
	if err != nil {
		t.Fatalf("second drain failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("second drain should be empty, got %d entries", len(entries))
	}
}

func TestBucketStore_TrimsToCap(t *testing.T) {
	store, cleanup := setupTestBucketStore(t, 3, 5*time.Minute)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.Append(ctx, 42, testEntry(fmt.Sprintf("n%d", i)))
	}

	entries, err := store.Drain(ctx, 42)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries after trim, got %d", len(entries))
	}

	// LTRIM keeps the newest entries.
	for i, e := range entries {
		want := fmt.Sprintf("n%d", i+2)
		if e.ID != want {
			t.Errorf("entry %d: expected id %s, got %s", i, want, e.ID)
		}
	}
}

func TestBucketStore_SkipsMalformedEntries(t *testing.T) {
	store, cleanup := setupTestBucketStore(t, 50, 5*time.Minute)
	defer cleanup()

	ctx := context.Background()
	store.Append(ctx, 42, testEntry("good"))

	// Simulate a corrupt list item written by something else.
	if err := store.client.rdb.RPush(ctx, bucketKey(42), "not-json").Err(); err != nil {
		t.Fatalf("failed to inject corrupt entry: %v", err)
	}

	entries, err := store.Drain(ctx, 42)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != "good" {
		t.Errorf("expected id good, got %s", entries[0].ID)
	}
}

func TestBucketStore_UsersAreIsolated(t *testing.T) {
	store, cleanup := setupTestBucketStore(t, 50, 5*time.Minute)
	defer cleanup()

	ctx := context.Background()
	store.Append(ctx, 1, testEntry("a"))
	store.Append(ctx, 2, testEntry("b"))

	entries, err := store.Drain(ctx, 1)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "a" {
		t.Fatalf("user 1 should only see its own entries, got %v", entries)
	}
}
