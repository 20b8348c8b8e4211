// Package bucket implements the per-user holding area for notifications
// awaiting live delivery. A bucket is bounded (drop-oldest past the cap)
// and short-lived: its TTL is refreshed on every append and an idle bucket
// evaporates. Draining is an atomic read-and-clear, so an entry is handed
// to at most one drain cycle.
package bucket

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is one payload queued for live delivery.
type Entry struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Store is the bucket contract. The dispatcher appends; the stream
// endpoint drains.
type Store interface {
	Append(ctx context.Context, userID int64, entry Entry) error
	Drain(ctx context.Context, userID int64) ([]Entry, error)
}

// MemoryStore is a mutex-guarded in-process Store. It backs tests and
// single-process deployments where redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[int64]*userBucket
	cap     int
	ttl     time.Duration
}

type userBucket struct {
	entries   []Entry
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store with the given per-user cap
// and TTL.
func NewMemoryStore(cap int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		buckets: make(map[int64]*userBucket),
		cap:     cap,
		ttl:     ttl,
	}
}

// Append adds an entry to the user's bucket, evicting the oldest entry
// once the cap is reached, and refreshes the bucket TTL.
func (s *MemoryStore) Append(ctx context.Context, userID int64, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[userID]
	if !ok || time.Now().After(b.expiresAt) {
		b = &userBucket{}
		s.buckets[userID] = b
	}

	b.entries = append(b.entries, entry)
	if len(b.entries) > s.cap {
		b.entries = b.entries[len(b.entries)-s.cap:]
	}
	b.expiresAt = time.Now().Add(s.ttl)

	return nil
}

// Drain atomically removes and returns all pending entries, oldest first.
// An append racing a drain simply lands in the next cycle.
func (s *MemoryStore) Drain(ctx context.Context, userID int64) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[userID]
	if !ok {
		return nil, nil
	}
	delete(s.buckets, userID)

	if time.Now().After(b.expiresAt) {
		return nil, nil
	}

	return b.entries, nil
}
