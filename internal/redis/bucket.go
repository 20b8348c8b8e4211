package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/bucket"
)

// BucketStore implements bucket.Store on a Redis list per user, so live
// delivery survives process restarts and works across gateway replicas.
type BucketStore struct {
	client *Client
	logger *zap.Logger
	cap    int
	ttl    time.Duration
}

// NewBucketStore creates a Redis-backed bucket store.
func NewBucketStore(client *Client, logger *zap.Logger, cap int, ttl time.Duration) *BucketStore {
	return &BucketStore{
		client: client,
		logger: logger,
		cap:    cap,
		ttl:    ttl,
	}
}

func bucketKey(userID int64) string {
	return fmt.Sprintf("livebucket:%d", userID)
}

// Append pushes an entry onto the user's list, trims to the newest cap
// entries and refreshes the TTL, all in one pipeline round trip.
func (s *BucketStore) Append(ctx context.Context, userID int64, entry bucket.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal bucket entry: %w", err)
	}

	key := bucketKey(userID)

	pipe := s.client.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.cap), -1)
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to append to live bucket",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		return fmt.Errorf("redis append failed: %w", err)
	}

	return nil
}

// Drain reads and deletes the user's list in one transaction, returning
// entries oldest first. The MULTI/EXEC pairing makes the read-and-clear
// atomic: an append racing the drain lands in a fresh list.
func (s *BucketStore) Drain(ctx context.Context, userID int64) ([]bucket.Entry, error) {
	key := bucketKey(userID)

	pipe := s.client.rdb.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis drain failed: %w", err)
	}

	raw := rangeCmd.Val()
	if len(raw) == 0 {
		return nil, nil
	}

	entries := make([]bucket.Entry, 0, len(raw))
	for _, item := range raw {
		var entry bucket.Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warn("dropping malformed bucket entry",
				zap.Error(err),
				zap.Int64("user_id", userID),
			)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
