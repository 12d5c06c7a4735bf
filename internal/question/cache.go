package question

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Minute

// Cache stores fetched question feeds in Redis, one key per subject filter.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ FeedCache = (*Cache)(nil)

// NewFeedCache returns the feed cache for the loader, or nil when caching is
// disabled by a non-positive ttl or a missing client.
func NewFeedCache(client *redis.Client, ttl time.Duration) FeedCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return NewCache(client, ttl)
}

// NewCache builds a Redis cache. A non-positive ttl falls back to one minute;
// use NewFeedCache when a zero ttl must disable caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(subject string) string {
	if subject == "" {
		subject = AllSubjects
	}
	return "questions:" + subject
}

// Get returns (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, subject string) ([]Question, error) {
	data, err := c.client.Get(ctx, c.key(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (c *Cache) Set(ctx context.Context, subject string, qs []Question) error {
	data, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(subject), data, c.ttl).Err()
}

// Invalidate drops every cached feed, used after an import.
func (c *Cache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "questions:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
