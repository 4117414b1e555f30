// Package rediscache implements checkpoint.Cache on Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/threadmesh/checkpoint"
)

// Options configures a Cache.
type Options struct {
	// Prefix is prepended to every key. Defaults to "threadmesh:checkpoint:".
	Prefix string
	// TTL bounds how long an entry may be served. Zero keeps entries until invalidated.
	TTL time.Duration
}

// Cache stores checkpoints as JSON strings.
type Cache struct {
	rdb  goredis.UniversalClient
	opts Options
}

type entry struct {
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// New wraps an existing client.
func New(rdb goredis.UniversalClient, optFns ...func(o *Options)) *Cache {
	opts := Options{Prefix: "threadmesh:checkpoint:", TTL: 10 * time.Minute}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Cache{rdb: rdb, opts: opts}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string, optFns ...func(o *Options)) (*Cache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, optFns...), nil
}

// Close closes the underlying client.
func (c *Cache) Close() error { return c.rdb.Close() }

func (c *Cache) key(threadID string) string { return c.opts.Prefix + threadID }

// Get reads a cached checkpoint.
func (c *Cache) Get(ctx context.Context, threadID string) (*checkpoint.Checkpoint, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(threadID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, err
	}
	return &checkpoint.Checkpoint{ThreadID: threadID, State: e.State, CreatedAt: e.CreatedAt}, true, nil
}

// Set caches cp.
func (c *Cache) Set(ctx context.Context, cp *checkpoint.Checkpoint) error {
	raw, err := json.Marshal(entry{State: cp.State, CreatedAt: cp.CreatedAt})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(cp.ThreadID), raw, c.opts.TTL).Err()
}

// Delete drops a cached checkpoint.
func (c *Cache) Delete(ctx context.Context, threadID string) error {
	return c.rdb.Del(ctx, c.key(threadID)).Err()
}
