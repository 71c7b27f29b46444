package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/pkg/metrics"
)

const defaultShardCount = 32

// Option applies a configuration option to the ShardedCache.
type Option func(*ShardedCache)

// WithShardCount sets the number of lock shards.
func WithShardCount(n int) Option {
	return func(c *ShardedCache) {
		if n > 0 {
			c.shardCount = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *ShardedCache) {
		if now != nil {
			c.now = now
		}
	}
}

// shard owns every scene of the users hashed to it, so invalidating a whole
// user touches a single lock.
type shard struct {
	mu    sync.RWMutex
	users map[string]map[model.Scene]*Record
}

// ShardedCache is an in-process Cache.
type ShardedCache struct {
	shards     []*shard
	shardCount int
	now        func() time.Time
}

var (
	_ Cache = (*ShardedCache)(nil)
	_ Sizer = (*ShardedCache)(nil)
)

// NewSharded creates an empty in-memory cache.
func NewSharded(opts ...Option) *ShardedCache {
	c := &ShardedCache{shardCount: defaultShardCount, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.shards = make([]*shard, c.shardCount)
	for i := range c.shards {
		c.shards[i] = &shard{users: make(map[string]map[model.Scene]*Record)}
	}
	return c
}

func (c *ShardedCache) shardFor(userID string) *shard {
	return c.shards[xxhash.Sum64String(userID)%uint64(len(c.shards))]
}

func (c *ShardedCache) Get(_ context.Context, userID string, scene model.Scene) (model.RecommendationList, bool, error) {
	sh := c.shardFor(userID)
	now := c.now()

	sh.mu.RLock()
	rec := sh.users[userID][scene]
	sh.mu.RUnlock()
	if rec == nil {
		return model.RecommendationList{}, false, nil
	}
	if !rec.Expired(now) {
		return rec.List, true, nil
	}

	sh.mu.Lock()
	// only evict the record we saw; a concurrent Set may have replaced it
	if scenes := sh.users[userID]; scenes[scene] == rec {
		delete(scenes, scene)
		if len(scenes) == 0 {
			delete(sh.users, userID)
		}
		metrics.RecordCacheEvictions("expired", 1)
	}
	sh.mu.Unlock()
	return model.RecommendationList{}, false, nil
}

func (c *ShardedCache) Set(_ context.Context, userID string, scene model.Scene, list model.RecommendationList, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	now := c.now()
	list.Entries = append([]model.RecommendationEntry(nil), list.Entries...)
	rec := &Record{List: list, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	sh := c.shardFor(userID)
	sh.mu.Lock()
	scenes := sh.users[userID]
	if scenes == nil {
		scenes = make(map[model.Scene]*Record)
		sh.users[userID] = scenes
	}
	scenes[scene] = rec
	sh.mu.Unlock()
	return nil
}

func (c *ShardedCache) Invalidate(_ context.Context, userID string, scenes ...model.Scene) error {
	sh := c.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cached := sh.users[userID]
	if cached == nil {
		return nil
	}
	if len(scenes) == 0 {
		metrics.RecordCacheEvictions("invalidated", len(cached))
		delete(sh.users, userID)
		return nil
	}
	var n int
	for _, s := range scenes {
		if _, ok := cached[s]; ok {
			delete(cached, s)
			n++
		}
	}
	if len(cached) == 0 {
		delete(sh.users, userID)
	}
	metrics.RecordCacheEvictions("invalidated", n)
	return nil
}

func (c *ShardedCache) SweepExpired(ctx context.Context) (int, error) {
	now := c.now()
	var removed int
	for _, sh := range c.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for userID, scenes := range sh.users {
			for s, rec := range scenes {
				if rec.Expired(now) {
					delete(scenes, s)
					removed++
				}
			}
			if len(scenes) == 0 {
				delete(sh.users, userID)
			}
		}
		sh.mu.Unlock()
	}
	metrics.RecordCacheEvictions("expired", removed)
	return removed, nil
}

// Len counts cached records, expired ones included until they are evicted.
func (c *ShardedCache) Len() int {
	var n int
	for _, sh := range c.shards {
		sh.mu.RLock()
		for _, scenes := range sh.users {
			n += len(scenes)
		}
		sh.mu.RUnlock()
	}
	return n
}
