package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "matchd:rec"

// RedisOption applies a configuration option to the RedisCache.
type RedisOption func(*RedisCache)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithScenes sets the scenes removed by a whole-user Invalidate.
func WithScenes(scenes ...model.Scene) RedisOption {
	return func(c *RedisCache) {
		if len(scenes) > 0 {
			c.scenes = scenes
		}
	}
}

// WithRedisClock overrides the time source used to stamp records.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(c *RedisCache) {
		if now != nil {
			c.now = now
		}
	}
}

// RedisCache shares cached lists between processes. Redis expires keys on its
// own, so SweepExpired has nothing to do; ExpiresAt is still checked on read
// to keep hard-expiry semantics under clock skew.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	scenes []model.Scene
	now    func() time.Time
}

var _ Cache = (*RedisCache)(nil)

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client: client,
		prefix: defaultKeyPrefix,
		scenes: []model.Scene{model.SceneHousing, model.SceneDating, model.SceneActivity, model.SceneBusiness, model.SceneSocial},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, db int, opts ...RedisOption) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedis(client, opts...), nil
}

// Close releases the client.
func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) key(userID string, scene model.Scene) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, userID, scene)
}

func (c *RedisCache) Get(ctx context.Context, userID string, scene model.Scene) (model.RecommendationList, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID, scene)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RecommendationList{}, false, nil
	}
	if err != nil {
		return model.RecommendationList{}, false, fmt.Errorf("redis get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.RecommendationList{}, false, fmt.Errorf("decode cache record: %w", err)
	}
	if rec.Expired(c.now()) {
		return model.RecommendationList{}, false, nil
	}
	return rec.List, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, scene model.Scene, list model.RecommendationList, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	now := c.now()
	raw, err := json.Marshal(Record{List: list, CreatedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID, scene), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string, scenes ...model.Scene) error {
	if len(scenes) == 0 {
		scenes = c.scenes
	}
	keys := make([]string, len(scenes))
	for i, s := range scenes {
		keys[i] = c.key(userID, s)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache) SweepExpired(context.Context) (int, error) {
	return 0, nil
}
