package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/course-platform/services/vod/internal/provider"
)

const keyPrefix = "vod:status:"

// RedisCache is the production StatusCache.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{Client: redis.NewClient(opt), TTL: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, videoGUID string) (provider.VideoInfo, bool, error) {
	val, err := c.Client.Get(ctx, keyPrefix+videoGUID).Result()
	if err != nil {
		if err == redis.Nil {
			return provider.VideoInfo{}, false, nil
		}
		return provider.VideoInfo{}, false, err
	}
	var info provider.VideoInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return provider.VideoInfo{}, false, err
	}
	return info, true, nil
}

func (c *RedisCache) Set(ctx context.Context, info provider.VideoInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	ttl := c.TTL
	// Terminal states don't change; keep them ten times longer.
	if info.Ready() || info.Failed() {
		ttl *= 10
	}
	return c.Client.Set(ctx, keyPrefix+info.GUID, b, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, videoGUID string) error {
	return c.Client.Del(ctx, keyPrefix+videoGUID).Err()
}
