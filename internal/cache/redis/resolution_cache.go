// Package redis holds Redis-backed caches shared between API instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/resolver"
	goredis "github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client.
type Client struct {
	*goredis.Client
}

// Open creates a new Redis client and pings it to validate the connection.
func Open(ctx context.Context, addr, password string, db int) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Client{Client: c}, nil
}

// ResolutionCache stores zone resolutions keyed by collectible id.
type ResolutionCache struct {
	client *Client
	ttl    time.Duration
	prefix string
}

func NewResolutionCache(client *Client, ttl time.Duration) *ResolutionCache {
	return &ResolutionCache{client: client, ttl: ttl, prefix: "resolution:collectible:"}
}

func (c *ResolutionCache) key(id string) string { return c.prefix + id }

func (c *ResolutionCache) Get(ctx context.Context, id string) (resolver.Resolution, bool, error) {
	b, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return resolver.Resolution{}, false, nil
		}
		return resolver.Resolution{}, false, err
	}
	var res resolver.Resolution
	if err := json.Unmarshal(b, &res); err != nil {
		return resolver.Resolution{}, false, fmt.Errorf("decode resolution: %w", err)
	}
	return res, true, nil
}

func (c *ResolutionCache) Put(ctx context.Context, id string, res resolver.Resolution) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(id), b, c.ttl).Err()
}

// Invalidate drops the cached resolution for the collectible.
func (c *ResolutionCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
