package resolver

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheSize = 1024

// MemoryCache is an in-process LRU of resolutions.
type MemoryCache struct {
	cache *lru.Cache
}

func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{cache: c}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (Resolution, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return Resolution{}, false, nil
	}
	res, ok := v.(Resolution)
	return res, ok, nil
}

func (m *MemoryCache) Put(_ context.Context, key string, r Resolution) error {
	m.cache.Add(key, r)
	return nil
}
