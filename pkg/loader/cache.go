package loader

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CacheKey identifies a File in loader caches.
func CacheKey(file File) string {
	return file.ID + ":" + file.FilePath
}

// Cache keeps fetched file contents in memory. Concurrent fetches of the
// same file are collapsed into one call. The zero value is ready to use.
type Cache struct {
	mu    sync.RWMutex
	data  map[string][]byte
	group singleflight.Group
}

func (c *Cache) lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.data[key]
	return b, ok
}

// Get returns the cached content of file or calls fetch once to obtain it.
// Failed fetches are not cached.
func (c *Cache) Get(ctx context.Context, file File, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	key := CacheKey(file)
	if b, ok := c.lookup(key); ok {
		return b, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if b, ok := c.lookup(key); ok {
			return b, nil
		}
		b, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.data == nil {
			c.data = map[string][]byte{}
		}
		c.data[key] = b
		c.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Forget drops the cached content of file, e.g. after a release was
// replaced in place.
func (c *Cache) Forget(file File) {
	c.mu.Lock()
	delete(c.data, CacheKey(file))
	c.mu.Unlock()
}
