package singularity

import (
	"database/sql"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a requested image variant or source does not exist.
var ErrNotFound = sql.ErrNoRows

// ImageCache is an in-memory TTL cache of optimized images in front of an
// ImageStore. The store may be nil, in which case only memory is used.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	store   *ImageStore
	now     func() time.Time
}

type cacheEntry struct {
	img     OptimizedImage
	fetched time.Time
}

// NewImageCache creates an ImageCache backed by the given store.
func NewImageCache(s *ImageStore, ttl time.Duration) *ImageCache {
	return &ImageCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		store:   s,
		now:     time.Now,
	}
}

func (c *ImageCache) valid(e cacheEntry) bool {
	return c.now().Sub(e.fetched) < c.ttl
}

// Get returns a cached variant. Memory is consulted first, then the store;
// entries older than the TTL in either place are treated as missing.
func (c *ImageCache) Get(key string) (OptimizedImage, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.valid(e) {
		return e.img, nil
	}
	if c.store == nil {
		return OptimizedImage{}, ErrNotFound
	}

	img, err := c.store.GetImage(key)
	if err != nil {
		return OptimizedImage{}, err
	}
	if !c.valid(cacheEntry{fetched: img.CreatedAt}) {
		return OptimizedImage{}, ErrNotFound
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{img: img, fetched: img.CreatedAt}
	c.mu.Unlock()
	return img, nil
}

// Put stores a variant in memory and, when configured, in the store.
func (c *ImageCache) Put(img OptimizedImage) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = c.now()
	}
	c.mu.Lock()
	c.entries[img.Key] = cacheEntry{img: img, fetched: img.CreatedAt}
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.SaveImage(img)
}

// Prune drops expired entries from memory and the store.
func (c *ImageCache) Prune() (int64, error) {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.entries {
		if e.fetched.Before(cutoff) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	if c.store == nil {
		return 0, nil
	}
	return c.store.DeleteImagesBefore(cutoff)
}

// StartPruner runs Prune every interval until the returned stop function is called.
func (c *ImageCache) StartPruner(interval time.Duration, onErr func(error)) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := c.Prune(); err != nil && onErr != nil {
					onErr(err)
				}
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
