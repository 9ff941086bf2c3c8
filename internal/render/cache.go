package render

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cache is a process-local cache of rendered PDF bytes, keyed by the SHA-256
// of the fully-rendered HTML and scoped per job. Each job holds at most
// capacity entries; the least-recently-used entry is evicted on overflow.
// Not persisted: rendering is deterministic, a lost entry just re-renders.
type Cache struct {
	mu       sync.Mutex
	capacity int
	jobs     map[uint]*jobCache
}

type jobCache struct {
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type cacheEntry struct {
	key string
	pdf []byte
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 25
	}
	return &Cache{
		capacity: capacity,
		jobs:     make(map[uint]*jobCache),
	}
}

// Key is the cache key for a piece of rendered HTML.
func Key(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}

// GetOrRender returns the cached PDF for (jobID, html) or renders and caches
// it. The second return reports whether this was a cache hit.
func (c *Cache) GetOrRender(ctx context.Context, jobID uint, html string, renderFn func(ctx context.Context, html string) ([]byte, error)) ([]byte, bool, error) {
	key := Key(html)

	c.mu.Lock()
	jc, ok := c.jobs[jobID]
	if ok {
		if el, hit := jc.entries[key]; hit {
			jc.order.MoveToFront(el)
			pdf := el.Value.(*cacheEntry).pdf
			c.mu.Unlock()
			return pdf, true, nil
		}
	}
	c.mu.Unlock()

	// Render outside the lock; a slow render must not block cache hits for
	// other jobs. A duplicate concurrent render of the same HTML is harmless
	// since the output is deterministic.
	pdf, err := renderFn(ctx, html)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	jc, ok = c.jobs[jobID]
	if !ok {
		jc = &jobCache{order: list.New(), entries: make(map[string]*list.Element)}
		c.jobs[jobID] = jc
	}
	if el, hit := jc.entries[key]; hit {
		// Lost a race with another render of the same HTML.
		jc.order.MoveToFront(el)
		return pdf, false, nil
	}
	el := jc.order.PushFront(&cacheEntry{key: key, pdf: pdf})
	jc.entries[key] = el
	if jc.order.Len() > c.capacity {
		oldest := jc.order.Back()
		jc.order.Remove(oldest)
		delete(jc.entries, oldest.Value.(*cacheEntry).key)
	}
	return pdf, false, nil
}

// Len reports the number of cached entries for a job.
func (c *Cache) Len(jobID uint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if jc, ok := c.jobs[jobID]; ok {
		return jc.order.Len()
	}
	return 0
}

// Contains reports whether the given HTML is cached for a job, without
// touching recency.
func (c *Cache) Contains(jobID uint, html string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	jc, ok := c.jobs[jobID]
	if !ok {
		return false
	}
	_, hit := jc.entries[Key(html)]
	return hit
}

// Drop discards every entry for a job.
func (c *Cache) Drop(jobID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, jobID)
}
