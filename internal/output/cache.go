package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/multierr"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
)

// OpenFunc opens the target for key. reopen is true when the key was opened
// earlier in the same run and evicted since.
type OpenFunc func(key model.RoutingKey, reopen bool) (*Target, error)

// HandleCache is a bounded LRU of open targets. The number of open targets
// never exceeds its capacity: the least recently used one is flushed and
// closed before another is opened.
type HandleCache struct {
	mu        sync.Mutex
	capacity  int
	lru       *simplelru.LRU[model.RoutingKey, *Target]
	open      OpenFunc
	seen      map[model.RoutingKey]struct{}
	opens     int64
	evictions int64
	peak      int
	failures  []Failure
}

// Failure is a target that could not be flushed or closed when it left the
// cache. Rows written to it since it was opened are presumed lost.
type Failure struct {
	Key  model.RoutingKey
	Path string
	Rows int64
	Err  error
}

// NewHandleCache creates a cache holding at most capacity open targets.
func NewHandleCache(capacity int, open OpenFunc) (*HandleCache, error) {
	if capacity < 1 {
		return nil, exerrors.Configuration(fmt.Sprintf("max open files must be at least 1, got %d", capacity), nil)
	}
	c := &HandleCache{
		capacity: capacity,
		open:     open,
		seen:     make(map[model.RoutingKey]struct{}),
	}
	lru, err := simplelru.NewLRU[model.RoutingKey, *Target](capacity, c.onEvict)
	if err != nil {
		return nil, exerrors.Configuration("cannot create handle cache", err)
	}
	c.lru = lru
	return c, nil
}

// onEvict runs under c.mu, from RemoveOldest, Remove and Purge.
func (c *HandleCache) onEvict(key model.RoutingKey, t *Target) {
	if err := t.Close(); err != nil {
		c.failures = append(c.failures, Failure{Key: key, Path: t.Path, Rows: t.rows, Err: err})
	}
}

// TakeFailures returns and forgets the close failures queued so far.
func (c *HandleCache) TakeFailures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.failures
	c.failures = nil
	return f
}

// With runs fn on the target for key while holding the cache lock, opening
// it first if needed. Writes for one key therefore never interleave.
func (c *HandleCache) With(key model.RoutingKey, fn func(*Target) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.getOrOpen(key)
	if err != nil {
		return err
	}
	t.lastUsed = time.Now()
	return fn(t)
}

// GetOrOpen returns the target for key, opening it if needed.
func (c *HandleCache) GetOrOpen(key model.RoutingKey) (*Target, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrOpen(key)
}

func (c *HandleCache) getOrOpen(key model.RoutingKey) (*Target, error) {
	if t, ok := c.lru.Get(key); ok {
		return t, nil
	}
	if c.lru.Len() >= c.capacity {
		c.lru.RemoveOldest()
		c.evictions++
	}
	_, reopen := c.seen[key]
	t, err := c.open(key, reopen)
	if err != nil {
		return nil, err
	}
	c.seen[key] = struct{}{}
	c.opens++
	c.lru.Add(key, t)
	if n := c.lru.Len(); n > c.peak {
		c.peak = n
	}
	return t, nil
}

// Remove flushes and closes the target for key if it is open.
func (c *HandleCache) Remove(key model.RoutingKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len is the number of open targets.
func (c *HandleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CacheStats describes cache activity
type CacheStats struct {
	Opens     int64
	Evictions int64
	Peak      int
}

func (c *HandleCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Opens: c.opens, Evictions: c.evictions, Peak: c.peak}
}

// Purge flushes and closes every open target. Failures are queued for
// TakeFailures.
func (c *HandleCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Close purges the cache and returns every queued failure as a
// DestinationError.
func (c *HandleCache) Close() error {
	c.Purge()
	var errs error
	for _, f := range c.TakeFailures() {
		errs = multierr.Append(errs, &exerrors.DestinationError{Key: f.Key, Path: f.Path, Err: f.Err})
	}
	return errs
}
