package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ttsmem/internal/voice"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
)

// ModelCache is an LRU cache of initialized voice models. It is safe for
// concurrent use.
type ModelCache struct {
	factory   voice.Factory
	footprint FootprintFunc
	now       func() time.Time
	logger    *log.Logger

	// Concurrent misses for one key share a single load.
	loads singleflight.Group

	mu         sync.Mutex
	items      map[string]*list.Element
	eviction   *list.List // front = most recently used
	memory     int64
	maxEntries int
	maxMemory  int64
	stats      Stats
	closed     bool

	// Running prune loop, if any
	janitor *janitor
}

// entry is the value stored in each list element.
type entry struct {
	info  Info
	model voice.Model
}

// Option configures a ModelCache.
type Option func(*ModelCache)

// WithMaxEntries sets the entry bound. Values below one are ignored.
func WithMaxEntries(n int) Option {
	return func(c *ModelCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMaxMemory sets the footprint bound in bytes; zero disables it.
func WithMaxMemory(bytes int64) Option {
	return func(c *ModelCache) {
		if bytes >= 0 {
			c.maxMemory = bytes
		}
	}
}

// WithFootprint replaces the footprint estimator.
func WithFootprint(fn FootprintFunc) Option {
	return func(c *ModelCache) {
		if fn != nil {
			c.footprint = fn
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ModelCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *ModelCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty cache that builds models with factory.
func New(factory voice.Factory, opts ...Option) *ModelCache {
	c := &ModelCache{
		factory:    factory,
		footprint:  FileFootprint,
		now:        time.Now,
		logger:     log.Default().WithPrefix("cache"),
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
		maxEntries: DefaultMaxEntries,
		maxMemory:  DefaultMaxMemory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the cached model for modelID, loading it on a miss.
// A failed load returns an error wrapping ErrLoadFailed and leaves the cache
// unchanged apart from the miss counters.
func (c *ModelCache) GetOrLoad(ctx context.Context, modelID, configID string) (voice.Model, error) {
	model, _, err := c.Fetch(ctx, modelID, configID)
	return model, err
}

// Fetch is GetOrLoad that also reports whether the request was a hit.
// Concurrent misses for one id share a single load, which is detached from
// the cancellation of the caller that started it.
func (c *ModelCache) Fetch(ctx context.Context, modelID, configID string) (voice.Model, bool, error) {
	if modelID == "" {
		return nil, false, fmt.Errorf("%w: empty model id", ErrInvalidArgument)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, false, ErrClosed
	}
	c.stats.Requests++
	if elem, ok := c.items[modelID]; ok {
		c.stats.Hits++
		model := c.touch(elem)
		c.mu.Unlock()
		c.logger.Debug("Cache hit", "model", modelID)
		return model, true, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	c.logger.Debug("Cache miss", "model", modelID)
	loadCtx := context.WithoutCancel(ctx)
	v, err, shared := c.loads.Do(modelID, func() (any, error) {
		return c.load(loadCtx, modelID, configID)
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		c.logger.Debug("Shared in-flight load", "model", modelID)
	}
	return v.(voice.Model), false, nil
}

// load initializes a model outside the lock and inserts it.
func (c *ModelCache) load(ctx context.Context, modelID, configID string) (voice.Model, error) {
	// A load that finished between our miss and this call already inserted it.
	c.mu.Lock()
	if elem, ok := c.items[modelID]; ok {
		model := elem.Value.(*entry).model
		c.mu.Unlock()
		return model, nil
	}
	c.mu.Unlock()

	start := c.now()
	model := c.factory()
	if err := model.Initialize(ctx, modelID, configID); err != nil {
		c.shutdown(modelID, model)
		c.mu.Lock()
		c.stats.LoadFailures++
		c.mu.Unlock()
		c.logger.Warn("Failed to load voice model", "model", modelID, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, modelID, err)
	}
	footprint := c.footprint(modelID, configID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.shutdown(modelID, model)
		return nil, ErrClosed
	}
	if elem, ok := c.items[modelID]; ok {
		c.shutdown(modelID, model)
		return elem.Value.(*entry).model, nil
	}

	for len(c.items) >= c.maxEntries && c.eviction.Len() > 0 {
		c.evictOldest()
	}
	if c.maxMemory > 0 {
		// Once the cache is empty the new model goes in regardless.
		for c.memory+footprint > c.maxMemory && c.eviction.Len() > 0 {
			c.evictOldest()
		}
	}

	now := c.now()
	e := &entry{
		info: Info{
			ModelID:     modelID,
			ConfigID:    configID,
			Footprint:   footprint,
			LoadedAt:    now,
			LastAccess:  now,
			AccessCount: 1,
		},
		model: model,
	}
	c.items[modelID] = c.eviction.PushFront(e)
	c.memory += footprint

	c.logger.Info("Loaded voice model",
		"model", modelID,
		"footprint", humanize.IBytes(uint64(footprint)),
		"took", now.Sub(start),
		"entries", len(c.items),
		"memory", humanize.IBytes(uint64(c.memory)))
	return model, nil
}

// IsCached reports whether modelID is cached without touching LRU order.
func (c *ModelCache) IsCached(modelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[modelID]
	return ok
}

// Evict removes modelID, shutting its model down. It reports whether the
// model was cached.
func (c *ModelCache) Evict(modelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[modelID]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.stats.Evictions++
	return true
}

// SetMaxEntries changes the entry bound, evicting least recently used
// models until the cache fits.
func (c *ModelCache) SetMaxEntries(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: max entries must be at least 1, got %d", ErrInvalidArgument, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxEntries = n
	for len(c.items) > c.maxEntries && c.eviction.Len() > 0 {
		c.evictOldest()
	}
	return nil
}

// MaxEntries returns the entry bound.
func (c *ModelCache) MaxEntries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxEntries
}

// SetMaxMemory changes the footprint bound (0 = unlimited), evicting least
// recently used models until the total fits or one model remains.
func (c *ModelCache) SetMaxMemory(bytes int64) error {
	if bytes < 0 {
		return fmt.Errorf("%w: max memory must not be negative, got %d", ErrInvalidArgument, bytes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxMemory = bytes
	if c.maxMemory > 0 {
		for c.memory > c.maxMemory && c.eviction.Len() > 1 {
			c.evictOldest()
		}
	}
	return nil
}

// MaxMemory returns the footprint bound in bytes.
func (c *ModelCache) MaxMemory() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxMemory
}

// Voices returns a snapshot of every cached model, most recently used first.
func (c *ModelCache) Voices() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]Info, 0, len(c.items))
	for elem := c.eviction.Front(); elem != nil; elem = elem.Next() {
		infos = append(infos, elem.Value.(*entry).info)
	}
	return infos
}

// Clear shuts down and drops every cached model. Statistics are kept.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()
}

// Stats returns a snapshot of the counters and occupancy.
func (c *ModelCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.items)
	stats.MemoryUsage = c.memory
	stats.MaxEntries = c.maxEntries
	stats.MaxMemory = c.maxMemory
	return stats
}

// ResetStats zeroes the cumulative counters. Occupancy is unaffected.
func (c *ModelCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = Stats{}
}

// Close stops the janitor and shuts down every cached model.
func (c *ModelCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	j := c.janitor
	c.janitor = nil
	c.mu.Unlock()

	j.halt()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	return nil
}

// touch records a hit on elem (must be called with lock held).
func (c *ModelCache) touch(elem *list.Element) voice.Model {
	c.eviction.MoveToFront(elem)
	e := elem.Value.(*entry)
	e.info.AccessCount++
	e.info.LastAccess = c.now()
	return e.model
}

// evictOldest removes the least recently used model (must be called with lock held).
func (c *ModelCache) evictOldest() {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*entry)
	c.logger.Debug("Evicting least recently used model",
		"model", e.info.ModelID,
		"footprint", humanize.IBytes(uint64(e.info.Footprint)))
	c.removeElement(elem)
	c.stats.Evictions++
}

// removeElement shuts a model down, then unlinks it (must be called with lock held).
func (c *ModelCache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	c.shutdown(e.info.ModelID, e.model)

	c.eviction.Remove(elem)
	delete(c.items, e.info.ModelID)
	c.memory -= e.info.Footprint
}

// clearLocked drops everything (must be called with lock held).
func (c *ModelCache) clearLocked() {
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		c.removeElement(elem)
		elem = prev
	}
	c.memory = 0
}

// shutdown releases a model; failures are logged, never returned.
func (c *ModelCache) shutdown(modelID string, model voice.Model) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Voice model shutdown panicked", "model", modelID, "panic", r)
		}
	}()
	if err := model.Shutdown(); err != nil {
		c.logger.Warn("Voice model shutdown failed", "model", modelID, "error", err)
	}
}
