// Package promptcache keeps rendered system prompts warm so the first reply
// of a conversation doesn't pay for a full context rebuild. It is a
// per-process, best-effort optimization: a miss costs latency, never
// correctness, because the instance plan in Postgres stays the source of
// truth.
package promptcache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Entry struct {
	Prompt      string
	PopulatedAt time.Time
	Protected   bool
}

// Builder renders a full system prompt for an instance. Warm calls it on
// misses; the build reads the plan, branding, and persona catalogue.
type Builder interface {
	Build(ctx context.Context, instanceID int64) (string, error)
}

type Cache struct {
	mu      sync.Mutex
	entries map[int64]*Entry
	// lastWarm suppresses redundant rebuild requests for the same id inside
	// the dedup window. Not a lock: a slightly stale rebuild is harmless.
	lastWarm map[int64]time.Time

	builder     Builder
	ttl         time.Duration
	dedupWindow time.Duration
	now         func() time.Time
}

func New(builder Builder, ttl, dedupWindow time.Duration) *Cache {
	return &Cache{
		entries:     make(map[int64]*Entry),
		lastWarm:    make(map[int64]time.Time),
		builder:     builder,
		ttl:         ttl,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
}

// Warm builds and stores an entry if absent or expired. Idempotent: repeat
// calls for the same id within the dedup window return without rebuilding.
func (c *Cache) Warm(ctx context.Context, instanceID int64) error {
	c.mu.Lock()
	now := c.now()

	if entry, ok := c.entries[instanceID]; ok && !c.expired(entry, now) {
		c.mu.Unlock()
		return nil
	}
	if last, ok := c.lastWarm[instanceID]; ok && now.Sub(last) < c.dedupWindow {
		c.mu.Unlock()
		return nil
	}
	c.lastWarm[instanceID] = now
	c.mu.Unlock()

	// Build outside the lock; prompt rendering hits the database.
	prompt, err := c.builder.Build(ctx, instanceID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.entries[instanceID]
	c.entries[instanceID] = &Entry{
		Prompt:      prompt,
		PopulatedAt: c.now(),
		Protected:   prev != nil && prev.Protected,
	}
	slog.DebugContext(ctx, "prompt cache warmed", "instance_id", instanceID)
	return nil
}

// Get returns the cached entry, or nil on a miss. Expired entries are misses
// regardless of protection: protection exempts from explicit invalidation,
// not from TTL.
func (c *Cache) Get(instanceID int64) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[instanceID]
	if !ok || c.expired(entry, c.now()) {
		return nil
	}
	cp := *entry
	return &cp
}

// Protect marks an entry as exempt from bulk invalidation. Used when a prompt
// was just warmed in anticipation of imminent use, so an unrelated
// account-wide settings change doesn't evict it moments later.
func (c *Cache) Protect(instanceID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[instanceID]; ok {
		entry.Protected = true
	}
}

// InvalidateAllExceptProtected drops every unprotected entry. Called when
// branding or profile data changes.
func (c *Cache) InvalidateAllExceptProtected() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for id, entry := range c.entries {
		if !entry.Protected {
			delete(c.entries, id)
			dropped++
		}
	}
	return dropped
}

func (c *Cache) expired(entry *Entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(entry.PopulatedAt) > c.ttl
}
