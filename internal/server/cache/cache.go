// Package cache keeps recently fetched reconciliation jobs in memory so
// repeated lookups skip the job store. Jobs never change once recorded,
// so entries only expire; they are never invalidated.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/recon/pkg/jobs"
)

// Cache is a TTL cache of jobs keyed by id.
type Cache struct {
	store *gocache.Cache
}

// New creates a cache whose entries live for ttl. Expired entries are
// purged every cleanupInterval.
func New(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(ttl, cleanupInterval),
	}
}

// Get returns a copy of the cached job.
func (c *Cache) Get(id string) (*jobs.Job, bool) {
	v, ok := c.store.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*jobs.Job).Clone(), true
}

// Set caches a copy of job under its id.
func (c *Cache) Set(job *jobs.Job) {
	c.store.Set(job.ID, job.Clone(), gocache.DefaultExpiration)
}

// Delete removes a job from the cache.
func (c *Cache) Delete(id string) {
	c.store.Delete(id)
}

// Clear removes all jobs from the cache.
func (c *Cache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of cached jobs, including expired ones
// not yet purged.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}
