package server

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// dedupCache is a TTL cache of recently seen keys. The room uses it to drop
// rapid duplicate action submissions; the bot scheduler uses it to avoid
// scheduling the same pending action twice.
type dedupCache struct {
	clock quartz.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
}

func newDedupCache(clock quartz.Clock, ttl time.Duration) *dedupCache {
	return &dedupCache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// Seen records the key and reports whether it was already present and not
// yet expired. Expired entries are pruned opportunistically.
func (d *dedupCache) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	for k, expiry := range d.entries {
		if now.After(expiry) {
			delete(d.entries, k)
		}
	}

	if expiry, ok := d.entries[key]; ok && !now.After(expiry) {
		return true
	}
	d.entries[key] = now.Add(d.ttl)
	return false
}

// Len returns the number of live entries.
func (d *dedupCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
