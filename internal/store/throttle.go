package store

import (
	"sync"
	"time"
)

// DefaultKey is the fallback entry consulted for keys without their own entry.
const DefaultKey = "default"

// Throttles maps a special-condition type or alert fingerprint to the
// instant before which it must not be posted again.
// It is safe for concurrent use.
type Throttles struct {
	mu sync.RWMutex

	// key: condition type or alert fingerprint, value: allowed-at-or-after
	entries map[string]time.Time
}

// NewThrottles creates a fresh store whose default entry is now.
func NewThrottles(now time.Time) *Throttles {
	return &Throttles{
		entries: map[string]time.Time{DefaultKey: now.UTC()},
	}
}

// IsAllowed reports whether key may be posted at now, falling back to the
// default entry when key has none.
func (t *Throttles) IsAllowed(key string, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	until, ok := t.entries[key]
	if !ok {
		until = t.entries[DefaultKey]
	}
	return !now.Before(until)
}

// Record blocks key for minutes from now.
func (t *Throttles) Record(key string, now time.Time, minutes int) {
	t.RecordUntil(key, now.Add(time.Duration(minutes)*time.Minute))
}

// RecordUntil blocks key until the given instant.
func (t *Throttles) RecordUntil(key string, until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[key] = until.UTC()
}

// Has reports whether key has its own entry.
func (t *Throttles) Has(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.entries[key]
	return ok
}

// Get returns the entry for key.
func (t *Throttles) Get(key string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	until, ok := t.entries[key]
	return until, ok
}

// Prune drops every non-default entry whose timestamp is at or before now
// and returns how many were removed.
func (t *Throttles) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, until := range t.entries {
		if key == DefaultKey {
			continue
		}
		if !until.After(now) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of all entries.
func (t *Throttles) Snapshot() map[string]time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]time.Time, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of entries, default included.
func (t *Throttles) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}
