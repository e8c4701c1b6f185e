// Package cache holds the bounded, deduplicated view of recent hub events.
//
// It is the single source of truth for every projection. Two ingestion paths
// exist: ApplySnapshot replaces everything with a server snapshot, and Ingest
// prepends one pushed event. Both leave the cache newest-first, capped, and
// free of duplicate ids.
package cache

import (
	"sync"
	"time"

	"alerthub/pkg/protocol"
)

// Cache is safe for concurrent use. Every mutation is atomic with respect to readers.
type Cache struct {
	mu        sync.RWMutex
	capacity  int
	events    []protocol.Event
	ids       map[int64]struct{}
	emails    []protocol.EmailLogEntry
	stats     protocol.Stats
	hasStats  bool
	fetchedAt time.Time
	version   uint64

	changes chan struct{}
}

// New creates an empty cache holding at most capacity events.
// A non-positive capacity falls back to protocol.DefaultCacheSize.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = protocol.DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		ids:      make(map[int64]struct{}, capacity),
		stats:    protocol.Stats{}.Normalize(),
		changes:  make(chan struct{}, 1),
	}
}

// Capacity returns the event cap.
func (c *Cache) Capacity() int {
	return c.capacity
}

// ApplySnapshot replaces events, email logs and stats wholesale.
// The server already returns newest-first, capped lists; entries past the cap
// and repeated ids are dropped so the invariants hold for any input.
func (c *Cache) ApplySnapshot(snap protocol.Snapshot) {
	events := make([]protocol.Event, 0, min(len(snap.Events), c.capacity))
	ids := make(map[int64]struct{}, c.capacity)
	for _, ev := range snap.Events {
		if len(events) == c.capacity {
			break
		}
		if _, dup := ids[ev.ID]; dup {
			continue
		}
		ids[ev.ID] = struct{}{}
		events = append(events, ev)
	}
	emails := make([]protocol.EmailLogEntry, len(snap.EmailLogs))
	copy(emails, snap.EmailLogs)

	c.mu.Lock()
	c.events = events
	c.ids = ids
	c.emails = emails
	c.stats = snap.Stats.Normalize()
	c.hasStats = true
	c.fetchedAt = snap.FetchedAt
	c.version++
	c.mu.Unlock()

	c.notify()
}

// Ingest prepends a pushed event and evicts from the tail down to capacity.
// An id already resident is left in place and Ingest returns false.
func (c *Cache) Ingest(ev protocol.Event) bool {
	c.mu.Lock()
	if _, dup := c.ids[ev.ID]; dup {
		c.mu.Unlock()
		return false
	}

	next := make([]protocol.Event, 0, min(len(c.events)+1, c.capacity))
	next = append(next, ev)
	next = append(next, c.events...)
	for len(next) > c.capacity {
		evicted := next[len(next)-1]
		delete(c.ids, evicted.ID)
		next = next[:len(next)-1]
	}
	c.ids[ev.ID] = struct{}{}
	c.events = next
	c.version++
	c.mu.Unlock()

	c.notify()
	return true
}

// Events returns the resident events, newest first.
func (c *Cache) Events() []protocol.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.Event, len(c.events))
	copy(out, c.events)
	return out
}

// EmailLogs returns the email log entries from the last snapshot.
func (c *Cache) EmailLogs() []protocol.EmailLogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.EmailLogEntry, len(c.emails))
	copy(out, c.emails)
	return out
}

// Stats returns the aggregate from the last snapshot and whether one has been applied.
func (c *Cache) Stats() (protocol.Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneStats(c.stats), c.hasStats
}

// Contains reports whether an event with id is resident.
func (c *Cache) Contains(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

// Len returns the number of resident events.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Version increases on every successful mutation.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// FetchedAt returns when the last applied snapshot was read.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Snapshot returns a consistent copy of everything resident.
func (c *Cache) Snapshot() protocol.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events := make([]protocol.Event, len(c.events))
	copy(events, c.events)
	emails := make([]protocol.EmailLogEntry, len(c.emails))
	copy(emails, c.emails)
	return protocol.Snapshot{
		Events:    events,
		EmailLogs: emails,
		Stats:     cloneStats(c.stats),
		FetchedAt: c.fetchedAt,
	}
}

// Changes delivers a value after mutations. Bursts coalesce into one signal.
func (c *Cache) Changes() <-chan struct{} {
	return c.changes
}

func (c *Cache) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func cloneStats(s protocol.Stats) protocol.Stats {
	out := s
	out.Severity = make(map[protocol.Severity]int, len(s.Severity))
	for k, v := range s.Severity {
		out.Severity[k] = v
	}
	out.Channels = make(map[protocol.Channel]int, len(s.Channels))
	for k, v := range s.Channels {
		out.Channels[k] = v
	}
	return out
}
