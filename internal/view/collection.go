// Package view implements the two EntityView flavors spec.md §4.11
// describes: a prefix-scoped Collection and a single-key or composite
// Document. Grounded on the same subscribe-and-cache idiom
// internal/engine uses for its own typed event buses
// (cfullelove-mcp-workspaces/pkg/events/hub.go), applied here to a
// project's prefix-scoped replication state instead of filesystem
// change events.
package view

import (
	"sort"
	"strings"
	"sync"

	"nmeshed/internal/engine"
	"nmeshed/internal/eventbus"
)

// ChangeEvent reports one id within a Collection changing.
type ChangeEvent struct {
	ID       string
	Value    []byte
	IsDelete bool
}

// Entry is one row of a Collection's cached Data() array.
type Entry struct {
	ID    string
	Value []byte
}

// Collection is an EntityView scoped to every key with a given prefix
// (spec.md §4.11). Construction performs an initial scan of the core's
// current state and a subscription to the engine's op event; no writes
// happen as a side effect.
type Collection struct {
	engine *engine.Engine
	prefix string

	mu        sync.Mutex
	index     map[string][]byte
	dataCache []Entry
	dataValid bool
	version   int

	changeBus   *eventbus.Bus[ChangeEvent]
	unsubscribe func()
}

// NewCollection scopes a Collection to prefix on e's current state.
func NewCollection(e *engine.Engine, prefix string) *Collection {
	c := &Collection{
		engine:    e,
		prefix:    prefix,
		index:     make(map[string][]byte),
		changeBus: eventbus.New[ChangeEvent](32),
	}

	for _, key := range e.Core().Keys(prefix) {
		if rec, ok := e.Core().GetRecord(key); ok && !rec.Tombstone {
			c.index[strings.TrimPrefix(key, prefix)] = rec.Value
		}
	}

	ch, unsub := e.OnOp(64)
	c.unsubscribe = unsub
	go c.watch(ch)
	return c
}

// watch applies every op matching this Collection's prefix; ops for other
// prefixes are skipped without touching this instance's cache, so
// invalidation stays scoped to the one Collection whose prefix matched
// (spec.md §4.11's granular-invalidation requirement).
func (c *Collection) watch(ch <-chan engine.OpEvent) {
	for evt := range ch {
		if !strings.HasPrefix(evt.Key, c.prefix) {
			continue
		}
		id := strings.TrimPrefix(evt.Key, c.prefix)

		c.mu.Lock()
		c.version++
		if evt.IsDelete {
			delete(c.index, id)
		} else {
			c.index[id] = evt.Value
		}
		c.dataValid = false
		c.mu.Unlock()

		c.changeBus.Publish(ChangeEvent{ID: id, Value: evt.Value, IsDelete: evt.IsDelete})
	}
}

// Set writes id's value through the engine.
func (c *Collection) Set(id string, value any) error {
	return c.engine.Set(c.prefix+id, value)
}

// Add is Set under the name spec.md §4.11 uses for inserting a new entry.
func (c *Collection) Add(id string, value any) error {
	return c.Set(id, value)
}

// Delete removes id (a tombstoning Set with a nil value).
func (c *Collection) Delete(id string) error {
	return c.engine.Set(c.prefix+id, nil)
}

// Get returns the cached value for id.
func (c *Collection) Get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.index[id]
	return v, ok
}

// Data returns a dense, id-sorted snapshot of the collection. The
// returned slice keeps stable instance identity across calls until a
// matching mutation invalidates it, so callers can cheaply detect "no
// change" by comparing slice headers.
func (c *Collection) Data() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dataValid {
		return c.dataCache
	}

	ids := make([]string, 0, len(c.index))
	for id := range c.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, Entry{ID: id, Value: c.index[id]})
	}
	c.dataCache = out
	c.dataValid = true
	return out
}

// Size returns the number of live entries.
func (c *Collection) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Version is a monotonically increasing counter bumped on every applied
// mutation matching this collection's prefix.
func (c *Collection) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// OnChange subscribes to per-id change notifications.
func (c *Collection) OnChange(bufferSize int) (<-chan ChangeEvent, func()) {
	return c.changeBus.Subscribe(bufferSize)
}

// Close releases the underlying op subscription.
func (c *Collection) Close() {
	c.unsubscribe()
}
