package view

import (
	"sync"

	"nmeshed/internal/engine"
	"nmeshed/internal/errors"
	"nmeshed/internal/eventbus"
)

// singleFieldName is the synthetic field name used for a Document scoped
// to one key rather than a composite field set.
const singleFieldName = ""

// DocChangeEvent carries the full field snapshot whenever any watched
// field changes (spec.md §4.11: "emits change(snapshot) when any watched
// field changes").
type DocChangeEvent struct {
	Snapshot map[string][]byte
}

// Document is an EntityView scoped to either a single key or a fixed set
// of named fields (spec.md §4.11). Construction performs an initial scan
// and a subscription to the engine's op event; no writes happen as a
// side effect.
type Document struct {
	engine *engine.Engine

	mu        sync.Mutex
	keyByName map[string]string
	nameByKey map[string]string
	values    map[string][]byte

	changeBus   *eventbus.Bus[DocChangeEvent]
	unsubscribe func()
}

// NewDocument scopes a Document to a single key.
func NewDocument(e *engine.Engine, key string) *Document {
	return NewDocumentFields(e, map[string]string{singleFieldName: key})
}

// NewDocumentFields scopes a Document to a fixed set of named fields,
// each backed by its own key (a composite store, spec.md §4.11).
func NewDocumentFields(e *engine.Engine, fields map[string]string) *Document {
	d := &Document{
		engine:    e,
		keyByName: make(map[string]string, len(fields)),
		nameByKey: make(map[string]string, len(fields)),
		values:    make(map[string][]byte, len(fields)),
		changeBus: eventbus.New[DocChangeEvent](16),
	}

	for name, key := range fields {
		d.keyByName[name] = key
		d.nameByKey[key] = name
		if rec, ok := e.Core().GetRecord(key); ok && !rec.Tombstone {
			d.values[name] = rec.Value
		}
	}

	ch, unsub := e.OnOp(64)
	d.unsubscribe = unsub
	go d.watch(ch)
	return d
}

func (d *Document) watch(ch <-chan engine.OpEvent) {
	for evt := range ch {
		d.mu.Lock()
		name, ok := d.nameByKey[evt.Key]
		if !ok {
			d.mu.Unlock()
			continue
		}
		if evt.IsDelete {
			delete(d.values, name)
		} else {
			d.values[name] = evt.Value
		}
		snapshot := d.snapshotLocked()
		d.mu.Unlock()

		d.changeBus.Publish(DocChangeEvent{Snapshot: snapshot})
	}
}

func (d *Document) snapshotLocked() map[string][]byte {
	out := make(map[string][]byte, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Get returns the cached value of the named field.
func (d *Document) Get(name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[name]
	return v, ok
}

// Value returns the sole field's value for a single-key Document.
func (d *Document) Value() ([]byte, bool) {
	return d.Get(singleFieldName)
}

// Set writes the named field's key through the engine.
func (d *Document) Set(name string, value any) error {
	d.mu.Lock()
	key, ok := d.keyByName[name]
	d.mu.Unlock()
	if !ok {
		return errors.New(errors.Codec, "view.Document.Set", "no such field: "+name)
	}
	return d.engine.Set(key, value)
}

// SetValue writes the sole field of a single-key Document.
func (d *Document) SetValue(value any) error {
	return d.Set(singleFieldName, value)
}

// Snapshot returns a copy of every currently cached field.
func (d *Document) Snapshot() map[string][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// OnChange subscribes to full-snapshot change notifications.
func (d *Document) OnChange(bufferSize int) (<-chan DocChangeEvent, func()) {
	return d.changeBus.Subscribe(bufferSize)
}

// Close releases the underlying op subscription.
func (d *Document) Close() {
	d.unsubscribe()
}
