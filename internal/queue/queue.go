package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nmeshed/internal/kv"
)

// DefaultDebounce is the default delay between an enqueue/dequeue and the
// persisted copy being written to the backing store (spec.md §4.7).
const DefaultDebounce = 200 * time.Millisecond

// Sender hands a serialized frame to the transport. Flush stops and
// preserves the remaining queue order on the first error.
type Sender interface {
	Send(ctx context.Context, frame []byte) error
}

// PreConnectEncoder turns a pre-connect {key, value} pair into a wire
// frame once the replication core is available. It is supplied by the
// engine at flush time, since the queue itself has no codec.
type PreConnectEncoder func(key string, value []byte) ([]byte, error)

// Queue is a bounded FIFO of pending operations with debounced, best-effort
// persistence. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int

	workspaceID string
	store       kv.Store
	debounce    time.Duration

	metrics Metrics

	persistTimer *time.Timer
	closed       bool
}

// New creates a Queue bound to workspaceID, persisting through store.
// maxSize <= 0 means unbounded. debounce <= 0 uses DefaultDebounce.
func New(workspaceID string, store kv.Store, maxSize int, debounce time.Duration) *Queue {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Queue{
		workspaceID: workspaceID,
		store:       store,
		maxSize:     maxSize,
		debounce:    debounce,
	}
}

// Enqueue appends entry to the tail of the queue. If the queue is at
// capacity, the oldest entry is dropped and recorded in Metrics.Dropped
// (spec.md §4.7).
func (q *Queue) Enqueue(entry Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, entry)
	if q.maxSize > 0 && len(q.entries) > q.maxSize {
		q.entries = q.entries[1:]
		q.metrics.Dropped++
	}
	q.metrics.Enqueued++
	q.schedulePersistLocked()
}

// Len returns the current number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a defensive copy of the queue contents, oldest first.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Metrics returns a copy of the current counters.
func (q *Queue) Metrics() Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.metrics
}

// Flush hands each queued entry to sender in order. KindPreConnect entries
// are converted to frames via encode first. On the first error from either
// encode or sender.Send, flush stops; the failing entry and everything
// after it remain queued, in their original order (spec.md §4.7). Entries
// that were successfully sent are removed and a debounced persist is
// scheduled to reflect the shrunk queue.
func (q *Queue) Flush(ctx context.Context, sender Sender, encode PreConnectEncoder) error {
	q.mu.Lock()
	pending := make([]Entry, len(q.entries))
	copy(pending, q.entries)
	q.mu.Unlock()

	sent := 0
	var flushErr error

	for _, entry := range pending {
		frame := entry.Frame
		if entry.Kind == KindPreConnect {
			f, err := encode(entry.Key, entry.Value)
			if err != nil {
				flushErr = err
				break
			}
			frame = f
		}
		if err := sender.Send(ctx, frame); err != nil {
			flushErr = err
			break
		}
		sent++
	}

	if sent > 0 {
		q.mu.Lock()
		q.entries = q.entries[sent:]
		q.metrics.Flushed += uint64(sent)
		q.schedulePersistLocked()
		q.mu.Unlock()
	}

	return flushErr
}

// DrainPreConnect converts every KindPreConnect entry into a KindFrame in
// place, in order, using apply. It stops at the first error, leaving that
// entry and everything after it untouched — the same preserve-the-
// remainder semantics as Flush. Called once by the engine on the
// BOOTING→ACTIVE transition, since pre-connect entries are applied to the
// replication core as soon as it becomes available rather than waiting
// for the transport to connect (spec.md §4.9).
func (q *Queue) DrainPreConnect(apply func(key string, value []byte) ([]byte, error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, entry := range q.entries {
		if entry.Kind != KindPreConnect {
			continue
		}
		frame, err := apply(entry.Key, entry.Value)
		if err != nil {
			return err
		}
		q.entries[i] = Entry{Kind: KindFrame, Key: entry.Key, Frame: frame}
	}
	q.schedulePersistLocked()
	return nil
}

// Compact collapses the queue down to the latest pending entry per key,
// preserving the relative order of the surviving entries. Entries with an
// empty Key are never collapsed, since an empty key has no meaningful
// "latest" to keep. It returns the number of entries removed and schedules
// a debounced persist if anything changed (spec.md §4.7 supplement: a
// long-offline participant's queue holds many stale deltas for the same
// key by the time it reconnects, and only the last one matters).
func (q *Queue) Compact() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	lastIndex := make(map[string]int, len(q.entries))
	for i, entry := range q.entries {
		if entry.Key == "" {
			continue
		}
		lastIndex[entry.Key] = i
	}

	compacted := make([]Entry, 0, len(q.entries))
	for i, entry := range q.entries {
		if entry.Key != "" && lastIndex[entry.Key] != i {
			continue
		}
		compacted = append(compacted, entry)
	}

	removed := len(q.entries) - len(compacted)
	if removed == 0 {
		return 0
	}
	q.entries = compacted
	q.schedulePersistLocked()
	return removed
}

// Close cancels any pending debounced persist timer. It does not clear
// the queue's contents or its last-persisted copy in the store.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.persistTimer != nil {
		q.persistTimer.Stop()
	}
}

func (q *Queue) schedulePersistLocked() {
	if q.closed || q.store == nil {
		return
	}
	if q.persistTimer != nil {
		q.persistTimer.Stop()
	}
	q.persistTimer = time.AfterFunc(q.debounce, q.debouncedPersist)
}

// debouncedPersist runs on the timer goroutine. Persistence failure is
// logged as a warning and otherwise ignored — it must never stall the
// engine (spec.md §4.7).
func (q *Queue) debouncedPersist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Persist(ctx); err != nil {
		slog.Warn("queue: debounced persist failed", "workspace", q.workspaceID, "error", err)
	}
}
