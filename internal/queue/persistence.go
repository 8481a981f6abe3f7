package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// persistKey names the durable partition for a workspace's queue
// (spec.md §4.8): one record per workspace under "nmeshed.queue.{id}".
func persistKey(workspaceID string) string {
	return fmt.Sprintf("nmeshed.queue.%s", workspaceID)
}

// Persist writes the current queue contents to the backing store, JSON
// encoding each entry the way the teacher's snapshot manager serialises
// its entries — a plain marshal of the in-memory slice, swapped in whole.
// Safe to call directly (e.g. on a clean shutdown) in addition to the
// debounced path.
func (q *Queue) Persist(ctx context.Context) error {
	q.mu.Lock()
	entries := make([]Entry, len(q.entries))
	copy(entries, q.entries)
	q.mu.Unlock()

	if q.store == nil {
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("queue: marshal entries: %w", err)
	}
	return q.store.Put(ctx, persistKey(q.workspaceID), data)
}

// Hydrate loads a previously persisted queue from the backing store,
// replacing the in-memory contents. It is called once at boot
// (spec.md §4.7); a missing record is not an error — it simply means
// there is nothing to restore.
func (q *Queue) Hydrate(ctx context.Context) error {
	if q.store == nil {
		return nil
	}

	data, ok, err := q.store.Get(ctx, persistKey(q.workspaceID))
	if err != nil {
		return fmt.Errorf("queue: load entries: %w", err)
	}
	if !ok {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("queue: unmarshal entries: %w", err)
	}

	q.mu.Lock()
	q.entries = entries
	q.mu.Unlock()
	return nil
}
