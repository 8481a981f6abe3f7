// Package replication implements the CRDT replication core: per-key
// latest-value records plus a writer vector, with local and remote apply
// paths (spec.md §4.8). Grounded on the teacher's internal/store.Store —
// the same shape (map[string]Value, ApplyRemote comparing vector clocks,
// tombstone-on-delete) generalized from a WAL-backed node store to an
// in-memory client-side core keyed by hybrid-clock ordering instead of
// pure vector-clock dominance, and split into two selectable conflict
// policies instead of one hardcoded LWW-with-UpdatedAt-tiebreak.
package replication

import (
	"sort"
	"sync"

	"nmeshed/internal/clock"
	"nmeshed/internal/wire"
)

// Mode selects the conflict-resolution policy (spec.md §4.8).
type Mode int

const (
	// ModeCollaborative is strict last-writer-wins with full hybrid-clock
	// ordering and a lexicographic writer-id tiebreak on exact ties.
	ModeCollaborative Mode = iota

	// ModeRealtime is fast and lossy: tombstones are always accepted, and
	// values are accepted only when strictly newer by physical time
	// alone — the logical and node components are ignored. This resolves
	// the spec's realtime-tombstone open question (SPEC_FULL.md).
	ModeRealtime
)

// KeyRecord is the per-key state the core maintains.
type KeyRecord struct {
	Value         []byte
	Tombstone     bool
	LastTimestamp clock.Hybrid
	LastWriter    string
	LastSeq       uint64
}

// Effect tags the outcome of an apply_remote call.
type Effect int

const (
	EffectApplied Effect = iota
	EffectDominated
)

// ApplyResult is returned by ApplyRemote.
type ApplyResult struct {
	Effect   Effect
	Key      string
	Value    []byte
	IsDelete bool
	WasNew   bool
}

// Core is the replication engine for a single workspace.
type Core struct {
	mu         sync.Mutex
	mode       Mode
	workspace  [16]byte
	selfWriter string

	hlc     *clock.HybridLogicalClock
	tracker *clock.Tracker

	records map[string]KeyRecord
}

// New creates a Core for the given workspace and mode. hlc and tracker are
// owned by the caller (typically the engine) and shared with other
// components that need the same clock.
func New(workspace [16]byte, selfWriter string, mode Mode, hlc *clock.HybridLogicalClock, tracker *clock.Tracker) *Core {
	return &Core{
		mode:       mode,
		workspace:  workspace,
		selfWriter: selfWriter,
		hlc:        hlc,
		tracker:    tracker,
		records:    make(map[string]KeyRecord),
	}
}

// ApplyLocal records a local mutation, advances the local clock and
// vector, and returns the serialized Op frame ready to hand to the
// transport or queue.
func (c *Core) ApplyLocal(key string, value []byte, isDelete bool) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.hlc.Now()
	seq := c.tracker.IncrementSelf(c.selfWriter)

	c.records[key] = KeyRecord{
		Value:         value,
		Tombstone:     isDelete,
		LastTimestamp: ts,
		LastWriter:    c.selfWriter,
		LastSeq:       seq,
	}

	op := wire.OpFrame{
		Workspace: c.workspace,
		Key:       key,
		Timestamp: ts,
		Writer:    c.selfWriter,
		Seq:       seq,
		IsDelete:  isDelete,
		Value:     value,
	}
	frame := wire.Frame{Type: wire.TypeOp, Payload: wire.EncodeOp(op)}
	return frame.Encode()
}

// ApplyRemote applies an operation received from a peer. The writer's
// (writer, seq) pair is always observed in the vector tracker, even when
// the op is dominated, so horizon computation remains correct regardless
// of whether the op changed local state.
func (c *Core) ApplyRemote(op wire.OpFrame) ApplyResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hlc.Update(op.Timestamp)
	c.tracker.Observe(op.Writer, op.Seq)

	existing, hasExisting := c.records[op.Key]

	accept, wasNew := c.decide(op, existing, hasExisting)
	if !accept {
		return ApplyResult{Effect: EffectDominated, Key: op.Key}
	}

	c.records[op.Key] = KeyRecord{
		Value:         op.Value,
		Tombstone:     op.IsDelete,
		LastTimestamp: op.Timestamp,
		LastWriter:    op.Writer,
		LastSeq:       op.Seq,
	}

	return ApplyResult{
		Effect:   EffectApplied,
		Key:      op.Key,
		Value:    op.Value,
		IsDelete: op.IsDelete,
		WasNew:   wasNew,
	}
}

func (c *Core) decide(op wire.OpFrame, existing KeyRecord, hasExisting bool) (accept bool, wasNew bool) {
	if !hasExisting {
		return true, true
	}

	switch c.mode {
	case ModeRealtime:
		if op.IsDelete {
			return true, false
		}
		return op.Timestamp.Physical > existing.LastTimestamp.Physical, false

	default: // ModeCollaborative
		switch existing.LastTimestamp.Compare(op.Timestamp) {
		case -1:
			return true, false
		case 0:
			return op.Writer > existing.LastWriter, false
		default:
			return false, false
		}
	}
}

// GetState returns a defensive-copy read-only view of current, non-
// tombstoned values.
func (c *Core) GetState() map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]byte, len(c.records))
	for k, rec := range c.records {
		if rec.Tombstone {
			continue
		}
		out[k] = append([]byte(nil), rec.Value...)
	}
	return out
}

// GetRecord returns the raw record for a key, including tombstones, for
// callers (views, tests) that need the full replication state.
func (c *Core) GetRecord(key string) (KeyRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key]
	return rec, ok
}

// Keys returns all non-tombstoned keys with the given prefix, sorted for
// deterministic iteration by callers such as EntityView.
func (c *Core) Keys(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for k, rec := range c.records {
		if rec.Tombstone {
			continue
		}
		if len(prefix) > 0 && (len(k) < len(prefix) || k[:len(prefix)] != prefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prune removes tombstoned records dominated by horizon — records whose
// last writer has been observed by every known peer at or past last_seq.
// Live values are never removed.
func (c *Core) Prune(horizon clock.VectorClock) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, rec := range c.records {
		if !rec.Tombstone {
			continue
		}
		if horizon.Get(rec.LastWriter) >= rec.LastSeq {
			delete(c.records, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of retained records, tombstones included.
func (c *Core) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
