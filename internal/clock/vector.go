package clock

import (
	"maps"
	"sync"
)

// Relation tells us how two vector clocks relate to each other. Mirrors
// the teacher's store.ClockRelation (internal/store/vector_clock.go),
// renamed to fit this package.
type Relation int

const (
	Equal      Relation = iota // both clocks are identical
	Before                     // this clock is causally older
	After                      // this clock is causally newer
	Concurrent                 // neither dominates — a real conflict
)

// VectorClock maps participant id to the highest sequence number observed
// from that writer. Not safe for concurrent use on its own — callers that
// need concurrency safety should use the Tracker below.
type VectorClock map[string]uint64

// Compare determines how vc relates to other, same algorithm as the
// teacher's VectorClock.Compare.
func (vc VectorClock) Compare(other VectorClock) Relation {
	vcDominates := false
	otherDominates := false

	for writer, seq := range vc {
		if seq > other[writer] {
			vcDominates = true
		} else if seq < other[writer] {
			otherDominates = true
		}
	}
	for writer, seq := range other {
		if _, ok := vc[writer]; !ok && seq > 0 {
			otherDominates = true
		}
	}

	switch {
	case !vcDominates && !otherDominates:
		return Equal
	case vcDominates && !otherDominates:
		return After
	case !vcDominates && otherDominates:
		return Before
	default:
		return Concurrent
	}
}

// Merge returns the componentwise maximum of vc and other.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := vc.Copy()
	for writer, seq := range other {
		if seq > merged[writer] {
			merged[writer] = seq
		}
	}
	return merged
}

// Copy returns a deep copy of vc.
func (vc VectorClock) Copy() VectorClock {
	c := make(VectorClock, len(vc))
	maps.Copy(c, vc)
	return c
}

// Get returns vc[writer], treating a missing entry as 0.
func (vc VectorClock) Get(writer string) uint64 { return vc[writer] }

// Tracker is the concurrency-safe, horizon-computing wrapper around a local
// VectorClock plus the set of peer vectors reported to us, per spec.md
// §4.2. The teacher's VectorClock has no peer tracking or horizon; this is
// the engine's addition on top of the teacher's Compare/Merge/Copy core.
type Tracker struct {
	mu    sync.RWMutex
	self  VectorClock
	peers map[string]VectorClock // peer id -> last vector reported by that peer
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{self: make(VectorClock), peers: make(map[string]VectorClock)}
}

// Observe updates the writer's component to max(current, seq) — remote
// applies never decrease a component, and local writes increment strictly
// via IncrementSelf instead.
func (t *Tracker) Observe(writer string, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq > t.self[writer] {
		t.self[writer] = seq
	}
}

// IncrementSelf strictly increments writer's own component and returns the
// new sequence number — used for local writes.
func (t *Tracker) IncrementSelf(writer string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.self[writer]++
	return t.self[writer]
}

// Heads returns an immutable snapshot of the local vector.
func (t *Tracker) Heads() VectorClock {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.self.Copy()
}

// RecordPeer stores the last vector reported by peer (received in a Sync
// state_vector frame).
func (t *Tracker) RecordPeer(peer string, vector VectorClock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[peer] = vector.Copy()
}

// Horizon returns the componentwise minimum across self and all recorded
// peer vectors, treating missing components as 0. A tombstone whose
// (writer, seq) satisfies horizon[writer] >= seq is safe to prune: no peer
// can ever again legitimately deliver an op that would be outcompeted by
// it (spec.md §4.2).
func (t *Tracker) Horizon() VectorClock {
	t.mu.RLock()
	defer t.mu.RUnlock()

	writers := make(map[string]struct{}, len(t.self))
	for w := range t.self {
		writers[w] = struct{}{}
	}
	for _, peerVec := range t.peers {
		for w := range peerVec {
			writers[w] = struct{}{}
		}
	}

	horizon := make(VectorClock, len(writers))
	for w := range writers {
		min := t.self[w]
		for _, peerVec := range t.peers {
			if v := peerVec[w]; v < min {
				min = v
			}
		}
		horizon[w] = min
	}
	return horizon
}
