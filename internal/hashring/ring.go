// Package hashring implements the consistent-hash ownership map and the
// per-key authority tracker built on top of it. Grounded on the teacher's
// internal/cluster/ring.go (sha256 ring, virtual nodes, sorted-slice
// binary search).
package hashring

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// DefaultReplicas is the default number of virtual nodes placed per
// physical participant on the ring (spec.md §4.3).
const DefaultReplicas = 20

// Ring is a consistent-hash ring mapping keys to owning participant ids.
// Safe for concurrent use.
type Ring struct {
	mu       sync.RWMutex
	replicas int
	points   map[uint32]string // ring position -> participant id
	sorted   []uint32
}

// NewRing creates an empty ring. replicas <= 0 uses DefaultReplicas.
func NewRing(replicas int) *Ring {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	return &Ring{replicas: replicas, points: make(map[uint32]string)}
}

// AddNode inserts R virtual points for id at hash(id‖i), i in [0,R).
func (r *Ring) AddNode(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.replicas; i++ {
		pos := r.hash(fmt.Sprintf("%s#%d", id, i))
		r.points[pos] = id
	}
	r.rebuild()
}

// RemoveNode deletes all of id's virtual points.
func (r *Ring) RemoveNode(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.replicas; i++ {
		pos := r.hash(fmt.Sprintf("%s#%d", id, i))
		delete(r.points, pos)
	}
	r.rebuild()
}

// Owner returns the participant id owning key: the first ring position
// at or after hash(key), wrapping around.
func (r *Ring) Owner(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sorted) == 0 {
		return "", false
	}
	pos := r.hash(key)
	idx := r.search(pos)
	return r.points[r.sorted[idx]], true
}

// Nodes returns the distinct set of physical participant ids on the ring.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var nodes []string
	for _, id := range r.points {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			nodes = append(nodes, id)
		}
	}
	sort.Strings(nodes)
	return nodes
}

// NodeCount returns the number of distinct physical participants.
func (r *Ring) NodeCount() int { return len(r.Nodes()) }

func (r *Ring) hash(s string) uint32 {
	h := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint32(h[:4])
}

func (r *Ring) rebuild() {
	r.sorted = make([]uint32, 0, len(r.points))
	for pos := range r.points {
		r.sorted = append(r.sorted, pos)
	}
	slices.Sort(r.sorted)
}

func (r *Ring) search(pos uint32) int {
	idx := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i] >= pos
	})
	if idx == len(r.sorted) {
		idx = 0
	}
	return idx
}
