// Package schema implements the optional prefix-to-codec registry the
// engine consults before handing a value to the replication core
// (spec.md §4.9, design note in §9: "one interface, many implementations,
// registered by prefix"). No teacher analogue exists directly; grounded
// on the overall registry shape used by the teacher's internal/cluster
// membership map (a mutex-guarded map keyed by a string, looked up on
// every call) generalized from node-id keys to prefix keys with
// longest-match resolution instead of exact lookup.
package schema

import (
	"sort"
	"sync"
)

// Codec encodes a user value to the opaque bytes the replication core
// stores, and decodes it back. The engine treats values as byte blobs;
// Codec is the only place structural typing enters the picture.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// CodecFunc pairs of encode/decode functions implementing Codec, for
// callers who would rather not define a named type.
type CodecFunc struct {
	EncodeFn func(value any) ([]byte, error)
	DecodeFn func(data []byte) (any, error)
}

func (c CodecFunc) Encode(value any) ([]byte, error) { return c.EncodeFn(value) }
func (c CodecFunc) Decode(data []byte) (any, error)  { return c.DecodeFn(data) }

// Registry maps a key prefix to a Codec. Lookup resolves the longest
// registered prefix that matches a given key; an empty-string prefix acts
// as a catch-all. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register associates prefix with codec, replacing any existing
// registration for the same prefix.
func (r *Registry) Register(prefix string, codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[prefix] = codec
}

// Unregister removes any codec registered for prefix.
func (r *Registry) Unregister(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codecs, prefix)
}

// Lookup returns the codec registered under the longest prefix of key,
// and whether any prefix (including the catch-all "") matched.
func (r *Registry) Lookup(key string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []string
	for prefix := range r.codecs {
		if len(prefix) <= len(key) && key[:len(prefix)] == prefix {
			candidates = append(candidates, prefix)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	return r.codecs[candidates[0]], true
}

// Clear removes every registration. Intended for test isolation
// (spec.md §9: "tests clear it").
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs = make(map[string]Codec)
}
