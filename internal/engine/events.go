package engine

import "nmeshed/internal/wire"

// StateChangeEvent is published on every state machine transition,
// including the transition into StateDestroyed (spec.md §4.9: "every
// transition emits a state_change(from,to) event").
type StateChangeEvent struct {
	From State
	To   State
}

// OpOrigin tags whether an OpEvent was produced by a local set() call or
// by an accepted remote operation.
type OpOrigin int

const (
	OriginLocal OpOrigin = iota
	OriginRemote
)

// OpEvent is published whenever a key's value changes, whether by a
// local write or an accepted remote op. EntityView subscribes to this to
// keep its cached projection in sync (spec.md §4.11).
type OpEvent struct {
	Key      string
	Value    []byte
	IsDelete bool
	WasNew   bool
	Origin   OpOrigin
}

// PresenceEvent mirrors a decoded presence frame. Presence bypasses the
// replication core entirely, flowing straight from the transport to
// subscribers (spec.md §1, §4.5).
type PresenceEvent struct {
	User   string
	Status wire.PresenceStatus
}

// ErrorEvent reports a failure the engine recovered from locally — a
// malformed frame or a core apply error — for observers that want
// visibility without the engine treating it as fatal (spec.md §4.9).
type ErrorEvent struct {
	Op  string
	Err error
}
