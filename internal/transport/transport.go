// Package transport implements the binary duplex channel described in
// spec.md §4.10: connection state machine, URL assembly, heartbeat
// watchdog, and capped-exponential-backoff reconnect. Grounded on
// ppriyankuu-godkv's internal/cluster/replicator.go for the backoff shape
// and cfullelove-mcp-workspaces/pkg/events/sse.go for the
// ticker-driven heartbeat-over-a-long-lived-connection select loop,
// translated from server-push SSE to a client-dialed duplex socket.
package transport

import (
	"nmeshed/internal/eventbus"
)

// Status is one of the five observable connection states (spec.md §4.10).
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusEvent is published on every connection state transition.
type StatusEvent struct {
	From Status
	To   Status
}

// ErrorEvent reports a connection-level failure (dial error, unexpected
// close, reconnect exhaustion) that the transport recovered from or that
// put it into StatusError.
type ErrorEvent struct {
	Err   error
	Fatal bool // true once reconnect attempts are exhausted or the close code forbids retry
}

// eventRingCapacity mirrors internal/engine's replay buffer size: each bus
// keeps this many recent events in its History. A subscriber receives only
// events published after it subscribes.
const eventRingCapacity = 64

// Transport is the byte pipe the orchestrator drives (spec.md §4.10). A
// single Transport instance is bound to one workspace for its lifetime;
// Close is terminal.
type Transport interface {
	// Connect dials the server, assembling the URL from workspace/token/
	// participant/sync_mode, and starts the heartbeat and read pump. It
	// returns once the initial dial succeeds or the connection watchdog
	// times out; subsequent reconnects happen in the background and are
	// observable via OnStatus.
	Connect() error
	// Send writes raw bytes as a single binary message. It never inspects
	// or transforms the payload (spec.md §4.10).
	Send(frame []byte) error
	// Status returns the current connection state.
	Status() Status
	// Close tears down the connection permanently; no further reconnects
	// are attempted and Connect must not be called again on this instance.
	Close()

	OnStatus(bufferSize int) (<-chan StatusEvent, func())
	OnMessage(bufferSize int) (<-chan []byte, func())
	OnError(bufferSize int) (<-chan ErrorEvent, func())
}

// buses bundles the three event channels every Transport implementation
// exposes, so concrete transports only need to embed and publish to it.
type buses struct {
	status  *eventbus.Bus[StatusEvent]
	message *eventbus.Bus[[]byte]
	err     *eventbus.Bus[ErrorEvent]
}

func newBuses() buses {
	return buses{
		status:  eventbus.New[StatusEvent](eventRingCapacity),
		message: eventbus.New[[]byte](eventRingCapacity),
		err:     eventbus.New[ErrorEvent](eventRingCapacity),
	}
}

func (b *buses) OnStatus(bufferSize int) (<-chan StatusEvent, func()) {
	return b.status.Subscribe(bufferSize)
}

func (b *buses) OnMessage(bufferSize int) (<-chan []byte, func()) {
	return b.message.Subscribe(bufferSize)
}

func (b *buses) OnError(bufferSize int) (<-chan ErrorEvent, func()) {
	return b.err.Subscribe(bufferSize)
}
