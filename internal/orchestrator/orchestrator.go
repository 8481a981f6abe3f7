// Package orchestrator wires a SyncEngine to a Transport (spec.md §4.12):
// on connect it boots the engine if needed and flushes the queue; on
// message it forwards raw bytes to the engine; on destroy it propagates
// to both. Grounded on ppriyankuu-godkv's cmd/server/main.go top-level
// wiring style (construct store → construct membership → construct
// replicator → construct handler → register routes), translated from
// "wire HTTP handlers to a router" to "wire transport events to engine
// calls".
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"nmeshed/internal/engine"
	"nmeshed/internal/errors"
	"nmeshed/internal/transport"
)

// transportSender adapts a transport.Transport to queue.Sender so
// Queue.Flush can drive it without either package importing the other.
type transportSender struct {
	t transport.Transport
}

func (s transportSender) Send(_ context.Context, frame []byte) error {
	return s.t.Send(frame)
}

// Orchestrator is the thin engine+transport wirer.
type Orchestrator struct {
	engine    *engine.Engine
	transport transport.Transport

	mu      sync.Mutex
	unsubs  []func()
	started bool
}

// New builds an Orchestrator over an already-constructed engine and
// transport. Neither is booted or connected until Start is called.
func New(e *engine.Engine, t transport.Transport) *Orchestrator {
	return &Orchestrator{engine: e, transport: t}
}

// Start subscribes to the transport's event buses and dials it. It
// returns once the initial Connect attempt completes; reconnects after
// that happen in the background and are handled by watchStatus.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return errors.New(errors.InvalidStateTransition, "orchestrator.Start", "already started")
	}
	o.started = true
	o.mu.Unlock()

	statusCh, unsubStatus := o.transport.OnStatus(16)
	msgCh, unsubMsg := o.transport.OnMessage(128)
	errCh, unsubErr := o.transport.OnError(16)

	o.mu.Lock()
	o.unsubs = append(o.unsubs, unsubStatus, unsubMsg, unsubErr)
	o.mu.Unlock()

	go o.watchStatus(ctx, statusCh)
	go o.watchMessages(msgCh)
	go o.watchErrors(errCh)

	return o.transport.Connect()
}

// watchStatus implements spec.md §4.12's "on connected → boot() if not
// yet active, then queue.flush()". RECONNECTING and ERROR are
// deliberately ignored here: the engine stays ACTIVE and local writes
// keep queuing regardless of transport state.
func (o *Orchestrator) watchStatus(ctx context.Context, ch <-chan transport.StatusEvent) {
	for evt := range ch {
		if evt.To != transport.StatusConnected {
			continue
		}

		if o.engine.State() != engine.StateActive {
			if err := o.engine.Boot(ctx); err != nil {
				slog.Warn("orchestrator: boot on connect failed", "error", err)
				continue
			}
		}

		sender := transportSender{t: o.transport}
		if err := o.engine.Queue().Flush(ctx, sender, o.engine.EncodePendingEntry); err != nil {
			slog.Warn("orchestrator: queue flush stopped early", "error", err)
		}
	}
}

func (o *Orchestrator) watchMessages(ch <-chan []byte) {
	for msg := range ch {
		o.engine.ApplyRawMessage(msg, "server")
	}
}

func (o *Orchestrator) watchErrors(ch <-chan transport.ErrorEvent) {
	for evt := range ch {
		slog.Warn("orchestrator: transport error", "error", evt.Err, "fatal", evt.Fatal)
	}
}

// Destroy propagates destruction to both the transport and the engine
// and releases the event subscriptions (spec.md §4.12).
func (o *Orchestrator) Destroy() {
	o.mu.Lock()
	unsubs := o.unsubs
	o.unsubs = nil
	o.mu.Unlock()

	o.transport.Close()
	o.engine.Destroy()
	for _, unsub := range unsubs {
		unsub()
	}
}
