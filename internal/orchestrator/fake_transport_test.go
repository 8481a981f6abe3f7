package orchestrator

import (
	"sync"

	"nmeshed/internal/eventbus"
	"nmeshed/internal/transport"
)

// fakeTransport is an in-memory transport.Transport double for exercising
// the orchestrator's wiring without a real socket.
type fakeTransport struct {
	mu           sync.Mutex
	status       transport.Status
	sent         [][]byte
	connectErr   error
	closed       bool
	connectCalls int

	statusBus *eventbus.Bus[transport.StatusEvent]
	msgBus    *eventbus.Bus[[]byte]
	errBus    *eventbus.Bus[transport.ErrorEvent]
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		statusBus: eventbus.New[transport.StatusEvent](8),
		msgBus:    eventbus.New[[]byte](8),
		errBus:    eventbus.New[transport.ErrorEvent](8),
	}
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	f.connectCalls++
	err := f.connectErr
	f.mu.Unlock()
	return err
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Status() transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeTransport) OnStatus(n int) (<-chan transport.StatusEvent, func()) {
	return f.statusBus.Subscribe(n)
}

func (f *fakeTransport) OnMessage(n int) (<-chan []byte, func()) {
	return f.msgBus.Subscribe(n)
}

func (f *fakeTransport) OnError(n int) (<-chan transport.ErrorEvent, func()) {
	return f.errBus.Subscribe(n)
}

func (f *fakeTransport) emitConnected() {
	f.mu.Lock()
	from := f.status
	f.status = transport.StatusConnected
	f.mu.Unlock()
	f.statusBus.Publish(transport.StatusEvent{From: from, To: transport.StatusConnected})
}

func (f *fakeTransport) pushMessage(b []byte) {
	f.msgBus.Publish(b)
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
