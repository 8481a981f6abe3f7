package transport

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// fakeConn is an in-memory wsConn double: writes land in a recorded slice,
// reads are served from a channel the test pushes into, and Close
// simulates the remote end hanging up.
type fakeConn struct {
	mu       sync.Mutex
	incoming chan []byte
	outgoing [][]byte
	closed   bool
	closeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-c.incoming
	if !ok {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closeErr != nil {
			return 0, nil, c.closeErr
		}
		return 0, nil, io.EOF
	}
	return websocket.BinaryMessage, msg, nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outgoing = append(c.outgoing, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.incoming)
	}
	return nil
}

// push delivers msg to the next ReadMessage call.
func (c *fakeConn) push(msg []byte) { c.incoming <- msg }

// closeWith makes the next ReadMessage (after incoming drains) return err
// instead of io.EOF, simulating a server-initiated close.
func (c *fakeConn) closeWith(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
	c.Close()
}

func (c *fakeConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.outgoing...)
}

// fakeDialer returns the Nth preconfigured conn or error on the Nth call.
type fakeDialer struct {
	mu    sync.Mutex
	conns []wsConn
	errs  []error
	calls []string
}

func (d *fakeDialer) DialContext(_ context.Context, urlStr string, _ http.Header) (wsConn, *http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := len(d.calls)
	d.calls = append(d.calls, urlStr)

	if idx < len(d.errs) && d.errs[idx] != nil {
		return nil, nil, d.errs[idx]
	}
	if idx < len(d.conns) {
		return d.conns[idx], nil, nil
	}
	return nil, nil, io.ErrUnexpectedEOF
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}
