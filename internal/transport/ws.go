package transport

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nmeshed/internal/config"
	"nmeshed/internal/errors"
	"nmeshed/internal/wire"
)

// heartbeatByte is the single-byte liveness frame spec.md §4.10 specifies.
var heartbeatByte = []byte{0x00}

// wsConn is the subset of *websocket.Conn the transport drives. Extracted
// as an interface so tests can substitute an in-memory fake instead of a
// real socket.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// wsDialer abstracts the dial step for the same reason.
type wsDialer interface {
	DialContext(ctx context.Context, urlStr string, header http.Header) (wsConn, *http.Response, error)
}

type gorillaDialer struct{ d *websocket.Dialer }

func (g gorillaDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (wsConn, *http.Response, error) {
	conn, resp, err := g.d.DialContext(ctx, urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

// WSTransport implements Transport over github.com/gorilla/websocket
// (spec.md §4.10). One instance is bound to one workspace/participant
// pair for its lifetime.
type WSTransport struct {
	buses

	cfg           *config.Config
	participantID string
	dialer        wsDialer

	mu       sync.Mutex
	state    Status
	conn     wsConn
	closed   bool
	attempt  int
	lastRecv time.Time
	runDone  chan struct{}

	writeMu sync.Mutex
}

// NewWSTransport constructs a transport for cfg, tagging outgoing
// connections with participantID as the userId query parameter.
func NewWSTransport(cfg *config.Config, participantID string) *WSTransport {
	return &WSTransport{
		buses:         newBuses(),
		cfg:           cfg,
		participantID: participantID,
		dialer:        gorillaDialer{d: websocket.DefaultDialer},
		state:         StatusIdle,
	}
}

// Status returns the current connection state.
func (t *WSTransport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect performs the initial dial (spec.md §4.10: URL assembly plus a
// per-connection watchdog bounded by connection_timeout). On failure it
// schedules the background reconnect loop (unless auto_reconnect is
// disabled) and returns the dial error to the caller.
func (t *WSTransport) Connect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New(errors.ConnectionFatal, "transport.Connect", "transport is closed")
	}
	from := t.state
	t.state = StatusConnecting
	t.mu.Unlock()
	t.emitStatus(from, StatusConnecting)

	conn, err := t.dial()
	if err != nil {
		t.disconnect(err)
		return err
	}
	t.onConnected(conn)
	return nil
}

func (t *WSTransport) dial() (wsConn, error) {
	target, err := buildURL(t.cfg.ServerURL, t.cfg.WorkspaceID, t.cfg.Token, t.participantID, t.cfg.EffectiveSyncMode())
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "transport.dial", "assemble sync url", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectionTimeout())
	defer cancel()

	conn, _, err := t.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ConnectionRetryable, "transport.dial", "dial sync endpoint", err)
	}
	return conn, nil
}

// buildURL assembles base/v1/sync/<workspace>?token=...&userId=...&sync_mode=...
// per spec.md §4.10.
func buildURL(serverURL, workspaceID, token, participantID string, mode config.SyncMode) (string, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/v1/sync/" + workspaceID

	q := base.Query()
	q.Set("token", token)
	q.Set("userId", participantID)
	q.Set("sync_mode", string(mode))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (t *WSTransport) onConnected(conn wsConn) {
	t.mu.Lock()
	from := t.state
	t.state = StatusConnected
	t.conn = conn
	t.attempt = 0
	t.lastRecv = time.Now()
	done := make(chan struct{})
	t.runDone = done
	t.mu.Unlock()

	t.emitStatus(from, StatusConnected)
	go t.run(conn, done)
}

// run owns one connection's lifetime: it reads frames on a helper
// goroutine and multiplexes them against the heartbeat ticker in a
// single select loop, the same shape as
// cfullelove-mcp-workspaces/pkg/events/sse.go's SSE write loop.
func (t *WSTransport) run(conn wsConn, done chan struct{}) {
	type readResult struct {
		data []byte
		err  error
	}
	reads := make(chan readResult, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			reads <- readResult{data: data, err: err}
			if err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(t.cfg.HeartbeatInterval())
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return

		case r := <-reads:
			if r.err != nil {
				t.disconnect(r.err)
				return
			}
			t.mu.Lock()
			t.lastRecv = time.Now()
			t.mu.Unlock()
			if isHeartbeat(r.data) {
				continue
			}
			t.message.Publish(append([]byte(nil), r.data...))

		case <-heartbeat.C:
			t.mu.Lock()
			sinceRecv := time.Since(t.lastRecv)
			t.mu.Unlock()
			if sinceRecv > 2*t.cfg.HeartbeatInterval() {
				t.disconnect(errors.New(errors.ConnectionRetryable, "transport.run", "heartbeat timeout"))
				return
			}
			if err := t.writeFrame(conn, heartbeatByte); err != nil {
				t.disconnect(err)
				return
			}
		}
	}
}

// isHeartbeat reports whether buf is the raw single-byte ping/pong or a
// wire Heartbeat frame — both are liveness signals, never forwarded to
// subscribers (spec.md §4.10's resolved heartbeat-payload Open Question).
func isHeartbeat(buf []byte) bool {
	if len(buf) == 1 && buf[0] == 0x00 {
		return true
	}
	if f, _, err := wire.DecodeFrame(buf); err == nil && f.Type == wire.TypeHeartbeat {
		return true
	}
	return false
}

func (t *WSTransport) writeFrame(conn wsConn, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Send writes frame as a single binary message, never transforming it
// (spec.md §4.10).
func (t *WSTransport) Send(frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	state := t.state
	t.mu.Unlock()

	if state != StatusConnected || conn == nil {
		return errors.New(errors.ConnectionRetryable, "transport.Send", "not connected")
	}
	if err := t.writeFrame(conn, frame); err != nil {
		return errors.Wrap(errors.ConnectionRetryable, "transport.Send", "write frame", err)
	}
	return nil
}

// disconnect handles a lost connection: fatal close codes (4000-4099) and
// a disabled auto_reconnect both move straight to ERROR; otherwise it
// schedules the backoff reconnect loop (spec.md §4.10).
func (t *WSTransport) disconnect(cause error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.conn = nil

	if isFatalClose(cause) || !t.cfg.AutoReconnect {
		from := t.state
		t.state = StatusError
		t.mu.Unlock()
		t.emitStatus(from, StatusError)
		t.err.Publish(ErrorEvent{Err: cause, Fatal: true})
		return
	}

	from := t.state
	t.state = StatusReconnecting
	attempt := t.attempt
	t.mu.Unlock()

	t.emitStatus(from, StatusReconnecting)
	t.err.Publish(ErrorEvent{Err: cause, Fatal: false})
	go t.reconnectLoop(attempt)
}

// isFatalClose reports whether cause is a websocket close with a code in
// [4000, 4100) — the auth-error range spec.md §4.10 says must never
// reconnect.
func isFatalClose(cause error) bool {
	closeErr, ok := cause.(*websocket.CloseError)
	if !ok {
		return false
	}
	return closeErr.Code >= 4000 && closeErr.Code < 4100
}

func (t *WSTransport) reconnectLoop(attempt int) {
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		if attempt >= t.cfg.MaxReconnectAttempts {
			t.fail(errors.New(errors.ConnectionFatal, "transport.reconnectLoop", "max_reconnect_attempts exceeded"))
			return
		}

		delay := backoffDelay(attempt, t.cfg.ReconnectBaseDelay(), t.cfg.MaxReconnectDelay())
		time.Sleep(delay)

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.attempt = attempt + 1
		t.mu.Unlock()

		conn, err := t.dial()
		if err != nil {
			attempt++
			t.err.Publish(ErrorEvent{Err: err, Fatal: false})
			continue
		}
		t.onConnected(conn)
		return
	}
}

func (t *WSTransport) fail(err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	from := t.state
	t.state = StatusError
	t.mu.Unlock()
	t.emitStatus(from, StatusError)
	t.err.Publish(ErrorEvent{Err: err, Fatal: true})
}

// Close tears the connection down permanently; no further reconnect
// attempts are made.
func (t *WSTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	conn := t.conn
	done := t.runDone
	from := t.state
	t.state = StatusIdle
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
	}
	t.emitStatus(from, StatusIdle)
}

func (t *WSTransport) emitStatus(from, to Status) {
	t.status.Publish(StatusEvent{From: from, To: to})
}
