// Package testserver implements a minimal reference WS+HTTP server that
// speaks the same wire protocol internal/transport.WSTransport dials
// against. It exists only to exercise internal/transport and
// internal/orchestrator end-to-end in integration tests and in
// cmd/nmeshcli demo's --with-server flag — it is not a production
// signaling server (no persistence, no auth, no fan-out fairness beyond
// a per-workspace broadcast).
//
// Grounded on the teacher's internal/api + cmd/server/main.go: the same
// gin.New()+Logger()+Recovery() router assembly and the same
// net.Listen-then-http.Serve/Shutdown lifecycle, with the teacher's REST
// handlers swapped for one WS upgrade handler per spec.md §4.10's
// "/v1/sync/<workspace>?token=...&userId=...&sync_mode=..." contract.
package testserver

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"nmeshed/internal/wire"
)

// Server is an in-process reference implementation of the sync endpoint:
// every frame a client sends is relayed verbatim to every other client
// currently connected to the same workspace, and heartbeats are
// swallowed rather than relayed.
type Server struct {
	router   *gin.Engine
	upgrader websocket.Upgrader
	http     *http.Server
	listener net.Listener

	mu         sync.Mutex
	workspaces map[string]map[*client]struct{}
}

type client struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	workspace string
	userID    string
}

// New constructs a Server; it does not listen until Start is called
// (Start's addr may be "127.0.0.1:0" to bind an ephemeral port, the way
// tests want it).
func New() *Server {
	s := &Server{
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		workspaces: make(map[string]map[*client]struct{}),
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Logger(), Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/v1/sync/:workspace", s.handleSync)
	s.router = router

	return s
}

// Logger mirrors the teacher's api.Logger middleware.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[%s] %s %s | %d | %s",
			c.Request.Method, c.Request.URL.Path, c.ClientIP(),
			c.Writer.Status(), time.Since(start))
	}
}

// Recovery mirrors the teacher's api.Recovery middleware.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC recovered: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// Start binds a listener and serves in the background. It returns the
// ws:// URL clients should connect to (without the per-workspace path).
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("testserver: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.http = &http.Server{Handler: s.router}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("testserver: serve error: %v", err)
		}
	}()

	return "ws://" + ln.Addr().String(), nil
}

// Shutdown stops accepting new connections and waits up to the context's
// deadline for in-flight handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleSync(c *gin.Context) {
	workspace := c.Param("workspace")
	userID := c.Query("userId")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("testserver: upgrade failed: %v", err)
		return
	}

	cl := &client{conn: conn, workspace: workspace, userID: userID}
	s.join(cl)
	defer s.leave(cl)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if isHeartbeatFrame(data) {
			continue
		}
		s.broadcast(cl, data)
	}
}

func isHeartbeatFrame(data []byte) bool {
	if len(data) == 1 && data[0] == 0 {
		return true
	}
	router := wire.NewMessageRouter()
	msg, _, ok := router.Parse(data)
	return ok && msg.Type == wire.TypeHeartbeat
}

func (s *Server) join(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers, ok := s.workspaces[cl.workspace]
	if !ok {
		peers = make(map[*client]struct{})
		s.workspaces[cl.workspace] = peers
	}
	peers[cl] = struct{}{}
}

func (s *Server) leave(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if peers, ok := s.workspaces[cl.workspace]; ok {
		delete(peers, cl)
		if len(peers) == 0 {
			delete(s.workspaces, cl.workspace)
		}
	}
	cl.conn.Close()
}

// broadcast relays data to every other client in from's workspace. It
// never relays back to the sender.
func (s *Server) broadcast(from *client, data []byte) {
	s.mu.Lock()
	peers := s.workspaces[from.workspace]
	targets := make([]*client, 0, len(peers))
	for peer := range peers {
		if peer != from {
			targets = append(targets, peer)
		}
	}
	s.mu.Unlock()

	for _, peer := range targets {
		peer.writeMu.Lock()
		err := peer.conn.WriteMessage(websocket.BinaryMessage, data)
		peer.writeMu.Unlock()
		if err != nil {
			log.Printf("testserver: write to %s failed: %v", peer.userID, err)
		}
	}
}
