package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sourcegraph/conc"

	"github.com/GriffinCanCode/snapnotify/internal/capture"
	"github.com/GriffinCanCode/snapnotify/internal/orchestrator"
	"github.com/GriffinCanCode/snapnotify/internal/trace"
)

// StatusProvider reports the capture pipeline state.
type StatusProvider interface {
	Status() orchestrator.Status
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type ScreenshotMessage struct {
	Type string    `json:"type"`
	Path string    `json:"path"`
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

type StatusMessage struct {
	Type   string              `json:"type"`
	Status orchestrator.Status `json:"status"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server pushes capture events to WebSocket clients and serves status.
type Server struct {
	status StatusProvider
	mu     sync.RWMutex
	conns  map[*websocket.Conn]*rateLimiter
}

// New creates a new server.
func New(status StatusProvider) *Server {
	return &Server{
		status: status,
		conns:  make(map[*websocket.Conn]*rateLimiter),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Broadcast sends a capture event to every connected client. It has the
// capture.Handler signature so it can subscribe to the hub directly.
func (s *Server) Broadcast(ctx context.Context, ev capture.Event) error {
	msg := ScreenshotMessage{
		Type: "screenshot",
		Path: ev.Path,
		Name: filepath.Base(ev.Path),
		At:   time.Now(),
	}

	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	var wg conc.WaitGroup
	for _, c := range conns {
		wg.Go(func() {
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			defer cancel()
			if err := wsjson.Write(wctx, c, msg); err != nil {
				trace.Logger(ctx).Debug("websocket write failed, dropping client", "error", err)
				s.drop(c)
				_ = c.Close(websocket.StatusGoingAway, "write failed")
			}
		})
	}
	wg.Wait()
	return nil
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[*websocket.Conn]*rateLimiter)
	s.mu.Unlock()

	for c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (s *Server) drop(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	// Greet before registering so the status message always comes first.
	ctx := r.Context()
	log := trace.Logger(ctx)
	if err := wsjson.Write(ctx, conn, StatusMessage{Type: "status", Status: s.status.Status()}); err != nil {
		log.Debug("websocket greeting failed", "error", err)
		return
	}

	rl := &rateLimiter{}
	s.mu.Lock()
	s.conns[conn] = rl
	s.mu.Unlock()
	defer s.drop(conn)

	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		// Writes here can interleave with Broadcast; coder/websocket serializes them.
		switch base.Type {
		case "ping":
			_ = wsjson.Write(ctx, conn, PongMessage{Type: "pong"})
		case "status":
			_ = wsjson.Write(ctx, conn, StatusMessage{Type: "status", Status: s.status.Status()})
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Status()); err != nil {
		trace.Logger(r.Context()).Warn("encode status failed", "error", err)
	}
}
