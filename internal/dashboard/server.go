// Package dashboard provides a real-time WebSocket feed of content sync
// activity plus a small JSON API for the administrative operations.
//
// The server broadcasts article writes, completed syncs and schema
// migrations to WebSocket subscribers. When an admin service is
// installed it also serves:
//
//	POST /api/sync     {"slug": "..."}                   full or targeted sync
//	GET  /api/status                                     schema version and counts
//	POST /api/migrate  {"force": bool, "skip_import": bool}
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/inkpot/internal/admin"
)

// MessageType tags each event on the feed.
type MessageType string

const (
	// MessageTypeArticleUpdate follows a single article write or removal
	MessageTypeArticleUpdate MessageType = "article_update"

	// MessageTypeSyncComplete closes out a full sync
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeMigration reports a migration attempt
	MessageTypeMigration MessageType = "migration"

	// MessageTypeStats carries running activity counters
	MessageTypeStats MessageType = "stats"
)

// Message is one event on the feed, encoded as JSON.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Server serves the event feed and, optionally, the admin API.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	// Event feed subscribers
	subs   map[*websocket.Conn]struct{}
	subsMu sync.RWMutex

	// Pending messages, drained by fanOut
	broadcast chan Message

	// Optional collaborators, installed before Start
	admin *admin.Service
	stats func() StatsData

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config configures a Server.
type Config struct {
	// Empty binds every interface
	Host string

	// 0 picks a free port
	Port int

	Logger *log.Logger
}

// DefaultConfig listens on :8080.
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.Default(),
	}
}

func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		subs:      make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// SetAdmin enables the /api routes. Call it before Start.
func (s *Server) SetAdmin(svc *admin.Service) {
	s.admin = svc
}

// Start listens and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.admin != nil {
		mux.HandleFunc("POST /api/sync", s.handleSync)
		mux.HandleFunc("GET /api/status", s.handleStatus)
		mux.HandleFunc("POST /api/migrate", s.handleMigrate)
	}
	mux.HandleFunc("GET /{$}", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	s.wg.Add(1)
	go s.fanOut()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop closes every subscriber and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.subsMu.Lock()
	for conn := range s.subs {
		_ = conn.Close(websocket.StatusGoingAway, "inkpot dashboard shutting down")
	}
	clear(s.subs)
	s.subsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast queues msg for every subscriber. It never blocks; msg is
// dropped when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// fanOut delivers queued messages to every subscriber. A subscriber
// whose write fails is dropped.
func (s *Server) fanOut() {
	defer s.wg.Done()

	for {
		var msg Message
		select {
		case <-s.ctx.Done():
			return
		case msg = <-s.broadcast:
		}

		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			s.logger.Printf("Failed to encode %s message: %v", msg.Type, err)
			continue
		}

		for _, conn := range s.subscribers() {
			if err := s.send(conn, payload); err != nil {
				s.logger.Printf("Dropping subscriber after failed %s write: %v", msg.Type, err)
				s.unsubscribe(conn)
			}
		}
	}
}

// subscribers snapshots the registry so writes happen without the lock.
func (s *Server) subscribers() []*websocket.Conn {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(s.subs))
	for conn := range s.subs {
		conns = append(conns, conn)
	}
	return conns
}

func (s *Server) send(conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// handleWebSocket subscribes the caller to the event feed. The first
// message is a stats snapshot.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	n := s.subscribe(conn)
	s.logger.Printf("Subscriber joined from %s (%d connected)", r.RemoteAddr, n)

	hello := Message{Type: MessageTypeStats, Timestamp: time.Now()}
	if s.stats != nil {
		hello.Data, _ = json.Marshal(s.stats())
	}
	if payload, err := json.Marshal(hello); err == nil {
		_ = s.send(conn, payload)
	}

	go s.drainReads(conn)
}

// drainReads discards client frames until the connection closes; the
// feed is one-way.
func (s *Server) drainReads(conn *websocket.Conn) {
	defer s.unsubscribe(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) subscribe(conn *websocket.Conn) int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs[conn] = struct{}{}
	return len(s.subs)
}

func (s *Server) unsubscribe(conn *websocket.Conn) {
	s.subsMu.Lock()
	_, ok := s.subs[conn]
	delete(s.subs, conn)
	n := len(s.subs)
	s.subsMu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("Subscriber left (%d connected)", n)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"subscribers": s.ClientCount(),
	})
}

type syncRequest struct {
	Slug string `json:"slug"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, admin.SyncResponse{Message: err.Error(), Errors: []string{}})
		return
	}
	if req.Slug == "" {
		req.Slug = r.URL.Query().Get("slug")
	}

	resp := s.admin.Sync(r.Context(), req.Slug)
	writeJSON(w, statusFor(resp.Success), resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := s.admin.Status(r.Context())
	code := http.StatusOK
	if !resp.Success {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req admin.MigrateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}

	res := s.admin.Migrate(r.Context(), req)
	writeJSON(w, statusFor(res.Success), res)
}

// decodeBody reads an optional JSON body. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %w", err)
}

func statusFor(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var rootPage = template.Must(template.New("root").Parse(`<!DOCTYPE html>
<html>
<head><title>inkpot</title></head>
<body>
  <h1>inkpot</h1>
  <p>Event feed: <code>ws://{{.Host}}/ws</code></p>
  <p><a href="/health">/health</a>{{if .Admin}} &middot; <a href="/api/status">/api/status</a>{{end}}</p>
</body>
</html>
`))

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = rootPage.Execute(w, struct {
		Host  string
		Admin bool
	}{r.Host, s.admin != nil})
}

// GetAddr reports the bound address once started.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount reports the number of feed subscribers.
func (s *Server) ClientCount() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs)
}
