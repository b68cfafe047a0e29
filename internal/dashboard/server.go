// Package dashboard serves benchmark history over HTTP and pushes new runs
// and their verdicts to WebSocket clients as they are recorded.
//
// Routes:
//
//	/data.js             the published artifact, as GitHub Pages would serve it
//	/api/groups          group names with run counts
//	/api/groups/{name}   one group's runs
//	/metrics             Prometheus metrics, when configured
//	/health              liveness and client count
//	/ws                  live feed
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/benchtrail/benchtrail/internal/history"
	"github.com/benchtrail/benchtrail/internal/publish"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeRunAppended indicates a run was added to a group
	MessageTypeRunAppended MessageType = "run_appended"

	// MessageTypeVerdicts carries the regression check for a run
	MessageTypeVerdicts MessageType = "verdicts"

	// MessageTypeStats summarizes the history; sent on connect
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// RunAppendedData describes a recorded run.
type RunAppendedData struct {
	Group     string `json:"group"`
	Commit    string `json:"commit"`
	URL       string `json:"url,omitempty"`
	Date      int64  `json:"date"`
	Cases     int    `json:"cases"`
	Length    int    `json:"length"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// VerdictData is one case verdict.
type VerdictData struct {
	Name          string  `json:"name"`
	Verdict       string  `json:"verdict"`
	Factor        float64 `json:"factor,omitempty"`
	Fails         bool    `json:"fails,omitempty"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// VerdictsData is the regression check for one run.
type VerdictsData struct {
	Group         string        `json:"group"`
	Commit        string        `json:"commit"`
	Baseline      string        `json:"baseline"`
	HasRegression bool          `json:"has_regression"`
	ShouldFail    bool          `json:"should_fail"`
	Verdicts      []VerdictData `json:"verdicts"`
	Review        []string      `json:"review,omitempty"`
}

// GroupStats counts the runs of one group.
type GroupStats struct {
	Name       string `json:"name"`
	Runs       int    `json:"runs"`
	LastCommit string `json:"last_commit,omitempty"`
	LastDate   int64  `json:"last_date,omitempty"`
}

// StatsData summarizes the whole history.
type StatsData struct {
	LastUpdate int64        `json:"last_update"`
	Groups     []GroupStats `json:"groups"`
}

// Server manages WebSocket connections and serves history
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	store   *history.Store
	metrics http.Handler

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Host to bind (default: all interfaces)
	Host string

	// Port to listen on; 0 picks a free port
	Port int

	// Store is read for every history request.
	Store *history.Store

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer creates a new dashboard server
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		store:     config.Store,
		metrics:   config.Metrics,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Handler returns the HTTP routes without listening.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /data.js", s.handleDataJS)
	mux.HandleFunc("GET /api/groups", s.handleGroups)
	mux.HandleFunc("GET /api/groups/{name}", s.handleGroup)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

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

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

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

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Written outside the lock so a slow client cannot stall
			// registration.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	welcome := Message{Type: MessageTypeStats, Timestamp: time.Now()}
	if stats, err := s.stats(r.Context()); err != nil {
		s.logger.Printf("Warning: failed to load history for welcome: %v", err)
	} else if data, err := json.Marshal(stats); err == nil {
		welcome.Data = data
	}
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection open until the client goes away.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) stats(ctx context.Context) (*StatsData, error) {
	stats := &StatsData{Groups: []GroupStats{}}
	if s.store == nil {
		return stats, nil
	}
	doc, _, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	stats.LastUpdate = doc.LastUpdate
	for _, name := range doc.Names() {
		runs := doc.Runs(name)
		g := GroupStats{Name: name, Runs: len(runs)}
		if n := len(runs); n > 0 {
			g.LastCommit = runs[n-1].Commit.ID
			g.LastDate = runs[n-1].Date
		}
		stats.Groups = append(stats.Groups, g)
	}
	return stats, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleDataJS(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no history configured", http.StatusServiceUnavailable)
		return
	}
	doc, _, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	data, err := publish.Encode(doc)
	if err != nil {
		s.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no history configured", http.StatusServiceUnavailable)
		return
	}
	name := r.PathValue("name")
	doc, _, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	if !doc.Has(name) {
		http.Error(w, fmt.Sprintf("unknown group %q", name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name": name,
		"runs": doc.Runs(name),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>benchtrail</title>
</head>
<body>
    <h1>benchtrail dashboard</h1>
    <p>Artifact: <a href="/data.js">/data.js</a></p>
    <p>Groups: <a href="/api/groups">/api/groups</a></p>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Printf("Request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
