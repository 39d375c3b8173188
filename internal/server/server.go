// ABOUTME: Visualizer server streaming analyser frames over WebSocket
// ABOUTME: Manages client connections, periodic frame broadcast, health, and mDNS
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harperreed/euphony-go/internal/discovery"
	"github.com/harperreed/euphony-go/internal/version"
	"github.com/harperreed/euphony-go/pkg/euphony"
)

const (
	// DefaultInterval is the frame broadcast period
	DefaultInterval = 50 * time.Millisecond

	// FrameMessageType tags analyser frames on the wire
	FrameMessageType = "analyser/frame"

	// HelloMessageType is the first message a client receives
	HelloMessageType = "server/hello"

	clientQueue   = 32
	writeDeadline = 10 * time.Second
	pingPeriod    = 30 * time.Second
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Interval   time.Duration
}

// FrameSource produces analyser frames. *euphony.Analyser satisfies it.
type FrameSource interface {
	Snapshot() euphony.Frame
}

// FrameMessage is one analyser frame as sent to clients
type FrameMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Amplitude float64   `json:"amplitude"`
	Signal    bool      `json:"signal"`
	Bands     []float64 `json:"bands"`
	Waveform  []float64 `json:"waveform"`
}

// HelloMessage announces the server and its sources
type HelloMessage struct {
	Type       string   `json:"type"`
	ServerID   string   `json:"server_id"`
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	IntervalMs int64    `json:"interval_ms"`
	Sources    []string `json:"sources"`
}

// Server streams analyser frames to connected clients
type Server struct {
	config   Config
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	sources   map[string]FrameSource
	sourcesMu sync.RWMutex

	mdnsManager *discovery.Manager

	addr   net.Addr
	addrMu sync.RWMutex

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is a connected visualizer
type Client struct {
	ID       string
	Conn     *websocket.Conn
	sendChan chan any
}

// New creates a new server instance
func New(config Config) *Server {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Name == "" {
		config.Name = version.Product
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local network visualizers only; every origin is accepted.
			CheckOrigin: func(r *http.Request) bool {
				if origin := r.Header.Get("Origin"); origin != "" {
					log.Printf("Accepting WebSocket origin %s", origin)
				}
				return true
			},
		},
		clients:  make(map[string]*Client),
		sources:  make(map[string]FrameSource),
		stopChan: make(chan struct{}),
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// Handler returns the HTTP handler serving /ws and /health
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ServerID returns the unique server ID
func (s *Server) ServerID() string {
	return s.serverID
}

// Register adds a frame source under id, replacing any previous one
func (s *Server) Register(id string, src FrameSource) {
	s.sourcesMu.Lock()
	defer s.sourcesMu.Unlock()
	s.sources[id] = src
}

// Unregister removes the frame source with id
func (s *Server) Unregister(id string) {
	s.sourcesMu.Lock()
	defer s.sourcesMu.Unlock()
	delete(s.sources, id)
}

// sourceIDs returns the registered source IDs in sorted order
func (s *Server) sourceIDs() []string {
	s.sourcesMu.RLock()
	defer s.sourcesMu.RUnlock()
	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Addr returns the listening address once Start is running
func (s *Server) Addr() net.Addr {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// Start listens, broadcasts frames, and blocks until ctx is done, Stop is
// called, or the HTTP server fails
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Port, err)
	}

	s.addrMu.Lock()
	s.addr = listener.Addr()
	s.addrMu.Unlock()
	port := listener.Addr().(*net.TCPAddr).Port

	log.Printf("Visualizer server %s listening on :%d", s.config.Name, port)

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Path:        "/ws",
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		}
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	var serverErr error
	select {
	case <-ctx.Done():
		log.Printf("Server context done, shutting down...")
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.Stop()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown.
	s.closeClients()

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// broadcastLoop sends every registered source's frame to every client once per interval
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Broadcast()
		}
	}
}

// Broadcast snapshots every source and queues the frames to all clients.
// Clients whose queue is full skip the frame.
func (s *Server) Broadcast() {
	frames := s.frames()
	if len(frames) == 0 {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, client := range s.clients {
		for _, frame := range frames {
			select {
			case client.sendChan <- frame:
			default:
			}
		}
	}
}

// frames snapshots every source in ID order
func (s *Server) frames() []FrameMessage {
	s.sourcesMu.RLock()
	defer s.sourcesMu.RUnlock()

	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	frames := make([]FrameMessage, 0, len(ids))
	for _, id := range ids {
		snap := s.sources[id].Snapshot()
		frames = append(frames, FrameMessage{
			Type:      FrameMessageType,
			ID:        id,
			Amplitude: snap.Amplitude,
			Signal:    snap.Signal,
			Bands:     nonNil(snap.Bands),
			Waveform:  nonNil(snap.Waveform),
		})
	}
	return frames
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

// handleHealth reports server status as JSON
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"server_id": s.serverID,
		"name":      s.config.Name,
		"version":   version.String(),
		"clients":   s.ClientCount(),
		"sources":   s.sourceIDs(),
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection registers a client, greets it, and reads until it disconnects
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	client := &Client{
		ID:       uuid.New().String(),
		Conn:     conn,
		sendChan: make(chan any, clientQueue),
	}

	// The queue is empty until the client is visible to Broadcast, so the
	// hello is always first and never blocks.
	client.sendChan <- HelloMessage{
		Type:       HelloMessageType,
		ServerID:   s.serverID,
		Name:       s.config.Name,
		Version:    version.String(),
		IntervalMs: s.config.Interval.Milliseconds(),
		Sources:    s.sourceIDs(),
	}

	s.clientsMu.Lock()
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.clientWriter(client)
	}()

	log.Printf("Client %s connected", client.ID)

	// Clients do not send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Client %s read error: %v", client.ID, err)
			}
			break
		}
	}

	s.removeClient(client)
	<-done
	log.Printf("Client %s disconnected", client.ID)
}

// removeClient unregisters a client and closes its queue once
func (s *Server) removeClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[client.ID]; ok {
		delete(s.clients, client.ID)
		close(client.sendChan)
	}
}

// closeClients drops every connection
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
}

// clientWriter sends queued messages and keepalive pings to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				client.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing message: %v", err)
				client.Conn.Close()
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				log.Printf("Ping failed for %s: %v", client.ID, err)
				client.Conn.Close()
				return
			}
		}
	}
}
