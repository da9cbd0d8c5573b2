// Package gateway is the HTTP/WebSocket front door: it upgrades
// connections, authenticates the bearer token, routes RPC calls to the
// domain components (registry, spawner, scheduler, artifacts,
// notifications), and fans live notifications out to every connection
// open for a given user.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/svarun115/assistant-gateway/internal/artifacts"
	"github.com/svarun115/assistant-gateway/internal/config"
	"github.com/svarun115/assistant-gateway/internal/notify"
	"github.com/svarun115/assistant-gateway/internal/registry"
	"github.com/svarun115/assistant-gateway/internal/scheduler"
	"github.com/svarun115/assistant-gateway/internal/spawner"
	"github.com/svarun115/assistant-gateway/pkg/protocol"
)

// Server is the gateway's WebSocket/HTTP front door.
type Server struct {
	cfg *config.Config

	resolver  *registry.Resolver
	spawner   *spawner.Spawner
	scheduler *scheduler.Scheduler
	artifacts *artifacts.Store
	notifier  *notify.Queue

	router      *MethodRouter
	upgrader    websocket.Upgrader
	rateLimiter *RateLimiter

	clients map[string]*Client
	mu      sync.RWMutex

	httpServer *http.Server
	mux        *http.ServeMux
}

func NewServer(cfg *config.Config, resolver *registry.Resolver, sp *spawner.Spawner, sch *scheduler.Scheduler, arts *artifacts.Store, notifier *notify.Queue) *Server {
	s := &Server{
		cfg:       cfg,
		resolver:  resolver,
		spawner:   sp,
		scheduler: sch,
		artifacts: arts,
		notifier:  notifier,
		clients:   make(map[string]*Client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.rateLimiter = NewRateLimiter(cfg.Gateway.RateLimitRPM, 20)
	s.router = NewMethodRouter(s)
	return s
}

// checkOrigin validates the WebSocket handshake's Origin header
// against the configured whitelist. No configured origins, or no
// Origin header at all (non-browser clients), allows the connection.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("gateway.cors_rejected", "origin", origin)
	return false
}

func (s *Server) authenticate(r *http.Request) bool {
	if s.cfg.Gateway.Token == "" {
		return true
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return got == s.cfg.Gateway.Token
}

// BuildMux creates and caches the HTTP mux with every route
// registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.mux = mux
	return mux
}

// Start begins listening for WebSocket and HTTP connections, blocking
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()
	s.httpServer = &http.Server{Addr: s.cfg.Gateway.ListenAddr, Handler: mux}

	slog.Info("gateway.starting", "addr", s.cfg.Gateway.ListenAddr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: serve: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}
	callerProfile := r.URL.Query().Get("caller_profile")
	if callerProfile == "" {
		callerProfile = "personal"
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("gateway.ws_upgrade_failed", "error", err)
		return
	}

	client := NewClient(conn, userID, callerProfile, s)
	s.registerClient(client)
	defer func() {
		s.unregisterClient(client)
		client.Close()
	}()

	s.pushUnread(r.Context(), client)
	client.Run(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","protocol":%d}`, protocol.ProtocolVersion)
}

// pushUnread delivers any notifications a user accrued while
// disconnected, then marks them read, mirroring the catch-up behavior
// the Notification Queue's durable-write-before-fan-out design exists
// to support.
func (s *Server) pushUnread(ctx context.Context, c *Client) {
	unread, err := s.notifier.GetUnread(ctx, c.userID, 20)
	if err != nil {
		slog.Warn("gateway.unread_fetch_failed", "user", c.userID, "error", err)
		return
	}
	if len(unread) == 0 {
		return
	}

	ids := make([]string, 0, len(unread))
	for _, n := range unread {
		frame := protocol.NewNotificationFrame(n.ID, n.FromAgent, n.Message, n.Priority, n.ArtifactID)
		_ = c.Send(frame)
		ids = append(ids, n.ID)
	}
	if _, err := s.notifier.MarkRead(ctx, ids); err != nil {
		slog.Warn("gateway.mark_read_failed", "user", c.userID, "error", err)
	}
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
	s.notifier.Register(c.userID, c)
	slog.Info("gateway.client_connected", "id", c.id, "user", c.userID)
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.id)
	s.notifier.Unregister(c.userID, c)
	slog.Info("gateway.client_disconnected", "id", c.id, "user", c.userID)
}

// BroadcastEvent sends an event to every connected client, regardless
// of user — used for operator-wide signals like an imminent shutdown.
func (s *Server) BroadcastEvent(event protocol.EventFrame) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.SendEvent(event)
	}
}
