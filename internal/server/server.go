// Package server exposes duelsync over HTTP: the observer websocket, the
// ledger and social webhooks, the read-only REST API and /healthz.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/broadcast"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/challenge"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/reconcile"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// DefaultObserverBuffer is the per-connection outbound queue length.
const DefaultObserverBuffer = 64

// maxWebhookBytes caps a webhook request body.
const maxWebhookBytes = 5 << 20

// Ingester reconciles ledger events.
type Ingester interface {
	Ingest(ctx context.Context, ev duel.LedgerEvent) (reconcile.Outcome, error)
}

// PostHandler consumes social posts and lists pending challenges.
type PostHandler interface {
	HandlePost(ctx context.Context, post duel.Post) (challenge.Result, error)
	Pending() []duel.Challenge
}

// DuelReader is the read side of the state store.
type DuelReader interface {
	Get(id string) (*duel.State, bool)
	List() []*duel.State
}

// Hub manages observer connections and subscriptions.
type Hub interface {
	Connect(obs broadcast.Observer)
	Subscribe(obs broadcast.Observer, duelID string)
	Unsubscribe(obs broadcast.Observer, duelID string)
	Disconnect(observerID string)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the server to the rest of the service.
type Config struct {
	Addr     string
	Duels    DuelReader
	Hub      Hub
	Ingester Ingester
	Posts    PostHandler

	// Optional. Redis is nil when running without Redis.
	Redis          Pinger
	ObserverBuffer int
}

// Server is the duelsync HTTP server.
type Server struct {
	cfg      Config
	server   *http.Server
	listener net.Listener
}

// New creates a server. Call Start to begin listening.
func New(cfg Config) *Server {
	if cfg.ObserverBuffer < 1 {
		cfg.ObserverBuffer = DefaultObserverBuffer
	}
	return &Server{cfg: cfg}
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthCheckHandler)
	mux.Handle("/ws", s.wsHandler())
	mux.HandleFunc("/webhooks/ledger", s.ledgerWebhookHandler)
	mux.HandleFunc("/webhooks/social", s.socialWebhookHandler)
	mux.HandleFunc("/api/duels", s.listDuelsHandler)
	mux.HandleFunc("/api/duels/{id}", s.getDuelHandler)
	mux.HandleFunc("/api/pending", s.pendingHandler)
	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("[Server] HTTP server error: %v", err)
		}
	}()

	log.Printf("[Server] Listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
// Hijacked websocket connections are not tracked by http.Server and close
// when their reader sees the listener go away or the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ErrorResponse is the JSON body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
