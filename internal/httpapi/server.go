package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/waymate/internal/directions"
	"github.com/example/waymate/internal/presence"
	"github.com/example/waymate/internal/routestore"
)

// TokenVerifier resolves a bearer-style session token to a user identity.
// Session issuance lives outside this service; this is only the boundary.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

var ErrInvalidToken = errors.New("invalid session token")

// StaticVerifier maps opaque tokens to user IDs, enough for local runs and
// tests.
type StaticVerifier map[string]string

func (v StaticVerifier) Verify(token string) (string, error) {
	if userID, ok := v[token]; ok {
		return userID, nil
	}
	return "", ErrInvalidToken
}

type Server struct {
	logger   *slog.Logger
	hub      *presence.Hub
	store    routestore.Store
	provider directions.Provider
	verifier TokenVerifier
	mux      *mux.Router
}

func New(logger *slog.Logger, hub *presence.Hub, store routestore.Store, provider directions.Provider, verifier TokenVerifier) *Server {
	s := &Server{
		logger:   logger,
		hub:      hub,
		store:    store,
		provider: provider,
		verifier: verifier,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/routes/custom", s.handleCustomRoutes).Methods("GET")
	s.mux.HandleFunc("/api/v1/directions", s.handleDirections).Methods("POST")
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// handleCustomRoutes serves the read-only custom-route collection. Clients
// fetch it once per routing session.
func (s *Server) handleCustomRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.store.ListCustomRoutes(r.Context())
	if err != nil {
		s.logger.Error("custom route listing failed", "error", err)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"routes": routes})
}

// handleDirections proxies a directions request to the provider so local
// clients share one egress path.
func (s *Server) handleDirections(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		http.Error(w, "no directions provider configured", http.StatusServiceUnavailable)
		return
	}
	var req directions.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.provider.Directions(r.Context(), req)
	if err != nil {
		s.logger.Warn("directions request failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{"status": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "OK", "routes": result.Routes})
}

var upgrader = websocket.Upgrader{}

// handleWS authenticates the token carried in the query string, upgrades the
// connection, and hands it to the presence hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := s.verifier.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.logger.Info("user connected", "user_id", userID)
	s.hub.Add(r.Context(), userID, conn)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
