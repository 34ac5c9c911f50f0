// Package gateway serves the browser game over websockets. Every connection
// gets its own session controller; the track catalog is shared.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/musiguessr/go/internal/game/events"
	"github.com/mcdev12/musiguessr/go/internal/game/search"
	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// APIFactory returns a backend client acting for the given bearer token,
// which may be empty.
type APIFactory func(token string) session.GameAPI

// Config holds configuration for the play gateway
type Config struct {
	ConnectionConfig ConnectionConfig
	AllowedOrigins   []string
	RoundSeconds     int
	SearchLimit      int
	FinishTimeout    time.Duration
	Clock            clockwork.Clock
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		AllowedOrigins:   []string{"*"},
		RoundSeconds:     session.DefaultRoundSeconds,
		SearchLimit:      search.DefaultLimit,
		FinishTimeout:    session.DefaultFinishTimeout,
	}
}

// Service wires the connection manager, the shared catalog and the HTTP routes.
type Service struct {
	config            Config
	connectionManager *ConnectionManager
	newAPI            APIFactory
	index             *search.Index
	publisher         events.Publisher
	metrics           Metrics
	metricsHandler    http.Handler
}

// NewService creates the gateway. metricsHandler may be nil to disable /metrics.
func NewService(config Config, newAPI APIFactory, index *search.Index, publisher events.Publisher, metrics Metrics, metricsHandler http.Handler) *Service {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	return &Service{
		config:            config,
		connectionManager: NewConnectionManager(config.ConnectionConfig, config.Clock, metrics),
		newAPI:            newAPI,
		index:             index,
		publisher:         publisher,
		metrics:           metrics,
		metricsHandler:    metricsHandler,
	}
}

// Start blocks until ctx is done, then drops every connection.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting play gateway service")
	<-ctx.Done()
	log.Info().Msg("play gateway service shutting down")
	return s.Stop()
}

func (s *Service) Stop() error {
	s.connectionManager.CloseAll()
	log.Info().Msg("play gateway service stopped")
	return nil
}

// Routes returns the gateway router.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws/play", s.HandlePlayConnection)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}
	return r
}

// Handler wraps the routes with CORS and h2c.
func (s *Service) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	return h2c.NewHandler(c.Handler(s.Routes()), &http2.Server{})
}

// NewHTTPServer builds the server for addr.
func (s *Service) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// HandlePlayConnection upgrades /ws/play?playlist_id=N or ?session_id=N.
func (s *Service) HandlePlayConnection(w http.ResponseWriter, r *http.Request) {
	req, err := parseStartRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token := bearerToken(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	deps := PlaySessionDeps{
		API:           s.newAPI(token),
		Index:         s.index,
		Clock:         s.config.Clock,
		RoundSeconds:  s.config.RoundSeconds,
		SearchLimit:   s.config.SearchLimit,
		FinishTimeout: s.config.FinishTimeout,
		Publisher:     s.publisher,
		Metrics:       s.metrics,
	}
	newPlay := func(id string, send SendFunc) *PlaySession {
		return NewPlaySession(id, deps, req, send)
	}

	// On failure the upgrader has already replied to the client.
	if err := s.connectionManager.UpgradeConnection(w, r, userID, newPlay); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to upgrade play connection")
	}
}

func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "play_gateway"
	stats["status"] = "running"
	stats["catalog_loaded"] = s.index.Loaded()
	stats["catalog_size"] = s.index.Len()
	return stats
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.GetStats()); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

func parseStartRequest(r *http.Request) (session.StartRequest, error) {
	var req session.StartRequest
	q := r.URL.Query()

	if raw := q.Get("session_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return req, errors.New("invalid session_id")
		}
		req.SessionID = &id
	}
	if raw := q.Get("playlist_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return req, errors.New("invalid playlist_id")
		}
		req.PlaylistID = &id
	}
	return req, nil
}

// OriginChecker accepts websocket upgrades from the allowed origins. "*"
// allows any origin, and requests without an Origin header are not browsers.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter since browsers cannot set headers on websocket requests.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
