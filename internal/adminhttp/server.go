// Package adminhttp is the minimal operational HTTP surface: health and
// Prometheus metrics only, no CRUD, no auth, no public API. The health
// handler reports a status/checks/uptime JSON response, checking this
// domain's dependencies (database, Redis notification bus).
package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/database"
	"github.com/lumenprima/mediaplane/internal/metrics"
)

// HealthResponse is the /healthz JSON body.
type HealthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// HealthHandler reports liveness of the control plane's hard
// dependencies: Postgres and Redis.
type HealthHandler struct {
	db        *database.DB
	redis     *redis.Client
	startTime time.Time
}

func NewHealthHandler(db *database.DB, redisClient *redis.Client, startTime time.Time) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// NewMux builds the admin HTTP surface: /healthz and /metrics only.
func NewMux(health *HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", metrics.InstrumentHandler("/healthz", health))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Server wraps an http.Server with a graceful-shutdown shape suited to
// an admin listener that must drain in-flight scrapes before exiting.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

func NewServer(addr string, mux *http.ServeMux, log zerolog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log.With().Str("component", "adminhttp").Logger(),
	}
}

// Start runs the listener in the background. Errors other than a clean
// shutdown are logged, not fatal — the control plane's real work runs in
// the queue router and beat scheduler, not this surface.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("adminhttp: listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("adminhttp: listener failed")
		}
	}()
}

// Stop gracefully shuts down within the given context's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
