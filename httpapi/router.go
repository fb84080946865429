package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	lsmw "github.com/launchsentinel/core/middleware"
)

// NewServer builds the chi router and mounts every route, following
// the same middleware ordering (CORS -> security headers -> request
// ID -> panic recovery -> request logger -> body size limit -> header
// normalization -> request timeout) the rest of this codebase uses
// for its HTTP surfaces. The admin route group additionally layers a
// rate limiter and a concurrency guard behind its auth check.
func NewServer(deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(lsmw.CORSMiddleware(deps.Config.CORSAllowedOrigins))
	r.Use(lsmw.SecurityHeadersMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(deps.Logger))
	r.Use(maxBodySize(deps.Config.MaxBodyBytes))
	r.Use(lsmw.NewHeaderNormalization(deps.Logger).Handler)
	r.Use(lsmw.NewTimeoutMiddleware(deps.Logger, deps.Config).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "launchsentinel"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": "launchsentinel"})
	})

	promCollectors := (*promCollectors)(nil)
	if deps.PromRegistry != nil {
		promCollectors = newPromCollectors(deps.PromRegistry)
		r.Get("/metrics/prom", promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.JSONHandler())
	}

	runsH := &runsHandler{ledger: deps.RunLedger}
	r.Get("/runs", runsH.list)
	r.Get("/runs/{id}", runsH.get)
	r.Get("/runs/{id}/events", runsH.events(deps.Bus))

	if deps.AdminEnabled() {
		adminAuth := lsmw.NewAdminAuthMiddleware(deps.Logger, "Authorization", deps.Config.AdminAPIKey)
		adminLimiter := lsmw.NewRateLimiter(deps.Logger, deps.Config.AdminRateLimitRPM > 0, deps.Config.AdminRateLimitRPM)
		adminConcurrency := lsmw.NewConcurrencyGuard(deps.Config.AdminMaxConcurrent, 2*time.Second, deps.Logger)
		adminH := &adminHandler{deps: deps, prom: promCollectors}
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(adminAuth.Handler)
			ar.Use(adminLimiter.Handler)
			ar.Use(adminConcurrency.Handler)
			ar.Post("/mode", adminH.setMode)
			ar.Post("/kill-switch/engage", adminH.engageKillSwitch)
			ar.Post("/kill-switch/disengage", adminH.disengageKillSwitch)
			ar.Post("/sessions", adminH.createSession)
			ar.Post("/sessions/{id}/revoke", adminH.revokeSession)
			ar.Post("/sessions/{id}/rotate", adminH.rotateSession)
		})
	}

	return &Server{deps: deps, handler: r, logger: deps.Logger.With().Str("component", "httpapi").Logger()}
}

// AdminEnabled reports whether the admin API should be mounted — it is
// refused entirely, not silently open, when no token is configured.
func (d Deps) AdminEnabled() bool {
	return d.Config != nil && d.Config.AdminAPIKey != ""
}

// ServeHTTP lets Server be used directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", chimw.GetReqID(r.Context())).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

func maxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 * 1024 * 1024
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func parseIntQuery(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
