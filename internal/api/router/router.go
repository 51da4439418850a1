package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/therapymatch/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/therapymatch/internal/http/middleware"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

// ReadinessCheck reports whether a backing dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Availability       *handlers.AvailabilityHandler
	Matches            *handlers.MatchesHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	// APIJWTSecret, when set, requires service tokens on /v1.
	APIJWTSecret       string
	// Readiness checks run on /ready, keyed by dependency name.
	Readiness          map[string]ReadinessCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readyHandler(cfg.Readiness))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimiter != nil {
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.APIJWTSecret != "" {
			v1.Use(httpmiddleware.ServiceJWT(cfg.APIJWTSecret))
		}
		if cfg.Availability != nil {
			v1.Get("/providers/{providerID}/slots", cfg.Availability.GetSlots)
			v1.Get("/providers/{providerID}/slots/check", cfg.Availability.CheckSlot)
		}
		if cfg.Matches != nil {
			v1.Post("/requesters/{requesterID}/matches", cfg.Matches.FindMatches)
			v1.Get("/requesters/{requesterID}/matches", cfg.Matches.ListMatches)
			v1.Get("/requesters/{requesterID}/match-runs", cfg.Matches.ListRuns)
		}
	})

	return r
}

func readyHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		state := "ready"
		if status != http.StatusOK {
			state = "degraded"
		}
		writeStatus(w, status, map[string]any{"status": state, "checks": results})
	}
}

func writeStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
