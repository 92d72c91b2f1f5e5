// Package httpapi mounts the cache's three HTTP endpoints on a chi
// router: POST /query, GET /health, GET /stats.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/micic-mihajlo/semantic-cache/config"
	"github.com/micic-mihajlo/semantic-cache/internal/breaker"
	"github.com/micic-mihajlo/semantic-cache/internal/metrics"
	"github.com/micic-mihajlo/semantic-cache/internal/pipeline"
	gwmw "github.com/micic-mihajlo/semantic-cache/middleware"
)

// NewRouter builds the full middleware chain and route table. storeBreaker
// and backendBreaker are surfaced on /stats so operators can see circuit
// state without a separate admin endpoint.
func NewRouter(cfg *config.Config, log zerolog.Logger, pl *pipeline.Pipeline, reg *metrics.Registry, storeBreaker, backendBreaker *breaker.Breaker) http.Handler {
	r := chi.NewRouter()

	r.Use(gwmw.CORSMiddleware([]string{"*"}))
	r.Use(gwmw.SecurityHeadersMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))
	r.Use(maxBodySize(cfg.MaxBodyBytes))
	r.Use(gwmw.NewTimeoutMiddleware(log, cfg).Handler)

	r.Get("/health", handleHealth)
	r.Get("/stats", handleStats(reg, storeBreaker, backendBreaker))
	r.Post("/query", handleQuery(pl, log))

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			log.Info().
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
		maxBytes = 64 * 1024
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStats(reg *metrics.Registry, storeBreaker, backendBreaker *breaker.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"metrics": reg.Snapshot(),
			"breakers": map[string]breaker.Status{
				"store":   storeBreaker.Status(),
				"backend": backendBreaker.Status(),
			},
		})
	}
}

type queryRequest struct {
	Query        string `json:"query"`
	ForceRefresh bool   `json:"forceRefresh"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func handleQuery(pl *pipeline.Pipeline, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "malformed request body"})
			return
		}

		result, err := pl.Process(r.Context(), req.Query, req.ForceRefresh)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var validationErr *pipeline.ValidationError
	var rateLimitErr *pipeline.RateLimitedError
	var backendErr *pipeline.BackendUnavailableError
	var circuitErr *pipeline.CircuitOpenError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validationErr.Error()})
	case errors.As(err, &rateLimitErr):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: rateLimitErr.Error()})
	case errors.As(err, &backendErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: backendErr.Error()})
	case errors.As(err, &circuitErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: circuitErr.Error()})
	default:
		log.Error().Err(err).Msg("unhandled pipeline error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
