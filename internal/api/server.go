// Package api provides the HTTP server for Arcana.
// It exposes readings, entitlements, reward progress, the ledger, and the
// payment provider webhook.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcana-app/arcana/internal/app/billing"
	"github.com/arcana-app/arcana/internal/app/reading"
	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// AccountHeader carries the authenticated account id. Authentication itself
// happens upstream.
const AccountHeader = "X-Account-ID"

// Server is the Arcana HTTP API server.
type Server struct {
	readings       *reading.Service
	billing        *billing.Service
	db             *sqlite.DB
	metricsEnabled bool
	timeout        time.Duration
	engagement     *EngagementAPI // reward progress endpoints (nil disables them)
	rewardHub      *RewardHub     // live reward SSE feed (nil disables it)
}

// NewServer creates a new API server.
func NewServer(readings *reading.Service, billing *billing.Service, db *sqlite.DB) *Server {
	return &Server{readings: readings, billing: billing, db: db, timeout: time.Minute}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetTimeout bounds every request.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetEngagement sets the engagement API services.
func (s *Server) SetEngagement(e *EngagementAPI) { s.engagement = e }

// SetRewardHub sets the live reward SSE hub.
func (s *Server) SetRewardHub(h *RewardHub) { s.rewardHub = h }

// RewardHub returns the live reward hub (for broadcasting events).
func (s *Server) RewardHub() *RewardHub { return s.rewardHub }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if s.billing != nil {
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/spreads", s.handleSpreads)

		r.Group(func(r chi.Router) {
			r.Use(requireAccount)

			r.Post("/readings", s.handleCreateReading)
			r.Get("/readings", s.handleListReadings)
			r.Get("/readings/{id}", s.handleGetReading)
			r.Get("/entitlement", s.handleEntitlement)
			r.With(s.ensureAccount).Get("/ledger", s.handleLedger)

			if s.engagement != nil {
				r.Route("/engagement", func(r chi.Router) {
					r.Use(s.ensureAccount)
					r.Get("/streak", s.engagement.HandleStreak)
					r.Get("/achievements", s.engagement.HandleAchievements)
					r.Get("/challenges", s.engagement.HandleChallenges)
					r.Get("/golden", s.engagement.HandleGolden)
					r.Get("/summary", s.engagement.HandleSummary)
				})
			}

			if s.rewardHub != nil {
				r.Get("/rewards/live", s.rewardHub.HandleRewardsSSE)
			}
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// ─── Account Context ────────────────────────────────────────────────────────

type ctxKey int

const accountKey ctxKey = iota

// requireAccount rejects requests without an account id and stores it on
// the request context.
func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(AccountHeader)
		if id == "" {
			writeFailure(w, r, domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, id)))
	})
}

// ensureAccount creates the caller's account with its signup allowance on
// first touch, so progress views never see a missing account.
func (s *Server) ensureAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.readings.GetEntitlement(r.Context(), AccountID(r.Context())); err != nil {
			writeFailure(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccountID returns the account id stored by requireAccount.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(accountKey).(string)
	return id
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusPaymentRequired:
		return "insufficient_entitlement"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientEntitlement):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure reports err to the client. Internal errors are logged and
// hidden behind a generic message.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

// queryLimit parses ?limit=, clamped to [1, max].
func queryLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+AccountHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
