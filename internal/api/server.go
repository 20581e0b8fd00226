// Package api exposes the decision engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/engine"
	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/outcome"
	"github.com/complyops/decision-engine/internal/review"
	"github.com/complyops/decision-engine/internal/store"
)

// Server wires the engine's operations onto a chi router.
type Server struct {
	engine *engine.Engine
	store  store.Store
}

// NewServer creates an API server over one engine and its store.
func NewServer(eng *engine.Engine, st store.Store) *Server {
	return &Server{engine: eng, store: st}
}

// Router builds the HTTP handler with standard middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/decisions", s.handleProcess)
		r.Get("/decisions/{fileID}/sla", s.handleSlaStatus)
		r.Get("/decisions/{fileID}/audit", s.handleAuditTrail)
		r.Get("/sla/at-risk", s.handleAtRisk)
		r.Get("/reviews", s.handlePendingReviews)
		r.Post("/reviews/{caseID}/decision", s.handleReviewDecision)
	})

	return r
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var input engine.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeOutcome(w, s.engine.ProcessDecisionLogic(r.Context(), input))
}

func (s *Server) handleSlaStatus(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.GetSlaStatus(r.Context(), chi.URLParam(r, "fileID")))
}

func (s *Server) handleAtRisk(w http.ResponseWriter, r *http.Request) {
	var threshold time.Duration
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "threshold must be a positive duration")
			return
		}
		threshold = d
	}
	writeOutcome(w, s.engine.GetAtRiskCases(r.Context(), threshold))
}

func (s *Server) handlePendingReviews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeOutcome(w, s.engine.PendingReviews(r.Context(), limit))
}

func (s *Server) handleReviewDecision(w http.ResponseWriter, r *http.Request) {
	var req review.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CaseID = chi.URLParam(r, "caseID")
	writeOutcome(w, s.engine.SubmitReviewDecision(r.Context(), req))
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	events, err := s.store.ListAuditEvents(r.Context(), fileID)
	if err != nil {
		zap.L().Error("api: list audit events", zap.String("file_id", fileID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// writeOutcome maps the engine's result taxonomy onto HTTP statuses. The
// full outcome rides in the body either way, so clients see partial results
// and failure kinds without parsing status codes.
func writeOutcome[T any](w http.ResponseWriter, o outcome.Outcome[T]) {
	status := http.StatusOK
	switch {
	case o.Success():
	case o.IsCancelled():
		status = http.StatusServiceUnavailable
	case o.Kind == outcome.FailValidation:
		status = http.StatusBadRequest
	case o.Kind == outcome.FailNotFound:
		status = http.StatusNotFound
	case o.Kind == outcome.FailConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, o)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
