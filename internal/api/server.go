// Package api serves the automation endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/outreach/internal/automation"
	"github.com/sells-group/outreach/internal/model"
)

// maxBodyBytes caps request bodies; every request body is a single id.
const maxBodyBytes = 64 << 10

// Automation is the orchestrator surface the handlers call.
type Automation interface {
	StartBatch(ctx context.Context, userID string) (*automation.BatchResult, error)
	StartOne(ctx context.Context, leadID string) error
	GetProgress(ctx context.Context, batchID string) (*model.BatchProgress, error)
}

// LeadReader loads a lead for the polling endpoint.
type LeadReader interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
}

// Options configures the router.
type Options struct {
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

type handler struct {
	auto  Automation
	leads LeadReader
}

// NewRouter builds the HTTP handler.
func NewRouter(auto Automation, leads LeadReader, opts Options) http.Handler {
	h := &handler{auto: auto, leads: leads}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/automation", func(r chi.Router) {
		r.Use(newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Handler)
		r.Use(RequireAuth([]byte(opts.JWTSecret)))

		r.Post("/batch", h.startBatch)
		r.Post("/start", h.startOne)
		r.Get("/progress", h.progress)
		r.Get("/leads/{leadId}", h.lead)
	})

	return r
}

type batchRequest struct {
	UserID string `json:"userId"`
}

type startRequest struct {
	LeadID string `json:"leadId"`
}

func (h *handler) startBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}

	// A blank user id falls through to the orchestrator's validation.
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		if caller, _ := UserID(r.Context()); userID != caller {
			writeError(w, http.StatusForbidden, CodeForbidden, "cannot start a batch for another user")
			return
		}
	}

	res, err := h.auto.StartBatch(r.Context(), req.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	status := http.StatusAccepted
	if res.Accepted == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *handler) startOne(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}

	if leadID := strings.TrimSpace(req.LeadID); leadID != "" {
		lead, err := h.leads.GetLead(r.Context(), leadID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if caller, _ := UserID(r.Context()); lead.UserID != caller {
			writeError(w, http.StatusForbidden, CodeForbidden, "lead belongs to another user")
			return
		}
	}

	if err := h.auto.StartOne(r.Context(), req.LeadID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "processing started",
		"leadId":  strings.TrimSpace(req.LeadID),
	})
}

func (h *handler) progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.auto.GetProgress(r.Context(), r.URL.Query().Get("batchId"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if user, _ := UserID(r.Context()); p.UserID != "" && p.UserID != user {
		writeError(w, http.StatusForbidden, CodeForbidden, "batch belongs to another user")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) lead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.GetLead(r.Context(), chi.URLParam(r, "leadId"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if user, _ := UserID(r.Context()); lead.UserID != user {
		writeError(w, http.StatusForbidden, CodeForbidden, "lead belongs to another user")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "request body is required")
		return false
	}
	writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
	return false
}
