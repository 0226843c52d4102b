package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lawdigitaltwin/tourismlevy/internal/assessment"
	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/repository"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
	"github.com/lawdigitaltwin/tourismlevy/internal/worker"
)

const maxBodyBytes = 1 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	levy     *levy.Service
	assessor *assessment.Assessor
	engine   *rules.Engine
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	version  string

	// AssessmentTTL is how long finished assessments stay in the cache.
	AssessmentTTL time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(svc *levy.Service, engine *rules.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		levy:          svc,
		assessor:      assessment.NewAssessor(svc, engine),
		engine:        engine,
		repo:          repo,
		cache:         cache,
		bus:           bus,
		version:       version,
		AssessmentTTL: time.Hour,
	}
}

// ComputeRequest is the body of POST /levy/compute. Taxpayer is echoed back.
type ComputeRequest struct {
	Taxpayer string `json:"taxpayer,omitempty"`
	domain.ComputeRequest
}

// LevyResponse is returned by the synchronous levy endpoints.
type LevyResponse struct {
	AssessmentID string `json:"assessment_id"`
	Taxpayer     string `json:"taxpayer,omitempty"`
	domain.LevyResult
	MinimumLevy float64  `json:"minimum_levy"`
	Notes       []string `json:"notes,omitempty"`
	Metadata    struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Calculate handles POST /levy/calculate: municipality and activity are
// resolved to class and group before the levy is computed.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.LevyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.MunicipalityName = strings.TrimSpace(req.MunicipalityName)
	req.BusinessActivity = strings.TrimSpace(req.BusinessActivity)

	a, err := h.assessor.Assess(ctx, "", GetTraceID(ctx), req)
	h.respond(ctx, w, a, err, "", start)
}

// Compute handles POST /levy/compute and the original tool endpoint, where
// class and group are supplied by the caller.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req ComputeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.MunicipalityClass = domain.MunicipalityClass(strings.TrimSpace(string(req.MunicipalityClass)))

	a, err := h.assessor.AssessCompute(ctx, "", GetTraceID(ctx), req.ComputeRequest)
	h.respond(ctx, w, a, err, req.Taxpayer, start)
}

// respond stores and announces a synchronous assessment, then writes the
// levy or the error.
func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, a *domain.Assessment, err error, taxpayer string, start time.Time) {
	h.store(ctx, a)
	h.publish(ctx, a)

	if err != nil {
		writeError(w, err)
		return
	}

	resp := LevyResponse{
		AssessmentID: a.ID,
		Taxpayer:     taxpayer,
		LevyResult:   *a.Result,
		MinimumLevy:  a.MinimumLevy,
		Notes:        a.Notes(),
	}
	resp.Metadata.TraceID = a.Metadata.TraceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// store persists and caches a. Failures are logged only.
func (h *Handler) store(ctx context.Context, a *domain.Assessment) {
	if h.repo != nil {
		if err := h.repo.SaveAssessment(ctx, a); err != nil {
			slog.Error("failed to save assessment", "id", a.ID, "error", err)
		}
	}
	if h.cache != nil && a.Status != domain.StatusPending {
		if err := h.cache.SetAssessment(ctx, a, h.AssessmentTTL); err != nil {
			slog.Warn("failed to cache assessment", "id", a.ID, "error", err)
		}
	}
}

func (h *Handler) publish(ctx context.Context, a *domain.Assessment) {
	if h.bus == nil {
		return
	}
	topic := domain.TopicLevyCalculated
	if a.Status == domain.StatusRejected {
		topic = domain.TopicLevyRejected
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish assessment", "id", a.ID, "topic", topic, "error", err)
	}
}

// SubmitRequest handles POST /levy/requests. The request is queued for the
// worker and a pending assessment is returned.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req domain.LevyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.MunicipalityName = strings.TrimSpace(req.MunicipalityName)
	req.BusinessActivity = strings.TrimSpace(req.BusinessActivity)

	if err := levy.ValidateRevenue(req.RevenueTwoYearsAgo); err != nil {
		writeError(w, err)
		return
	}

	traceID := GetTraceID(ctx)
	pending := h.assessor.Builder().Pending(uuid.New().String(), req, traceID)

	// stored before publishing so the worker's result overwrites it
	h.store(ctx, pending)

	payload, err := json.Marshal(worker.RequestMessage{
		AssessmentID: pending.ID,
		TraceID:      traceID,
		LevyRequest:  req,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.bus.Publish(ctx, domain.TopicLevyRequested, payload); err != nil {
		slog.Error("failed to publish levy request", "id", pending.ID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue levy request",
		})
		return
	}

	w.Header().Set("Location", "/assessments/"+pending.ID)
	writeJSON(w, http.StatusAccepted, pending)
}

// GetAssessment retrieves an assessment by ID, cache first.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if h.cache != nil {
		a, err := h.cache.GetAssessment(ctx, id)
		if err != nil {
			slog.Warn("cache read failed", "id", id, "error", err)
		}
		if a != nil {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "assessment not found",
			})
			return
		}
		writeError(w, err)
		return
	}

	if h.cache != nil && a.Status != domain.StatusPending {
		if err := h.cache.SetAssessment(ctx, a, h.AssessmentTTL); err != nil {
			slog.Warn("failed to cache assessment", "id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, a)
}

// GetMunicipality returns the class of a municipality.
func (h *Handler) GetMunicipality(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	class, err := h.levy.MunicipalityClass(name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"municipality":      name,
		"municipalityClass": class.String(),
	})
}

// GetActivity returns the contribution group of an activity per class.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.levy.Activity(pathParam(r, "label"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// GetRates returns the rate and minimum schedules with the revenue cap.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	ref, err := h.levy.Reference()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"max_revenue_cap": ref.Schedule.MaxRevenueCap(),
		"schedules":       ref.Schedule.Schedules(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(ctx); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready reports whether reference data is loaded.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.levy.Reference(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// pathParam returns a decoded URL parameter. Names carry spaces and umlauts.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	return strings.TrimSpace(v)
}

// decodeBody decodes the JSON body into dst and answers 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return false
	}
	return true
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, rules.ErrRuleRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, levy.ErrNoReference):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
