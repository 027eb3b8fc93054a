package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloudship/deploy-gateway/internal/models"
	"github.com/cloudship/deploy-gateway/internal/provider"
	"github.com/cloudship/deploy-gateway/internal/service"
	"github.com/cloudship/deploy-gateway/internal/stream"
	"github.com/cloudship/deploy-gateway/pkg/logger"
)

// Handlers contains HTTP handler functions
type Handlers struct {
	service *service.Service
	logger  *logger.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *service.Service, log *logger.Logger) *Handlers {
	return &Handlers{service: svc, logger: log}
}

// Health handles health check requests
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// CreateDeployment handles POST /v1/deployments
func (h *Handlers) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	var req models.DeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid deployment request body", "error", err)
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	handle, err := h.service.Dispatch(r.Context(), req)
	if err != nil {
		h.handleDispatchError(w, r, err)
		return
	}

	log.Info("deployment triggered", "run_id", handle.RunID, "user_id", handle.UserID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Deployment triggered",
		"runId":   handle.RunID,
	})
}

// handleDispatchError maps dispatch failures to HTTP responses. Upstream
// dispatch rejections forward the upstream status code; everything else is a
// 500, including failure to discover a run id after a successful dispatch.
func (h *Handlers) handleDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var dispatchErr *provider.DispatchError

	switch {
	case errors.Is(err, service.ErrUserIDRequired):
		respondError(w, r, http.StatusBadRequest, "userId is required")
	case errors.As(err, &dispatchErr):
		respondError(w, r, dispatchErr.StatusCode, "Deployment failed")
	default:
		respondError(w, r, http.StatusInternalServerError, err.Error())
	}
}

// StreamDeployment handles GET /v1/deployments/stream?runId=
//
// The response is a persistent text/event-stream carrying status, log,
// outputs, done and error events. It self-closes after done or error, after
// the poll attempt ceiling, or when the client aborts the request.
func (h *Handlers) StreamDeployment(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	runID := r.URL.Query().Get("runId")
	if runID == "" {
		http.Error(w, "runId is required", http.StatusBadRequest)
		return
	}

	if !h.service.HasCredentials() {
		log.Error("stream rejected: provider token not configured")
		http.Error(w, "GitHub token not configured", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sink, err := stream.NewSSESink(w, log)
	if err != nil {
		log.Error("streaming not supported by response writer")
		respondError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	log.Info("starting deployment stream", "run_id", runID)
	term := h.service.StreamRun(r.Context(), runID, sink)
	log.Info("deployment stream closed", "run_id", runID, "terminal", term)
}

// GetRun handles GET /v1/runs/{run_id}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)
	runID := chi.URLParam(r, "run_id")

	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			respondError(w, r, http.StatusNotFound, "run not found")
			return
		}
		log.Error("get run failed", "run_id", runID, "error", err)
		respondError(w, r, http.StatusBadGateway, "provider error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"run": run})
}

// ListRuns handles GET /v1/runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 100 {
				limit = 100
			}
		}
	}

	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		log.Error("list runs failed", "error", err)
		respondError(w, r, http.StatusBadGateway, "provider error")
		return
	}

	runs = FilterRuns(runs, r.URL.Query().Get("status"))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": runs})
}

// respondError writes a flat JSON error response, the shape the browser UI
// consumes
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	log := logger.FromContext(r.Context(), nil)
	requestID := GetRequestID(r.Context())

	if log != nil {
		log.Warn("returning error response",
			"status", status,
			"message", message)
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
