package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"nim-chat/internal/contextutil"
)

// ModelLister lists the models an inference endpoint serves.
type ModelLister interface {
	ListModels(ctx context.Context, apiKey string) ([]string, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	models             ModelLister
	apiKey             string
	selectable         []string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. selectable is the model list
// offered in the UI; models missing from the endpoint's listing are reported.
func NewHealthHandler(models ModelLister, apiKey string, selectable []string) *HealthHandler {
	return &HealthHandler{
		models:             models,
		apiKey:             apiKey,
		selectable:         selectable,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP reports whether a credential is configured and the inference
// endpoint answers. Returns 200 OK if healthy, 503 Service Unavailable otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Create context with timeout for health checks
	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	unhealthy := false

	if h.apiKey != "" {
		checks["credential"] = "ok"
	} else {
		checks["credential"] = "missing"
		issues = append(issues, "credential_missing")
		unhealthy = true
	}

	listed, ok := h.checkEndpoint(checkCtx, logger)
	if ok {
		checks["inference_endpoint"] = "ok"
		for _, model := range h.selectable {
			if !slices.Contains(listed, model) {
				issues = append(issues, "model_not_listed:"+model)
			}
		}
	} else {
		checks["inference_endpoint"] = "error"
		issues = append(issues, "inference_endpoint_unavailable")
		unhealthy = true
	}

	// Determine overall status
	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case unhealthy:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case len(issues) > 0:
		status = "degraded"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}

// checkEndpoint lists the endpoint's models.
func (h *HealthHandler) checkEndpoint(ctx context.Context, logger *slog.Logger) ([]string, bool) {
	models, err := h.models.ListModels(ctx, h.apiKey)
	if err != nil {
		logger.WarnContext(ctx, "inference endpoint health check failed", "error", err)
		return nil, false
	}
	return models, true
}
