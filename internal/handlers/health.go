package handlers

import (
	"context"
	"net/http"
	"time"
)

// ReadinessCheck reports whether a downstream dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	startedAt time.Time
	checks    []ReadinessCheck
}

// NewHealthHandlers constructs probe handlers. Readiness checks are optional;
// with none registered /readyz always reports ready.
func NewHealthHandlers(checks ...ReadinessCheck) *HealthHandlers {
	return &HealthHandlers{
		startedAt: time.Now(),
		checks:    checks,
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz runs the registered dependency checks and reports readiness.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	for _, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "unavailable",
				"message": err.Error(),
			})
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ready"})
}
