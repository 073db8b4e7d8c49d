package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks the liveness of one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	startedAt time.Time
	deps      map[string]Pinger
}

// NewHealthHandler creates a HealthHandler over the named dependencies.
// A nil Pinger entry is skipped, so optional dependencies can be wired
// unconditionally.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now().UTC(),
		deps:      deps,
	}
}

// HealthCheck reports service status and per-dependency reachability.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"uptime": time.Since(h.startedAt).String(),
		"checks": checks,
	})
}
