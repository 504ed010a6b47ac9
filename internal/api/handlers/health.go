package handlers

import (
	"context"
	"net/http"

	"github.com/nikhilbhutani/ragvault/internal/resilience"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type StatusReporter interface {
	Status() resilience.Status
}

// HealthHandler serves liveness and readiness. Nil dependencies are skipped.
type HealthHandler struct {
	db     Pinger
	redis  Pinger
	vector StatusReporter
}

func NewHealthHandler(db, redis Pinger, vector StatusReporter) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, vector: vector}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz fails when the database or redis cannot be reached. A vector index
// running on the fallback store is reported but still serves requests.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ping(r.Context(), checks, "database", h.db)
	ping(r.Context(), checks, "redis", h.redis)

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	body := map[string]any{"status": statusStr(status), "checks": checks}
	if h.vector != nil {
		body["vector"] = h.vector.Status()
	}
	writeJSON(w, status, body)
}

func ping(ctx context.Context, checks map[string]string, name string, p Pinger) {
	if p == nil {
		return
	}
	if err := p.Ping(ctx); err != nil {
		checks[name] = "unhealthy: " + err.Error()
		return
	}
	checks[name] = "ok"
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
