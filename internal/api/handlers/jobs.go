package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/ragvault/internal/queue"
)

type JobLookup interface {
	Job(ctx context.Context, id string) (*queue.JobInfo, error)
}

type JobHandler struct {
	jobs   JobLookup
	logger *slog.Logger
}

func NewJobHandler(jobs JobLookup, logger *slog.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: orDefault(logger)}
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
