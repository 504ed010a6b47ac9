package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// HandlersRegistry maps task types to handlers for the worker server and logs
// every run with its job id and retry count.
type HandlersRegistry struct {
	mux    *asynq.ServeMux
	logger *slog.Logger
}

func NewHandlersRegistry(logger *slog.Logger) *HandlersRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &HandlersRegistry{
		mux:    asynq.NewServeMux(),
		logger: logger.With("component", "queue"),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, r.logged(handler))
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func (r *HandlersRegistry) logged(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		jobID, _ := asynq.GetTaskID(ctx)
		retry, _ := asynq.GetRetryCount(ctx)
		start := time.Now()

		err := next.ProcessTask(ctx, t)

		attrs := []any{"task", t.Type(), "job_id", jobID, "retry", retry, "duration", time.Since(start)}
		if err != nil {
			r.logger.Warn("task failed", append(attrs, "error", err)...)
			return err
		}
		r.logger.Info("task done", attrs...)
		return nil
	})
}
