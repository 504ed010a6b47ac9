package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err onto a status code. Server-side failures are logged
// with whatever context the error carries.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err, "context", apperr.Context(err))
	}
	body := map[string]string{"error": err.Error()}
	if code := apperr.CodeOf(err); code != "" {
		body["code"] = string(code)
	}
	writeJSON(w, status, body)
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
