package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/rag"
)

type SearchHandler struct {
	svc    *rag.Service
	logger *slog.Logger
}

func NewSearchHandler(svc *rag.Service, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, logger: orDefault(logger)}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Search accepts ?query=&top_k= on GET and a JSON body on POST.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, apperr.InvalidInput("invalid request body"))
			return
		}
	} else {
		q := r.URL.Query()
		req.Query = q.Get("query")
		if req.Query == "" {
			req.Query = q.Get("q")
		}
		if v := q.Get("top_k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, h.logger, apperr.InvalidInput("top_k must be an integer"))
				return
			}
			req.TopK = n
		}
	}

	hits, err := h.svc.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": req.Query, "results": hits, "count": len(hits)})
}
