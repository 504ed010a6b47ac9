package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/rag"
)

type DocumentHandler struct {
	svc       *rag.Service
	maxUpload int64
	logger    *slog.Logger
}

func NewDocumentHandler(svc *rag.Service, maxUpload int64, logger *slog.Logger) *DocumentHandler {
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &DocumentHandler{svc: svc, maxUpload: maxUpload, logger: orDefault(logger)}
}

type upload struct {
	name  string
	data  []byte
	meta  map[string]any
	async bool
}

func (h *DocumentHandler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.InvalidInput("upload exceeds %d bytes", h.maxUpload)
		}
		return nil, apperr.InvalidInput("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.InvalidInput("file required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.InvalidInput("read upload: %v", err)
	}

	meta, err := parseMetadata(r.FormValue("metadata"))
	if err != nil {
		return nil, err
	}

	async, _ := strconv.ParseBool(r.FormValue("async"))
	if q := r.URL.Query().Get("async"); q != "" {
		async, _ = strconv.ParseBool(q)
	}

	return &upload{name: header.Filename, data: data, meta: meta, async: async}, nil
}

func parseMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		return nil, apperr.InvalidInput("metadata must be a JSON object")
	}
	return meta, nil
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if up.async {
		res, err := h.svc.IngestUploadAsync(r.Context(), up.name, up.data, up.meta)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "document": res})
		return
	}

	res, err := h.svc.IngestUpload(r.Context(), up.name, up.data, up.meta)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "ingested", "document": res})
}

// Replace re-ingests new content under an existing document id.
func (h *DocumentHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	up, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.svc.ReplaceDocument(r.Context(), id, up.name, up.data, up.meta)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ingested", "document": res})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	id := chi.URLParam(r, "id")

	chunks, err := h.svc.Chunks(r.Context(), id, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "chunks": chunks, "count": len(chunks)})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	body := map[string]any{"status": res.Outcome, "document": res.Record}
	if errs := res.Errors(); len(errs) > 0 {
		body["errors"] = errs
	}
	writeJSON(w, http.StatusOK, body)
}
