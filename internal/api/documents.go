package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/koopa0/docchat/internal/document"
	"github.com/koopa0/docchat/internal/index"
	"github.com/koopa0/docchat/internal/session"
)

// maxUploadBytes bounds a single upload request.
const maxUploadBytes = 32 << 20 // 32 MiB

type documentHandler struct {
	coord   *session.Coordinator
	docs    *document.Store
	manager *index.Manager
	state   *session.State
	logger  *slog.Logger
}

type documentResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Selected bool   `json:"selected"`
}

func (h *documentHandler) toResponse(doc document.Document) documentResponse {
	resp := documentResponse{
		Name:     doc.Name,
		Path:     doc.Path,
		Selected: h.state.Selected(doc.Path),
	}
	if doc.UseInRAG {
		resp.ID = doc.ID.String()
	}
	return resp
}

// list reconciles the directory listing into the session and returns the
// merged document list.
func (h *documentHandler) list(w http.ResponseWriter, _ *http.Request) {
	if err := h.coord.Reconcile(h.state, nil); err != nil {
		h.logger.Error("reconciling documents", "error", err)
		writeError(w, http.StatusInternalServerError, "reconcile_failed", "could not list documents", h.logger)
		return
	}

	out := make([]documentResponse, 0, len(h.state.Documents))
	for _, doc := range h.state.Documents {
		out = append(out, h.toResponse(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out}, h.logger)
}

// upload ingests a multipart batch under the form field "files".
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart", "could not parse multipart form", h.logger)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no_files", "upload at least one file under the files field", h.logger)
		return
	}

	var uploads []session.Upload
	var closers []func() error
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable_file", fmt.Sprintf("could not read %s", fh.Filename), h.logger)
			return
		}
		closers = append(closers, f.Close)
		uploads = append(uploads, session.Upload{Name: fh.Filename, Data: f})
	}

	if err := h.coord.Reconcile(h.state, uploads); err != nil {
		h.logger.Error("ingesting upload batch", "error", err)
		writeError(w, http.StatusInternalServerError, "ingest_failed", "could not save uploaded files", h.logger)
		return
	}

	out := make([]documentResponse, 0, len(h.state.Documents))
	for _, doc := range h.state.Documents {
		out = append(out, h.toResponse(doc))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"documents": out}, h.logger)
}

type selectRequest struct {
	Path     string `json:"path"`
	Selected bool   `json:"selected"`
}

// selectDocument flips a document's membership in the grounding set.
func (h *documentHandler) selectDocument(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "path is required", h.logger)
		return
	}

	resolved := h.docs.Resolve([]string{req.Path})
	if len(resolved) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	}

	h.coord.Select(h.state, resolved[0], req.Selected)
	writeJSON(w, http.StatusOK, map[string]any{
		"path":     resolved[0],
		"selected": req.Selected,
	}, h.logger)
}

// summary generates a short description of one document. Failures degrade
// to a placeholder message rather than an error status: a missing summary
// should never break the document listing flow.
func (h *documentHandler) summary(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusNotImplemented, "summaries_disabled", "document summaries are not configured", h.logger)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "path query parameter is required", h.logger)
		return
	}

	resolved := h.docs.Resolve([]string{path})
	if len(resolved) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	}

	text, err := h.manager.Summarize(r.Context(), resolved[0])
	if err != nil {
		h.logger.Warn("summarizing document", "path", resolved[0], "error", err)
		text = fmt.Sprintf("Summary unavailable for %s.", filepath.Base(resolved[0]))
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path":    resolved[0],
		"summary": text,
	}, h.logger)
}
