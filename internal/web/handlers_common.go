package web

// handlers_common.go holds listing, health and monitoring handlers plus the
// helpers shared by the import and export handlers.

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/tabmap/internal/core"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead allows for boundaries and form fields around the file.
const multipartOverhead = 1 << 20

var errMissingTypeKey = errors.New("missing record type key")

// TypesResponse lists the registered record types.
type TypesResponse struct {
	Types  []core.TypeInfo `json:"types"`
	Groups []string        `json:"groups"`
}

// handleHealth reports liveness and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"types":   core.TypeCount(),
		"imports": s.service.LimiterStatus(),
	})
}

// handleListTypes lists registered record types, optionally for one group.
func (s *Server) handleListTypes(w http.ResponseWriter, r *http.Request) {
	resp := TypesResponse{Groups: core.Groups()}

	if group := r.URL.Query().Get("group"); group != "" {
		resp.Types = s.service.ListTypesByGroup()[group]
	} else {
		resp.Types = s.service.ListTypes()
	}
	if resp.Types == nil {
		resp.Types = []core.TypeInfo{}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleImportHistory returns recent imports, newest first.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.History())
}

// handleImportQueueStatus returns the current state of the import limiter.
// Used for monitoring and to check if the system can accept more imports.
func (s *Server) handleImportQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.LimiterStatus())
}

// typeKeyParam returns the {typeKey} route parameter, writing a 400 if it
// is missing.
func typeKeyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "typeKey")
	if key == "" {
		respondError(w, r, errMissingTypeKey, http.StatusBadRequest)
		return "", false
	}
	return key, true
}

// formFile parses a multipart upload bounded by the configured size limit and
// returns the "file" part. The caller owns the returned file.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
		} else {
			respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		}
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return nil, nil, false
	}
	if header.Size > s.service.MaxFileSize() {
		file.Close()
		respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
		return nil, nil, false
	}
	return file, header, true
}
