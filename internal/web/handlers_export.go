package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/JonMunkholm/tabmap/internal/core"
)

// RawExportRequest is the body of an untyped export.
//
// Rows are written in order. Keyed rows are appended after them sorted by
// key.
type RawExportRequest struct {
	FileName string              `json:"fileName"`
	Headers  []string            `json:"headers"`
	Rows     []core.RawRow       `json:"rows"`
	Keyed    map[string][]string `json:"keyed"`
}

// handleDownloadTemplate serves the header-only workbook of {typeKey}.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	typeKey, ok := typeKeyParam(w, r)
	if !ok {
		return
	}

	wb, err := s.service.Template(typeKey)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer wb.Close()

	s.deliver(w, r, typeKey+"_template.xlsx", wb)
}

// handleExport builds a workbook from a JSON array of {typeKey} records.
// The download name comes from the filename query parameter.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	typeKey, ok := typeKeyParam(w, r)
	if !ok {
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	wb, err := s.service.Export(r.Context(), typeKey, body)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		respondError(w, r, err, status)
		return
	}
	defer wb.Close()

	s.deliver(w, r, r.URL.Query().Get("filename"), wb)
}

// handleExportRaw builds a workbook from explicit headers and rows.
func (s *Server) handleExportRaw(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req RawExportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, r, fmt.Errorf("decode raw export: %w", err), http.StatusBadRequest)
		return
	}

	rows := append(req.Rows, core.RowsFromMap(req.Keyed)...)
	wb, err := s.service.ExportRaw(r.Context(), req.Headers, rows)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	defer wb.Close()

	name := req.FileName
	if q := r.URL.Query().Get("filename"); q != "" {
		name = q
	}
	s.deliver(w, r, name, wb)
}

// readBody reads a request body bounded by the export body limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.service.MaxBodySize()))
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, fmt.Errorf("request body too large: %w", err), http.StatusRequestEntityTooLarge)
		} else {
			respondError(w, r, fmt.Errorf("read body: %w", err), http.StatusBadRequest)
		}
		return nil, false
	}
	return body, true
}

// deliver sends wb as an attachment. Once the attachment headers are out
// the status can no longer change, so late failures are only logged by
// WriteResponse.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, name string, wb *core.Workbook) {
	name = s.service.ExportFileName(sanitizeFileName(name))
	if err := core.WriteResponse(r.Context(), w, name, wb); err != nil && w.Header().Get("Content-Disposition") == "" {
		respondError(w, r, err, http.StatusInternalServerError)
	}
}

// sanitizeFileName strips directories and forces the .xlsx suffix.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		return ""
	}
	if !strings.EqualFold(path.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}
