package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/tabmap/internal/core"
)

// DetectResponse is the result of matching a workbook against all types.
type DetectResponse struct {
	Header  *core.SheetHeader `json:"header"`
	Matches []core.TypeMatch  `json:"matches"`
}

// handleImport parses an uploaded workbook into records of {typeKey}.
//
// The workbook is sent as the "file" part of a multipart form. The response
// carries the records together with blank-row and field-error details.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	typeKey, ok := typeKeyParam(w, r)
	if !ok {
		return
	}

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	// The service closes file once parsed.

	ctx := WithRequestMetadata(r.Context(), r)
	report, err := s.service.Import(ctx, typeKey, header.Filename, file)
	if err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusOK, report)
}

// handleInspect compares the header row of an uploaded workbook with the
// labels bound on {typeKey}. No records are imported.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	typeKey, ok := typeKeyParam(w, r)
	if !ok {
		return
	}

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	report, err := s.service.Inspect(ctx, typeKey, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusOK, report)
}

// handleDetect suggests record types for an uploaded workbook.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	h, matches, err := s.service.Detect(ctx, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if matches == nil {
		matches = []core.TypeMatch{}
	}

	writeJSON(w, r, http.StatusOK, DetectResponse{Header: h, Matches: matches})
}
