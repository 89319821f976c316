package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/JonMunkholm/tabmap/internal/logging"
)

// MatchThreshold is the minimum header score for a type to be suggested.
const MatchThreshold = 0.7

// SheetHeader is the header row of a workbook plus its data row count.
type SheetHeader struct {
	Columns  []string `json:"columns"`  // Normalized header cells, physical order
	DataRows int      `json:"dataRows"` // Present rows after the header
}

// HeaderReport compares a sheet's header row with one record type.
type HeaderReport struct {
	TypeKey string   `json:"type"`
	Matched []string `json:"matched"` // Bound labels present in the sheet
	Missing []string `json:"missing"` // Bound labels absent from the sheet
	Unknown []string `json:"unknown"` // Sheet headers with no bound field
	Score   float64  `json:"score"`   // Fraction of bound labels present
	SheetHeader
}

// TypeMatch is a registered type whose labels fit a sheet's header row.
type TypeMatch struct {
	Type  TypeInfo `json:"type"`
	Score float64  `json:"score"`
}

// ReadHeader reads only the header row of the first sheet and counts the
// data rows below it. The stream is closed if it implements io.Closer.
func ReadHeader(ctx context.Context, filename string, r io.Reader) (*SheetHeader, error) {
	defer closeStream(ctx, r)

	if r == nil {
		return nil, ErrNoFile
	}
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	src, err := openSheet(format, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logging.FromContext(ctx).Warn("closing workbook failed", "file", filename, "error", err)
		}
	}()

	h := &SheetHeader{Columns: []string{}}
	if src.RowCount() == 0 || !src.RowExists(0) {
		return h, nil
	}
	for col := 0; col < src.ColCount(0); col++ {
		h.Columns = append(h.Columns, src.Value(0, col))
	}
	for row := 1; row < src.RowCount(); row++ {
		if src.RowExists(row) {
			h.DataRows++
		}
	}
	return h, nil
}

// CompareHeader reports how a sheet header lines up with def's labels.
// Matching is exact, as on import.
func CompareHeader(def Definition, h *SheetHeader) *HeaderReport {
	info := def.Info()
	rep := &HeaderReport{
		TypeKey:     info.Key,
		Matched:     []string{},
		Missing:     []string{},
		Unknown:     []string{},
		SheetHeader: *h,
	}

	present := make(map[string]bool, len(h.Columns))
	for _, c := range h.Columns {
		present[c] = true
	}
	bound := make(map[string]bool, len(info.Headers))
	for _, label := range info.Headers {
		bound[label] = true
		if present[label] {
			rep.Matched = append(rep.Matched, label)
		} else {
			rep.Missing = append(rep.Missing, label)
		}
	}
	for _, c := range h.Columns {
		if c != "" && !bound[c] {
			rep.Unknown = append(rep.Unknown, c)
		}
	}

	if len(info.Headers) > 0 {
		rep.Score = float64(len(rep.Matched)) / float64(len(info.Headers))
	}
	return rep
}

// MatchTypes scores every registered type against a sheet header and
// returns those at or above MatchThreshold, best first. Scoring ignores
// case and surrounding spaces so near misses still surface.
func MatchTypes(columns []string) []TypeMatch {
	var matches []TypeMatch
	for _, def := range All() {
		info := def.Info()
		score := headerScore(columns, info.Headers)
		if score >= MatchThreshold {
			matches = append(matches, TypeMatch{Type: info, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// headerScore is the fraction of labels found among the sheet columns.
func headerScore(columns, labels []string) float64 {
	if len(labels) == 0 {
		return 0
	}

	sheet := make(map[string]bool, len(columns))
	for _, c := range columns {
		sheet[strings.ToLower(strings.TrimSpace(c))] = true
	}

	matched := 0
	for _, l := range labels {
		if sheet[strings.ToLower(strings.TrimSpace(l))] {
			matched++
		}
	}
	return float64(matched) / float64(len(labels))
}

// Inspect compares a workbook's header row with the type registered under
// typeKey without importing any records.
func (s *Service) Inspect(ctx context.Context, typeKey, filename string, r io.Reader) (*HeaderReport, error) {
	def, ok := Get(typeKey)
	if !ok {
		closeStream(ctx, r)
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeKey)
	}

	h, err := s.readHeader(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	return CompareHeader(def, h), nil
}

// Detect suggests registered types for a workbook based on its header row.
func (s *Service) Detect(ctx context.Context, filename string, r io.Reader) (*SheetHeader, []TypeMatch, error) {
	h, err := s.readHeader(ctx, filename, r)
	if err != nil {
		return nil, nil, err
	}
	return h, MatchTypes(h.Columns), nil
}

func (s *Service) readHeader(ctx context.Context, filename string, r io.Reader) (*SheetHeader, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		closeStream(ctx, r)
		return nil, err
	}
	defer s.limiter.Release()

	if r != nil {
		r = NewCountingReader(r, s.cfg.Import.MaxFileSize)
	}
	return ReadHeader(ctx, filename, r)
}
