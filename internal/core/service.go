package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JonMunkholm/tabmap/internal/config"
	"github.com/JonMunkholm/tabmap/internal/logging"
	"github.com/google/uuid"
)

// Service is the entry point used by transports. It resolves record types
// by key, bounds concurrent imports and remembers recent import outcomes.
type Service struct {
	cfg     *config.Config
	limiter *ImportLimiter

	mu      sync.RWMutex
	history []ImportSummary // oldest first, at most cfg.Import.HistorySize
}

// ImportReport is the outcome of one service import.
type ImportReport struct {
	ID       string `json:"id"`
	TypeKey  string `json:"type"`
	FileName string `json:"fileName"`
	*ImportResult[any]
}

// ImportSummary is the history entry of one import attempt.
type ImportSummary struct {
	ID          string        `json:"id"`
	TypeKey     string        `json:"type"`
	FileName    string        `json:"fileName"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Records     int           `json:"records"`
	BlankRows   int           `json:"blankRows"`
	FieldErrors int           `json:"fieldErrors"`
	Error       string        `json:"error,omitempty"`
}

// NewService creates a Service. A nil cfg uses config.Defaults.
func NewService(cfg *config.Config) *Service {
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &Service{
		cfg:     cfg,
		limiter: NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
	}
}

// ListTypes returns information about all registered record types.
func (s *Service) ListTypes() []TypeInfo {
	defs := All()
	infos := make([]TypeInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info()
	}
	return infos
}

// ListTypesByGroup returns record types organized by group.
func (s *Service) ListTypesByGroup() map[string][]TypeInfo {
	result := make(map[string][]TypeInfo)
	for _, group := range Groups() {
		for _, def := range ByGroup(group) {
			result[group] = append(result[group], def.Info())
		}
	}
	return result
}

// Import parses a workbook into records of the type registered under
// typeKey. It waits for an import slot and bounds the work with the
// configured import timeout.
//
// Returns ErrTooManyImports if no slot frees up in time.
func (s *Service) Import(ctx context.Context, typeKey, filename string, r io.Reader) (report *ImportReport, err error) {
	def, ok := Get(typeKey)
	if !ok {
		closeStream(ctx, r)
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeKey)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		closeStream(ctx, r)
		return nil, err
	}
	defer s.limiter.Release()

	id := uuid.New().String()
	log := logging.WithFields(ctx, "import_id", id, "type", typeKey, "file", filename).With(clientFields(ctx)...)
	started := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Error("panic in import", "panic", p)
			err = fmt.Errorf("internal error: %v", p)
			report = nil
		}
		s.record(summarize(id, typeKey, filename, started, report, err))
	}()

	importCtx, cancel := context.WithTimeout(ctx, s.cfg.Import.Timeout)
	defer cancel()

	var body *CountingReader
	if r != nil {
		body = NewCountingReader(r, s.cfg.Import.MaxFileSize)
		r = body
	}

	log.Info("import started")
	res, err := def.ReadAny(importCtx, filename, r)
	if err != nil {
		log.Warn("import failed", "error", err, "duration", time.Since(started))
		return nil, err
	}

	log.Info("import completed",
		"bytes", body.BytesRead(),
		"records", len(res.Records),
		"blank_rows", len(res.BlankRows),
		"field_errors", len(res.FieldErrors),
		"duration", time.Since(started),
	)
	return &ImportReport{ID: id, TypeKey: typeKey, FileName: filename, ImportResult: res}, nil
}

// Export decodes a JSON array of records of typeKey and builds a workbook.
func (s *Service) Export(ctx context.Context, typeKey string, body []byte) (*Workbook, error) {
	def, ok := Get(typeKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeKey)
	}

	wb, err := def.BuildJSON(body)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("export built", "type", typeKey, "rows", wb.Rows())
	return wb, nil
}

// ExportRaw builds a workbook from untyped rows.
func (s *Service) ExportRaw(ctx context.Context, headers []string, rows []RawRow) (*Workbook, error) {
	wb, err := BuildRaw(headers, rows)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("raw export built", "columns", len(headers), "rows", wb.Rows())
	return wb, nil
}

// Template builds the header-only workbook of typeKey.
func (s *Service) Template(typeKey string) (*Workbook, error) {
	def, ok := Get(typeKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeKey)
	}
	return def.Template()
}

// History returns recent imports, newest first.
func (s *Service) History() []ImportSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ImportSummary, len(s.history))
	for i, h := range s.history {
		out[len(out)-1-i] = h
	}
	return out
}

// ExportFileName returns name, or the configured default when name is blank.
func (s *Service) ExportFileName(name string) string {
	if name == "" {
		return s.cfg.Export.DefaultFileName
	}
	return name
}

// MaxFileSize returns the configured import size limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.Import.MaxFileSize
}

// MaxBodySize returns the configured export body limit in bytes.
func (s *Service) MaxBodySize() int64 {
	return s.cfg.Export.MaxBodySize
}

// LimiterStatus returns import slot occupancy.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until in-flight imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) record(sum ImportSummary) {
	limit := s.cfg.Import.HistorySize
	if limit <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, sum)
	if over := len(s.history) - limit; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

func summarize(id, typeKey, filename string, started time.Time, report *ImportReport, err error) ImportSummary {
	sum := ImportSummary{
		ID:        id,
		TypeKey:   typeKey,
		FileName:  filename,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if err != nil {
		sum.Error = err.Error()
		return sum
	}
	if report != nil && report.ImportResult != nil {
		sum.Records = len(report.Records)
		sum.BlankRows = len(report.BlankRows)
		sum.FieldErrors = len(report.FieldErrors)
	}
	return sum
}
