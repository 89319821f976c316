package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"

	"github.com/JonMunkholm/tabmap/internal/logging"
)

// Import reads the first sheet of a workbook into records of the type
// registered for T. Any failure (unregistered type, unsupported file,
// unreadable workbook, cancellation) yields an empty slice and a logged
// error; use Read when the cause matters.
func Import[T any](ctx context.Context, filename string, r io.Reader) []T {
	b, ok := BindingFor[T]()
	if !ok {
		closeStream(ctx, r)
		logging.FromContext(ctx).Error("import rejected",
			"file", filename,
			"error", fmt.Errorf("%w: %s", ErrUnknownType, reflect.TypeFor[T]()),
		)
		return []T{}
	}
	return ImportWith(ctx, b, filename, r)
}

// ImportWith is Import with an explicit binding.
func ImportWith[T any](ctx context.Context, b *Binding[T], filename string, r io.Reader) []T {
	res, err := Read(ctx, b, filename, r)
	if err != nil {
		logging.FromContext(ctx).Error("import failed",
			"type", b.info.Key,
			"file", filename,
			"error", err,
		)
		return []T{}
	}
	return res.Records
}

// Read imports a workbook and reports what happened.
//
// Row 0 of the first sheet is the header row. Every later row that is
// physically present yields one record; rows whose bound cells are all
// empty are dropped. A value that cannot be coerced leaves its field at the
// zero value and is recorded in FieldErrors without affecting the row.
//
// The stream is closed before Read returns if it implements io.Closer.
func Read[T any](ctx context.Context, b *Binding[T], filename string, r io.Reader) (*ImportResult[T], error) {
	defer closeStream(ctx, r)

	if r == nil {
		return nil, ErrNoFile
	}
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
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

	return readRows(ctx, b, src)
}

// boundCell is one physical column of the header row that matched a label.
type boundCell[T any] struct {
	col    int
	fields []boundColumn[T]
}

func readRows[T any](ctx context.Context, b *Binding[T], src sheetSource) (*ImportResult[T], error) {
	s := b.schema()
	log := logging.WithFields(ctx, "type", b.info.Key)

	res := &ImportResult[T]{Records: []T{}}

	cells, found := mapHeader(s, src)
	for _, c := range s.imports {
		if found[c.Label] {
			res.Headers = append(res.Headers, c.Label)
		} else {
			res.Missing = append(res.Missing, c.Label)
		}
	}
	if len(res.Missing) > 0 {
		log.Debug("header labels not present in sheet", "missing", res.Missing)
	}

	for row := 1; row < src.RowCount(); row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !src.RowExists(row) {
			continue
		}
		res.RowsRead++

		rec := new(T)
		if !fillRecord(rec, row, cells, src, res, log) {
			log.Warn("dropping blank row", "row", row)
			res.BlankRows = append(res.BlankRows, row)
			continue
		}
		res.Records = append(res.Records, *rec)
	}

	log.Debug("import complete",
		"records", len(res.Records),
		"blank_rows", len(res.BlankRows),
		"field_errors", len(res.FieldErrors),
	)
	return res, nil
}

// mapHeader builds the column index map from row 0. Columns are returned in
// physical order so assignment order is deterministic.
func mapHeader[T any](s *schema[T], src sheetSource) ([]boundCell[T], map[string]bool) {
	found := make(map[string]bool)
	if src.RowCount() == 0 || !src.RowExists(0) {
		return nil, found
	}

	var cells []boundCell[T]
	for col := 0; col < src.ColCount(0); col++ {
		label := src.Value(0, col)
		fields, ok := s.byLabel[label]
		if !ok {
			continue
		}
		found[label] = true
		cells = append(cells, boundCell[T]{col: col, fields: fields})
	}

	sort.Slice(cells, func(i, j int) bool { return cells[i].col < cells[j].col })
	return cells, found
}

// fillRecord assigns every bound cell of row into rec and reports whether
// any bound cell was non-empty.
func fillRecord[T any](rec *T, row int, cells []boundCell[T], src sheetSource, res *ImportResult[T], log *slog.Logger) bool {
	kept := false
	for _, c := range cells {
		v := src.Value(row, c.col)
		if v == "" {
			continue
		}
		kept = true

		for _, f := range c.fields {
			if err := assign(f.access(rec), v); err != nil {
				log.Warn("field coercion failed",
					"row", row,
					"field", f.Key,
					"value", v,
					"error", err,
				)
				res.FieldErrors = append(res.FieldErrors, FieldError{
					Row:    row,
					Field:  f.Key,
					Value:  v,
					Reason: err.Error(),
					Err:    err,
				})
			}
		}
	}
	return kept
}

func closeStream(ctx context.Context, r io.Reader) {
	c, ok := r.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logging.FromContext(ctx).Warn("closing input stream failed", "error", err)
	}
}

// ReadAny implements Definition.
func (b *Binding[T]) ReadAny(ctx context.Context, filename string, r io.Reader) (*ImportResult[any], error) {
	res, err := Read(ctx, b, filename, r)
	if err != nil {
		return nil, err
	}

	records := make([]any, len(res.Records))
	for i := range res.Records {
		records[i] = res.Records[i]
	}
	return &ImportResult[any]{
		Records:     records,
		RowsRead:    res.RowsRead,
		BlankRows:   res.BlankRows,
		FieldErrors: res.FieldErrors,
		Headers:     res.Headers,
		Missing:     res.Missing,
	}, nil
}
