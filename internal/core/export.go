package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// Workbook is an export result held entirely in memory.
// Row 0 holds the header labels and is frozen together with column A.
type Workbook struct {
	file    *excelize.File
	sheet   string
	headers []string
	rows    int
}

// Build exports records using the binding's export columns.
func Build[T any](b *Binding[T], records []T) (*Workbook, error) {
	cols := b.schema().exports

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Label
	}

	wb, err := newWorkbook(headers)
	if err != nil {
		return nil, err
	}

	values := make([]string, len(cols))
	for i := range records {
		rec := &records[i]
		for j, c := range cols {
			values[j] = formatValue(c.access(rec))
		}
		if err := wb.appendRow(values); err != nil {
			wb.Close()
			return nil, err
		}
	}

	if err := wb.freeze(); err != nil {
		wb.Close()
		return nil, err
	}
	return wb, nil
}

// BuildRaw exports untyped rows under explicit headers. Rows are written in
// the order given; each row's values are written left to right.
func BuildRaw(headers []string, rows []RawRow) (*Workbook, error) {
	wb, err := newWorkbook(headers)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if err := wb.appendRow(r.Values); err != nil {
			wb.Close()
			return nil, fmt.Errorf("row %q: %w", r.Key, err)
		}
	}

	if err := wb.freeze(); err != nil {
		wb.Close()
		return nil, err
	}
	return wb, nil
}

// RowsFromMap converts keyed rows into RawRows ordered by key.
func RowsFromMap(m map[string][]string) []RawRow {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]RawRow, len(keys))
	for i, k := range keys {
		rows[i] = RawRow{Key: k, Values: m[k]}
	}
	return rows
}

// Template returns a header-only workbook for T.
func Template[T any](b *Binding[T]) (*Workbook, error) {
	return Build(b, nil)
}

// BuildJSON implements Definition. data must be a JSON array of records.
func (b *Binding[T]) BuildJSON(data []byte) (*Workbook, error) {
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s records: %w", b.info.Key, err)
	}
	return Build(b, records)
}

// Template implements Definition.
func (b *Binding[T]) Template() (*Workbook, error) {
	return Template(b)
}

func newWorkbook(headers []string) (*Workbook, error) {
	f := excelize.NewFile()
	wb := &Workbook{file: f, sheet: DefaultSheet, headers: headers}

	if len(headers) > 0 {
		if err := f.SetSheetRow(wb.sheet, "A1", &headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}

		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFFFF"}},
			Alignment: &excelize.Alignment{
				Horizontal: "center",
				Vertical:   "center",
			},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("header style: %w", err)
		}

		last, err := excelize.CoordinatesToCellName(len(headers), 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellStyle(wb.sheet, "A1", last, style); err != nil {
			f.Close()
			return nil, fmt.Errorf("header style: %w", err)
		}
	}

	return wb, nil
}

func (w *Workbook) appendRow(values []string) error {
	w.rows++
	if len(values) == 0 {
		return nil
	}

	cell, err := excelize.CoordinatesToCellName(1, w.rows+1)
	if err != nil {
		return err
	}
	row := append([]string(nil), values...)
	if err := w.file.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.rows, err)
	}
	return nil
}

// freeze pins row 1 and column A. Applied once all rows are written.
func (w *Workbook) freeze() error {
	err := w.file.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
		Selection: []excelize.Selection{
			{SQRef: "B2", ActiveCell: "B2", Pane: "bottomRight"},
		},
	})
	if err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	return nil
}

// Headers returns the header row labels.
func (w *Workbook) Headers() []string {
	return w.headers
}

// Rows returns the number of data rows written, excluding the header.
func (w *Workbook) Rows() int {
	return w.rows
}

// Sheet returns the name of the single worksheet.
func (w *Workbook) Sheet() string {
	return w.sheet
}

// File exposes the underlying workbook for inspection.
func (w *Workbook) File() *excelize.File {
	return w.file
}

// Bytes serializes the workbook as xlsx.
func (w *Workbook) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the workbook's temporary resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}
