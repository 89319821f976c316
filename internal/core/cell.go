package core

// cell.go reads the first sheet of a workbook and normalizes every cell to
// a string. Both supported container formats go through the same rules so
// that import never depends on the file flavour:
//
//	numeric        shortest decimal text ("12", "0.5")
//	numeric+date   DateLayout, honouring the 1904 epoch
//	string         trimmed
//	formula        trimmed formula text
//	blank          ""
//	error          ErrorResult
//	boolean        "true" / "false"
//
// A row is present when the sheet stores it, even if every cell in it is
// empty. Rows the sheet does not store at all are absent.

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tabmap/internal/biff"
	"github.com/xuri/excelize/v2"
)

// Format identifies a spreadsheet container format.
type Format string

const (
	FormatXLS  Format = "xls"  // Legacy binary workbook (BIFF8)
	FormatXLSX Format = "xlsx" // Zip-based OOXML workbook
)

// DetectFormat selects the container format from a filename suffix,
// case-insensitively.
func DetectFormat(filename string) (Format, error) {
	if strings.TrimSpace(filename) == "" {
		return "", ErrNoFile
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(filename))
	}
}

// sheetSource is a read-only view of the first sheet of a workbook.
// Row and column indexes are 0-based.
type sheetSource interface {
	// RowCount returns the last physical row index plus one.
	RowCount() int
	// RowExists reports whether the row is physically present.
	RowExists(row int) bool
	// ColCount returns the last physical column index of a row plus one.
	ColCount(row int) int
	// Value returns the normalized text of a cell.
	Value(row, col int) string
	io.Closer
}

// openSheet opens the first sheet of a workbook read from r.
func openSheet(format Format, r io.Reader) (sheetSource, error) {
	switch format {
	case FormatXLSX:
		return openXLSX(r)
	case FormatXLS:
		return openXLS(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ----------------------------------------------------------------------------
// XLSX (excelize)
// ----------------------------------------------------------------------------

type xlsxSource struct {
	f        *excelize.File
	sheet    string
	rows     [][]string   // raw cell values, as stored
	present  map[int]bool // rows stored in the sheet part, nil if unknown
	nrows    int
	date1904 bool
	dateFmt  map[int]bool // style index -> date-formatted
}

func openXLSX(r io.Reader) (*xlsxSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, ErrNoSheet
	}

	s := &xlsxSource{
		f:       f,
		sheet:   sheets[0],
		dateFmt: make(map[int]bool),
	}

	s.rows, err = f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", s.sheet, err)
	}
	s.nrows = len(s.rows)

	// GetRows drops rows whose cells are all empty, so row presence comes
	// from the sheet part itself.
	if present, last, err := storedRows(data); err == nil {
		s.present = present
		s.nrows = max(s.nrows, last+1)
	}

	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		s.date1904 = *props.Date1904
	}

	return s, nil
}

func (s *xlsxSource) RowCount() int { return s.nrows }

func (s *xlsxSource) RowExists(row int) bool {
	if s.present[row] {
		return true
	}
	return row < len(s.rows) && len(s.rows[row]) > 0
}

func (s *xlsxSource) ColCount(row int) int {
	if row >= len(s.rows) {
		return 0
	}
	return len(s.rows[row])
}

func (s *xlsxSource) Value(row, col int) string {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return ""
	}

	if formula, err := s.f.GetCellFormula(s.sheet, cell); err == nil && formula != "" {
		return strings.TrimSpace(formula)
	}

	var raw string
	if col < s.ColCount(row) {
		raw = s.rows[row][col]
	}
	if raw == "" {
		return ""
	}

	typ, err := s.f.GetCellType(s.sheet, cell)
	if err != nil {
		return strings.TrimSpace(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		return strconv.FormatBool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeError:
		return ErrorResult
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return strings.TrimSpace(raw)
	case excelize.CellTypeDate:
		if t, err := ParseDate(raw); err == nil {
			return t.Format(DateLayout)
		}
		return strings.TrimSpace(raw)
	default:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return strings.TrimSpace(raw)
		}
		return formatNumber(v, s.isDateCell(cell), s.date1904)
	}
}

func (s *xlsxSource) isDateCell(cell string) bool {
	idx, err := s.f.GetCellStyle(s.sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	if isDate, ok := s.dateFmt[idx]; ok {
		return isDate
	}

	isDate := false
	if style, err := s.f.GetStyle(idx); err == nil && style != nil {
		code := ""
		if style.CustomNumFmt != nil {
			code = *style.CustomNumFmt
		}
		isDate = isDateFormat(style.NumFmt, code)
	}
	s.dateFmt[idx] = isDate
	return isDate
}

func (s *xlsxSource) Close() error {
	return s.f.Close()
}

// storedRows lists the 0-based indexes of the rows the first worksheet part
// of an xlsx package stores, and the largest of them. A <row> element counts
// when it holds a cell or carries row formatting; bare placeholders do not.
func storedRows(data []byte) (map[int]bool, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, -1, err
	}

	part, err := firstSheetPart(zr)
	if err != nil {
		return nil, -1, err
	}
	rc, err := zr.Open(part)
	if err != nil {
		return nil, -1, err
	}
	defer rc.Close()

	present := make(map[int]bool)
	last, cur := -1, -1
	mark := func(row int) {
		present[row] = true
		last = max(last, row)
	}

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return present, last, nil
		}
		if err != nil {
			return nil, -1, err
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "row":
			cur++
			formatted := false
			for _, a := range el.Attr {
				switch a.Name.Local {
				case "r":
					if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
						cur = n - 1
					}
				case "s", "customFormat", "ht", "customHeight", "hidden",
					"outlineLevel", "collapsed", "thickTop", "thickBot":
					formatted = formatted || (a.Value != "" && a.Value != "0" && a.Value != "false")
				}
			}
			if formatted {
				mark(cur)
			}
		case "c":
			if cur >= 0 {
				mark(cur)
			}
		}
	}
}

// firstSheetPart resolves the package path of the first sheet listed in
// xl/workbook.xml through the workbook relationships.
func firstSheetPart(zr *zip.Reader) (string, error) {
	var wb struct {
		Sheets []struct {
			ID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := decodePart(zr, "xl/workbook.xml", &wb); err != nil {
		return "", err
	}
	if len(wb.Sheets) == 0 {
		return "", ErrNoSheet
	}

	var rels struct {
		Relationships []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := decodePart(zr, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return "", err
	}
	for _, rel := range rels.Relationships {
		if rel.ID != wb.Sheets[0].ID {
			continue
		}
		if strings.HasPrefix(rel.Target, "/") {
			return strings.TrimPrefix(rel.Target, "/"), nil
		}
		return path.Join("xl", rel.Target), nil
	}
	return "", fmt.Errorf("no relationship %q", wb.Sheets[0].ID)
}

func decodePart(zr *zip.Reader, name string, v any) error {
	rc, err := zr.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

// ----------------------------------------------------------------------------
// XLS (BIFF8)
// ----------------------------------------------------------------------------

type xlsSource struct {
	wb    *biff.Workbook
	sheet *biff.Sheet
}

func openXLS(r io.Reader) (*xlsSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}

	wb, err := biff.Open(data)
	if errors.Is(err, biff.ErrNoWorksheet) {
		return nil, ErrNoSheet
	}
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	return &xlsSource{wb: wb, sheet: wb.Sheet}, nil
}

func (s *xlsSource) RowCount() int { return s.sheet.Rows() }

func (s *xlsSource) RowExists(row int) bool { return s.sheet.HasRow(row) }

func (s *xlsSource) ColCount(row int) int { return s.sheet.Cols(row) }

func (s *xlsSource) Value(row, col int) string {
	c, ok := s.sheet.Cell(row, col)
	if !ok {
		return ""
	}
	if c.Formula != "" {
		return strings.TrimSpace(c.Formula)
	}

	switch c.Kind {
	case biff.KindText:
		return strings.TrimSpace(c.Text)
	case biff.KindBool:
		return strconv.FormatBool(c.Bool)
	case biff.KindError:
		return ErrorResult
	case biff.KindNumber:
		id, code := s.wb.NumberFormat(c.XF)
		return formatNumber(c.Number, isDateFormat(id, code), s.wb.Date1904)
	}
	return ""
}

// Close is a no-op: the workbook is decoded in full when opened.
func (s *xlsSource) Close() error { return nil }

// ----------------------------------------------------------------------------
// Shared number rules
// ----------------------------------------------------------------------------

// formatNumber renders a numeric cell as its shortest decimal text, or as a
// DateLayout timestamp when the cell carries a date format.
func formatNumber(v float64, isDate, date1904 bool) string {
	if isDate {
		if t, err := excelize.ExcelDateToTime(v, date1904); err == nil {
			return t.Format(DateLayout)
		}
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isDateFormat reports whether number format id, or its format code when
// the workbook spells one out, renders dates or times.
func isDateFormat(id int, code string) bool {
	return isBuiltinDateFormat(id) || (code != "" && isDateFormatCode(code))
}

// isBuiltinDateFormat reports whether a built-in number format id renders
// dates or times.
func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format contains date or
// time tokens outside quoted literals, escapes and colour/locale brackets.
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++ // next character is literal
		default:
			switch c | 0x20 { // lower-case ASCII letters
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}
