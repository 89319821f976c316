package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/tabmap/internal/biff/bifftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr error
	}{
		{"report.xlsx", FormatXLSX, nil},
		{"REPORT.XLSX", FormatXLSX, nil},
		{"legacy.Xls", FormatXLS, nil},
		{"dir/sub/book.xls", FormatXLS, nil},
		{"data.csv", "", ErrUnsupportedFormat},
		{"noext", "", ErrUnsupportedFormat},
		{"book.xlsm", "", ErrUnsupportedFormat},
		{"", "", ErrNoFile},
		{"   ", "", ErrNoFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DetectFormat(%q) error = %v, want %v", tt.name, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("DetectFormat(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
			}
		})
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"m/d/yy h:mm", true},
		{"[$-409]mmmm d, yyyy", true},
		{"hh:mm:ss", true},
		{"0.00", false},
		{"#,##0", false},
		{"General", false},
		{`"days"0`, false},
		{`0\d`, false},
		{"[Red]0.00", false},
		{`_(* #,##0.00_)`, false},
	}

	for _, tt := range tests {
		if got := isDateFormatCode(tt.code); got != tt.want {
			t.Errorf("isDateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsBuiltinDateFormat(t *testing.T) {
	for _, id := range []int{14, 17, 22, 27, 36, 45, 47, 50, 58} {
		if !isBuiltinDateFormat(id) {
			t.Errorf("isBuiltinDateFormat(%d) = false, want true", id)
		}
	}
	for _, id := range []int{0, 1, 2, 10, 13, 23, 37, 44, 49, 59, 164} {
		if isBuiltinDateFormat(id) {
			t.Errorf("isBuiltinDateFormat(%d) = true, want false", id)
		}
	}
}

func TestXLSXSource_Normalization(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := DefaultSheet

	set := func(cell string, v any) {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}

	set("A1", "  padded text  ")
	set("B1", 12)
	set("C1", 12.5)
	set("D1", true)
	set("E1", false)
	set("F1", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	set("G1", 45306)
	set("H1", 45306)
	set("I1", 3)
	set("J1", 4)
	require.NoError(t, f.SetCellFormula(sheet, "K1", "I1+J1"))

	customDate := "yyyy-mm-dd"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &customDate})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "G1", "G1", dateStyle))

	customNum := "0.00"
	numStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &customNum})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "H1", "H1", numStyle))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	src, err := openXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer src.Close()

	tests := []struct {
		col  int
		want string
	}{
		{0, "padded text"},
		{1, "12"},
		{2, "12.5"},
		{3, "true"},
		{4, "false"},
		{5, "2024-01-15 00:00:00"},
		{6, "2024-01-15 00:00:00"},
		{7, "45306"},
		{10, "I1+J1"},
		{11, ""}, // past the last cell
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, src.Value(0, tt.col), "column %d", tt.col)
	}
}

func TestXLSXSource_AbsentRows(t *testing.T) {
	data := xlsxBytes(t, [][]any{
		{"Name"},
		nil,
		{"Bob"},
	})

	src, err := openXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 3, src.RowCount())
	assert.True(t, src.RowExists(0))
	assert.False(t, src.RowExists(1))
	assert.True(t, src.RowExists(2))
	assert.False(t, src.RowExists(5))
	assert.Equal(t, "", src.Value(1, 0))
}

// formattedRowsXLSX stores rows 2 and 3 without any values: one only has a
// custom height, the other only styled empty cells.
func formattedRowsXLSX(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := DefaultSheet

	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "Age"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Alice", 30}))
	require.NoError(t, f.SetRowHeight(sheet, 3, 30))

	fill := "#FFFF00"
	style, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fill}}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "A4", "B4", style))

	require.NoError(t, f.SetSheetRow(sheet, "A6", &[]any{"Carol", 41}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXSource_FormattedEmptyRows(t *testing.T) {
	src, err := openXLSX(bytes.NewReader(formattedRowsXLSX(t)))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 6, src.RowCount())
	assert.True(t, src.RowExists(1))
	assert.True(t, src.RowExists(2), "height-only row")
	assert.True(t, src.RowExists(3), "styled empty cells")
	assert.False(t, src.RowExists(4), "placeholder row")
	assert.True(t, src.RowExists(5))
	assert.Equal(t, "", src.Value(3, 0))
	assert.Equal(t, "Carol", src.Value(5, 0))
}

// legacyBook declares the number formats the xls tests apply:
// XF 0 General, 1 built-in date, 2 custom number, 3 custom date,
// 4 built-in date and time.
func legacyBook() bifftest.Book {
	return bifftest.Book{
		Formats: []bifftest.Format{{ID: 164, Code: "#,##0.00"}, {ID: 165, Code: "yyyy-mm-dd"}},
		XFs:     []int{0, 14, 164, 165, 22},
		Strings: []string{"  shared text  ", "Name"},
	}
}

func TestXLSSource_Normalization(t *testing.T) {
	data := xlsBytes(legacyBook(),
		bifftest.LabelSST(0, 0, 0, 0),
		bifftest.RK(0, 1, 0, 12),
		bifftest.Number(0, 2, 0, 12.5),
		bifftest.Bool(0, 3, 0, true),
		bifftest.Bool(0, 4, 0, false),
		bifftest.Number(0, 5, 1, 45306),
		bifftest.RK(0, 6, 3, 45306),
		bifftest.RK(0, 7, 2, 45306),
		bifftest.Number(0, 8, 4, 45306.5),
		bifftest.Error(0, 9, 0, bifftest.ErrDiv0),
		bifftest.Formula(0, 10, 0, bifftest.NumberResult(7),
			bifftest.Ref(0, 1, false), bifftest.Ref(0, 2, true), bifftest.Op(bifftest.OpAdd)),
		bifftest.Formula(0, 11, 0, bifftest.NumberResult(24.5),
			bifftest.Area(0, 1, 0, 2, false), bifftest.AttrSum()),
		bifftest.Label(0, 12, 0, "  inline  "),
		bifftest.Blank(0, 13, 0),
		bifftest.MulRK(0, 14, []int{0, 0}, []uint32{bifftest.RKCents(1250), bifftest.RKInt(-3)}),
	)

	src, err := openXLS(bytes.NewReader(data))
	require.NoError(t, err)
	defer src.Close()

	tests := []struct {
		col  int
		want string
	}{
		{0, "shared text"},
		{1, "12"},
		{2, "12.5"},
		{3, "true"},
		{4, "false"},
		{5, "2024-01-15 00:00:00"},
		{6, "2024-01-15 00:00:00"},
		{7, "45306"}, // custom number format is not a date
		{8, "2024-01-15 12:00:00"},
		{9, ErrorResult},
		{10, "B1+$C$1"},
		{11, "SUM(B1:C1)"},
		{12, "inline"},
		{13, ""},
		{14, "12.5"},
		{15, "-3"},
		{16, ""}, // past the last cell
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, src.Value(0, tt.col), "column %d", tt.col)
	}
	assert.Equal(t, 16, src.ColCount(0))
}

func TestXLSSource_FormulaResults(t *testing.T) {
	// A defined-name token cannot be rendered from the record alone, so
	// these cells fall back to their cached results.
	name := bifftest.Name(1)
	data := xlsBytes(legacyBook(),
		bifftest.Formula(0, 0, 0, bifftest.NumberResult(71), name),
		bifftest.Formula(0, 1, 1, bifftest.NumberResult(45306), name),
		bifftest.Formula(0, 2, 0, bifftest.TextResult(), name),
		bifftest.String("  from formula "),
		bifftest.Formula(0, 3, 0, bifftest.BoolResult(true), name),
		bifftest.Formula(0, 4, 0, bifftest.ErrorResult(bifftest.ErrNA), name),
		bifftest.Formula(0, 5, 0, bifftest.TextResult(), bifftest.Text("lit"), bifftest.Text("eral"),
			bifftest.Op(bifftest.OpConcat)),
		bifftest.String("literal"),
	)

	src, err := openXLS(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "71", src.Value(0, 0))
	assert.Equal(t, "2024-01-15 00:00:00", src.Value(0, 1))
	assert.Equal(t, "from formula", src.Value(0, 2))
	assert.Equal(t, "true", src.Value(0, 3))
	assert.Equal(t, ErrorResult, src.Value(0, 4))
	assert.Equal(t, `"lit"&"eral"`, src.Value(0, 5))
}

func TestXLSSource_Date1904(t *testing.T) {
	book := legacyBook()
	book.Date1904 = true
	data := xlsBytes(book, bifftest.RK(0, 0, 1, 43844))

	src, err := openXLS(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15 00:00:00", src.Value(0, 0))
}

func TestXLSSource_AbsentRows(t *testing.T) {
	data := xlsBytes(legacyBook(),
		bifftest.LabelSST(0, 0, 0, 1),
		bifftest.Row(2), // stored without cells
		bifftest.MulBlank(3, 0, 2, 0),
		bifftest.Label(5, 1, 0, "Bob"),
	)

	src, err := openXLS(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 6, src.RowCount())
	assert.True(t, src.RowExists(0))
	assert.False(t, src.RowExists(1))
	assert.True(t, src.RowExists(2))
	assert.True(t, src.RowExists(3))
	assert.False(t, src.RowExists(4))
	assert.True(t, src.RowExists(5))
	assert.False(t, src.RowExists(99))

	assert.Equal(t, 0, src.ColCount(1))
	assert.Equal(t, 0, src.ColCount(2))
	assert.Equal(t, 2, src.ColCount(3))
	assert.Equal(t, 2, src.ColCount(5))
	assert.Equal(t, "", src.Value(1, 0))
	assert.Equal(t, "", src.Value(5, 0))
	assert.Equal(t, "Bob", src.Value(5, 1))
}

func TestXLSSource_EmptySheet(t *testing.T) {
	src, err := openXLS(bytes.NewReader(xlsBytes(bifftest.Book{})))
	require.NoError(t, err)

	assert.Zero(t, src.RowCount())
	assert.False(t, src.RowExists(0))
	assert.Zero(t, src.ColCount(0))
	assert.Equal(t, "", src.Value(0, 0))
}

func TestXLSSource_Fixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "people.xls"))
	require.NoError(t, err)

	src, err := openXLS(bytes.NewReader(data))
	require.NoError(t, err)

	require.Equal(t, 5, src.RowCount())
	header := make([]string, src.ColCount(0))
	for col := range header {
		header[col] = src.Value(0, col)
	}
	assert.Equal(t, []string{"Name", "Age", "Score", "Joined", "Active", "Salary", "Code", "Nickname", "Total"}, header)

	assert.Equal(t, "SUM(B2:C2)", src.Value(1, 8))
	assert.False(t, src.RowExists(2))
	assert.True(t, src.RowExists(3))
	assert.Equal(t, ErrorResult, src.Value(4, 2))
	assert.Equal(t, "2023-01-02 00:00:00", src.Value(4, 3))
	assert.Equal(t, "71", src.Value(4, 8))
}

func TestOpenXLS_Errors(t *testing.T) {
	t.Run("no worksheet", func(t *testing.T) {
		book := bifftest.Book{Sheets: []bifftest.Sheet{{Name: "Chart1", Type: 2}}}
		_, err := openXLS(bytes.NewReader(bifftest.Container("Workbook", book.Bytes())))
		assert.ErrorIs(t, err, ErrNoSheet)
	})

	t.Run("encrypted", func(t *testing.T) {
		book := legacyBook()
		book.Globals = [][]byte{bifftest.Rec(bifftest.TypeFilePass, make([]byte, 6))}
		_, err := openXLS(bytes.NewReader(xlsBytes(book)))
		assert.ErrorContains(t, err, "open xls")
		assert.ErrorContains(t, err, "encrypted")
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := openXLS(bytes.NewReader([]byte("plain text, not BIFF")))
		assert.ErrorContains(t, err, "open xls")
	})

	t.Run("truncated", func(t *testing.T) {
		stream := bifftest.Book{Sheets: []bifftest.Sheet{{Name: "S", Records: [][]byte{
			bifftest.Label(0, 0, 0, "cut short"),
		}}}}.Bytes()
		_, err := openXLS(bytes.NewReader(stream[:len(stream)-12]))
		assert.ErrorContains(t, err, "open xls")
	})
}

func TestOpenSheet_Errors(t *testing.T) {
	_, err := openSheet(FormatXLSX, bytes.NewReader([]byte("definitely not a zip")))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "open xlsx")

	_, err = openSheet(FormatXLS, bytes.NewReader(nil))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")

	_, err = openSheet(Format("ods"), bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
