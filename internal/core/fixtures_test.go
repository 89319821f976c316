package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/JonMunkholm/tabmap/internal/biff/bifftest"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// person is the record type most tests import into.
type person struct {
	Name   string
	Age    int
	Score  float64
	Joined time.Time
	Active bool
	Salary pgtype.Numeric
	Code   Char
	Nick   *string
}

func personBinding() *Binding[person] {
	return Bind[person]("people", "People").
		Group("Test").
		Column("Name", "Name", 1, func(p *person) any { return &p.Name }).
		Column("Age", "Age", 2, func(p *person) any { return &p.Age }).
		Column("Score", "Score", 3, func(p *person) any { return &p.Score }).
		Column("Joined", "Joined", 4, func(p *person) any { return &p.Joined }).
		Column("Active", "Active", 5, func(p *person) any { return &p.Active }).
		Column("Salary", "Salary", 6, func(p *person) any { return &p.Salary }).
		Column("Code", "Code", 0, func(p *person) any { return &p.Code }).
		Column("Nick", "Nickname", 7, func(p *person) any { return &p.Nick })
}

// xlsxBytes builds a one-sheet workbook. A nil row leaves that row absent.
func xlsxBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(DefaultSheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// xlsBytes stores a one-sheet legacy workbook named DefaultSheet in a
// compound document.
func xlsBytes(book bifftest.Book, records ...[]byte) []byte {
	book.Sheets = []bifftest.Sheet{{Name: DefaultSheet, Records: records}}
	return bifftest.Container("Workbook", book.Bytes())
}

// openWorkbook parses exported bytes back into a file for assertions.
func openWorkbook(t *testing.T, wb *Workbook) *excelize.File {
	t.Helper()

	data, err := wb.Bytes()
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func numeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()

	var n pgtype.Numeric
	require.NoError(t, n.Scan(s))
	return n
}

// fakeSheet is an in-memory sheetSource. A nil row is absent.
type fakeSheet [][]string

func (s fakeSheet) RowCount() int          { return len(s) }
func (s fakeSheet) RowExists(row int) bool { return row < len(s) && s[row] != nil }
func (s fakeSheet) ColCount(row int) int   { return len(s[row]) }
func (s fakeSheet) Close() error           { return nil }

func (s fakeSheet) Value(row, col int) string {
	if row >= len(s) || col >= len(s[row]) {
		return ""
	}
	return s[row][col]
}

// registerPeople registers personBinding on a clean registry.
func registerPeople(t *testing.T) *Binding[person] {
	t.Helper()

	Clear()
	t.Cleanup(Clear)

	b := personBinding()
	Register(b)
	return b
}
