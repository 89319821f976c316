package biff

import "fmt"

// Kind is the type of value a cell holds.
type Kind uint8

const (
	KindBlank  Kind = iota // present but empty
	KindNumber             // Number holds the value; dates are numbers with a date format
	KindText               // Text holds the value
	KindBool               // Bool holds the value
	KindError              // ErrCode holds the Excel error code
)

// Cell is one decoded cell. For formula cells the value fields hold the
// cached result.
type Cell struct {
	Kind    Kind
	Number  float64
	Text    string
	Bool    bool
	ErrCode uint8
	XF      int

	// Formula is the formula text without the leading "=". It is empty for
	// constants and for formulas whose tokens cannot be rendered on their
	// own (shared and array formulas, defined names, external references).
	Formula string
}

// Sheet holds the cells of one worksheet. Rows and columns are 0-based.
type Sheet struct {
	Name string

	rows   map[int]map[int]Cell
	lastRC map[int]int // row -> last column index + 1
	nrows  int
}

func newSheet() *Sheet {
	return &Sheet{
		rows:   make(map[int]map[int]Cell),
		lastRC: make(map[int]int),
	}
}

// Rows returns the last present row index plus one.
func (s *Sheet) Rows() int { return s.nrows }

// HasRow reports whether the row has a ROW record or any cell record.
func (s *Sheet) HasRow(row int) bool {
	_, ok := s.rows[row]
	return ok
}

// Cols returns the last present column index of a row plus one.
func (s *Sheet) Cols(row int) int { return s.lastRC[row] }

// Cell returns the cell at row and col, if present.
func (s *Sheet) Cell(row, col int) (Cell, bool) {
	c, ok := s.rows[row][col]
	return c, ok
}

func (s *Sheet) touch(row int) map[int]Cell {
	cells, ok := s.rows[row]
	if !ok {
		cells = make(map[int]Cell)
		s.rows[row] = cells
	}
	s.nrows = max(s.nrows, row+1)
	return cells
}

func (s *Sheet) put(row, col int, c Cell) {
	s.touch(row)[col] = c
	s.lastRC[row] = max(s.lastRC[row], col+1)
}

// readSheet decodes the worksheet substream that starts at the head of buf.
func (wb *Workbook) readSheet(buf []byte) (*Sheet, error) {
	rr := &recordReader{buf: buf}
	if err := rr.expectBOF(substreamWorksheet); err != nil {
		return nil, err
	}

	s := newSheet()
	for {
		rec, ok := rr.next()
		if !ok {
			return nil, fmt.Errorf("%w: worksheet ends without EOF", ErrCorrupt)
		}
		c := cursor{b: rec.data}

		switch rec.typ {
		case recEOF:
			return s, nil

		case recRow:
			s.touch(int(c.u16()))

		case recBlank:
			row, col, xf := c.cellHeader()
			s.put(row, col, Cell{Kind: KindBlank, XF: xf})

		case recMulBlank:
			row, first := int(c.u16()), int(c.u16())
			n := (c.remaining() - 2) / 2
			for i := range n {
				s.put(row, first+i, Cell{Kind: KindBlank, XF: int(c.u16())})
			}

		case recNumber:
			row, col, xf := c.cellHeader()
			s.put(row, col, Cell{Kind: KindNumber, Number: c.f64(), XF: xf})

		case recRK:
			row, col, xf := c.cellHeader()
			s.put(row, col, Cell{Kind: KindNumber, Number: rk(c.u32()), XF: xf})

		case recMulRK:
			row, first := int(c.u16()), int(c.u16())
			n := (c.remaining() - 2) / 6
			for i := range n {
				xf := int(c.u16())
				s.put(row, first+i, Cell{Kind: KindNumber, Number: rk(c.u32()), XF: xf})
			}

		case recLabelSST:
			row, col, xf := c.cellHeader()
			idx := int(c.u32())
			if idx >= len(wb.sst) {
				return nil, fmt.Errorf("%w: shared string %d of %d", ErrCorrupt, idx, len(wb.sst))
			}
			s.put(row, col, Cell{Kind: KindText, Text: wb.sst[idx], XF: xf})

		case recLabel, recRString:
			row, col, xf := c.cellHeader()
			s.put(row, col, Cell{Kind: KindText, Text: c.unicodeString16(), XF: xf})

		case recBoolErr:
			row, col, xf := c.cellHeader()
			v, isErr := c.u8(), c.u8()
			cell := Cell{Kind: KindBool, Bool: v != 0, XF: xf}
			if isErr != 0 {
				cell = Cell{Kind: KindError, ErrCode: v, XF: xf}
			}
			s.put(row, col, cell)

		case recFormula:
			row, col, cell, err := wb.readFormula(&c, rr)
			if err != nil {
				return nil, err
			}
			s.put(row, col, cell)
		}

		if c.short {
			return nil, fmt.Errorf("%w: record %#04x", ErrCorrupt, rec.typ)
		}
	}
}

// cellHeader reads the row, column and XF index every cell record starts with.
func (c *cursor) cellHeader() (row, col, xf int) {
	return int(c.u16()), int(c.u16()), int(c.u16())
}

// readFormula decodes a FORMULA record and, for text results, the STRING
// record that follows it.
func (wb *Workbook) readFormula(c *cursor, rr *recordReader) (int, int, Cell, error) {
	row, col, xf := c.cellHeader()
	result := c.take(8)
	c.skip(2 + 4) // flags, chain
	size := int(c.u16())
	tokens := c.take(size)
	if c.short {
		return 0, 0, Cell{}, fmt.Errorf("%w: FORMULA record at row %d", ErrCorrupt, row)
	}

	cell := Cell{XF: xf}
	if text, ok := renderFormula(tokens); ok {
		cell.Formula = text
	}

	if result[6] != 0xFF || result[7] != 0xFF {
		rc := cursor{b: result}
		cell.Kind, cell.Number = KindNumber, rc.f64()
		return row, col, cell, nil
	}

	switch result[0] {
	case 0x00:
		cell.Kind = KindText
		rr.skipFormulaExtras()
		if typ, ok := rr.peek(); ok && typ == recString {
			rec, _ := rr.next()
			text, err := readStringResult(rec.data, rr.continuations())
			if err != nil {
				return 0, 0, Cell{}, err
			}
			cell.Text = text
		}
	case 0x01:
		cell.Kind, cell.Bool = KindBool, result[2] != 0
	case 0x02:
		cell.Kind, cell.ErrCode = KindError, result[2]
	default:
		cell.Kind = KindText // empty string result
	}
	return row, col, cell, nil
}

// skipFormulaExtras consumes the shared, array and table records that may
// sit between a FORMULA record and its STRING result.
func (r *recordReader) skipFormulaExtras() {
	for {
		typ, ok := r.peek()
		if !ok || (typ != recShrFmla && typ != recArray && typ != recTable) {
			return
		}
		r.next()
	}
}
