// Package biff reads the first worksheet of a legacy Excel workbook
// (BIFF8, Excel 97 through 2003).
//
// Only cell content is decoded: values, their cell type, the number format
// that applies to them and, where the token stream can be rendered, the
// formula text. Fonts, colours and other presentation records are skipped.
package biff

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/richardlehane/mscfb"
)

// Record types.
const (
	recFormula   = 0x0006
	recEOF       = 0x000A
	recDateMode  = 0x0022
	recFilePass  = 0x002F
	recContinue  = 0x003C
	recSheet     = 0x0085
	recMulRK     = 0x00BD
	recMulBlank  = 0x00BE
	recRString   = 0x00D6
	recXF        = 0x00E0
	recSST       = 0x00FC
	recLabelSST  = 0x00FD
	recBlank     = 0x0201
	recNumber    = 0x0203
	recLabel     = 0x0204
	recBoolErr   = 0x0205
	recString    = 0x0207
	recRow       = 0x0208
	recArray     = 0x0221
	recTable     = 0x0236
	recRK        = 0x027E
	recFormat    = 0x041E
	recShrFmla   = 0x04BC
	recBOF       = 0x0809
	biff8Version = 0x0600

	substreamGlobals   = 0x0005
	substreamWorksheet = 0x0010
	sheetTypeWorksheet = 0x00
)

var (
	// ErrNotBIFF8 reports a stream that is not a BIFF8 workbook.
	ErrNotBIFF8 = errors.New("not a BIFF8 workbook")
	// ErrEncrypted reports a password-protected workbook.
	ErrEncrypted = errors.New("workbook is encrypted")
	// ErrNoWorksheet reports a workbook without any worksheet.
	ErrNoWorksheet = errors.New("workbook has no worksheet")
	// ErrCorrupt reports a truncated or inconsistent record.
	ErrCorrupt = errors.New("corrupt workbook")
)

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Workbook is a decoded legacy workbook.
type Workbook struct {
	// Date1904 is set when serial dates count from 1904-01-01.
	Date1904 bool
	// SheetNames lists every sheet in workbook order.
	SheetNames []string
	// Sheet is the first worksheet.
	Sheet *Sheet

	xfFormats []int          // XF index -> number format id
	formats   map[int]string // custom number format codes
	sst       []string
}

// NumberFormat returns the number format applied through XF index xf. Code
// is empty for built-in formats that the file does not spell out.
func (wb *Workbook) NumberFormat(xf int) (id int, code string) {
	if xf < 0 || xf >= len(wb.xfFormats) {
		return 0, ""
	}
	id = wb.xfFormats[xf]
	return id, wb.formats[id]
}

// Open reads a workbook from an OLE2 compound document, or from a bare
// BIFF8 stream that was saved without the container.
func Open(data []byte) (*Workbook, error) {
	if !bytes.HasPrefix(data, oleSignature) {
		return Parse(data)
	}

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open compound document: %w", err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "Workbook" && entry.Name != "Book" {
			continue
		}
		stream := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, stream); err != nil {
			return nil, fmt.Errorf("read %s stream: %w", entry.Name, err)
		}
		return Parse(stream)
	}
	return nil, fmt.Errorf("%w: no Workbook stream", ErrNotBIFF8)
}

// Parse decodes a bare BIFF8 workbook stream.
func Parse(stream []byte) (*Workbook, error) {
	wb := &Workbook{formats: make(map[int]string)}

	sheets, err := wb.readGlobals(stream)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, ErrNoWorksheet
	}

	first := sheets[0]
	if first.offset < 0 || first.offset >= len(stream) {
		return nil, fmt.Errorf("%w: sheet offset %d outside stream", ErrCorrupt, first.offset)
	}
	wb.Sheet, err = wb.readSheet(stream[first.offset:])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", first.name, err)
	}
	wb.Sheet.Name = first.name
	return wb, nil
}

// boundSheet is a worksheet declared in the globals substream.
type boundSheet struct {
	name   string
	offset int
}

// readGlobals walks the workbook globals substream and returns the
// worksheets it declares, in workbook order.
func (wb *Workbook) readGlobals(stream []byte) ([]boundSheet, error) {
	rr := &recordReader{buf: stream}
	if err := rr.expectBOF(substreamGlobals); err != nil {
		return nil, err
	}

	var sheets []boundSheet
	for {
		rec, ok := rr.next()
		if !ok {
			return nil, fmt.Errorf("%w: globals end without EOF", ErrCorrupt)
		}

		switch rec.typ {
		case recEOF:
			return sheets, nil
		case recFilePass:
			return nil, ErrEncrypted
		case recDateMode:
			c := cursor{b: rec.data}
			wb.Date1904 = c.u16() == 1
		case recFormat:
			c := cursor{b: rec.data}
			id := int(c.u16())
			code := c.unicodeString16()
			if c.short {
				return nil, fmt.Errorf("%w: FORMAT record", ErrCorrupt)
			}
			wb.formats[id] = code
		case recXF:
			c := cursor{b: rec.data}
			c.skip(2) // font
			id := int(c.u16())
			if c.short {
				return nil, fmt.Errorf("%w: XF record", ErrCorrupt)
			}
			wb.xfFormats = append(wb.xfFormats, id)
		case recSST:
			sst, err := readSST(rec.data, rr.continuations())
			if err != nil {
				return nil, err
			}
			wb.sst = sst
		case recSheet:
			c := cursor{b: rec.data}
			pos := int(c.u32())
			c.skip(1) // visibility
			typ := c.u8()
			name := c.unicodeString8()
			if c.short {
				return nil, fmt.Errorf("%w: BOUNDSHEET record", ErrCorrupt)
			}
			wb.SheetNames = append(wb.SheetNames, name)
			if typ == sheetTypeWorksheet {
				sheets = append(sheets, boundSheet{name: name, offset: pos})
			}
		}
	}
}
