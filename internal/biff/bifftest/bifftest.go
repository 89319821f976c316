// Package bifftest assembles small BIFF8 workbooks for tests.
//
// Book builds the workbook stream; Container wraps a stream in the compound
// document that .xls files are stored in.
package bifftest

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Record types used by the builders.
const (
	TypeFormula  = 0x0006
	TypeEOF      = 0x000A
	TypeDateMode = 0x0022
	TypeFilePass = 0x002F
	TypeContinue = 0x003C
	TypeSheet    = 0x0085
	TypeMulRK    = 0x00BD
	TypeMulBlank = 0x00BE
	TypeXF       = 0x00E0
	TypeSST      = 0x00FC
	TypeLabelSST = 0x00FD
	TypeBlank    = 0x0201
	TypeNumber   = 0x0203
	TypeLabel    = 0x0204
	TypeBoolErr  = 0x0205
	TypeString   = 0x0207
	TypeRow      = 0x0208
	TypeRK       = 0x027E
	TypeFormat   = 0x041E
	TypeShrFmla  = 0x04BC
	TypeBOF      = 0x0809
)

// Excel error codes.
const (
	ErrDiv0  = 0x07
	ErrValue = 0x0F
	ErrRef   = 0x17
	ErrNA    = 0x2A
)

// Format is a custom number format declared in the workbook globals.
type Format struct {
	ID   int
	Code string
}

// Sheet is one sheet of a Book. Records go between its BOF and EOF.
type Sheet struct {
	Name    string
	Type    uint8 // 0 worksheet, 2 chart
	Records [][]byte
}

// Book describes a workbook stream.
type Book struct {
	Date1904 bool
	Formats  []Format
	XFs      []int // number format id per XF index
	Strings  []string
	Globals  [][]byte // raw records placed after the shared strings
	Sheets   []Sheet
}

// Bytes encodes the workbook stream.
func (b Book) Bytes() []byte {
	var globals []byte
	globals = append(globals, BOF(0x0005)...)
	if b.Date1904 {
		globals = append(globals, Rec(TypeDateMode, U16(1))...)
	}
	for _, f := range b.Formats {
		globals = append(globals, Rec(TypeFormat, U16(uint16(f.ID)), Str16(f.Code))...)
	}
	for _, id := range b.XFs {
		globals = append(globals, XF(id)...)
	}
	if len(b.Strings) > 0 {
		globals = append(globals, SST(b.Strings...)...)
	}
	for _, r := range b.Globals {
		globals = append(globals, r...)
	}

	bodies := make([][]byte, len(b.Sheets))
	for i, s := range b.Sheets {
		var body []byte
		body = append(body, BOF(0x0010)...)
		for _, r := range s.Records {
			body = append(body, r...)
		}
		bodies[i] = append(body, Rec(TypeEOF)...)
	}

	// BOUNDSHEET size does not depend on the offset it carries.
	offset := len(globals) + len(Rec(TypeEOF))
	for _, s := range b.Sheets {
		offset += len(boundSheet(0, s))
	}
	for i, s := range b.Sheets {
		globals = append(globals, boundSheet(offset, s)...)
		offset += len(bodies[i])
	}
	globals = append(globals, Rec(TypeEOF)...)

	for _, body := range bodies {
		globals = append(globals, body...)
	}
	return globals
}

func boundSheet(offset int, s Sheet) []byte {
	return Rec(TypeSheet, U32(uint32(offset)), []byte{0, s.Type}, Str8(s.Name))
}

// Rec encodes one record from its body parts.
func Rec(typ uint16, body ...[]byte) []byte {
	var data []byte
	for _, p := range body {
		data = append(data, p...)
	}
	out := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint16(out, typ)
	binary.LittleEndian.PutUint16(out[2:], uint16(len(data)))
	return append(out, data...)
}

// BOF encodes a BIFF8 beginning-of-substream record.
func BOF(substream uint16) []byte {
	return Rec(TypeBOF, U16(0x0600), U16(substream), make([]byte, 12))
}

// XF encodes a cell XF record that applies number format id.
func XF(id int) []byte {
	return Rec(TypeXF, U16(0), U16(uint16(id)), make([]byte, 16))
}

// SST encodes a shared string table in a single record.
func SST(strs ...string) []byte {
	body := append(U32(uint32(len(strs))), U32(uint32(len(strs)))...)
	for _, s := range strs {
		body = append(body, Str16(s)...)
	}
	return Rec(TypeSST, body)
}

func U16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func U32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func F64(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

// Str16 encodes an XLUnicodeString, compressed when every character fits
// in Latin-1.
func Str16(s string) []byte {
	units, wide := encode(s)
	return append(U16(uint16(len(units))), chars(units, wide)...)
}

// Str8 encodes a ShortXLUnicodeString.
func Str8(s string) []byte {
	units, wide := encode(s)
	return append([]byte{byte(len(units))}, chars(units, wide)...)
}

func encode(s string) ([]uint16, bool) {
	units := utf16.Encode([]rune(s))
	for _, u := range units {
		if u > 0xFF {
			return units, true
		}
	}
	return units, false
}

func chars(units []uint16, wide bool) []byte {
	if !wide {
		out := []byte{0x00}
		for _, u := range units {
			out = append(out, byte(u))
		}
		return out
	}
	out := []byte{0x01}
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

func cellHeader(row, col, xf int) []byte {
	return append(append(U16(uint16(row)), U16(uint16(col))...), U16(uint16(xf))...)
}

// Row encodes a ROW record, which stores a row without any cells.
func Row(row int) []byte {
	return Rec(TypeRow, U16(uint16(row)), make([]byte, 14))
}

func Blank(row, col, xf int) []byte {
	return Rec(TypeBlank, cellHeader(row, col, xf))
}

func Number(row, col, xf int, v float64) []byte {
	return Rec(TypeNumber, cellHeader(row, col, xf), F64(v))
}

// RK encodes an integer as an RK record.
func RK(row, col, xf int, v int32) []byte {
	return Rec(TypeRK, cellHeader(row, col, xf), U32(RKInt(v)))
}

// RKInt is the RK encoding of an integer.
func RKInt(v int32) uint32 { return uint32(v)<<2 | 0x02 }

// RKCents is the RK encoding of v/100.
func RKCents(v int32) uint32 { return uint32(v)<<2 | 0x03 }

// MulRK encodes consecutive RK values that start at column first. Each
// value is an RK-encoded number paired with its XF index.
func MulRK(row, first int, xfs []int, values []uint32) []byte {
	body := append(U16(uint16(row)), U16(uint16(first))...)
	for i, v := range values {
		body = append(body, U16(uint16(xfs[i]))...)
		body = append(body, U32(v)...)
	}
	body = append(body, U16(uint16(first+len(values)-1))...)
	return Rec(TypeMulRK, body)
}

func MulBlank(row, first, n, xf int) []byte {
	body := append(U16(uint16(row)), U16(uint16(first))...)
	for range n {
		body = append(body, U16(uint16(xf))...)
	}
	body = append(body, U16(uint16(first+n-1))...)
	return Rec(TypeMulBlank, body)
}

func LabelSST(row, col, xf, idx int) []byte {
	return Rec(TypeLabelSST, cellHeader(row, col, xf), U32(uint32(idx)))
}

func Label(row, col, xf int, s string) []byte {
	return Rec(TypeLabel, cellHeader(row, col, xf), Str16(s))
}

func Bool(row, col, xf int, v bool) []byte {
	b := byte(0)
	if v {
		b = 1
	}
	return Rec(TypeBoolErr, cellHeader(row, col, xf), []byte{b, 0})
}

func Error(row, col, xf int, code uint8) []byte {
	return Rec(TypeBoolErr, cellHeader(row, col, xf), []byte{code, 1})
}

// Formula encodes a FORMULA record with a cached result and a token
// stream. Text results are followed by a STRING record.
func Formula(row, col, xf int, result []byte, tokens ...[]byte) []byte {
	var rgce []byte
	for _, t := range tokens {
		rgce = append(rgce, t...)
	}
	return Rec(TypeFormula, cellHeader(row, col, xf), result, U16(0), U32(0),
		U16(uint16(len(rgce))), rgce)
}

// String encodes the STRING record that carries a formula's text result.
func String(s string) []byte { return Rec(TypeString, Str16(s)) }

func NumberResult(v float64) []byte { return F64(v) }
func TextResult() []byte            { return []byte{0, 0, 0, 0, 0, 0, 0xFF, 0xFF} }
func ErrorResult(code uint8) []byte { return []byte{2, 0, code, 0, 0, 0, 0xFF, 0xFF} }

func BoolResult(v bool) []byte {
	b := byte(0)
	if v {
		b = 1
	}
	return []byte{1, 0, b, 0, 0, 0, 0xFF, 0xFF}
}

// Formula tokens. Ref and Area take 0-based rows and columns and mark
// both relative unless abs is set.

func Ref(row, col int, abs bool) []byte {
	return append([]byte{0x24}, refWords(row, col, abs)...)
}

func Area(r1, c1, r2, c2 int, abs bool) []byte {
	out := []byte{0x25}
	out = append(out, U16(uint16(r1))...)
	out = append(out, U16(uint16(r2))...)
	out = append(out, colWord(c1, abs)...)
	return append(out, colWord(c2, abs)...)
}

func refWords(row, col int, abs bool) []byte {
	return append(U16(uint16(row)), colWord(col, abs)...)
}

func colWord(col int, abs bool) []byte {
	w := uint16(col)
	if !abs {
		w |= 0xC000
	}
	return U16(w)
}

func Int(v uint16) []byte   { return append([]byte{0x1E}, U16(v)...) }
func Num(v float64) []byte  { return append([]byte{0x1F}, F64(v)...) }
func Text(s string) []byte  { return append([]byte{0x17}, Str8(s)...) }
func Op(ptg byte) []byte    { return []byte{ptg} }
func AttrSum() []byte       { return []byte{0x19, 0x10, 0, 0} }
func Func(id uint16) []byte { return append([]byte{0x41}, U16(id)...) }

// FuncVar calls a variable-arity built-in function with argc arguments.
func FuncVar(argc byte, id uint16) []byte {
	return append([]byte{0x42, argc}, U16(id)...)
}

// Operator tokens.
const (
	OpAdd    = 0x03
	OpSub    = 0x04
	OpMul    = 0x05
	OpDiv    = 0x06
	OpConcat = 0x08
	OpEq     = 0x0B
	OpNeg    = 0x13
	OpParen  = 0x15
)

// Name is a defined-name token, which a lone formula record cannot resolve.
func Name(idx uint32) []byte { return append([]byte{0x23}, U32(idx)...) }
