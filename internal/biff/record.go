package biff

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

type record struct {
	typ  uint16
	data []byte
}

// recordReader walks the records of one substream.
type recordReader struct {
	buf []byte
	pos int
}

// next returns the following record. ok is false at the end of the buffer
// or when a record header announces more bytes than remain.
func (r *recordReader) next() (record, bool) {
	if r.pos+4 > len(r.buf) {
		return record{}, false
	}
	typ := binary.LittleEndian.Uint16(r.buf[r.pos:])
	size := int(binary.LittleEndian.Uint16(r.buf[r.pos+2:]))
	if r.pos+4+size > len(r.buf) {
		return record{}, false
	}
	rec := record{typ: typ, data: r.buf[r.pos+4 : r.pos+4+size]}
	r.pos += 4 + size
	return rec, true
}

// peek returns the type of the following record without consuming it.
func (r *recordReader) peek() (uint16, bool) {
	if r.pos+4 > len(r.buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(r.buf[r.pos:]), true
}

// continuations consumes the CONTINUE records that follow the current one.
func (r *recordReader) continuations() [][]byte {
	var parts [][]byte
	for {
		typ, ok := r.peek()
		if !ok || typ != recContinue {
			return parts
		}
		rec, _ := r.next()
		parts = append(parts, rec.data)
	}
}

func (r *recordReader) expectBOF(substream uint16) error {
	rec, ok := r.next()
	if !ok || rec.typ != recBOF {
		return fmt.Errorf("%w: missing BOF record", ErrNotBIFF8)
	}
	c := cursor{b: rec.data}
	version := c.u16()
	typ := c.u16()
	if c.short || version != biff8Version {
		return fmt.Errorf("%w: BOF version %#04x", ErrNotBIFF8, version)
	}
	if typ != substream {
		return fmt.Errorf("%w: substream type %#04x, want %#04x", ErrCorrupt, typ, substream)
	}
	return nil
}

// cursor decodes little-endian fields from one record. Reads past the end
// return zero values and set short.
type cursor struct {
	b     []byte
	off   int
	short bool
}

func (c *cursor) take(n int) []byte {
	if n < 0 || c.off+n > len(c.b) {
		c.short = true
		c.off = len(c.b)
		return nil
	}
	p := c.b[c.off : c.off+n]
	c.off += n
	return p
}

func (c *cursor) skip(n int) { c.take(n) }

func (c *cursor) remaining() int { return len(c.b) - c.off }

func (c *cursor) u8() uint8 {
	if p := c.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (c *cursor) u16() uint16 {
	if p := c.take(2); p != nil {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

func (c *cursor) u32() uint32 {
	if p := c.take(4); p != nil {
		return binary.LittleEndian.Uint32(p)
	}
	return 0
}

func (c *cursor) f64() float64 {
	if p := c.take(8); p != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	}
	return 0
}

// unicodeString16 reads an XLUnicodeString with a 16-bit character count.
func (c *cursor) unicodeString16() string {
	return c.chars(int(c.u16()), c.u8())
}

// unicodeString8 reads a ShortXLUnicodeString with an 8-bit character count.
func (c *cursor) unicodeString8() string {
	return c.chars(int(c.u8()), c.u8())
}

func (c *cursor) chars(n int, flags uint8) string {
	if flags&0x01 != 0 {
		return decodeUTF16(c.take(2 * n))
	}
	return decodeLatin1(c.take(n))
}

// decodeLatin1 decodes compressed BIFF8 text: the high byte of every UTF-16
// code unit is zero, which is exactly ISO 8859-1.
func decodeLatin1(p []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(p)
	if err != nil {
		return string(p)
	}
	return string(s)
}

func decodeUTF16(p []byte) string {
	units := make([]uint16, len(p)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(p[2*i:])
	}
	return string(utf16.Decode(units))
}

// rk decodes an RK number: a 30-bit integer or the top 30 bits of a
// double, optionally scaled by 1/100.
func rk(v uint32) float64 {
	var f float64
	if v&0x02 != 0 {
		f = float64(int32(v) >> 2)
	} else {
		f = math.Float64frombits(uint64(v&0xFFFFFFFC) << 32)
	}
	if v&0x01 != 0 {
		f /= 100
	}
	return f
}
