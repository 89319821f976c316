package biff

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// continued reads a record body split across CONTINUE records. Character
// data that crosses into the next part restarts with a fresh option byte;
// every other field continues byte for byte.
type continued struct {
	parts [][]byte
	part  int
	off   int
	short bool
}

func newContinued(first []byte, rest [][]byte) *continued {
	return &continued{parts: append([][]byte{first}, rest...)}
}

func (r *continued) bytes(n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		if r.part >= len(r.parts) {
			r.short = true
			return out
		}
		cur := r.parts[r.part]
		if r.off >= len(cur) {
			r.part++
			r.off = 0
			continue
		}
		k := min(n-len(out), len(cur)-r.off)
		out = append(out, cur[r.off:r.off+k]...)
		r.off += k
	}
	return out
}

func (r *continued) u8() uint8 {
	if p := r.bytes(1); len(p) == 1 {
		return p[0]
	}
	return 0
}

func (r *continued) u16() uint16 {
	if p := r.bytes(2); len(p) == 2 {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

func (r *continued) u32() uint32 {
	if p := r.bytes(4); len(p) == 4 {
		return binary.LittleEndian.Uint32(p)
	}
	return 0
}

// str reads an XLUnicodeRichExtendedString and drops its formatting runs
// and phonetic data.
func (r *continued) str() string {
	n := int(r.u16())
	flags := r.u8()

	var runs, ext int
	if flags&0x08 != 0 {
		runs = int(r.u16())
	}
	if flags&0x04 != 0 {
		ext = int(r.u32())
	}

	text := r.chars(n, flags&0x01 != 0)
	r.bytes(4 * runs)
	r.bytes(ext)
	return text
}

func (r *continued) chars(n int, wide bool) string {
	units := make([]uint16, 0, min(n, 1<<12))
	for len(units) < n {
		if r.part >= len(r.parts) {
			r.short = true
			break
		}
		cur := r.parts[r.part]
		if r.off >= len(cur) {
			r.part++
			r.off = 0
			if r.part >= len(r.parts) || len(r.parts[r.part]) == 0 {
				r.short = true
				break
			}
			wide = r.parts[r.part][0]&0x01 != 0
			r.off = 1
			continue
		}

		if !wide {
			units = append(units, uint16(cur[r.off]))
			r.off++
			continue
		}
		if r.off+2 > len(cur) {
			r.short = true
			break
		}
		units = append(units, binary.LittleEndian.Uint16(cur[r.off:]))
		r.off += 2
	}
	return string(utf16.Decode(units))
}

// readSST decodes the shared string table.
func readSST(first []byte, rest [][]byte) ([]string, error) {
	r := newContinued(first, rest)
	r.u32() // total references
	unique := int(r.u32())
	if r.short {
		return nil, fmt.Errorf("%w: SST header", ErrCorrupt)
	}

	sst := make([]string, 0, min(unique, 1<<16))
	for range unique {
		s := r.str()
		if r.short {
			return nil, fmt.Errorf("%w: SST entry %d of %d", ErrCorrupt, len(sst), unique)
		}
		sst = append(sst, s)
	}
	return sst, nil
}

// readStringResult decodes the STRING record that carries a formula's text
// result.
func readStringResult(first []byte, rest [][]byte) (string, error) {
	r := newContinued(first, rest)
	s := r.str()
	if r.short {
		return "", fmt.Errorf("%w: STRING record", ErrCorrupt)
	}
	return s, nil
}
