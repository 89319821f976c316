package bifftest

import (
	"encoding/binary"
	"unicode/utf16"
)

const (
	sectorSize  = 512
	miniCutoff  = 4096
	endOfChain  = 0xFFFFFFFE
	fatSector   = 0xFFFFFFFD
	freeSector  = 0xFFFFFFFF
	noStream    = 0xFFFFFFFF
	typeStream  = 0x02
	typeRoot    = 0x05
	colourBlack = 0x01
)

// Container stores stream as the only entry of a version 3 compound
// document, under the given name ("Workbook" for BIFF8). Streams shorter
// than the mini-stream cutoff are zero padded so the regular FAT holds them.
//
// Layout: header, one FAT sector, one directory sector, then the stream.
func Container(name string, stream []byte) []byte {
	if len(stream) < miniCutoff {
		stream = append(stream, make([]byte, miniCutoff-len(stream))...)
	}
	n := (len(stream) + sectorSize - 1) / sectorSize
	if n+2 > sectorSize/4 {
		panic("bifftest: stream too large for a single FAT sector")
	}

	out := make([]byte, sectorSize*(3+n))
	le := binary.LittleEndian

	h := out[:sectorSize]
	copy(h, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le.PutUint16(h[24:], 0x003E) // minor version
	le.PutUint16(h[26:], 0x0003) // major version
	le.PutUint16(h[28:], 0xFFFE) // byte order
	le.PutUint16(h[30:], 9)      // sector shift
	le.PutUint16(h[32:], 6)      // mini sector shift
	le.PutUint32(h[44:], 1)      // FAT sectors
	le.PutUint32(h[48:], 1)      // first directory sector
	le.PutUint32(h[56:], miniCutoff)
	le.PutUint32(h[60:], endOfChain) // mini FAT
	le.PutUint32(h[68:], endOfChain) // DIFAT
	le.PutUint32(h[76:], 0)          // FAT lives in sector 0
	for i := 80; i < sectorSize; i += 4 {
		le.PutUint32(h[i:], freeSector)
	}

	fat := out[sectorSize : 2*sectorSize]
	for i := range sectorSize / 4 {
		le.PutUint32(fat[4*i:], freeSector)
	}
	le.PutUint32(fat[0:], fatSector)
	le.PutUint32(fat[4:], endOfChain) // directory
	for i := range n {
		next := uint32(i + 3)
		if i == n-1 {
			next = endOfChain
		}
		le.PutUint32(fat[4*(i+2):], next)
	}

	dir := out[2*sectorSize : 3*sectorSize]
	for i := range sectorSize / 128 {
		e := dir[128*i : 128*(i+1)]
		le.PutUint32(e[68:], noStream)
		le.PutUint32(e[72:], noStream)
		le.PutUint32(e[76:], noStream)
	}
	dirEntry(dir[0:128], "Root Entry", typeRoot, 1, endOfChain, 0)
	dirEntry(dir[128:256], name, typeStream, noStream, 2, len(stream))

	copy(out[3*sectorSize:], stream)
	return out
}

func dirEntry(e []byte, name string, typ byte, child, start uint32, size int) {
	le := binary.LittleEndian
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		le.PutUint16(e[2*i:], u)
	}
	le.PutUint16(e[64:], uint16(2*(len(units)+1)))
	e[66] = typ
	e[67] = colourBlack
	le.PutUint32(e[76:], child)
	le.PutUint32(e[116:], start)
	le.PutUint32(e[120:], uint32(size))
}
