// Package binfmt provides the fixed-width, big-endian integer codec shared by
// the head and chunk file formats (see the queue package's doc comment for
// the on-disk layout). Callers are expected to have already bounds-checked
// buf before calling — these helpers never error.
package binfmt

import "encoding/binary"

// GetU16 reads a big-endian uint16 at offset.
func GetU16(buf []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(buf[offset : offset+2])
}

// PutU16 writes a big-endian uint16 at offset.
func PutU16(buf []byte, offset int, v uint16) {
	binary.BigEndian.PutUint16(buf[offset:offset+2], v)
}

// GetU32 reads a big-endian uint32 at offset.
func GetU32(buf []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(buf[offset : offset+4])
}

// PutU32 writes a big-endian uint32 at offset.
func PutU32(buf []byte, offset int, v uint32) {
	binary.BigEndian.PutUint32(buf[offset:offset+4], v)
}
