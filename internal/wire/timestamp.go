package wire

import (
	"encoding/binary"
	"fmt"

	"nmeshed/internal/clock"
)

// hybridWireLen is the packed size of a Hybrid timestamp on the wire:
// physical (48 bits, stored in 6 bytes) | logical (16 bits) | node (64 bits).
const hybridWireLen = 6 + 2 + 8

// EncodeHybrid packs h into its 16-byte wire representation, little-endian
// per field (spec.md §4.5).
func EncodeHybrid(h clock.Hybrid) [hybridWireLen]byte {
	var out [hybridWireLen]byte

	var physBuf [8]byte
	binary.LittleEndian.PutUint64(physBuf[:], h.Physical)
	copy(out[0:6], physBuf[0:6]) // low 48 bits

	binary.LittleEndian.PutUint16(out[6:8], h.Logical)
	binary.LittleEndian.PutUint64(out[8:16], h.Node)
	return out
}

// DecodeHybrid unpacks a 16-byte wire timestamp.
func DecodeHybrid(b []byte) (clock.Hybrid, error) {
	if len(b) < hybridWireLen {
		return clock.Hybrid{}, fmt.Errorf("wire: timestamp needs %d bytes, got %d", hybridWireLen, len(b))
	}
	var physBuf [8]byte
	copy(physBuf[0:6], b[0:6])
	physical := binary.LittleEndian.Uint64(physBuf[:])
	logical := binary.LittleEndian.Uint16(b[6:8])
	node := binary.LittleEndian.Uint64(b[8:16])
	return clock.Hybrid{Physical: physical, Logical: logical, Node: node}, nil
}
