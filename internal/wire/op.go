package wire

import (
	"encoding/binary"
	"fmt"

	"nmeshed/internal/clock"
)

// OpFrame carries a single replicated operation (spec.md §4.2, §4.5):
//
//	[workspace:16][key_len:u32][key][timestamp:16][writer_len:u8][writer]
//	[seq:u64][is_delete:u8][value_len:u32][value]
type OpFrame struct {
	Workspace [16]byte
	Key       string
	Timestamp clock.Hybrid
	Writer    string
	Seq       uint64
	IsDelete  bool
	Value     []byte
}

// EncodeOp serialises an OpFrame's payload (without the outer frame header).
func EncodeOp(op OpFrame) []byte {
	if len(op.Writer) > 255 {
		op.Writer = op.Writer[:255]
	}
	size := 16 + 4 + len(op.Key) + hybridWireLen + 1 + len(op.Writer) + 8 + 1 + 4 + len(op.Value)
	buf := make([]byte, size)

	off := 0
	copy(buf[off:off+16], op.Workspace[:])
	off += 16

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(op.Key)))
	off += 4
	off += copy(buf[off:], op.Key)

	ts := EncodeHybrid(op.Timestamp)
	off += copy(buf[off:], ts[:])

	buf[off] = byte(len(op.Writer))
	off++
	off += copy(buf[off:], op.Writer)

	binary.LittleEndian.PutUint64(buf[off:], op.Seq)
	off += 8

	if op.IsDelete {
		buf[off] = 1
	}
	off++

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(op.Value)))
	off += 4
	copy(buf[off:], op.Value)

	return buf
}

// DecodeOp parses an OpFrame payload, rejecting any buffer that does not
// account for its declared field lengths exactly.
func DecodeOp(buf []byte) (OpFrame, error) {
	var op OpFrame

	if len(buf) < 16+4 {
		return op, fmt.Errorf("wire: op payload too short for workspace+key_len")
	}
	copy(op.Workspace[:], buf[0:16])
	off := 16

	keyLen := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if keyLen < 0 || off+keyLen > len(buf) {
		return op, fmt.Errorf("wire: op key_len %d out of bounds", keyLen)
	}
	op.Key = string(buf[off : off+keyLen])
	off += keyLen

	if off+hybridWireLen > len(buf) {
		return op, fmt.Errorf("wire: op payload too short for timestamp")
	}
	ts, err := DecodeHybrid(buf[off : off+hybridWireLen])
	if err != nil {
		return op, err
	}
	op.Timestamp = ts
	off += hybridWireLen

	if off+1 > len(buf) {
		return op, fmt.Errorf("wire: op payload too short for writer_len")
	}
	writerLen := int(buf[off])
	off++
	if off+writerLen > len(buf) {
		return op, fmt.Errorf("wire: op writer_len %d out of bounds", writerLen)
	}
	op.Writer = string(buf[off : off+writerLen])
	off += writerLen

	if off+8 > len(buf) {
		return op, fmt.Errorf("wire: op payload too short for seq")
	}
	op.Seq = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	if off+1 > len(buf) {
		return op, fmt.Errorf("wire: op payload too short for is_delete")
	}
	op.IsDelete = buf[off] != 0
	off++

	if off+4 > len(buf) {
		return op, fmt.Errorf("wire: op payload too short for value_len")
	}
	valueLen := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if valueLen < 0 || off+valueLen != len(buf) {
		return op, fmt.Errorf("wire: op value_len %d does not match remaining payload", valueLen)
	}
	op.Value = append([]byte(nil), buf[off:off+valueLen]...)

	return op, nil
}
