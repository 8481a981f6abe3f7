package wire

import (
	"encoding/binary"
	"fmt"
)

// ActorRegistryFrame maps a compact ordinal (its position in Actors) to a
// writer id, so a following ColumnarBatchFrame can reference writers by
// index instead of repeating the string on every row (spec.md §4.5).
type ActorRegistryFrame struct {
	Actors []string
}

// EncodeActorRegistry serialises an ActorRegistryFrame payload:
// [count:u32]{[writer_len:u8][writer]}*count.
func EncodeActorRegistry(a ActorRegistryFrame) []byte {
	size := 4
	for _, w := range a.Actors {
		size += 1 + len(w)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(a.Actors)))
	off := 4
	for _, w := range a.Actors {
		if len(w) > 255 {
			w = w[:255]
		}
		buf[off] = byte(len(w))
		off++
		off += copy(buf[off:], w)
	}
	return buf
}

// DecodeActorRegistry parses an ActorRegistryFrame payload.
func DecodeActorRegistry(buf []byte) (ActorRegistryFrame, error) {
	if len(buf) < 4 {
		return ActorRegistryFrame{}, fmt.Errorf("wire: actor registry payload too short")
	}
	count := int(binary.LittleEndian.Uint32(buf[0:4]))
	off := 4
	actors := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if off+1 > len(buf) {
			return ActorRegistryFrame{}, fmt.Errorf("wire: actor registry truncated at entry %d", i)
		}
		wl := int(buf[off])
		off++
		if off+wl > len(buf) {
			return ActorRegistryFrame{}, fmt.Errorf("wire: actor registry entry %d out of bounds", i)
		}
		actors = append(actors, string(buf[off:off+wl]))
		off += wl
	}
	if off != len(buf) {
		return ActorRegistryFrame{}, fmt.Errorf("wire: actor registry has trailing bytes")
	}
	return ActorRegistryFrame{Actors: actors}, nil
}

// ColumnarBatchFrame is a compacted representation of many OpFrames sharing
// a workspace, storing each field as a parallel column rather than N
// repeated structs (spec.md §4.5). Timestamps and sequences are stored as
// signed deltas against a header base; the timestamp's node component is
// not stored per row — it is recovered from the writer id referenced by
// ActorIdxs via the same stable hash the hybrid clock uses, so a preceding
// ActorRegistryFrame must already be known to the decoder.
type ColumnarBatchFrame struct {
	Workspace    [16]byte
	BasePhysical uint64
	BaseLogical  uint16
	BaseSeq      uint64

	Keys        []string
	TSDeltaPhys []int64 // Physical - BasePhysical
	TSLogical   []uint16
	ActorIdxs   []uint32 // index into the preceding ActorRegistryFrame
	SeqDeltas   []int64  // Seq - BaseSeq, as signed delta
	ValueBlobs  [][]byte
	IsDeletes   []bool
}

// EncodeColumnarBatch serialises a ColumnarBatchFrame payload. All column
// slices must share len(Keys) entries; Encode panics on a length mismatch
// since this indicates a construction bug, not malformed wire input.
func EncodeColumnarBatch(c ColumnarBatchFrame) []byte {
	n := len(c.Keys)
	if len(c.TSDeltaPhys) != n || len(c.TSLogical) != n || len(c.ActorIdxs) != n ||
		len(c.SeqDeltas) != n || len(c.ValueBlobs) != n || len(c.IsDeletes) != n {
		panic("wire: columnar batch columns have mismatched lengths")
	}

	size := 16 + 8 + 2 + 8 + 4
	for i := 0; i < n; i++ {
		size += 4 + len(c.Keys[i]) // key
		size += 8 + 2              // ts delta + ts logical
		size += 4                  // actor idx
		size += 8                  // seq delta
		size += 4 + len(c.ValueBlobs[i])
		size += 1 // is_delete
	}

	buf := make([]byte, size)
	off := 0
	off += copy(buf[off:], c.Workspace[:])
	binary.LittleEndian.PutUint64(buf[off:], c.BasePhysical)
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], c.BaseLogical)
	off += 2
	binary.LittleEndian.PutUint64(buf[off:], c.BaseSeq)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(n))
	off += 4

	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(c.Keys[i])))
		off += 4
		off += copy(buf[off:], c.Keys[i])

		binary.LittleEndian.PutUint64(buf[off:], uint64(c.TSDeltaPhys[i]))
		off += 8
		binary.LittleEndian.PutUint16(buf[off:], c.TSLogical[i])
		off += 2

		binary.LittleEndian.PutUint32(buf[off:], c.ActorIdxs[i])
		off += 4

		binary.LittleEndian.PutUint64(buf[off:], uint64(c.SeqDeltas[i]))
		off += 8

		binary.LittleEndian.PutUint32(buf[off:], uint32(len(c.ValueBlobs[i])))
		off += 4
		off += copy(buf[off:], c.ValueBlobs[i])

		if c.IsDeletes[i] {
			buf[off] = 1
		}
		off++
	}

	return buf
}

// DecodeColumnarBatch parses a ColumnarBatchFrame payload.
func DecodeColumnarBatch(buf []byte) (ColumnarBatchFrame, error) {
	var c ColumnarBatchFrame
	if len(buf) < 16+8+2+8+4 {
		return c, fmt.Errorf("wire: columnar batch header too short")
	}
	off := 0
	copy(c.Workspace[:], buf[off:off+16])
	off += 16
	c.BasePhysical = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.BaseLogical = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.BaseSeq = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	n := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	c.Keys = make([]string, 0, n)
	c.TSDeltaPhys = make([]int64, 0, n)
	c.TSLogical = make([]uint16, 0, n)
	c.ActorIdxs = make([]uint32, 0, n)
	c.SeqDeltas = make([]int64, 0, n)
	c.ValueBlobs = make([][]byte, 0, n)
	c.IsDeletes = make([]bool, 0, n)

	for i := 0; i < n; i++ {
		if off+4 > len(buf) {
			return c, fmt.Errorf("wire: columnar batch truncated at row %d (key_len)", i)
		}
		kl := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		if kl < 0 || off+kl > len(buf) {
			return c, fmt.Errorf("wire: columnar batch row %d key out of bounds", i)
		}
		c.Keys = append(c.Keys, string(buf[off:off+kl]))
		off += kl

		if off+8+2 > len(buf) {
			return c, fmt.Errorf("wire: columnar batch truncated at row %d (timestamp)", i)
		}
		c.TSDeltaPhys = append(c.TSDeltaPhys, int64(binary.LittleEndian.Uint64(buf[off:])))
		off += 8
		c.TSLogical = append(c.TSLogical, binary.LittleEndian.Uint16(buf[off:]))
		off += 2

		if off+4 > len(buf) {
			return c, fmt.Errorf("wire: columnar batch truncated at row %d (actor_idx)", i)
		}
		c.ActorIdxs = append(c.ActorIdxs, binary.LittleEndian.Uint32(buf[off:]))
		off += 4

		if off+8 > len(buf) {
			return c, fmt.Errorf("wire: columnar batch truncated at row %d (seq_delta)", i)
		}
		c.SeqDeltas = append(c.SeqDeltas, int64(binary.LittleEndian.Uint64(buf[off:])))
		off += 8

		if off+4 > len(buf) {
			return c, fmt.Errorf("wire: columnar batch truncated at row %d (value_len)", i)
		}
		vl := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		if vl < 0 || off+vl > len(buf) {
			return c, fmt.Errorf("wire: columnar batch row %d value out of bounds", i)
		}
		c.ValueBlobs = append(c.ValueBlobs, append(make([]byte, 0, vl), buf[off:off+vl]...))
		off += vl

		if off+1 > len(buf) {
			return c, fmt.Errorf("wire: columnar batch truncated at row %d (is_delete)", i)
		}
		c.IsDeletes = append(c.IsDeletes, buf[off] != 0)
		off++
	}

	if off != len(buf) {
		return c, fmt.Errorf("wire: columnar batch has trailing bytes")
	}
	return c, nil
}
