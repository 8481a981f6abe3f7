package wire

import (
	"encoding/binary"
	"fmt"
)

// SyncKind tags the variant carried by a SyncFrame.
type SyncKind byte

const (
	SyncSnapshot    SyncKind = 0
	SyncStateVector SyncKind = 1
	SyncAck         SyncKind = 2
)

// VectorEntry is one (writer, seq) pair of a state-vector exchange.
type VectorEntry struct {
	Writer string
	Seq    uint64
}

// SyncFrame is a tagged union of the three reconciliation payloads
// exchanged during resync (spec.md §4.6): a full snapshot, a per-writer
// state vector, or an acknowledged sequence number.
type SyncFrame struct {
	Kind     SyncKind
	Snapshot []byte
	Vector   []VectorEntry
	AckSeq   uint64
}

// EncodeSync serialises a SyncFrame payload.
func EncodeSync(s SyncFrame) []byte {
	switch s.Kind {
	case SyncSnapshot:
		buf := make([]byte, 1+4+len(s.Snapshot))
		buf[0] = byte(SyncSnapshot)
		binary.LittleEndian.PutUint32(buf[1:], uint32(len(s.Snapshot)))
		copy(buf[5:], s.Snapshot)
		return buf

	case SyncStateVector:
		size := 1 + 4
		for _, e := range s.Vector {
			size += 1 + len(e.Writer) + 8
		}
		buf := make([]byte, size)
		buf[0] = byte(SyncStateVector)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(s.Vector)))
		off := 5
		for _, e := range s.Vector {
			writer := e.Writer
			if len(writer) > 255 {
				writer = writer[:255]
			}
			buf[off] = byte(len(writer))
			off++
			off += copy(buf[off:], writer)
			binary.LittleEndian.PutUint64(buf[off:], e.Seq)
			off += 8
		}
		return buf

	case SyncAck:
		buf := make([]byte, 1+8)
		buf[0] = byte(SyncAck)
		binary.LittleEndian.PutUint64(buf[1:], s.AckSeq)
		return buf

	default:
		return []byte{byte(s.Kind)}
	}
}

// DecodeSync parses a SyncFrame payload.
func DecodeSync(buf []byte) (SyncFrame, error) {
	if len(buf) < 1 {
		return SyncFrame{}, fmt.Errorf("wire: sync payload empty")
	}
	kind := SyncKind(buf[0])

	switch kind {
	case SyncSnapshot:
		if len(buf) < 5 {
			return SyncFrame{}, fmt.Errorf("wire: sync snapshot payload too short")
		}
		n := int(binary.LittleEndian.Uint32(buf[1:5]))
		if n < 0 || 5+n != len(buf) {
			return SyncFrame{}, fmt.Errorf("wire: sync snapshot length %d does not match remaining payload", n)
		}
		return SyncFrame{Kind: SyncSnapshot, Snapshot: append([]byte(nil), buf[5:5+n]...)}, nil

	case SyncStateVector:
		if len(buf) < 5 {
			return SyncFrame{}, fmt.Errorf("wire: sync state-vector payload too short")
		}
		count := int(binary.LittleEndian.Uint32(buf[1:5]))
		off := 5
		entries := make([]VectorEntry, 0, count)
		for i := 0; i < count; i++ {
			if off+1 > len(buf) {
				return SyncFrame{}, fmt.Errorf("wire: sync state-vector truncated at entry %d", i)
			}
			wl := int(buf[off])
			off++
			if off+wl+8 > len(buf) {
				return SyncFrame{}, fmt.Errorf("wire: sync state-vector entry %d out of bounds", i)
			}
			writer := string(buf[off : off+wl])
			off += wl
			seq := binary.LittleEndian.Uint64(buf[off:])
			off += 8
			entries = append(entries, VectorEntry{Writer: writer, Seq: seq})
		}
		if off != len(buf) {
			return SyncFrame{}, fmt.Errorf("wire: sync state-vector has trailing bytes")
		}
		return SyncFrame{Kind: SyncStateVector, Vector: entries}, nil

	case SyncAck:
		if len(buf) != 9 {
			return SyncFrame{}, fmt.Errorf("wire: sync ack payload must be 9 bytes, got %d", len(buf))
		}
		return SyncFrame{Kind: SyncAck, AckSeq: binary.LittleEndian.Uint64(buf[1:])}, nil

	default:
		return SyncFrame{}, fmt.Errorf("wire: unknown sync kind %d", kind)
	}
}
