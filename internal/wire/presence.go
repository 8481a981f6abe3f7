package wire

import (
	"encoding/binary"
	"fmt"
)

// PresenceStatus is the lifecycle state a participant reports for itself.
type PresenceStatus byte

const (
	PresenceOnline PresenceStatus = 0
	PresenceLeave  PresenceStatus = 1
	PresenceIdle   PresenceStatus = 2
)

// PresenceFrame announces a participant's presence status within a
// workspace (spec.md §4.5): [workspace:16][user_len:u32][user][status:u8].
type PresenceFrame struct {
	Workspace [16]byte
	User      string
	Status    PresenceStatus
}

// EncodePresence serialises a PresenceFrame payload.
func EncodePresence(p PresenceFrame) []byte {
	buf := make([]byte, 16+4+len(p.User)+1)
	copy(buf[0:16], p.Workspace[:])
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(p.User)))
	off := 20 + copy(buf[20:], p.User)
	buf[off] = byte(p.Status)
	return buf
}

// DecodePresence parses a PresenceFrame payload.
func DecodePresence(buf []byte) (PresenceFrame, error) {
	var p PresenceFrame
	if len(buf) < 20 {
		return p, fmt.Errorf("wire: presence payload too short")
	}
	copy(p.Workspace[:], buf[0:16])
	userLen := int(binary.LittleEndian.Uint32(buf[16:20]))
	if userLen < 0 || 20+userLen+1 != len(buf) {
		return p, fmt.Errorf("wire: presence user_len %d does not match payload", userLen)
	}
	p.User = string(buf[20 : 20+userLen])
	p.Status = PresenceStatus(buf[20+userLen])
	return p, nil
}
