// Package idgen generates the stable identifiers the engine assigns at
// boot: participant ids and workspace ids. Grounded on the teacher's use
// of github.com/google/uuid for request/session identifiers in the
// sibling example repos (cfullelove-mcp-workspaces uses uuid for
// correlation ids); the teacher itself mints plain string node ids, so
// this package generalizes that into a typed, collision-resistant
// generator.
package idgen

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewParticipantID returns a stable UUID-like identifier suitable for use
// as a participant's writer tag (spec.md §6: "generated if absent — a
// stable UUID-like identifier").
func NewParticipantID() string {
	return uuid.NewString()
}

// ParseWorkspaceID parses id (accepted in canonical hyphenated or plain
// hex form) into its 16-byte wire representation (spec.md §3: "canonical
// 16-byte form on the wire, hex/textual form externally").
func ParseWorkspaceID(id string) ([16]byte, error) {
	var out [16]byte

	if u, err := uuid.Parse(id); err == nil {
		copy(out[:], u[:])
		return out, nil
	}

	clean := strings.ReplaceAll(id, "-", "")
	raw, err := hex.DecodeString(clean)
	if err != nil || len(raw) != 16 {
		_, uerr := uuid.Parse(id) // surface uuid's descriptive parse error
		return out, uerr
	}
	copy(out[:], raw)
	return out, nil
}

// WorkspaceIDString renders the 16-byte wire form of a workspace id back
// to its canonical hyphenated textual form.
func WorkspaceIDString(id [16]byte) string {
	u, _ := uuid.FromBytes(id[:])
	return u.String()
}

// NodeHash derives the stable 64-bit node identifier a hybrid clock uses
// from a participant id (spec.md §3: "node is a stable hash of the
// participant identifier").
func NodeHash(participantID string) uint64 {
	u := uuid.NewSHA1(uuid.NameSpaceOID, []byte(participantID))
	var n uint64
	for i := 0; i < 8; i++ {
		n = n<<8 | uint64(u[i])
	}
	return n
}
