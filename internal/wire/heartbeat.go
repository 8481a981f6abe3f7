package wire

// heartbeatPayload resolves the wire format for heartbeat frames: a
// single 0x00 byte (spec.md §4.5 open question — no content beyond
// keeping the connection alive is needed).
var heartbeatPayload = []byte{0x00}

// EncodeHeartbeat returns the heartbeat frame, ready to write to the wire.
func EncodeHeartbeat() Frame {
	return Frame{Type: TypeHeartbeat, Payload: append([]byte(nil), heartbeatPayload...)}
}

// IsHeartbeat reports whether payload matches the expected heartbeat body.
// Any non-empty payload is tolerated as a heartbeat; only emptiness is
// rejected, since future revisions may widen the payload.
func IsHeartbeat(payload []byte) bool {
	return len(payload) >= 1
}
