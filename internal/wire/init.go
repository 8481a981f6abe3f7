package wire

// InitFrame carries a JSON-encoded control payload exchanged once at the
// start of a session (workspace metadata, protocol version, resume token —
// spec.md §4.5). The wire layer treats it as an opaque byte blob; callers
// unmarshal it with encoding/json once its shape is known at the engine
// layer.
type InitFrame struct {
	Data []byte
}

// EncodeInit returns Data verbatim as the frame payload.
func EncodeInit(i InitFrame) []byte {
	return append([]byte(nil), i.Data...)
}

// DecodeInit wraps buf verbatim.
func DecodeInit(buf []byte) (InitFrame, error) {
	return InitFrame{Data: append([]byte(nil), buf...)}, nil
}
