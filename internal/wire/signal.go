package wire

// SignalFrame is an opaque envelope relayed between peers unchanged, used
// for out-of-band negotiation (WebRTC-style offer/answer/ICE exchange,
// spec.md §4.5). The wire layer never inspects Data; it is the engine's
// dispatcher that interprets the contents.
type SignalFrame struct {
	Data []byte
}

// EncodeSignal returns Data verbatim as the frame payload.
func EncodeSignal(s SignalFrame) []byte {
	return append([]byte(nil), s.Data...)
}

// DecodeSignal wraps buf verbatim; a SignalFrame payload is always valid.
func DecodeSignal(buf []byte) (SignalFrame, error) {
	return SignalFrame{Data: append([]byte(nil), buf...)}, nil
}
