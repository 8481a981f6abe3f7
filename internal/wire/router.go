package wire

// MessageRouter is the single parsing gateway between raw transport bytes
// and the typed frame payloads the rest of the engine operates on.
// Generalized from the teacher's internal/api handler dispatch (one
// switch over a discriminator field deciding which decoder to invoke),
// but returning a tagged union instead of acting directly: the router
// never mutates state and never logs — any decode failure is reported to
// the caller, which decides whether and how to log it (spec.md §4.6).
type MessageRouter struct{}

// NewMessageRouter constructs a MessageRouter. It holds no state; the
// constructor exists for symmetry with the rest of the package and to
// leave room for future decode options (size limits, allowed type sets).
func NewMessageRouter() *MessageRouter { return &MessageRouter{} }

// Message is the tagged union produced by parsing one wire Frame. Exactly
// one of the typed fields is populated, selected by Type.
type Message struct {
	Type Type

	Op            OpFrame
	Sync          SyncFrame
	Presence      PresenceFrame
	Signal        SignalFrame
	ActorRegistry ActorRegistryFrame
	ColumnarBatch ColumnarBatchFrame
	Init          InitFrame
}

// Parse decodes a single frame from the front of buf. It returns the
// parsed Message, the number of bytes consumed, and ok=false if the frame
// is malformed or of an unrecognised type — callers should drop such
// frames rather than treat a false return as fatal, since a single
// corrupt frame must never take down a connection.
func (r *MessageRouter) Parse(buf []byte) (Message, int, bool) {
	frame, consumed, err := DecodeFrame(buf)
	if err != nil {
		return Message{}, 0, false
	}

	msg := Message{Type: frame.Type}

	switch frame.Type {
	case TypeHeartbeat:
		if !IsHeartbeat(frame.Payload) {
			return Message{}, 0, false
		}
		return msg, consumed, true

	case TypeOp:
		op, err := DecodeOp(frame.Payload)
		if err != nil {
			return Message{}, 0, false
		}
		msg.Op = op
		return msg, consumed, true

	case TypeSync:
		sync, err := DecodeSync(frame.Payload)
		if err != nil {
			return Message{}, 0, false
		}
		msg.Sync = sync
		return msg, consumed, true

	case TypePresence:
		p, err := DecodePresence(frame.Payload)
		if err != nil {
			return Message{}, 0, false
		}
		msg.Presence = p
		return msg, consumed, true

	case TypeSignal:
		s, _ := DecodeSignal(frame.Payload)
		msg.Signal = s
		return msg, consumed, true

	case TypeActorRegistry:
		a, err := DecodeActorRegistry(frame.Payload)
		if err != nil {
			return Message{}, 0, false
		}
		msg.ActorRegistry = a
		return msg, consumed, true

	case TypeColumnarBatch:
		c, err := DecodeColumnarBatch(frame.Payload)
		if err != nil {
			return Message{}, 0, false
		}
		msg.ColumnarBatch = c
		return msg, consumed, true

	case TypeInit:
		i, _ := DecodeInit(frame.Payload)
		msg.Init = i
		return msg, consumed, true

	default:
		return Message{}, 0, false
	}
}

// ParseAll decodes every complete frame in buf, stopping (without error)
// at the first incomplete trailing frame. It returns the parsed messages
// in order and the number of bytes consumed across all of them — the
// caller keeps the remainder in its read buffer for the next chunk of
// transport data. A malformed frame in the middle of the buffer is
// skipped (it still advances past the bytes its header claims, so the
// stream does not desynchronize) rather than aborting the whole batch.
func (r *MessageRouter) ParseAll(buf []byte) ([]Message, int) {
	var messages []Message
	total := 0

	for total < len(buf) {
		frame, consumed, err := DecodeFrame(buf[total:])
		if err != nil {
			break
		}
		msg, _, ok := r.Parse(buf[total : total+consumed])
		if ok {
			messages = append(messages, msg)
		}
		_ = frame
		total += consumed
	}

	return messages, total
}
