package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRouter_ParsesOp(t *testing.T) {
	r := NewMessageRouter()
	op := sampleOp()
	frame := Frame{Type: TypeOp, Payload: EncodeOp(op)}

	msg, consumed, ok := r.Parse(frame.Encode())
	require.True(t, ok)
	assert.Equal(t, TypeOp, msg.Type)
	assert.Equal(t, op, msg.Op)
	assert.Equal(t, len(frame.Encode()), consumed)
}

func TestMessageRouter_ParsesHeartbeat(t *testing.T) {
	r := NewMessageRouter()
	msg, consumed, ok := r.Parse(EncodeHeartbeat().Encode())
	require.True(t, ok)
	assert.Equal(t, TypeHeartbeat, msg.Type)
	assert.Greater(t, consumed, 0)
}

func TestMessageRouter_RejectsUnknownType(t *testing.T) {
	r := NewMessageRouter()
	f := Frame{Type: Type(250), Payload: []byte("x")}
	_, _, ok := r.Parse(f.Encode())
	assert.False(t, ok)
}

func TestMessageRouter_RejectsCorruptOpPayloadWithoutPanicking(t *testing.T) {
	r := NewMessageRouter()
	f := Frame{Type: TypeOp, Payload: []byte{1, 2, 3}}

	assert.NotPanics(t, func() {
		_, _, ok := r.Parse(f.Encode())
		assert.False(t, ok)
	})
}

func TestMessageRouter_RejectsTruncatedFrameHeader(t *testing.T) {
	r := NewMessageRouter()
	_, _, ok := r.Parse([]byte{1, 2})
	assert.False(t, ok)
}

func TestMessageRouter_ParseAllHandlesMultipleFramesAndLeavesPartialTrailer(t *testing.T) {
	r := NewMessageRouter()
	op := sampleOp()
	f1 := Frame{Type: TypeOp, Payload: EncodeOp(op)}
	f2 := Frame{Type: TypeHeartbeat, Payload: heartbeatPayload}

	buf := append(f1.Encode(), f2.Encode()...)
	partialTrailer := []byte{byte(TypeOp), 0x05, 0x00} // incomplete header
	buf = append(buf, partialTrailer...)

	messages, consumed := r.ParseAll(buf)
	require.Len(t, messages, 2)
	assert.Equal(t, TypeOp, messages[0].Type)
	assert.Equal(t, TypeHeartbeat, messages[1].Type)
	assert.Equal(t, len(buf)-len(partialTrailer), consumed)
}

func TestMessageRouter_ParseAllSkipsMalformedFrameButKeepsStreamAligned(t *testing.T) {
	r := NewMessageRouter()
	corruptOp := Frame{Type: TypeOp, Payload: []byte{1, 2, 3}} // well-framed but bad op body
	good := Frame{Type: TypeHeartbeat, Payload: heartbeatPayload}

	buf := append(corruptOp.Encode(), good.Encode()...)
	messages, consumed := r.ParseAll(buf)

	require.Len(t, messages, 1)
	assert.Equal(t, TypeHeartbeat, messages[0].Type)
	assert.Equal(t, len(buf), consumed)
}

func TestMessageRouter_ParsesSignalAndInitAsOpaqueBlobs(t *testing.T) {
	r := NewMessageRouter()
	sig := Frame{Type: TypeSignal, Payload: []byte(`{"sdp":"..."}`)}
	msg, _, ok := r.Parse(sig.Encode())
	require.True(t, ok)
	assert.Equal(t, []byte(`{"sdp":"..."}`), msg.Signal.Data)

	ini := Frame{Type: TypeInit, Payload: []byte(`{"version":1}`)}
	msg2, _, ok := r.Parse(ini.Encode())
	require.True(t, ok)
	assert.Equal(t, []byte(`{"version":1}`), msg2.Init.Data)
}

func TestMessageRouter_ParsesColumnarBatchAndActorRegistry(t *testing.T) {
	r := NewMessageRouter()
	reg := ActorRegistryFrame{Actors: []string{"a", "b"}}
	regFrame := Frame{Type: TypeActorRegistry, Payload: EncodeActorRegistry(reg)}
	msg, _, ok := r.Parse(regFrame.Encode())
	require.True(t, ok)
	assert.Equal(t, reg, msg.ActorRegistry)

	batch := sampleBatch()
	batchFrame := Frame{Type: TypeColumnarBatch, Payload: EncodeColumnarBatch(batch)}
	msg2, _, ok := r.Parse(batchFrame.Encode())
	require.True(t, ok)
	assert.Equal(t, batch, msg2.ColumnarBatch)
}
