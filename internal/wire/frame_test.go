package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{Type: TypeOp, Payload: []byte("hello")}
	buf := f.Encode()

	got, consumed, err := DecodeFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, f.Type, got.Type)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestFrame_DecodeRejectsTruncatedHeader(t *testing.T) {
	_, _, err := DecodeFrame([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFrame_DecodeRejectsDeclaredLengthExceedingBuffer(t *testing.T) {
	buf := []byte{byte(TypeOp), 0xFF, 0xFF, 0xFF, 0x7F} // claims ~2GB payload
	_, _, err := DecodeFrame(buf)
	assert.Error(t, err)
}

func TestFrame_DecodeLeavesTrailingBytesForCaller(t *testing.T) {
	f1 := Frame{Type: TypeHeartbeat, Payload: []byte{0x00}}
	f2 := Frame{Type: TypePresence, Payload: []byte("x")}
	buf := append(f1.Encode(), f2.Encode()...)

	got1, consumed1, err := DecodeFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, got1.Type)

	got2, consumed2, err := DecodeFrame(buf[consumed1:])
	require.NoError(t, err)
	assert.Equal(t, TypePresence, got2.Type)
	assert.Equal(t, len(buf), consumed1+consumed2)
}

func TestType_StringUnknown(t *testing.T) {
	assert.Equal(t, "unknown", Type(200).String())
}
