package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_RoundTripSnapshot(t *testing.T) {
	s := SyncFrame{Kind: SyncSnapshot, Snapshot: []byte("snapshot-bytes")}
	decoded, err := DecodeSync(EncodeSync(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestSync_RoundTripStateVector(t *testing.T) {
	s := SyncFrame{Kind: SyncStateVector, Vector: []VectorEntry{
		{Writer: "a", Seq: 1},
		{Writer: "participant-b", Seq: 9999},
	}}
	decoded, err := DecodeSync(EncodeSync(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestSync_RoundTripEmptyStateVector(t *testing.T) {
	s := SyncFrame{Kind: SyncStateVector, Vector: nil}
	decoded, err := DecodeSync(EncodeSync(s))
	require.NoError(t, err)
	assert.Empty(t, decoded.Vector)
}

func TestSync_RoundTripAck(t *testing.T) {
	s := SyncFrame{Kind: SyncAck, AckSeq: 123456}
	decoded, err := DecodeSync(EncodeSync(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestSync_DecodeRejectsUnknownKind(t *testing.T) {
	_, err := DecodeSync([]byte{99})
	assert.Error(t, err)
}

func TestSync_DecodeRejectsTruncatedAck(t *testing.T) {
	_, err := DecodeSync([]byte{byte(SyncAck), 1, 2, 3})
	assert.Error(t, err)
}

func TestPresence_RoundTrip(t *testing.T) {
	var ws [16]byte
	copy(ws[:], "workspace-id-xxx")
	p := PresenceFrame{Workspace: ws, User: "dana", Status: PresenceIdle}
	decoded, err := DecodePresence(EncodePresence(p))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestPresence_DecodeRejectsLengthMismatch(t *testing.T) {
	var ws [16]byte
	p := PresenceFrame{Workspace: ws, User: "dana", Status: PresenceOnline}
	buf := EncodePresence(p)
	_, err := DecodePresence(buf[:len(buf)-2])
	assert.Error(t, err)
}
