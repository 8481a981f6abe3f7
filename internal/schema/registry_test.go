package schema

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonCodec() Codec {
	return CodecFunc{
		EncodeFn: func(v any) ([]byte, error) { return json.Marshal(v) },
		DecodeFn: func(data []byte) (any, error) {
			var v any
			err := json.Unmarshal(data, &v)
			return v, err
		},
	}
}

func TestRegistry_LookupResolvesLongestMatchingPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register("", CodecFunc{EncodeFn: func(v any) ([]byte, error) { return []byte("catch-all"), nil }})
	r.Register("docs:", CodecFunc{EncodeFn: func(v any) ([]byte, error) { return []byte("docs"), nil }})
	r.Register("docs:settings:", CodecFunc{EncodeFn: func(v any) ([]byte, error) { return []byte("settings"), nil }})

	codec, ok := r.Lookup("docs:settings:theme")
	require.True(t, ok)
	out, err := codec.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("settings"), out)

	codec, ok = r.Lookup("docs:other")
	require.True(t, ok)
	out, _ = codec.Encode(nil)
	assert.Equal(t, []byte("docs"), out)

	codec, ok = r.Lookup("unrelated")
	require.True(t, ok)
	out, _ = codec.Encode(nil)
	assert.Equal(t, []byte("catch-all"), out)
}

func TestRegistry_LookupWithNoMatchReturnsFalse(t *testing.T) {
	r := NewRegistry()
	r.Register("docs:", jsonCodec())

	_, ok := r.Lookup("other:key")
	assert.False(t, ok)
}

func TestRegistry_UnregisterRemovesPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register("docs:", jsonCodec())
	r.Unregister("docs:")

	_, ok := r.Lookup("docs:1")
	assert.False(t, ok)
}

func TestRegistry_ClearRemovesEveryRegistration(t *testing.T) {
	r := NewRegistry()
	r.Register("", jsonCodec())
	r.Register("docs:", jsonCodec())
	r.Clear()

	_, ok := r.Lookup("docs:1")
	assert.False(t, ok)
}

func TestRegistry_EncodeDecodeRoundTripThroughCodecFunc(t *testing.T) {
	r := NewRegistry()
	r.Register("docs:", jsonCodec())

	codec, ok := r.Lookup(fmt.Sprintf("docs:%d", 1))
	require.True(t, ok)

	encoded, err := codec.Encode(map[string]any{"a": 1.0})
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, decoded)
}
