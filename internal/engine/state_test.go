package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nmeshed/internal/errors"
)

func TestCheckTransition_AllowsDocumentedEdges(t *testing.T) {
	cases := []struct{ from, to State }{
		{StateIdle, StateBooting},
		{StateBooting, StateActive},
		{StateActive, StateStopping},
		{StateStopping, StateStopped},
		{StateStopped, StateBooting},
	}
	for _, c := range cases {
		assert.NoError(t, checkTransition("test", c.from, c.to))
	}
}

func TestCheckTransition_RejectsUndocumentedEdges(t *testing.T) {
	err := checkTransition("test", StateIdle, StateActive)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errors.InvalidStateTransition))
}

func TestCheckTransition_DestroyedNeverTransitionsAgain(t *testing.T) {
	err := checkTransition("test", StateDestroyed, StateBooting)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errors.InvalidStateTransition))
}

func TestState_StringsAreHumanReadable(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "booting", StateBooting.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "destroyed", StateDestroyed.String())
}
