package view

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmeshed/internal/config"
	"nmeshed/internal/engine"
	"nmeshed/internal/idgen"
	"nmeshed/internal/kv"
)

func newActiveEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.New(idgen.NewParticipantID(), "test-token")
	e, err := engine.New(cfg, kv.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, e.Boot(context.Background()))
	return e
}

func waitForCollection(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCollection_InitialScanPicksUpExistingState(t *testing.T) {
	e := newActiveEngine(t)
	require.NoError(t, e.Set("todos:1", []byte("buy milk")))
	require.NoError(t, e.Set("todos:2", []byte("walk dog")))
	require.NoError(t, e.Set("notes:1", []byte("unrelated")))

	col := NewCollection(e, "todos:")
	defer col.Close()

	v, ok := col.Get("1")
	require.True(t, ok)
	assert.Equal(t, []byte("buy milk"), v)
	assert.Equal(t, 2, col.Size())
}

func TestCollection_SubsequentOpUpdatesIndexAndBumpsVersion(t *testing.T) {
	e := newActiveEngine(t)
	col := NewCollection(e, "todos:")
	defer col.Close()

	v0 := col.Version()
	require.NoError(t, col.Set("1", []byte("buy milk")))

	waitForCollection(t, func() bool {
		_, ok := col.Get("1")
		return ok
	})
	assert.Greater(t, col.Version(), v0)
}

func TestCollection_DeleteRemovesFromIndex(t *testing.T) {
	e := newActiveEngine(t)
	col := NewCollection(e, "todos:")
	defer col.Close()

	require.NoError(t, col.Add("1", []byte("buy milk")))
	waitForCollection(t, func() bool { return col.Size() == 1 })

	require.NoError(t, col.Delete("1"))
	waitForCollection(t, func() bool { return col.Size() == 0 })

	_, ok := col.Get("1")
	assert.False(t, ok)
}

func TestCollection_UnrelatedPrefixDoesNotInvalidate(t *testing.T) {
	e := newActiveEngine(t)
	col := NewCollection(e, "todos:")
	defer col.Close()

	data1 := col.Data()
	require.NoError(t, e.Set("notes:1", []byte("unrelated")))
	time.Sleep(50 * time.Millisecond)

	data2 := col.Data()
	assert.Len(t, data2, 0)
	assert.Equal(t, data1, data2)
}

func TestCollection_DataIsSortedByID(t *testing.T) {
	e := newActiveEngine(t)
	col := NewCollection(e, "todos:")
	defer col.Close()

	require.NoError(t, col.Add("b", []byte("2")))
	require.NoError(t, col.Add("a", []byte("1")))
	waitForCollection(t, func() bool { return col.Size() == 2 })

	data := col.Data()
	require.Len(t, data, 2)
	assert.Equal(t, "a", data[0].ID)
	assert.Equal(t, "b", data[1].ID)
}

func TestCollection_OnChangePublishesPerIDEvents(t *testing.T) {
	e := newActiveEngine(t)
	col := NewCollection(e, "todos:")
	defer col.Close()

	ch, unsub := col.OnChange(4)
	defer unsub()

	require.NoError(t, col.Set("1", []byte("v")))

	select {
	case evt := <-ch:
		assert.Equal(t, "1", evt.ID)
		assert.Equal(t, []byte("v"), evt.Value)
		assert.False(t, evt.IsDelete)
	case <-time.After(time.Second):
		t.Fatal("expected a ChangeEvent")
	}
}
