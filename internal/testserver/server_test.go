package testserver

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
	"nmeshed/internal/orchestrator"
	"nmeshed/internal/transport"
)

func waitForTS(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServer_RelaysOpBetweenTwoParticipants(t *testing.T) {
	srv := New()
	base, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	workspace := idgen.NewParticipantID()

	aliceCfg := config.New(workspace, "tok", config.WithServerURL(base))
	bobCfg := config.New(workspace, "tok", config.WithServerURL(base))

	aliceEngine, err := engine.New(aliceCfg, kv.NewMemoryStore())
	require.NoError(t, err)
	bobEngine, err := engine.New(bobCfg, kv.NewMemoryStore())
	require.NoError(t, err)

	aliceTransport := transport.NewWSTransport(aliceCfg, aliceEngine.ParticipantID())
	bobTransport := transport.NewWSTransport(bobCfg, bobEngine.ParticipantID())

	aliceOrch := orchestrator.New(aliceEngine, aliceTransport)
	bobOrch := orchestrator.New(bobEngine, bobTransport)
	defer aliceOrch.Destroy()
	defer bobOrch.Destroy()

	require.NoError(t, aliceOrch.Start(context.Background()))
	require.NoError(t, bobOrch.Start(context.Background()))

	waitForTS(t, func() bool { return aliceEngine.State() == engine.StateActive })
	waitForTS(t, func() bool { return bobEngine.State() == engine.StateActive })

	require.NoError(t, aliceEngine.Set("doc:title", []byte("hello from alice")))

	waitForTS(t, func() bool {
		_, ok := bobEngine.Core().GetRecord("doc:title")
		return ok
	})

	rec, ok := bobEngine.Core().GetRecord("doc:title")
	require.True(t, ok)
	assert.Equal(t, []byte("hello from alice"), rec.Value)
}
