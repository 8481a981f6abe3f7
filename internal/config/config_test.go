package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nmesherrors "nmeshed/internal/errors"
)

func TestNew_AppliesDocumentedDefaults(t *testing.T) {
	c := New("ws1", "secret-token")
	assert.Equal(t, "wss://api.nmeshed.com", c.ServerURL)
	assert.Equal(t, SyncModeCollaborative, c.SyncMode)
	assert.True(t, c.AutoReconnect)
	assert.Equal(t, 10, c.MaxReconnectAttempts)
	assert.Equal(t, 1000, c.ReconnectBaseDelayMs)
	assert.Equal(t, 30000, c.MaxReconnectDelayMs)
	assert.Equal(t, 10000, c.ConnectionTimeoutMs)
	assert.Equal(t, 30000, c.HeartbeatIntervalMs)
	assert.Equal(t, 1000, c.MaxQueueSize)
	assert.False(t, c.Debug)
}

func TestNew_OptionsOverrideDefaults(t *testing.T) {
	c := New("ws1", "tok", WithSyncMode(SyncModeRealtime), WithMaxQueueSize(0), WithDebug(true))
	assert.Equal(t, SyncModeRealtime, c.SyncMode)
	assert.Equal(t, 0, c.MaxQueueSize)
	assert.True(t, c.Debug)
}

func TestConfig_ValidateRequiresWorkspaceIDAndToken(t *testing.T) {
	c := New("", "tok")
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, nmesherrors.Is(err, nmesherrors.Configuration))

	c2 := New("ws1", "")
	assert.Error(t, c2.Validate())
}

func TestConfig_ValidateRejectsUnknownSyncMode(t *testing.T) {
	c := New("ws1", "tok", WithSyncMode("bogus"))
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateAcceptsZeroAsUnboundedQueue(t *testing.T) {
	c := New("ws1", "tok", WithMaxQueueSize(0))
	assert.NoError(t, c.Validate())
}

func TestConfig_EffectiveSyncModeResolvesLWWAlias(t *testing.T) {
	c := New("ws1", "tok", WithSyncMode(SyncModeLWW))
	assert.Equal(t, SyncModeCollaborative, c.EffectiveSyncMode())
}

func TestConfig_DurationHelpersConvertMillisecondFields(t *testing.T) {
	c := New("ws1", "tok")
	assert.Equal(t, "1s", c.ReconnectBaseDelay().String())
	assert.Equal(t, "30s", c.MaxReconnectDelay().String())
	assert.Equal(t, "10s", c.ConnectionTimeout().String())
	assert.Equal(t, "30s", c.HeartbeatInterval().String())
}

func TestLoadFile_MissingFileReturnsDefaults(t *testing.T) {
	c, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "wss://api.nmeshed.com", c.ServerURL)
}

func TestLoadFile_ParsesYAMLAndAppliesOptionsAfterwards(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "workspace_id: ws-from-file\ntoken: tok-from-file\nserver_url: wss://custom.example.com\nsync_mode: realtime\nmax_queue_size: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := LoadFile(path, WithDebug(true))
	require.NoError(t, err)
	assert.Equal(t, "ws-from-file", c.WorkspaceID)
	assert.Equal(t, "tok-from-file", c.Token)
	assert.Equal(t, "wss://custom.example.com", c.ServerURL)
	assert.Equal(t, SyncMode("realtime"), c.SyncMode)
	assert.Equal(t, 50, c.MaxQueueSize)
	assert.True(t, c.Debug, "option passed to LoadFile must apply after the YAML values")
}

func TestLoadFile_MalformedYAMLReturnsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: valid: yaml: at all:"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, nmesherrors.Is(err, nmesherrors.Configuration))
}
