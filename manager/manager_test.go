package manager

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGetServers(t *testing.T) {
	m := New()

	require.NoError(t, m.RegisterServer(ServerConfig{Name: "a", Command: "/bin/echo", Args: []string{"hi"}}))
	require.NoError(t, m.RegisterServer(ServerConfig{Name: "b", Command: "http://example.com/sse"}))

	servers := m.GetServers()
	require.Len(t, servers, 2)

	byName := make(map[string]ServerConfig, len(servers))
	for _, s := range servers {
		byName[s.Name] = s
	}
	require.Equal(t, "/bin/echo", byName["a"].Command)
	require.Equal(t, "http://example.com/sse", byName["b"].Command)
}

func TestRegisterOverwritesExistingName(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterServer(ServerConfig{Name: "a", Command: "/bin/echo"}))
	require.NoError(t, m.RegisterServer(ServerConfig{Name: "a", Command: "/bin/cat"}))

	servers := m.GetServers()
	require.Len(t, servers, 1)
	require.Equal(t, "/bin/cat", servers[0].Command)
}

func TestUnregisterServerRemovesConfigAndClient(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterServer(ServerConfig{Name: "a", Command: "/bin/echo"}))

	require.NoError(t, m.UnregisterServer(context.Background(), "a"))
	require.Empty(t, m.GetServers())

	m.clientsMu.RLock()
	_, hasClient := m.clients["a"]
	m.clientsMu.RUnlock()
	require.False(t, hasClient)
}

func TestUnregisterUnknownServerSucceedsSilently(t *testing.T) {
	m := New()
	require.NoError(t, m.UnregisterServer(context.Background(), "does-not-exist"))
}

func TestGetClientUnknownServerFails(t *testing.T) {
	m := New()
	_, err := m.GetClient(context.Background(), "does-not-exist")
	require.Error(t, err)
}

func TestStopServerUnknownNameSucceedsSilently(t *testing.T) {
	m := New()
	require.NoError(t, m.StopServer(context.Background(), "does-not-exist"))
}

func TestStartServerUnknownNameFails(t *testing.T) {
	m := New()
	require.Error(t, m.StartServer("does-not-exist"))
}

func TestSaveAndLoadDefaultConfigRoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := New(WithFilesystem(fs))

	t.Setenv("MCP_CONFIG_PATH", "/tmp/mcp.json")

	require.NoError(t, m.RegisterServer(ServerConfig{
		Name:    "a",
		Command: "http://h/sse",
		Args:    []string{},
		Env:     map[string]string{},
	}))
	require.NoError(t, m.SaveDefaultConfig())

	m2 := New(WithFilesystem(fs))
	require.NoError(t, m2.LoadDefaultConfig())

	servers := m2.GetServers()
	require.Len(t, servers, 1)
	require.Equal(t, "a", servers[0].Name)
	require.Equal(t, "http://h/sse", servers[0].Command)
}

func TestDefaultConfigNoopWhenEnvUnset(t *testing.T) {
	m := New(WithFilesystem(afero.NewMemMapFs()))
	require.NoError(t, m.LoadDefaultConfig())
	require.NoError(t, m.SaveDefaultConfig())
	require.Empty(t, m.GetServers())
}

func TestLoadFromFileKeyTakesPrecedenceOverInnerName(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw, err := json.Marshal(map[string]ServerConfig{
		"canonical": {Name: "stale-inner-name", Command: "/bin/echo"},
	})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/cfg.json", raw, 0o644))

	m := New(WithFilesystem(fs))
	require.NoError(t, m.LoadFromFile("/cfg.json"))

	servers := m.GetServers()
	require.Len(t, servers, 1)
	require.Equal(t, "canonical", servers[0].Name)
}

func TestDiscoverServersSkipsNonExecutablesAndDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/servers/subdir", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/servers/readme.txt", []byte("not executable"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/servers/probe.sh", []byte("#!/bin/sh\n"), 0o755))

	m := New(WithFilesystem(fs))
	configs, err := m.DiscoverServers(context.Background(), "/servers")
	require.NoError(t, err)

	// probe.sh is executable but does not actually exist as a spawnable
	// binary under the mem-fs, so TestConnection's --help/-h probe fails
	// and it is excluded; the directory and the non-executable file must
	// never even reach the probe.
	for _, c := range configs {
		require.NotEqual(t, "readme.txt", c.Name)
		require.NotEqual(t, "subdir", c.Name)
	}
}

func TestDiscoverServersReturnsErrorForMissingDir(t *testing.T) {
	m := New(WithFilesystem(afero.NewMemMapFs()))
	_, err := m.DiscoverServers(context.Background(), "/does-not-exist")
	require.Error(t, err)
}

func TestTestConnectionExecutableProbe(t *testing.T) {
	m := New()
	ok, err := m.TestConnection(context.Background(), "/bin/echo")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTestConnectionMissingExecutableFails(t *testing.T) {
	m := New()
	ok, err := m.TestConnection(context.Background(), "/no/such/binary-xyz")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBreakerStateUnknownBeforeFirstConnect(t *testing.T) {
	m := New()
	require.Equal(t, "unknown", m.breakerState("a"))
}
