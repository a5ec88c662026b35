// Package manager owns the registry of known MCP servers and the
// clients connected to them: registration, process lifecycle for
// stdio-backed servers, lazy client construction, filesystem-based
// discovery, and JSON config persistence.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/mlface/mcp-go/client"
	"github.com/mlface/mcp-go/internal/obslog"
	"github.com/mlface/mcp-go/transport/sse"
	"github.com/mlface/mcp-go/transport/stdio"
	"github.com/mlface/mcp-go/types"
)

// clientName and clientVersion identify this library to every server
// GetClient connects to, regardless of what the embedding application
// calls itself. TestConnection's probe appends "_test" to the name.
const (
	clientName    = "mlFace"
	clientVersion = "1.0.0"
)

// discoveryProbeRate throttles how fast DiscoverServers spawns
// candidate executables, so a directory full of unrelated binaries
// doesn't fork-bomb the host.
const discoveryProbeRate = 5 // probes per second

// ServerConfig describes one MCP server this manager knows about: how
// to reach it (a local command, or an http(s) URL for SSE) and what
// environment to give it.
type ServerConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

func (c ServerConfig) isRemote() bool {
	return strings.HasPrefix(c.Command, "http://") || strings.HasPrefix(c.Command, "https://")
}

func (c ServerConfig) envSlice() []string {
	if len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// ServerStatus reports a server's configuration alongside its current
// connection state, the shape returned by GetServerStatus.
type ServerStatus struct {
	Name      string            `json:"name"`
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	IsRunning bool              `json:"isRunning"`
	URL       string            `json:"url,omitempty"`
}

// Manager is the process-wide registry of MCP server configurations and
// the clients connected to them. Its two maps have separate locks;
// operations that need both always lock servers before clients to avoid
// deadlock.
type Manager struct {
	serversMu sync.RWMutex
	servers   map[string]ServerConfig
	running   map[string]bool

	clientsMu sync.RWMutex
	clients   map[string]*client.Client

	breakersMu sync.Mutex
	breakers   map[string]*connectBreaker

	group   singleflight.Group
	fs      afero.Fs
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithFilesystem overrides the afero.Fs used for discovery and config
// persistence. Production code can leave this as the default OsFs;
// tests substitute afero.NewMemMapFs().
func WithFilesystem(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// New builds an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		servers:  make(map[string]ServerConfig),
		running:  make(map[string]bool),
		clients:  make(map[string]*client.Client),
		breakers: make(map[string]*connectBreaker),
		fs:       afero.NewOsFs(),
		limiter:  rate.NewLimiter(rate.Limit(discoveryProbeRate), discoveryProbeRate),
		log:      obslog.Named("manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) breakerFor(name string) *connectBreaker {
	m.breakersMu.Lock()
	defer m.breakersMu.Unlock()
	b, ok := m.breakers[name]
	if !ok {
		b = newConnectBreaker(name)
		m.breakers[name] = b
	}
	return b
}

// RegisterServer adds or replaces a server's configuration.
func (m *Manager) RegisterServer(config ServerConfig) error {
	m.serversMu.Lock()
	defer m.serversMu.Unlock()
	m.servers[config.Name] = config
	return nil
}

// UnregisterServer stops name if running and removes its configuration.
func (m *Manager) UnregisterServer(ctx context.Context, name string) error {
	if err := m.StopServer(ctx, name); err != nil {
		return err
	}

	m.serversMu.Lock()
	delete(m.servers, name)
	delete(m.running, name)
	m.serversMu.Unlock()

	return nil
}

// StartServer marks a stdio-backed server as started. The actual child
// process is spawned lazily by GetClient, the first time a transport is
// needed; StartServer exists so callers can pre-warm a server (and so
// repeated calls are cheap and idempotent) without forcing a client
// into existence.
func (m *Manager) StartServer(name string) error {
	m.serversMu.Lock()
	defer m.serversMu.Unlock()

	if _, ok := m.servers[name]; !ok {
		return fmt.Errorf("server %s not found", name)
	}
	m.running[name] = true
	return nil
}

// StopServer closes name's client, if any, and marks it not running.
func (m *Manager) StopServer(ctx context.Context, name string) error {
	m.clientsMu.Lock()
	c, ok := m.clients[name]
	if ok {
		delete(m.clients, name)
	}
	m.clientsMu.Unlock()

	if ok {
		if err := c.Close(ctx); err != nil {
			m.log.Warnw("error closing client during stop", "server", name, "error", err)
		}
	}

	m.serversMu.Lock()
	m.running[name] = false
	m.serversMu.Unlock()

	return nil
}

// GetClient returns a connected, initialized client for name, building
// one lazily on first use. Concurrent callers asking for the same name
// coalesce onto a single construction via singleflight.
func (m *Manager) GetClient(ctx context.Context, name string) (*client.Client, error) {
	m.clientsMu.RLock()
	c, ok := m.clients[name]
	m.clientsMu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := m.group.Do(name, func() (interface{}, error) {
		m.clientsMu.RLock()
		c, ok := m.clients[name]
		m.clientsMu.RUnlock()
		if ok {
			return c, nil
		}

		m.serversMu.RLock()
		config, ok := m.servers[name]
		m.serversMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("server %s not found", name)
		}

		breaker := m.breakerFor(name)
		result, err := breaker.execute(ctx, func() (interface{}, error) {
			return m.connect(ctx, config)
		})
		if err != nil {
			return nil, err
		}

		c := result.(*client.Client)
		m.clientsMu.Lock()
		m.clients[name] = c
		m.clientsMu.Unlock()

		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*client.Client), nil
}

func (m *Manager) connect(ctx context.Context, config ServerConfig) (*client.Client, error) {
	var t interface {
		Send(context.Context, types.RPCMessage) error
		Receive(context.Context) (types.RPCMessage, error)
		Close() error
	}

	if config.isRemote() {
		t = sse.NewTransport(config.Command)
	} else {
		if err := m.StartServer(config.Name); err != nil {
			return nil, err
		}
		// Config entries come after the inherited environment, so they
		// override inherited variables of the same name.
		st, err := stdio.NewTransport(config.Command, config.Args, stdio.WithEnv(append(os.Environ(), config.envSlice()...)))
		if err != nil {
			return nil, err
		}
		t = st
	}

	c := client.NewClient(client.WithTransport(t), client.WithClientInfo(clientName, clientVersion))
	if _, err := c.Initialize(ctx, types.LatestProtocolVersion); err != nil {
		c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// TestConnection checks whether target is a reachable MCP server
// without keeping the connection around. target may be an http(s) URL
// (probed over SSE) or a local executable path (probed by spawning it
// with --help or -h and checking it starts).
func (m *Manager) TestConnection(ctx context.Context, target string) (bool, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		t := sse.NewTransport(target)
		defer t.Close()

		c := client.NewClient(client.WithTransport(t), client.WithClientInfo(clientName+"_test", clientVersion))
		defer c.Close(ctx)

		_, err := c.Initialize(ctx, types.LatestProtocolVersion)
		return err == nil, nil
	}

	return probeExecutable(ctx, target), nil
}

func probeExecutable(ctx context.Context, path string) bool {
	for _, flag := range []string{"--help", "-h"} {
		cmd := exec.CommandContext(ctx, path, flag)
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Start(); err == nil {
			cmd.Process.Kill()
			cmd.Wait()
			return true
		}
	}
	return false
}

// GetServers returns a snapshot of every registered server's config.
func (m *Manager) GetServers() []ServerConfig {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()

	out := make([]ServerConfig, 0, len(m.servers))
	for _, c := range m.servers {
		out = append(out, c)
	}
	return out
}

// GetServerStatus reports, for every registered server, whether a
// client for it can currently be obtained. Like the system this was
// distilled from, checking status can itself start a stdio server that
// was not already running.
func (m *Manager) GetServerStatus(ctx context.Context) []ServerStatus {
	servers := m.GetServers()
	out := make([]ServerStatus, 0, len(servers))

	for _, s := range servers {
		_, err := m.GetClient(ctx, s.Name)
		status := ServerStatus{
			Name:      s.Name,
			Command:   s.Command,
			Args:      s.Args,
			Env:       s.Env,
			IsRunning: err == nil,
		}
		if s.isRemote() {
			status.URL = s.Command
		}
		out = append(out, status)
	}
	return out
}

// DiscoverServers scans dir for executable files and, throttled by a
// rate limiter, probes each one with TestConnection, returning a
// ServerConfig for every one whose probe succeeds. For a local file the
// probe only shows that the binary starts; it does not check that it
// speaks MCP, so the results are candidates to confirm.
func (m *Manager) DiscoverServers(ctx context.Context, dir string) ([]ServerConfig, error) {
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		return nil, err
	}

	var configs []ServerConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// POSIX executable bit only; a Windows .exe/.bat/.cmd without it set would be skipped.
		if entry.Mode()&0o111 == 0 {
			continue
		}

		if err := m.limiter.Wait(ctx); err != nil {
			return configs, err
		}

		path := dir + string(os.PathSeparator) + entry.Name()
		ok, err := m.TestConnection(ctx, path)
		if err != nil {
			m.log.Debugw("discovery probe failed", "path", path, "error", err)
			continue
		}
		if !ok {
			continue
		}

		configs = append(configs, ServerConfig{
			Name:    entry.Name(),
			Command: path,
			Args:    []string{},
			Env:     map[string]string{},
		})
	}

	return configs, nil
}

// LoadFromFile adds the configs persisted at path, a JSON object keyed
// by server name, to the registry, overwriting entries of the same
// name. Servers already registered under other names are kept.
func (m *Manager) LoadFromFile(path string) error {
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return err
	}

	var configs map[string]ServerConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return err
	}

	m.serversMu.Lock()
	defer m.serversMu.Unlock()
	for name, config := range configs {
		config.Name = name
		m.servers[name] = config
	}
	return nil
}

// SaveToFile persists the current registry to path as a JSON object
// keyed by server name.
func (m *Manager) SaveToFile(path string) error {
	m.serversMu.RLock()
	snapshot := make(map[string]ServerConfig, len(m.servers))
	for k, v := range m.servers {
		snapshot[k] = v
	}
	m.serversMu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(m.fs, path, data, 0o644)
}

// LoadDefaultConfig loads from the path named by MCP_CONFIG_PATH, or
// does nothing if that environment variable is unset.
func (m *Manager) LoadDefaultConfig() error {
	path, ok := os.LookupEnv("MCP_CONFIG_PATH")
	if !ok {
		return nil
	}
	return m.LoadFromFile(path)
}

// SaveDefaultConfig saves to the path named by MCP_CONFIG_PATH, or does
// nothing if that environment variable is unset.
func (m *Manager) SaveDefaultConfig() error {
	path, ok := os.LookupEnv("MCP_CONFIG_PATH")
	if !ok {
		return nil
	}
	return m.SaveToFile(path)
}

// breakerState exposes a server's connect-breaker state for
// diagnostics and tests ("closed", "open", "half-open", or "unknown" if
// no breaker has been created yet).
func (m *Manager) breakerState(name string) string {
	m.breakersMu.Lock()
	b, ok := m.breakers[name]
	m.breakersMu.Unlock()
	if !ok {
		return "unknown"
	}
	return b.state()
}
