package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mlface/mcp-go/types"
)

// MockTransport implements transport.Transport for testing. onSend, if
// set, runs synchronously inside Send and can feed simulated server
// replies back via Push.
type MockTransport struct {
	mu      sync.Mutex
	recvCh  chan types.RPCMessage
	closed  bool
	sent    []types.RPCMessage
	onSend  func(msg types.RPCMessage, push func(types.RPCMessage))
}

func newMockTransport() *MockTransport {
	return &MockTransport{recvCh: make(chan types.RPCMessage, 16)}
}

func (m *MockTransport) Send(ctx context.Context, msg types.RPCMessage) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return types.ErrConnectionClosed
	}
	m.sent = append(m.sent, msg)
	handler := m.onSend
	m.mu.Unlock()

	if handler != nil {
		handler(msg, m.Push)
	}
	return nil
}

func (m *MockTransport) Receive(ctx context.Context) (types.RPCMessage, error) {
	select {
	case msg, ok := <-m.recvCh:
		if !ok {
			return nil, types.ErrConnectionClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.recvCh)
	return nil
}

// Push injects a message as if it arrived from the server.
func (m *MockTransport) Push(msg types.RPCMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.recvCh <- msg
}

func (m *MockTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func resultFor(id string, v interface{}) *types.RPCResponse {
	data, _ := json.Marshal(v)
	return &types.RPCResponse{JSONRPC: types.JSONRPCVersion, ID: id, Result: data}
}

func TestClientInitialize(t *testing.T) {
	transport := newMockTransport()
	transport.onSend = func(msg types.RPCMessage, push func(types.RPCMessage)) {
		req, ok := msg.(*types.RPCRequest)
		if !ok || req.Method != "initialize" {
			return
		}
		push(resultFor(req.ID, types.InitializeResult{
			ProtocolVersion: types.LatestProtocolVersion,
			Name:            "test-server",
			Version:         "1.0.0",
			Capabilities:    types.ServerCapabilities{Tools: &types.ToolsCapability{}},
		}))
	}

	c := NewClient(WithTransport(transport), WithClientInfo("test-client", "1.0.0"))
	defer c.Close(context.Background())

	result, err := c.Initialize(context.Background(), types.LatestProtocolVersion)
	require.NoError(t, err)
	require.Equal(t, "test-server", result.Name)
	require.True(t, c.HasTools())

	// Initialize is idempotent: a second call must not hit the wire again.
	sentBefore := transport.SentCount()
	result2, err := c.Initialize(context.Background(), types.LatestProtocolVersion)
	require.NoError(t, err)
	require.Same(t, result, result2)
	require.Equal(t, sentBefore, transport.SentCount())
}

// TestClientInitializeWireShape pushes the raw wire JSON the spec
// actually defines (flat snake_case fields) rather than round-tripping
// through the Go struct's own marshaler, so a field-name regression in
// InitializeResult's tags would fail this test even if it wouldn't fail
// a marshal-then-unmarshal test.
func TestClientInitializeWireShape(t *testing.T) {
	transport := newMockTransport()
	transport.onSend = func(msg types.RPCMessage, push func(types.RPCMessage)) {
		req, ok := msg.(*types.RPCRequest)
		if !ok || req.Method != "initialize" {
			return
		}

		// The handshake request this client actually sent must itself be
		// flat snake_case, not nested camelCase.
		var sentParams map[string]interface{}
		require.NoError(t, json.Unmarshal(req.Params, &sentParams))
		require.Equal(t, "0.1.0", sentParams["protocol_version"])
		require.Equal(t, "mock-client", sentParams["name"])
		_, hasNestedClientInfo := sentParams["clientInfo"]
		require.False(t, hasNestedClientInfo)

		push(&types.RPCResponse{
			JSONRPC: types.JSONRPCVersion,
			ID:      req.ID,
			Result:  []byte(`{"protocol_version":"0.1.0","name":"mock","version":"1","capabilities":{}}`),
		})
	}

	c := NewClient(WithTransport(transport), WithClientInfo("mock-client", "0.0.1"))
	defer c.Close(context.Background())

	result, err := c.Initialize(context.Background(), "0.1.0")
	require.NoError(t, err)
	require.Equal(t, "0.1.0", result.ProtocolVersion)
	require.Equal(t, "mock", result.Name)
	require.Equal(t, "1", result.Version)
}

// TestClientInitializedNotificationIsBareMethodName checks the
// post-handshake notification uses the method name the server actually
// listens for, not the richer namespaced form other MCP dialects use.
func TestClientInitializedNotificationIsBareMethodName(t *testing.T) {
	transport := newMockTransport()
	var notifiedMethod string
	transport.onSend = func(msg types.RPCMessage, push func(types.RPCMessage)) {
		switch m := msg.(type) {
		case *types.RPCRequest:
			if m.Method == "initialize" {
				push(resultFor(m.ID, types.InitializeResult{ProtocolVersion: "0.1.0", Name: "s", Version: "1"}))
			}
		case *types.RPCNotification:
			notifiedMethod = m.Method
		}
	}

	c := NewClient(WithTransport(transport))
	defer c.Close(context.Background())

	_, err := c.Initialize(context.Background(), "0.1.0")
	require.NoError(t, err)
	require.Equal(t, "initialized", notifiedMethod)
}

func TestClientListToolsOutOfOrderResponse(t *testing.T) {
	transport := newMockTransport()
	var callID string
	transport.onSend = func(msg types.RPCMessage, push func(types.RPCMessage)) {
		req, ok := msg.(*types.RPCRequest)
		if !ok {
			return
		}
		switch req.Method {
		case "initialize":
			push(resultFor(req.ID, types.InitializeResult{
				Capabilities: types.ServerCapabilities{Tools: &types.ToolsCapability{}},
			}))
		case "tools/list":
			callID = req.ID
			// Respond out of order: push an unrelated response first.
			push(resultFor("does-not-exist", map[string]string{"ignored": "true"}))
			push(resultFor(callID, types.ListToolsResult{
				Tools: []types.Tool{{Name: "calculator"}},
			}))
		}
	}

	c := NewClient(WithTransport(transport))
	defer c.Close(context.Background())

	_, err := c.Initialize(context.Background(), types.LatestProtocolVersion)
	require.NoError(t, err)

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "calculator", tools[0].Name)
}

func TestClientCallTimesOutThenRecovers(t *testing.T) {
	transport := newMockTransport()
	drop := true
	transport.onSend = func(msg types.RPCMessage, push func(types.RPCMessage)) {
		req, ok := msg.(*types.RPCRequest)
		if !ok || req.Method != "ping" {
			return
		}
		if drop {
			return // simulate a request that never gets a reply
		}
		push(resultFor(req.ID, map[string]string{}))
	}

	c := NewClient(WithTransport(transport))
	defer c.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.call(ctx, "ping", nil, nil)
	require.Error(t, err)

	drop = false
	require.NoError(t, c.call(context.Background(), "ping", nil, nil))
}

func TestClientConnectionClosedDrainsPending(t *testing.T) {
	transport := newMockTransport()
	transport.onSend = func(msg types.RPCMessage, push func(types.RPCMessage)) {}

	c := NewClient(WithTransport(transport))

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.call(context.Background(), "tools/list", nil, nil)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, transport.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending call was not drained after transport closed")
	}
}

func TestClientCallTool(t *testing.T) {
	transport := newMockTransport()
	transport.onSend = func(msg types.RPCMessage, push func(types.RPCMessage)) {
		req := msg.(*types.RPCRequest)
		if req.Method == "tools/call" {
			push(&types.RPCResponse{
				JSONRPC: types.JSONRPCVersion,
				ID:      req.ID,
				Result:  []byte(`{"content":[{"type":"text","text":"Result: 15"}]}`),
			})
		}
	}

	c := NewClient(WithTransport(transport))
	defer c.Close(context.Background())

	result, err := c.CallTool(context.Background(), "calculator", map[string]interface{}{"a": 3, "b": 5})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	require.Equal(t, types.TextContent{Text: "Result: 15"}, result.Content[0])
}

func TestClientClose(t *testing.T) {
	transport := newMockTransport()
	c := NewClient(WithTransport(transport))

	require.NoError(t, c.Close(context.Background()))
	transport.mu.Lock()
	closed := transport.closed
	transport.mu.Unlock()
	require.True(t, closed)
}

func TestDefaultConfig(t *testing.T) {
	config := defaultConfig()
	require.Equal(t, "go-mcp-client", config.ClientName)
	require.Equal(t, "1.0.0", config.ClientVersion)
}
