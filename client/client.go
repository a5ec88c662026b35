// Package client provides a high-level MCP client: the request/response
// correlation engine, the initialize handshake, and typed wrappers over
// the tools/resources/prompts methods, layered on top of any
// transport.Transport implementation.
package client

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mlface/mcp-go/internal/obslog"
	"github.com/mlface/mcp-go/transport"
	"github.com/mlface/mcp-go/types"
)

// RequestTimeout bounds how long a call waits for its matching response
// before giving up and freeing its slot in the pending map. It is longer
// than transport.TransportTimeout because it covers the full round trip
// including server-side work, not just the wire hop.
const RequestTimeout = 60 * time.Second

// pendingCall is the single-shot completion handle a waiting request
// hands to the reader goroutine.
type pendingCall struct {
	resultCh chan *types.RPCResponse
}

// Client is a transport-agnostic MCP client. One Client owns exactly one
// Transport and one background reader goroutine dispatching messages
// off it.
type Client struct {
	t   transport.Transport
	log *zap.SugaredLogger
	cid uuid.UUID

	config *Config

	nextID atomic.Int64

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	initMu     sync.Mutex
	serverInfo *types.InitializeResult

	readerDone chan struct{}
}

// Config holds client-identity configuration.
type Config struct {
	ClientName    string
	ClientVersion string
	Transport     transport.Transport
}

// Option configures a Config.
type Option func(*Config)

// WithClientInfo sets the name and version this client reports to
// servers during Initialize.
func WithClientInfo(name, version string) Option {
	return func(c *Config) {
		c.ClientName = name
		c.ClientVersion = version
	}
}

// WithTransport sets the transport.Transport the client will use.
func WithTransport(t transport.Transport) Option {
	return func(c *Config) { c.Transport = t }
}

func defaultConfig() *Config {
	return &Config{
		ClientName:    "go-mcp-client",
		ClientVersion: "1.0.0",
	}
}

// NewClient builds a Client over the transport supplied via
// WithTransport and starts its reader goroutine. Initialize must be
// called before any other method.
func NewClient(opts ...Option) *Client {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	c := &Client{
		t:          config.Transport,
		log:        obslog.Named("client"),
		cid:        uuid.New(),
		config:     config,
		pending:    make(map[string]*pendingCall),
		readerDone: make(chan struct{}),
	}

	go c.readLoop()

	return c
}

// readLoop is the client's single reader: it owns the transport's
// Receive side for the lifetime of the client, dispatching each message
// to a waiting pending call, a notification, or dropping it with a
// warning if nothing matches.
func (c *Client) readLoop() {
	defer close(c.readerDone)

	ctx := context.Background()
	for {
		msg, err := c.t.Receive(ctx)
		if err != nil {
			c.drainPending(err)
			return
		}

		switch m := msg.(type) {
		case *types.RPCResponse:
			c.dispatchResponse(m)
		case *types.RPCNotification:
			c.log.Debugw("received notification", "session", c.cid, "method", m.Method)
		case *types.RPCRequest:
			c.log.Debugw("ignoring server-initiated request", "session", c.cid, "method", m.Method)
		}
	}
}

func (c *Client) dispatchResponse(resp *types.RPCResponse) {
	c.pendingMu.Lock()
	call, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.log.Warnw("response for unknown id", "session", c.cid, "id", resp.ID)
		return
	}

	call.resultCh <- resp
}

func (c *Client) drainPending(cause error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, call := range c.pending {
		call.resultCh <- &types.RPCResponse{
			ID:    id,
			Error: &types.RPCError{Code: types.CodeConnectionClosed, Message: cause.Error()},
		}
		delete(c.pending, id)
	}
}

// call sends method/params and blocks for the matching response, a
// context cancellation, or RequestTimeout, whichever happens first.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	id := c.generateID()

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return &types.InternalError{Msg: "marshal params: " + err.Error()}
		}
		raw = data
	}

	call := &pendingCall{resultCh: make(chan *types.RPCResponse, 1)}
	c.pendingMu.Lock()
	c.pending[id] = call
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	req := &types.RPCRequest{JSONRPC: types.JSONRPCVersion, ID: id, Method: method, Params: raw}
	if err := c.t.Send(ctx, req); err != nil {
		cleanup()
		return err
	}

	timer := time.NewTimer(RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-call.resultCh:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return &types.InternalError{Msg: "unmarshal result: " + err.Error()}
			}
		}
		return nil

	case <-ctx.Done():
		cleanup()
		return ctx.Err()

	case <-timer.C:
		cleanup()
		return &types.TimeoutError{Msg: "no response for " + method + " within " + RequestTimeout.String()}
	}
}

func (c *Client) notify(ctx context.Context, method string, params interface{}) error {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return &types.InternalError{Msg: "marshal params: " + err.Error()}
		}
		raw = data
	}
	return c.t.Send(ctx, &types.RPCNotification{JSONRPC: types.JSONRPCVersion, Method: method, Params: raw})
}

func (c *Client) generateID() string {
	n := c.nextID.Add(1)
	return strconv.FormatInt(n, 10)
}

// Initialize performs the MCP handshake. It is idempotent: once a
// server has responded, later calls return the cached result without
// sending another request over the wire.
func (c *Client) Initialize(ctx context.Context, protocolVersion string) (*types.InitializeResult, error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.serverInfo != nil {
		return c.serverInfo, nil
	}

	params := types.InitializeParams{
		ProtocolVersion: protocolVersion,
		Name:            c.config.ClientName,
		Version:         c.config.ClientVersion,
		Capabilities:    types.FullClientCapabilities(),
	}

	var result types.InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return nil, err
	}

	c.serverInfo = &result

	if err := c.notify(ctx, "initialized", nil); err != nil {
		c.log.Warnw("failed to send initialized notification", "session", c.cid, "error", err)
	}

	return c.serverInfo, nil
}

// ServerInfo returns the result of a prior Initialize, or nil if the
// client has not been initialized yet.
func (c *Client) ServerInfo() *types.InitializeResult {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.serverInfo
}

func (c *Client) hasCapability(has func(types.ServerCapabilities) bool) bool {
	info := c.ServerInfo()
	return info != nil && has(info.Capabilities)
}

// HasTools reports whether the connected server advertised tools support.
func (c *Client) HasTools() bool {
	return c.hasCapability(func(sc types.ServerCapabilities) bool { return sc.Tools != nil })
}

// HasResources reports whether the connected server advertised resources support.
func (c *Client) HasResources() bool {
	return c.hasCapability(func(sc types.ServerCapabilities) bool { return sc.Resources != nil })
}

// HasPrompts reports whether the connected server advertised prompts support.
func (c *Client) HasPrompts() bool {
	return c.hasCapability(func(sc types.ServerCapabilities) bool { return sc.Prompts != nil })
}

// ListTools retrieves the server's available tools.
func (c *Client) ListTools(ctx context.Context) ([]types.Tool, error) {
	var result types.ListToolsResult
	if err := c.call(ctx, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a named tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*types.CallToolResult, error) {
	params := struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments,omitempty"`
	}{Name: name, Arguments: arguments}

	var result types.CallToolResult
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources retrieves the server's available resources.
func (c *Client) ListResources(ctx context.Context) ([]types.Resource, error) {
	var result types.ListResourcesResult
	if err := c.call(ctx, "resources/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ReadResource reads the content at uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (*types.ReadResourceResult, error) {
	params := struct {
		URI string `json:"uri"`
	}{URI: uri}

	var result types.ReadResourceResult
	if err := c.call(ctx, "resources/read", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrompts retrieves the server's available prompts.
func (c *Client) ListPrompts(ctx context.Context) ([]types.Prompt, error) {
	var result types.ListPromptsResult
	if err := c.call(ctx, "prompts/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// GetPrompt retrieves the prompt identified by id, rendered with the
// given parameters. parameters is forwarded as-is; pass nil when the
// prompt takes none.
func (c *Client) GetPrompt(ctx context.Context, id string, parameters interface{}) (*types.GetPromptResult, error) {
	var rawParameters json.RawMessage
	if parameters != nil {
		data, err := json.Marshal(parameters)
		if err != nil {
			return nil, &types.InternalError{Msg: "marshal parameters: " + err.Error()}
		}
		rawParameters = data
	}

	params := struct {
		ID         string          `json:"id"`
		Parameters json.RawMessage `json:"parameters,omitempty"`
	}{ID: id, Parameters: rawParameters}

	var result types.GetPromptResult
	if err := c.call(ctx, "prompts/get", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close shuts the session down cleanly: it asks the server to shut
// down, sends the exit notification, and then closes the transport
// regardless of whether the server replied. Shutdown failures are
// logged, not returned, since the transport is going away either way.
// If the client was never initialized, the shutdown request and exit
// notification are skipped and only the transport is closed.
func (c *Client) Close(ctx context.Context) error {
	if c.ServerInfo() != nil {
		if err := c.call(ctx, "shutdown", nil, nil); err != nil {
			c.log.Debugw("shutdown request failed", "session", c.cid, "error", err)
		}
		if err := c.notify(ctx, "exit", nil); err != nil {
			c.log.Debugw("exit notification failed", "session", c.cid, "error", err)
		}
	}

	err := c.t.Close()
	<-c.readerDone
	c.log.Infow("client closed", "session", c.cid)
	return err
}
