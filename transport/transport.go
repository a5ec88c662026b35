// Package transport defines the contract every MCP wire transport
// implements. A Transport's only job is moving JSON-RPC messages across
// a connection; request/response correlation, timeouts, and the
// initialize handshake all live one layer up, in package client.
package transport

import (
	"context"
	"time"

	"github.com/mlface/mcp-go/types"
)

// TransportTimeout is the wire-level timeout for a single hop. It is
// shorter than the client's request-correlation timeout because it
// covers one hop, not a full request/response cycle that may wait on
// server-side work. The transports in this module do not read it: the
// SSE transport's HTTP client timeout defaults to the same 30 seconds
// through its own Config, and Receive on either transport has no
// built-in timeout.
const TransportTimeout = 30 * time.Second

// Transport moves JSON-RPC messages between this process and an MCP
// server. Implementations are safe for concurrent use: Send may be
// called while a Receive is in flight, and Close may be called from any
// goroutine to unblock a pending Receive.
type Transport interface {
	// Send writes one JSON-RPC message (request, response, or
	// notification) to the peer. It does not wait for a reply.
	Send(ctx context.Context, msg types.RPCMessage) error

	// Receive blocks until the next JSON-RPC message arrives from the
	// peer, the context is done, or the transport is closed. A closed
	// transport returns types.ErrConnectionClosed.
	Receive(ctx context.Context) (types.RPCMessage, error)

	// Close releases the transport's resources (child process, HTTP
	// connections, background goroutines). It unblocks any Receive in
	// progress and is safe to call more than once.
	Close() error
}
