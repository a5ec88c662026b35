/*
Package client provides a high-level MCP client implementation.

This package offers a simple API for connecting to MCP servers and
performing protocol operations over any transport.Transport. The client
owns request/response correlation, the initialize handshake, and a
background reader goroutine; callers just call methods and read errors.

# Basic Usage

	t, err := stdio.NewTransport("my-mcp-server", nil)
	if err != nil {
		log.Fatal(err)
	}

	c := client.NewClient(
		client.WithClientInfo("my-app", "1.0.0"),
		client.WithTransport(t),
	)
	defer c.Close(ctx)

	if _, err := c.Initialize(ctx, types.LatestProtocolVersion); err != nil {
		log.Fatal(err)
	}

# Supported Operations

  - ListTools / CallTool
  - ListResources / ReadResource
  - ListPrompts / GetPrompt

These operations do not check the server's advertised capabilities;
HasTools, HasResources and HasPrompts are available for callers that
want to branch on them before calling.

# Correlation

Every call allocates a decimal string id from a monotonic counter
starting at 1, registers a pending entry, and blocks on it until a
response with that id arrives, the context is cancelled, or
RequestTimeout elapses. Responses that arrive for an id nobody is
waiting on are logged and dropped rather than treated as an error: a
slow caller that already timed out is not the server's fault.

# Transport Layer

The client works with any transport.Transport implementation:

  - transport/stdio for process-based servers
  - transport/sse for HTTP + Server-Sent Events servers

# Thread Safety

Client is safe for concurrent use from multiple goroutines.
*/
package client
