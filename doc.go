/*
Package mcp provides a Go client library for the Model Context Protocol
(MCP): process/HTTP transports, a JSON-RPC client, and a server manager
that spawns and supervises a fleet of MCP servers.

# Quick Start

Basic usage example:

	package main

	import (
		"context"
		"log"

		"github.com/mlface/mcp-go/manager"
		"github.com/mlface/mcp-go/types"
	)

	func main() {
		ctx := context.Background()

		m := manager.New()
		m.RegisterServer(manager.ServerConfig{
			Name:    "local-tools",
			Command: "/usr/local/bin/my-mcp-server",
			Args:    []string{"--stdio"},
		})

		c, err := m.GetClient(ctx, "local-tools")
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close(ctx)

		tools, err := c.ListTools(ctx)
		if err != nil {
			log.Fatal(err)
		}

		log.Printf("found %d tools", len(tools))
		_ = types.LatestProtocolVersion
	}

# Package Structure

The library is organized into the following packages:

  - types: JSON-RPC envelope and MCP protocol type definitions
  - transport/stdio: child-process transport over standard streams
  - transport/sse: HTTP POST + Server-Sent-Events transport
  - client: request/response correlation and the typed MCP methods
  - manager: the process-wide registry of server configurations and clients

# Protocol Support

This library speaks MCP protocol version 0.1.0 and provides:

  - Tools: list and call external tools
  - Resources: list and read external resources
  - Prompts: list and render prompt templates

# Configuration

Both the client and the two transports take functional options:

	c := client.NewClient(
		client.WithTransport(t),
		client.WithClientInfo("app-name", "1.0.0"),
	)

# Error Handling

Every operation returns a Go error; the concrete error types in package
types (types.TransportError, types.ProtocolError, types.TimeoutError,
types.ConnectionClosedError, …) implement a Code() method for callers
that need the underlying JSON-RPC error code.

# Thread Safety

Client and Manager are safe for concurrent use from multiple goroutines.
A Transport's Send may be called concurrently with its own Receive, but
Receive is meant for a single reader (the owning Client).
*/
package mcp
