/*
Package sse implements the transport.Transport contract over HTTP,
pairing a persistent GET request streaming Server-Sent Events for the
server-to-client downlink with HTTP POST for the client-to-server
uplink.

# Basic Usage

	transport := sse.NewTransport("https://example.com/mcp/sse")
	defer transport.Close()

# Endpoint Derivation

The uplink POST endpoint is derived from the SSE URL by string
replacement, not by a server-sent discovery event: a URL ending in
"/sse" has that suffix replaced with "/messages"; any other URL gets
"/messages" appended after trimming a trailing slash.

# Reconnection

The downlink goroutine reconnects automatically if the GET connection
drops, backing off from 100ms and doubling up to a 5s ceiling. Each
successful connection resets the backoff to its initial value.

# Sessions

The Mcp-Session-Id response header is captured on both the downlink and
the uplink and replayed as a request header on every subsequent call.

# Reliability

Every uplink POST runs through a per-transport circuit breaker: five
consecutive failures open the breaker and fail fast until it probes the
server again after its timeout.

# Thread Safety

Send and Receive are safe for concurrent use; Close is idempotent.
*/
package sse
