// Package sse implements the MCP transport over HTTP: a persistent GET
// request streaming Server-Sent Events downlink, and HTTP POST for the
// client-to-server uplink.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mlface/mcp-go/internal/obslog"
	"github.com/mlface/mcp-go/types"
)

const (
	initialRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
	recvQueueCapacity = 100
)

// Config holds the SSE transport configuration.
type Config struct {
	Timeout       time.Duration
	CustomHeaders map[string]string
}

// Option configures a Config.
type Option func(*Config)

func WithTimeout(timeout time.Duration) Option { return func(c *Config) { c.Timeout = timeout } }

func WithCustomHeaders(headers map[string]string) Option {
	return func(c *Config) { c.CustomHeaders = headers }
}

func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.CustomHeaders == nil {
			c.CustomHeaders = make(map[string]string)
		}
		c.CustomHeaders[key] = value
	}
}

// WithSSESupport advertises that the caller accepts both JSON and
// event-stream bodies, matching what MCP servers expect on the probe.
func WithSSESupport() Option {
	return WithHeader("Accept", "application/json, text/event-stream")
}

func defaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		CustomHeaders: map[string]string{
			"Accept": "application/json, text/event-stream",
		},
	}
}

// Transport speaks MCP over a long-lived SSE downlink paired with HTTP
// POST for the uplink. The POST endpoint is derived from the SSE URL:
// a URL ending in "/sse" has that suffix replaced with "/messages";
// otherwise "/messages" is appended.
type Transport struct {
	sseURL  string
	postURL string

	client *http.Client
	config Config

	sessionMu sync.RWMutex
	sessionID string

	breaker *gobreaker.CircuitBreaker

	log           *zap.SugaredLogger
	correlationID uuid.UUID

	recvCh chan types.RPCMessage

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	readerWg  sync.WaitGroup
}

// NewTransport connects to an MCP server's SSE endpoint and starts
// streaming events in the background. Send and Receive may be used as
// soon as NewTransport returns; early writes simply race the first
// downlink connection attempt.
func NewTransport(sseURL string, opts ...Option) *Transport {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	return NewTransportWithConfig(sseURL, *config)
}

// NewTransportWithConfig is the fully explicit constructor behind
// NewTransport.
func NewTransportWithConfig(sseURL string, config Config) *Transport {
	ctx, cancel := context.WithCancel(context.Background())

	t := &Transport{
		sseURL:        sseURL,
		postURL:       derivePostURL(sseURL),
		client:        &http.Client{Timeout: config.Timeout},
		config:        config,
		log:           obslog.Named("transport.sse"),
		correlationID: uuid.New(),
		recvCh:        make(chan types.RPCMessage, recvQueueCapacity),
		ctx:           ctx,
		cancel:        cancel,
	}

	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sse-transport-" + t.correlationID.String(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	t.readerWg.Add(1)
	go t.runDownlink()

	return t
}

// derivePostURL implements the spec's pure string rule for finding the
// uplink endpoint: no endpoint-discovery event, just suffix replacement.
func derivePostURL(sseURL string) string {
	if strings.HasSuffix(sseURL, "/sse") {
		return strings.TrimSuffix(sseURL, "/sse") + "/messages"
	}
	return strings.TrimRight(sseURL, "/") + "/messages"
}

func (t *Transport) runDownlink() {
	defer t.readerWg.Done()
	defer close(t.recvCh)

	delay := initialRetryDelay
	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		connected, err := t.streamOnce()
		if connected {
			delay = initialRetryDelay
		}
		if err != nil {
			t.log.Warnw("sse downlink connection failed, retrying", "session", t.correlationID, "error", err, "delay", delay)
		} else {
			t.log.Debugw("sse downlink closed by peer, reconnecting", "session", t.correlationID)
		}

		select {
		case <-t.ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// streamOnce opens one GET connection and reads events until it fails
// or the peer closes it. It reports whether the connection was
// established; a successful connect resets the backoff in runDownlink.
func (t *Transport) streamOnce() (bool, error) {
	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, t.sseURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	t.applyHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &types.TransportError{Msg: fmt.Sprintf("sse endpoint returned status %d", resp.StatusCode)}
	}
	t.captureSessionID(resp.Header)

	// Connected: runDownlink resets its backoff however the stream ends,
	// and still sleeps once before retrying, which is cheap compared to
	// a tight loop on a server that keeps dropping the stream.
	return true, t.decodeEvents(resp.Body)
}

func (t *Transport) decodeEvents(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	var data strings.Builder
	flush := func() {
		payload := data.String()
		data.Reset()
		if payload == "" || payload == "[DONE]" {
			return
		}
		msg, err := types.DecodeEnvelope([]byte(payload))
		if err != nil {
			t.log.Warnw("dropping malformed sse event", "session", t.correlationID, "error", err)
			return
		}
		select {
		case t.recvCh <- msg:
		case <-t.ctx.Done():
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:, id:, retry: and comment lines carry no JSON-RPC payload.
		}
	}
	flush()
	return scanner.Err()
}

func (t *Transport) applyHeaders(req *http.Request) {
	for k, v := range t.config.CustomHeaders {
		req.Header.Set(k, v)
	}
	if sid := t.SessionID(); sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}
}

func (t *Transport) captureSessionID(header http.Header) {
	if sid := header.Get("Mcp-Session-Id"); sid != "" {
		t.sessionMu.Lock()
		t.sessionID = sid
		t.sessionMu.Unlock()
	}
}

// SessionID returns the Mcp-Session-Id captured from the server, if any.
func (t *Transport) SessionID() string {
	t.sessionMu.RLock()
	defer t.sessionMu.RUnlock()
	return t.sessionID
}

// Send POSTs one JSON-RPC message to the derived uplink endpoint. Each
// attempt runs through a circuit breaker keyed to this transport
// instance so a server that starts failing every request stops
// receiving load after five consecutive failures.
func (t *Transport) Send(ctx context.Context, msg types.RPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return &types.InternalError{Msg: "marshal sse message: " + err.Error()}
	}

	_, err = t.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.postURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		t.applyHeaders(req)

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, &types.TransportError{Msg: err.Error()}
		}
		defer resp.Body.Close()

		t.captureSessionID(resp.Header)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			return nil, &types.TransportError{Msg: fmt.Sprintf("post %s: status %d: %s", t.postURL, resp.StatusCode, string(body))}
		}
		return nil, nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &types.TransportError{Msg: "sse uplink circuit open: " + err.Error()}
	}
	return err
}

// Receive blocks for the next message decoded off the SSE downlink.
func (t *Transport) Receive(ctx context.Context) (types.RPCMessage, error) {
	select {
	case msg, ok := <-t.recvCh:
		if !ok {
			return nil, types.ErrConnectionClosed
		}
		return msg, nil
	case <-t.ctx.Done():
		return nil, types.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the downlink goroutine and releases idle HTTP connections.
// Close is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.client.CloseIdleConnections()
		t.readerWg.Wait()
	})
	return nil
}
