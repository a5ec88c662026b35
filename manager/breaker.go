package manager

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a server's connect breaker is open and
// is rejecting attempts to avoid hammering a server that is already
// failing.
var ErrCircuitOpen = errors.New("circuit breaker is open for this server")

// connectBreaker wraps gobreaker around the connect path for one named
// server: spawning its process or dialing its SSE endpoint, and running
// the initialize handshake. Five consecutive failures open the circuit
// for thirty seconds before a single probe request is allowed through.
type connectBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func newConnectBreaker(name string) *connectBreaker {
	settings := gobreaker.Settings{
		Name:        "mcp-connect-" + name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &connectBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *connectBreaker) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := b.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

func (b *connectBreaker) state() string {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
