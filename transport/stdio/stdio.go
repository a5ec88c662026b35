// Package stdio implements the MCP transport over a child process's
// standard input and output: one JSON-RPC message per line, framed with
// newlines, written to the child's stdin and read from its stdout.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mlface/mcp-go/internal/obslog"
	"github.com/mlface/mcp-go/types"
)

// writeQueueCapacity bounds how many outbound messages can be buffered
// before Send blocks, giving a slow or wedged child process backpressure
// instead of letting the caller queue unbounded work in memory.
const writeQueueCapacity = 100

// Transport speaks MCP over a child process's stdio. It owns the
// process's lifecycle: Close kills the child if it does not exit on its
// own, from a background goroutine so Close never blocks on a wedged
// process.
type Transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	log       *zap.SugaredLogger
	sessionID uuid.UUID

	writeCh chan []byte
	recvCh  chan types.RPCMessage

	closeOnce sync.Once
	closed    chan struct{}
	writerWg  sync.WaitGroup
	readerWg  sync.WaitGroup
}

// Config holds the child process configuration.
type Config struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        []string
	Timeout    time.Duration
}

// Option configures a Config.
type Option func(*Config)

func WithCommand(command string) Option { return func(c *Config) { c.Command = command } }
func WithArgs(args ...string) Option    { return func(c *Config) { c.Args = args } }
func WithWorkingDir(dir string) Option  { return func(c *Config) { c.WorkingDir = dir } }
func WithEnv(env []string) Option       { return func(c *Config) { c.Env = env } }
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

func defaultConfig() *Config {
	return &Config{
		Command: "",
		Args:    []string{},
		Env:     os.Environ(),
		Timeout: 30 * time.Second,
	}
}

// NewTransport starts command with args and returns a Transport
// connected to its stdio.
func NewTransport(command string, args []string, opts ...Option) (*Transport, error) {
	config := defaultConfig()
	config.Command = command
	config.Args = args
	for _, opt := range opts {
		opt(config)
	}
	return NewTransportWithConfig(*config)
}

// NewTransportFromStreams wraps existing streams instead of spawning a
// child process. Useful when this program is itself an MCP server
// talking over custom pipes.
func NewTransportFromStreams(stdin io.WriteCloser, stdout io.ReadCloser, stderr io.ReadCloser) (*Transport, error) {
	t := newTransport(nil, stdin, stdout, stderr)
	t.start()
	return t, nil
}

// NewTransportFromOS wraps the current process's own stdin/stdout/stderr,
// for a Go program that is itself an MCP server.
func NewTransportFromOS() (*Transport, error) {
	return NewTransportFromStreams(
		&nopCloser{os.Stdin},
		&nopCloser{os.Stdout},
		&nopCloser{os.Stderr},
	)
}

type nopCloser struct {
	io.ReadWriter
}

func (nc *nopCloser) Close() error { return nil }

// NewTransportWithConfig spawns config.Command and wires its stdio.
func NewTransportWithConfig(config Config) (*Transport, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("command is required for stdio transport")
	}

	cmd := exec.Command(config.Command, config.Args...)
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}
	if len(config.Env) > 0 {
		cmd.Env = config.Env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	t := newTransport(cmd, stdin, stdout, stderr)
	t.start()
	return t, nil
}

func newTransport(cmd *exec.Cmd, stdin io.WriteCloser, stdout, stderr io.ReadCloser) *Transport {
	return &Transport{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
		log:       obslog.Named("transport.stdio"),
		sessionID: uuid.New(),
		writeCh:   make(chan []byte, writeQueueCapacity),
		recvCh:    make(chan types.RPCMessage, writeQueueCapacity),
		closed:    make(chan struct{}),
	}
}

func (t *Transport) start() {
	t.writerWg.Add(1)
	go t.runWriter()

	t.readerWg.Add(1)
	go t.runReader()

	if t.stderr != nil {
		go t.drainStderr()
	}
}

func (t *Transport) runWriter() {
	defer t.writerWg.Done()
	for {
		select {
		case line, ok := <-t.writeCh:
			if !ok {
				return
			}
			if _, err := t.stdin.Write(line); err != nil {
				t.log.Warnw("stdin write failed", "session", t.sessionID, "error", err)
				return
			}
		case <-t.closed:
			return
		}
	}
}

func (t *Transport) runReader() {
	defer t.readerWg.Done()
	defer close(t.recvCh)

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := types.DecodeEnvelope(line)
		if err != nil {
			t.log.Warnw("dropping malformed line from child stdout", "session", t.sessionID, "error", err)
			continue
		}

		select {
		case t.recvCh <- msg:
		case <-t.closed:
			return
		}
	}
}

func (t *Transport) drainStderr() {
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		t.log.Debugw("child stderr", "session", t.sessionID, "line", scanner.Text())
	}
}

// Send writes one JSON-RPC message to the child's stdin.
func (t *Transport) Send(ctx context.Context, msg types.RPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return &types.InternalError{Msg: "marshal stdio message: " + err.Error()}
	}
	data = append(data, '\n')

	select {
	case t.writeCh <- data:
		return nil
	case <-t.closed:
		return types.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until the next message arrives from the child's
// stdout, the context is done, or the transport closes.
func (t *Transport) Receive(ctx context.Context) (types.RPCMessage, error) {
	select {
	case msg, ok := <-t.recvCh:
		if !ok {
			return nil, types.ErrConnectionClosed
		}
		return msg, nil
	case <-t.closed:
		return nil, types.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the reader/writer goroutines, closes the stdio pipes, and
// kills the child process in the background if it does not exit within
// a few seconds of its pipes closing. Close is idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)

		if t.stdin != nil {
			t.stdin.Close()
		}
		if t.stdout != nil {
			t.stdout.Close()
		}
		if t.stderr != nil {
			t.stderr.Close()
		}

		t.writerWg.Wait()

		if t.cmd != nil && t.cmd.Process != nil {
			go t.killChild()
		}
	})
	return nil
}

func (t *Transport) killChild() {
	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.log.Debugw("child process exited", "session", t.sessionID, "error", err)
		}
	case <-time.After(5 * time.Second):
		if t.cmd.Process != nil {
			t.log.Warnw("child process did not exit, killing", "session", t.sessionID)
			t.cmd.Process.Kill()
		}
		<-done
	}
}
