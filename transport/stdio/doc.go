/*
Package stdio implements the transport.Transport contract over a child
process's standard input and output. It is the transport used for MCP
servers that run as a local subprocess.

# Basic Usage

	transport, err := stdio.NewTransport("python", []string{"my_mcp_server.py"})
	if err != nil {
		return err
	}
	defer transport.Close()

# Configuration Options

  - WithArgs() - command arguments
  - WithWorkingDir() - working directory for the child process
  - WithEnv() - environment variables for the child process
  - WithTimeout() - informational request timeout carried on Config

# Process Lifecycle

NewTransportWithConfig starts the child, wires its three pipes, and
launches a writer goroutine draining a bounded outbound queue and a
reader goroutine decoding newline-delimited JSON-RPC messages from
stdout. Close stops both goroutines, closes the pipes, and kills the
child from a background goroutine if it has not exited within a few
seconds — Close itself never blocks on a wedged process.

# Communication Protocol

Each JSON-RPC message is written as one line terminated by '\n'. Lines
that fail to decode as a request, response, or notification are logged
and dropped rather than surfacing as an error, so one malformed line
from a noisy server does not take down the connection.

# Thread Safety

Send and Receive are both safe to call concurrently from different
goroutines; Close is safe to call more than once.
*/
package stdio
