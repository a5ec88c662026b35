// Package obslog wires the structured logger shared by transports, the
// client, and the server manager. It wraps zap's sugared logger rather
// than exposing *zap.Logger directly so call sites can log with
// key/value pairs without importing zap themselves.
package obslog

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	global *zap.SugaredLogger
)

// Logger returns the process-wide sugared logger, building it lazily on
// first use. Production builds use zap's JSON production config; set
// MCP_LOG_LEVEL=debug to switch to a development encoder with debug
// level enabled.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		global = newLogger().Sugar()
	})
	return global
}

func newLogger() *zap.Logger {
	var cfg zap.Config
	if os.Getenv("MCP_LOG_LEVEL") == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		// Build() only fails on a malformed config; the two configs above
		// are both well formed, but fall back to a no-op logger rather
		// than panicking a caller that just wanted to log a warning.
		return zap.NewNop()
	}
	return logger
}

// Named returns a child logger tagged with component, e.g. "client",
// "transport.stdio", "transport.sse", "manager".
func Named(component string) *zap.SugaredLogger {
	return Logger().Named(component)
}

// Sync flushes any buffered log entries. Call it once at process exit;
// zap returns an error syncing os.Stderr on some platforms which is safe
// to ignore.
func Sync() {
	_ = Logger().Sync()
}
