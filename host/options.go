package host

import (
	"io"
	"log/slog"
	"os"

	"github.com/emlua-dev/emlua/domain/entities"
	"github.com/emlua-dev/emlua/hostfuncs"
)

// sessionConfig holds configuration for a Session.
type sessionConfig struct {
	output        io.Writer
	logger        *slog.Logger
	registry      *hostfuncs.HandlerRegistry
	globals       map[string]entities.Value
	middleware    []hostfuncs.Middleware
	chunkName     string
	callStackSize int
	skipStdlib    bool
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		output:    os.Stdout,
		chunkName: "<string>",
	}
}

// Option defines a functional option for configuring a Session.
type Option func(*sessionConfig)

// WithOutput sets where the script print function writes.
func WithOutput(w io.Writer) Option {
	return func(c *sessionConfig) {
		c.output = w
	}
}

// WithLogger sets the logger used by the session and by log_message.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

// WithHostFunctions installs every function of registry when the session opens.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(c *sessionConfig) {
		c.registry = registry
	}
}

// WithGlobals writes the given globals when the session opens.
func WithGlobals(globals map[string]entities.Value) Option {
	return func(c *sessionConfig) {
		c.globals = globals
	}
}

// WithMiddleware wraps functions registered through RegisterFunction.
// Panic recovery is always applied outermost.
func WithMiddleware(mw ...hostfuncs.Middleware) Option {
	return func(c *sessionConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithChunkName sets the name inline text is reported under in errors.
func WithChunkName(name string) Option {
	return func(c *sessionConfig) {
		c.chunkName = name
	}
}

// WithCallStackSize sets the interpreter call stack size.
func WithCallStackSize(n int) Option {
	return func(c *sessionConfig) {
		c.callStackSize = n
	}
}

// WithoutStdlib skips registering the standard library.
// The print and log_message functions are still installed.
func WithoutStdlib() Option {
	return func(c *sessionConfig) {
		c.skipStdlib = true
	}
}
