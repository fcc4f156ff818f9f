package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emlua-dev/emlua/domain/entities"
)

// Middleware is a function that wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Handler) Handler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// Chain wraps h so that mw[0] is the outermost layer.
func Chain(h Handler, mw ...Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// PanicError is returned by PanicRecoveryMiddleware when a handler panicked.
type PanicError struct {
	Value    any
	Function string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("host function %s panicked: %v", e.Function, e.Value)
}

// PanicRecoveryMiddleware returns a middleware that converts handler panics
// into errors, which the script then sees as an ordinary raised error.
func PanicRecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, args Args) (results []entities.Value, err error) {
			defer func() {
				if r := recover(); r != nil {
					results = nil
					err = &PanicError{Function: FunctionName(ctx), Value: r}
				}
			}()
			return next(ctx, args)
		}
	}
}

// LoggingMiddleware returns a middleware that logs host function invocations.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, args Args) ([]entities.Value, error) {
			name := FunctionName(ctx)
			start := time.Now()
			logger.DebugContext(ctx, "invoking host function", "function", name, "args", args.Len())
			results, err := next(ctx, args)
			if err != nil {
				logger.WarnContext(ctx, "host function failed", "function", name, "error", err)
			} else {
				logger.DebugContext(ctx, "host function completed",
					"function", name,
					"results", len(results),
					"duration", time.Since(start))
			}
			return results, err
		}
	}
}
