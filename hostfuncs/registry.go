package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
)

// HandlerRegistry is an immutable collection of named host functions.
// Once created via NewRegistry, functions cannot be added or removed,
// so one registry can be installed into any number of sessions.
type HandlerRegistry struct {
	functions  map[string]Function
	names      []string // sorted for consistent iteration
	middleware []Middleware
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	functions  map[string]Function
	middleware []Middleware
	errs       []error
}

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Every invalid or duplicate function is reported, joined into one error.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithBundle(MathBundle()),
//	    WithFunction("greet", 1, greetHandler),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{
		functions: make(map[string]Function),
	}

	for _, opt := range opts {
		opt(b)
	}

	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(b.functions))
	for name := range b.functions {
		names = append(names, name)
	}
	sort.Strings(names)

	wrapped := make(map[string]Function, len(b.functions))
	for name, fn := range b.functions {
		fn.Handler = Chain(fn.Handler, b.middleware...)
		wrapped[name] = fn
	}

	return &HandlerRegistry{
		functions:  wrapped,
		names:      names,
		middleware: b.middleware,
	}, nil
}

// Invoke dispatches a host function call by name.
// Unknown names yield a *errors.LookupMiss.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, args Args) ([]entities.Value, error) {
	fn, ok := r.functions[name]
	if !ok {
		return nil, &domainerrors.LookupMiss{Name: name, Kind: "host function", Reason: "not registered"}
	}
	return Call(ctx, name, fn, args)
}

// Lookup returns the named function with middleware applied.
func (r *HandlerRegistry) Lookup(name string) (Function, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// Has returns true if a function with the given name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.functions[name]
	return ok
}

// Names returns a sorted list of all registered function names.
func (r *HandlerRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// Middleware returns the middleware the registry was built with.
func (r *HandlerRegistry) Middleware() []Middleware {
	result := make([]Middleware, len(r.middleware))
	copy(result, r.middleware)
	return result
}

// addFunction registers fn under name.
func (b *registryBuilder) addFunction(name string, fn Function) error {
	if name == "" {
		return fmt.Errorf("host function name cannot be empty")
	}
	if fn.Handler == nil {
		return fmt.Errorf("host function %q has no handler", name)
	}
	if fn.Arity < Variadic {
		return fmt.Errorf("host function %q has invalid arity %d", name, fn.Arity)
	}
	if _, exists := b.functions[name]; exists {
		return fmt.Errorf("duplicate host function name: %q", name)
	}
	b.functions[name] = fn
	return nil
}

// WithFunction registers a handler expecting exactly arity arguments
// (or any number with Variadic).
func WithFunction(name string, arity int, handler Handler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addFunction(name, Function{Handler: handler, Arity: arity}); err != nil {
			b.errs = append(b.errs, err)
		}
	}
}

// WithBundle registers every function of a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		funcs := bundle.Functions()
		names := make([]string, 0, len(funcs))
		for name := range funcs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := b.addFunction(name, funcs[name]); err != nil {
				b.errs = append(b.errs, err)
			}
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
