package hostfuncs

import (
	"context"
)

// HostContext is the context a handler runs with while a script call is in
// progress. Values kept with Store live for that one call only, which lets
// middleware hand data to the handler it wraps.
type HostContext interface {
	context.Context

	// FunctionName returns the script-visible name the call was made under.
	FunctionName() string

	// Store keeps value under key for the rest of the call.
	Store(key, value any)

	// Load returns the value kept under key.
	Load(key any) (value any, ok bool)
}

type callContext struct {
	context.Context
	scratch map[any]any
	name    string
}

// NewHostContext starts a call context for the function name.
func NewHostContext(ctx context.Context, name string) HostContext {
	return &callContext{Context: ctx, name: name}
}

func (c *callContext) FunctionName() string { return c.name }

func (c *callContext) Store(key, value any) {
	if c.scratch == nil {
		c.scratch = make(map[any]any)
	}
	c.scratch[key] = value
}

func (c *callContext) Load(key any) (any, bool) {
	v, ok := c.scratch[key]
	return v, ok
}

// Value answers stored keys first, so code that only sees a
// context.Context still finds them.
func (c *callContext) Value(key any) any {
	if v, ok := c.scratch[key]; ok {
		return v
	}
	return c.Context.Value(key)
}

// HostContextFrom reuses ctx when it already is the call context of name and
// starts a new one on top of it otherwise.
func HostContextFrom(ctx context.Context, name string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == name {
		return hc
	}
	return NewHostContext(ctx, name)
}

// FunctionName returns the function name carried by ctx, or "unknown".
func FunctionName(ctx context.Context) string {
	if hc, ok := ctx.(HostContext); ok {
		return hc.FunctionName()
	}
	return "unknown"
}
