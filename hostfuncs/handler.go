package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
)

// Variadic disables the argument count check for a host function.
const Variadic = -1

// Handler implements a host function. It receives the script's arguments in
// order and returns the values the script receives, in order.
// A returned error is raised as a script error at the call site.
type Handler func(ctx context.Context, args Args) ([]entities.Value, error)

// Function is a handler together with the number of arguments it expects.
type Function struct {
	Handler Handler
	// Arity is the exact argument count, or Variadic.
	Arity int
}

// Call checks the argument count and invokes fn under name.
func Call(ctx context.Context, name string, fn Function, args Args) ([]entities.Value, error) {
	if fn.Arity >= 0 && args.Len() != fn.Arity {
		return nil, &domainerrors.CountError{
			Function: name,
			What:     "arguments",
			Expected: fn.Arity,
			Got:      args.Len(),
		}
	}
	return fn.Handler(HostContextFrom(ctx, name), args)
}

// HostFunc is a typed host function.
type HostFunc[Req any, Resp any] func(context.Context, Req) (Resp, error)

// NewJSONHandler wraps a typed HostFunc into a Handler taking one argument.
// The argument (usually a table) is decoded into Req through its JSON form
// and Resp is returned to the script as the matching value.
//
// Usage:
//
//	lengthHandler := hostfuncs.NewJSONHandler(func(ctx context.Context, p Point) (Length, error) {
//	    return Length{Value: math.Hypot(p.X, p.Y)}, nil
//	})
//	registry, err := hostfuncs.NewRegistry(hostfuncs.WithFunction("point_length", 1, lengthHandler))
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) Handler {
	return func(ctx context.Context, args Args) ([]entities.Value, error) {
		arg := args.At(1)
		payload, err := json.Marshal(arg.Interface())
		if err != nil {
			return nil, &domainerrors.ValueError{Position: 1, Expected: "json value", Got: arg.Kind().String(), Err: err}
		}

		var req Req
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, &domainerrors.ValueError{Position: 1, Expected: fmt.Sprintf("%T", req), Got: arg.Kind().String(), Err: err}
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}

		v, err := FromJSONable(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return []entities.Value{v}, nil
	}
}

// FromJSONable converts x into a Value through its JSON encoding, so struct
// tags decide field names.
func FromJSONable(x any) (entities.Value, error) {
	data, err := json.Marshal(x)
	if err != nil {
		return entities.Nil(), err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return entities.Nil(), err
	}
	return entities.FromGo(generic)
}
