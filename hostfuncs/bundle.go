package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
)

// HostFuncBundle is a pre-configured set of related host functions.
type HostFuncBundle interface {
	// Functions returns the bundle's functions keyed by name.
	Functions() map[string]Function
}

// staticBundle implements HostFuncBundle with a fixed set of functions.
type staticBundle struct {
	functions map[string]Function
}

func (b *staticBundle) Functions() map[string]Function {
	return b.functions
}

// NewBundle returns a bundle over a fixed set of functions.
func NewBundle(functions map[string]Function) HostFuncBundle {
	return &staticBundle{functions: functions}
}

// MathBundle returns a bundle with arithmetic host functions:
// external_multiply.
func MathBundle() HostFuncBundle {
	return &staticBundle{
		functions: map[string]Function{
			"external_multiply": {Arity: 2, Handler: Multiply},
		},
	}
}

// Multiply returns the product of its two numeric arguments.
func Multiply(_ context.Context, args Args) ([]entities.Value, error) {
	a, err := args.Number(1)
	if err != nil {
		return nil, err
	}
	b, err := args.Number(2)
	if err != nil {
		return nil, err
	}
	return []entities.Value{entities.Number(a * b)}, nil
}

// JSONBundle returns a bundle converting between values and JSON text:
// json_encode, json_decode.
func JSONBundle() HostFuncBundle {
	return &staticBundle{
		functions: map[string]Function{
			"json_encode": {Arity: 1, Handler: encodeJSON},
			"json_decode": {Arity: 1, Handler: decodeJSON},
		},
	}
}

func encodeJSON(_ context.Context, args Args) ([]entities.Value, error) {
	v := args.At(1)
	if !v.Writable() {
		return nil, &domainerrors.ValueError{Position: 1, Expected: "encodable value", Got: v.Kind().String()}
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("json_encode: %w", err)
	}
	return []entities.Value{entities.String(string(data))}, nil
}

func decodeJSON(_ context.Context, args Args) ([]entities.Value, error) {
	text, err := args.String(1)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil, fmt.Errorf("json_decode: %w", err)
	}
	v, err := entities.FromGo(generic)
	if err != nil {
		return nil, fmt.Errorf("json_decode: %w", err)
	}
	return []entities.Value{v}, nil
}

// LogFunctionName is the name under which LogBundle exposes script logging.
const LogFunctionName = "log_message"

// LogBundle returns a bundle routing script log lines to logger:
// log_message(level, message).
func LogBundle(logger *slog.Logger) HostFuncBundle {
	if logger == nil {
		logger = slog.Default()
	}
	return &staticBundle{
		functions: map[string]Function{
			LogFunctionName: {Arity: 2, Handler: func(ctx context.Context, args Args) ([]entities.Value, error) {
				level, err := args.String(1)
				if err != nil {
					return nil, err
				}
				msg, err := args.String(2)
				if err != nil {
					return nil, err
				}
				logger.Log(ctx, ParseScriptLevel(level), msg, "source", "script")
				return nil, nil
			}},
		},
	}
}

// ParseScriptLevel maps a script-supplied level name to a slog level.
// Unknown names log at info.
func ParseScriptLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	}
	return slog.LevelInfo
}
