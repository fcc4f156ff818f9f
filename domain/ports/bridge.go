package ports

import (
	"context"
	"io/fs"

	"github.com/emlua-dev/emlua/domain/entities"
	"github.com/emlua-dev/emlua/hostfuncs"
)

// Bridge is one interpreter session as seen by host code.
type Bridge interface {
	// RunFile loads and executes the script at path.
	RunFile(ctx context.Context, path string) error

	// RunText executes inline script text.
	RunText(ctx context.Context, source string) error

	// RunFS loads and executes the script name from fsys.
	RunFS(ctx context.Context, fsys fs.FS, name string) error

	// ReadGlobal returns the value bound to name, nil when unbound.
	ReadGlobal(name string) (entities.Value, error)

	// WriteGlobal binds v to name.
	WriteGlobal(name string, v entities.Value) error

	// CallFunction calls a script function and returns nret results.
	CallFunction(ctx context.Context, name string, nret int, args ...entities.Value) ([]entities.Value, error)

	// RegisterFunction exposes a host function to scripts.
	RegisterFunction(name string, arity int, h hostfuncs.Handler) error

	// Close releases the session.
	Close() error
}

// BridgeFactory opens a fresh Bridge.
type BridgeFactory func() (Bridge, error)
