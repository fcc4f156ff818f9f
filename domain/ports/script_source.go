package ports

import (
	"context"
	"io/fs"
	"path/filepath"
)

// ScriptSource runs a named script file through a Bridge.
type ScriptSource interface {
	// Run loads and executes name.
	Run(ctx context.Context, b Bridge, name string) error

	// Describe returns where name is read from, for diagnostics.
	Describe(name string) string
}

// DirSource reads scripts from a directory on disk.
type DirSource struct {
	Dir string
}

// Run executes Dir/name with Bridge.RunFile.
func (s DirSource) Run(ctx context.Context, b Bridge, name string) error {
	return b.RunFile(ctx, s.Describe(name))
}

// Describe returns the script path.
func (s DirSource) Describe(name string) string {
	return filepath.Join(s.Dir, name)
}

// FSSource reads scripts from a filesystem such as an embed.FS.
type FSSource struct {
	FS fs.FS
}

// Run executes name with Bridge.RunFS.
func (s FSSource) Run(ctx context.Context, b Bridge, name string) error {
	return b.RunFS(ctx, s.FS, name)
}

// Describe returns name unchanged.
func (s FSSource) Describe(name string) string {
	return name
}

var (
	_ ScriptSource = DirSource{}
	_ ScriptSource = FSSource{}
)
