// Package repl runs an interactive interpreter session on a terminal.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emlua-dev/emlua/domain/entities"
	"github.com/emlua-dev/emlua/host"
	"github.com/peterh/liner"
	"github.com/yuin/gopher-lua/parse"
)

const (
	promptMain  = "lua> "
	promptCont  = "...> "
	historyFile = ".emlua_history"
	valueGlobal = "__repl_value"
)

const help = `Enter Lua statements. A statement spanning lines continues until it parses.
  =expr      print the value of expr
  :globals   list globals defined in this session
  :help      show this help
  :quit      leave`

// LineReader reads one line of input per prompt.
// *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// REPL evaluates input against one session.
type REPL struct {
	session *host.Session
	out     io.Writer
	errOut  io.Writer
}

// New returns a REPL writing results to out and errors to errOut.
func New(session *host.Session, out, errOut io.Writer) *REPL {
	return &REPL{session: session, out: out, errOut: errOut}
}

// Eval evaluates one complete input and reports whether the user asked to quit.
func (r *REPL) Eval(ctx context.Context, input string) (quit bool) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return false
	case strings.HasPrefix(input, ":"):
		return r.command(input)
	case strings.HasPrefix(input, "="):
		r.printValue(ctx, strings.TrimSpace(input[1:]))
		return false
	}

	if err := r.session.RunText(ctx, input); err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
	}
	return false
}

func (r *REPL) command(input string) bool {
	switch strings.ToLower(input) {
	case ":quit", ":q":
		return true
	case ":globals":
		for _, name := range r.session.GlobalNames() {
			v, _ := r.session.ReadGlobal(name)
			fmt.Fprintf(r.out, "%s\t%s\n", name, v.Kind())
		}
	case ":help":
		fmt.Fprintln(r.out, help)
	default:
		fmt.Fprintf(r.errOut, "unknown command %s. Type :help for commands.\n", input)
	}
	return false
}

func (r *REPL) printValue(ctx context.Context, expr string) {
	if expr == "" {
		fmt.Fprintln(r.errOut, "error: missing expression after =")
		return
	}
	if err := r.session.RunText(ctx, fmt.Sprintf("%s = (%s)", valueGlobal, expr)); err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return
	}
	v, err := r.session.ReadGlobal(valueGlobal)
	_ = r.session.WriteGlobal(valueGlobal, entities.Nil())
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, v)
}

// Incomplete reports whether src stops in the middle of a statement, so
// more lines should be read before evaluating it.
func Incomplete(src string) bool {
	trimmed := strings.TrimSpace(src)
	if strings.HasPrefix(trimmed, "=") || strings.HasPrefix(trimmed, ":") {
		return false
	}
	_, err := parse.Parse(strings.NewReader(src), "<repl>")
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "at EOF") || strings.Contains(msg, "near 'EOF'")
}

// Run reads and evaluates input until :quit or end of input.
func (r *REPL) Run(ctx context.Context, ln LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, ok, err := readChunk(ln)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(r.out)
			return nil
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if r.Eval(ctx, src) {
			return nil
		}
	}
}

// readChunk prompts until the collected lines form a complete chunk.
// ok is false at end of input.
func readChunk(ln LineReader) (src string, ok bool, err error) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			if b.Len() > 0 {
				return b.String(), true, nil
			}
			return "", false, nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			b.Reset()
			continue
		}
		if err != nil {
			return "", false, err
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !Incomplete(b.String()) {
			return b.String(), true, nil
		}
	}
}

// Start runs a REPL on the terminal with history kept in the user's home
// directory.
func Start(ctx context.Context, session *host.Session, out, errOut io.Writer) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintln(out, "emlua interactive session. Type :help for commands.")
	return New(session, out, errOut).Run(ctx, ln)
}
