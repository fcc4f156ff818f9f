// Command emlua runs the embedding walkthrough, an interactive session or
// prints the configuration schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/emlua-dev/emlua/config"
	"github.com/emlua-dev/emlua/examples"
	"github.com/emlua-dev/emlua/host"
	"github.com/emlua-dev/emlua/hostfuncs"
	"github.com/emlua-dev/emlua/internal/repl"
	emlog "github.com/emlua-dev/emlua/log"
)

const usageText = `usage: emlua <command> [flags]

commands:
  run      run the examples (default)
  repl     start an interactive session
  schema   print the JSON schema of the configuration file

Run "emlua <command> -h" for the flags of a command.`

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	commandName = "emlua"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		return cmdRun(ctx, args, stdout, stderr)
	case "repl":
		return cmdRepl(ctx, args, stdout, stderr)
	case "schema":
		return cmdSchema(args, stdout, stderr)
	case "help":
		fmt.Fprintln(stdout, usageText)
		return exitOK
	}
	fmt.Fprintf(stderr, "%s: unknown command %q\n\n%s\n", commandName, cmd, usageText)
	return exitUsage
}

// commonFlags are shared by run and repl.
type commonFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	noStdlib   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&c.logFormat, "log-format", "", "log format: text or json")
	fs.BoolVar(&c.noStdlib, "no-stdlib", false, "do not register the interpreter standard library")
}

// load reads the configuration and applies flag overrides.
func (c *commonFlags) load() (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if c.noStdlib {
		cfg.Stdlib = false
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := emlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := emlog.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return emlog.New(emlog.WithWriter(w), emlog.WithLevel(level), emlog.WithFormat(format)), nil
}

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	scriptsDir := fs.String("scripts", "", "read scripts from this directory instead of the embedded copies")
	only := fs.String("only", "", "comma-separated example names or numbers to run")
	stopOnError := fs.Bool("stop-on-error", false, "stop after the first example that does not succeed")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitUsage
	}
	if *scriptsDir != "" {
		cfg.ScriptsDir = *scriptsDir
	}
	if *only != "" {
		cfg.Examples = splitList(*only)
	}
	if *stopOnError {
		cfg.StopOnError = true
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitUsage
	}
	slog.SetDefault(logger)

	hostOpts, err := cfg.HostOptions()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitUsage
	}
	hostOpts = append(hostOpts, host.WithOutput(stdout), host.WithLogger(logger))

	opts := []examples.RunnerOption{
		examples.WithOutput(stdout),
		examples.WithLogger(logger),
		examples.WithBridgeFactory(examples.SessionFactory(hostOpts...)),
		examples.WithStopOnError(cfg.StopOnError),
		examples.WithOnly(cfg.Examples...),
	}
	if cfg.ScriptsDir != "" {
		opts = append(opts, examples.WithScriptsDir(cfg.ScriptsDir))
	}

	results, err := examples.NewRunner(opts...).Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		if ctx.Err() != nil {
			return exitFailed
		}
		return exitUsage
	}

	failed := 0
	for _, res := range results {
		if !res.IsSuccess() {
			failed++
		}
	}
	logger.Info("run finished", "examples", len(results), "failed", failed)
	if examples.Failed(results) {
		return exitFailed
	}
	return exitOK
}

func cmdRepl(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitUsage
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitUsage
	}
	slog.SetDefault(logger)

	session, err := openReplSession(cfg, stdout, logger)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitFailed
	}
	defer session.Close()

	if err := repl.Start(ctx, session, stdout, stderr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitFailed
	}
	return exitOK
}

// openReplSession opens a session with the configured globals and the math
// and JSON host functions.
func openReplSession(cfg config.Config, stdout io.Writer, logger *slog.Logger) (*host.Session, error) {
	registry, err := hostfuncs.NewRegistry(
		hostfuncs.WithBundle(hostfuncs.MathBundle()),
		hostfuncs.WithBundle(hostfuncs.JSONBundle()),
		hostfuncs.WithMiddleware(hostfuncs.LoggingMiddleware(logger)),
	)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.HostOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		host.WithHostFunctions(registry),
		host.WithOutput(stdout),
		host.WithLogger(logger),
		host.WithChunkName("repl"),
	)
	return host.Open(opts...)
}

func cmdSchema(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	data, err := config.Schema()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", commandName, err)
		return exitFailed
	}
	fmt.Fprintln(stdout, string(data))
	return exitOK
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
