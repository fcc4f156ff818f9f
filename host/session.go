package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
	"github.com/emlua-dev/emlua/domain/ports"
	"github.com/emlua-dev/emlua/hostfuncs"
	"github.com/emlua-dev/emlua/internal/exchange"
	lua "github.com/yuin/gopher-lua"
)

// MultRet asks CallFunction for every value the function returns.
const MultRet = lua.MultRet

// Session owns one interpreter state for its whole lifetime.
type Session struct {
	ls       *lua.LState
	ctx      context.Context
	logger   *slog.Logger
	baseline map[string]struct{}
	hostFns  map[string]struct{}
	cfg      sessionConfig
}

var _ ports.Bridge = (*Session)(nil)

// Open allocates a new interpreter session and registers the standard
// library, the print and log_message functions, any host functions from
// WithHostFunctions and any globals from WithGlobals.
func Open(opts ...Option) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.output == nil {
		cfg.output = io.Discard
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		ls: lua.NewState(lua.Options{
			SkipOpenLibs:  cfg.skipStdlib,
			CallStackSize: cfg.callStackSize,
		}),
		ctx:     context.Background(),
		logger:  logger,
		hostFns: make(map[string]struct{}),
		cfg:     cfg,
	}

	s.ls.SetGlobal("print", s.ls.NewFunction(s.print))
	s.install(hostfuncs.LogFunctionName, hostfuncs.LogBundle(logger).Functions()[hostfuncs.LogFunctionName])

	if cfg.registry != nil {
		for _, name := range cfg.registry.Names() {
			fn, _ := cfg.registry.Lookup(name)
			s.install(name, fn)
		}
	}

	s.baseline = s.globalSet()

	for _, name := range sortedNames(cfg.globals) {
		if err := s.WriteGlobal(name, cfg.globals[name]); err != nil {
			s.ls.Close()
			return nil, fmt.Errorf("failed to write global %q: %w", name, err)
		}
	}

	logger.Debug("session opened",
		"stdlib", !cfg.skipStdlib,
		"host_functions", len(s.hostFns),
		"globals", len(cfg.globals))
	return s, nil
}

// Close releases the interpreter state. Every later operation, including
// a second Close, returns ErrSessionClosed.
func (s *Session) Close() error {
	if s.ls == nil {
		return domainerrors.ErrSessionClosed
	}
	s.ls.Close()
	s.ls = nil
	s.logger.Debug("session closed")
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.ls == nil
}

// RunFile loads and executes the script at path.
func (s *Session) RunFile(ctx context.Context, path string) error {
	if s.ls == nil {
		return domainerrors.ErrSessionClosed
	}
	f, err := os.Open(path)
	if err != nil {
		return &domainerrors.LoadError{Source: path, Err: err}
	}
	defer f.Close()
	return s.run(ctx, path, f)
}

// RunText executes inline script text, reported under the configured chunk name.
func (s *Session) RunText(ctx context.Context, source string) error {
	if s.ls == nil {
		return domainerrors.ErrSessionClosed
	}
	return s.run(ctx, s.cfg.chunkName, strings.NewReader(source))
}

// RunFS loads and executes the script name from fsys.
func (s *Session) RunFS(ctx context.Context, fsys fs.FS, name string) error {
	if s.ls == nil {
		return domainerrors.ErrSessionClosed
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return &domainerrors.LoadError{Source: name, Err: err}
	}
	return s.run(ctx, name, bytes.NewReader(data))
}

func (s *Session) run(ctx context.Context, source string, r io.Reader) error {
	leave := s.enter(ctx)
	defer leave()

	mark := exchange.Mark(s.ls)
	defer exchange.Reset(s.ls, mark)

	s.logger.Debug("running script", "source", source)

	fn, err := s.ls.Load(r, source)
	if err != nil {
		return s.classify(source, "", err)
	}
	s.ls.Push(fn)
	if err := s.ls.PCall(0, lua.MultRet, nil); err != nil {
		return s.classify(source, "", err)
	}
	return nil
}

// ReadGlobal returns the current value of a global; unbound names read as nil.
func (s *Session) ReadGlobal(name string) (entities.Value, error) {
	if s.ls == nil {
		return entities.Nil(), domainerrors.ErrSessionClosed
	}
	return exchange.FromLua(s.ls.GetGlobal(name)), nil
}

// Lookup is ReadGlobal that also reports whether the name is bound.
func (s *Session) Lookup(name string) (entities.Value, bool, error) {
	v, err := s.ReadGlobal(name)
	if err != nil {
		return v, false, err
	}
	return v, !v.IsNil(), nil
}

// WriteGlobal binds v to name, replacing any prior binding.
func (s *Session) WriteGlobal(name string, v entities.Value) error {
	if s.ls == nil {
		return domainerrors.ErrSessionClosed
	}
	if name == "" {
		return fmt.Errorf("global name cannot be empty")
	}
	lv, err := exchange.ToLua(s.ls, v)
	if err != nil {
		return fmt.Errorf("global %q: %w", name, err)
	}
	s.ls.SetGlobal(name, lv)
	return nil
}

// CallFunction calls the global function name with args and returns nret
// results, or all of them with MultRet.
//
// A name that is unbound or not callable yields a *errors.LookupMiss without
// calling anything. A script error during the call yields a
// *errors.RuntimeError. Fewer results than nret yield a *errors.CountError;
// extra results are dropped.
func (s *Session) CallFunction(ctx context.Context, name string, nret int, args ...entities.Value) ([]entities.Value, error) {
	if s.ls == nil {
		return nil, domainerrors.ErrSessionClosed
	}
	if nret < MultRet {
		return nil, fmt.Errorf("invalid result count %d", nret)
	}

	fn := s.ls.GetGlobal(name)
	if reason, ok := s.callable(fn); !ok {
		return nil, &domainerrors.LookupMiss{Name: name, Kind: "function", Reason: reason}
	}

	leave := s.enter(ctx)
	defer leave()

	mark := exchange.Mark(s.ls)
	defer exchange.Reset(s.ls, mark)

	s.ls.Push(fn)
	if err := exchange.PushAll(s.ls, args); err != nil {
		return nil, fmt.Errorf("call to %s: %w", name, err)
	}

	s.logger.Debug("calling script function", "function", name, "args", len(args))
	if err := s.ls.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, s.classify("", name, err)
	}

	got := exchange.Mark(s.ls) - mark
	if nret == MultRet {
		return exchange.Pull(s.ls, mark+1, got), nil
	}
	if got < nret {
		return nil, &domainerrors.CountError{Function: name, What: "results", Expected: nret, Got: got}
	}
	return exchange.Pull(s.ls, mark+1, nret), nil
}

// RegisterFunction binds a host function under name so scripts can call it.
// With arity >= 0 the script must pass exactly that many arguments;
// hostfuncs.Variadic accepts any number. Registering an existing name
// replaces it.
func (s *Session) RegisterFunction(name string, arity int, h hostfuncs.Handler) error {
	if s.ls == nil {
		return domainerrors.ErrSessionClosed
	}
	if name == "" {
		return fmt.Errorf("host function name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("host function %q has no handler", name)
	}
	if arity < hostfuncs.Variadic {
		return fmt.Errorf("host function %q has invalid arity %d", name, arity)
	}
	s.install(name, hostfuncs.Function{
		Handler: hostfuncs.Chain(h, s.cfg.middleware...),
		Arity:   arity,
	})
	s.logger.Debug("host function registered", "function", name, "arity", arity)
	return nil
}

// StackDepth returns the current depth of the exchange stack.
// It is zero between operations.
func (s *Session) StackDepth() int {
	if s.ls == nil {
		return 0
	}
	return s.ls.GetTop()
}

// GlobalNames returns the sorted names of globals bound since the session
// opened, excluding the standard library and installed host functions.
func (s *Session) GlobalNames() []string {
	if s.ls == nil {
		return nil
	}
	var names []string
	for name := range s.globalSet() {
		if _, ok := s.baseline[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HostFunctionNames returns the sorted names of installed host functions.
func (s *Session) HostFunctionNames() []string {
	names := make([]string, 0, len(s.hostFns))
	for name := range s.hostFns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// install binds fn as a script-callable function. Arguments are read from
// the stack bottom-up, so the last argument is the one nearest the top.
func (s *Session) install(name string, fn hostfuncs.Function) {
	fn.Handler = hostfuncs.PanicRecoveryMiddleware()(fn.Handler)
	s.ls.SetGlobal(name, s.ls.NewFunction(func(L *lua.LState) int {
		args := hostfuncs.NewArgs(exchange.Pull(L, 1, L.GetTop())...)
		results, err := hostfuncs.Call(s.ctx, name, fn, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		for i, v := range results {
			if err := exchange.Push(L, v); err != nil {
				L.RaiseError("%s: result #%d: %s", name, i+1, err.Error())
				return 0
			}
		}
		return len(results)
	}))
	s.hostFns[name] = struct{}{}
}

// enter makes ctx current for host functions and, when it can be
// cancelled, attaches it to the interpreter.
func (s *Session) enter(ctx context.Context) (leave func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	prev := s.ctx
	s.ctx = ctx

	attached := false
	if ctx.Done() != nil && s.ls.Context() == nil {
		s.ls.SetContext(ctx)
		attached = true
	}
	return func() {
		if attached && s.ls != nil {
			s.ls.RemoveContext()
		}
		s.ctx = prev
	}
}

func (s *Session) callable(fn lua.LValue) (string, bool) {
	switch fn.Type() {
	case lua.LTFunction:
		return "", true
	case lua.LTNil:
		return "not defined", false
	}
	if s.ls.GetMetaField(fn, "__call") != lua.LNil {
		return "", true
	}
	return fmt.Sprintf("not callable (%s)", fn.Type().String()), false
}

// classify turns an interpreter error into a LoadError or RuntimeError.
func (s *Session) classify(source, function string, err error) error {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return &domainerrors.RuntimeError{Source: source, Function: function, Message: err.Error(), Err: err}
	}

	msg := apiErr.Error()
	if apiErr.Object != nil {
		msg = apiErr.Object.String()
	}

	switch apiErr.Type {
	case lua.ApiErrorSyntax, lua.ApiErrorFile:
		return &domainerrors.LoadError{Source: source, Err: errors.New(msg)}
	}

	rtErr := &domainerrors.RuntimeError{
		Source:    source,
		Function:  function,
		Message:   msg,
		Traceback: apiErr.StackTrace,
		Err:       apiErr,
	}
	s.logger.Debug("script error", "source", source, "function", function, "error", msg)
	return rtErr
}

func (s *Session) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, top)
	for i := 1; i <= top; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(s.cfg.output, strings.Join(parts, "\t"))
	return 0
}

func (s *Session) globalSet() map[string]struct{} {
	set := make(map[string]struct{})
	s.ls.G.Global.ForEach(func(k, _ lua.LValue) {
		if name, ok := k.(lua.LString); ok {
			set[string(name)] = struct{}{}
		}
	})
	return set
}

func sortedNames(globals map[string]entities.Value) []string {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
