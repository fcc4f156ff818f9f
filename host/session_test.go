package host_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
	"github.com/emlua-dev/emlua/host"
	"github.com/emlua-dev/emlua/hostfuncs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// SessionSuite exercises one fresh session per test.
type SessionSuite struct {
	suite.Suite
	ctx     context.Context
	out     *bytes.Buffer
	session *host.Session
}

func (s *SessionSuite) SetupTest() {
	s.ctx = context.Background()
	s.out = &bytes.Buffer{}
	session, err := host.Open(host.WithOutput(s.out))
	s.Require().NoError(err)
	s.session = session
}

func (s *SessionSuite) TearDownTest() {
	if !s.session.Closed() {
		s.Require().NoError(s.session.Close())
	}
}

func (s *SessionSuite) TestRunText_GlobalsVisibleAfterwards() {
	s.Require().NoError(s.session.RunText(s.ctx, `number = 42; greeting = "hi"; flag = true`))

	v, err := s.session.ReadGlobal("number")
	s.Require().NoError(err)
	s.True(v.Equal(entities.Int(42)))

	v, err = s.session.ReadGlobal("greeting")
	s.Require().NoError(err)
	s.True(v.Equal(entities.String("hi")))

	v, err = s.session.ReadGlobal("flag")
	s.Require().NoError(err)
	s.True(v.Equal(entities.Bool(true)))

	s.Equal(0, s.session.StackDepth())
}

func (s *SessionSuite) TestRunText_Print() {
	s.Require().NoError(s.session.RunText(s.ctx, `print("[Lua] Hello", 1, 2.5, nil, true)`))
	s.Equal("[Lua] Hello\t1\t2.5\tnil\ttrue\n", s.out.String())
}

func (s *SessionSuite) TestRunText_StdlibAvailable() {
	s.Require().NoError(s.session.RunText(s.ctx, `r = math.floor(2.7) .. string.upper("x")`))
	v, err := s.session.ReadGlobal("r")
	s.Require().NoError(err)
	s.True(v.Equal(entities.String("2X")))
}

func (s *SessionSuite) TestRunText_SyntaxError() {
	err := s.session.RunText(s.ctx, `this is not lua`)

	var loadErr *domainerrors.LoadError
	s.Require().True(errors.As(err, &loadErr))
	s.Equal("<string>", loadErr.Source)
	s.Equal(0, s.session.StackDepth())
}

func (s *SessionSuite) TestRunText_RuntimeErrorKeepsPartialBindings() {
	err := s.session.RunText(s.ctx, `before = 1; error("boom"); after = 2`)

	var rtErr *domainerrors.RuntimeError
	s.Require().True(errors.As(err, &rtErr))
	s.Contains(rtErr.Message, "boom")
	s.Equal("<string>", rtErr.Source)
	s.Equal(0, s.session.StackDepth())

	before, err := s.session.ReadGlobal("before")
	s.Require().NoError(err)
	s.True(before.Equal(entities.Int(1)))

	after, err := s.session.ReadGlobal("after")
	s.Require().NoError(err)
	s.True(after.IsNil())
}

func (s *SessionSuite) TestRunFile() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "script.lua")
	s.Require().NoError(os.WriteFile(path, []byte(`from_file = "yes"`), 0o600))

	s.Require().NoError(s.session.RunFile(s.ctx, path))

	v, err := s.session.ReadGlobal("from_file")
	s.Require().NoError(err)
	s.True(v.Equal(entities.String("yes")))
}

func (s *SessionSuite) TestRunFile_Missing() {
	err := s.session.RunFile(s.ctx, filepath.Join(s.T().TempDir(), "missing.lua"))

	var loadErr *domainerrors.LoadError
	s.Require().True(errors.As(err, &loadErr))
	s.True(errors.Is(err, fs.ErrNotExist))
}

func (s *SessionSuite) TestRunFile_SyntaxErrorNamesFile() {
	path := filepath.Join(s.T().TempDir(), "broken.lua")
	s.Require().NoError(os.WriteFile(path, []byte("function (\n"), 0o600))

	err := s.session.RunFile(s.ctx, path)
	var loadErr *domainerrors.LoadError
	s.Require().True(errors.As(err, &loadErr))
	s.Equal(path, loadErr.Source)
}

func (s *SessionSuite) TestRunFS() {
	fsys := fstest.MapFS{"a.lua": {Data: []byte(`a = 1`)}}

	s.Require().NoError(s.session.RunFS(s.ctx, fsys, "a.lua"))
	err := s.session.RunFS(s.ctx, fsys, "b.lua")

	var loadErr *domainerrors.LoadError
	s.Require().True(errors.As(err, &loadErr))
	s.Equal("b.lua", loadErr.Source)
}

func (s *SessionSuite) TestWriteThenReadRoundTrip() {
	values := map[string]entities.Value{
		"n":   entities.Nil(),
		"b":   entities.Bool(false),
		"i":   entities.Int(321),
		"f":   entities.Number(3.25),
		"s":   entities.String("text"),
		"l":   entities.List(entities.Int(1), entities.String("two")),
		"m":   entities.Map(map[string]entities.Value{"x": entities.Int(1)}),
		"mix": entities.Table([]entities.Value{entities.Int(9)}, map[string]entities.Value{"k": entities.Bool(true)}),
	}

	for name, v := range values {
		s.Run(name, func() {
			s.Require().NoError(s.session.WriteGlobal(name, v))
			got, err := s.session.ReadGlobal(name)
			s.Require().NoError(err)
			s.True(v.Equal(got), "want %s, got %s", v, got)
		})
	}
	s.Equal(0, s.session.StackDepth())
}

func (s *SessionSuite) TestWriteGlobal_VisibleToScript() {
	s.Require().NoError(s.session.WriteGlobal("external_number", entities.Int(321)))
	s.Require().NoError(s.session.RunText(s.ctx, `doubled = external_number * 2`))

	v, err := s.session.ReadGlobal("doubled")
	s.Require().NoError(err)
	s.True(v.Equal(entities.Int(642)))
}

func (s *SessionSuite) TestWriteGlobal_LastWriteWins() {
	s.Require().NoError(s.session.WriteGlobal("x", entities.Int(1)))
	s.Require().NoError(s.session.WriteGlobal("x", entities.String("two")))

	v, err := s.session.ReadGlobal("x")
	s.Require().NoError(err)
	s.True(v.Equal(entities.String("two")))
}

func (s *SessionSuite) TestWriteGlobal_Rejects() {
	err := s.session.WriteGlobal("fn", entities.Opaque(entities.KindFunction, "function"))
	var ve *domainerrors.ValueError
	s.True(errors.As(err, &ve))

	s.Error(s.session.WriteGlobal("", entities.Int(1)))
}

func (s *SessionSuite) TestLookup() {
	_, ok, err := s.session.Lookup("nothing_here")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.session.RunText(s.ctx, `function add(a, b) return a + b end`))
	v, ok, err := s.session.Lookup("add")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(entities.KindFunction, v.Kind())
}

func (s *SessionSuite) TestCallFunction_Add() {
	s.Require().NoError(s.session.RunText(s.ctx, `function add(a, b) return a + b end`))

	out, err := s.session.CallFunction(s.ctx, "add", 1, entities.Int(35), entities.Int(65))
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.True(out[0].Equal(entities.Int(100)))
	s.Equal(0, s.session.StackDepth())
}

func (s *SessionSuite) TestCallFunction_NotFound() {
	_, err := s.session.CallFunction(s.ctx, "add", 1, entities.Int(35), entities.Int(65))

	var miss *domainerrors.LookupMiss
	s.Require().True(errors.As(err, &miss))
	s.Equal("add", miss.Name)
	s.Equal("not defined", miss.Reason)
	s.True(errors.Is(err, domainerrors.ErrNotFound))
}

func (s *SessionSuite) TestCallFunction_NotCallable() {
	s.Require().NoError(s.session.WriteGlobal("add", entities.Int(5)))

	_, err := s.session.CallFunction(s.ctx, "add", 1)
	var miss *domainerrors.LookupMiss
	s.Require().True(errors.As(err, &miss))
	s.Contains(miss.Reason, "not callable")
}

func (s *SessionSuite) TestCallFunction_CallableTable() {
	s.Require().NoError(s.session.RunText(s.ctx, `
		counter = setmetatable({}, { __call = function(self, n) return n + 1 end })
	`))

	out, err := s.session.CallFunction(s.ctx, "counter", 1, entities.Int(1))
	s.Require().NoError(err)
	s.True(out[0].Equal(entities.Int(2)))
}

func (s *SessionSuite) TestCallFunction_RuntimeError() {
	s.Require().NoError(s.session.RunText(s.ctx, `function add(a, b) return a + b end`))

	out, err := s.session.CallFunction(s.ctx, "add", 1, entities.Int(1))
	s.Nil(out)

	var rtErr *domainerrors.RuntimeError
	s.Require().True(errors.As(err, &rtErr))
	s.Equal("add", rtErr.Function)
	s.Contains(rtErr.Message, "nil")
	s.Equal(0, s.session.StackDepth())
}

func (s *SessionSuite) TestCallFunction_ResultCounts() {
	s.Require().NoError(s.session.RunText(s.ctx, `function pair() return 1, 2 end`))

	out, err := s.session.CallFunction(s.ctx, "pair", 1)
	s.Require().NoError(err)
	s.Len(out, 1)

	out, err = s.session.CallFunction(s.ctx, "pair", host.MultRet)
	s.Require().NoError(err)
	s.Len(out, 2)

	_, err = s.session.CallFunction(s.ctx, "pair", 3)
	var countErr *domainerrors.CountError
	s.Require().True(errors.As(err, &countErr))
	s.Equal("results", countErr.What)
	s.Equal(3, countErr.Expected)
	s.Equal(2, countErr.Got)
	s.Equal(0, s.session.StackDepth())

	_, err = s.session.CallFunction(s.ctx, "pair", -5)
	s.Error(err)
}

func (s *SessionSuite) TestCallFunction_UnwritableArgument() {
	s.Require().NoError(s.session.RunText(s.ctx, `function id(x) return x end`))

	_, err := s.session.CallFunction(s.ctx, "id", 1, entities.Opaque(entities.KindOther, "userdata"))
	var ve *domainerrors.ValueError
	s.Require().True(errors.As(err, &ve))
	s.Equal(1, ve.Position)
	s.Equal(0, s.session.StackDepth())
}

func (s *SessionSuite) TestRegisterFunction_ExternalMultiply() {
	s.Require().NoError(s.session.RegisterFunction("external_multiply", 2, hostfuncs.Multiply))
	s.Require().NoError(s.session.RunText(s.ctx, `product = external_multiply(12, 4)`))

	v, err := s.session.ReadGlobal("product")
	s.Require().NoError(err)
	s.True(v.Equal(entities.Int(48)))
	s.Contains(s.session.HostFunctionNames(), "external_multiply")
}

func (s *SessionSuite) TestRegisterFunction_ArgumentOrder() {
	var seen []entities.Value
	s.Require().NoError(s.session.RegisterFunction("collect", hostfuncs.Variadic,
		func(_ context.Context, args hostfuncs.Args) ([]entities.Value, error) {
			seen = args.Values()
			return []entities.Value{entities.Int(int64(args.Len())), entities.String("done")}, nil
		}))

	s.Require().NoError(s.session.RunText(s.ctx, `count, status = collect("a", "b", "c")`))

	s.Require().Len(seen, 3)
	s.True(seen[0].Equal(entities.String("a")))
	s.True(seen[2].Equal(entities.String("c")))

	count, _ := s.session.ReadGlobal("count")
	status, _ := s.session.ReadGlobal("status")
	s.True(count.Equal(entities.Int(3)))
	s.True(status.Equal(entities.String("done")))
}

func (s *SessionSuite) TestRegisterFunction_ArityMismatch() {
	s.Require().NoError(s.session.RegisterFunction("external_multiply", 2, hostfuncs.Multiply))

	err := s.session.RunText(s.ctx, `external_multiply(12)`)
	var rtErr *domainerrors.RuntimeError
	s.Require().True(errors.As(err, &rtErr))
	s.Contains(rtErr.Message, "external_multiply: expected 2 arguments, got 1")
}

func (s *SessionSuite) TestRegisterFunction_HandlerErrorCatchableByScript() {
	s.Require().NoError(s.session.RegisterFunction("fail", 0,
		func(context.Context, hostfuncs.Args) ([]entities.Value, error) {
			return nil, errors.New("host says no")
		}))

	s.Require().NoError(s.session.RunText(s.ctx, `ok, msg = pcall(fail)`))
	ok, _ := s.session.ReadGlobal("ok")
	msg, _ := s.session.ReadGlobal("msg")
	s.True(ok.Equal(entities.Bool(false)))
	text, _ := msg.AsString()
	s.Contains(text, "host says no")
}

func (s *SessionSuite) TestRegisterFunction_PanicBecomesScriptError() {
	s.Require().NoError(s.session.RegisterFunction("explode", 0,
		func(context.Context, hostfuncs.Args) ([]entities.Value, error) {
			panic("kaboom")
		}))

	err := s.session.RunText(s.ctx, `explode()`)
	var rtErr *domainerrors.RuntimeError
	s.Require().True(errors.As(err, &rtErr))
	s.Contains(rtErr.Message, "kaboom")
}

func (s *SessionSuite) TestRegisterFunction_CalledFromHostCall() {
	s.Require().NoError(s.session.RegisterFunction("external_multiply", 2, hostfuncs.Multiply))
	s.Require().NoError(s.session.RunText(s.ctx, `function square(x) return external_multiply(x, x) end`))

	out, err := s.session.CallFunction(s.ctx, "square", 1, entities.Int(9))
	s.Require().NoError(err)
	s.True(out[0].Equal(entities.Int(81)))
}

func (s *SessionSuite) TestRegisterFunction_ReceivesContext() {
	type key struct{}
	ctx := context.WithValue(s.ctx, key{}, "marker")

	var got any
	var name string
	s.Require().NoError(s.session.RegisterFunction("peek", 0,
		func(ctx context.Context, _ hostfuncs.Args) ([]entities.Value, error) {
			got = ctx.Value(key{})
			if hc, ok := ctx.(hostfuncs.HostContext); ok {
				name = hc.FunctionName()
			}
			return nil, nil
		}))

	s.Require().NoError(s.session.RunText(ctx, `peek()`))
	s.Equal("marker", got)
	s.Equal("peek", name)
}

func (s *SessionSuite) TestRegisterFunction_Rejects() {
	s.Error(s.session.RegisterFunction("", 0, hostfuncs.Multiply))
	s.Error(s.session.RegisterFunction("x", 0, nil))
	s.Error(s.session.RegisterFunction("x", -3, hostfuncs.Multiply))
}

func (s *SessionSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.session.RunText(ctx, `while true do end`)
	var rtErr *domainerrors.RuntimeError
	s.Require().True(errors.As(err, &rtErr))

	s.Require().NoError(s.session.RunText(s.ctx, `still_usable = true`))
}

func (s *SessionSuite) TestGlobalNames() {
	s.Require().NoError(s.session.RunText(s.ctx, `zeta = 1; alpha = 2; function helper() end`))
	s.Equal([]string{"alpha", "helper", "zeta"}, s.session.GlobalNames())
}

func (s *SessionSuite) TestClose() {
	s.Require().NoError(s.session.Close())
	s.True(s.session.Closed())

	s.ErrorIs(s.session.Close(), domainerrors.ErrSessionClosed)
	s.ErrorIs(s.session.RunText(s.ctx, `x = 1`), domainerrors.ErrSessionClosed)
	s.ErrorIs(s.session.RunFile(s.ctx, "x.lua"), domainerrors.ErrSessionClosed)
	s.ErrorIs(s.session.WriteGlobal("x", entities.Int(1)), domainerrors.ErrSessionClosed)
	s.ErrorIs(s.session.RegisterFunction("x", 0, hostfuncs.Multiply), domainerrors.ErrSessionClosed)

	v, err := s.session.ReadGlobal("x")
	s.ErrorIs(err, domainerrors.ErrSessionClosed)
	s.True(v.IsNil())

	_, err = s.session.CallFunction(s.ctx, "x", 0)
	s.ErrorIs(err, domainerrors.ErrSessionClosed)
	s.Equal(0, s.session.StackDepth())
	s.Nil(s.session.GlobalNames())
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func TestOpenCloseThenOpenAgain(t *testing.T) {
	for i := 0; i < 3; i++ {
		s, err := host.Open()
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err := host.Open(host.WithOutput(nil))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.RunText(context.Background(), `print("discarded")`))
}

func TestSessionsAreIsolated(t *testing.T) {
	a, err := host.Open()
	require.NoError(t, err)
	defer a.Close()
	b, err := host.Open()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.WriteGlobal("shared", entities.Int(1)))

	v, err := b.ReadGlobal("shared")
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestOpen_WithHostFunctionsAndGlobals(t *testing.T) {
	reg, err := hostfuncs.NewRegistry(
		hostfuncs.WithBundle(hostfuncs.MathBundle()),
		hostfuncs.WithBundle(hostfuncs.JSONBundle()),
	)
	require.NoError(t, err)

	s, err := host.Open(
		host.WithHostFunctions(reg),
		host.WithGlobals(map[string]entities.Value{"factor": entities.Int(7)}),
	)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RunText(context.Background(), `
		r = external_multiply(factor, 6)
		j = json_encode({r})
	`))

	r, _ := s.ReadGlobal("r")
	assert.True(t, r.Equal(entities.Int(42)))
	j, _ := s.ReadGlobal("j")
	assert.True(t, j.Equal(entities.String("[42]")))

	assert.Equal(t, []string{"external_multiply", "json_decode", "json_encode", "log_message"}, s.HostFunctionNames())
	assert.Equal(t, []string{"factor", "j", "r"}, s.GlobalNames())
}

func TestOpen_RejectsUnwritableGlobal(t *testing.T) {
	_, err := host.Open(host.WithGlobals(map[string]entities.Value{
		"bad": entities.Opaque(entities.KindFunction, "function"),
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestOpen_WithoutStdlib(t *testing.T) {
	var out bytes.Buffer
	s, err := host.Open(host.WithoutStdlib(), host.WithOutput(&out))
	require.NoError(t, err)
	defer s.Close()

	err = s.RunText(context.Background(), `x = string.upper("a")`)
	require.Error(t, err)

	require.NoError(t, s.RunText(context.Background(), `print("still prints")`))
	assert.Equal(t, "still prints\n", out.String())
}

func TestOpen_WithChunkName(t *testing.T) {
	s, err := host.Open(host.WithChunkName("inline"))
	require.NoError(t, err)
	defer s.Close()

	err = s.RunText(context.Background(), `error("x")`)
	var rtErr *domainerrors.RuntimeError
	require.True(t, errors.As(err, &rtErr))
	assert.Equal(t, "inline", rtErr.Source)
}

func TestLogMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	s, err := host.Open(host.WithLogger(logger))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RunText(context.Background(), `log_message("error", "from script")`))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), `msg="from script"`)
}

func TestWithMiddleware(t *testing.T) {
	var names []string
	recordName := func(next hostfuncs.Handler) hostfuncs.Handler {
		return func(ctx context.Context, args hostfuncs.Args) ([]entities.Value, error) {
			if hc, ok := ctx.(hostfuncs.HostContext); ok {
				names = append(names, hc.FunctionName())
			}
			return next(ctx, args)
		}
	}

	s, err := host.Open(host.WithMiddleware(recordName))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RegisterFunction("external_multiply", 2, hostfuncs.Multiply))
	require.NoError(t, s.RunText(context.Background(), `external_multiply(1, 2); external_multiply(3, 4)`))
	assert.Equal(t, []string{"external_multiply", "external_multiply"}, names)
}
