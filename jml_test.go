package jml

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmllang/jml/bytecode"
	"github.com/jmllang/jml/errz"
	"github.com/jmllang/jml/importer"
	"github.com/jmllang/jml/vm"
	"github.com/stretchr/testify/require"
)

func TestBasicUsage(t *testing.T) {
	result, err := Eval(context.Background(), "1 + 1")
	require.NoError(t, err)
	require.Equal(t, 2.0, result)
}

func TestEvalResults(t *testing.T) {
	tests := []struct {
		input    string
		expected any
	}{
		{"0b1010 + 0x0F", 25.0},
		{"'a' :: 'b'", "ab"},
		{"[1, 'two', none]", []any{1.0, "two", nil}},
		{"let m = {'k': [true]}\nm", map[string]any{"k": []any{true}}},
		{"fn add(a, b) { a + b }\nadd", "<fn add/2>"},
		{"class P {}\n[P]", []any{"<class P>"}},
		{"let x = 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := Eval(context.Background(), tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestInterpretOutput(t *testing.T) {
	var out bytes.Buffer
	err := Interpret(context.Background(), "println(format('{} + {}', 1, 2))",
		WithStdout(&out))
	require.NoError(t, err)
	require.Equal(t, "1 + 2\n", out.String())
}

func TestInterpretReportsErrors(t *testing.T) {
	var stderr bytes.Buffer
	err := Interpret(context.Background(), "let a = 1\na()",
		WithStderr(&stderr), WithVMOptions(vm.WithColor(false)))
	var rerr *errz.RuntimeError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "Can only call functions and classes.\n[line 2] in __main()\n", stderr.String())
}

func TestCompileErrorCarriesFilename(t *testing.T) {
	_, err := Compile("let = 1", WithFilename("main.jml"))
	var cerr *errz.CompileError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "main.jml", cerr.Filename)
}

func TestWithGlobals(t *testing.T) {
	result, err := Eval(context.Background(), "greeting :: ', ' :: who",
		WithGlobals(map[string]any{"greeting": "hello"}),
		WithGlobal("who", "world"))
	require.NoError(t, err)
	require.Equal(t, "hello, world", result)
}

func TestCompileAndRun(t *testing.T) {
	data, err := Compile(`
fn fib(n) {
  if n < 2 {
    return n
  }
  fib(n - 1) + fib(n - 2)
}
println(fib(15))`)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte(bytecode.Shebang+bytecode.Magic)))

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), data, WithStdout(&out)))
	require.Equal(t, "610\n", out.String())

	err = Run(context.Background(), data[:len(data)-1])
	require.ErrorIs(t, err, bytecode.ErrCorrupt)
}

func TestBytecodeBacktraceNamesMethods(t *testing.T) {
	source := `class A {
  fn f() { 1 / 0 }
}
A().f()`
	want := []errz.Frame{{Function: "A.f", Line: 2}, {Function: "__main", Line: 4}}

	err := Interpret(context.Background(), source, WithStderr(io.Discard))
	var rerr *errz.RuntimeError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, want, rerr.Backtrace)

	data, err := Compile(source)
	require.NoError(t, err)
	err = Run(context.Background(), data, WithStderr(io.Discard))
	rerr = nil
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, want, rerr.Backtrace)
}

func TestLocalImporter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "greet.jml"),
		[]byte("fn hello(name) { 'hello ' :: name }\n"), 0o644))

	result, err := Eval(context.Background(), "import lib.greet\ngreet.hello('jml')",
		WithLocalImporter(dir))
	require.NoError(t, err)
	require.Equal(t, "hello jml", result)

	// An explicit importer wins over the local one.
	result, err = Eval(context.Background(), "import lib.greet\ngreet.hello('map')",
		WithLocalImporter(dir),
		WithImporter(importer.MapImporter{"lib.greet": "fn hello(n) { 'hi ' :: n }"}))
	require.NoError(t, err)
	require.Equal(t, "hi map", result)
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Interpret(ctx, "while true {\n}", WithStderr(io.Discard))
	require.ErrorIs(t, err, context.Canceled)
}

func TestStatefulVM(t *testing.T) {
	ctx := context.Background()
	v := NewVM(WithStdout(io.Discard))
	defer v.Close()

	_, err := v.Eval(ctx, "let count = 0\nfn bump(by) {\n  count += by\n  count\n}")
	require.NoError(t, err)

	result, err := v.Call(ctx, "bump", 5)
	require.NoError(t, err)
	require.Equal(t, 5.0, result)

	result, err = v.Eval(ctx, "bump(2)")
	require.NoError(t, err)
	require.Equal(t, 7.0, result)

	count, ok := v.Get("count")
	require.True(t, ok)
	require.Equal(t, 7.0, count)

	_, ok = v.Get("nothing")
	require.False(t, ok)

	_, err = v.Call(ctx, "nothing")
	require.Error(t, err)

	_, err = v.Call(ctx, "bump", struct{}{})
	require.Error(t, err)
	require.Equal(t, 0, v.Machine().Heap().ExemptDepth())
}

func TestVersion(t *testing.T) {
	result, err := Eval(context.Background(), "version()")
	require.NoError(t, err)
	require.Equal(t, Version, result)
}
