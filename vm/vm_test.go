package vm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jmllang/jml/errz"
	"github.com/jmllang/jml/importer"
	"github.com/jmllang/jml/object"
	"github.com/stretchr/testify/require"
)

// run interprets source on a fresh machine and returns what it printed.
func run(t *testing.T, source string, opts ...Option) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithStdout(&out), WithStderr(io.Discard)}, opts...)
	m := New(opts...)
	defer m.Free()
	_, err := m.Interpret(context.Background(), source)
	return out.String(), err
}

// eval evaluates source on a fresh machine and converts the result.
func eval(t *testing.T, source string, opts ...Option) any {
	t.Helper()
	m := New(opts...)
	defer m.Free()
	v, err := m.Eval(context.Background(), source)
	require.NoError(t, err)
	return object.ToGo(v)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		source   string
		expected any
	}{
		{"1 + 2 * 3", 7.0},
		{"10 / 4", 2.5},
		{"7 % 3", 1.0},
		{"-7 % 3", -1.0},
		{"2 ** 10", 1024.0},
		{"-(1 + 2)", -3.0},
		{`"x" + 1`, "x1"},
		{`1 + "x"`, "1x"},
		{`"a" + "b"`, "ab"},
		{`0.5 + ""`, "0.5"},
		{`"n" :: 1 :: true`, "n1true"},
		{"[1] + [2, 3]", []any{1.0, 2.0, 3.0}},
		{"[1] + 2", []any{1.0, 2.0}},
		{"1 < 2 and 2 >= 2", true},
		{"not (1 == 1)", false},
		{"'a' != 'b'", true},
		{"[1, 2] == [1, 2]", false},
		{"2 in [1, 2]", true},
		{"'b' in {'b': 1}", true},
		{"'ell' in 'hello'", true},
		{"'z' in 'hello'", false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			require.Equal(t, tt.expected, eval(t, tt.source))
		})
	}
}

func TestIndexing(t *testing.T) {
	tests := []struct {
		source   string
		expected any
	}{
		{"[1, 2, 3][0]", 1.0},
		{"[1, 2, 3][-1]", 3.0},
		{"'hello'[1]", "e"},
		{"let m = {'a': 1}\nm['a']", 1.0},
		{"let m = {'a': 1}\nm['b']", nil},
		{"let a = [1, 2]\na[1] = 5\na", []any{1.0, 5.0}},
		{"let a = [1, 2]\na[0] += 10\na[0]", 11.0},
		{"let m = {}\nm['k'] = 'v'\nm", map[string]any{"k": "v"}},
		{"size('four')", 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			require.Equal(t, tt.expected, eval(t, tt.source))
		})
	}
}

func TestEvalKeepsLastExpression(t *testing.T) {
	require.Equal(t, 2.0, eval(t, "1\n2"))
	require.Nil(t, eval(t, "let x = 1"))
	require.Equal(t, "3", eval(t, "let x = 3\nx :: ''"))
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"1 / 0", "Division by zero."},
		{"5 % 0", "Modulo by zero."},
		{"-'a'", "Operand must be a number."},
		{"1 - 'a'", "Operands must be numbers."},
		{"1 < 'a'", "Operands must be numbers."},
		{"true + 1", "Operands must be two numbers or two strings."},
		{"missing", "Undefined variable 'missing'."},
		{"missing = 1", "Undefined variable 'missing'."},
		{"fn f(a) { a }\nf()", "Expected 1 arguments but got 0."},
		{"1()", "Can only call functions and classes."},
		{"class A {}\nA(1)", "Expected 0 arguments but got 1."},
		{"[1, 2][2]", "Index out of bounds."},
		{"[1][0.5]", "Index must be an integer."},
		{"[1]['a']", "Index must be a number."},
		{"let m = {}\nm[1] = 2", "Map keys must be strings."},
		{"class A {}\nA().x", "Undefined property 'x'."},
		{"class A {}\nA().run()", "Undefined property 'run'."},
		{"let n = 1\nn.x = 2", "Only instances and modules have properties."},
		{"let X = 1\nclass B <- X {}", "Superclass must be a class."},
		{"fn f() { f() }\nf()", "Recursion depth overflow."},
		{"import missing", "Could not import module 'missing'."},
		{"assert(false, 'boom')", "AssertionError: boom"},
		{"exception('Custom', 'bad')", "Custom: bad"},
		{"__exception('Custom', 'worse')", "Custom: worse"},
		{"1 in 2", "Operand of 'in' must be an array, map or string."},
		{"for let x in 3 {\n}", "Can only iterate over arrays, maps and strings."},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := run(t, tt.source)
			require.Error(t, err)
			var rerr *errz.RuntimeError
			require.True(t, errors.As(err, &rerr))
			require.Equal(t, tt.expected, rerr.Message)
		})
	}
}

func TestBacktrace(t *testing.T) {
	var stderr bytes.Buffer
	m := New(WithStdout(io.Discard), WithStderr(&stderr), WithColor(false))
	defer m.Free()
	status, err := m.Interpret(context.Background(), `fn inner() {
  1 / 0
}
fn outer() {
  inner()
}
outer()`)
	require.Equal(t, StatusRuntimeError, status)
	var rerr *errz.RuntimeError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, []errz.Frame{
		{Function: "inner", Line: 2},
		{Function: "outer", Line: 5},
		{Function: "__main", Line: 7},
	}, rerr.Backtrace)
	require.Equal(t, "Division by zero.\n"+
		"[line 2] in inner()\n"+
		"[line 5] in outer()\n"+
		"[line 7] in __main()\n", stderr.String())

	// The machine recovers and keeps its globals.
	status, err = m.Interpret(context.Background(), "let ok = true")
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	v, found := m.Get("inner")
	require.True(t, found)
	require.Equal(t, object.CLOSURE, v.Type())
}

func TestCompileErrorStatus(t *testing.T) {
	var stderr bytes.Buffer
	m := New(WithStderr(&stderr), WithColor(false))
	defer m.Free()
	status, err := m.Interpret(context.Background(), "let = 1")
	require.Equal(t, StatusCompileError, status)
	var cerr *errz.CompileError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "[line 1] Error at '=': Expect variable name.\n", stderr.String())
}

func TestClosures(t *testing.T) {
	out, err := run(t, `
fn make() {
  let n = 0
  fn inc() {
    n += 1
    n
  }
  inc
}
let c = make()
c()
c()
println(c())
let other = make()
println(other())`)
	require.NoError(t, err)
	require.Equal(t, "3\n1\n", out)
}

func TestClosuresCaptureLoopVariable(t *testing.T) {
	out, err := run(t, `
let fns = []
for let i in [1, 2, 3] {
  fns = fns + || { i }
}
for let f in fns {
  println(f())
}`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestSharedUpvalue(t *testing.T) {
	out, err := run(t, `
let get = none
let set = none
{
  let v = 'a'
  get = || { v }
  set = |x| { v = x }
}
set('b')
println(get())`)
	require.NoError(t, err)
	require.Equal(t, "b\n", out)
}

func TestControlFlow(t *testing.T) {
	out, err := run(t, `
let i = 0
let total = 0
while true {
  i += 1
  if i == 3 {
    skip
  }
  if i > 5 {
    break
  }
  total += i
}
println(total)
for let k in {'x': 1, 'y': 2} {
  print(k)
}
println()
match 2 {
  1 -> { println('one') }
  2 -> { println('two') }
  _ -> { println('other') }
}
println(3 |> max(7))`)
	require.NoError(t, err)
	require.Equal(t, "12\nxy\ntwo\n7\n", out)
}

func TestClasses(t *testing.T) {
	out, err := run(t, `
class Animal {
  let sound = 'generic'
  fn __init(name) { self.name = name }
  fn speak() { self.name + ' says ' + self.sound }
}
class Dog <- Animal {
  let sound = 'woof'
  fn speak() { super.speak() + '!' }
}
let d = Dog('rex')
println(d.speak())
let bound = d.speak
println(bound())
println(Animal('cat').speak())
println(instance(d, Dog))
println(instance(d, Animal))
println(subclass(Dog, Animal))`)
	require.NoError(t, err)
	require.Equal(t, "rex says woof!\nrex says woof!\ncat says generic\ntrue\nfalse\ntrue\n", out)
}

func TestKeywordMemberNames(t *testing.T) {
	out, err := run(t, `
class Queue {
  fn __init() { self.skip = 0 }
  fn match(x) { x == 1 }
}
class Sub <- Queue {
  fn match(x) { super.match(x) }
}
let q = Sub()
q.skip += 2
println(q.skip)
println(q.match(1))`)
	require.NoError(t, err)
	require.Equal(t, "2\ntrue\n", out)
}

func TestCallableInstancesAndNestedClasses(t *testing.T) {
	out, err := run(t, `
class Adder {
  fn __call(a, b) { a + b }
}
println(Adder()(1, 2))
class Outer {
  class Inner {
    fn hi() { 'hi' }
  }
}
println(Outer.Inner().hi())
class Holder {
  fn __init() { self.cb = |x| { x * 2 } }
}
println(Holder().cb(4))`)
	require.NoError(t, err)
	require.Equal(t, "3\nhi\n8\n", out)
}

func TestImports(t *testing.T) {
	imp := importer.MapImporter{
		"util":     "println('loading util')\nlet base = 10\nlet _hidden = 1\nfn add(x) { base + x }",
		"pkg.math": "fn sq(x) { x * x }",
	}
	var out bytes.Buffer
	m := New(WithStdout(&out), WithStderr(io.Discard), WithImporter(imp))
	defer m.Free()
	_, err := m.Interpret(context.Background(), `
import util
import util
import pkg.math -> m
import util._
println(util.add(1))
println(m.sq(3))
println(add(2))
println(base)
util.base = 20
println(util.add(1))
import core
println(core.size([1, 2]))`)
	require.NoError(t, err)
	require.Equal(t, "loading util\n11\n9\n12\n10\n21\n2\n", out.String())
	_, found := m.Get("_hidden")
	require.False(t, found)
}

func TestImportFailures(t *testing.T) {
	imp := importer.MapImporter{"broken": "let = 1", "raises": "1 / 0"}
	m := New(WithStdout(io.Discard), WithStderr(io.Discard), WithImporter(imp))
	defer m.Free()
	ctx := context.Background()

	_, err := m.Interpret(ctx, "import nothing")
	require.ErrorIs(t, err, importer.ErrModuleNotFound)
	require.Equal(t, "Could not import module 'nothing'.", err.Error())

	_, err = m.Interpret(ctx, "import broken")
	var cerr *errz.CompileError
	require.True(t, errors.As(err, &cerr))

	_, err = m.Interpret(ctx, "import raises")
	require.Equal(t, "Division by zero.", err.Error())

	// A failed module is not cached.
	_, err = m.Interpret(ctx, "import raises")
	require.Equal(t, "Division by zero.", err.Error())
}

type answerResolver struct{}

func (answerResolver) Resolve(h *object.Heap, name string) (object.Value, bool) {
	if name == "answer" {
		return object.Number(42), true
	}
	return object.None, false
}

func TestNativeModule(t *testing.T) {
	table := []object.NativeEntry{
		{Name: "double", Fn: func(rt object.Runtime, args []object.Value) object.Value {
			return object.Number(args[0].AsNumber() * 2)
		}},
		{Name: "apply", Fn: func(rt object.Runtime, args []object.Value) object.Value {
			// The error is deliberately dropped; the machine still raises it.
			v, _ := rt.Call(args[0], args[1:]...)
			return v
		}},
	}
	out, err := run(t, `
import ext
println(ext.double(4))
println(ext.answer)
println(ext.apply(|a, b| { a - b }, 5, 3))`,
		WithNativeModule("ext", table, answerResolver{}))
	require.NoError(t, err)
	require.Equal(t, "8\n42\n2\n", out)

	_, err = run(t, "import ext\nfn boom() { 1 / 0 }\next.apply(boom)",
		WithNativeModule("ext", table, nil))
	require.Error(t, err)
	require.Equal(t, "Division by zero.", err.Error())

	_, err = run(t, "import ext\next.nothing", WithNativeModule("ext", table, answerResolver{}))
	require.Equal(t, "Undefined property 'nothing'.", err.Error())
}

func TestNativeCallsBackIntoScript(t *testing.T) {
	out, err := run(t, `
class Box {
  fn __size() { 7 }
}
println(size(Box()))`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestCallFromGo(t *testing.T) {
	m := New(WithStdout(io.Discard), WithStderr(io.Discard))
	defer m.Free()
	ctx := context.Background()
	_, err := m.Interpret(ctx, "fn add(a, b) { a + b }\nfn fail() { missing }")
	require.NoError(t, err)

	add, ok := m.Get("add")
	require.True(t, ok)
	v, err := m.Call(ctx, add, object.Number(1), object.Number(2))
	require.NoError(t, err)
	require.Equal(t, 3.0, v.AsNumber())

	_, err = m.Call(ctx, add, object.Number(1))
	require.Equal(t, "Expected 2 arguments but got 1.", err.Error())

	fail, _ := m.Get("fail")
	_, err = m.Call(ctx, fail)
	require.Equal(t, "Undefined variable 'missing'.", err.Error())

	// Errors leave the machine usable.
	v, err = m.Call(ctx, add, object.Number(2), object.Number(2))
	require.NoError(t, err)
	require.Equal(t, 4.0, v.AsNumber())
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	m := New(WithStdout(io.Discard), WithStderr(io.Discard), WithContextCheckInterval(10))
	defer m.Free()
	_, err := m.Interpret(ctx, "let i = 0\nwhile true {\n  i += 1\n}")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = m.Eval(canceled, "let i = 0\nwhile i < 100000 {\n  i += 1\n}")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithGlobals(t *testing.T) {
	out, err := run(t, "println(name :: size(nums))\nprintln(config['debug'])",
		WithGlobals(map[string]any{
			"name":   "jml",
			"nums":   []any{1, 2, 3},
			"config": map[string]any{"debug": true},
		}))
	require.NoError(t, err)
	require.Equal(t, "jml3\ntrue\n", out)
}

const allocHeavy = `
class Node {
  fn __init(value, next) {
    self.value = value
    self.next = next
  }
}
fn build(n) {
  let head = none
  let i = 0
  while i < n {
    head = Node('n' :: i, head)
    i += 1
  }
  head
}
fn walk(node) {
  let parts = []
  while node != none {
    parts = parts + node.value
    node = node.next
  }
  parts
}
let names = walk(build(30))
println(size(names), names[0], names[-1])
let m = {}
for let s in names {
  m[s] = size(s)
}
println(m['n29'])`

func TestStressGC(t *testing.T) {
	expected, err := run(t, allocHeavy)
	require.NoError(t, err)
	require.Equal(t, "30\nn29\nn0\n3\n", expected)

	var out bytes.Buffer
	m := New(WithStdout(&out), WithStressGC())
	defer m.Free()
	_, err = m.Interpret(context.Background(), allocHeavy)
	require.NoError(t, err)
	require.Equal(t, expected, out.String())
	require.Greater(t, m.Heap().Collections(), 100)
}

func TestSmallThresholdCollects(t *testing.T) {
	var out bytes.Buffer
	m := New(WithStdout(&out), WithGCThreshold(2048), WithGCGrowFactor(2))
	defer m.Free()
	_, err := m.Interpret(context.Background(), allocHeavy)
	require.NoError(t, err)
	require.Equal(t, "30\nn29\nn0\n3\n", out.String())
	require.Greater(t, m.Heap().Collections(), 0)
}

func TestWeakStrings(t *testing.T) {
	m := New(WithStdout(io.Discard), WithWeakStrings())
	defer m.Free()
	_, err := m.Interpret(context.Background(), "let s = 'abc' :: 'def'\ns = none")
	require.NoError(t, err)
	m.Heap().Collect()
	_, found := m.Heap().Lookup("abcdef")
	require.False(t, found)
	_, found = m.Heap().Lookup("s")
	require.True(t, found)
}

func TestFinalizer(t *testing.T) {
	var out bytes.Buffer
	m := New(WithStdout(&out))
	_, err := m.Interpret(context.Background(), `
class Resource {
  fn __init(name) { self.name = name }
  fn __free() { println('free ' :: self.name) }
}
Resource('a')
let kept = Resource('b')`)
	require.NoError(t, err)
	require.Empty(t, out.String())

	m.Heap().Collect()
	require.Equal(t, "free a\n", out.String())

	m.Free()
	require.Equal(t, "free a\nfree b\n", out.String())
}

func TestFinalizerErrorsAreContained(t *testing.T) {
	m := New(WithStdout(io.Discard))
	_, err := m.Interpret(context.Background(), `
class Bad {
  fn __free() { 1 / 0 }
}
Bad()`)
	require.NoError(t, err)
	require.NotPanics(t, func() { m.Heap().Collect() })
	m.Free()
}

func TestFreeReleasesEverything(t *testing.T) {
	m := New(WithStdout(io.Discard))
	_, err := m.Interpret(context.Background(), allocHeavy)
	require.NoError(t, err)
	h := m.Heap()
	require.Greater(t, h.Allocated(), 0)

	m.Free()
	require.Equal(t, 0, h.Allocated())
	require.Equal(t, 0, h.ObjectCount())
	require.NotPanics(t, m.Free)

	_, err = m.Interpret(context.Background(), "1")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "freed"))
}

func TestStackOverflowIsReported(t *testing.T) {
	// Deep recursion with wide frames exhausts frames before the stack.
	_, err := run(t, "fn f(a, b, c, d) { f(a, b, c, d) }\nf(1, 2, 3, 4)")
	require.Equal(t, "Recursion depth overflow.", err.Error())
}
