package builtins

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/jmllang/jml/object"
	"github.com/stretchr/testify/require"
)

// testRuntime runs natives outside of a VM. Calls to bound natives are
// dispatched directly.
type testRuntime struct {
	heap    *object.Heap
	out     bytes.Buffer
	globals *object.Map
}

func newRuntime() *testRuntime {
	h := object.NewHeap()
	return &testRuntime{heap: h, globals: h.NewMap()}
}

func (r *testRuntime) Heap() *object.Heap { return r.heap }
func (r *testRuntime) Stdout() io.Writer { return &r.out }
func (r *testRuntime) Globals() *object.Map { return r.globals }

func (r *testRuntime) Call(callee object.Value, args ...object.Value) (object.Value, error) {
	switch fn := callee.AsObject().(type) {
	case *object.Native:
		return fn.Fn(r, args), nil
	case *object.BoundMethod:
		return r.Call(fn.Method, append([]object.Value{fn.Receiver}, args...)...)
	}
	return object.None, errors.New("not callable")
}

func (r *testRuntime) str(s string) object.Value { return r.heap.NewString(s) }

func requireException(t *testing.T, v object.Value, name, message string) {
	t.Helper()
	exc, ok := v.AsException()
	require.True(t, ok, "expected an exception, got %s", object.Repr(v))
	require.Equal(t, name, exc.Name.Chars)
	require.Equal(t, message, exc.Message.Chars)
}

func requireString(t *testing.T, v object.Value, want string) {
	t.Helper()
	s, ok := v.AsString()
	require.True(t, ok, "expected a string, got %s", object.Repr(v))
	require.Equal(t, want, s.Chars)
}

func TestBuiltinsTable(t *testing.T) {
	names := map[string]bool{}
	for _, entry := range Builtins() {
		require.NotNil(t, entry.Fn, entry.Name)
		require.False(t, names[entry.Name], "duplicate %s", entry.Name)
		names[entry.Name] = true
	}
	for _, name := range []string{"print", "println", "format", "printfmt", "repr", "char",
		"reverse", "size", "type", "instance", "subclass", "attr", "globals", "max", "min",
		"assert", "exception", "__exception", "version"} {
		require.True(t, names[name], name)
	}
}

func TestPrint(t *testing.T) {
	rt := newRuntime()
	Print(rt, []object.Value{rt.str("a"), object.Number(1.5), object.None})
	Print(rt, nil)
	Println(rt, []object.Value{rt.str("x"), object.True})
	require.Equal(t, "a1.5none\nx\ntrue\n", rt.out.String())
}

func TestFormat(t *testing.T) {
	rt := newRuntime()
	got := Format(rt, []object.Value{rt.str("{} + {} = {}!"), object.Number(1), rt.str("two"), object.Number(3)})
	requireString(t, got, "1 + two = 3!")

	requireString(t, Format(rt, []object.Value{rt.str("plain")}), "plain")

	requireException(t, Format(rt, []object.Value{rt.str("{} {}"), object.Number(1)}),
		ErrFormat, "Expected '2' format arguments but got '1'.")
	requireException(t, Format(rt, nil), ErrFormat, "Expected format string.")
	requireException(t, Format(rt, []object.Value{object.Number(1)}), ErrFormat, "Expected format string.")

	arr := rt.heap.NewArray([]object.Value{object.Number(4), object.False})
	requireString(t, FormatArray(rt, []object.Value{rt.str("{}/{}"), object.Obj(arr)}), "4/false")
}

func TestPrintFmt(t *testing.T) {
	rt := newRuntime()
	require.Equal(t, object.None, PrintFmt(rt, []object.Value{rt.str("n={}"), object.Number(7)}))
	PrintFmt(rt, nil)
	require.Equal(t, "n=7\n", rt.out.String())
	require.True(t, PrintFmt(rt, []object.Value{rt.str("{}")}).IsException())
}

func TestRepr(t *testing.T) {
	rt := newRuntime()
	requireString(t, Repr(rt, []object.Value{rt.str("hi")}), `"hi"`)
	requireException(t, Repr(rt, nil), object.ErrTooFewArgs, "Expected '1' arguments but got '0'.")
}

func TestChar(t *testing.T) {
	rt := newRuntime()
	requireString(t, Char(rt, []object.Value{object.Number(65)}), "A")
	requireString(t, Char(rt, []object.Value{object.Number(0x263a)}), "☺")
	require.Equal(t, object.Number(233), Char(rt, []object.Value{rt.str("é")}))

	requireException(t, Char(rt, []object.Value{rt.str("ab")}), object.ErrWrongValue, "Invalid 'string length'.")
	requireException(t, Char(rt, []object.Value{object.Number(1.5)}), object.ErrWrongValue, "Invalid 'unicode codepoint'.")
	requireException(t, Char(rt, []object.Value{object.None}), object.ErrNotImplemented, "Not implemented for none.")
}

func TestReverse(t *testing.T) {
	rt := newRuntime()
	requireString(t, Reverse(rt, []object.Value{rt.str("héllo")}), "olléh")

	arr := rt.heap.NewArray([]object.Value{object.Number(1), object.Number(2), object.Number(3)})
	got := Reverse(rt, []object.Value{object.Obj(arr)})
	require.Same(t, arr, got.AsObject())
	require.Equal(t, []object.Value{object.Number(3), object.Number(2), object.Number(1)}, arr.Values)
}

func TestSize(t *testing.T) {
	rt := newRuntime()
	h := rt.heap
	require.Equal(t, object.Number(3), Size(rt, []object.Value{rt.str("abc")}))
	arr := h.NewArray([]object.Value{object.None, object.None})
	require.Equal(t, object.Number(2), Size(rt, []object.Value{object.Obj(arr)}))
	m := h.NewMap()
	h.MapSet(m, h.Intern("k"), object.True)
	require.Equal(t, object.Number(1), Size(rt, []object.Value{object.Obj(m)}))

	plain := h.NewClass(h.Intern("Plain"))
	requireException(t, Size(rt, []object.Value{object.Obj(h.NewInstance(plain))}),
		object.ErrDiffTypes, "Can't get size from instance of 'Plain'.")

	sized := h.NewClass(h.Intern("Sized"))
	native := h.NewNative(SizeName, func(rt object.Runtime, args []object.Value) object.Value {
		return object.Number(42)
	}, nil)
	h.MapSet(sized.Members, h.Intern(SizeName), object.Obj(native))
	require.Equal(t, object.Number(42), Size(rt, []object.Value{object.Obj(h.NewInstance(sized))}))

	requireException(t, Size(rt, []object.Value{object.Number(1)}), object.ErrNotImplemented, "Not implemented for number.")
}

func TestTypeNames(t *testing.T) {
	rt := newRuntime()
	requireString(t, Type(rt, []object.Value{object.Number(1)}), "number")
	requireString(t, Type(rt, []object.Value{rt.str("")}), "string")
	requireString(t, Type(rt, []object.Value{object.None}), "none")
	native := rt.heap.NewNative("f", Type, nil)
	requireString(t, Type(rt, []object.Value{object.Obj(native)}), "cfunction")
}

func TestClassPredicates(t *testing.T) {
	rt := newRuntime()
	h := rt.heap
	base := h.NewClass(h.Intern("Base"))
	derived := h.NewClass(h.Intern("Derived"))
	derived.Superclass = base
	inst := object.Obj(h.NewInstance(derived))

	require.Equal(t, object.True, Instance(rt, []object.Value{inst, object.Obj(derived)}))
	require.Equal(t, object.False, Instance(rt, []object.Value{inst, object.Obj(base)}))
	require.Equal(t, object.True, Subclass(rt, []object.Value{object.Obj(derived), object.Obj(base)}))
	require.Equal(t, object.True, Subclass(rt, []object.Value{object.Obj(base), object.Obj(base)}))
	require.Equal(t, object.False, Subclass(rt, []object.Value{object.Obj(base), object.Obj(derived)}))

	requireException(t, Instance(rt, []object.Value{object.Number(1), object.Obj(base)}),
		object.ErrDiffTypes, "Expected arguments of <type instance> or <type class>.")
}

func TestAttr(t *testing.T) {
	rt := newRuntime()
	h := rt.heap
	class := h.NewClass(h.Intern("Point"))
	h.MapSet(class.Members, h.Intern("x"), object.Number(0))
	h.MapSet(class.Members, h.Intern("norm"), object.True)
	inst := h.NewInstance(class)
	h.MapSet(inst.Fields, h.Intern("x"), object.Number(5))

	got := Attr(rt, []object.Value{object.Obj(inst)})
	m, ok := got.AsMap()
	require.True(t, ok)
	require.Equal(t, 2, m.Len())
	x, _ := m.Get(h.Intern("x"))
	require.Equal(t, object.Number(5), x)

	got = Attr(rt, []object.Value{object.Obj(class)})
	m, _ = got.AsMap()
	require.Equal(t, 2, m.Len())
	require.NotSame(t, class.Members, m)

	requireException(t, Attr(rt, []object.Value{object.Number(1)}), object.ErrNotImplemented, "Not implemented for number.")
}

func TestGlobals(t *testing.T) {
	rt := newRuntime()
	h := rt.heap
	h.MapSet(rt.globals, h.Intern("answer"), object.Number(42))
	m, ok := Globals(rt, nil).AsMap()
	require.True(t, ok)
	v, _ := m.Get(h.Intern("answer"))
	require.Equal(t, object.Number(42), v)
	require.True(t, Globals(rt, []object.Value{object.None}).IsException())
}

func TestMaxMin(t *testing.T) {
	rt := newRuntime()
	require.Equal(t, object.Number(3), Max(rt, []object.Value{object.Number(3), object.Number(-1)}))
	require.Equal(t, object.Number(-1), Min(rt, []object.Value{object.Number(3), object.Number(-1)}))
	requireException(t, Max(rt, []object.Value{object.Number(3), rt.str("x")}),
		object.ErrDiffTypes, "Expected arguments of <type number> or <type number>.")
	requireException(t, Min(rt, []object.Value{object.Number(3)}),
		object.ErrTooFewArgs, "Expected '2' arguments but got '1'.")
}

func TestAssert(t *testing.T) {
	rt := newRuntime()
	require.Equal(t, object.None, Assert(rt, []object.Value{object.True}))
	requireException(t, Assert(rt, []object.Value{object.False}), object.ErrAssertion, "Assertion failed.")
	requireException(t, Assert(rt, []object.Value{object.None, rt.str("boom")}), object.ErrAssertion, "boom")
	requireException(t, Assert(rt, nil), object.ErrTooFewArgs, "Expected assert condition.")
	requireException(t, Assert(rt, []object.Value{object.True, object.Number(1)}), object.ErrDiffTypes, "Expected assert message.")
	requireException(t, Assert(rt, make([]object.Value, 3)), object.ErrTooManyArgs, "Expected assert condition and message.")
}

func TestExceptionAndVersion(t *testing.T) {
	rt := newRuntime()
	requireException(t, Exception(rt, []object.Value{rt.str("IOError"), rt.str("disk full")}), "IOError", "disk full")
	requireException(t, Exception(rt, nil), "", "")
	requireString(t, VersionFn(rt, nil), Version)
}
