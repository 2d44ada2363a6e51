package testing

import (
	"strings"

	"github.com/jmllang/jml/object"
)

// TestContext collects the outcome of one test function. Scripts see it as
// the module passed to the test as t.
type TestContext struct {
	name       string
	filename   string
	failed     bool
	skipped    bool
	skipReason string
	logs       []string
	failures   []AssertionError
}

// NewTestContext creates a test context for the named test.
func NewTestContext(name, filename string) *TestContext {
	return &TestContext{name: name, filename: filename}
}

// Module allocates the script-visible form of the context on h. The caller
// must keep the result reachable while it is used.
func (t *TestContext) Module(h *object.Heap) *object.Module {
	m := h.NewModule("t")
	h.Exempt(object.Obj(m))
	defer h.Unexempt()
	name := h.NewString(t.name)
	h.Exempt(name)
	key := h.Intern("name")
	h.Exempt(object.Obj(key))
	h.MapSet(m.Globals, key, name)
	h.Unexempt()
	h.Unexempt()
	h.Register(m, t.natives())
	return m
}

func (t *TestContext) natives() []object.NativeEntry {
	return []object.NativeEntry{
		{Name: "assert", Fn: t.assert},
		{Name: "assert_eq", Fn: t.assertEq},
		{Name: "assert_ne", Fn: t.assertNe},
		{Name: "assert_none", Fn: t.assertNone},
		{Name: "skip", Fn: t.skip},
		{Name: "fail", Fn: t.fail},
		{Name: "log", Fn: t.log},
	}
}

func (t *TestContext) Name() string { return t.name }

func (t *TestContext) Failed() bool { return t.failed }

func (t *TestContext) Skipped() bool { return t.skipped }

func (t *TestContext) SkipReason() string { return t.skipReason }

// Logs returns the messages passed to t.log.
func (t *TestContext) Logs() []string { return t.logs }

// Failures returns every failed assertion in order.
func (t *TestContext) Failures() []AssertionError { return t.failures }

// arity checks the argument count of a test method and returns an
// exception value when it is out of range.
func arity(h *object.Heap, name string, args []object.Value, min, max int) (object.Value, bool) {
	switch {
	case len(args) < min:
		return h.Errorf(object.ErrTooFewArgs, "%s: expected at least %d arguments, got %d", name, min, len(args)), false
	case len(args) > max:
		return h.Errorf(object.ErrTooManyArgs, "%s: expected at most %d arguments, got %d", name, max, len(args)), false
	}
	return object.None, true
}

// message returns the optional trailing message argument at index i.
func message(args []object.Value, i int, fallback string) string {
	if len(args) > i {
		return object.Stringify(args[i])
	}
	return fallback
}

func (t *TestContext) assert(rt object.Runtime, args []object.Value) object.Value {
	if exc, ok := arity(rt.Heap(), "assert", args, 1, 2); !ok {
		return exc
	}
	if args[0].IsFalsey() {
		t.addFailure(message(args, 1, "assertion failed"), object.Repr(args[0]), "")
	}
	return object.None
}

func (t *TestContext) assertEq(rt object.Runtime, args []object.Value) object.Value {
	if exc, ok := arity(rt.Heap(), "assert_eq", args, 2, 3); !ok {
		return exc
	}
	if !DeepEqual(args[0], args[1]) {
		t.addFailure(message(args, 2, "values are not equal"), object.Repr(args[0]), object.Repr(args[1]))
	}
	return object.None
}

func (t *TestContext) assertNe(rt object.Runtime, args []object.Value) object.Value {
	if exc, ok := arity(rt.Heap(), "assert_ne", args, 2, 3); !ok {
		return exc
	}
	if DeepEqual(args[0], args[1]) {
		t.addFailure(message(args, 2, "values should not be equal"), object.Repr(args[0]), object.Repr(args[1]))
	}
	return object.None
}

func (t *TestContext) assertNone(rt object.Runtime, args []object.Value) object.Value {
	if exc, ok := arity(rt.Heap(), "assert_none", args, 1, 2); !ok {
		return exc
	}
	if !args[0].IsNone() {
		t.addFailure(message(args, 1, "expected none"), object.Repr(args[0]), "none")
	}
	return object.None
}

func (t *TestContext) skip(rt object.Runtime, args []object.Value) object.Value {
	if exc, ok := arity(rt.Heap(), "skip", args, 0, 1); !ok {
		return exc
	}
	t.skipped = true
	t.skipReason = message(args, 0, "")
	return object.None
}

func (t *TestContext) fail(rt object.Runtime, args []object.Value) object.Value {
	if exc, ok := arity(rt.Heap(), "fail", args, 0, 1); !ok {
		return exc
	}
	t.addFailure(message(args, 0, "test failed"), "", "")
	return object.None
}

func (t *TestContext) log(rt object.Runtime, args []object.Value) object.Value {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = object.Stringify(arg)
	}
	t.logs = append(t.logs, strings.Join(parts, " "))
	return object.None
}

func (t *TestContext) addFailure(msg, got, want string) {
	t.failed = true
	t.failures = append(t.failures, AssertionError{
		Message: msg,
		File:    t.filename,
		Got:     got,
		Want:    want,
	})
}

// DeepEqual compares values like == but descends into arrays and maps.
func DeepEqual(a, b object.Value) bool {
	if object.Equal(a, b) {
		return true
	}
	if x, ok := a.AsArray(); ok {
		y, ok := b.AsArray()
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i := range x.Values {
			if !DeepEqual(x.Values[i], y.Values[i]) {
				return false
			}
		}
		return true
	}
	if x, ok := a.AsMap(); ok {
		y, ok := b.AsMap()
		if !ok || x.Len() != y.Len() {
			return false
		}
		equal := true
		x.Each(func(key *object.String, value object.Value) bool {
			other, ok := y.Get(key)
			equal = ok && DeepEqual(value, other)
			return equal
		})
		return equal
	}
	return false
}
