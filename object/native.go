package object

import (
	"fmt"
	"io"
	"strings"
)

// Runtime is the execution context handed to native functions. It gives
// natives access to the heap and lets them call back into the interpreter.
type Runtime interface {
	// Heap returns the heap that owns every object of the running VM.
	Heap() *Heap
	// Call invokes a callable value synchronously and returns its result.
	Call(callee Value, args ...Value) (Value, error)
	// Stdout is where printing natives write.
	Stdout() io.Writer
	// Globals returns the namespace of the running script.
	Globals() *Map
}

// NativeFn is the signature of every native function. A native reports
// failure by returning an Exception value.
type NativeFn func(rt Runtime, args []Value) Value

// NativeEntry is one row of a module's native function table.
type NativeEntry struct {
	Name string
	Fn   NativeFn
}

// Exception is an error value. Natives return it instead of unwinding.
type Exception struct {
	header
	Name    *String
	Message *String
}

func (e *Exception) Type() Type { return EXCEPTION }

func (e *Exception) Error() string {
	return e.Name.Chars + ": " + e.Message.Chars
}

// Exception names used by the builtin helpers.
const (
	ErrTooManyArgs    = "TooManyArgs"
	ErrTooFewArgs     = "TooFewArgs"
	ErrDiffTypes      = "DiffTypes"
	ErrWrongValue     = "WrongValue"
	ErrNotImplemented = "NotImplemented"
	ErrAssertion      = "AssertionError"
)

// Errorf allocates an exception with a formatted message and returns it as
// a Value, ready to be returned from a native.
func (h *Heap) Errorf(name, format string, args ...any) Value {
	return Obj(h.NewException(name, fmt.Sprintf(format, args...)))
}

// ArgCountError reports a wrong number of arguments. It returns none when
// the count matches.
func (h *Heap) ArgCountError(expected int, args []Value) Value {
	got := len(args)
	switch {
	case got > expected:
		return h.Errorf(ErrTooManyArgs, "Expected '%d' arguments but got '%d'.", expected, got)
	case got < expected:
		return h.Errorf(ErrTooFewArgs, "Expected '%d' arguments but got '%d'.", expected, got)
	}
	return None
}

// ArgTypeError reports arguments of the wrong type. With several types the
// message lists them as alternatives.
func (h *Heap) ArgTypeError(types ...Type) Value {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = "<type " + string(t) + ">"
	}
	return h.Errorf(ErrDiffTypes, "Expected arguments of %s.", strings.Join(names, " or "))
}

// WrongValueError reports an argument whose value is not acceptable.
func (h *Heap) WrongValueError(value string) Value {
	return h.Errorf(ErrWrongValue, "Invalid '%s'.", value)
}

// NotImplementedError reports an operation unsupported for a type.
func (h *Heap) NotImplementedError(what string) Value {
	return h.Errorf(ErrNotImplemented, "Not implemented for %s.", what)
}
