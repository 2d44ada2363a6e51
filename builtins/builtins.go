// Package builtins defines the core native functions available to every
// script, both as global fallbacks and as members of the core module.
package builtins

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jmllang/jml/object"
)

// Version is the language version reported by version().
const Version = "0.1.0"

// ModuleName is the name of the module exposing the builtins to import.
const ModuleName = "core"

// Exception names raised only by builtins.
const (
	ErrFormat = "FormatErr"
	ErrSize   = "SizeErr"
)

// SizeName is the method consulted by size() for instances.
const SizeName = "__size"

// Builtins returns the native table of the core module.
func Builtins() []object.NativeEntry {
	return []object.NativeEntry{
		{Name: "print", Fn: Print},
		{Name: "println", Fn: Println},
		{Name: "format", Fn: Format},
		{Name: "format_array", Fn: FormatArray},
		{Name: "printfmt", Fn: PrintFmt},
		{Name: "repr", Fn: Repr},
		{Name: "char", Fn: Char},
		{Name: "reverse", Fn: Reverse},
		{Name: "size", Fn: Size},
		{Name: "type", Fn: Type},
		{Name: "instance", Fn: Instance},
		{Name: "subclass", Fn: Subclass},
		{Name: "attr", Fn: Attr},
		{Name: "globals", Fn: Globals},
		{Name: "max", Fn: Max},
		{Name: "min", Fn: Min},
		{Name: "assert", Fn: Assert},
		{Name: "exception", Fn: Exception},
		{Name: "__exception", Fn: Exception},
		{Name: "version", Fn: VersionFn},
	}
}

// Print writes its arguments without separators. Without arguments it
// writes a newline.
func Print(rt object.Runtime, args []object.Value) object.Value {
	w := rt.Stdout()
	if len(args) == 0 {
		io.WriteString(w, "\n")
		return object.None
	}
	for _, arg := range args {
		io.WriteString(w, object.Stringify(arg))
	}
	return object.None
}

// Println writes each argument on its own line.
func Println(rt object.Runtime, args []object.Value) object.Value {
	w := rt.Stdout()
	if len(args) == 0 {
		io.WriteString(w, "\n")
		return object.None
	}
	for _, arg := range args {
		io.WriteString(w, object.Stringify(arg))
		io.WriteString(w, "\n")
	}
	return object.None
}

// Format replaces every {} of the format string with the next argument.
func Format(rt object.Runtime, args []object.Value) object.Value {
	if len(args) == 0 {
		return rt.Heap().Errorf(ErrFormat, "Expected format string.")
	}
	format, ok := args[0].AsString()
	if !ok {
		return rt.Heap().Errorf(ErrFormat, "Expected format string.")
	}
	return format1(rt.Heap(), format.Chars, args[1:])
}

// FormatArray is Format taking its arguments from an array.
func FormatArray(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if len(args) == 0 {
		return h.Errorf(ErrFormat, "Expected format string.")
	}
	if exc := h.ArgCountError(2, args); exc.IsException() {
		return exc
	}
	format, ok := args[0].AsString()
	arr, isArr := args[1].AsArray()
	if !ok || !isArr {
		return h.ArgTypeError(object.STRING, object.ARRAY)
	}
	return format1(h, format.Chars, arr.Values)
}

func format1(h *object.Heap, format string, args []object.Value) object.Value {
	placeholders := strings.Count(format, "{}")
	if placeholders != len(args) {
		return h.Errorf(ErrFormat, "Expected '%d' format arguments but got '%d'.", placeholders, len(args))
	}
	var sb strings.Builder
	sb.Grow(len(format))
	next := 0
	for {
		i := strings.Index(format, "{}")
		if i < 0 {
			sb.WriteString(format)
			break
		}
		sb.WriteString(format[:i])
		sb.WriteString(object.Stringify(args[next]))
		next++
		format = format[i+2:]
	}
	return h.NewString(sb.String())
}

// PrintFmt formats its arguments like Format and writes the result.
func PrintFmt(rt object.Runtime, args []object.Value) object.Value {
	if len(args) == 0 {
		io.WriteString(rt.Stdout(), "\n")
		return object.None
	}
	result := Format(rt, args)
	if s, ok := result.AsString(); ok {
		io.WriteString(rt.Stdout(), s.Chars)
		return object.None
	}
	return result
}

// Repr returns the source-like representation of a value.
func Repr(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(1, args); exc.IsException() {
		return exc
	}
	return h.NewString(object.Repr(args[0]))
}

// Char converts a code point to a one character string and back.
func Char(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(1, args); exc.IsException() {
		return exc
	}
	v := args[0]
	if v.IsNumber() {
		n := v.AsNumber()
		r := rune(n)
		if float64(r) != n || !utf8.ValidRune(r) {
			return h.WrongValueError("unicode codepoint")
		}
		return h.NewString(string(r))
	}
	if s, ok := v.AsString(); ok {
		if utf8.RuneCountInString(s.Chars) != 1 {
			return h.WrongValueError("string length")
		}
		r, _ := utf8.DecodeRuneInString(s.Chars)
		if r == utf8.RuneError {
			return h.WrongValueError("unicode codepoint")
		}
		return object.Number(float64(r))
	}
	return h.NotImplementedError(string(v.Type()))
}

// Reverse returns a string with its characters reversed, or reverses an
// array in place and returns it.
func Reverse(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(1, args); exc.IsException() {
		return exc
	}
	if s, ok := args[0].AsString(); ok {
		runes := []rune(s.Chars)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return h.NewString(string(runes))
	}
	if arr, ok := args[0].AsArray(); ok {
		values := arr.Values
		for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
			values[i], values[j] = values[j], values[i]
		}
		return args[0]
	}
	return h.NotImplementedError(string(args[0].Type()))
}

// Size returns the length of a string in bytes, the number of elements of
// an array or map, or the result of an instance's __size method.
func Size(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(1, args); exc.IsException() {
		return exc
	}
	switch obj := args[0].AsObject().(type) {
	case *object.String:
		return object.Number(float64(obj.Len()))
	case *object.Array:
		return object.Number(float64(obj.Len()))
	case *object.Map:
		return object.Number(float64(obj.Len()))
	case *object.Instance:
		if name, ok := h.Lookup(SizeName); ok {
			if method, ok := obj.Class.Lookup(name); ok {
				bound := h.NewBoundMethod(args[0], method)
				result, err := rt.Call(object.Obj(bound))
				if err != nil {
					return h.Errorf(ErrSize, "%s", err.Error())
				}
				return result
			}
		}
		return h.Errorf(object.ErrDiffTypes, "Can't get size from instance of '%s'.", obj.Class.Name.Chars)
	}
	return h.NotImplementedError(string(args[0].Type()))
}

// Type returns the type name of a value.
func Type(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(1, args); exc.IsException() {
		return exc
	}
	return h.NewString(string(args[0].Type()))
}

// Instance reports whether a value is an instance of exactly the given
// class.
func Instance(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(2, args); exc.IsException() {
		return exc
	}
	inst, ok := args[0].AsInstance()
	class, isClass := args[1].AsClass()
	if !ok || !isClass {
		return h.ArgTypeError(object.INSTANCE, object.CLASS)
	}
	return object.Bool(inst.Class == class)
}

// Subclass reports whether the first class is the second one or inherits
// from it.
func Subclass(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(2, args); exc.IsException() {
		return exc
	}
	sub, ok := args[0].AsClass()
	super, isClass := args[1].AsClass()
	if !ok || !isClass {
		return h.ArgTypeError(object.CLASS, object.CLASS)
	}
	return object.Bool(sub.IsSubclassOf(super))
}

// Attr returns a map of the attributes of a module, class or instance.
func Attr(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(1, args); exc.IsException() {
		return exc
	}
	switch obj := args[0].AsObject().(type) {
	case *object.Module:
		return copyMaps(h, obj.Globals)
	case *object.Class:
		return copyMaps(h, obj.Members)
	case *object.Instance:
		return copyMaps(h, obj.Fields, obj.Class.Members)
	}
	return h.NotImplementedError(string(args[0].Type()))
}

// Globals returns a map of the globals of the running script.
func Globals(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(0, args); exc.IsException() {
		return exc
	}
	return copyMaps(h, rt.Globals())
}

// copyMaps merges the sources into a new map. Earlier sources win.
func copyMaps(h *object.Heap, sources ...*object.Map) object.Value {
	result := h.NewMap()
	h.Exempt(object.Obj(result))
	defer h.Unexempt()
	for _, src := range sources {
		src.Each(func(key *object.String, value object.Value) bool {
			if !result.Has(key) {
				h.MapSet(result, key, value)
			}
			return true
		})
	}
	return object.Obj(result)
}

// Max returns the greater of two numbers.
func Max(rt object.Runtime, args []object.Value) object.Value {
	a, b, exc := twoNumbers(rt.Heap(), args)
	if exc.IsException() {
		return exc
	}
	if a.AsNumber() >= b.AsNumber() {
		return a
	}
	return b
}

// Min returns the lesser of two numbers.
func Min(rt object.Runtime, args []object.Value) object.Value {
	a, b, exc := twoNumbers(rt.Heap(), args)
	if exc.IsException() {
		return exc
	}
	if a.AsNumber() < b.AsNumber() {
		return a
	}
	return b
}

func twoNumbers(h *object.Heap, args []object.Value) (object.Value, object.Value, object.Value) {
	if exc := h.ArgCountError(2, args); exc.IsException() {
		return object.None, object.None, exc
	}
	if !args[0].IsNumber() || !args[1].IsNumber() {
		return object.None, object.None, h.ArgTypeError(object.NUMBER, object.NUMBER)
	}
	return args[0], args[1], object.None
}

// Assert raises an AssertionError when its condition is falsey. The
// optional second argument replaces the default message.
func Assert(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	message := "Assertion failed."
	switch len(args) {
	case 0:
		return h.Errorf(object.ErrTooFewArgs, "Expected assert condition.")
	case 1:
	case 2:
		s, ok := args[1].AsString()
		if !ok {
			return h.Errorf(object.ErrDiffTypes, "Expected assert message.")
		}
		message = s.Chars
	default:
		return h.Errorf(object.ErrTooManyArgs, "Expected assert condition and message.")
	}
	if args[0].IsFalsey() {
		return h.Errorf(object.ErrAssertion, "%s", message)
	}
	return object.None
}

// Exception raises an error with the given name and message.
func Exception(rt object.Runtime, args []object.Value) object.Value {
	var name, message string
	if len(args) > 0 {
		if s, ok := args[0].AsString(); ok {
			name = s.Chars
		}
	}
	if len(args) > 1 {
		if s, ok := args[1].AsString(); ok {
			message = s.Chars
		}
	}
	return object.Obj(rt.Heap().NewException(name, message))
}

// VersionFn returns the language version.
func VersionFn(rt object.Runtime, args []object.Value) object.Value {
	h := rt.Heap()
	if exc := h.ArgCountError(0, args); exc.IsException() {
		return exc
	}
	return h.NewString(Version)
}
