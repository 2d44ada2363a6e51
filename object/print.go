package object

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders a number the way scripts see it, with up to 15
// significant digits.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.15g", n)
}

// Stringify converts a value to the text produced by print and string
// concatenation. Strings are rendered without quotes.
func Stringify(v Value) string {
	if s, ok := v.AsString(); ok {
		return s.Chars
	}
	return Repr(v)
}

// Repr converts a value to its source-like representation. Strings are
// quoted.
func Repr(v Value) string {
	var sb strings.Builder
	writeValue(&sb, v, 0)
	return sb.String()
}

const maxReprDepth = 32

func writeValue(sb *strings.Builder, v Value, depth int) {
	switch v.kind {
	case KindNone:
		sb.WriteString("none")
	case KindBool:
		if v.AsBool() {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindNumber:
		sb.WriteString(FormatNumber(v.num))
	case KindObject:
		writeObject(sb, v.obj, depth)
	}
}

func writeObject(sb *strings.Builder, o Object, depth int) {
	if depth > maxReprDepth {
		sb.WriteString("...")
		return
	}
	switch obj := o.(type) {
	case *String:
		sb.WriteString(strconv.Quote(obj.Chars))
	case *Array:
		sb.WriteByte('[')
		for i, item := range obj.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, item, depth+1)
		}
		sb.WriteByte(']')
	case *Map:
		sb.WriteByte('{')
		first := true
		obj.Each(func(key *String, value Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(strconv.Quote(key.Chars))
			sb.WriteString(": ")
			writeValue(sb, value, depth+1)
			return true
		})
		sb.WriteByte('}')
	case *Function:
		fmt.Fprintf(sb, "<fn %s/%d>", obj.DisplayName(), obj.Arity)
	case *Closure:
		fmt.Fprintf(sb, "<fn %s/%d>", obj.Function.DisplayName(), obj.Function.Arity)
	case *BoundMethod:
		writeValue(sb, obj.Method, depth+1)
	case *Native:
		fmt.Fprintf(sb, "<builtin fn %s>", obj.Name.Chars)
	case *Class:
		fmt.Fprintf(sb, "<class %s>", obj.Name.Chars)
	case *Instance:
		fmt.Fprintf(sb, "<instance of %s>", obj.Class.Name.Chars)
	case *Module:
		fmt.Fprintf(sb, "<module %s>", obj.Name.Chars)
	case *Exception:
		fmt.Fprintf(sb, "<exception %s: %s>", obj.Name.Chars, obj.Message.Chars)
	case *Upvalue:
		sb.WriteString("<upvalue>")
	}
}
