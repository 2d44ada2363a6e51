package object

// Kind identifies which member of the Value sum is populated.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Value is the tagged representation of every runtime value. The zero Value
// is none.
type Value struct {
	kind Kind
	num  float64
	obj  Object
}

var (
	None  = Value{}
	True  = Value{kind: KindBool, num: 1}
	False = Value{kind: KindBool}
)

// Bool returns the boolean Value for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number returns a number Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Obj wraps a heap object in a Value. A nil object yields none.
func Obj(o Object) Value {
	if o == nil {
		return None
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNone() bool { return v.kind == KindNone }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObject() bool { return v.kind == KindObject }
func (v Value) AsBool() bool { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObject() Object { return v.obj }

// IsFalsey reports whether the value counts as false in a condition. Only
// none and false are falsey.
func (v Value) IsFalsey() bool {
	return v.kind == KindNone || (v.kind == KindBool && v.num == 0)
}

// Type returns the script-visible type of the value.
func (v Value) Type() Type {
	switch v.kind {
	case KindBool:
		return BOOL
	case KindNumber:
		return NUMBER
	case KindObject:
		return v.obj.Type()
	default:
		return NONE
	}
}

// AsString returns the string object held by v, if any.
func (v Value) AsString() (*String, bool) {
	s, ok := v.obj.(*String)
	return s, ok
}

// AsArray returns the array object held by v, if any.
func (v Value) AsArray() (*Array, bool) {
	a, ok := v.obj.(*Array)
	return a, ok
}

// AsMap returns the map object held by v, if any.
func (v Value) AsMap() (*Map, bool) {
	m, ok := v.obj.(*Map)
	return m, ok
}

// AsClass returns the class object held by v, if any.
func (v Value) AsClass() (*Class, bool) {
	c, ok := v.obj.(*Class)
	return c, ok
}

// AsInstance returns the instance object held by v, if any.
func (v Value) AsInstance() (*Instance, bool) {
	i, ok := v.obj.(*Instance)
	return i, ok
}

// AsException returns the exception object held by v, if any.
func (v Value) AsException() (*Exception, bool) {
	e, ok := v.obj.(*Exception)
	return e, ok
}

// IsException reports whether v holds an Exception. Native functions signal
// failure by returning one.
func (v Value) IsException() bool {
	_, ok := v.obj.(*Exception)
	return ok
}

// Equal compares two values. Primitives compare by content and objects by
// identity; since strings are interned, identity is content equality for
// them too.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone:
		return true
	case KindBool, KindNumber:
		return a.num == b.num
	default:
		return a.obj == b.obj
	}
}
