// Package object provides the value representation and the heap object
// types of the jml runtime, together with the garbage-collected Heap that
// owns them.
//
// A Value is a small copyable sum over none, bool, number and object
// references. Objects are always created through a Heap, which links them
// into its intrusive list of live allocations and accounts for their size.
// The set of object variants is closed:
//
//	switch obj := v.AsObject().(type) {
//	case *object.String:
//		// obj.Chars
//	case *object.Array:
//		// obj.Values
//	}
//
// The Type() method of each object returns its name as seen by scripts,
// such as "string" or "array".
package object

// Type of an object as a string.
type Type string

// Type constants
const (
	NUMBER    Type = "number"
	BOOL      Type = "bool"
	NONE      Type = "none"
	STRING    Type = "string"
	ARRAY     Type = "array"
	MAP       Type = "map"
	FUNCTION  Type = "function"
	CLOSURE   Type = "function"
	UPVALUE   Type = "upvalue"
	CLASS     Type = "class"
	INSTANCE  Type = "instance"
	METHOD    Type = "method"
	NATIVE    Type = "cfunction"
	EXCEPTION Type = "exception"
	MODULE    Type = "module"
)

// Object is implemented by every heap allocated variant. The interface is
// sealed: only types in this package embed the GC header.
type Object interface {
	// Type of the object.
	Type() Type

	gcHeader() *header
}

// header is embedded in every object. It carries the collector state and
// the link to the next object in the heap's list of allocations.
type header struct {
	marked bool
	exempt int
	freed  bool
	size   int
	next   Object
}

func (h *header) gcHeader() *header { return h }

// IsFreed reports whether the collector has released the object. It exists
// for diagnostics and tests; a reachable object is never freed.
func IsFreed(o Object) bool {
	return o.gcHeader().freed
}

// IsExempt reports whether the object is currently pinned.
func IsExempt(o Object) bool {
	return o.gcHeader().exempt > 0
}

// Estimated sizes used for heap accounting.
const (
	headerSize    = 40
	valueSize     = 32
	mapEntrySize  = 48
	upvalueRefSz  = 8
	codeEntrySize = 3 // one opcode byte plus its two byte line entry
)
