package object

// Class holds a name, an optional superclass and the member table with its
// methods and default fields. Inheritance copies the superclass members into
// the subclass once, when the class is defined.
type Class struct {
	header
	Name       *String
	Superclass *Class
	Members    *Map
}

func (c *Class) Type() Type { return CLASS }

// Lookup finds a member on the class.
func (c *Class) Lookup(name *String) (Value, bool) {
	return c.Members.Get(name)
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Superclass {
		if k == other {
			return true
		}
	}
	return false
}

// Instance is an object created by calling a class.
type Instance struct {
	header
	Class  *Class
	Fields *Map
	// Extra is an opaque slot native classes use for Go state such as file
	// handles. The collector never looks inside it.
	Extra     any
	finalized bool
}

func (i *Instance) Type() Type { return INSTANCE }

// Module is a namespace of globals, optionally backed by a native handle
// that resolves symbols lazily.
type Module struct {
	header
	Name    *String
	Globals *Map
	Handle  SymbolResolver
}

func (m *Module) Type() Type { return MODULE }

// SymbolResolver resolves names that are not yet present in a module's
// globals, for modules backed by native code.
type SymbolResolver interface {
	Resolve(h *Heap, name string) (Value, bool)
}
