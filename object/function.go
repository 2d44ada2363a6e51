package object

// Function is a compiled unit of code. It is immutable once the compiler
// has finished with it.
type Function struct {
	header
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *String // nil for lambdas
	ClassName    *String // set for methods
	Module       *Module // nil for code compiled for the main script
}

func (f *Function) Type() Type { return FUNCTION }

// DisplayName returns the qualified name used in diagnostics, such as
// "shapes.Circle.area".
func (f *Function) DisplayName() string {
	name := "lambda"
	if f.Name != nil {
		name = f.Name.Chars
	}
	if f.ClassName != nil {
		name = f.ClassName.Chars + "." + name
	}
	if f.Module != nil && f.Module.Name != nil {
		name = f.Module.Name.Chars + "." + name
	}
	return name
}

// Closure is a Function together with the upvalues it captured. It is the
// unit the VM actually invokes.
type Closure struct {
	header
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) Type() Type { return CLOSURE }

// Upvalue is a captured variable. While open it aliases a slot of the VM
// stack; once closed it owns a copy of the value. The transition happens
// exactly once.
type Upvalue struct {
	header
	Slot   int
	Closed Value
	closed bool
	// Next links the VM's list of open upvalues, sorted by descending slot.
	Next *Upvalue
}

func (u *Upvalue) Type() Type { return UPVALUE }

// IsClosed reports whether the upvalue owns its value.
func (u *Upvalue) IsClosed() bool { return u.closed }

// Close moves the upvalue to the closed state with the given value.
func (u *Upvalue) Close(value Value) {
	if u.closed {
		return
	}
	u.Closed = value
	u.closed = true
	u.Next = nil
}

// BoundMethod pairs a receiver with a method looked up on its class.
type BoundMethod struct {
	header
	Receiver Value
	Method   Value // a *Closure or *Native
}

func (b *BoundMethod) Type() Type { return METHOD }

// Native is a function implemented in Go.
type Native struct {
	header
	Name   *String
	Fn     NativeFn
	Module *Module // nil for builtins
}

func (n *Native) Type() Type { return NATIVE }
