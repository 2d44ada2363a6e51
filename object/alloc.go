package object

// Intern returns the canonical String for s, allocating it on first use.
func (h *Heap) Intern(s string) *String {
	if str, ok := h.strings[s]; ok {
		return str
	}
	str := &String{Chars: s, Hash: HashString(s)}
	h.track(str, headerSize+len(s))
	h.strings[s] = str
	return str
}

// NewString is a convenience wrapper returning an interned string as a Value.
func (h *Heap) NewString(s string) Value {
	return Obj(h.Intern(s))
}

// Lookup returns the interned String for s without allocating.
func (h *Heap) Lookup(s string) (*String, bool) {
	str, ok := h.strings[s]
	return str, ok
}

// NewArray allocates an array holding a copy of values. The values must be
// reachable while the array is allocated.
func (h *Heap) NewArray(values []Value) *Array {
	arr := &Array{Values: append([]Value(nil), values...)}
	h.track(arr, headerSize+valueSize*len(values))
	return arr
}

// Append adds a value to an array, accounting the growth. Both the array and
// the value must be reachable or exempt.
func (h *Heap) Append(arr *Array, v Value) {
	h.Grow(arr, valueSize)
	arr.Values = append(arr.Values, v)
}

// NewMap allocates an empty map.
func (h *Heap) NewMap() *Map {
	m := &Map{entries: map[*String]Value{}}
	h.track(m, headerSize)
	return m
}

// MapSet stores value under key, accounting growth when the key is new. The
// map, key and value must be reachable or exempt.
func (h *Heap) MapSet(m *Map, key *String, value Value) {
	if m.Has(key) {
		m.set(key, value)
		return
	}
	h.Grow(m, mapEntrySize)
	m.set(key, value)
}

// NewFunction allocates an empty function for the compiler to fill in.
func (h *Heap) NewFunction() *Function {
	fn := &Function{}
	h.track(fn, headerSize+valueSize*2)
	return fn
}

// WriteCode appends a byte to a function's chunk.
func (h *Heap) WriteCode(fn *Function, b byte, line int) {
	fn.Chunk.Write(b, line)
	h.Account(fn, codeEntrySize)
}

// AddConstant appends to a function's constant pool and returns the index.
func (h *Heap) AddConstant(fn *Function, v Value) int {
	h.Account(fn, valueSize)
	return fn.Chunk.AddConstant(v)
}

// NewClosure wraps fn with room for its upvalues.
func (h *Heap) NewClosure(fn *Function) *Closure {
	c := &Closure{
		Function: fn,
		Upvalues: make([]*Upvalue, fn.UpvalueCount),
	}
	h.track(c, headerSize+upvalueRefSz*fn.UpvalueCount)
	return c
}

// NewUpvalue allocates an open upvalue pointing at a stack slot.
func (h *Heap) NewUpvalue(slot int) *Upvalue {
	uv := &Upvalue{Slot: slot}
	h.track(uv, headerSize+valueSize)
	return uv
}

// NewClass allocates a class with an empty member table.
func (h *Heap) NewClass(name *String) *Class {
	h.Exempt(Obj(name))
	members := h.NewMap()
	h.Exempt(Obj(members))
	class := &Class{Name: name, Members: members}
	h.track(class, headerSize+valueSize)
	h.Unexempt()
	h.Unexempt()
	return class
}

// NewInstance allocates an instance of class with an empty field map.
func (h *Heap) NewInstance(class *Class) *Instance {
	fields := h.NewMap()
	h.Exempt(Obj(fields))
	inst := &Instance{Class: class, Fields: fields}
	h.track(inst, headerSize+valueSize)
	h.Unexempt()
	return inst
}

// NewBoundMethod pairs a receiver with a method.
func (h *Heap) NewBoundMethod(receiver, method Value) *BoundMethod {
	bm := &BoundMethod{Receiver: receiver, Method: method}
	h.track(bm, headerSize+valueSize*2)
	return bm
}

// NewNative allocates a native function object.
func (h *Heap) NewNative(name string, fn NativeFn, module *Module) *Native {
	str := h.Intern(name)
	h.Exempt(Obj(str))
	n := &Native{Name: str, Fn: fn, Module: module}
	h.track(n, headerSize+valueSize)
	h.Unexempt()
	return n
}

// NewException allocates an exception.
func (h *Heap) NewException(name, message string) *Exception {
	n := h.Intern(name)
	h.Exempt(Obj(n))
	m := h.Intern(message)
	h.Exempt(Obj(m))
	e := &Exception{Name: n, Message: m}
	h.track(e, headerSize+valueSize)
	h.Unexempt()
	h.Unexempt()
	return e
}

// NewModule allocates a module with an empty namespace.
func (h *Heap) NewModule(name string) *Module {
	n := h.Intern(name)
	h.Exempt(Obj(n))
	globals := h.NewMap()
	h.Exempt(Obj(globals))
	m := &Module{Name: n, Globals: globals}
	h.track(m, headerSize+valueSize)
	h.Unexempt()
	h.Unexempt()
	return m
}

// Register stores every entry of a native table in the module's namespace.
func (h *Heap) Register(m *Module, table []NativeEntry) {
	for _, entry := range table {
		n := h.NewNative(entry.Name, entry.Fn, m)
		h.Exempt(Obj(n))
		h.MapSet(m.Globals, n.Name, Obj(n))
		h.Unexempt()
	}
}
