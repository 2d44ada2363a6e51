package vm

import (
	"github.com/jmllang/jml/compiler"
	"github.com/jmllang/jml/object"
)

// isMethod reports whether a class member binds its receiver when it is
// accessed through an instance.
func isMethod(v object.Value) bool {
	switch v.AsObject().(type) {
	case *object.Closure, *object.Native:
		return true
	}
	return false
}

// call invokes callee with args and runs it to completion. It is the entry
// point for every call that does not originate from bytecode.
func (vm *VirtualMachine) call(callee object.Value, args []object.Value) (object.Value, error) {
	if len(args) > compiler.MaxArgs {
		return object.None, vm.runtimeError("Can't have more than %d arguments.", compiler.MaxArgs)
	}
	if vm.sp+len(args)+1 > len(vm.stack) {
		return object.None, vm.runtimeError("Stack overflow.")
	}
	fp, sp := vm.fp, vm.sp
	vm.push(callee)
	for _, arg := range args {
		vm.push(arg)
	}
	err := vm.callValue(callee, len(args))
	if err == nil && vm.fp > fp {
		err = vm.run(fp)
	}
	if err != nil {
		vm.unwind(fp, sp)
		return object.None, err
	}
	return vm.pop(), nil
}

// unwind drops every frame and stack slot above the given marks.
func (vm *VirtualMachine) unwind(fp, sp int) {
	vm.closeUpvalues(sp)
	for i := fp; i < vm.fp; i++ {
		vm.frames[i] = frame{}
	}
	vm.fp = fp
	vm.sp = sp
}

// callValue calls the callee sitting below argc arguments on the stack.
// Closures get a new frame; everything else completes immediately and
// leaves its result in the callee slot.
func (vm *VirtualMachine) callValue(callee object.Value, argc int) error {
	switch obj := callee.AsObject().(type) {
	case *object.Closure:
		return vm.callClosure(obj, argc)
	case *object.Native:
		return vm.callNative(obj, argc, false)
	case *object.BoundMethod:
		vm.stack[vm.sp-argc-1] = obj.Receiver
		return vm.callMethod(obj.Method, argc)
	case *object.Class:
		return vm.instantiate(obj, argc)
	case *object.Instance:
		if method, ok := obj.Class.Lookup(vm.callName); ok && isMethod(method) {
			return vm.callMethod(method, argc)
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

// callMethod calls method with the receiver already in the callee slot.
func (vm *VirtualMachine) callMethod(method object.Value, argc int) error {
	switch fn := method.AsObject().(type) {
	case *object.Closure:
		return vm.callClosure(fn, argc)
	case *object.Native:
		return vm.callNative(fn, argc, true)
	}
	return vm.runtimeError("Can only call functions and classes.")
}

func (vm *VirtualMachine) callClosure(closure *object.Closure, argc int) error {
	fn := closure.Function
	if argc != fn.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", fn.Arity, argc)
	}
	if vm.fp == FramesMax {
		return vm.runtimeError("Recursion depth overflow.")
	}
	globals := vm.globals
	if fn.Module != nil {
		globals = fn.Module.Globals
	}
	vm.frames[vm.fp] = frame{
		closure: closure,
		base:    vm.sp - argc - 1,
		globals: globals,
	}
	vm.fp++
	return nil
}

// callNative runs a native function. Methods receive their receiver as the
// first argument. An exception result becomes a runtime error.
func (vm *VirtualMachine) callNative(native *object.Native, argc int, withReceiver bool) error {
	start := vm.sp - argc
	if withReceiver {
		start--
	}
	args := vm.stack[start:vm.sp:vm.sp]
	result := native.Fn(vm.rt, args)
	if err := vm.pendingErr; err != nil {
		vm.pendingErr = nil
		return err
	}
	if exc, ok := result.AsException(); ok {
		return vm.runtimeError("%s", exc.Error())
	}
	vm.sp -= argc + 1
	vm.push(result)
	return nil
}

// instantiate replaces the class in the callee slot with a new instance,
// copies the class fields into it and runs the initializer.
func (vm *VirtualMachine) instantiate(class *object.Class, argc int) error {
	h := vm.heap
	inst := h.NewInstance(class)
	vm.stack[vm.sp-argc-1] = object.Obj(inst)
	class.Members.Each(func(key *object.String, value object.Value) bool {
		if _, nested := value.AsClass(); !nested && !isMethod(value) {
			h.MapSet(inst.Fields, key, value)
		}
		return true
	})

	initializer, ok := class.Lookup(vm.initName)
	if !ok || !isMethod(initializer) {
		if argc != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argc)
		}
		return nil
	}
	if err := vm.callMethod(initializer, argc); err != nil {
		return err
	}
	if _, native := initializer.AsObject().(*object.Native); native && vm.peek(0).IsNone() {
		vm.stack[vm.sp-1] = object.Obj(inst)
	}
	return nil
}

// invoke calls a member of the receiver below argc arguments without
// materializing a bound method.
func (vm *VirtualMachine) invoke(name *object.String, argc int) error {
	slot := vm.sp - argc - 1
	switch obj := vm.stack[slot].AsObject().(type) {
	case *object.Instance:
		if v, ok := obj.Fields.Get(name); ok {
			vm.stack[slot] = v
			return vm.callValue(v, argc)
		}
		return vm.invokeFromClass(obj.Class, name, argc)
	case *object.Class:
		if v, ok := obj.Lookup(name); ok {
			vm.stack[slot] = v
			return vm.callValue(v, argc)
		}
	case *object.Module:
		if v, ok := vm.moduleMember(obj, name); ok {
			vm.stack[slot] = v
			return vm.callValue(v, argc)
		}
	}
	return vm.runtimeError("Undefined property '%s'.", name.Chars)
}

// invokeFromClass calls the named member of class with the receiver in the
// callee slot.
func (vm *VirtualMachine) invokeFromClass(class *object.Class, name *object.String, argc int) error {
	if class == nil {
		return vm.runtimeError("Superclass must be a class.")
	}
	member, ok := class.Lookup(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	if !isMethod(member) {
		vm.stack[vm.sp-argc-1] = member
		return vm.callValue(member, argc)
	}
	return vm.callMethod(member, argc)
}

// bind returns the value seen when member is read through receiver.
func (vm *VirtualMachine) bind(receiver, member object.Value) object.Value {
	if !isMethod(member) {
		return member
	}
	return object.Obj(vm.heap.NewBoundMethod(receiver, member))
}

func (vm *VirtualMachine) getMember(name *object.String) error {
	receiver := vm.peek(0)
	switch obj := receiver.AsObject().(type) {
	case *object.Instance:
		if v, ok := obj.Fields.Get(name); ok {
			vm.stack[vm.sp-1] = v
			return nil
		}
		if v, ok := obj.Class.Lookup(name); ok {
			vm.stack[vm.sp-1] = vm.bind(receiver, v)
			return nil
		}
	case *object.Class:
		if v, ok := obj.Lookup(name); ok {
			vm.stack[vm.sp-1] = v
			return nil
		}
	case *object.Module:
		if v, ok := vm.moduleMember(obj, name); ok {
			vm.stack[vm.sp-1] = v
			return nil
		}
	}
	return vm.runtimeError("Undefined property '%s'.", name.Chars)
}

func (vm *VirtualMachine) setMember(name *object.String) error {
	value := vm.peek(0)
	switch obj := vm.peek(1).AsObject().(type) {
	case *object.Instance:
		vm.heap.MapSet(obj.Fields, name, value)
	case *object.Module:
		vm.heap.MapSet(obj.Globals, name, value)
	default:
		return vm.runtimeError("Only instances and modules have properties.")
	}
	vm.sp -= 2
	vm.push(value)
	return nil
}

// moduleMember looks a name up in a module namespace, falling back to the
// module's resolver. Resolved values are cached in the namespace.
func (vm *VirtualMachine) moduleMember(m *object.Module, name *object.String) (object.Value, bool) {
	if v, ok := m.Globals.Get(name); ok {
		return v, true
	}
	if m.Handle == nil {
		return object.None, false
	}
	v, ok := m.Handle.Resolve(vm.heap, name.Chars)
	if !ok {
		return object.None, false
	}
	vm.heap.Exempt(v)
	vm.heap.MapSet(m.Globals, name, v)
	vm.heap.Unexempt()
	return v, true
}

// inherit copies the members of the superclass below the subclass into it
// and pops the subclass.
func (vm *VirtualMachine) inherit() error {
	super, ok := vm.peek(1).AsClass()
	if !ok {
		return vm.runtimeError("Superclass must be a class.")
	}
	sub, _ := vm.peek(0).AsClass()
	super.Members.Each(func(key *object.String, value object.Value) bool {
		vm.heap.MapSet(sub.Members, key, value)
		return true
	})
	sub.Superclass = super
	vm.sp--
	return nil
}

// super replaces [receiver, superclass] with the named superclass member
// bound to the receiver.
func (vm *VirtualMachine) super(name *object.String) error {
	class, ok := vm.pop().AsClass()
	if !ok {
		return vm.runtimeError("Superclass must be a class.")
	}
	member, ok := class.Lookup(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	vm.stack[vm.sp-1] = vm.bind(vm.peek(0), member)
	return nil
}

func (vm *VirtualMachine) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Slot > slot {
		prev = uv
		uv = uv.Next
	}
	if uv != nil && uv.Slot == slot {
		return uv
	}
	created := vm.heap.NewUpvalue(slot)
	created.Next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the given slot.
func (vm *VirtualMachine) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		uv := vm.openUpvalues
		vm.openUpvalues = uv.Next
		uv.Close(vm.stack[uv.Slot])
	}
}
