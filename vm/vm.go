// Package vm provides a VirtualMachine that executes compiled jml code.
//
// The machine is a stack machine. Every call pushes a frame that records
// the running closure, its instruction pointer and the stack slot holding
// the callee, which becomes local slot 0. Locals, temporaries and
// arguments all live on the value stack. Variables captured by closures
// are tracked as open upvalues until the slots they alias are popped.
//
// The machine owns a Heap and registers itself as its root: the value
// stack, the closures of active frames, open upvalues, globals, loaded
// modules and the value saved in eval mode stay alive across collections.
package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jmllang/jml/builtins"
	"github.com/jmllang/jml/compiler"
	"github.com/jmllang/jml/errz"
	"github.com/jmllang/jml/importer"
	"github.com/jmllang/jml/object"
	"github.com/rs/zerolog"
)

const (
	// FramesMax is the maximum depth of the call stack.
	FramesMax = 128

	// LocalsMax is the number of local slots one frame may address.
	LocalsMax = 256

	// StackMax is the capacity of the value stack.
	StackMax = FramesMax * LocalsMax

	// DefaultContextCheckInterval is the number of instructions between
	// checks of ctx.Done().
	DefaultContextCheckInterval = 1000
)

// Status is the outcome of interpreting a program.
type Status int

const (
	StatusOK Status = iota
	StatusCompileError
	StatusRuntimeError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCompileError:
		return "compile error"
	case StatusRuntimeError:
		return "runtime error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type nativeModule struct {
	name     string
	table    []object.NativeEntry
	resolver object.SymbolResolver
}

// VirtualMachine executes jml bytecode.
type VirtualMachine struct {
	heap   *object.Heap
	stack  []object.Value
	sp     int
	frames [FramesMax]frame
	fp     int

	openUpvalues *object.Upvalue
	globals      *object.Map
	builtins     *object.Map
	modules      *object.Map
	saved        object.Value

	initName *object.String
	callName *object.String
	freeName *object.String

	ctx        context.Context
	pendingErr error
	running    bool
	runMutex   sync.Mutex
	rt         *runtime

	stdout               io.Writer
	stderr               io.Writer
	color                *bool
	log                  zerolog.Logger
	importer             importer.Importer
	heapOpts             []object.HeapOption
	inputGlobals         map[string]any
	nativeModules        []nativeModule
	contextCheckInterval int
	filename             string
}

// New creates a Virtual Machine with its own heap. It panics when a value
// given through WithGlobals cannot be converted, which is a programming
// error.
func New(options ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		stdout:               os.Stdout,
		stderr:               os.Stderr,
		log:                  zerolog.Nop(),
		inputGlobals:         map[string]any{},
		contextCheckInterval: DefaultContextCheckInterval,
	}
	for _, opt := range options {
		opt(vm)
	}
	vm.rt = &runtime{vm: vm}
	vm.stack = make([]object.Value, StackMax)

	heapOpts := append([]object.HeapOption{object.WithLogger(vm.log)}, vm.heapOpts...)
	vm.heap = object.NewHeap(heapOpts...)
	vm.heap.AddRoots(vm)
	vm.heap.SetFinalizer(vm.finalize)

	h := vm.heap
	vm.initName = h.Intern(object.InitName)
	vm.callName = h.Intern(object.CallName)
	vm.freeName = h.Intern(object.FreeName)
	vm.globals = h.NewMap()
	vm.modules = h.NewMap()

	core := vm.defineModule(builtins.ModuleName, builtins.Builtins(), nil)
	vm.builtins = core.Globals
	for _, m := range vm.nativeModules {
		vm.defineModule(m.name, m.table, m.resolver)
	}
	for name, value := range vm.inputGlobals {
		v, err := h.FromGo(value)
		if err != nil {
			panic(fmt.Errorf("vm: invalid global %q: %w", name, err))
		}
		h.Exempt(v)
		h.MapSet(vm.globals, h.Intern(name), v)
		h.Unexempt()
	}
	return vm
}

func (vm *VirtualMachine) defineModule(name string, table []object.NativeEntry, resolver object.SymbolResolver) *object.Module {
	h := vm.heap
	m := h.NewModule(name)
	h.Exempt(object.Obj(m))
	defer h.Unexempt()
	m.Handle = resolver
	h.Register(m, table)
	h.MapSet(vm.modules, m.Name, object.Obj(m))
	return m
}

// Heap returns the heap owning every object of the machine.
func (vm *VirtualMachine) Heap() *object.Heap {
	return vm.heap
}

// Globals returns the namespace of the main script.
func (vm *VirtualMachine) Globals() *object.Map {
	return vm.globals
}

// Get returns the value of a global variable of the main script.
func (vm *VirtualMachine) Get(name string) (object.Value, bool) {
	key, ok := vm.heap.Lookup(name)
	if !ok {
		return object.None, false
	}
	return vm.globals.Get(key)
}

// MarkRoots marks everything the machine references.
func (vm *VirtualMachine) MarkRoots(h *object.Heap) {
	for i := 0; i < vm.sp; i++ {
		h.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.fp; i++ {
		h.Mark(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		h.Mark(uv)
	}
	h.MarkValue(vm.saved)
	// The machine may be collected while New is still filling these in.
	for _, m := range []*object.Map{vm.globals, vm.builtins, vm.modules} {
		if m != nil {
			h.Mark(m)
		}
	}
	for _, s := range []*object.String{vm.initName, vm.callName, vm.freeName} {
		if s != nil {
			h.Mark(s)
		}
	}
}

func (vm *VirtualMachine) start(ctx context.Context) error {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	if vm.running {
		return fmt.Errorf("vm is already running")
	}
	if vm.heap == nil {
		return fmt.Errorf("vm has been freed")
	}
	vm.running = true
	vm.ctx = ctx
	return nil
}

func (vm *VirtualMachine) stop() {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	vm.running = false
	vm.ctx = nil
}

// Interpret compiles and runs source as the main script. Compile and
// runtime errors are printed to stderr and returned.
func (vm *VirtualMachine) Interpret(ctx context.Context, source string) (Status, error) {
	if err := vm.start(ctx); err != nil {
		return StatusRuntimeError, err
	}
	defer vm.stop()
	fn, err := compiler.Compile(vm.heap, source, vm.compilerOpts()...)
	if err != nil {
		vm.printError(err)
		return StatusCompileError, err
	}
	if _, err := vm.runMain(fn); err != nil {
		vm.printError(err)
		return StatusRuntimeError, err
	}
	return StatusOK, nil
}

// InterpretFunction runs an already compiled top-level function, such as
// one decoded from bytecode.
func (vm *VirtualMachine) InterpretFunction(ctx context.Context, fn *object.Function) (Status, error) {
	if err := vm.start(ctx); err != nil {
		return StatusRuntimeError, err
	}
	defer vm.stop()
	if _, err := vm.runMain(fn); err != nil {
		vm.printError(err)
		return StatusRuntimeError, err
	}
	return StatusOK, nil
}

// Eval runs source and returns the value of its last top-level expression
// statement, or none when there is none. Errors are returned, not printed.
func (vm *VirtualMachine) Eval(ctx context.Context, source string) (object.Value, error) {
	if err := vm.start(ctx); err != nil {
		return object.None, err
	}
	defer vm.stop()
	opts := append(vm.compilerOpts(), compiler.WithEvalMode())
	fn, err := compiler.Compile(vm.heap, source, opts...)
	if err != nil {
		return object.None, err
	}
	vm.saved = object.None
	if _, err := vm.runMain(fn); err != nil {
		return object.None, err
	}
	result := vm.saved
	vm.saved = object.None
	return result, nil
}

// Call invokes a callable value with the given arguments and returns its
// result. The machine must not be running; natives call back into the
// machine through their Runtime instead.
func (vm *VirtualMachine) Call(ctx context.Context, callee object.Value, args ...object.Value) (object.Value, error) {
	if err := vm.start(ctx); err != nil {
		return object.None, err
	}
	defer vm.stop()
	result, err := vm.call(callee, args)
	if err != nil {
		vm.reset()
		return object.None, err
	}
	return result, nil
}

// Free runs pending destructors and releases every object. The machine
// cannot be used afterwards.
func (vm *VirtualMachine) Free() {
	if vm.heap == nil {
		return
	}
	vm.reset()
	vm.heap.FreeAll()
	vm.heap = nil
	vm.globals = nil
	vm.builtins = nil
	vm.modules = nil
	vm.saved = object.None
}

func (vm *VirtualMachine) compilerOpts() []compiler.Option {
	var opts []compiler.Option
	if vm.filename != "" {
		opts = append(opts, compiler.WithFilename(vm.filename))
	}
	return opts
}

// runMain wraps fn in a closure and runs it to completion.
func (vm *VirtualMachine) runMain(fn *object.Function) (object.Value, error) {
	h := vm.heap
	h.Exempt(object.Obj(fn))
	closure := h.NewClosure(fn)
	h.Unexempt()
	result, err := vm.call(object.Obj(closure), nil)
	if err != nil {
		vm.reset()
		return object.None, err
	}
	return result, nil
}

// reset empties the stacks after an error, closing every open upvalue so
// closures that escaped keep their values.
func (vm *VirtualMachine) reset() {
	vm.closeUpvalues(0)
	for i := 0; i < vm.sp; i++ {
		vm.stack[i] = object.None
	}
	vm.sp = 0
	for i := 0; i < vm.fp; i++ {
		vm.frames[i] = frame{}
	}
	vm.fp = 0
	vm.pendingErr = nil
}

func (vm *VirtualMachine) printError(err error) {
	useColor := errz.IsTerminal(vm.stderr)
	if vm.color != nil {
		useColor = *vm.color
	}
	errz.NewPrinter(vm.stderr, useColor).Print(err)
}
