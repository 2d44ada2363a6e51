package jml

import (
	"context"
	"fmt"

	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/vm"
)

// VM provides stateful execution for REPL and incremental evaluation.
// Unlike the Eval and Interpret functions which create a fresh machine on
// each call, the VM keeps its globals, loaded modules and heap across
// evaluations until Close is called.
type VM struct {
	machine *vm.VirtualMachine
}

// NewVM creates a new VM with the given options.
func NewVM(options ...Option) *VM {
	return &VM{machine: vm.New(newConfig(options...).VMOpts()...)}
}

// Eval evaluates source within this VM's context. Variables and functions
// defined in previous calls remain accessible. Results without a Go
// equivalent are returned as their object.Object; the VM does not keep
// them alive.
func (v *VM) Eval(ctx context.Context, source string) (any, error) {
	result, err := v.machine.Eval(ctx, source)
	if err != nil {
		return nil, err
	}
	return object.ToGo(result), nil
}

// Get returns the value of a global variable converted to a Go value.
func (v *VM) Get(name string) (any, bool) {
	value, ok := v.machine.Get(name)
	if !ok {
		return nil, false
	}
	return object.ToGo(value), true
}

// Call calls the global function with the given name. Arguments are
// converted with the same rules as WithGlobals.
func (v *VM) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := v.machine.Get(name)
	if !ok {
		return nil, fmt.Errorf("function %q not found", name)
	}
	h := v.machine.Heap()
	if len(args) > object.ExemptMax/2 {
		return nil, fmt.Errorf("too many arguments: %d", len(args))
	}
	values := make([]object.Value, 0, len(args))
	for _, arg := range args {
		value, err := h.FromGo(arg)
		if err != nil {
			v.unexempt(len(values))
			return nil, err
		}
		h.Exempt(value)
		values = append(values, value)
	}
	result, err := v.machine.Call(ctx, fn, values...)
	v.unexempt(len(values))
	if err != nil {
		return nil, err
	}
	return object.ToGo(result), nil
}

func (v *VM) unexempt(n int) {
	h := v.machine.Heap()
	for i := 0; i < n; i++ {
		h.Unexempt()
	}
}

// Machine returns the underlying virtual machine.
func (v *VM) Machine() *vm.VirtualMachine {
	return v.machine
}

// Close releases every object of the VM, running pending destructors.
func (v *VM) Close() {
	v.machine.Free()
}
