// Package jml embeds the jml scripting language: a single-pass bytecode
// compiler, a stack based virtual machine and a mark-sweep garbage
// collector.
//
// The one-shot helpers run a script on a fresh machine:
//
//	err := jml.Interpret(ctx, "println('hello')")
//	result, err := jml.Eval(ctx, "1 + 2")
//
// Scripts may also be compiled to the portable bytecode format and run
// later with Run. Use NewVM for state that persists across evaluations.
package jml

import (
	"context"

	"github.com/jmllang/jml/builtins"
	"github.com/jmllang/jml/bytecode"
	"github.com/jmllang/jml/compiler"
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/vm"
)

// Version of the language and of the bytecode it produces.
const Version = builtins.Version

// Interpret compiles and runs source. Errors are also reported on the
// configured stderr.
func Interpret(ctx context.Context, source string, opts ...Option) error {
	machine := vm.New(newConfig(opts...).VMOpts()...)
	defer machine.Free()
	_, err := machine.Interpret(ctx, source)
	return err
}

// Eval runs source and returns the value of its last top-level expression
// statement converted to a Go value: nil, bool, float64, string, []any or
// map[string]any. Other objects, such as functions and instances, are
// returned as their printed representation.
func Eval(ctx context.Context, source string, opts ...Option) (any, error) {
	machine := vm.New(newConfig(opts...).VMOpts()...)
	defer machine.Free()
	result, err := machine.Eval(ctx, source)
	if err != nil {
		return nil, err
	}
	return detach(object.ToGo(result)), nil
}

// Compile compiles source and serializes the result to bytecode.
func Compile(source string, opts ...Option) ([]byte, error) {
	cfg := newConfig(opts...)
	var compilerOpts []compiler.Option
	if cfg.filename != "" {
		compilerOpts = append(compilerOpts, compiler.WithFilename(cfg.filename))
	}
	heap := object.NewHeap()
	defer heap.FreeAll()
	fn, err := compiler.Compile(heap, source, compilerOpts...)
	if err != nil {
		return nil, err
	}
	return bytecode.Marshal(fn)
}

// Run decodes bytecode produced by Compile and runs it.
func Run(ctx context.Context, data []byte, opts ...Option) error {
	machine := vm.New(newConfig(opts...).VMOpts()...)
	defer machine.Free()
	fn, err := bytecode.Unmarshal(machine.Heap(), data)
	if err != nil {
		return err
	}
	_, err = machine.InterpretFunction(ctx, fn)
	return err
}

// detach replaces heap objects left in a converted result with their
// representation, since they do not outlive the machine.
func detach(v any) any {
	switch x := v.(type) {
	case object.Object:
		return object.Repr(object.Obj(x))
	case []any:
		for i, item := range x {
			x[i] = detach(item)
		}
	case map[string]any:
		for k, item := range x {
			x[k] = detach(item)
		}
	}
	return v
}
