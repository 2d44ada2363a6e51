package vm

import (
	"io"

	"github.com/jmllang/jml/importer"
	"github.com/jmllang/jml/object"
	"github.com/rs/zerolog"
)

// Option is a configuration function for a Virtual Machine.
type Option func(*VirtualMachine)

// WithStdout sets the writer used by the printing builtins.
func WithStdout(w io.Writer) Option {
	return func(vm *VirtualMachine) {
		vm.stdout = w
	}
}

// WithStderr sets the writer that receives compile and runtime errors.
func WithStderr(w io.Writer) Option {
	return func(vm *VirtualMachine) {
		vm.stderr = w
	}
}

// WithLogger sets the logger for debug events such as collections and
// imports.
func WithLogger(logger zerolog.Logger) Option {
	return func(vm *VirtualMachine) {
		vm.log = logger
	}
}

// WithGCGrowFactor sets the factor applied to the live heap size to obtain
// the next collection threshold.
func WithGCGrowFactor(factor int) Option {
	return func(vm *VirtualMachine) {
		vm.heapOpts = append(vm.heapOpts, object.WithGrowFactor(factor))
	}
}

// WithGCThreshold sets the allocation volume, in bytes, that triggers the
// first collection.
func WithGCThreshold(bytes int) Option {
	return func(vm *VirtualMachine) {
		vm.heapOpts = append(vm.heapOpts, object.WithThreshold(bytes))
	}
}

// WithStressGC runs a full collection on every allocation. It is meant for
// testing the collector.
func WithStressGC() Option {
	return func(vm *VirtualMachine) {
		vm.heapOpts = append(vm.heapOpts, object.WithStress())
	}
}

// WithWeakStrings lets the collector free interned strings that are no
// longer referenced.
func WithWeakStrings() Option {
	return func(vm *VirtualMachine) {
		vm.heapOpts = append(vm.heapOpts, object.WithWeakStrings())
	}
}

// WithImporter supplies the Importer used to execute import statements.
func WithImporter(i importer.Importer) Option {
	return func(vm *VirtualMachine) {
		vm.importer = i
	}
}

// WithGlobals provides global variables with the given names. Values are
// converted with Heap.FromGo.
func WithGlobals(globals map[string]any) Option {
	return func(vm *VirtualMachine) {
		for name, value := range globals {
			vm.inputGlobals[name] = value
		}
	}
}

// WithNativeModule makes a module implemented in Go available to import
// statements. The resolver, which may be nil, is consulted for names that
// are not in the table.
func WithNativeModule(name string, table []object.NativeEntry, resolver object.SymbolResolver) Option {
	return func(vm *VirtualMachine) {
		vm.nativeModules = append(vm.nativeModules, nativeModule{
			name:     name,
			table:    table,
			resolver: resolver,
		})
	}
}

// WithColor forces colored error output on or off. By default colors are
// used when stderr is a terminal.
func WithColor(enabled bool) Option {
	return func(vm *VirtualMachine) {
		vm.color = &enabled
	}
}

// WithContextCheckInterval sets how many instructions run between checks
// of ctx.Done(). A value of 0 disables the checks.
func WithContextCheckInterval(interval int) Option {
	return func(vm *VirtualMachine) {
		vm.contextCheckInterval = interval
	}
}

// WithFilename sets the file name reported with compile errors of the main
// script.
func WithFilename(name string) Option {
	return func(vm *VirtualMachine) {
		vm.filename = name
	}
}
