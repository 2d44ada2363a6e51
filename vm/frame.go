package vm

import (
	"github.com/jmllang/jml/errz"
	"github.com/jmllang/jml/object"
)

type frame struct {
	closure *object.Closure
	ip      int
	// base is the stack index of slot 0, which holds the callee or the
	// receiver of a method.
	base int
	// globals is the namespace global instructions operate on: the module
	// of the function, or the main script's.
	globals *object.Map
}

func (f *frame) chunk() *object.Chunk {
	return &f.closure.Function.Chunk
}

func (f *frame) readByte() int {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return int(b)
}

func (f *frame) readShort() int {
	v := f.chunk().ReadShort(f.ip)
	f.ip += 2
	return v
}

// readIndex reads a constant index or count, which is two bytes wide in
// the extended form of an instruction.
func (f *frame) readIndex(wide bool) int {
	if wide {
		return f.readShort()
	}
	return f.readByte()
}

func (f *frame) readConstant(wide bool) object.Value {
	return f.chunk().Constants[f.readIndex(wide)]
}

func (f *frame) readName(wide bool) *object.String {
	s, _ := f.readConstant(wide).AsString()
	return s
}

// line returns the source line of the instruction that is executing.
func (f *frame) line() int {
	ip := f.ip - 1
	if ip < 0 {
		ip = 0
	}
	return f.chunk().Line(ip)
}

// backtrace describes the active frames, innermost first.
func (vm *VirtualMachine) backtrace() []errz.Frame {
	trace := make([]errz.Frame, 0, vm.fp)
	for i := vm.fp - 1; i >= 0; i-- {
		f := &vm.frames[i]
		trace = append(trace, errz.Frame{
			Function: f.closure.Function.DisplayName(),
			Line:     f.line(),
		})
	}
	return trace
}

// runtimeError creates an error carrying the current backtrace.
func (vm *VirtualMachine) runtimeError(format string, args ...any) *errz.RuntimeError {
	err := errz.NewRuntimeError(format, args...)
	err.Backtrace = vm.backtrace()
	vm.log.Debug().
		Str("message", err.Message).
		Int("line", err.Line()).
		Msg("runtime_error")
	return err
}
