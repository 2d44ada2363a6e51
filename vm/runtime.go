package vm

import (
	"io"

	"github.com/jmllang/jml/object"
)

// runtime is the object.Runtime handed to natives.
type runtime struct {
	vm *VirtualMachine
}

func (r *runtime) Heap() *object.Heap { return r.vm.heap }

func (r *runtime) Stdout() io.Writer { return r.vm.stdout }

// Globals returns the namespace of the innermost running script or module.
func (r *runtime) Globals() *object.Map {
	if r.vm.fp > 0 {
		return r.vm.frame().globals
	}
	return r.vm.globals
}

// Call runs callee on top of the current frames. A failure is remembered so
// the calling native's result is discarded and the error propagates even if
// the native ignores it.
func (r *runtime) Call(callee object.Value, args ...object.Value) (object.Value, error) {
	result, err := r.vm.call(callee, args)
	if err != nil {
		if r.vm.pendingErr == nil {
			r.vm.pendingErr = err
		}
		return object.None, err
	}
	return result, nil
}

// finalize runs an instance's __free method. Destructor failures cannot
// reach any caller, so they are only logged.
func (vm *VirtualMachine) finalize(inst *object.Instance, method object.Value) {
	bm := vm.heap.NewBoundMethod(object.Obj(inst), method)
	if _, err := vm.call(object.Obj(bm), nil); err != nil {
		vm.log.Debug().
			Err(err).
			Str("class", inst.Class.Name.Chars).
			Msg("finalizer_failed")
	}
}
