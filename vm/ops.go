package vm

import (
	"math"
	"strings"

	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
)

// add implements '+', which besides numbers accepts strings, a string and a
// number in either order, and arrays.
func (vm *VirtualMachine) add() error {
	b, a := vm.peek(0), vm.peek(1)
	if a.IsNumber() && b.IsNumber() {
		vm.sp--
		vm.stack[vm.sp-1] = object.Number(a.AsNumber() + b.AsNumber())
		return nil
	}

	var result object.Value
	switch x := a.AsObject().(type) {
	case *object.String:
		if y, ok := b.AsString(); ok {
			result = vm.heap.NewString(x.Chars + y.Chars)
		} else if b.IsNumber() {
			result = vm.heap.NewString(x.Chars + object.FormatNumber(b.AsNumber()))
		} else {
			return vm.runtimeError("Operands must be two numbers or two strings.")
		}
	case *object.Array:
		values := append([]object.Value(nil), x.Values...)
		if y, ok := b.AsArray(); ok {
			values = append(values, y.Values...)
		} else {
			values = append(values, b)
		}
		result = object.Obj(vm.heap.NewArray(values))
	default:
		y, ok := b.AsString()
		if !a.IsNumber() || !ok {
			return vm.runtimeError("Operands must be two numbers or two strings.")
		}
		result = vm.heap.NewString(object.FormatNumber(a.AsNumber()) + y.Chars)
	}
	vm.sp -= 2
	vm.push(result)
	return nil
}

func (vm *VirtualMachine) arithmetic(code op.Code) error {
	b, a := vm.peek(0), vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	x, y := a.AsNumber(), b.AsNumber()
	var r float64
	switch code {
	case op.Subtract:
		r = x - y
	case op.Multiply:
		r = x * y
	case op.Power:
		r = math.Pow(x, y)
	case op.Divide:
		if y == 0 {
			return vm.runtimeError("Division by zero.")
		}
		r = x / y
	case op.Modulo:
		if y == 0 {
			return vm.runtimeError("Modulo by zero.")
		}
		r = math.Mod(x, y)
	}
	vm.sp--
	vm.stack[vm.sp-1] = object.Number(r)
	return nil
}

func (vm *VirtualMachine) compare(code op.Code) error {
	b, a := vm.peek(0), vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	x, y := a.AsNumber(), b.AsNumber()
	var r bool
	switch code {
	case op.Greater:
		r = x > y
	case op.GreaterEqual:
		r = x >= y
	case op.Less:
		r = x < y
	case op.LessEqual:
		r = x <= y
	}
	vm.sp--
	vm.stack[vm.sp-1] = object.Bool(r)
	return nil
}

// contain implements 'value in container'.
func (vm *VirtualMachine) contain() error {
	container, value := vm.peek(0), vm.peek(1)
	var found bool
	switch obj := container.AsObject().(type) {
	case *object.Array:
		for _, item := range obj.Values {
			if object.Equal(item, value) {
				found = true
				break
			}
		}
	case *object.Map:
		if key, ok := value.AsString(); ok {
			found = obj.Has(key)
		}
	case *object.String:
		sub, ok := value.AsString()
		if !ok {
			return vm.runtimeError("Operand of 'in' on a string must be a string.")
		}
		found = strings.Contains(obj.Chars, sub.Chars)
	default:
		return vm.runtimeError("Operand of 'in' must be an array, map or string.")
	}
	vm.sp--
	vm.stack[vm.sp-1] = object.Bool(found)
	return nil
}

func (vm *VirtualMachine) size() error {
	var n int
	switch obj := vm.peek(0).AsObject().(type) {
	case *object.Array:
		n = len(obj.Values)
	case *object.String:
		n = len(obj.Chars)
	case *object.Map:
		n = obj.Len()
	default:
		return vm.runtimeError("Can only iterate over arrays, maps and strings.")
	}
	vm.stack[vm.sp-1] = object.Number(float64(n))
	return nil
}

// index converts an index value to a position in a sequence of the given
// length. Negative indexes count from the end.
func (vm *VirtualMachine) index(v object.Value, length int) (int, error) {
	if !v.IsNumber() {
		return 0, vm.runtimeError("Index must be a number.")
	}
	n := v.AsNumber()
	i := int(n)
	if float64(i) != n {
		return 0, vm.runtimeError("Index must be an integer.")
	}
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, vm.runtimeError("Index out of bounds.")
	}
	return i, nil
}

func (vm *VirtualMachine) getIndex() error {
	key := vm.peek(0)
	var result object.Value
	switch obj := vm.peek(1).AsObject().(type) {
	case *object.Array:
		i, err := vm.index(key, len(obj.Values))
		if err != nil {
			return err
		}
		result = obj.Values[i]
	case *object.Map:
		if key.IsNumber() {
			// Numeric positions walk the keys, which is how for loops
			// iterate a map.
			i, err := vm.index(key, obj.Len())
			if err != nil {
				return err
			}
			k, _ := obj.KeyAt(i)
			result = object.Obj(k)
			break
		}
		name, ok := key.AsString()
		if !ok {
			return vm.runtimeError("Map keys must be strings.")
		}
		result, _ = obj.Get(name)
	case *object.String:
		i, err := vm.index(key, len(obj.Chars))
		if err != nil {
			return err
		}
		result = vm.heap.NewString(obj.Chars[i : i+1])
	default:
		return vm.runtimeError("Can only index arrays, maps and strings.")
	}
	vm.sp--
	vm.stack[vm.sp-1] = result
	return nil
}

// setIndex replaces [container, key, value] with value.
func (vm *VirtualMachine) setIndex() error {
	value, key := vm.peek(0), vm.peek(1)
	switch obj := vm.peek(2).AsObject().(type) {
	case *object.Array:
		i, err := vm.index(key, len(obj.Values))
		if err != nil {
			return err
		}
		obj.Values[i] = value
	case *object.Map:
		name, ok := key.AsString()
		if !ok {
			return vm.runtimeError("Map keys must be strings.")
		}
		vm.heap.MapSet(obj, name, value)
	default:
		return vm.runtimeError("Can only assign to array and map indexes.")
	}
	vm.sp -= 3
	vm.push(value)
	return nil
}

// buildMap replaces count stacked keys and values with a new map.
func (vm *VirtualMachine) buildMap(count int) error {
	h := vm.heap
	m := h.NewMap()
	h.Exempt(object.Obj(m))
	defer h.Unexempt()
	for i := vm.sp - count; i < vm.sp; i += 2 {
		key, ok := vm.stack[i].AsString()
		if !ok {
			return vm.runtimeError("Map keys must be strings.")
		}
		h.MapSet(m, key, vm.stack[i+1])
	}
	vm.sp -= count
	vm.push(object.Obj(m))
	return nil
}
