package vm

import (
	"context"

	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
)

// stackOverflow is raised by push when the value stack is full. It never
// escapes run.
type stackOverflow struct{}

func (vm *VirtualMachine) push(v object.Value) {
	if vm.sp == len(vm.stack) {
		panic(stackOverflow{})
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VirtualMachine) pop() object.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VirtualMachine) peek(distance int) object.Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VirtualMachine) frame() *frame {
	return &vm.frames[vm.fp-1]
}

// run executes instructions until the frame count drops back to stopAt.
// Nested calls from natives and finalizers run their own loop on top of the
// current frames.
func (vm *VirtualMachine) run(stopAt int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stackOverflow); ok {
				err = vm.runtimeError("Stack overflow.")
				return
			}
			err = vm.runtimeError("Internal error: %v", r)
		}
	}()

	ctx := vm.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	done := ctx.Done()
	interval := vm.contextCheckInterval
	ticks := 0

	f := vm.frame()
	for {
		if done != nil && interval > 0 {
			if ticks++; ticks >= interval {
				ticks = 0
				select {
				case <-done:
					return vm.runtimeError("Execution interrupted.").WithCause(ctx.Err())
				default:
				}
			}
		}

		opcode := op.Code(f.readByte())
		switch opcode {
		case op.Nop:
		case op.Pop:
			vm.sp--
		case op.PopTwo:
			vm.sp -= 2
		case op.Rot:
			vm.stack[vm.sp-1], vm.stack[vm.sp-2] = vm.stack[vm.sp-2], vm.stack[vm.sp-1]
		case op.Dup:
			vm.push(vm.peek(0))
		case op.DupTwo:
			vm.push(vm.peek(1))
			vm.push(vm.peek(1))
		case op.Save:
			vm.saved = vm.pop()

		case op.Const, op.ConstExt:
			vm.push(f.readConstant(opcode == op.ConstExt))
		case op.None:
			vm.push(object.None)
		case op.True:
			vm.push(object.True)
		case op.False:
			vm.push(object.False)
		case op.Bool:
			vm.stack[vm.sp-1] = object.Bool(!vm.peek(0).IsFalsey())

		case op.Add:
			if err := vm.add(); err != nil {
				return err
			}
		case op.Subtract, op.Multiply, op.Power, op.Divide, op.Modulo:
			if err := vm.arithmetic(opcode); err != nil {
				return err
			}
		case op.Greater, op.GreaterEqual, op.Less, op.LessEqual:
			if err := vm.compare(opcode); err != nil {
				return err
			}
		case op.Not:
			vm.stack[vm.sp-1] = object.Bool(vm.peek(0).IsFalsey())
		case op.Negate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.stack[vm.sp-1] = object.Number(-vm.peek(0).AsNumber())
		case op.Equal, op.NotEqual:
			eq := object.Equal(vm.peek(1), vm.peek(0))
			vm.sp--
			vm.stack[vm.sp-1] = object.Bool(eq == (opcode == op.Equal))
		case op.Concat:
			s := object.Stringify(vm.peek(1)) + object.Stringify(vm.peek(0))
			result := vm.heap.NewString(s)
			vm.sp -= 2
			vm.push(result)
		case op.Contain:
			if err := vm.contain(); err != nil {
				return err
			}
		case op.Size:
			if err := vm.size(); err != nil {
				return err
			}

		case op.Jump:
			offset := f.readShort()
			f.ip += offset
		case op.JumpIfFalse:
			offset := f.readShort()
			if vm.peek(0).IsFalsey() {
				f.ip += offset
			}
		case op.Loop:
			offset := f.readShort()
			f.ip -= offset

		case op.Call:
			argc := f.readByte()
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			f = vm.frame()
		case op.Invoke, op.InvokeExt:
			name := f.readName(opcode == op.InvokeExt)
			argc := f.readByte()
			if err := vm.invoke(name, argc); err != nil {
				return err
			}
			f = vm.frame()
		case op.SuperInvoke, op.SuperInvokeExt:
			name := f.readName(opcode == op.SuperInvokeExt)
			argc := f.readByte()
			super, _ := vm.pop().AsClass()
			if err := vm.invokeFromClass(super, name, argc); err != nil {
				return err
			}
			f = vm.frame()
		case op.Closure, op.ClosureExt:
			fn, _ := f.readConstant(opcode == op.ClosureExt).AsObject().(*object.Function)
			closure := vm.heap.NewClosure(fn)
			vm.push(object.Obj(closure))
			for i := range closure.Upvalues {
				isLocal := f.readByte() == 1
				index := f.readByte()
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(f.base + index)
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[index]
				}
			}
		case op.End:
			vm.push(object.None)
			fallthrough
		case op.Return:
			result := vm.pop()
			vm.closeUpvalues(f.base)
			vm.sp = f.base
			vm.fp--
			vm.frames[vm.fp] = frame{}
			vm.push(result)
			if vm.fp == stopAt {
				return nil
			}
			f = vm.frame()

		case op.Class, op.ClassExt:
			name := f.readName(opcode == op.ClassExt)
			vm.push(object.Obj(vm.heap.NewClass(name)))
		case op.ClassField, op.ClassFieldExt:
			name := f.readName(opcode == op.ClassFieldExt)
			class, ok := vm.peek(1).AsClass()
			if !ok {
				return vm.runtimeError("Can only define members on classes.")
			}
			// Decoded bytecode does not carry the owning class of a method.
			if c, ok := vm.peek(0).AsObject().(*object.Closure); ok && c.Function.ClassName == nil && c.Function.Name == name {
				c.Function.ClassName = class.Name
			}
			vm.heap.MapSet(class.Members, name, vm.peek(0))
			vm.sp--
		case op.Inherit:
			if err := vm.inherit(); err != nil {
				return err
			}
		case op.Super, op.SuperExt:
			name := f.readName(opcode == op.SuperExt)
			if err := vm.super(name); err != nil {
				return err
			}

		case op.GetLocal:
			vm.push(vm.stack[f.base+f.readByte()])
		case op.SetLocal:
			vm.stack[f.base+f.readByte()] = vm.peek(0)
		case op.GetUpvalue:
			uv := f.closure.Upvalues[f.readByte()]
			if uv.IsClosed() {
				vm.push(uv.Closed)
			} else {
				vm.push(vm.stack[uv.Slot])
			}
		case op.SetUpvalue:
			uv := f.closure.Upvalues[f.readByte()]
			if uv.IsClosed() {
				uv.Closed = vm.peek(0)
			} else {
				vm.stack[uv.Slot] = vm.peek(0)
			}
		case op.CloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.sp--
		case op.GetGlobal, op.GetGlobalExt:
			name := f.readName(opcode == op.GetGlobalExt)
			v, ok := f.globals.Get(name)
			if !ok {
				v, ok = vm.builtins.Get(name)
			}
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case op.SetGlobal, op.SetGlobalExt:
			name := f.readName(opcode == op.SetGlobalExt)
			if !f.globals.Has(name) {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.heap.MapSet(f.globals, name, vm.peek(0))
		case op.DefGlobal, op.DefGlobalExt:
			name := f.readName(opcode == op.DefGlobalExt)
			vm.heap.MapSet(f.globals, name, vm.peek(0))
			vm.sp--
		case op.GetMember, op.GetMemberExt:
			if err := vm.getMember(f.readName(opcode == op.GetMemberExt)); err != nil {
				return err
			}
		case op.SetMember, op.SetMemberExt:
			if err := vm.setMember(f.readName(opcode == op.SetMemberExt)); err != nil {
				return err
			}
		case op.GetIndex:
			if err := vm.getIndex(); err != nil {
				return err
			}
		case op.SetIndex:
			if err := vm.setIndex(); err != nil {
				return err
			}

		case op.Array, op.ArrayExt:
			count := f.readIndex(opcode == op.ArrayExt)
			arr := vm.heap.NewArray(vm.stack[vm.sp-count : vm.sp])
			vm.sp -= count
			vm.push(object.Obj(arr))
		case op.Map, op.MapExt:
			count := f.readIndex(opcode == op.MapExt)
			if err := vm.buildMap(count); err != nil {
				return err
			}

		case op.Import, op.ImportExt:
			wide := opcode == op.ImportExt
			name := f.readName(wide)
			bind := f.readName(wide)
			m, err := vm.importModule(name, bind)
			if err != nil {
				return err
			}
			vm.push(object.Obj(m))
		case op.ImportWildcard, op.ImportWildcardExt:
			name := f.readName(opcode == op.ImportWildcardExt)
			m, err := vm.importModule(name, nil)
			if err != nil {
				return err
			}
			vm.importWildcard(m, f.globals)

		default:
			return vm.runtimeError("Unknown opcode %s.", opcode)
		}
	}
}
