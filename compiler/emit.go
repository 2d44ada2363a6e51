package compiler

import (
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
)

func (c *Compiler) chunk() *object.Chunk {
	return &c.fn.function.Chunk
}

func (c *Compiler) emitByte(b byte) {
	c.heap.WriteCode(c.fn.function, b, c.previous.Line)
}

func (c *Compiler) emitOp(codes ...op.Code) {
	for _, code := range codes {
		c.emitByte(byte(code))
	}
}

func (c *Compiler) emitOpByte(code op.Code, operand int) {
	c.emitByte(byte(code))
	c.emitByte(byte(operand))
}

func (c *Compiler) emitShort(v int) {
	c.emitByte(byte(v >> 8))
	c.emitByte(byte(v))
}

// emitIndexed emits an instruction with a constant index or element count
// operand, switching to the extended opcode when the operand needs two
// bytes.
func (c *Compiler) emitIndexed(code op.Code, index int) {
	if index > 0xff {
		c.emitOp(op.GetInfo(code).Extended)
		c.emitShort(index)
		return
	}
	c.emitOpByte(code, index)
}

func (c *Compiler) makeConstant(v object.Value) int {
	if len(c.chunk().Constants) >= MaxConstants {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return c.heap.AddConstant(c.fn.function, v)
}

func (c *Compiler) emitConstant(v object.Value) {
	c.emitIndexed(op.Const, c.makeConstant(v))
}

// identifierConstant stores a name in the constant pool.
func (c *Compiler) identifierConstant(name string) int {
	return c.makeConstant(c.heap.NewString(name))
}

func (c *Compiler) emitJump(code op.Code) int {
	c.emitOp(code)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.chunk().Len() - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(start int) {
	c.emitOp(op.Loop)
	offset := c.chunk().Len() - start + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
	}
	c.emitShort(offset)
}

// emitReturn ends a function body. Initializers return their receiver. A
// function whose body ends with an expression statement returns the value
// of that expression; otherwise it returns none.
func (c *Compiler) emitReturn() {
	fs := c.fn
	code := c.chunk().Code
	switch {
	case fs.kind == kindInit:
		c.emitOpByte(op.GetLocal, 0)
	case fs.kind != kindMain && fs.lastPop >= 0 && fs.lastPop == len(code)-1:
		code[fs.lastPop] = byte(op.Nop)
	default:
		c.emitOp(op.None)
	}
	c.emitOp(op.Return)
}

// emitPops removes count values from the stack, two at a time where
// possible.
func (c *Compiler) emitPops(count int) {
	for ; count >= 2; count -= 2 {
		c.emitOp(op.PopTwo)
	}
	if count == 1 {
		c.emitOp(op.Pop)
	}
}
