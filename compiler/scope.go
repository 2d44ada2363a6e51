package compiler

import (
	"github.com/jmllang/jml/internal/token"
	"github.com/jmllang/jml/op"
)

func (c *Compiler) beginScope() {
	c.fn.scopeDepth++
}

// endScope discards the locals of the innermost scope, closing the ones
// captured by closures.
func (c *Compiler) endScope() {
	fs := c.fn
	fs.scopeDepth--
	pending := 0
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		if fs.locals[len(fs.locals)-1].captured {
			c.emitPops(pending)
			pending = 0
			c.emitOp(op.CloseUpvalue)
		} else {
			pending++
		}
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
	c.emitPops(pending)
}

// discardLocals emits the cleanup for every local deeper than depth
// without forgetting them. It is used when break and skip leave scopes
// early.
func (c *Compiler) discardLocals(depth int) {
	fs := c.fn
	pending := 0
	for i := len(fs.locals) - 1; i >= 0 && fs.locals[i].depth > depth; i-- {
		if fs.locals[i].captured {
			c.emitPops(pending)
			pending = 0
			c.emitOp(op.CloseUpvalue)
		} else {
			pending++
		}
	}
	c.emitPops(pending)
}

// addLocal reserves the next stack slot for name and returns its index.
// The local stays uninitialized until markInitialized is called.
func (c *Compiler) addLocal(name string) int {
	fs := c.fn
	if len(fs.locals) >= MaxLocals {
		c.error("Too many local variables in function.")
		return 0
	}
	fs.locals = append(fs.locals, local{name: name, depth: -1})
	return len(fs.locals) - 1
}

// addHidden declares an initialized local that source code cannot name.
func (c *Compiler) addHidden(name string) int {
	slot := c.addLocal(" " + name)
	c.markInitialized()
	return slot
}

func (c *Compiler) markInitialized() {
	fs := c.fn
	if fs.scopeDepth == 0 || len(fs.locals) == 0 {
		return
	}
	fs.locals[len(fs.locals)-1].depth = fs.scopeDepth
}

// declareVariable adds a local for the name just consumed. Top-level names
// are globals and need no declaration.
func (c *Compiler) declareVariable(name string) {
	fs := c.fn
	if fs.scopeDepth == 0 {
		return
	}
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.depth != -1 && l.depth < fs.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Variable already declared in this scope.")
		}
	}
	c.addLocal(name)
}

// parseVariable consumes a name and declares it, returning the constant
// index of the name for globals.
func (c *Compiler) parseVariable(message string) int {
	c.consume(token.NAME, message)
	name := c.previous.Literal
	c.declareVariable(name)
	if c.fn.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

// defineVariable binds the value on top of the stack to the variable just
// declared.
func (c *Compiler) defineVariable(global int) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitIndexed(op.DefGlobal, global)
}

func (c *Compiler) resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) addUpvalue(fs *funcState, index int, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= MaxUpvalues {
		c.error("Too many upvalues in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalue{index: index, isLocal: isLocal})
	fs.function.UpvalueCount = len(fs.upvalues)
	return len(fs.upvalues) - 1
}

func (c *Compiler) resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if i := c.resolveLocal(fs.enclosing, name); i != -1 {
		fs.enclosing.locals[i].captured = true
		return c.addUpvalue(fs, i, true)
	}
	if i := c.resolveUpvalue(fs.enclosing, name); i != -1 {
		return c.addUpvalue(fs, i, false)
	}
	return -1
}
