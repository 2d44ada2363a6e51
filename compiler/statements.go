package compiler

import (
	"strings"

	"github.com/jmllang/jml/internal/token"
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration(false)
	case c.match(token.FN):
		c.fnDeclaration()
	case c.match(token.LET):
		c.letDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.MATCH):
		c.matchStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.SKIP):
		c.skipStatement()
	case c.match(token.IMPORT):
		c.importStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
		c.endStatement("Expect newline after block.")
	case c.check(token.ASYNC), c.check(token.AWAIT), c.check(token.TRY),
		c.check(token.SPREAD), c.check(token.WITH), c.check(token.FROM):
		c.errorAtCurrent("Reserved keyword.")
		c.advance()
	default:
		c.expressionStatement()
	}
}

// block compiles declarations up to the closing brace. The caller owns the
// scope.
func (c *Compiler) block() {
	for {
		c.skipLines()
		if c.check(token.RBRACE) || c.check(token.EOF) {
			break
		}
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block.")
}

// scopedBlock compiles a brace-delimited body in a fresh scope. The opening
// brace has been consumed.
func (c *Compiler) scopedBlock() {
	c.beginScope()
	c.block()
	c.endScope()
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.endStatement("Expect newline.")
	fs := c.fn
	if c.evalMode && fs.kind == kindMain && fs.scopeDepth == 0 {
		c.emitOp(op.Save)
		return
	}
	c.emitOp(op.Pop)
	if fs.scopeDepth == 1 && (fs.kind == kindFn || fs.kind == kindLambda || fs.kind == kindMethod) {
		fs.lastPop = c.chunk().Len() - 1
	}
}

func (c *Compiler) letDeclaration() {
	if c.match(token.WILDCARD) {
		c.consume(token.ASSIGN, "Expect '=' after '_'.")
		c.skipLines()
		c.expression()
		c.endStatement("Expect newline after 'let' declaration.")
		c.emitOp(op.Pop)
		return
	}
	global := c.parseVariable("Expect variable name.")
	if c.match(token.ASSIGN) {
		c.skipLines()
		c.expression()
	} else {
		c.emitOp(op.None)
	}
	c.endStatement("Expect newline after 'let' declaration.")
	c.defineVariable(global)
}

func (c *Compiler) fnDeclaration() {
	global := c.parseVariable("Expect function name.")
	name := c.previous.Literal
	c.markInitialized()
	c.function(kindFn, name)
	c.defineVariable(global)
}

// function compiles a parameter list and body into a closure on the stack.
func (c *Compiler) function(kind funcKind, name string) {
	c.beginFunction(kind, name)
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after function name.")
	if !c.check(token.RPAREN) {
		c.parameters()
	}
	c.consume(token.RPAREN, "Expect ')' after parameters.")
	c.consume(token.LBRACE, "Expect '{' before function body.")
	c.block()
	c.emitClosure()
	c.endStatement("Expect newline after 'fn' declaration.")
}

func (c *Compiler) returnStatement() {
	fs := c.fn
	if fs.kind == kindMain {
		c.error("Can't return from top-level code.")
	}
	if c.matchLine() || c.match(token.SEMICOLON) {
		if fs.kind == kindInit {
			c.emitOpByte(op.GetLocal, 0)
		} else {
			c.emitOp(op.None)
		}
		c.emitOp(op.Return)
		return
	}
	if fs.kind == kindInit {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.endStatement("Expect newline after 'return'.")
	c.emitOp(op.Return)
}

func (c *Compiler) ifStatement() {
	c.expression()
	c.skipLines()
	thenJump := c.emitJump(op.JumpIfFalse)
	c.emitOp(op.Pop)
	c.consume(token.LBRACE, "Expect '{' after 'if'.")
	c.scopedBlock()

	elseJump := c.emitJump(op.Jump)
	c.patchJump(thenJump)
	c.emitOp(op.Pop)

	ended := c.matchLine()
	switch {
	case c.match(token.ELSE):
		c.skipLines()
		if c.match(token.IF) {
			c.ifStatement()
		} else {
			c.consume(token.LBRACE, "Expect '{' after 'else'.")
			c.scopedBlock()
			c.endStatement("Expect newline after 'else' block.")
		}
	case !ended:
		c.endStatement("Expect newline after 'if' block.")
	}
	c.patchJump(elseJump)
}

func (c *Compiler) pushLoop(start int) *loopState {
	fs := c.fn
	fs.loop = &loopState{
		enclosing:  fs.loop,
		start:      start,
		scopeDepth: fs.scopeDepth,
	}
	return fs.loop
}

func (c *Compiler) popLoop() {
	fs := c.fn
	for _, offset := range fs.loop.breaks {
		c.patchJump(offset)
	}
	fs.loop = fs.loop.enclosing
}

func (c *Compiler) whileStatement() {
	start := c.chunk().Len()
	c.expression()
	c.skipLines()
	exitJump := c.emitJump(op.JumpIfFalse)
	c.emitOp(op.Pop)

	c.pushLoop(start)
	c.consume(token.LBRACE, "Expect '{' after 'while'.")
	c.scopedBlock()
	c.endStatement("Expect newline after 'while' block.")
	c.emitLoop(start)

	c.patchJump(exitJump)
	c.emitOp(op.Pop)
	c.popLoop()
}

// forStatement compiles for let x in e { body } as an indexed walk over the
// iterable using three hidden locals. The loop variable is a fresh slot on
// every iteration, so closures capture the element of their own iteration.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LET, "Expect 'let' after 'for'.")
	c.consume(token.NAME, "Expect identifier after 'for'.")
	name := c.previous.Literal
	c.consume(token.IN, "Expect 'in' after 'for let'.")

	c.expression()
	iter := c.addHidden("iter")
	c.emitConstant(object.Number(0))
	index := c.addHidden("index")
	c.emitOpByte(op.GetLocal, iter)
	c.emitOp(op.Size)
	size := c.addHidden("size")

	start := c.chunk().Len()
	c.emitOpByte(op.GetLocal, index)
	c.emitOpByte(op.GetLocal, size)
	c.emitOp(op.Less)
	exitJump := c.emitJump(op.JumpIfFalse)
	c.emitOp(op.Pop)
	bodyJump := c.emitJump(op.Jump)

	increment := c.chunk().Len()
	c.emitOpByte(op.GetLocal, index)
	c.emitConstant(object.Number(1))
	c.emitOp(op.Add)
	c.emitOpByte(op.SetLocal, index)
	c.emitOp(op.Pop)
	c.emitLoop(start)
	c.patchJump(bodyJump)

	c.pushLoop(increment)
	c.beginScope()
	c.emitOpByte(op.GetLocal, iter)
	c.emitOpByte(op.GetLocal, index)
	c.emitOp(op.GetIndex)
	c.addLocal(name)
	c.markInitialized()
	c.skipLines()
	c.consume(token.LBRACE, "Expect '{' before 'for' body.")
	c.block()
	c.endScope()
	c.endStatement("Expect newline after 'for' block.")
	c.emitLoop(increment)

	c.patchJump(exitJump)
	c.emitOp(op.Pop)
	c.popLoop()
	c.endScope()
}

func (c *Compiler) breakStatement() {
	fs := c.fn
	if fs.loop == nil {
		c.error("Can't use 'break' outside of a loop.")
		return
	}
	c.discardLocals(fs.loop.scopeDepth)
	fs.loop.breaks = append(fs.loop.breaks, c.emitJump(op.Jump))
	c.endStatement("Expect newline after 'break'.")
}

func (c *Compiler) skipStatement() {
	fs := c.fn
	if fs.loop == nil {
		c.error("Can't use 'skip' outside of a loop.")
		return
	}
	c.discardLocals(fs.loop.scopeDepth)
	c.emitLoop(fs.loop.start)
	c.endStatement("Expect newline after 'skip'.")
}

// matchStatement compiles a literal match. The subject is held in a hidden
// local and compared to each case in order; exactly one wildcard case is
// required and it must come last.
func (c *Compiler) matchStatement() {
	c.beginScope()
	c.expression()
	subject := c.addHidden("match")
	c.skipLines()
	c.consume(token.LBRACE, "Expect '{' after 'match'.")

	var ends []int
	hasWildcard := false
	for {
		c.skipLines()
		if c.check(token.RBRACE) || c.check(token.EOF) {
			break
		}
		if hasWildcard {
			if c.check(token.WILDCARD) {
				c.errorAtCurrent("Can't have more than one wildcard for 'match' statement.")
			} else {
				c.errorAtCurrent("Unreachable case after wildcard.")
			}
		}
		wildcard := false
		switch {
		case c.match(token.WILDCARD):
			wildcard = true
		case c.match(token.STRING):
			c.emitOpByte(op.GetLocal, subject)
			c.str(false)
		case c.match(token.NUMBER):
			c.emitOpByte(op.GetLocal, subject)
			c.number(false)
		case c.match(token.NONE), c.match(token.TRUE), c.match(token.FALSE):
			c.emitOpByte(op.GetLocal, subject)
			c.literal(false)
		default:
			c.errorAtCurrent("Expected literal.")
			c.advance()
			continue
		}
		c.consume(token.RARROW, "Expect '->' after literal.")
		c.skipLines()
		c.consume(token.LBRACE, "Expect '{' after '->'.")

		if wildcard {
			hasWildcard = true
			c.scopedBlock()
			c.endStatement("Expect newline after block.")
			continue
		}
		c.emitOp(op.Equal)
		next := c.emitJump(op.JumpIfFalse)
		c.emitOp(op.Pop)
		c.scopedBlock()
		c.endStatement("Expect newline after block.")
		ends = append(ends, c.emitJump(op.Jump))
		c.patchJump(next)
		c.emitOp(op.Pop)
	}
	for _, offset := range ends {
		c.patchJump(offset)
	}
	c.consume(token.RBRACE, "Expect '}' after 'match' block.")
	if !hasWildcard {
		c.error("Non exhaustive 'match' statement.")
	}
	c.endScope()
	c.endStatement("Expect newline after 'match' statement.")
}

// importStatement compiles import a.b [-> alias] and import a._.
func (c *Compiler) importStatement() {
	c.consume(token.NAME, "Expect identifier after 'import'.")
	parts := []string{c.previous.Literal}
	wildcard := false
	for c.match(token.PERIOD) {
		if c.match(token.WILDCARD) {
			wildcard = true
			break
		}
		c.consume(token.NAME, "Expect identifier after '.'.")
		parts = append(parts, c.previous.Literal)
	}
	full := strings.Join(parts, ".")

	if wildcard {
		if c.fn.kind != kindMain || c.fn.scopeDepth > 0 {
			c.error("Can use wildcard import only in top-level code.")
		}
		c.emitIndexed(op.ImportWildcard, c.identifierConstant(full))
		c.endStatement("Expect newline after 'import' statement.")
		return
	}

	bind := parts[len(parts)-1]
	if c.match(token.RARROW) {
		c.consume(token.NAME, "Expect identifier after '->'.")
		bind = c.previous.Literal
	}
	fullConst := c.identifierConstant(full)
	bindConst := c.identifierConstant(bind)
	if fullConst > 0xff || bindConst > 0xff {
		c.emitOp(op.ImportExt)
		c.emitShort(fullConst)
		c.emitShort(bindConst)
	} else {
		c.emitOp(op.Import)
		c.emitByte(byte(fullConst))
		c.emitByte(byte(bindConst))
	}
	c.endStatement("Expect newline after 'import' statement.")

	if c.fn.scopeDepth == 0 {
		c.emitIndexed(op.DefGlobal, bindConst)
		return
	}
	c.declareVariable(bind)
	c.markInitialized()
}

// classDeclaration compiles a class body. Nested classes become members of
// the enclosing class instead of variables. It returns the constant index
// of the class name.
func (c *Compiler) classDeclaration(nested bool) int {
	c.consume(token.NAME, "Expect class name.")
	name := c.previous.Literal
	nameConst := c.identifierConstant(name)
	if !nested {
		c.declareVariable(name)
	}
	c.emitIndexed(op.Class, nameConst)
	slot := -1
	if nested {
		c.beginScope()
		slot = c.addHidden("class")
	} else {
		c.defineVariable(nameConst)
	}
	loadClass := func() {
		if slot >= 0 {
			c.emitOpByte(op.GetLocal, slot)
		} else {
			c.namedVariable(name, false)
		}
	}

	c.class = &classState{enclosing: c.class, name: name}
	if c.match(token.LARROW) {
		c.skipLines()
		c.consume(token.NAME, "Expect superclass name.")
		super := c.previous.Literal
		if super == name {
			c.error("A class can't inherit from itself.")
		}
		for outer := c.class.enclosing; outer != nil; outer = outer.enclosing {
			if outer.name == super {
				c.error("A class can't inherit from enclosing class.")
				break
			}
		}
		c.namedVariable(super, false)
		for c.match(token.PERIOD) {
			c.consume(token.NAME, "Expect identifier after '.'.")
			c.emitIndexed(op.GetMember, c.identifierConstant(c.previous.Literal))
		}
		c.beginScope()
		c.addLocal("super")
		c.markInitialized()
		loadClass()
		c.emitOp(op.Inherit)
		c.class.hasSuper = true
	}

	loadClass()
	c.beginScope()
	c.addHidden("body")
	c.skipLines()
	c.consume(token.LBRACE, "Expect '{' before class body.")
	for {
		c.skipLines()
		if c.check(token.RBRACE) || c.check(token.EOF) {
			break
		}
		c.classMember()
		if c.panicMode {
			c.synchronize()
		}
	}
	c.consume(token.RBRACE, "Expect '}' after class body.")
	c.endScope()
	if c.class.hasSuper {
		c.endScope()
	}
	c.class = c.class.enclosing

	if nested {
		// The class value stays on the stack for CLASS_FIELD to consume.
		fs := c.fn
		fs.scopeDepth--
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
	c.endStatement("Expect newline after 'class' declaration.")
	return nameConst
}

func (c *Compiler) classMember() {
	switch {
	case c.match(token.FN):
		c.consumeMemberName("Expect method name.")
		name := c.previous.Literal
		nameConst := c.identifierConstant(name)
		kind := kindMethod
		if name == object.InitName {
			kind = kindInit
		}
		c.function(kind, name)
		c.emitIndexed(op.ClassField, nameConst)
	case c.match(token.LET):
		if c.match(token.WILDCARD) {
			c.consume(token.ASSIGN, "Expect '=' after '_'.")
			c.skipLines()
			c.expression()
			c.endStatement("Expect newline after 'let' declaration.")
			c.emitOp(op.Pop)
			return
		}
		c.consume(token.NAME, "Expect field name.")
		nameConst := c.identifierConstant(c.previous.Literal)
		if c.match(token.ASSIGN) {
			c.skipLines()
			c.expression()
		} else {
			c.emitOp(op.None)
		}
		c.endStatement("Expect newline after 'let' declaration.")
		c.emitIndexed(op.ClassField, nameConst)
	case c.match(token.CLASS):
		nameConst := c.classDeclaration(true)
		c.emitIndexed(op.ClassField, nameConst)
	default:
		c.errorAtCurrent("Expect method declaration.")
		c.advance()
	}
}
