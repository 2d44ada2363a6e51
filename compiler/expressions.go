package compiler

import (
	"github.com/jmllang/jml/internal/token"
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
)

// assignOps maps compound assignment tokens to the operator they apply.
var assignOps = map[token.Type]op.Code{
	token.CONCAT_EQUALS:   op.Concat,
	token.PLUS_EQUALS:     op.Add,
	token.MINUS_EQUALS:    op.Subtract,
	token.ASTERISK_EQUALS: op.Multiply,
	token.POW_EQUALS:      op.Power,
	token.SLASH_EQUALS:    op.Divide,
	token.MOD_EQUALS:      op.Modulo,
}

var binaryOps = map[token.Type][]op.Code{
	token.PLUS:      {op.Add},
	token.MINUS:     {op.Subtract},
	token.ASTERISK:  {op.Multiply},
	token.SLASH:     {op.Divide},
	token.MOD:       {op.Modulo},
	token.POW:       {op.Power},
	token.CONCAT:    {op.Concat},
	token.EQ:        {op.Equal},
	token.NOT_EQ:    {op.NotEqual},
	token.GT:        {op.Greater},
	token.GT_EQUALS: {op.GreaterEqual},
	token.LT:        {op.Less},
	token.LT_EQUALS: {op.LessEqual},
	token.IN:        {op.Contain},
}

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefix, ok := c.prefixParseFns[c.previous.Type]
	if !ok {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefix(canAssign)

	for prec <= precedenceOf(c.current.Type) {
		c.advance()
		c.infixParseFns[c.previous.Type](canAssign)
	}

	if canAssign && c.matchAssign() != nil {
		c.error("Invalid assignment target.")
	}
}

// matchAssign consumes an assignment operator. It returns nil when there is
// none, an empty slice for plain '=' and the operator for compound forms.
func (c *Compiler) matchAssign() []op.Code {
	if c.match(token.ASSIGN) {
		return []op.Code{}
	}
	if code, ok := assignOps[c.current.Type]; ok {
		c.advance()
		return []op.Code{code}
	}
	return nil
}

func (c *Compiler) binary(canAssign bool) {
	operator := c.previous.Type
	c.skipLines()
	c.parsePrecedence(precedenceOf(operator) + 1)
	c.emitOp(binaryOps[operator]...)
}

func (c *Compiler) unary(canAssign bool) {
	operator := c.previous.Type
	c.parsePrecedence(precUnary)
	if operator == token.MINUS {
		c.emitOp(op.Negate)
	} else {
		c.emitOp(op.Not)
	}
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(op.JumpIfFalse)
	c.emitOp(op.Pop)
	c.skipLines()
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
	c.emitOp(op.Bool)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(op.JumpIfFalse)
	endJump := c.emitJump(op.Jump)
	c.patchJump(elseJump)
	c.emitOp(op.Pop)
	c.skipLines()
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
	c.emitOp(op.Bool)
}

func (c *Compiler) grouping(canAssign bool) {
	c.skipLines()
	c.expression()
	c.skipLines()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case token.TRUE:
		c.emitOp(op.True)
	case token.FALSE:
		c.emitOp(op.False)
	case token.NONE:
		c.emitOp(op.None)
	}
}

func (c *Compiler) number(canAssign bool) {
	n, err := parseNumber(c.previous.Literal)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(object.Number(n))
}

func (c *Compiler) str(canAssign bool) {
	s, ok := unquote(c.previous.Literal)
	if !ok {
		c.error("Invalid string escape sequence.")
		return
	}
	c.emitConstant(c.heap.NewString(s))
}

func (c *Compiler) array(canAssign bool) {
	count := 0
	c.skipLines()
	for !c.check(token.RBRACKET) && !c.check(token.EOF) {
		c.expression()
		c.skipLines()
		if count == 0xffff {
			c.error("Too many elements in array literal.")
		}
		count++
		if !c.match(token.COMMA) {
			break
		}
		c.skipLines()
	}
	c.skipLines()
	c.consume(token.RBRACKET, "Expect ']' after array.")
	c.emitIndexed(op.Array, count)
}

func (c *Compiler) mapLiteral(canAssign bool) {
	count := 0
	c.skipLines()
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.consume(token.STRING, "Expect string key in map.")
		c.str(false)
		c.skipLines()
		c.consume(token.COLON, "Expect colon in map.")
		c.skipLines()
		c.expression()
		c.skipLines()
		if count >= 0xfffe {
			c.error("Too many entries in map literal.")
		}
		count += 2
		if !c.match(token.COMMA) {
			break
		}
		c.skipLines()
	}
	c.skipLines()
	c.consume(token.RBRACE, "Expect '}' after map.")
	c.emitIndexed(op.Map, count)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous.Literal, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var get, set op.Code
	arg := c.resolveLocal(c.fn, name)
	switch {
	case arg != -1:
		get, set = op.GetLocal, op.SetLocal
	default:
		if arg = c.resolveUpvalue(c.fn, name); arg != -1 {
			get, set = op.GetUpvalue, op.SetUpvalue
		} else {
			arg = c.identifierConstant(name)
			get, set = op.GetGlobal, op.SetGlobal
		}
	}
	emit := func(code op.Code) {
		if code == op.GetGlobal || code == op.SetGlobal {
			c.emitIndexed(code, arg)
		} else {
			c.emitOpByte(code, arg)
		}
	}

	if !canAssign {
		emit(get)
		return
	}
	assign := c.matchAssign()
	if assign == nil {
		emit(get)
		return
	}
	if len(assign) > 0 {
		emit(get)
	}
	c.skipLines()
	c.expression()
	c.emitOp(assign...)
	emit(set)
}

func (c *Compiler) argumentList() int {
	count := 0
	c.skipLines()
	if !c.check(token.RPAREN) {
		for {
			c.skipLines()
			c.expression()
			c.skipLines()
			if count == MaxArgs {
				c.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return count
}

func (c *Compiler) call(canAssign bool) {
	c.emitOpByte(op.Call, c.argumentList())
}

func (c *Compiler) index(canAssign bool) {
	c.skipLines()
	c.expression()
	c.skipLines()
	c.consume(token.RBRACKET, "Expect ']' after indexing.")

	var assign []op.Code
	if canAssign {
		assign = c.matchAssign()
	}
	switch {
	case assign == nil:
		c.emitOp(op.GetIndex)
	case len(assign) == 0:
		c.skipLines()
		c.expression()
		c.emitOp(op.SetIndex)
	default:
		c.emitOp(op.DupTwo, op.GetIndex)
		c.skipLines()
		c.expression()
		c.emitOp(assign[0], op.SetIndex)
	}
}

func (c *Compiler) dot(canAssign bool) {
	c.skipLines()
	c.consumeMemberName("Expect identifier after '.'.")
	name := c.identifierConstant(c.previous.Literal)

	var assign []op.Code
	if canAssign {
		assign = c.matchAssign()
	}
	switch {
	case assign != nil && len(assign) == 0:
		c.skipLines()
		c.expression()
		c.emitIndexed(op.SetMember, name)
	case assign != nil:
		c.emitOp(op.Dup)
		c.emitIndexed(op.GetMember, name)
		c.skipLines()
		c.expression()
		c.emitOp(assign[0])
		c.emitIndexed(op.SetMember, name)
	case c.match(token.LPAREN):
		argc := c.argumentList()
		c.emitIndexed(op.Invoke, name)
		c.emitByte(byte(argc))
	default:
		c.emitIndexed(op.GetMember, name)
	}
}

// pipe compiles x |> f(args) as f(x, args). The callee is evaluated after
// the piped value and rotated below it.
func (c *Compiler) pipe(canAssign bool) {
	c.skipLines()
	c.parsePrecedence(precCall + 1)
	c.emitOp(op.Rot)
	argc := 0
	if c.match(token.LPAREN) {
		argc = c.argumentList()
	}
	if argc == MaxArgs {
		c.error("Can't have more than 255 arguments.")
	}
	c.emitOpByte(op.Call, argc+1)
}

func (c *Compiler) self(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'self' outside of a class.")
		return
	}
	c.namedVariable("self", false)
}

func (c *Compiler) super(canAssign bool) {
	switch {
	case c.class == nil:
		c.error("Can't use 'super' outside of a class.")
	case !c.class.hasSuper:
		c.error("Can't use 'super' in a class without superclass.")
	}
	c.consume(token.PERIOD, "Expect '.' after 'super'.")
	c.consumeMemberName("Expect superclass method name.")
	name := c.identifierConstant(c.previous.Literal)

	c.namedVariable("self", false)
	if c.match(token.LPAREN) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitIndexed(op.SuperInvoke, name)
		c.emitByte(byte(argc))
		return
	}
	c.namedVariable("super", false)
	c.emitIndexed(op.Super, name)
}

func (c *Compiler) wildcard(canAssign bool) {
	c.error("Can't read value of wildcard.")
}

// lambda compiles |a, b| { body } into a closure.
func (c *Compiler) lambda(canAssign bool) {
	c.beginFunction(kindLambda, "")
	c.beginScope()
	if !c.check(token.VBAR) {
		c.parameters()
	}
	c.consume(token.VBAR, "Expect '|' after parameters.")
	c.consume(token.LBRACE, "Expect '{' before lambda body.")
	c.block()
	c.emitClosure()
}

// parameters declares the comma separated parameter list of the function
// being compiled.
func (c *Compiler) parameters() {
	for {
		c.skipLines()
		c.fn.function.Arity++
		if c.fn.function.Arity > MaxArgs {
			c.errorAtCurrent("Can't have more than 255 parameters.")
		}
		if c.match(token.WILDCARD) {
			c.addLocal("_")
			c.markInitialized()
		} else {
			global := c.parseVariable("Expect parameter name.")
			c.defineVariable(global)
		}
		c.skipLines()
		if !c.match(token.COMMA) {
			return
		}
	}
}

// emitClosure finishes the current function and emits the instruction that
// wraps it in a closure in the enclosing function.
func (c *Compiler) emitClosure() {
	fn, upvalues := c.endFunction()
	c.emitIndexed(op.Closure, c.makeConstant(object.Obj(fn)))
	for _, uv := range upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(uv.index))
	}
}
