// Package compiler turns jml source code into bytecode in a single pass.
//
// There is no syntax tree. A Pratt parser reads tokens from the lexer and
// emits instructions directly into the chunk of the function being
// compiled. Each function under construction has its own state holding its
// locals, its upvalues and the scope depth; nested functions push a new
// state that links back to the enclosing one so names can be resolved
// across function boundaries.
//
// # Name Resolution
//
// An identifier is looked up in the locals of the current function, from
// the innermost scope outwards, then in the locals of each enclosing
// function, which turns it into an upvalue, and finally falls back to a
// global lookup performed by the virtual machine at runtime.
//
// # Garbage Collection
//
// Functions are allocated on the heap before compilation finishes. The
// compiler registers itself as a root for the duration of Compile so that a
// collection triggered by interning an identifier never frees a function
// still under construction.
package compiler

import (
	"github.com/jmllang/jml/errz"
	"github.com/jmllang/jml/internal/lexer"
	"github.com/jmllang/jml/internal/token"
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
)

const (
	// MaxArgs is the maximum number of arguments or parameters of a call.
	MaxArgs = 255

	// MaxLocals is the maximum number of local slots of one function.
	MaxLocals = 256

	// MaxUpvalues is the maximum number of variables a closure captures.
	MaxUpvalues = 256

	// MaxConstants is the maximum size of a constant pool.
	MaxConstants = 65536

	// MainName is the name given to the function wrapping top-level code.
	MainName = "__main"
)

type funcKind int

const (
	kindMain funcKind = iota
	kindFn
	kindLambda
	kindMethod
	kindInit
)

type local struct {
	name     string
	depth    int // -1 while the initializer is being compiled
	captured bool
}

type upvalue struct {
	index   int
	isLocal bool
}

type loopState struct {
	enclosing  *loopState
	start      int
	scopeDepth int
	breaks     []int
}

type classState struct {
	enclosing *classState
	name      string
	hasSuper  bool
}

// funcState holds everything needed while compiling one function body.
type funcState struct {
	enclosing  *funcState
	function   *object.Function
	kind       funcKind
	locals     []local
	upvalues   []upvalue
	scopeDepth int
	loop       *loopState
	// lastPop is the offset of the POP ending the most recent expression
	// statement in the outermost scope of the body, or -1.
	lastPop int
}

// Option configures a compilation.
type Option func(*Compiler)

// WithModule compiles the source as the body of a module. Globals defined
// by the code live in the module namespace.
func WithModule(m *object.Module) Option {
	return func(c *Compiler) {
		c.module = m
	}
}

// WithEvalMode makes top-level expression statements save their value so
// the virtual machine can return the last one.
func WithEvalMode() Option {
	return func(c *Compiler) {
		c.evalMode = true
	}
}

// WithFilename sets the file name reported with compile errors.
func WithFilename(name string) Option {
	return func(c *Compiler) {
		c.filename = name
	}
}

// Compiler compiles one source text. It is not reusable.
type Compiler struct {
	heap     *object.Heap
	lexer    *lexer.Lexer
	previous token.Token
	current  token.Token

	panicMode bool
	errs      *errz.CompileError

	module   *object.Module
	evalMode bool
	filename string

	fn    *funcState
	class *classState

	prefixParseFns map[token.Type]parseFn
	infixParseFns  map[token.Type]parseFn
}

// Compile compiles source into the function that runs its top-level code.
// When the source has errors no function is returned and the error is an
// *errz.CompileError listing every diagnostic.
func Compile(heap *object.Heap, source string, opts ...Option) (*object.Function, error) {
	c := &Compiler{
		heap:  heap,
		lexer: lexer.New(source),
		errs:  &errz.CompileError{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.errs.Filename = c.filename
	c.registerRules()

	heap.AddRoots(c)
	defer heap.RemoveRoots(c)

	c.beginFunction(kindMain, MainName)
	c.advance()
	for {
		c.skipLines()
		if c.match(token.EOF) {
			break
		}
		if c.match(token.RBRACE) {
			c.error("Unexpected '}'.")
			c.synchronize()
			continue
		}
		c.declaration()
	}
	fn, _ := c.endFunction()
	if err := c.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return fn, nil
}

// MarkRoots marks every function under construction.
func (c *Compiler) MarkRoots(h *object.Heap) {
	for fs := c.fn; fs != nil; fs = fs.enclosing {
		h.Mark(fs.function)
	}
	if c.module != nil {
		h.Mark(c.module)
	}
}

func (c *Compiler) beginFunction(kind funcKind, name string) {
	fs := &funcState{
		enclosing: c.fn,
		function:  c.heap.NewFunction(),
		kind:      kind,
		lastPop:   -1,
	}
	fs.function.Module = c.module
	c.fn = fs
	if kind != kindLambda {
		fs.function.Name = c.heap.Intern(name)
	}
	if (kind == kindMethod || kind == kindInit) && c.class != nil {
		fs.function.ClassName = c.heap.Intern(c.class.name)
	}
	slot := local{depth: 0}
	if kind == kindMethod || kind == kindInit {
		slot.name = "self"
	}
	fs.locals = append(fs.locals, slot)
}

func (c *Compiler) endFunction() (*object.Function, []upvalue) {
	c.emitReturn()
	c.emitOp(op.End)
	fs := c.fn
	c.fn = fs.enclosing
	return fs.function, fs.upvalues
}

// Error reporting

func (c *Compiler) error(message string) {
	c.errorAt(c.previous, message)
}

func (c *Compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	d := &errz.Diagnostic{Line: tok.Line, Message: message}
	switch tok.Type {
	case token.EOF:
		d.Where = errz.AtEnd
	case token.ILLEGAL:
	case token.NEWLINE:
		if tok.Literal == "" {
			d.Where = errz.AtEnd
		} else {
			d.Where = " at newline"
		}
	default:
		d.Where = errz.AtToken(tok.Literal)
	}
	c.errs.Add(d)
}

// synchronize skips tokens until a likely statement boundary.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != token.EOF {
		if c.current.Type == token.RBRACE {
			return
		}
		if c.previous.Type == token.NEWLINE || c.previous.Type == token.SEMICOLON {
			c.skipLines()
			return
		}
		switch c.current.Type {
		case token.FOR, token.WHILE, token.BREAK, token.SKIP, token.MATCH,
			token.IF, token.CLASS, token.LET, token.FN, token.RETURN, token.IMPORT:
			return
		}
		c.advance()
	}
}

// Token handling

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lexer.Next()
		if c.current.Type != token.ILLEGAL {
			return
		}
		c.errorAtCurrent(c.current.Message())
	}
}

func (c *Compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, message string) {
	if c.check(t) {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// consumeMemberName accepts a name after '.' or 'fn' in a class body.
// Keywords are allowed there since the position is unambiguous.
func (c *Compiler) consumeMemberName(message string) {
	if c.check(token.NAME) || token.IsKeyword(c.current.Type) {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) skipLines() {
	for c.match(token.NEWLINE) {
	}
}

// matchLine consumes line breaks, reporting whether the statement ended
// there or at a closing brace.
func (c *Compiler) matchLine() bool {
	if !c.match(token.NEWLINE) && !c.check(token.RBRACE) {
		return false
	}
	c.skipLines()
	return true
}

// endStatement requires a statement terminator: a line break, a semicolon
// or the closing brace of the enclosing block.
func (c *Compiler) endStatement(message string) {
	if !c.check(token.RBRACE) && !c.match(token.SEMICOLON) {
		c.consume(token.NEWLINE, message)
	}
	c.skipLines()
}
