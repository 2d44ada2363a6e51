package compiler

import "github.com/jmllang/jml/internal/token"

type precedence int

// Precedence order for operators, lowest first.
const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >= in
	precTerm                  // + - ::
	precFactor                // * / %
	precExponent              // **
	precUnary                 // not -
	precCall                  // . () [] |>
	precPrimary
)

// Precedences of the tokens that continue an expression.
var precedences = map[token.Type]precedence{
	token.OR:        precOr,
	token.AND:       precAnd,
	token.EQ:        precEquality,
	token.NOT_EQ:    precEquality,
	token.GT:        precComparison,
	token.GT_EQUALS: precComparison,
	token.LT:        precComparison,
	token.LT_EQUALS: precComparison,
	token.IN:        precComparison,
	token.PLUS:      precTerm,
	token.MINUS:     precTerm,
	token.CONCAT:    precTerm,
	token.ASTERISK:  precFactor,
	token.SLASH:     precFactor,
	token.MOD:       precFactor,
	token.POW:       precExponent,
	token.LPAREN:    precCall,
	token.LBRACKET:  precCall,
	token.PERIOD:    precCall,
	token.PIPE:      precCall,
}

func precedenceOf(t token.Type) precedence {
	if p, ok := precedences[t]; ok {
		return p
	}
	return precNone
}

type parseFn func(canAssign bool)

func (c *Compiler) registerRules() {
	c.prefixParseFns = map[token.Type]parseFn{
		token.LPAREN:   c.grouping,
		token.LBRACKET: c.array,
		token.LBRACE:   c.mapLiteral,
		token.VBAR:     c.lambda,
		token.MINUS:    c.unary,
		token.NOT:      c.unary,
		token.TRUE:     c.literal,
		token.FALSE:    c.literal,
		token.NONE:     c.literal,
		token.NAME:     c.variable,
		token.NUMBER:   c.number,
		token.STRING:   c.str,
		token.SELF:     c.self,
		token.SUPER:    c.super,
		token.WILDCARD: c.wildcard,
	}
	c.infixParseFns = map[token.Type]parseFn{
		token.LPAREN:   c.call,
		token.LBRACKET: c.index,
		token.PERIOD:   c.dot,
		token.PIPE:     c.pipe,
		token.AND:      c.and,
		token.OR:       c.or,
	}
	for t := range precedences {
		if _, ok := c.infixParseFns[t]; !ok {
			c.infixParseFns[t] = c.binary
		}
	}
}
