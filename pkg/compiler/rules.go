package compiler

import "github.com/emberlang/ember/pkg/lexer"

// precedence orders binding power low-to-high; parsePrecedence consumes
// everything that binds at least as tightly as the level it's given.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // ()
	precPrimary
)

// parseFn is either a prefix parser (reads its own leading token, already
// consumed into c.previous) or an infix parser (the left operand has
// already been compiled and left its value on the stack; c.previous is
// the operator token). canAssign tells a variable/identifier parser
// whether a trailing `=` should be treated as assignment, which only
// makes sense at precAssignment or looser — `a + b = c` must not compile
// `b = c` as an assignment.
type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		lexer.TokenRightParen:   {},
		lexer.TokenLeftBrace:    {},
		lexer.TokenRightBrace:   {},
		lexer.TokenComma:        {},
		lexer.TokenDot:          {},
		lexer.TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenPlus:         {infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenSemicolon:    {},
		lexer.TokenSlash:        {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenStar:         {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenBang:         {prefix: (*Compiler).unary},
		lexer.TokenBangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenEqual:        {},
		lexer.TokenEqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenGreater:      {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenGreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLess:         {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenIdentifier:   {prefix: (*Compiler).variable},
		lexer.TokenString:       {prefix: (*Compiler).stringLiteral},
		lexer.TokenNumber:       {prefix: (*Compiler).number},
		lexer.TokenAnd:          {infix: (*Compiler).and_, precedence: precAnd},
		lexer.TokenClass:        {},
		lexer.TokenElse:         {},
		lexer.TokenFalse:        {prefix: (*Compiler).literal},
		lexer.TokenFor:          {},
		lexer.TokenFun:          {},
		lexer.TokenIf:           {},
		lexer.TokenNil:          {prefix: (*Compiler).literal},
		lexer.TokenOr:           {infix: (*Compiler).or_, precedence: precOr},
		lexer.TokenPrint:        {},
		lexer.TokenReturn:       {},
		lexer.TokenSuper:        {},
		lexer.TokenThis:         {},
		lexer.TokenTrue:         {prefix: (*Compiler).literal},
		lexer.TokenVar:          {},
		lexer.TokenWhile:        {},
		lexer.TokenError:        {},
		lexer.TokenEOF:          {},
	}
}

func getRule(t lexer.TokenType) parseRule { return rules[t] }
