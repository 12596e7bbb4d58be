// Package compiler implements Ember's single-pass compiler: a Pratt
// (precedence-climbing) parser that both parses source and emits bytecode
// for it in the same pass, with no intermediate AST. The compiler's output
// format — opcode layout, constant-pool indexing, local-slot numbering,
// jump-patching — is inseparable from pkg/vm's decoding of it; the two
// packages are designed together.
//
// One context (see context.go) exists per function currently being
// compiled, linked to its enclosing context so a nested `fun` declaration
// can suspend the outer context and resume it once the nested body is
// done. Top-level source becomes the body of an implicit top-level script
// function, compiled in a context of kind kindScript.
package compiler

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/lexer"
	"github.com/emberlang/ember/pkg/value"
)

// maxParameters mirrors the 1-byte operand CALL/arity encoding: a function
// cannot declare more than 255 parameters.
const maxParameters = 255

// Compiler holds all state shared across the whole compile: the token
// source, the one-token lookahead window (current/previous), error
// accumulation/recovery, the shared string-intern pool, and the stack of
// function contexts (via ctx.enclosing).
type Compiler struct {
	lexer *lexer.Lexer
	strs  *value.Strings

	current  lexer.Token
	previous lexer.Token

	hadError  bool
	panicMode bool
	errs      *multierror.Error

	ctx *context
}

// New returns a Compiler that will compile source into a top-level script
// function. strs is the intern pool shared with the VM that will later run
// the result — string literals and identifier names compiled here and
// strings produced at runtime by that VM share one canonical handle per
// distinct content.
func New(source string, strs *value.Strings) *Compiler {
	c := &Compiler{lexer: lexer.New(source), strs: strs}
	c.ctx = newContext(nil, kindScript, nil)
	return c
}

// Compile runs the compiler to completion. On success it returns the
// top-level script function with no accumulated errors. On failure it
// returns a nil function and every compile error collected along the way
// (panic-mode recovery suppresses cascades, so one mistake does not
// produce a waterfall of spurious follow-on errors) — each entry of the
// returned error's Errors slice renders, via its Error() method, the stable
// "[line L], Error at '<lexeme>': <message>" text.
func (c *Compiler) Compile() (*value.ObjFunction, *multierror.Error) {
	c.advance()
	for !c.matchToken(lexer.TokenEOF) {
		c.declaration()
	}
	fn := c.endCompiler()
	if c.hadError {
		return nil, c.errs
	}
	return fn, nil
}

// --- token stream plumbing -------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lexer.NextToken()
		if c.current.Type != lexer.TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) consume(t lexer.TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) check(t lexer.TokenType) bool { return c.current.Type == t }

func (c *Compiler) matchToken(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

// --- error reporting --------------------------------------------------------

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.previous, message) }

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var where string
	switch tok.Type {
	case lexer.TokenEOF:
		where = " at end"
	case lexer.TokenError:
		// The message already came from the scanner; nothing to quote.
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	c.errs = multierror.Append(c.errs, fmt.Errorf("[line %d], Error%s: %s", tok.Line, where, message))
}

// synchronize discards tokens after a syntax error until it finds a
// plausible statement boundary: a just-consumed ';' or the start of a
// token that begins a new declaration/statement. This keeps one mistake
// from cascading into a wall of follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != lexer.TokenEOF {
		if c.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- bytecode emission -------------------------------------------------------

func (c *Compiler) chunk() *value.Chunk { return c.ctx.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op bytecode.Op) { c.emitByte(byte(op)) }

func (c *Compiler) emitOps(a, b bytecode.Op) {
	c.emitOp(a)
	c.emitOp(b)
}

func (c *Compiler) emitOpByte(op bytecode.Op, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

// emitJump emits op followed by a two-byte placeholder and returns the
// offset of that placeholder, to be filled in later by patchJump.
func (c *Compiler) emitJump(op bytecode.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

// patchJump overwrites the placeholder at offset with the distance from
// just past it to the current end of the chunk.
func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > bytecode.MaxJump {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits OP_LOOP with the backward distance to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(bytecode.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > bytecode.MaxJump {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

// emitReturn emits the implicit "return nil" safety net every function
// gets appended to its body, in case control falls off the end.
func (c *Compiler) emitReturn() {
	c.emitOp(bytecode.OpNil)
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > bytecode.MaxConstants-1 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(bytecode.OpConstant, c.makeConstant(v))
}

func (c *Compiler) identifierConstant(tok lexer.Token) byte {
	return c.makeConstant(value.Obj(c.strs.Intern([]byte(tok.Lexeme))))
}

// endCompiler finalizes the context currently being compiled, popping back
// to its enclosing context, and returns the assembled function.
func (c *Compiler) endCompiler() *value.ObjFunction {
	c.emitReturn()
	fn := c.ctx.function
	c.ctx = c.ctx.enclosing
	return fn
}
