package compiler

import (
	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/lexer"
)

func (c *Compiler) beginScope() { c.ctx.depth++ }

// endScope closes the innermost scope, popping every local declared in it
// off both the compile-time locals list and, with one OP_POP per local,
// the runtime stack.
func (c *Compiler) endScope() {
	c.ctx.depth--
	locals := c.ctx.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.ctx.depth {
		c.emitOp(bytecode.OpPop)
		locals = locals[:len(locals)-1]
	}
	c.ctx.locals = locals
}

func identifiersEqual(a, b lexer.Token) bool { return a.Lexeme == b.Lexeme }

// addLocal reserves a new local slot for name at the current scope depth,
// marked uninitialized (depth -1) until its initializer, if any, finishes
// compiling.
func (c *Compiler) addLocal(name lexer.Token) {
	if len(c.ctx.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.ctx.locals = append(c.ctx.locals, local{name: name, depth: -1})
}

// declareVariable registers previous (the identifier just consumed) as a
// local if we're inside a scope; at global scope, declaration does nothing
// here — globals are identified by name at the use site instead of by
// slot, so there is nothing to reserve ahead of time.
func (c *Compiler) declareVariable() {
	if c.ctx.depth == 0 {
		return
	}
	name := c.previous
	locals := c.ctx.locals
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.depth != -1 && l.depth < c.ctx.depth {
			break
		}
		if identifiersEqual(name, l.name) {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

// parseVariable consumes an identifier, declares it if local, and returns
// the constant-pool index to use for a global definition (0 and ignored
// for a local, since locals are addressed by slot, not by name constant).
func (c *Compiler) parseVariable(errMsg string) byte {
	c.consume(lexer.TokenIdentifier, errMsg)
	c.declareVariable()
	if c.ctx.depth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

// markInitialized flips the most recently added local from "declared" to
// "ready to be referenced" once its initializer has finished compiling.
// Skipped at global scope — kindScript's top-level `var`s have no
// corresponding local slot to mark.
func (c *Compiler) markInitialized() {
	if c.ctx.depth == 0 {
		return
	}
	c.ctx.locals[len(c.ctx.locals)-1].depth = c.ctx.depth
}

// defineVariable finishes a `var` declaration: for a local, the value is
// already sitting in its reserved stack slot, so only markInitialized is
// needed; for a global, OP_DEFINE_GLOBAL binds the name constant to
// whatever value is on top of the stack.
func (c *Compiler) defineVariable(global byte) {
	if c.ctx.depth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(bytecode.OpDefineGlobal, global)
}

// resolveLocal searches ctx's locals, innermost-declared first, for name.
// It returns the slot index, or -1 if no local matches (the caller then
// falls back to treating it as a global). Referencing a local from within
// its own still-running initializer (depth == -1) is a compile error.
func resolveLocal(ctx *context, name lexer.Token) int {
	for i := len(ctx.locals) - 1; i >= 0; i-- {
		l := ctx.locals[i]
		if identifiersEqual(name, l.name) {
			return i
		}
	}
	return -1
}
