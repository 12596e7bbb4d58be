package compiler

import (
	"github.com/emberlang/ember/pkg/lexer"
	"github.com/emberlang/ember/pkg/value"
)

// maxLocals mirrors the 1-byte GET_LOCAL/SET_LOCAL operand: a function body
// cannot have more than 256 locals (including slot 0) in scope at once.
const maxLocals = 256

// functionKind distinguishes the implicit top-level script from a `fun`
// declaration's body. Only kindFunction may contain a `return`;
// returnStatement checks ctx.kind against kindScript and reports a compile
// error for a top-level `return`, same as clox.
type functionKind int

const (
	kindScript functionKind = iota
	kindFunction
)

// local tracks one declared local variable's name and the scope depth it
// was declared at. depth == -1 means "declared but not yet initialized" —
// the window between `var x = ` starting and its initializer finishing,
// during which `x` cannot refer to itself.
type local struct {
	name  lexer.Token
	depth int
}

// context holds the compiler state specific to one function body: its
// locals stack, current scope depth, and the ObjFunction being assembled.
// enclosing links to the context for the lexically surrounding function,
// so resolveLocal and the like can be generalized later to walk outward
// (upvalues are not part of this language, so today only the innermost
// context's locals are ever searched).
type context struct {
	enclosing *context
	function  *value.ObjFunction
	kind      functionKind

	locals []local
	depth  int
}

// newContext starts a fresh function context. Slot 0 of every function's
// locals is reserved the way clox reserves it for a bound method receiver;
// Ember has no methods, so it is simply an unnamed, always-initialized
// placeholder that keeps slot numbering identical to the reference model.
func newContext(enclosing *context, kind functionKind, name *value.ObjString) *context {
	ctx := &context{
		enclosing: enclosing,
		kind:      kind,
		function:  &value.ObjFunction{Name: name, Chunk: &value.Chunk{}},
	}
	ctx.locals = append(ctx.locals, local{depth: 0})
	return ctx
}
