package compiler

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/value"
)

func compileOK(t *testing.T, src string) *value.ObjFunction {
	t.Helper()
	fn, errs := New(src, value.NewStrings()).Compile()
	require.Nil(t, errs, "unexpected compile errors: %v", errs)
	require.NotNil(t, fn)
	return fn
}

func compileErr(t *testing.T, src string) []error {
	t.Helper()
	fn, errs := New(src, value.NewStrings()).Compile()
	require.Nil(t, fn)
	require.NotNil(t, errs)
	return errs.Errors
}

func ops(chunk *value.Chunk) []bytecode.Op {
	var out []bytecode.Op
	i := 0
	for i < len(chunk.Code) {
		op := bytecode.Op(chunk.Code[i])
		out = append(out, op)
		switch op {
		case bytecode.OpConstant, bytecode.OpGetLocal, bytecode.OpSetLocal,
			bytecode.OpGetGlobal, bytecode.OpDefineGlobal, bytecode.OpSetGlobal,
			bytecode.OpCall:
			i += 2
		case bytecode.OpJump, bytecode.OpJumpIfFalse, bytecode.OpLoop:
			i += 3
		default:
			i++
		}
	}
	return out
}

func TestArithmeticPrecedence(t *testing.T) {
	fn := compileOK(t, "1 + 2 * 3;")
	got := ops(fn.Chunk)
	want := []bytecode.Op{
		bytecode.OpConstant, bytecode.OpConstant, bytecode.OpConstant,
		bytecode.OpMultiply, bytecode.OpAdd, bytecode.OpPop,
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestGroupingOverridesPrecedence(t *testing.T) {
	fn := compileOK(t, "(1 + 2) * 3;")
	got := ops(fn.Chunk)
	want := []bytecode.Op{
		bytecode.OpConstant, bytecode.OpConstant, bytecode.OpAdd,
		bytecode.OpConstant, bytecode.OpMultiply, bytecode.OpPop,
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestGlobalVarRoundTrip(t *testing.T) {
	fn := compileOK(t, "var x = 1; print x;")
	got := ops(fn.Chunk)
	want := []bytecode.Op{
		bytecode.OpConstant, bytecode.OpDefineGlobal,
		bytecode.OpGetGlobal, bytecode.OpPrint,
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestLocalsUseSlotsNotGlobals(t *testing.T) {
	fn := compileOK(t, "{ var x = 1; print x; }")
	got := ops(fn.Chunk)
	want := []bytecode.Op{
		bytecode.OpConstant, bytecode.OpGetLocal, bytecode.OpPrint,
		bytecode.OpPop,
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestSelfReferenceInInitializerIsError(t *testing.T) {
	errs := compileErr(t, "{ var a = a; }")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Can't read local variable in its own initializer")
}

func TestShadowingInNestedScopeIsAllowed(t *testing.T) {
	compileOK(t, "{ var a = 1; { var a = 2; print a; } print a; }")
}

func TestRedeclaringInSameScopeIsError(t *testing.T) {
	errs := compileErr(t, "{ var a = 1; var a = 2; }")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Already a variable with this name in this scope")
}

func TestTooManyLocalsIsError(t *testing.T) {
	src := "{\n"
	for i := 0; i < maxLocals; i++ {
		src += "var a" + strconv.Itoa(i) + " = 0;\n"
	}
	src += "}"
	errs := compileErr(t, src)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Too many local variables") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTooManyConstantsIsError(t *testing.T) {
	var src strings.Builder
	for i := 0; i <= bytecode.MaxConstants; i++ {
		src.WriteString(strconv.Itoa(i))
		src.WriteString(";\n")
	}
	errs := compileErr(t, src.String())
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Too many constants in one chunk") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTooMuchCodeToJumpOverIsError(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 40000; i++ {
		body.WriteString("print true;\n")
	}
	errs := compileErr(t, "if (true) {\n"+body.String()+"}\n")
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Too much code to jump over") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoopBodyTooLargeIsError(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 40000; i++ {
		body.WriteString("print true;\n")
	}
	errs := compileErr(t, "while (true) {\n"+body.String()+"}\n")
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Loop body too large") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIfElseJumpsAreBalanced(t *testing.T) {
	fn := compileOK(t, "if (true) { print 1; } else { print 2; }")
	got := ops(fn.Chunk)
	want := []bytecode.Op{
		bytecode.OpTrue,
		bytecode.OpJumpIfFalse, bytecode.OpPop,
		bytecode.OpConstant, bytecode.OpPrint,
		bytecode.OpJump,
		bytecode.OpPop,
		bytecode.OpConstant, bytecode.OpPrint,
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestWhileLoopEmitsBackwardJump(t *testing.T) {
	fn := compileOK(t, "while (false) { print 1; }")
	got := ops(fn.Chunk)
	want := []bytecode.Op{
		bytecode.OpFalse,
		bytecode.OpJumpIfFalse, bytecode.OpPop,
		bytecode.OpConstant, bytecode.OpPrint,
		bytecode.OpLoop,
		bytecode.OpPop,
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestForLoopDesugarsToWhileShape(t *testing.T) {
	fn := compileOK(t, "for (var i = 0; i < 3; i = i + 1) print i;")
	got := ops(fn.Chunk)
	// init, [cond jumpiffalse pop], body jump, incr, loop-to-cond,
	// patch body jump here, body, loop-to-incr, patch exit, pop, end-scope pop
	want := []bytecode.Op{
		bytecode.OpConstant, // i = 0
		bytecode.OpGetLocal, bytecode.OpConstant, bytecode.OpLess, // i < 3
		bytecode.OpJumpIfFalse, bytecode.OpPop,
		bytecode.OpJump, // body jump over increment
		bytecode.OpGetLocal, bytecode.OpConstant, bytecode.OpAdd, bytecode.OpSetLocal, bytecode.OpPop,
		bytecode.OpLoop, // back to condition
		bytecode.OpGetLocal, bytecode.OpPrint, // body: print i;
		bytecode.OpLoop, // back to increment
		bytecode.OpPop,  // exit: pop condition
		bytecode.OpPop,  // end scope: pop i
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestFunctionDeclarationProducesConstantAndCallOpcode(t *testing.T) {
	fn := compileOK(t, "fun add(a, b) { return a + b; } print add(1, 2);")
	got := ops(fn.Chunk)
	assert.Contains(t, got, bytecode.OpCall)
	assert.Contains(t, got, bytecode.OpConstant)

	var inner *value.ObjFunction
	for _, cst := range fn.Chunk.Constants {
		if cst.IsFunction() {
			inner = cst.AsFunction()
		}
	}
	require.NotNil(t, inner)
	assert.Equal(t, 2, inner.Arity)
	assert.Equal(t, "add", inner.Name.String())
	innerOps := ops(inner.Chunk)
	assert.Contains(t, innerOps, bytecode.OpReturn)
}

func TestReturnAtTopLevelIsError(t *testing.T) {
	errs := compileErr(t, "return 1;")
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Can't return from top-level code") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReturnInsideFunctionIsAllowed(t *testing.T) {
	compileOK(t, "fun f() { return 1; } f();")
}

func TestTooManyParametersIsError(t *testing.T) {
	src := "fun f("
	for i := 0; i <= maxParameters; i++ {
		if i > 0 {
			src += ", "
		}
		src += "a" + strconv.Itoa(i)
	}
	src += ") {}"
	errs := compileErr(t, src)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Can't have more than 255 parameters") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSyntaxErrorMessageFormat(t *testing.T) {
	errs := compileErr(t, "var = 1;")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "[line 1], Error at '='")
}

func TestSyntaxErrorAtEOF(t *testing.T) {
	errs := compileErr(t, "var x = 1")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "at end")
}

func TestInvalidAssignmentTarget(t *testing.T) {
	errs := compileErr(t, "1 + 2 = 3;")
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Invalid assignment target") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPanicModeSuppressesCascades(t *testing.T) {
	// A single stray token followed by a clean statement should produce
	// exactly one error: advance() reports and skips the scanner's error
	// token, and the declaration after it compiles without further errors.
	errs := compileErr(t, "@ var x = 1;")
	assert.Len(t, errs, 1)
}

func TestAndShortCircuitShape(t *testing.T) {
	fn := compileOK(t, "print true and false;")
	got := ops(fn.Chunk)
	want := []bytecode.Op{
		bytecode.OpTrue,
		bytecode.OpJumpIfFalse, bytecode.OpPop, bytecode.OpFalse,
		bytecode.OpPrint,
		bytecode.OpNil, bytecode.OpReturn,
	}
	assert.Equal(t, want, got)
}

func TestStringLiteralStripsQuotes(t *testing.T) {
	fn := compileOK(t, `print "hi";`)
	require.Len(t, fn.Chunk.Constants, 1)
	assert.Equal(t, "hi", fn.Chunk.Constants[0].String())
}
