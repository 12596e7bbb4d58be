package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/pkg/value"
)

func run(t *testing.T, src string) (stdout, stderr string, result Result) {
	t.Helper()
	v := New(value.NewStrings())
	var out, errBuf bytes.Buffer
	v.Stdout = &out
	v.Stderr = &errBuf
	result = v.Interpret(src)
	return out.String(), errBuf.String(), result
}

func TestArithmeticPrecedenceEndToEnd(t *testing.T) {
	out, _, res := run(t, "print 1 + 2 * 3;")
	assert.Equal(t, OK, res)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, _, res := run(t, `var a = "hi"; var b = " there"; print a + b;`)
	assert.Equal(t, OK, res)
	assert.Equal(t, "hi there\n", out)
}

func TestForLoopAccumulates(t *testing.T) {
	out, _, res := run(t, "var n = 0; for (var i = 1; i <= 5; i = i + 1) { n = n + i; } print n;")
	assert.Equal(t, OK, res)
	assert.Equal(t, "15\n", out)
}

func TestRecursiveFibonacci(t *testing.T) {
	out, _, res := run(t, "fun fib(n) { if (n < 2) return n; return fib(n-1) + fib(n-2); } print fib(10);")
	assert.Equal(t, OK, res)
	assert.Equal(t, "55\n", out)
}

func TestZeroIsTruthy(t *testing.T) {
	out, _, res := run(t, `if (nil or 0) print "t"; else print "f";`)
	assert.Equal(t, OK, res)
	assert.Equal(t, "t\n", out)
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, errOut, res := run(t, "print undefined_name;")
	assert.Equal(t, RuntimeErr, res)
	assert.Contains(t, errOut, "undefined variable 'undefined_name'")
}

func TestCompileErrorReportsStableFormat(t *testing.T) {
	_, errOut, res := run(t, "var = 1;")
	assert.Equal(t, CompileErr, res)
	assert.Contains(t, errOut, "[line 1], Error at '='")
}

func TestRuntimeErrorIncludesStackTrace(t *testing.T) {
	_, errOut, res := run(t, "fun f() { return 1 + \"x\"; } f();")
	assert.Equal(t, RuntimeErr, res)
	assert.Contains(t, errOut, "operands must be two numbers or two strings")
	assert.Contains(t, errOut, "in f()")
}

func TestStackOverflowOnDeepRecursion(t *testing.T) {
	_, errOut, res := run(t, "fun f() { return f(); } f();")
	assert.Equal(t, RuntimeErr, res)
	assert.Contains(t, errOut, "stack overflow")
}

func TestShadowingAcrossNestedFunctionCalls(t *testing.T) {
	out, _, res := run(t, `
		var x = "outer";
		fun inner() {
			var x = "inner";
			print x;
		}
		inner();
		print x;
	`)
	assert.Equal(t, OK, res)
	assert.Equal(t, "inner\nouter\n", out)
}

func TestNativeClockReturnsNumber(t *testing.T) {
	out, _, res := run(t, "print clock() >= 0;")
	assert.Equal(t, OK, res)
	assert.Equal(t, "true\n", out)
}

func TestNativeUpperLower(t *testing.T) {
	out, _, res := run(t, `print upper("hi"); print lower("HI");`)
	assert.Equal(t, OK, res)
	assert.Equal(t, "HI\nhi\n", out)
}

func TestNativeCompressDecompressRoundTrip(t *testing.T) {
	out, _, res := run(t, `print decompress(compress("roundtrip"));`)
	assert.Equal(t, OK, res)
	assert.Equal(t, "roundtrip\n", out)
}

func TestNativeUUIDLooksLikeAUUID(t *testing.T) {
	out, _, res := run(t, "print uuid();")
	assert.Equal(t, OK, res)
	require.True(t, strings.Count(out, "-") >= 4)
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	_, errOut, res := run(t, "fun f(a, b) { return a + b; } f(1);")
	assert.Equal(t, RuntimeErr, res)
	assert.Contains(t, errOut, "expected 2 arguments but got 1")
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, errOut, res := run(t, "var x = 1; x();")
	assert.Equal(t, RuntimeErr, res)
	assert.Contains(t, errOut, "can only call functions and classes")
}

func TestGlobalReassignmentOfUndefinedIsError(t *testing.T) {
	_, errOut, res := run(t, "x = 1;")
	assert.Equal(t, RuntimeErr, res)
	assert.Contains(t, errOut, "undefined variable 'x'")
}
