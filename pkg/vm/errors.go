// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"
)

// StackFrame captures one call frame's identity at the moment a runtime
// error was raised: the function's printable name (or "script" for the
// top-level frame) and the source line the frame's instruction pointer
// had reached.
type StackFrame struct {
	Name       string
	SourceLine int
}

// RuntimeError is the error a dispatch loop iteration returns when it
// aborts: a type error, an undefined global, an arity mismatch, a call of
// a non-callable value, or stack overflow. Error() renders it in the
// stable "<message>\n[line L] in <name>()" format tests pin on, walking
// frames innermost first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for i := len(e.StackTrace) - 1; i >= 0; i-- {
		frame := e.StackTrace[i]
		b.WriteByte('\n')
		if frame.Name == "" {
			b.WriteString(fmt.Sprintf("[line %d] in script", frame.SourceLine))
		} else {
			b.WriteString(fmt.Sprintf("[line %d] in %s()", frame.SourceLine, frame.Name))
		}
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}
