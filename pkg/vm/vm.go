// Package vm executes the bytecode chunks pkg/compiler produces: a
// stack-oriented dispatch loop over a fixed value stack and a bounded
// call-frame stack, with runtime type checking and native-function
// dispatch at the boundary.
//
// The VM is single-threaded and non-reentrant: one Interpret (or Run)
// call owns the stacks, the globals table, and the shared string-intern
// pool exclusively for its duration. Native functions run synchronously
// and must never call back into the VM.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/compiler"
	"github.com/emberlang/ember/pkg/table"
	"github.com/emberlang/ember/pkg/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// callFrame is one active function invocation: the function whose code is
// executing, the instruction pointer into that function's chunk, and the
// base index into the VM's value stack where this frame's slot 0 (the
// function itself) lives.
type callFrame struct {
	function  *value.ObjFunction
	ip        int
	slotsBase int
}

// Result is the outcome of an Interpret call.
type Result int

const (
	// OK means the program ran to completion.
	OK Result = iota
	// CompileErr means compilation failed; nothing was executed.
	CompileErr
	// RuntimeErr means dispatch aborted partway through execution.
	RuntimeErr
)

// VM holds all state for one interpreter instance: the value stack, the
// call-frame stack, the globals table, and the string-intern pool shared
// with whatever Compiler produced the code being run.
type VM struct {
	stack      []value.Value
	frames     []callFrame
	frameCount int

	globals *table.Table[value.Value]
	strings *value.Strings

	Stdout io.Writer
	Stderr io.Writer

	log   *logrus.Logger
	trace bool
}

// New returns a VM ready to run code compiled against strs. strs must be
// the same pool the compiler that produced any given Chunk used, so that
// string equality (handle identity) holds between compile-time literals
// and run-time values.
func New(strs *value.Strings) *VM {
	vm := &VM{
		stack:   make([]value.Value, 0, stackMax),
		frames:  make([]callFrame, 0, framesMax),
		globals: table.New[value.Value](),
		strings: strs,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		log:     logrus.New(),
	}
	vm.log.SetLevel(logrus.WarnLevel)
	vm.defineNatives()
	return vm
}

// SetTrace gates per-instruction trace logging at debug level, adapted
// from the teacher's interactive debugger into a one-way structured log
// rather than a breakpoint/step console (disassembly/step debugging is
// handled outside this package).
func (vm *VM) SetTrace(on bool) {
	vm.trace = on
	if on {
		vm.log.SetLevel(logrus.DebugLevel)
	}
}

// Interpret compiles source and, if compilation succeeds, runs it.
func (vm *VM) Interpret(source string) Result {
	fn, errs := compiler.New(source, vm.strings).Compile()
	if errs != nil {
		for _, e := range errs.Errors {
			fmt.Fprintln(vm.Stderr, e.Error())
		}
		return CompileErr
	}
	return vm.Run(fn)
}

// Run pushes fn as the outermost call and executes until that frame
// returns (or a runtime error aborts dispatch).
func (vm *VM) Run(fn *value.ObjFunction) Result {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.frameCount = 0

	vm.push(value.Obj(fn))
	if err := vm.call(fn, 0); err != nil {
		vm.reportRuntimeError(err)
		return RuntimeErr
	}

	if err := vm.dispatch(); err != nil {
		vm.reportRuntimeError(err)
		return RuntimeErr
	}
	return OK
}

func (vm *VM) reportRuntimeError(err *RuntimeError) {
	fmt.Fprintln(vm.Stderr, err.Error())
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.frameCount = 0
}

// --- stack primitives --------------------------------------------------

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

// --- call protocol -------------------------------------------------------

func (vm *VM) call(fn *value.ObjFunction, argCount int) *RuntimeError {
	if argCount != fn.Arity {
		return vm.runtimeError("expected %d arguments but got %d", fn.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("stack overflow")
	}
	frame := callFrame{
		function:  fn,
		slotsBase: len(vm.stack) - argCount - 1,
	}
	vm.frames = append(vm.frames, frame)
	vm.frameCount++
	return nil
}

// callValue dispatches OP_CALL's callee, which must be a Function or a
// Native; anything else is a runtime error.
func (vm *VM) callValue(callee value.Value, argCount int) *RuntimeError {
	if callee.IsObject() {
		switch {
		case callee.IsFunction():
			return vm.call(callee.AsFunction(), argCount)
		case callee.IsNative():
			native := callee.AsNative()
			args := append([]value.Value(nil), vm.stack[len(vm.stack)-argCount:]...)
			result, err := native.Fn(args)
			vm.stack = vm.stack[:len(vm.stack)-argCount-1]
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.push(result)
			return nil
		}
	}
	return vm.runtimeError("can only call functions and classes")
}

// runtimeError builds a RuntimeError carrying a stack trace snapshot of
// every currently active frame, innermost last (so Error() can walk it
// innermost-first without re-reversing).
func (vm *VM) runtimeError(format string, args ...any) *RuntimeError {
	message := fmt.Sprintf(format, args...)
	trace := make([]StackFrame, 0, vm.frameCount)
	for i := 0; i < vm.frameCount; i++ {
		f := vm.frames[i]
		line := 0
		if f.ip-1 >= 0 && f.ip-1 < len(f.function.Chunk.Lines) {
			line = f.function.Chunk.Lines[f.ip-1]
		}
		name := ""
		if f.function.Name != nil {
			name = f.function.Name.String()
		}
		trace = append(trace, StackFrame{Name: name, SourceLine: line})
	}
	return newRuntimeError(message, trace)
}

// --- dispatch loop -------------------------------------------------------

func (vm *VM) currentFrame() *callFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(frame *callFrame) byte {
	b := frame.function.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readShort(frame *callFrame) uint16 {
	hi := vm.readByte(frame)
	lo := vm.readByte(frame)
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant(frame *callFrame) value.Value {
	return frame.function.Chunk.Constants[vm.readByte(frame)]
}

func (vm *VM) readString(frame *callFrame) *value.ObjString {
	return vm.readConstant(frame).AsString()
}

// dispatch is the fetch-decode-execute loop. It runs until the outermost
// frame returns (frameCount drops to 0) or a step reports a RuntimeError.
func (vm *VM) dispatch() *RuntimeError {
	frame := vm.currentFrame()

	for {
		if vm.trace {
			vm.log.Debugf("ip=%d op=%s stack=%d", frame.ip, bytecode.Op(frame.function.Chunk.Code[frame.ip]), len(vm.stack))
		}

		op := bytecode.Op(vm.readByte(frame))
		switch op {
		case bytecode.OpConstant:
			vm.push(vm.readConstant(frame))

		case bytecode.OpNil:
			vm.push(value.Nil())
		case bytecode.OpTrue:
			vm.push(value.Bool(true))
		case bytecode.OpFalse:
			vm.push(value.Bool(false))

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.slotsBase+int(slot)])
		case bytecode.OpSetLocal:
			slot := vm.readByte(frame)
			vm.stack[frame.slotsBase+int(slot)] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := vm.readString(frame)
			v, ok := vm.globals.Get(name.Ptr)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.String())
			}
			vm.push(v)
		case bytecode.OpDefineGlobal:
			name := vm.readString(frame)
			vm.globals.Set(name.Ptr, vm.peek(0))
			vm.pop()
		case bytecode.OpSetGlobal:
			name := vm.readString(frame)
			if _, ok := vm.globals.Get(name.Ptr); !ok {
				return vm.runtimeError("undefined variable '%s'", name.String())
			}
			vm.globals.Set(name.Ptr, vm.peek(0))

		case bytecode.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case bytecode.OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equal(a, b)))

		case bytecode.OpGreater, bytecode.OpGreaterEqual, bytecode.OpLess, bytecode.OpLessEqual:
			if err := vm.numericComparison(op); err != nil {
				return err
			}

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide:
			if err := vm.arithmetic(op); err != nil {
				return err
			}

		case bytecode.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("operand must be a number")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())

		case bytecode.OpJump:
			offset := vm.readShort(frame)
			frame.ip += int(offset)
		case bytecode.OpJumpIfFalse:
			offset := vm.readShort(frame)
			if vm.peek(0).IsFalsey() {
				frame.ip += int(offset)
			}
		case bytecode.OpLoop:
			offset := vm.readShort(frame)
			frame.ip -= int(offset)

		case bytecode.OpCall:
			argCount := int(vm.readByte(frame))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = vm.currentFrame()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.frames = vm.frames[:vm.frameCount-1]
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop() // the script function itself
				return nil
			}
			vm.stack = vm.stack[:frame.slotsBase]
			vm.push(result)
			frame = vm.currentFrame()

		default:
			return vm.runtimeError("unknown opcode %d", byte(op))
		}
	}
}

func (vm *VM) numericComparison(op bytecode.Op) *RuntimeError {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	switch op {
	case bytecode.OpGreater:
		vm.push(value.Bool(a > b))
	case bytecode.OpGreaterEqual:
		vm.push(value.Bool(a >= b))
	case bytecode.OpLess:
		vm.push(value.Bool(a < b))
	case bytecode.OpLessEqual:
		vm.push(value.Bool(a <= b))
	}
	return nil
}

// add implements OP_ADD's two legal pairings: number+number and
// string+string (concatenation, interned like any other run-time string).
func (vm *VM) add() *RuntimeError {
	b, a := vm.peek(0), vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		vm.pop()
		vm.pop()
		concatenated := append(append([]byte(nil), a.AsString().Chars()...), b.AsString().Chars()...)
		vm.push(value.Obj(vm.strings.Intern(concatenated)))
	default:
		return vm.runtimeError("operands must be two numbers or two strings")
	}
	return nil
}

func (vm *VM) arithmetic(op bytecode.Op) *RuntimeError {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	switch op {
	case bytecode.OpSubtract:
		vm.push(value.Number(a - b))
	case bytecode.OpMultiply:
		vm.push(value.Number(a * b))
	case bytecode.OpDivide:
		vm.push(value.Number(a / b))
	}
	return nil
}
