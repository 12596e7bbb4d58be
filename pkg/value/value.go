// Package value defines Ember's runtime data model: the tagged Value
// union, the three heap Object variants (String, Function, Native), and
// the Chunk a compiled Function owns.
//
// Value, Object and Chunk live in one package deliberately. A Function
// object owns a Chunk; a Chunk's constant pool holds Values; a Value may
// wrap a Function. Splitting these across packages the way their
// responsibilities might otherwise suggest would force an import cycle,
// so — as in the original C implementation this design is drawn from —
// they are kept together and the cycle never has a chance to appear.
package value

import (
	"fmt"
	"math"
	"strconv"

	"github.com/emberlang/ember/pkg/table"
)

// Kind discriminates the four Value variants.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Value is a tagged union: exactly one of boolean/number/obj is meaningful,
// selected by Kind. Equality is structural per variant (see Equal);
// mixed-kind comparisons are always false.
type Value struct {
	Kind    Kind
	boolean bool
	number  float64
	obj     Object
}

// Nil, Bool, Number and Obj construct Values of each variant.
func Nil() Value             { return Value{Kind: KindNil} }
func Bool(b bool) Value      { return Value{Kind: KindBool, boolean: b} }
func Number(n float64) Value { return Value{Kind: KindNumber, number: n} }
func Obj(o Object) Value     { return Value{Kind: KindObject, obj: o} }

func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObject() bool { return v.Kind == KindObject }

func (v Value) AsBool() bool      { return v.boolean }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) AsObject() Object  { return v.obj }

// IsString, IsFunction and IsNative test for a particular Object variant.
func (v Value) IsString() bool {
	if v.Kind != KindObject {
		return false
	}
	_, ok := v.obj.(*ObjString)
	return ok
}

func (v Value) IsFunction() bool {
	if v.Kind != KindObject {
		return false
	}
	_, ok := v.obj.(*ObjFunction)
	return ok
}

func (v Value) IsNative() bool {
	if v.Kind != KindObject {
		return false
	}
	_, ok := v.obj.(*ObjNative)
	return ok
}

// AsString, AsFunction and AsNative panic if the Value is not that variant;
// callers guard with the Is* predicate first wherever the variant is not
// fixed by the bytecode (the VM reads global-name operands with AsString
// directly, since the compiler only emits name strings there). Runtime
// type errors are reported through the VM's own error path, not through a
// panic/recover here.
func (v Value) AsString() *ObjString     { return v.obj.(*ObjString) }
func (v Value) AsFunction() *ObjFunction { return v.obj.(*ObjFunction) }
func (v Value) AsNative() *ObjNative     { return v.obj.(*ObjNative) }

// IsFalsey reports whether v is falsy. Only nil and boolean false are
// falsy; every other value — including 0 and the empty string — is truthy.
func (v Value) IsFalsey() bool {
	return v.Kind == KindNil || (v.Kind == KindBool && !v.boolean)
}

// Equal implements structural equality. Numbers compare by IEEE-754 value
// (so NaN != NaN, matching float semantics); strings compare by handle —
// which is sound only because every live string has passed through
// Strings.Intern, guaranteeing equal content shares one *ObjString.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return a.number == b.number
	case KindObject:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders v in its canonical printed form: nil/true/false for
// singletons, %g-style for numbers, and the object's own String() for
// heap values.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.number)
	case KindObject:
		return v.obj.String()
	default:
		return "?"
	}
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
}

// Object is the polymorphic heap entity. Exactly three implementations
// exist: ObjString, ObjFunction, ObjNative.
type Object interface {
	object()
	String() string
}

// ObjString is an interned, immutable byte string. The embedded *table.Str
// is the canonical handle: two ObjStrings with equal content always wrap
// the identical *table.Str, obtained through Strings.Intern.
type ObjString struct {
	Ptr *table.Str
}

func (*ObjString) object() {}
func (s *ObjString) String() string { return string(s.Ptr.Chars) }

// Chars returns the string's raw bytes.
func (s *ObjString) Chars() []byte { return s.Ptr.Chars }

// Hash returns the string's precomputed FNV-1a hash.
func (s *ObjString) Hash() uint32 { return s.Ptr.Hash }

// ObjFunction is a compiled function: its arity, its own Chunk, and an
// optional name (absent only for the implicit top-level script).
type ObjFunction struct {
	Name  *ObjString
	Arity int
	Chunk *Chunk
}

func (*ObjFunction) object() {}
func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.String())
}

// NativeFn is a host-implemented callable: it takes the call's argument
// slice and returns a Value, or an error which the VM surfaces as a
// runtime error. Natives execute synchronously and never touch VM state
// except through this return.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a host function so it can be stored in globals and
// invoked via OP_CALL exactly like an ObjFunction.
type ObjNative struct {
	Name string
	Fn   NativeFn
}

func (*ObjNative) object() {}
func (n *ObjNative) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// Chunk is a function's compiled body: a flat byte vector of instructions,
// a parallel per-byte line table used only for error reporting, and a
// constant pool capped at 256 entries (a single byte indexes it).
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// Write appends one instruction byte, recording line as its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends v to the constant pool and returns its index. It is
// the caller's (compiler's) job to reject an index that would overflow the
// single-byte operand.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}
