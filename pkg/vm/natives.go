// Native function bootstrap.
//
// clock() is the one native the core spec requires. The rest are
// supplemental host functions wired to third-party libraries the way the
// teacher repository wired its own (much larger) stdlib-primitives set:
// one small Go function per native name, registered into globals exactly
// like a compiled function would be, so OP_CALL treats them identically.
package vm

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/emberlang/ember/pkg/value"
)

var processStart = time.Now()

var upperCaser = cases.Upper(language.Und)
var lowerCaser = cases.Lower(language.Und)

func (vm *VM) defineNative(name string, fn value.NativeFn) {
	native := &value.ObjNative{Name: name, Fn: fn}
	key := vm.strings.Intern([]byte(name))
	vm.globals.Set(key.Ptr, value.Obj(native))
}

// defineNatives registers every host-implemented callable a fresh VM
// starts with.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", nativeClock)
	vm.defineNative("uuid", vm.nativeUUID)
	vm.defineNative("compress", vm.nativeCompress)
	vm.defineNative("decompress", vm.nativeDecompress)
	vm.defineNative("upper", vm.nativeUpper)
	vm.defineNative("lower", vm.nativeLower)
}

func arityError(name string, want int, got []value.Value) error {
	return fmt.Errorf("%s() expects %d argument(s), got %d", name, want, len(got))
}

func stringArg(name string, args []value.Value) (*value.ObjString, error) {
	if len(args) != 1 || !args[0].IsString() {
		return nil, fmt.Errorf("%s() expects 1 string argument", name)
	}
	return args[0].AsString(), nil
}

// nativeClock returns the number of seconds since the VM process started,
// matching the core spec's required clock() native.
func nativeClock(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Value{}, arityError("clock", 0, args)
	}
	return value.Number(time.Since(processStart).Seconds()), nil
}

// nativeUUID returns a freshly generated random (v4) UUID as a string.
func (vm *VM) nativeUUID(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Value{}, arityError("uuid", 0, args)
	}
	return value.Obj(vm.strings.Intern([]byte(uuid.New().String()))), nil
}

// nativeCompress LZ4-compresses its one string argument and returns the
// compressed bytes re-encoded as a string (Ember strings are plain byte
// sequences, so this round-trips through decompress() without needing a
// distinct binary-blob value kind).
func (vm *VM) nativeCompress(args []value.Value) (value.Value, error) {
	s, err := stringArg("compress", args)
	if err != nil {
		return value.Value{}, err
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(s.Chars()); err != nil {
		return value.Value{}, err
	}
	if err := w.Close(); err != nil {
		return value.Value{}, err
	}
	return value.Obj(vm.strings.Intern(buf.Bytes())), nil
}

func (vm *VM) nativeDecompress(args []value.Value) (value.Value, error) {
	s, err := stringArg("decompress", args)
	if err != nil {
		return value.Value{}, err
	}
	r := lz4.NewReader(bytes.NewReader(s.Chars()))
	out, err := io.ReadAll(r)
	if err != nil {
		return value.Value{}, err
	}
	return value.Obj(vm.strings.Intern(out)), nil
}

func (vm *VM) nativeUpper(args []value.Value) (value.Value, error) {
	s, err := stringArg("upper", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Obj(vm.strings.Intern([]byte(upperCaser.String(s.String())))), nil
}

func (vm *VM) nativeLower(args []value.Value) (value.Value, error) {
	s, err := stringArg("lower", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Obj(vm.strings.Intern([]byte(lowerCaser.String(s.String())))), nil
}
