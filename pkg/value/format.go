// Binary chunk serialization: the .emb file format.
//
// This lets a compiled script function be round-tripped through disk
// without re-lexing or re-compiling. It is a supplement to the core spec
// (clox has no such format), adapted from the teacher repository's own
// `.sg` bytecode file format.
//
// Layout:
//
//	Header:   magic (4 bytes "EMBR"), format version (4 bytes)
//	Function: name (length-prefixed string, empty for the script), arity
//	          (4 bytes), then its Chunk
//	Chunk:    code length + raw code bytes, one line number per code byte,
//	          constant count, then each constant
//	Constant: a 1-byte type tag followed by type-specific data; a
//	          constTypeFunction constant recursively encodes a nested
//	          Function (Ember has no closures, so nested functions are
//	          always self-contained constants, never captured values)
package value

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicNumber   uint32 = 0x454D4252 // "EMBR"
	formatVersion uint32 = 1
)

const (
	constTypeNil byte = iota
	constTypeBoolean
	constTypeNumber
	constTypeString
	constTypeFunction
)

// Encode serializes fn (typically the top-level script returned by a
// successful compile) to w in the .emb binary format.
func Encode(w io.Writer, fn *ObjFunction) error {
	if err := binary.Write(w, binary.BigEndian, magicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	return encodeFunction(w, fn)
}

func encodeFunction(w io.Writer, fn *ObjFunction) error {
	name := ""
	if fn.Name != nil {
		name = fn.Name.String()
	}
	if err := writeString(w, name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(fn.Arity)); err != nil {
		return err
	}
	return encodeChunk(w, fn.Chunk)
}

func encodeChunk(w io.Writer, c *Chunk) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.Code))); err != nil {
		return err
	}
	if _, err := w.Write(c.Code); err != nil {
		return err
	}
	for _, line := range c.Lines {
		if err := binary.Write(w, binary.BigEndian, uint32(line)); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.Constants))); err != nil {
		return err
	}
	for _, v := range c.Constants {
		if err := encodeConstant(w, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeConstant(w io.Writer, v Value) error {
	switch {
	case v.IsNil():
		_, err := w.Write([]byte{constTypeNil})
		return err
	case v.IsBool():
		b := byte(0)
		if v.AsBool() {
			b = 1
		}
		_, err := w.Write([]byte{constTypeBoolean, b})
		return err
	case v.IsNumber():
		if _, err := w.Write([]byte{constTypeNumber}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.AsNumber())
	case v.IsString():
		if _, err := w.Write([]byte{constTypeString}); err != nil {
			return err
		}
		return writeString(w, v.AsString().String())
	case v.IsFunction():
		if _, err := w.Write([]byte{constTypeFunction}); err != nil {
			return err
		}
		return encodeFunction(w, v.AsFunction())
	default:
		return fmt.Errorf("value: cannot encode constant of kind %v", v.Kind)
	}
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Decode reads a .emb chunk previously written by Encode. Every decoded
// string constant (and function name) is routed through strs.Intern, so
// Invariant 1 — every live string is present in the intern table — holds
// for decoded programs exactly as it does for freshly compiled ones.
func Decode(r io.Reader, strs *Strings) (*ObjFunction, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != magicNumber {
		return nil, fmt.Errorf("value: not an ember bytecode file")
	}
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("value: unsupported bytecode format version %d", version)
	}
	return decodeFunction(r, strs)
}

func decodeFunction(r io.Reader, strs *Strings) (*ObjFunction, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	var arity uint32
	if err := binary.Read(r, binary.BigEndian, &arity); err != nil {
		return nil, err
	}
	chunk, err := decodeChunk(r, strs)
	if err != nil {
		return nil, err
	}
	fn := &ObjFunction{Arity: int(arity), Chunk: chunk}
	if name != "" {
		fn.Name = strs.Intern([]byte(name))
	}
	return fn, nil
}

func decodeChunk(r io.Reader, strs *Strings) (*Chunk, error) {
	var codeLen uint32
	if err := binary.Read(r, binary.BigEndian, &codeLen); err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, err
	}
	lines := make([]int, codeLen)
	for i := range lines {
		var line uint32
		if err := binary.Read(r, binary.BigEndian, &line); err != nil {
			return nil, err
		}
		lines[i] = int(line)
	}
	var constCount uint32
	if err := binary.Read(r, binary.BigEndian, &constCount); err != nil {
		return nil, err
	}
	constants := make([]Value, constCount)
	for i := range constants {
		v, err := decodeConstant(r, strs)
		if err != nil {
			return nil, err
		}
		constants[i] = v
	}
	return &Chunk{Code: code, Lines: lines, Constants: constants}, nil
}

func decodeConstant(r io.Reader, strs *Strings) (Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Value{}, err
	}
	switch tag[0] {
	case constTypeNil:
		return Nil(), nil
	case constTypeBoolean:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Value{}, err
		}
		return Bool(b[0] != 0), nil
	case constTypeNumber:
		var n float64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return Value{}, err
		}
		return Number(n), nil
	case constTypeString:
		s, err := readString(r)
		if err != nil {
			return Value{}, err
		}
		return Obj(strs.Intern([]byte(s))), nil
	case constTypeFunction:
		fn, err := decodeFunction(r, strs)
		if err != nil {
			return Value{}, err
		}
		return Obj(fn), nil
	default:
		return Value{}, fmt.Errorf("value: unknown constant tag %d", tag[0])
	}
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
