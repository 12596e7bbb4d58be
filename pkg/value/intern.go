package value

import "github.com/emberlang/ember/pkg/table"

// Strings is the shared string-interning pool: the compiler interns
// identifier and literal text while compiling, the VM interns the results
// of concatenation and native calls, and both see the same canonical
// handles. This is the one piece of VM state the compiler needs direct
// access to (see the package doc for why Value/Object/Chunk don't split
// further — Strings is the other side of that same coupling).
type Strings struct {
	table *table.Table[struct{}]
	byPtr map[*table.Str]*ObjString
}

// NewStrings returns an empty intern pool.
func NewStrings() *Strings {
	return &Strings{
		table: table.New[struct{}](),
		byPtr: make(map[*table.Str]*ObjString),
	}
}

// Intern returns the canonical *ObjString for chars, allocating a new one
// only if no live string with equal content exists yet. The returned
// pointer is stable: interning the same content again, from anywhere,
// yields the identical *ObjString.
func (s *Strings) Intern(chars []byte) *ObjString {
	hash := fnv1a(chars)
	if found := s.table.FindString(chars, hash); found != nil {
		return s.byPtr[found]
	}

	owned := make([]byte, len(chars))
	copy(owned, chars)
	str := &table.Str{Chars: owned, Hash: hash}
	s.table.Set(str, struct{}{})

	obj := &ObjString{Ptr: str}
	s.byPtr[str] = obj
	return obj
}

// Count returns the number of distinct interned strings, mostly useful for
// tests and diagnostics.
func (s *Strings) Count() int { return s.table.Count() }

// fnv1a computes the 32-bit FNV-1a hash of data, matching the hash every
// interned string carries.
func fnv1a(data []byte) uint32 {
	var h uint32 = 2166136261
	for _, b := range data {
		h ^= uint32(b)
		h *= 16777619
	}
	return h
}
