// Package table implements the open-addressing hash table used both for
// the VM's global-variable bindings and for the string-interning set.
//
// It is generic over its value type so both uses share one implementation:
// Table[Value] backs globals, Table[struct{}] backs the intern set (where
// only the key — the canonical string handle — matters).
//
// Probing, growth, and deletion follow linear probing with tombstones:
//   - findEntry probes from hash mod capacity, stopping at the first slot
//     whose key matches, remembering the first tombstone seen so it can be
//     reused in place of a later empty slot.
//   - growth happens before insertion would push the load factor past 0.75;
//     capacity starts at 8 and always doubles; tombstones are dropped
//     during the rehash that growth performs.
//   - delete leaves a tombstone rather than a true empty slot, so that
//     probe chains through it remain intact for keys inserted after it.
package table

// Str is an interned byte string plus its precomputed FNV-1a hash. Table
// keys are always *Str: two live Strs with equal Chars are guaranteed to
// be the same pointer, because the only way to obtain one is through a
// string pool's Intern method (see pkg/value.Strings), which consults
// FindString before allocating.
type Str struct {
	Chars []byte
	Hash  uint32
}

const loadFactorMax = 0.75
const minCapacity = 8

type slotState byte

const (
	stateEmpty slotState = iota
	stateTombstone
	stateLive
)

type entry[V any] struct {
	key   *Str
	value V
	state slotState
}

// Table is an open-addressing hash map keyed by *Str.
type Table[V any] struct {
	count   int // live + tombstone slots, for load-factor accounting
	entries []entry[V]
}

// New returns an empty table with zero capacity; the first Set call grows
// it to minCapacity.
func New[V any]() *Table[V] {
	return &Table[V]{}
}

// Count returns the number of occupied slots (live entries plus tombstones).
func (t *Table[V]) Count() int { return t.count }

// Capacity returns the current backing-array size.
func (t *Table[V]) Capacity() int { return len(t.entries) }

func (t *Table[V]) findEntry(entries []entry[V], key *Str) int {
	index := int(key.Hash) % len(entries)
	tombstone := -1
	for {
		e := &entries[index]
		switch e.state {
		case stateEmpty:
			if tombstone != -1 {
				return tombstone
			}
			return index
		case stateTombstone:
			if tombstone == -1 {
				tombstone = index
			}
		default: // live
			if e.key == key {
				return index
			}
		}
		index = (index + 1) % len(entries)
	}
}

func (t *Table[V]) adjustCapacity(capacity int) {
	entries := make([]entry[V], capacity)
	t.count = 0
	for _, old := range t.entries {
		if old.state != stateLive {
			continue
		}
		idx := t.findEntry(entries, old.key)
		entries[idx].key = old.key
		entries[idx].value = old.value
		entries[idx].state = stateLive
		t.count++
	}
	t.entries = entries
}

// Get looks up key, returning its value and whether it was found.
func (t *Table[V]) Get(key *Str) (V, bool) {
	var zero V
	if t.count == 0 {
		return zero, false
	}
	idx := t.findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.state != stateLive {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, growing the table first if doing so would
// push the load factor past 0.75. Returns true iff key was not already
// occupying a slot (a tombstone counts as "already occupied" for this
// purpose — only a truly empty slot makes this a new key).
func (t *Table[V]) Set(key *Str, value V) bool {
	if float64(t.count+1) > float64(len(t.entries))*loadFactorMax {
		capacity := minCapacity
		if len(t.entries) > 0 {
			capacity = len(t.entries) * 2
		}
		t.adjustCapacity(capacity)
	}
	idx := t.findEntry(t.entries, key)
	e := &t.entries[idx]
	isNew := e.state == stateEmpty
	if isNew {
		t.count++
	}
	e.key = key
	e.value = value
	e.state = stateLive
	return isNew
}

// Delete replaces key's live entry with a tombstone. Returns false if key
// was not present.
func (t *Table[V]) Delete(key *Str) bool {
	if t.count == 0 {
		return false
	}
	idx := t.findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.state != stateLive {
		return false
	}
	e.key = nil
	var zero V
	e.value = zero
	e.state = stateTombstone
	return true
}

// FindString looks up a live key by content rather than by pointer
// identity. This is the one operation that does not go through findEntry:
// interning needs to find a match before a *Str handle exists at all.
func (t *Table[V]) FindString(chars []byte, hash uint32) *Str {
	if t.count == 0 {
		return nil
	}
	index := int(hash) % len(t.entries)
	for {
		e := &t.entries[index]
		switch e.state {
		case stateEmpty:
			return nil
		case stateLive:
			if e.key.Hash == hash && bytesEqual(e.key.Chars, chars) {
				return e.key
			}
		}
		index = (index + 1) % len(t.entries)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
