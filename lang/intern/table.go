// Package intern implements the language's open-addressed string table: a
// linearly-probed, tombstoned hash table keyed by interned strings. The
// same Table type backs both the string interner (content -> canonical
// *StringObj) and the VM's globals map (name -> Value), per the spec's
// instruction to reuse the interner's structure for arbitrary string-keyed
// maps.
package intern

import "github.com/mna/vela/lang/value"

const maxLoad = 0.75

type entry struct {
	key   *value.StringObj // nil key: either never used, or a tombstone (see tombstone)
	val   value.Value
	alive bool // true if key is a tombstone (deleted but counted toward load factor)
}

// Table is a linearly-probed hash table keyed by *value.StringObj, reusing
// the key's precomputed FNV-1a hash to locate its bucket. Grounded on the
// original implementation's hash-map: load factor capped at 0.75, growth to
// max(8, 2*capacity), deletions leave tombstones so probe chains are never
// broken.
type Table struct {
	entries []entry
	count   int // live entries plus tombstones, for load-factor accounting
}

// NewTable returns an empty table.
func NewTable() *Table { return &Table{} }

// Len returns the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	n := 0
	for _, e := range t.entries {
		if e.key != nil {
			n++
		}
	}
	return n
}

func (t *Table) grow(capacity int) {
	old := t.entries
	t.entries = make([]entry, capacity)
	t.count = 0
	for _, e := range old {
		if e.key == nil {
			continue
		}
		idx := findSlot(t.entries, e.key)
		t.entries[idx] = entry{key: e.key, val: e.val}
		t.count++
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

// findSlot locates the slot key belongs in (its own entry if present,
// otherwise the first empty or tombstone slot in its probe sequence).
// Compares by pointer identity: callers already hold the canonical interned
// key.
func findSlot(entries []entry, key *value.StringObj) int {
	capacity := len(entries)
	idx := int(key.Hash) % capacity
	var tombstone = -1
	for {
		e := &entries[idx]
		if e.key == nil {
			if !e.alive {
				if tombstone != -1 {
					return tombstone
				}
				return idx
			}
			if tombstone == -1 {
				tombstone = idx
			}
		} else if e.key == key {
			return idx
		}
		idx = (idx + 1) % capacity
	}
}

// Get returns the value associated with key, if present.
func (t *Table) Get(key *value.StringObj) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Value{}, false
	}
	idx := findSlot(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil {
		return value.Value{}, false
	}
	return e.val, true
}

// Set inserts or overwrites key's value. It returns true if key was not
// already present.
func (t *Table) Set(key *value.StringObj, val value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	idx := findSlot(t.entries, key)
	e := &t.entries[idx]
	isNew := e.key == nil
	if isNew && !e.alive {
		t.count++
	}
	e.key = key
	e.val = val
	e.alive = false
	return isNew
}

// Delete removes key, leaving a tombstone so other probe chains through
// this slot remain intact.
func (t *Table) Delete(key *value.StringObj) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := findSlot(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil {
		return false
	}
	e.key = nil
	e.alive = true
	return true
}

// findString scans the table comparing stored content (length, bytes and
// precomputed hash) rather than pointer identity. It is used only by the
// interner, which must find a canonical string object before it has a
// pointer to compare against.
func (t *Table) findString(s string, hash uint32) *value.StringObj {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := len(t.entries)
	idx := int(hash) % capacity
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if !e.alive {
				return nil
			}
		} else if e.key.Hash == hash && e.key.Bytes == s {
			return e.key
		}
		idx = (idx + 1) % capacity
	}
}
