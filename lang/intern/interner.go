package intern

import "github.com/mna/vela/lang/value"

const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// Hash computes the FNV-1a hash of s, the hash stored on every StringObj.
func Hash(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// Interner guarantees at most one *value.StringObj per distinct content: two
// calls to Intern with equal bytes return the identical pointer, so string
// equality elsewhere in the system reduces to pointer comparison.
type Interner struct {
	table *Table
}

// New returns an empty interner.
func New() *Interner { return &Interner{table: NewTable()} }

// Intern returns the canonical *value.StringObj for s, allocating one on
// first sight of this content.
func (in *Interner) Intern(s string) *value.StringObj {
	h := Hash(s)
	if existing := in.table.findString(s, h); existing != nil {
		return existing
	}
	obj := &value.StringObj{Bytes: s, Hash: h}
	in.table.Set(obj, value.True) // sentinel, unused
	return obj
}

// Len returns the number of distinct interned strings.
func (in *Interner) Len() int { return in.table.Len() }
