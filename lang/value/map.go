package value

import (
	"fmt"
	"sort"

	"github.com/dolthub/swiss"
)

// MapObj is a dictionary keyed by Value, backed by a swiss table. Unlike the
// core string interner (a hand-rolled open-addressed table specified
// exactly by the language spec), the map literal type is ordinary
// domain-stack plumbing, so it reuses the same open-addressing map library
// the teacher project depends on.
type MapObj struct {
	m *swiss.Map[Value, Value]
}

// NewMap returns a map with initial capacity for at least size entries.
func NewMap(size int) *MapObj {
	if size < 1 {
		size = 1
	}
	return &MapObj{m: swiss.NewMap[Value, Value](uint32(size))}
}

func (m *MapObj) ObjKind() ObjKind { return ObjKindMap }

func (m *MapObj) String() string {
	// Iteration order over a swiss.Map is unspecified, so sort by rendered
	// key for a deterministic display string.
	type pair struct{ k, v string }
	pairs := make([]pair, 0, m.m.Count())
	m.m.Iter(func(k, v Value) bool {
		pairs = append(pairs, pair{k.String(), v.String()})
		return false
	})
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	s := "{"
	for i, p := range pairs {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %s", p.k, p.v)
	}
	return s + "}"
}

func (m *MapObj) Len() int { return int(m.m.Count()) }

func (m *MapObj) Get(k Value) (Value, bool) { return m.m.Get(k) }

func (m *MapObj) Set(k, v Value) { m.m.Put(k, v) }
