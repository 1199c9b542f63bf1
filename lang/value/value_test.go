package value_test

import (
	"testing"

	"github.com/mna/vela/lang/value"
	"github.com/stretchr/testify/assert"
)

func TestTruthiness(t *testing.T) {
	assert.True(t, value.Nil.IsFalsy())
	assert.True(t, value.False.IsFalsy())
	assert.False(t, value.True.IsFalsy())
	assert.False(t, value.Number(0).IsFalsy())
	assert.False(t, value.Obj(&value.StringObj{Bytes: ""}).IsFalsy())
}

func TestEqual(t *testing.T) {
	assert.True(t, value.Equal(value.Nil, value.Nil))
	assert.True(t, value.Equal(value.Number(1), value.Number(1)))
	assert.False(t, value.Equal(value.Number(1), value.Number(2)))
	assert.False(t, value.Equal(value.Number(1), value.Nil))
	assert.True(t, value.Equal(value.True, value.True))
	assert.False(t, value.Equal(value.True, value.False))

	s1 := &value.StringObj{Bytes: "hi"}
	s2 := &value.StringObj{Bytes: "hi"}
	assert.True(t, value.Equal(value.Obj(s1), value.Obj(s1)))
	// distinct objects with equal content are NOT equal at this layer;
	// pointer identity for equal content is the interner's job.
	assert.False(t, value.Equal(value.Obj(s1), value.Obj(s2)))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "nil", value.Nil.String())
	assert.Equal(t, "true", value.True.String())
	assert.Equal(t, "false", value.False.String())
	assert.Equal(t, "7", value.Number(7).String())
	assert.Equal(t, "1.5", value.Number(1.5).String())
}

func TestArray(t *testing.T) {
	a := value.NewArray([]value.Value{value.Number(1), value.Number(2)})
	assert.Equal(t, 2, a.Len())
	v, ok := a.Get(1)
	assert.True(t, ok)
	assert.Equal(t, value.Number(2), v)
	assert.True(t, a.Set(0, value.Number(9)))
	assert.False(t, a.Set(5, value.Number(9)))
	assert.Equal(t, "[9, 2]", a.String())
}

func TestMap(t *testing.T) {
	m := value.NewMap(0)
	m.Set(value.Obj(&value.StringObj{Bytes: "k"}), value.Number(1))
	assert.Equal(t, 1, m.Len())
}
