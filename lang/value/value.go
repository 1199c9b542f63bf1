// Package value implements the runtime value model shared by the compiler
// and the machine: a tagged union of nil, bool, number and heap object,
// plus the heap object kinds themselves and the bytecode chunk they carry.
package value

import (
	"fmt"
	"math"
)

// Kind identifies which variant of the Value tagged union is populated.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Value is a tagged union: exactly one of its fields is meaningful,
// selected by Kind. It is small and comparable by value (except for the
// Object variant, which compares by the identity of the interface's
// underlying pointer — see Equal).
type Value struct {
	kind Kind
	b    bool
	n    float64
	o    Object
}

// Nil is the singleton nil value.
var Nil = Value{kind: KindNil}

// True and False are the two bool values.
var (
	True  = Value{kind: KindBool, b: true}
	False = Value{kind: KindBool, b: false}
)

// Bool returns the Value for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number returns the Value wrapping the float64 n.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Obj returns the Value wrapping the heap Object o.
func Obj(o Object) Value { return Value{kind: KindObject, o: o} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObject() bool { return v.kind == KindObject }

// AsBool returns the bool payload; valid only when IsBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the float64 payload; valid only when IsNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsObject returns the Object payload; valid only when IsObject.
func (v Value) AsObject() Object { return v.o }

// IsFalsy reports the language's truthiness rule: nil and false are falsy,
// everything else (including zero and the empty string) is truthy.
func (v Value) IsFalsy() bool {
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return !v.b
	default:
		return false
	}
}

// Equal implements value equality: same tag required; numbers compare by
// IEEE-754 equality, booleans by value, nil equals nil, and objects compare
// by identity (string interning makes content-equal strings identical
// pointers, so string equality remains a pointer comparison).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindObject:
		return a.o == b.o
	default:
		panic("unreachable value kind")
	}
}

// TypeName returns a short string describing v's runtime type, as exposed
// to the language by the type() native.
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindObject:
		return v.o.ObjKind().String()
	default:
		panic("unreachable value kind")
	}
}

// String renders v the way the language's print statement and string
// concatenation (via OP_ADD) do: numbers via %g, booleans as true/false,
// nil as nil, and objects via their own String method.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindObject:
		return v.o.String()
	default:
		panic("unreachable value kind")
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	return fmt.Sprintf("%g", n)
}
