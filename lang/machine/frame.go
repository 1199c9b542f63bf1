package machine

import "github.com/mna/vela/lang/value"

// frame records one activation of a function: the function being executed,
// the instruction pointer into its chunk, and the value-stack index where
// its locals begin (slot 0 of that range holds the function value itself).
type frame struct {
	fn   *value.FunctionObj
	ip   int
	base int
}

func (fr *frame) chunk() *value.Chunk { return fr.fn.Chunk }

// line returns the source line of the instruction just executed, used when
// building a stack trace after a runtime error. It is only ever called
// while a frame is active, by which point its ip has advanced past at
// least one instruction (the opcode byte is consumed before dispatch).
func (fr *frame) line() int {
	return fr.chunk().Lines[fr.ip-1]
}
