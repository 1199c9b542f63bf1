// Package compiler implements the single-pass Pratt-style expression
// compiler, the bytecode instruction set it emits, and the offset-indexed
// disassembler used to inspect compiled chunks.
package compiler

import "fmt"

// Opcode identifies a single bytecode instruction. Every opcode is one
// byte; operand bytes, if any, immediately follow in the chunk's code
// stream.
type Opcode uint8

//nolint:revive
const (
	OpConstant Opcode = iota // u8 constant index
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpNegate
	OpNot
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpEqual
	OpLess
	OpGreater
	OpPrint
	OpDefineGlobal // u8 name constant index
	OpGetGlobal    // u8 name constant index
	OpSetGlobal    // u8 name constant index
	OpGetLocal     // u8 slot
	OpSetLocal     // u8 slot
	OpJump         // u16 offset
	OpJumpIfFalse  // u16 offset
	OpLoop         // u16 offset
	OpCall         // u8 argument count
	OpReturn

	// Domain-stack additions: array and map literals and indexing, layered
	// on top of the core instruction set without disturbing it.
	OpMakeArray // u8 element count
	OpMakeMap   // u8 pair count
	OpGetIndex
	OpSetIndex

	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpNegate:       "OP_NEGATE",
	OpNot:          "OP_NOT",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpEqual:        "OP_EQUAL",
	OpLess:         "OP_LESS",
	OpGreater:      "OP_GREATER",
	OpPrint:        "OP_PRINT",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpReturn:       "OP_RETURN",
	OpMakeArray:    "OP_MAKE_ARRAY",
	OpMakeMap:      "OP_MAKE_MAP",
	OpGetIndex:     "OP_GET_INDEX",
	OpSetIndex:     "OP_SET_INDEX",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opcodeNames[op]
	}
	return fmt.Sprintf("OP_ILLEGAL(%d)", uint8(op))
}

// byteOperandOps is the set of opcodes carrying a single u8 operand.
var byteOperandOps = map[Opcode]bool{
	OpConstant:     true,
	OpDefineGlobal: true,
	OpGetGlobal:    true,
	OpSetGlobal:    true,
	OpGetLocal:     true,
	OpSetLocal:     true,
	OpCall:         true,
	OpMakeArray:    true,
	OpMakeMap:      true,
}

// jumpOps is the set of opcodes carrying a u16 operand (low byte, then high
// byte), per the spec's jump-patching encoding.
var jumpOps = map[Opcode]bool{
	OpJump:        true,
	OpJumpIfFalse: true,
	OpLoop:        true,
}

// InstructionWidth returns the number of bytes occupied by the instruction
// at op, including its opcode byte.
func InstructionWidth(op Opcode) int {
	switch {
	case byteOperandOps[op]:
		return 2
	case jumpOps[op]:
		return 3
	default:
		return 1
	}
}
