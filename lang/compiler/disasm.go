package compiler

import (
	"fmt"
	"strings"

	"github.com/mna/vela/lang/value"
)

// Disassemble renders every instruction in chunk as a human-readable
// listing, offset-indexed like a conventional bytecode dump. Two
// consecutive disassemblies of the same chunk are always byte-identical,
// since the function is a pure mapping from chunk to text.
func Disassemble(chunk *value.Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		line, next := DisassembleInstruction(chunk, offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	return b.String()
}

// DisassembleInstruction renders the single instruction at offset and
// returns the rendered line along with the offset of the following
// instruction.
func DisassembleInstruction(chunk *value.Chunk, offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)

	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", chunk.Lines[offset])
	}

	op := Opcode(chunk.Code[offset])
	switch {
	case byteOperandOps[op]:
		arg := chunk.Code[offset+1]
		if op == OpConstant || op == OpDefineGlobal || op == OpGetGlobal || op == OpSetGlobal {
			fmt.Fprintf(&b, "%-18s %4d '%s'", op, arg, chunk.Constants[arg].String())
		} else {
			fmt.Fprintf(&b, "%-18s %4d", op, arg)
		}
		return b.String(), offset + 2
	case jumpOps[op]:
		jumpArg := uint16(chunk.Code[offset+1]) | uint16(chunk.Code[offset+2])<<8
		var target int
		if op == OpLoop {
			target = offset + 3 - int(jumpArg)
		} else {
			target = offset + 3 + int(jumpArg)
		}
		fmt.Fprintf(&b, "%-18s %4d -> %d", op, jumpArg, target)
		return b.String(), offset + 3
	default:
		fmt.Fprintf(&b, "%s", op)
		return b.String(), offset + 1
	}
}
