package compiler_test

import (
	"bytes"
	"testing"

	"github.com/mna/vela/lang/compiler"
	"github.com/mna/vela/lang/intern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassembleIsDeterministic(t *testing.T) {
	var stderr bytes.Buffer
	fn, err := compiler.Compile("var a = 1; print a + 2;", intern.New(), &stderr)
	require.NoError(t, err)

	first := compiler.Disassemble(fn.Chunk, "script")
	second := compiler.Disassemble(fn.Chunk, "script")
	assert.Equal(t, first, second)
	assert.Contains(t, first, "== script ==")
	assert.Contains(t, first, "OP_CONSTANT")
	assert.Contains(t, first, "OP_RETURN")
}

func TestDisassembleAnnotatesJumpTargets(t *testing.T) {
	var stderr bytes.Buffer
	fn, err := compiler.Compile("if (true) { print 1; }", intern.New(), &stderr)
	require.NoError(t, err)

	out := compiler.Disassemble(fn.Chunk, "script")
	assert.Contains(t, out, "OP_JUMP_IF_FALSE")
	assert.Contains(t, out, "->")
}

func TestDisassembleAnnotatesConstantValues(t *testing.T) {
	var stderr bytes.Buffer
	fn, err := compiler.Compile(`var a = "hello";`, intern.New(), &stderr)
	require.NoError(t, err)

	out := compiler.Disassemble(fn.Chunk, "script")
	assert.Contains(t, out, "'hello'")
}
