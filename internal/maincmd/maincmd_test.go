package maincmd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/mna/vela/internal/maincmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args []string, stdin string) (stdout, stderr string, code mainer.ExitCode) {
	t.Helper()
	var out, errBuf bytes.Buffer
	c := &maincmd.Cmd{BuildVersion: "0.0.0-test", BuildDate: "2026-01-01"}
	stdio := mainer.Stdio{
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errBuf,
	}
	code = c.Main(append([]string{"vela"}, args...), stdio)
	return out.String(), errBuf.String(), code
}

func TestHelpPrintsUsage(t *testing.T) {
	stdout, _, code := run(t, []string{"-h"}, "")
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, stdout, "usage: vela")
}

func TestVersionPrintsBuildInfo(t *testing.T) {
	stdout, _, code := run(t, []string{"-v"}, "")
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, stdout, "0.0.0-test")
	assert.Contains(t, stdout, "2026-01-01")
}

func TestTooManyArgsIsInvalid(t *testing.T) {
	_, stderr, code := run(t, []string{"a.vela", "b.vela"}, "")
	assert.Equal(t, mainer.InvalidArgs, code)
	assert.Contains(t, stderr, "invalid arguments")
}

func TestRunMissingFileFails(t *testing.T) {
	_, stderr, code := run(t, []string{"/no/such/file.vela"}, "")
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, stderr, "no such file")
}

func TestReplEvaluatesEachLineIndependently(t *testing.T) {
	stdout, stderr, code := run(t, nil, "print 1 + 1;\nprint 2 + 2;\n")
	require.Equal(t, mainer.Success, code)
	assert.Contains(t, stdout, "2\n")
	assert.Contains(t, stdout, "4\n")
	assert.Empty(t, stderr)
}

func TestReplContinuesAfterError(t *testing.T) {
	stdout, stderr, code := run(t, nil, "print undefined_name;\nprint 3;\n")
	require.Equal(t, mainer.Success, code)
	assert.Contains(t, stderr, "undefined identifier")
	assert.Contains(t, stdout, "3\n")
}

func TestReplSkipsBlankLines(t *testing.T) {
	stdout, _, code := run(t, nil, "\n   \nprint 1;\n")
	require.Equal(t, mainer.Success, code)
	assert.Equal(t, "> > > 1\n> ", stdout)
}

func TestReplDumpBytecodePrintsDisassembly(t *testing.T) {
	stdout, _, code := run(t, []string{"--dump-bytecode"}, "print 1;\n")
	require.Equal(t, mainer.Success, code)
	assert.Contains(t, stdout, "OP_PRINT")
}

func TestReplRejectsOverlongLine(t *testing.T) {
	long := strings.Repeat("a", 2000)
	_, stderr, code := run(t, nil, "print \""+long+"\";\n")
	require.Equal(t, mainer.Success, code)
	assert.Contains(t, stderr, "exceeds maximum length")
}
