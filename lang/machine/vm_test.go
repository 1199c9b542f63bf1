package machine_test

import (
	"bytes"
	"testing"

	"github.com/mna/vela/lang/intern"
	"github.com/mna/vela/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errBuf bytes.Buffer
	vm := machine.New(intern.New())
	vm.Stdout = &out
	vm.Stderr = &errBuf
	err = vm.Interpret(src)
	return out.String(), errBuf.String(), err
}

func TestInterpretUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, stderr, err := run(t, "print undefined_name;")
	require.Error(t, err)
	assert.Contains(t, stderr, "undefined identifier 'undefined_name'")
}

func TestInterpretCallingNonFunctionIsRuntimeError(t *testing.T) {
	_, stderr, err := run(t, "var x = 1; x();")
	require.Error(t, err)
	assert.Contains(t, stderr, "can only call functions")
}

func TestInterpretArityMismatchIsRuntimeError(t *testing.T) {
	_, stderr, err := run(t, "fun f(a, b) { return a + b; } f(1);")
	require.Error(t, err)
	assert.Contains(t, stderr, "expected 2 arguments but got 1")
}

func TestInterpretTypeMismatchIsRuntimeError(t *testing.T) {
	_, stderr, err := run(t, `print 1 + true;`)
	require.Error(t, err)
	assert.Contains(t, stderr, "operands must be two numbers or at least one string")
}

func TestInterpretRuntimeErrorIncludesStackTrace(t *testing.T) {
	_, stderr, err := run(t, "fun f() { return undefined_name; } f();")
	require.Error(t, err)
	assert.Contains(t, stderr, "[line 1] in f")
}

func TestInterpretAnonymousFunctionRoundTrip(t *testing.T) {
	stdout, stderr, err := run(t, "print (fun (x) { return x; })(42);")
	require.NoError(t, err, stderr)
	assert.Equal(t, "42\n", stdout)
}

func TestInterpretGlobalRedeclarationOverwrites(t *testing.T) {
	stdout, stderr, err := run(t, "var a = 1; var a = 2; print a;")
	require.NoError(t, err, stderr)
	assert.Equal(t, "2\n", stdout)
}

func TestInterpretArrayIndexOutOfRangeIsRuntimeError(t *testing.T) {
	_, stderr, err := run(t, "var a = [1, 2]; print a[5];")
	require.Error(t, err)
	assert.Contains(t, stderr, "array index out of range")
}

func TestInterpretMapMissingKeyReturnsNil(t *testing.T) {
	stdout, stderr, err := run(t, `var m = {"x": 1}; print m["y"];`)
	require.NoError(t, err, stderr)
	assert.Equal(t, "nil\n", stdout)
}

func TestInterpretStrictNotRejectsNonBool(t *testing.T) {
	_, stderr, err := run(t, "print !1;")
	require.Error(t, err)
	assert.Contains(t, stderr, "operand must be a bool")
}

func TestInterpretNativeClockReturnsNumber(t *testing.T) {
	stdout, stderr, err := run(t, "print type(clock());")
	require.NoError(t, err, stderr)
	assert.Equal(t, "number\n", stdout)
}

func TestInterpretDeepRecursionStaysWithinFrameLimit(t *testing.T) {
	_, stderr, err := run(t, `
fun count(n) {
  if (n <= 0) return 0;
  return 1 + count(n - 1);
}
print count(50);
`)
	require.NoError(t, err, stderr)
}

func TestInterpretRecursionBeyondFrameLimitOverflows(t *testing.T) {
	_, stderr, err := run(t, `
fun count(n) {
  return 1 + count(n - 1);
}
print count(1000);
`)
	require.Error(t, err)
	assert.Contains(t, stderr, "stack overflow")
}
