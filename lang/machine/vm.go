// Package machine implements the stack-based virtual machine that executes
// compiled chunks: the fixed-capacity value and call-frame stacks, the
// fetch-decode-execute loop, and runtime diagnostics.
package machine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mna/vela/lang/compiler"
	"github.com/mna/vela/lang/intern"
	"github.com/mna/vela/lang/value"
)

// framesMax is the default recursion-depth bound. slotsPerFrame is fixed by
// the instruction set itself (GET_LOCAL/SET_LOCAL take an 8-bit slot
// operand) and is never configurable. The value stack's capacity is always
// their product; push still checks that capacity on its own, since a
// frame's temporaries can take it past slotsPerFrame values.
const (
	framesMax     = 64
	slotsPerFrame = 256
)

// Limits bounds the VM's call-frame depth, overridable by the host (see
// internal/config) so deployments can trade recursion headroom for memory.
type Limits struct {
	MaxCallFrames int
}

// DefaultLimits matches the spec's fixed-capacity stack: 64 frames of 256
// slots each.
var DefaultLimits = Limits{MaxCallFrames: framesMax}

// Status describes the VM's coarse execution state.
type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusHaltedOK
	StatusCompileError
	StatusRuntimeError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusHaltedOK:
		return "ok"
	case StatusCompileError:
		return "compile-error"
	case StatusRuntimeError:
		return "runtime-error"
	default:
		return "unknown"
	}
}

// VM owns a single value stack, call-frame stack, globals table and string
// interner; nothing is shared across VM instances. Object teardown is bulk,
// at garbage collection time (Go's own), rather than via an intrusive
// object list: the VM simply stops referencing heap objects once it drops
// its stack and globals, so there is no separate teardown walk to write.
type VM struct {
	Stdout io.Writer
	Stderr io.Writer

	interner *intern.Interner
	globals  *intern.Table

	stack []value.Value
	sp    int

	frames    []frame
	maxFrames int

	status Status
}

// New returns a VM with the default stack limits, an empty globals table,
// and the standard native registry installed, sharing the given interner
// with the compiler that will produce the chunks it runs.
func New(in *intern.Interner) *VM { return NewWithLimits(in, DefaultLimits) }

// NewWithLimits is like New but with host-supplied recursion-depth limits.
func NewWithLimits(in *intern.Interner, limits Limits) *VM {
	maxFrames := limits.MaxCallFrames
	if maxFrames <= 0 {
		maxFrames = framesMax
	}
	vm := &VM{
		interner:  in,
		globals:   intern.NewTable(),
		stack:     make([]value.Value, maxFrames*slotsPerFrame),
		maxFrames: maxFrames,
	}
	vm.defineNatives()
	return vm
}

// Status reports the VM's state after the most recent Interpret call.
func (vm *VM) Status() Status { return vm.status }

func (vm *VM) stdout() io.Writer {
	if vm.Stdout != nil {
		return vm.Stdout
	}
	return os.Stdout
}

func (vm *VM) stderr() io.Writer {
	if vm.Stderr != nil {
		return vm.Stderr
	}
	return os.Stderr
}

// Interpret compiles and runs source to completion. It returns nil on a
// successful run; otherwise a non-nil error whose text has already been
// written to Stderr, and Status reports which taxonomy the failure belongs
// to (compile-error or runtime-error).
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm.interner, vm.stderr())
	if err != nil {
		vm.status = StatusCompileError
		return err
	}

	vm.status = StatusRunning
	vm.sp = 0
	vm.frames = vm.frames[:0]

	if err := vm.push(value.Obj(fn)); err != nil {
		vm.status = StatusRuntimeError
		return err
	}
	if err := vm.call(fn, 0); err != nil {
		vm.status = StatusRuntimeError
		return err
	}

	if err := vm.run(); err != nil {
		vm.status = StatusRuntimeError
		return err
	}
	vm.status = StatusHaltedOK
	return nil
}

// --- stack primitives ---

func (vm *VM) push(v value.Value) error {
	if vm.sp >= len(vm.stack) {
		return vm.runtimeError("stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value { return vm.stack[vm.sp-1-distance] }

// --- calls ---

func (vm *VM) call(fn *value.FunctionObj, argCount int) error {
	if argCount != fn.Arity {
		return vm.runtimeError("expected %d arguments but got %d", fn.Arity, argCount)
	}
	if len(vm.frames) >= vm.maxFrames {
		return vm.runtimeError("stack overflow")
	}
	vm.frames = append(vm.frames, frame{fn: fn, base: vm.sp - argCount - 1})
	return nil
}

func (vm *VM) callValue(callee value.Value, argCount int) error {
	if !callee.IsObject() {
		return vm.runtimeError("can only call functions")
	}
	switch fn := callee.AsObject().(type) {
	case *value.FunctionObj:
		return vm.call(fn, argCount)
	case *value.NativeObj:
		if argCount != fn.Arity {
			return vm.runtimeError("expected %d arguments but got %d", fn.Arity, argCount)
		}
		args := vm.stack[vm.sp-argCount : vm.sp]
		result, err := fn.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.sp -= argCount + 1
		return vm.push(result)
	default:
		return vm.runtimeError("can only call functions")
	}
}

// --- the interpreter loop ---

func (vm *VM) run() error {
	for {
		fr := &vm.frames[len(vm.frames)-1]
		chunk := fr.chunk()
		op := compiler.Opcode(chunk.Code[fr.ip])
		fr.ip++

		switch op {
		case compiler.OpConstant:
			idx := chunk.Code[fr.ip]
			fr.ip++
			if err := vm.push(chunk.Constants[idx]); err != nil {
				return err
			}

		case compiler.OpNil:
			if err := vm.push(value.Nil); err != nil {
				return err
			}
		case compiler.OpTrue:
			if err := vm.push(value.True); err != nil {
				return err
			}
		case compiler.OpFalse:
			if err := vm.push(value.False); err != nil {
				return err
			}

		case compiler.OpPop:
			vm.pop()

		case compiler.OpNegate:
			v := vm.peek(0)
			if !v.IsNumber() {
				return vm.runtimeError("operand must be a number")
			}
			vm.pop()
			if err := vm.push(value.Number(-v.AsNumber())); err != nil {
				return err
			}

		case compiler.OpNot:
			// Strict: the operand must be a bool, so !nil and !0 are runtime
			// errors, unlike the truthiness OP_JUMP_IF_FALSE applies.
			v := vm.peek(0)
			if !v.IsBool() {
				return vm.runtimeError("operand must be a bool")
			}
			vm.pop()
			if err := vm.push(value.Bool(!v.AsBool())); err != nil {
				return err
			}

		case compiler.OpAdd:
			if err := vm.execAdd(); err != nil {
				return err
			}

		case compiler.OpSubtract:
			if err := vm.execNumericBinary(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case compiler.OpMultiply:
			if err := vm.execNumericBinary(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case compiler.OpDivide:
			if err := vm.execNumericBinary(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case compiler.OpEqual:
			b := vm.pop()
			a := vm.pop()
			if err := vm.push(value.Bool(value.Equal(a, b))); err != nil {
				return err
			}

		case compiler.OpLess:
			if err := vm.execNumericCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}
		case compiler.OpGreater:
			if err := vm.execNumericCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}

		case compiler.OpPrint:
			v := vm.pop()
			fmt.Fprintln(vm.stdout(), v.String())

		case compiler.OpDefineGlobal:
			name := chunk.Constants[chunk.Code[fr.ip]].AsObject().(*value.StringObj)
			fr.ip++
			vm.globals.Set(name, vm.peek(0))
			vm.pop()

		case compiler.OpGetGlobal:
			name := chunk.Constants[chunk.Code[fr.ip]].AsObject().(*value.StringObj)
			fr.ip++
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined identifier '%s'", name.Bytes)
			}
			if err := vm.push(v); err != nil {
				return err
			}

		case compiler.OpSetGlobal:
			name := chunk.Constants[chunk.Code[fr.ip]].AsObject().(*value.StringObj)
			fr.ip++
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeError("undefined identifier '%s'", name.Bytes)
			}
			vm.globals.Set(name, vm.peek(0))

		case compiler.OpGetLocal:
			slot := int(chunk.Code[fr.ip])
			fr.ip++
			if err := vm.push(vm.stack[fr.base+slot]); err != nil {
				return err
			}

		case compiler.OpSetLocal:
			slot := int(chunk.Code[fr.ip])
			fr.ip++
			vm.stack[fr.base+slot] = vm.peek(0)

		case compiler.OpJump:
			offset := vm.readShort(chunk, fr)
			fr.ip += int(offset)

		case compiler.OpJumpIfFalse:
			offset := vm.readShort(chunk, fr)
			if vm.peek(0).IsFalsy() {
				fr.ip += int(offset)
			}

		case compiler.OpLoop:
			offset := vm.readShort(chunk, fr)
			fr.ip -= int(offset)

		case compiler.OpCall:
			argCount := int(chunk.Code[fr.ip])
			fr.ip++
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}

		case compiler.OpReturn:
			result := vm.pop()
			finishedBase := fr.base
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.sp = finishedBase
			if len(vm.frames) == 0 {
				return nil
			}
			if err := vm.push(result); err != nil {
				return err
			}

		case compiler.OpMakeArray:
			n := int(chunk.Code[fr.ip])
			fr.ip++
			elems := make([]value.Value, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			if err := vm.push(value.Obj(value.NewArray(elems))); err != nil {
				return err
			}

		case compiler.OpMakeMap:
			n := int(chunk.Code[fr.ip])
			fr.ip++
			m := value.NewMap(n)
			base := vm.sp - n*2
			for i := 0; i < n; i++ {
				m.Set(vm.stack[base+i*2], vm.stack[base+i*2+1])
			}
			vm.sp = base
			if err := vm.push(value.Obj(m)); err != nil {
				return err
			}

		case compiler.OpGetIndex:
			if err := vm.execGetIndex(); err != nil {
				return err
			}

		case compiler.OpSetIndex:
			if err := vm.execSetIndex(); err != nil {
				return err
			}

		default:
			return vm.runtimeError("unreachable opcode %s", op)
		}
	}
}

func (vm *VM) readShort(chunk *value.Chunk, fr *frame) uint16 {
	lo := uint16(chunk.Code[fr.ip])
	hi := uint16(chunk.Code[fr.ip+1])
	fr.ip += 2
	return lo | hi<<8
}

func isString(v value.Value) bool {
	return v.IsObject() && v.AsObject().ObjKind() == value.ObjKindString
}

func (vm *VM) execAdd() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case isString(a) || isString(b):
		vm.pop()
		vm.pop()
		concatenated := a.String() + b.String()
		return vm.push(value.Obj(vm.interner.Intern(concatenated)))
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		return vm.push(value.Number(a.AsNumber() + b.AsNumber()))
	default:
		return vm.runtimeError("operands must be two numbers or at least one string")
	}
}

func (vm *VM) execNumericBinary(op func(a, b float64) float64) error {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	vm.pop()
	vm.pop()
	return vm.push(value.Number(op(a.AsNumber(), b.AsNumber())))
}

func (vm *VM) execNumericCompare(op func(a, b float64) bool) error {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	vm.pop()
	vm.pop()
	return vm.push(value.Bool(op(a.AsNumber(), b.AsNumber())))
}

func (vm *VM) execGetIndex() error {
	idx := vm.pop()
	recv := vm.pop()
	if !recv.IsObject() {
		return vm.runtimeError("cannot index a %s value", recv.TypeName())
	}
	switch o := recv.AsObject().(type) {
	case *value.ArrayObj:
		if !idx.IsNumber() {
			return vm.runtimeError("array index must be a number")
		}
		v, ok := o.Get(int(idx.AsNumber()))
		if !ok {
			return vm.runtimeError("array index out of range")
		}
		return vm.push(v)
	case *value.MapObj:
		v, ok := o.Get(idx)
		if !ok {
			return vm.push(value.Nil)
		}
		return vm.push(v)
	default:
		return vm.runtimeError("cannot index a %s value", recv.TypeName())
	}
}

func (vm *VM) execSetIndex() error {
	val := vm.pop()
	idx := vm.pop()
	recv := vm.pop()
	if !recv.IsObject() {
		return vm.runtimeError("cannot index a %s value", recv.TypeName())
	}
	switch o := recv.AsObject().(type) {
	case *value.ArrayObj:
		if !idx.IsNumber() {
			return vm.runtimeError("array index must be a number")
		}
		if !o.Set(int(idx.AsNumber()), val) {
			return vm.runtimeError("array index out of range")
		}
	case *value.MapObj:
		o.Set(idx, val)
	default:
		return vm.runtimeError("cannot index a %s value", recv.TypeName())
	}
	return vm.push(val)
}

// runtimeError writes a one-line reason followed by a frame-by-frame stack
// trace to Stderr and returns an error carrying the reason.
func (vm *VM) runtimeError(format string, args ...any) error {
	reason := fmt.Sprintf(format, args...)

	var b strings.Builder
	b.WriteString(reason)
	b.WriteByte('\n')
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fmt.Fprintf(&b, "[line %d] in %s\n", fr.line(), fr.fn.DisplayName())
	}
	io.WriteString(vm.stderr(), b.String())

	return errors.New(reason)
}
