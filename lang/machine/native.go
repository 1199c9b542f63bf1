package machine

import (
	"fmt"
	"time"

	"github.com/mna/vela/lang/value"
)

// defineNatives installs the standard native function registry into the
// VM's globals table, ready before any user source runs.
func (vm *VM) defineNatives() {
	vm.DefineNative("clock", 0, func(args []value.Value) (value.Value, error) {
		return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
	})

	vm.DefineNative("len", 1, func(args []value.Value) (value.Value, error) {
		v := args[0]
		if v.IsObject() {
			switch o := v.AsObject().(type) {
			case *value.StringObj:
				return value.Number(float64(len(o.Bytes))), nil
			case *value.ArrayObj:
				return value.Number(float64(o.Len())), nil
			case *value.MapObj:
				return value.Number(float64(o.Len())), nil
			}
		}
		return value.Nil, fmt.Errorf("len: unsupported operand type '%s'", v.TypeName())
	})

	vm.DefineNative("type", 1, func(args []value.Value) (value.Value, error) {
		return value.Obj(vm.interner.Intern(args[0].TypeName())), nil
	})

	vm.DefineNative("str", 1, func(args []value.Value) (value.Value, error) {
		return value.Obj(vm.interner.Intern(args[0].String())), nil
	})
}

// DefineNative registers a host-provided function under name, callable from
// the language with exactly arity arguments. Hosts may call this before
// Interpret to extend the standard registry.
func (vm *VM) DefineNative(name string, arity int, fn value.NativeFn) {
	nameObj := vm.interner.Intern(name)
	vm.globals.Set(nameObj, value.Obj(&value.NativeObj{Name: name, Arity: arity, Fn: fn}))
}
