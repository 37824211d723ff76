package bytecode

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/sylt-lang/sylt/pkg/value"
)

var log = commonlog.GetLogger("sylt.vm")

// CallFrame is one active function invocation: its block, instruction
// pointer, stack base and the closure being run. Locals alias the
// operand stack above the base.
type CallFrame struct {
	block    *Block
	blockIdx int
	ip       int
	base     int
	fn       *value.Function // nil for the entry frame
}

// VM executes a compiled program on a single growable operand stack.
// One VM instance must be owned by one goroutine at a time; values
// are not safe for concurrent sharing.
type VM struct {
	prog    *Program
	externs *Registry
	stack   []value.Value
	frames  []CallFrame
	globals []value.Value
	out     io.Writer

	// typecheck runs the same bytecode with Unknown propagation,
	// placeholder externs and suppressed prints.
	typecheck bool
	entered   map[int]bool
}

// NewVM creates a VM for a program linked against a registry.
func NewVM(prog *Program, externs *Registry) *VM {
	return &VM{prog: prog, externs: externs, out: os.Stdout}
}

// SetOutput redirects print statements.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Run executes the program for real.
func (vm *VM) Run() error {
	vm.typecheck = false
	return vm.exec()
}

// Check executes the program as a typecheck pass: no observable side
// effects, every block entered at most once.
func (vm *VM) Check() error {
	vm.typecheck = true
	vm.entered = map[int]bool{}
	return vm.exec()
}

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(depth int) value.Value {
	return vm.stack[len(vm.stack)-1-depth]
}

func (vm *VM) frame() *CallFrame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	f := vm.frame()
	return &RuntimeError{
		File:    f.block.File,
		Line:    f.block.Line(f.ip - 1),
		Message: fmt.Sprintf(format, args...),
	}
}

func (vm *VM) typeError(format string, args ...interface{}) error {
	f := vm.frame()
	return &TypeError{
		File:    f.block.File,
		Line:    f.block.Line(f.ip - 1),
		Message: fmt.Sprintf(format, args...),
	}
}

func isUnknown(v value.Value) bool {
	_, ok := v.(value.Unknown)
	return ok
}

func (vm *VM) exec() error {
	vm.stack = vm.stack[:0]
	vm.globals = make([]value.Value, vm.prog.Globals)
	for i := range vm.globals {
		vm.globals[i] = value.Nil{}
	}
	vm.frames = []CallFrame{{block: vm.prog.Entry(), blockIdx: 0}}
	if vm.typecheck {
		vm.entered[0] = true
	}

	for {
		f := vm.frame()
		if f.ip >= len(f.block.Instrs) {
			return vm.runtimeError("fell off the end of %s", f.block.Name)
		}
		instr := f.block.Instrs[f.ip]
		f.ip++

		done, err := vm.step(f, instr)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (vm *VM) step(f *CallFrame, instr Instr) (bool, error) {
	switch instr.Op {
	case OpConstant:
		vm.push(vm.prog.Constants[instr.A])

	case OpPop:
		vm.pop()

	case OpPopN:
		vm.stack = vm.stack[:len(vm.stack)-instr.A]

	case OpAdd, OpSub, OpMul, OpDiv, OpGreater, OpLess:
		if err := vm.binaryOp(instr.Op); err != nil {
			return false, err
		}

	case OpNeg:
		switch v := vm.pop().(type) {
		case value.Int:
			vm.push(value.Int(-v))
		case value.Float:
			vm.push(value.Float(-v))
		case value.Unknown:
			vm.push(value.Unknown{})
		default:
			return false, vm.operandError("-", v)
		}

	case OpNot:
		switch v := vm.pop().(type) {
		case value.Bool:
			vm.push(value.Bool(!v))
		case value.Unknown:
			vm.push(value.Unknown{})
		default:
			return false, vm.operandError("!", v)
		}

	case OpEqual:
		b, a := vm.pop(), vm.pop()
		if isUnknown(a) || isUnknown(b) {
			vm.push(value.Unknown{})
		} else {
			vm.push(value.Bool(value.Equal(a, b)))
		}

	case OpAnd:
		if err := vm.boolOp(func(a, b bool) bool { return a && b }); err != nil {
			return false, err
		}

	case OpOr:
		if err := vm.boolOp(func(a, b bool) bool { return a || b }); err != nil {
			return false, err
		}

	case OpAssert:
		switch v := vm.pop().(type) {
		case value.Bool:
			if !v {
				return false, vm.runtimeError("assertion failed")
			}
			vm.push(value.Nil{})
		case value.Unknown:
			vm.push(value.Nil{})
		default:
			return false, vm.operandError("<=>", v)
		}

	case OpContains:
		container, elem := vm.pop(), vm.pop()
		result, err := vm.contains(elem, container)
		if err != nil {
			return false, err
		}
		vm.push(result)

	case OpTuple:
		elems := make(value.Tuple, instr.A)
		copy(elems, vm.stack[len(vm.stack)-instr.A:])
		vm.stack = vm.stack[:len(vm.stack)-instr.A]
		vm.push(elems)

	case OpList:
		elems := make([]value.Value, instr.A)
		copy(elems, vm.stack[len(vm.stack)-instr.A:])
		vm.stack = vm.stack[:len(vm.stack)-instr.A]
		vm.push(&value.List{Elems: elems})

	case OpSet:
		set := value.NewSet()
		for _, v := range vm.stack[len(vm.stack)-instr.A:] {
			if !value.Hashable(v) {
				if isUnknown(v) {
					continue
				}
				return false, vm.runtimeError("unhashable set element %s", v)
			}
			set.Add(v)
		}
		vm.stack = vm.stack[:len(vm.stack)-instr.A]
		vm.push(set)

	case OpDict:
		dict := value.NewDict()
		pairs := vm.stack[len(vm.stack)-2*instr.A:]
		for i := 0; i < len(pairs); i += 2 {
			key, val := pairs[i], pairs[i+1]
			if !value.Hashable(key) {
				if isUnknown(key) {
					continue
				}
				return false, vm.runtimeError("unhashable dict key %s", key)
			}
			dict.Set(key, val)
		}
		vm.stack = vm.stack[:len(vm.stack)-2*instr.A]
		vm.push(dict)

	case OpReadGlobal:
		vm.push(vm.globals[instr.A])

	case OpAssignGlobal:
		vm.globals[instr.A] = vm.pop()

	case OpReadLocal:
		v := vm.stack[f.base+instr.A]
		if cell, ok := v.(*value.Cell); ok {
			v = cell.Get()
		}
		vm.push(v)

	case OpAssignLocal:
		v := vm.pop()
		if cell, ok := vm.stack[f.base+instr.A].(*value.Cell); ok {
			cell.Set(v)
		} else {
			vm.stack[f.base+instr.A] = v
		}

	case OpBoxLocal:
		vm.stack[f.base+instr.A] = value.NewCell(vm.stack[f.base+instr.A])

	case OpReadUpvalue:
		vm.push(f.fn.Ups[instr.A].Get())

	case OpAssignUpvalue:
		f.fn.Ups[instr.A].Set(vm.pop())

	case OpGetField:
		if err := vm.getField(vm.prog.Strings[instr.A]); err != nil {
			return false, err
		}

	case OpAssignField:
		if err := vm.assignField(vm.prog.Strings[instr.A]); err != nil {
			return false, err
		}

	case OpGetIndex:
		if err := vm.getIndex(); err != nil {
			return false, err
		}

	case OpAssignIndex:
		if err := vm.assignIndex(); err != nil {
			return false, err
		}

	case OpJmp:
		f.ip = instr.A

	case OpJmpFalse:
		switch v := vm.pop().(type) {
		case value.Bool:
			if !v {
				f.ip = instr.A
			}
		case value.Unknown:
			// Checking continues down the then-branch.
		default:
			if vm.typecheck {
				return false, vm.typeError("condition is %s, not bool", value.TypeOf(v))
			}
			return false, vm.runtimeError("condition is %s, not bool", value.TypeOf(v))
		}

	case OpCall:
		if err := vm.call(instr.A); err != nil {
			return false, err
		}

	case OpReturn:
		result := vm.pop()
		if len(vm.frames) == 1 {
			vm.globals[0] = result
			return true, nil
		}
		base := f.base
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.stack = vm.stack[:base-1] // also drops the callee
		vm.push(result)

	case OpClosure:
		block := vm.prog.Blocks[instr.A]
		ups := make([]*value.Cell, len(block.Ups))
		for i, desc := range block.Ups {
			if desc.InParent {
				cell, ok := vm.stack[f.base+desc.Slot].(*value.Cell)
				if !ok {
					return false, vm.runtimeError("captured slot %d is not boxed", desc.Slot)
				}
				ups[i] = cell
			} else {
				ups[i] = f.fn.Ups[desc.Slot]
			}
		}
		vm.push(&value.Function{Ups: ups, Ty: block.Ty, Block: instr.A})

	case OpBlobInst:
		if err := vm.blobInst(instr.A); err != nil {
			return false, err
		}

	case OpPrint:
		v := vm.pop()
		if !vm.typecheck {
			fmt.Fprintln(vm.out, v.String())
		}

	default:
		return false, vm.runtimeError("unknown opcode %s", instr.Op)
	}
	return false, nil
}

func (vm *VM) operandError(op string, operands ...value.Value) error {
	shapes := ""
	for i, v := range operands {
		if i > 0 {
			shapes += ", "
		}
		shapes += value.TypeOf(v).String()
	}
	if vm.typecheck {
		return vm.typeError("%s is not defined for %s", op, shapes)
	}
	return vm.runtimeError("%s is not defined for %s", op, shapes)
}

// binaryOp implements the numeric, string and comparison operators
// with Unknown propagation.
func (vm *VM) binaryOp(op Opcode) error {
	b, a := vm.pop(), vm.pop()

	if isUnknown(a) || isUnknown(b) {
		vm.push(value.Unknown{})
		return nil
	}

	switch a := a.(type) {
	case value.Int:
		if b, ok := b.(value.Int); ok {
			switch op {
			case OpAdd:
				vm.push(a + b)
			case OpSub:
				vm.push(a - b)
			case OpMul:
				vm.push(a * b)
			case OpDiv:
				if b == 0 {
					return vm.runtimeError("division by zero")
				}
				vm.push(a / b)
			case OpGreater:
				vm.push(value.Bool(a > b))
			case OpLess:
				vm.push(value.Bool(a < b))
			}
			return nil
		}

	case value.Float:
		if b, ok := b.(value.Float); ok {
			switch op {
			case OpAdd:
				vm.push(a + b)
			case OpSub:
				vm.push(a - b)
			case OpMul:
				vm.push(a * b)
			case OpDiv:
				vm.push(a / b)
			case OpGreater:
				vm.push(value.Bool(a > b))
			case OpLess:
				vm.push(value.Bool(a < b))
			}
			return nil
		}

	case value.String:
		if b, ok := b.(value.String); ok {
			switch op {
			case OpAdd:
				vm.push(a + b)
			case OpGreater:
				vm.push(value.Bool(a > b))
			case OpLess:
				vm.push(value.Bool(a < b))
			default:
				return vm.operandError(op.String(), a, b)
			}
			return nil
		}
	}
	return vm.operandError(op.String(), a, b)
}

func (vm *VM) boolOp(combine func(a, b bool) bool) error {
	b, a := vm.pop(), vm.pop()
	if isUnknown(a) || isUnknown(b) {
		vm.push(value.Unknown{})
		return nil
	}
	ab, aok := a.(value.Bool)
	bb, bok := b.(value.Bool)
	if !aok || !bok {
		return vm.operandError("and/or", a, b)
	}
	vm.push(value.Bool(combine(bool(ab), bool(bb))))
	return nil
}

func (vm *VM) contains(elem, container value.Value) (value.Value, error) {
	if isUnknown(elem) || isUnknown(container) {
		return value.Unknown{}, nil
	}
	switch c := container.(type) {
	case *value.Set:
		return value.Bool(c.Contains(elem)), nil
	case *value.Dict:
		return value.Bool(c.Contains(elem)), nil
	case *value.List:
		for _, v := range c.Elems {
			if value.Equal(v, elem) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case value.Tuple:
		for _, v := range c {
			if value.Equal(v, elem) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	default:
		return nil, vm.operandError("in", elem, container)
	}
}

func (vm *VM) getField(name string) error {
	v := vm.pop()
	switch v := v.(type) {
	case *value.Instance:
		field, ok := v.Fields[name]
		if !ok {
			return vm.runtimeError("%s has no field %q", v.Blob.Name, name)
		}
		vm.push(field)
		return nil
	case value.Unknown:
		vm.push(value.Unknown{})
		return nil
	default:
		return vm.operandError("."+name, v)
	}
}

func (vm *VM) assignField(name string) error {
	val := vm.pop()
	obj := vm.pop()
	switch obj := obj.(type) {
	case *value.Instance:
		if _, ok := obj.Fields[name]; !ok {
			return vm.runtimeError("%s has no field %q", obj.Blob.Name, name)
		}
		if vm.typecheck {
			want := obj.Blob.Fields[name]
			if !value.Fits(value.TypeOf(val), want) {
				return vm.typeError("field %q is %s, got %s", name, want, value.TypeOf(val))
			}
		}
		obj.Fields[name] = val
		return nil
	case value.Unknown:
		return nil
	default:
		return vm.operandError("."+name, obj)
	}
}

func (vm *VM) getIndex() error {
	idx := vm.pop()
	container := vm.pop()

	if isUnknown(container) {
		vm.push(value.Unknown{})
		return nil
	}

	switch c := container.(type) {
	case *value.List:
		i, err := vm.intIndex(idx, len(c.Elems))
		if err != nil {
			return err
		}
		if i < 0 {
			vm.push(value.Unknown{})
			return nil
		}
		vm.push(c.Elems[i])

	case value.Tuple:
		i, err := vm.intIndex(idx, len(c))
		if err != nil {
			return err
		}
		if i < 0 {
			vm.push(value.Unknown{})
			return nil
		}
		vm.push(c[i])

	case value.String:
		i, err := vm.intIndex(idx, len(c))
		if err != nil {
			return err
		}
		if i < 0 {
			vm.push(value.Unknown{})
			return nil
		}
		vm.push(value.String(c[i : i+1]))

	case *value.Dict:
		if isUnknown(idx) {
			vm.push(value.Unknown{})
			return nil
		}
		v, ok := c.Get(idx)
		if !ok {
			return vm.runtimeError("key %s is not in the dict", idx)
		}
		vm.push(v)

	default:
		return vm.operandError("[]", container, idx)
	}
	return nil
}

// intIndex validates an integer index. During typechecking an Unknown
// index is fine and reports -1 so the caller pushes Unknown.
func (vm *VM) intIndex(idx value.Value, length int) (int, error) {
	switch idx := idx.(type) {
	case value.Int:
		i := int(idx)
		if i < 0 || i >= length {
			if vm.typecheck {
				// Placeholder containers have representative sizes,
				// not real ones.
				return -1, nil
			}
			return 0, vm.runtimeError("index %d out of range, length %d", i, length)
		}
		return i, nil
	case value.Unknown:
		return -1, nil
	default:
		return 0, vm.operandError("[]", idx)
	}
}

func (vm *VM) assignIndex() error {
	val := vm.pop()
	idx := vm.pop()
	container := vm.pop()

	switch c := container.(type) {
	case *value.List:
		i, err := vm.intIndex(idx, len(c.Elems))
		if err != nil {
			return err
		}
		if i >= 0 {
			c.Elems[i] = val
		}
		return nil

	case *value.Dict:
		if isUnknown(idx) {
			return nil
		}
		if !value.Hashable(idx) {
			return vm.runtimeError("unhashable dict key %s", idx)
		}
		c.Set(idx, val)
		return nil

	case value.Tuple, value.String:
		return vm.runtimeError("%s is immutable", value.TypeOf(container))

	case value.Unknown:
		return nil

	default:
		return vm.operandError("[]=", container)
	}
}

// call invokes the value under n arguments: a compiled closure or an
// extern. During typechecking argument shapes are checked against the
// declared parameter types, each block is entered at most once, and
// externs run in placeholder mode.
func (vm *VM) call(n int) error {
	args := vm.stack[len(vm.stack)-n:]
	callee := vm.peek(n)

	switch fn := callee.(type) {
	case *value.Function:
		if vm.typecheck {
			for i, arg := range args {
				if i >= len(fn.Ty.Params) {
					break
				}
				if !value.Fits(value.TypeOf(arg), fn.Ty.Params[i]) {
					return vm.typeError("argument %d is %s, want %s",
						i+1, value.TypeOf(arg), fn.Ty.Params[i])
				}
			}
		}

		// Placeholders fabricated from a type have no block to run.
		if fn.Block < 0 {
			vm.stack = vm.stack[:len(vm.stack)-n-1]
			vm.push(value.Default(fn.Ty.Ret))
			return nil
		}

		block := vm.prog.Blocks[fn.Block]
		if n != block.Args {
			return vm.runtimeError("%s takes %d arguments, got %d", block.Name, block.Args, n)
		}

		if vm.typecheck && vm.entered[fn.Block] {
			// Recursion guard: re-entry yields the declared shape.
			vm.stack = vm.stack[:len(vm.stack)-n-1]
			vm.push(value.Default(fn.Ty.Ret))
			return nil
		}
		if vm.typecheck {
			vm.entered[fn.Block] = true
		}

		log.Debugf("call %s", block.Name)
		vm.frames = append(vm.frames, CallFrame{
			block:    block,
			blockIdx: fn.Block,
			base:     len(vm.stack) - n,
			fn:       fn,
		})
		return nil

	case value.ExternFunction:
		def, ok := vm.externs.Get(int(fn))
		if !ok {
			return vm.runtimeError("extern %d is not registered", int(fn))
		}
		callArgs := make([]value.Value, n)
		copy(callArgs, args)
		vm.stack = vm.stack[:len(vm.stack)-n-1]

		result, err := def.Fn(callArgs, vm.typecheck)
		if err != nil {
			return err
		}
		vm.push(result)
		return nil

	case value.Unknown:
		vm.stack = vm.stack[:len(vm.stack)-n-1]
		vm.push(value.Unknown{})
		return nil

	default:
		return vm.operandError("call", callee)
	}
}

func (vm *VM) blobInst(n int) error {
	pairs := vm.stack[len(vm.stack)-2*n:]
	blobVal := vm.peek(2 * n)

	blob, ok := blobVal.(*value.Blob)
	if !ok {
		if isUnknown(blobVal) {
			vm.stack = vm.stack[:len(vm.stack)-2*n-1]
			vm.push(value.Unknown{})
			return nil
		}
		return vm.operandError("blob instantiation", blobVal)
	}

	fields := make(map[string]value.Value, len(blob.Fields))
	for i := 0; i < len(pairs); i += 2 {
		name := string(pairs[i].(value.String))
		want, ok := blob.Fields[name]
		if !ok {
			return vm.runtimeError("%s has no field %q", blob.Name, name)
		}
		if vm.typecheck && !value.Fits(value.TypeOf(pairs[i+1]), want) {
			return vm.typeError("field %q is %s, got %s", name, want, value.TypeOf(pairs[i+1]))
		}
		fields[name] = pairs[i+1]
	}
	for name := range blob.Fields {
		if _, ok := fields[name]; !ok {
			fields[name] = value.Nil{}
		}
	}

	vm.stack = vm.stack[:len(vm.stack)-2*n-1]
	vm.push(&value.Instance{Blob: blob, Fields: fields})
	return nil
}
