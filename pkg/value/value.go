// Package value defines the runtime value and type model shared by the
// bytecode compiler, the virtual machine and the typecheck pass.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is the tagged union over every runtime value. Composite heap
// values (List, Set, Dict, Instance) are handles: copying a Value
// copies the handle, and mutation through one handle is visible
// through every alias. Tuples and strings are immutable.
type Value interface {
	value() // marker method
	String() string
}

// Nil is the absence of a value.
type Nil struct{}

func (Nil) value()         {}
func (Nil) String() string { return "nil" }

// Bool is a boolean.
type Bool bool

func (Bool) value() {}
func (b Bool) String() string {
	return strconv.FormatBool(bool(b))
}

// Int is a 64-bit signed integer.
type Int int64

func (Int) value() {}
func (i Int) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// Float is a 64-bit float.
type Float float64

func (Float) value() {}
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// String is an immutable string.
type String string

func (String) value() {}
func (s String) String() string {
	return string(s)
}

// Tuple is an immutable fixed-size sequence.
type Tuple []Value

func (Tuple) value() {}
func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range t {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	if len(t) == 1 {
		sb.WriteByte(',')
	}
	sb.WriteByte(')')
	return sb.String()
}

// List is a shared mutable sequence.
type List struct {
	Elems []Value
}

func NewList(elems ...Value) *List {
	return &List{Elems: elems}
}

func (*List) value() {}
func (l *List) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range l.Elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// Instance is a runtime value of a blob type: a shared mutable field
// map tagged with its blob.
type Instance struct {
	Blob   *Blob
	Fields map[string]Value
}

func (*Instance) value() {}
func (in *Instance) String() string {
	names := make([]string, 0, len(in.Fields))
	for name := range in.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(in.Blob.Name)
	sb.WriteString(" { ")
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", name, in.Fields[name])
	}
	sb.WriteString(" }")
	return sb.String()
}

// Blob is a named record type. Instances reference their blob by
// handle; two blobs are the same type only if they are the same
// registration.
type Blob struct {
	ID     int
	Name   string
	Fields map[string]Type
}

func (*Blob) value() {}
func (b *Blob) String() string {
	return fmt.Sprintf("blob %s", b.Name)
}

// Function is a compiled closure: its captured upvalue cells, its
// declared type and the index of its block. A negative block marks a
// placeholder fabricated from a type during checking.
type Function struct {
	Ups   []*Cell
	Ty    *FunctionType
	Block int
}

func (*Function) value() {}
func (f *Function) String() string {
	return fmt.Sprintf("fn#%d %s", f.Block, f.Ty)
}

// ExternFunction indexes the host registration table.
type ExternFunction int

func (ExternFunction) value() {}
func (e ExternFunction) String() string {
	return fmt.Sprintf("extern#%d", int(e))
}

// Iter is a shared, stateful, lazy sequence. Calling Next advances the
// sequence; iterators may be infinite and are never restartable.
type Iter struct {
	ItemTy Type
	Next   func() (Value, bool)
}

func (*Iter) value() {}
func (it *Iter) String() string {
	return fmt.Sprintf("iter %s", it.ItemTy)
}

// Union is a set of alternative values. It equals a plain value if any
// member does.
type Union []Value

func (Union) value() {}
func (u Union) String() string {
	var sb strings.Builder
	for i, v := range u {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Unknown is the placeholder propagated by the typecheck pass. It
// never appears during a real run.
type Unknown struct{}

func (Unknown) value()         {}
func (Unknown) String() string { return "unknown" }

// Ty is a type as a first-class value.
type Ty struct {
	T Type
}

func (Ty) value() {}
func (t Ty) String() string {
	return t.T.String()
}

// Field is a field-access token.
type Field string

func (Field) value() {}
func (f Field) String() string {
	return fmt.Sprintf(".%s", string(f))
}

// Truthy reports whether a value counts as true in a condition.
// Unknown is truthy so typechecking visits conditional bodies.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case Bool:
		return bool(v)
	case Nil:
		return false
	case Unknown:
		return true
	default:
		return true
	}
}
