// Package stdlib registers the built-in extern functions. Every
// extern is dual-mode: invoked for real it performs its effect, while
// in typecheck mode it returns a placeholder of its declared return
// shape and touches nothing.
package stdlib

import (
	"math"
	"math/rand"
	"time"

	"github.com/sylt-lang/sylt/pkg/bytecode"
	"github.com/sylt-lang/sylt/pkg/value"
)

// Register installs the standard externs into a registry, in a fixed
// registration order.
func Register(r *bytecode.Registry) {
	r.Register(dual("len", fnTy(value.UnknownType{}, value.IntType{}), stdLen))
	r.Register(dual("push", fnTy2(value.UnknownType{}, value.UnknownType{}, value.VoidType{}), stdPush))
	r.Register(dual("prepend", fnTy2(value.UnknownType{}, value.UnknownType{}, value.VoidType{}), stdPrepend))

	r.Register(dual("sin", fnTy(value.FloatType{}, value.FloatType{}), floatFn("sin", math.Sin)))
	r.Register(dual("cos", fnTy(value.FloatType{}, value.FloatType{}), floatFn("cos", math.Cos)))
	r.Register(dual("sqrt", fnTy(value.FloatType{}, value.FloatType{}), floatFn("sqrt", math.Sqrt)))
	r.Register(dual("abs", fnTy(value.FloatType{}, value.FloatType{}), floatFn("abs", math.Abs)))
	r.Register(dual("atan2", fnTy2(value.FloatType{}, value.FloatType{}, value.FloatType{}), stdAtan2))

	r.Register(dual("as_float", fnTy(value.IntType{}, value.FloatType{}), stdAsFloat))
	r.Register(dual("as_int", fnTy(value.FloatType{}, value.IntType{}), stdAsInt))
	r.Register(dual("as_str", fnTy(value.UnknownType{}, value.StringType{}), stdAsStr))

	r.Register(dual("clock", &value.FunctionType{Ret: value.FloatType{}}, stdClock))
	r.Register(dual("random", &value.FunctionType{Ret: value.FloatType{}}, stdRandom))

	r.Register(dual("range", fnTy(value.IntType{}, value.IterType{Elem: value.IntType{}}), stdRange))
	r.Register(bytecode.ExternDef{Name: "next", Fn: stdNext, Ty: fnTy(value.IterType{Elem: value.UnknownType{}}, value.UnknownType{})})
}

// NewRegistry returns a registry preloaded with the standard externs.
func NewRegistry() *bytecode.Registry {
	r := bytecode.NewRegistry()
	Register(r)
	return r
}

func fnTy(param, ret value.Type) *value.FunctionType {
	return &value.FunctionType{Params: []value.Type{param}, Ret: ret}
}

func fnTy2(a, b, ret value.Type) *value.FunctionType {
	return &value.FunctionType{Params: []value.Type{a, b}, Ret: ret}
}

// dual wraps a real implementation so the typecheck pass gets a
// placeholder built from the declared return type instead.
func dual(name string, ty *value.FunctionType, real bytecode.Extern) bytecode.ExternDef {
	return bytecode.ExternDef{
		Name: name,
		Ty:   ty,
		Fn: func(args []value.Value, typecheck bool) (value.Value, error) {
			if typecheck {
				return value.Default(ty.Ret), nil
			}
			return real(args, false)
		},
	}
}

func stdLen(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 1 {
		return nil, &bytecode.ArgError{Name: "len", Args: args}
	}
	switch v := args[0].(type) {
	case *value.List:
		return value.Int(len(v.Elems)), nil
	case value.Tuple:
		return value.Int(len(v)), nil
	case value.String:
		return value.Int(len(v)), nil
	case *value.Set:
		return value.Int(v.Len()), nil
	case *value.Dict:
		return value.Int(v.Len()), nil
	default:
		return nil, &bytecode.ArgError{Name: "len", Args: args}
	}
}

func stdPush(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 2 {
		return nil, &bytecode.ArgError{Name: "push", Args: args}
	}
	list, ok := args[0].(*value.List)
	if !ok {
		return nil, &bytecode.ArgError{Name: "push", Args: args}
	}
	list.Elems = append(list.Elems, args[1])
	return value.Nil{}, nil
}

func stdPrepend(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 2 {
		return nil, &bytecode.ArgError{Name: "prepend", Args: args}
	}
	list, ok := args[0].(*value.List)
	if !ok {
		return nil, &bytecode.ArgError{Name: "prepend", Args: args}
	}
	list.Elems = append([]value.Value{args[1]}, list.Elems...)
	return value.Nil{}, nil
}

func floatFn(name string, f func(float64) float64) bytecode.Extern {
	return func(args []value.Value, _ bool) (value.Value, error) {
		if len(args) != 1 {
			return nil, &bytecode.ArgError{Name: name, Args: args}
		}
		x, ok := args[0].(value.Float)
		if !ok {
			return nil, &bytecode.ArgError{Name: name, Args: args}
		}
		return value.Float(f(float64(x))), nil
	}
}

func stdAtan2(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 2 {
		return nil, &bytecode.ArgError{Name: "atan2", Args: args}
	}
	y, yok := args[0].(value.Float)
	x, xok := args[1].(value.Float)
	if !yok || !xok {
		return nil, &bytecode.ArgError{Name: "atan2", Args: args}
	}
	return value.Float(math.Atan2(float64(y), float64(x))), nil
}

func stdAsFloat(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 1 {
		return nil, &bytecode.ArgError{Name: "as_float", Args: args}
	}
	switch v := args[0].(type) {
	case value.Int:
		return value.Float(v), nil
	case value.Float:
		return v, nil
	default:
		return nil, &bytecode.ArgError{Name: "as_float", Args: args}
	}
}

func stdAsInt(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 1 {
		return nil, &bytecode.ArgError{Name: "as_int", Args: args}
	}
	switch v := args[0].(type) {
	case value.Float:
		return value.Int(v), nil
	case value.Int:
		return v, nil
	default:
		return nil, &bytecode.ArgError{Name: "as_int", Args: args}
	}
}

func stdAsStr(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 1 {
		return nil, &bytecode.ArgError{Name: "as_str", Args: args}
	}
	return value.String(args[0].String()), nil
}

func stdClock(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 0 {
		return nil, &bytecode.ArgError{Name: "clock", Args: args}
	}
	return value.Float(float64(time.Now().UnixNano()) / 1e9), nil
}

func stdRandom(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 0 {
		return nil, &bytecode.ArgError{Name: "random", Args: args}
	}
	return value.Float(rand.Float64()), nil
}

// stdRange builds a stateful iterator over [0, n). Like every
// iterator it is shared and never restartable: advancing one handle
// advances every alias.
func stdRange(args []value.Value, _ bool) (value.Value, error) {
	if len(args) != 1 {
		return nil, &bytecode.ArgError{Name: "range", Args: args}
	}
	n, ok := args[0].(value.Int)
	if !ok {
		return nil, &bytecode.ArgError{Name: "range", Args: args}
	}
	i := value.Int(0)
	return &value.Iter{
		ItemTy: value.IntType{},
		Next: func() (value.Value, bool) {
			if i >= n {
				return nil, false
			}
			v := i
			i++
			return v, true
		},
	}, nil
}

// stdNext advances an iterator, yielding nil on exhaustion. Its
// placeholder depends on the argument's element type, so it handles
// typecheck mode itself instead of going through dual.
func stdNext(args []value.Value, typecheck bool) (value.Value, error) {
	if len(args) != 1 {
		return nil, &bytecode.ArgError{Name: "next", Args: args}
	}
	it, ok := args[0].(*value.Iter)
	if !ok {
		if _, unknown := args[0].(value.Unknown); unknown && typecheck {
			return value.Unknown{}, nil
		}
		return nil, &bytecode.ArgError{Name: "next", Args: args}
	}
	if typecheck {
		return value.Default(it.ItemTy), nil
	}
	v, ok := it.Next()
	if !ok {
		return value.Nil{}, nil
	}
	return v, nil
}
