package value

import "strings"

// Type mirrors Value's shape. Types drive static checking and, via
// Default, fabricate placeholder values for the typecheck pass.
type Type interface {
	typ() // marker method
	String() string
}

// VoidType is the absence of a value (functions without a return).
type VoidType struct{}

func (VoidType) typ()           {}
func (VoidType) String() string { return "void" }

// UnknownType is the shape of a value nothing is known about.
type UnknownType struct{}

func (UnknownType) typ()           {}
func (UnknownType) String() string { return "unknown" }

// InvalidType marks a shape that can never hold a value.
type InvalidType struct{}

func (InvalidType) typ()           {}
func (InvalidType) String() string { return "invalid" }

type IntType struct{}

func (IntType) typ()           {}
func (IntType) String() string { return "int" }

type FloatType struct{}

func (FloatType) typ()           {}
func (FloatType) String() string { return "float" }

type BoolType struct{}

func (BoolType) typ()           {}
func (BoolType) String() string { return "bool" }

type StringType struct{}

func (StringType) typ()           {}
func (StringType) String() string { return "str" }

type TupleType []Type

func (TupleType) typ() {}
func (t TupleType) String() string {
	elems := make([]string, len(t))
	for i, e := range t {
		elems[i] = e.String()
	}
	return "(" + strings.Join(elems, ", ") + ")"
}

type ListType struct {
	Elem Type
}

func (ListType) typ() {}
func (t ListType) String() string {
	return "[" + t.Elem.String() + "]"
}

type SetType struct {
	Elem Type
}

func (SetType) typ() {}
func (t SetType) String() string {
	return "{" + t.Elem.String() + "}"
}

type DictType struct {
	Key   Type
	Value Type
}

func (DictType) typ() {}
func (t DictType) String() string {
	return "{" + t.Key.String() + ": " + t.Value.String() + "}"
}

// FunctionType is fn params -> ret.
type FunctionType struct {
	Params []Type
	Ret    Type
}

func (*FunctionType) typ() {}
func (t *FunctionType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return "fn " + strings.Join(params, ", ") + " -> " + t.Ret.String()
}

// InstanceType is a value of the given blob.
type InstanceType struct {
	Blob *Blob
}

func (InstanceType) typ() {}
func (t InstanceType) String() string {
	return t.Blob.Name
}

// BlobType is the blob itself as a value (the constructor).
type BlobType struct {
	Blob *Blob
}

func (BlobType) typ() {}
func (t BlobType) String() string {
	return "blob " + t.Blob.Name
}

// IterType is a lazy sequence of Elem.
type IterType struct {
	Elem Type
}

func (IterType) typ() {}
func (t IterType) String() string {
	return "iter " + t.Elem.String()
}

// UnionType matches if any alternative matches.
type UnionType []Type

func (UnionType) typ() {}
func (t UnionType) String() string {
	alts := make([]string, len(t))
	for i, a := range t {
		alts[i] = a.String()
	}
	return strings.Join(alts, " | ")
}

// TyType is the type of type values.
type TyType struct{}

func (TyType) typ()           {}
func (TyType) String() string { return "type" }

// ExternFunctionType is the shape of a host function handle.
type ExternFunctionType struct{}

func (ExternFunctionType) typ()           {}
func (ExternFunctionType) String() string { return "extern" }

// TypeOf returns the type of a value.
func TypeOf(v Value) Type {
	switch v := v.(type) {
	case Nil:
		return VoidType{}
	case Bool:
		return BoolType{}
	case Int:
		return IntType{}
	case Float:
		return FloatType{}
	case String:
		return StringType{}
	case Tuple:
		elems := make(TupleType, len(v))
		for i, e := range v {
			elems[i] = TypeOf(e)
		}
		return elems
	case *List:
		if len(v.Elems) == 0 {
			return ListType{Elem: UnknownType{}}
		}
		return ListType{Elem: TypeOf(v.Elems[0])}
	case *Set:
		vals := v.Values()
		if len(vals) == 0 {
			return SetType{Elem: UnknownType{}}
		}
		return SetType{Elem: TypeOf(vals[0])}
	case *Dict:
		keys, vals := v.Entries()
		if len(keys) == 0 {
			return DictType{Key: UnknownType{}, Value: UnknownType{}}
		}
		return DictType{Key: TypeOf(keys[0]), Value: TypeOf(vals[0])}
	case *Instance:
		return InstanceType{Blob: v.Blob}
	case *Blob:
		return BlobType{Blob: v}
	case *Function:
		return v.Ty
	case ExternFunction:
		return ExternFunctionType{}
	case *Iter:
		return IterType{Elem: v.ItemTy}
	case Union:
		alts := make(UnionType, len(v))
		for i, m := range v {
			alts[i] = TypeOf(m)
		}
		return alts
	case Ty:
		return TyType{}
	case Unknown:
		return UnknownType{}
	default:
		return InvalidType{}
	}
}

// Default converts a type to a representative value of that shape.
// This is how the typecheck pass fabricates placeholder results
// without running real logic.
func Default(t Type) Value {
	switch t := t.(type) {
	case VoidType:
		return Nil{}
	case UnknownType, InvalidType:
		return Unknown{}
	case IntType:
		return Int(1)
	case FloatType:
		return Float(1.0)
	case BoolType:
		return Bool(true)
	case StringType:
		return String("")
	case TupleType:
		elems := make(Tuple, len(t))
		for i, e := range t {
			elems[i] = Default(e)
		}
		return elems
	case ListType:
		return NewList(Default(t.Elem))
	case SetType:
		s := NewSet()
		if Hashable(Default(t.Elem)) {
			s.Add(Default(t.Elem))
		}
		return s
	case DictType:
		d := NewDict()
		if Hashable(Default(t.Key)) {
			d.Set(Default(t.Key), Default(t.Value))
		}
		return d
	case *FunctionType:
		return &Function{Ty: t, Block: -1}
	case InstanceType:
		fields := make(map[string]Value, len(t.Blob.Fields))
		for name, ft := range t.Blob.Fields {
			fields[name] = Default(ft)
		}
		return &Instance{Blob: t.Blob, Fields: fields}
	case BlobType:
		return t.Blob
	case IterType:
		return &Iter{ItemTy: t.Elem, Next: func() (Value, bool) { return nil, false }}
	case UnionType:
		alts := make(Union, len(t))
		for i, a := range t {
			alts[i] = Default(a)
		}
		return alts
	case TyType:
		return Ty{T: VoidType{}}
	default:
		return Unknown{}
	}
}

// TypeEqual is structural type equality.
func TypeEqual(a, b Type) bool {
	switch a := a.(type) {
	case TupleType:
		bb, ok := b.(TupleType)
		if !ok || len(a) != len(bb) {
			return false
		}
		for i := range a {
			if !TypeEqual(a[i], bb[i]) {
				return false
			}
		}
		return true
	case ListType:
		bb, ok := b.(ListType)
		return ok && TypeEqual(a.Elem, bb.Elem)
	case SetType:
		bb, ok := b.(SetType)
		return ok && TypeEqual(a.Elem, bb.Elem)
	case DictType:
		bb, ok := b.(DictType)
		return ok && TypeEqual(a.Key, bb.Key) && TypeEqual(a.Value, bb.Value)
	case *FunctionType:
		bb, ok := b.(*FunctionType)
		if !ok || len(a.Params) != len(bb.Params) {
			return false
		}
		for i := range a.Params {
			if !TypeEqual(a.Params[i], bb.Params[i]) {
				return false
			}
		}
		return TypeEqual(a.Ret, bb.Ret)
	case InstanceType:
		bb, ok := b.(InstanceType)
		return ok && a.Blob == bb.Blob
	case BlobType:
		bb, ok := b.(BlobType)
		return ok && a.Blob == bb.Blob
	case IterType:
		bb, ok := b.(IterType)
		return ok && TypeEqual(a.Elem, bb.Elem)
	case UnionType:
		bb, ok := b.(UnionType)
		if !ok || len(a) != len(bb) {
			return false
		}
		for i := range a {
			if !TypeEqual(a[i], bb[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Fits reports whether a value of type t can be used where into is
// expected. Unknown fits everything in both directions; a union fits
// if any alternative does.
func Fits(t, into Type) bool {
	if _, ok := t.(UnknownType); ok {
		return true
	}
	if _, ok := into.(UnknownType); ok {
		return true
	}
	if u, ok := t.(UnionType); ok {
		for _, a := range u {
			if Fits(a, into) {
				return true
			}
		}
		return false
	}
	if u, ok := into.(UnionType); ok {
		for _, a := range u {
			if Fits(t, a) {
				return true
			}
		}
		return false
	}

	switch t := t.(type) {
	case TupleType:
		bb, ok := into.(TupleType)
		if !ok || len(t) != len(bb) {
			return false
		}
		for i := range t {
			if !Fits(t[i], bb[i]) {
				return false
			}
		}
		return true
	case ListType:
		bb, ok := into.(ListType)
		return ok && Fits(t.Elem, bb.Elem)
	case SetType:
		bb, ok := into.(SetType)
		return ok && Fits(t.Elem, bb.Elem)
	case DictType:
		bb, ok := into.(DictType)
		return ok && Fits(t.Key, bb.Key) && Fits(t.Value, bb.Value)
	case *FunctionType:
		bb, ok := into.(*FunctionType)
		if !ok || len(t.Params) != len(bb.Params) {
			return false
		}
		for i := range t.Params {
			if !Fits(bb.Params[i], t.Params[i]) {
				return false
			}
		}
		return Fits(t.Ret, bb.Ret)
	case IterType:
		bb, ok := into.(IterType)
		return ok && Fits(t.Elem, bb.Elem)
	default:
		return TypeEqual(t, into)
	}
}
