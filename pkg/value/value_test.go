package value

import (
	"math"
	"testing"
)

func TestHashAgreesWithEquality(t *testing.T) {
	pairs := [][2]Value{
		{Nil{}, Nil{}},
		{Bool(true), Bool(true)},
		{Int(42), Int(42)},
		{Float(2.5), Float(2.5)},
		{String("abc"), String("abc")},
		{Tuple{Int(1), String("x")}, Tuple{Int(1), String("x")}},
	}

	for _, p := range pairs {
		t.Run(p[0].String(), func(t *testing.T) {
			if !Equal(p[0], p[1]) {
				t.Fatalf("Equal(%s, %s) = false", p[0], p[1])
			}
			if Hash(p[0]) != Hash(p[1]) {
				t.Errorf("hashes differ for equal values %s", p[0])
			}
		})
	}
}

func TestHashDistinguishes(t *testing.T) {
	distinct := []Value{
		Nil{}, Bool(true), Bool(false), Int(0), Int(1),
		Float(0.5), String(""), String("a"),
		Tuple{}, Tuple{Int(1)}, Tuple{Int(1), Int(2)},
	}

	for i, a := range distinct {
		for j, b := range distinct {
			if i == j {
				continue
			}
			if Equal(a, b) {
				t.Errorf("Equal(%s, %s) = true, want false", a, b)
			}
		}
	}
}

func TestHashNonFiniteFloatPanics(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Hash(Float(%v)) did not panic", f)
				}
			}()
			Hash(Float(f))
		}()
	}
}

func TestHashableGatesNonFinite(t *testing.T) {
	if Hashable(Float(math.NaN())) {
		t.Errorf("Hashable(NaN) = true, want false")
	}
	if Hashable(Tuple{Int(1), Float(math.Inf(1))}) {
		t.Errorf("Hashable(tuple with Inf) = true, want false")
	}
	if !Hashable(Tuple{Int(1), Float(2.0)}) {
		t.Errorf("Hashable(finite tuple) = false, want true")
	}
	if Hashable(NewList(Int(1))) {
		t.Errorf("Hashable(list) = true, want false")
	}
}

func TestEqualAcrossTags(t *testing.T) {
	if Equal(Int(1), Float(1.0)) {
		t.Errorf("Equal(Int 1, Float 1.0) = true, want false")
	}
	if Equal(Bool(false), Nil{}) {
		t.Errorf("Equal(false, nil) = true, want false")
	}
}

func TestUnionEquality(t *testing.T) {
	u := Union{Int(1), String("x")}

	if !Equal(u, Int(1)) {
		t.Errorf("union does not equal its member")
	}
	if !Equal(String("x"), u) {
		t.Errorf("member does not equal union (symmetric)")
	}
	if Equal(u, Int(2)) {
		t.Errorf("union equals a non-member")
	}
}

func TestListAliasing(t *testing.T) {
	a := NewList(Int(1), Int(2))
	b := a // second handle to the same storage

	b.Elems[0] = Int(99)
	if !Equal(a.Elems[0], Int(99)) {
		t.Errorf("mutation through alias not visible: %s", a.Elems[0])
	}
}

func TestSetAndDict(t *testing.T) {
	s := NewSet(Int(1), Int(2), Int(1))
	if s.Len() != 2 {
		t.Errorf("set Len = %d, want 2", s.Len())
	}
	if !s.Contains(Int(2)) {
		t.Errorf("set is missing 2")
	}
	s.Remove(Int(2))
	if s.Contains(Int(2)) {
		t.Errorf("set still contains removed 2")
	}

	d := NewDict()
	d.Set(String("a"), Int(1))
	d.Set(String("a"), Int(2))
	if d.Len() != 1 {
		t.Errorf("dict Len = %d, want 1", d.Len())
	}
	if v, ok := d.Get(String("a")); !ok || !Equal(v, Int(2)) {
		t.Errorf("dict value = %v, want 2", v)
	}
}

func TestStructuralContainerEquality(t *testing.T) {
	if !Equal(NewList(Int(1), Int(2)), NewList(Int(1), Int(2))) {
		t.Errorf("equal lists compare unequal")
	}
	if !Equal(NewSet(Int(1), Int(2)), NewSet(Int(2), Int(1))) {
		t.Errorf("equal sets compare unequal")
	}

	d1, d2 := NewDict(), NewDict()
	d1.Set(Int(1), String("a"))
	d2.Set(Int(1), String("a"))
	if !Equal(d1, d2) {
		t.Errorf("equal dicts compare unequal")
	}
	d2.Set(Int(1), String("b"))
	if Equal(d1, d2) {
		t.Errorf("dicts with different values compare equal")
	}
}

func TestDefaultShapes(t *testing.T) {
	tests := []struct {
		name string
		ty   Type
		want Value
	}{
		{"int", IntType{}, Int(1)},
		{"float", FloatType{}, Float(1.0)},
		{"bool", BoolType{}, Bool(true)},
		{"str", StringType{}, String("")},
		{"void", VoidType{}, Nil{}},
		{"unknown", UnknownType{}, Unknown{}},
		{"tuple", TupleType{IntType{}, BoolType{}}, Tuple{Int(1), Bool(true)}},
		{"list of int", ListType{Elem: IntType{}}, NewList(Int(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Default(tt.ty)
			if !Equal(got, tt.want) {
				t.Errorf("Default(%s) = %s, want %s", tt.ty, got, tt.want)
			}
		})
	}
}

func TestDefaultListOfIntShape(t *testing.T) {
	// A declared List(Int) return produces a one-element list holding
	// a default int, so shape checks can keep propagating.
	v := Default(ListType{Elem: IntType{}})
	list, ok := v.(*List)
	if !ok {
		t.Fatalf("Default(ListType) is %T, want *List", v)
	}
	if len(list.Elems) != 1 {
		t.Fatalf("len(Elems) = %d, want 1", len(list.Elems))
	}
	if _, ok := list.Elems[0].(Int); !ok {
		t.Errorf("element is %T, want Int", list.Elems[0])
	}
}

func TestCellSharing(t *testing.T) {
	c := NewCell(Int(1))
	alias := c

	alias.Set(Int(2))
	if !Equal(c.Get(), Int(2)) {
		t.Errorf("cell write through alias not visible: %s", c.Get())
	}
}

func TestFits(t *testing.T) {
	tests := []struct {
		name string
		t    Type
		into Type
		want bool
	}{
		{"same primitive", IntType{}, IntType{}, true},
		{"mismatched primitive", IntType{}, BoolType{}, false},
		{"unknown fits anything", UnknownType{}, ListType{Elem: IntType{}}, true},
		{"anything fits unknown", ListType{Elem: IntType{}}, UnknownType{}, true},
		{"list covariance", ListType{Elem: IntType{}}, ListType{Elem: IntType{}}, true},
		{"union member", IntType{}, UnionType{IntType{}, BoolType{}}, true},
		{"union non-member", StringType{}, UnionType{IntType{}, BoolType{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fits(tt.t, tt.into); got != tt.want {
				t.Errorf("Fits(%s, %s) = %v, want %v", tt.t, tt.into, got, tt.want)
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	got := TypeOf(Tuple{Int(1), Bool(true)})
	want := TupleType{IntType{}, BoolType{}}
	if !TypeEqual(got, want) {
		t.Errorf("TypeOf = %s, want %s", got, want)
	}

	if !TypeEqual(TypeOf(NewList(String("x"))), (ListType{Elem: StringType{}})) {
		t.Errorf("TypeOf(list of str) wrong: %s", TypeOf(NewList(String("x"))))
	}
}
