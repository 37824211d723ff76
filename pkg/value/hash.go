package value

import (
	"fmt"
	"math"
)

// Structural hashing mirrors structural equality and is defined only
// for the hashable variants: nil, bool, int, finite float, string and
// tuples thereof. Everything else panics; callers gate on Hashable.

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

func fnvMix(h, x uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= x & 0xff
		h *= fnvPrime
		x >>= 8
	}
	return h
}

func fnvString(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}

// Hashable reports whether Hash is defined for a value.
func Hashable(v Value) bool {
	switch v := v.(type) {
	case Nil, Bool, Int, String:
		return true
	case Float:
		return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
	case Tuple:
		for _, e := range v {
			if !Hashable(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Hash returns the structural hash of a value. Hashing a non-finite
// float or an unhashable variant panics: such values must never be
// used as pool or container keys.
func Hash(v Value) uint64 {
	return hashInto(fnvOffset, v)
}

func hashInto(h uint64, v Value) uint64 {
	switch v := v.(type) {
	case Nil:
		return fnvMix(h, 0)

	case Bool:
		if v {
			return fnvMix(h, 3)
		}
		return fnvMix(h, 2)

	case Int:
		return fnvMix(fnvMix(h, 5), uint64(v))

	case Float:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			panic(fmt.Sprintf("hash of non-finite float %v", f))
		}
		return fnvMix(fnvMix(h, 7), math.Float64bits(f))

	case String:
		return fnvString(fnvMix(h, 11), string(v))

	case Tuple:
		h = fnvMix(h, 13)
		h = fnvMix(h, uint64(len(v)))
		for _, e := range v {
			h = hashInto(h, e)
		}
		return h

	default:
		panic(fmt.Sprintf("hash of unhashable value %s", v))
	}
}

// Equal is structural equality. Values of mismatched variants compare
// unequal, never erroring. A union equals a plain value if any of its
// members does, in either direction.
func Equal(a, b Value) bool {
	if u, ok := a.(Union); ok {
		for _, m := range u {
			if Equal(m, b) {
				return true
			}
		}
		return false
	}
	if u, ok := b.(Union); ok {
		for _, m := range u {
			if Equal(a, m) {
				return true
			}
		}
		return false
	}

	switch a := a.(type) {
	case Nil:
		_, ok := b.(Nil)
		return ok

	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb

	case Int:
		bb, ok := b.(Int)
		return ok && a == bb

	case Float:
		bb, ok := b.(Float)
		return ok && a == bb

	case String:
		bb, ok := b.(String)
		return ok && a == bb

	case Tuple:
		bb, ok := b.(Tuple)
		if !ok || len(a) != len(bb) {
			return false
		}
		for i := range a {
			if !Equal(a[i], bb[i]) {
				return false
			}
		}
		return true

	case *List:
		bb, ok := b.(*List)
		if !ok || len(a.Elems) != len(bb.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], bb.Elems[i]) {
				return false
			}
		}
		return true

	case *Set:
		bb, ok := b.(*Set)
		if !ok || a.Len() != bb.Len() {
			return false
		}
		for _, v := range a.Values() {
			if !bb.Contains(v) {
				return false
			}
		}
		return true

	case *Dict:
		bb, ok := b.(*Dict)
		if !ok || a.Len() != bb.Len() {
			return false
		}
		keys, vals := a.Entries()
		for i := range keys {
			other, found := bb.Get(keys[i])
			if !found || !Equal(vals[i], other) {
				return false
			}
		}
		return true

	case *Instance:
		bb, ok := b.(*Instance)
		return ok && a == bb

	case *Function:
		bb, ok := b.(*Function)
		return ok && a == bb

	case ExternFunction:
		bb, ok := b.(ExternFunction)
		return ok && a == bb

	case *Iter:
		bb, ok := b.(*Iter)
		return ok && a == bb

	case *Blob:
		bb, ok := b.(*Blob)
		return ok && a == bb

	case Ty:
		bb, ok := b.(Ty)
		return ok && TypeEqual(a.T, bb.T)

	case Field:
		bb, ok := b.(Field)
		return ok && a == bb

	case Unknown:
		_, ok := b.(Unknown)
		return ok

	default:
		return false
	}
}
