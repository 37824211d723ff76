package value

import (
	"sort"
	"strings"
)

// Set and Dict are hash-bucketed containers keyed by structural value
// hash, resolved by structural equality within a bucket. Both are
// shared mutable heap values: every alias sees every mutation.

// Set is a shared mutable set of hashable values.
type Set struct {
	buckets map[uint64][]Value
	count   int
}

func NewSet(elems ...Value) *Set {
	s := &Set{buckets: map[uint64][]Value{}}
	for _, v := range elems {
		s.Add(v)
	}
	return s
}

func (*Set) value() {}

func (s *Set) Len() int { return s.count }

// Add inserts a value, a no-op if an equal value is present.
func (s *Set) Add(v Value) {
	h := Hash(v)
	for _, e := range s.buckets[h] {
		if Equal(e, v) {
			return
		}
	}
	s.buckets[h] = append(s.buckets[h], v)
	s.count++
}

// Contains reports whether an equal value is present.
func (s *Set) Contains(v Value) bool {
	if !Hashable(v) {
		return false
	}
	for _, e := range s.buckets[Hash(v)] {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

// Remove deletes an equal value if present.
func (s *Set) Remove(v Value) {
	if !Hashable(v) {
		return
	}
	h := Hash(v)
	bucket := s.buckets[h]
	for i, e := range bucket {
		if Equal(e, v) {
			s.buckets[h] = append(bucket[:i], bucket[i+1:]...)
			s.count--
			return
		}
	}
}

// Values returns the elements in unspecified order.
func (s *Set) Values() []Value {
	out := make([]Value, 0, s.count)
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	return out
}

func (s *Set) String() string {
	elems := make([]string, 0, s.count)
	for _, v := range s.Values() {
		elems = append(elems, v.String())
	}
	sort.Strings(elems)
	return "{" + strings.Join(elems, ", ") + "}"
}

type dictEntry struct {
	key Value
	val Value
}

// Dict is a shared mutable map from hashable keys to values.
type Dict struct {
	buckets map[uint64][]dictEntry
	count   int
}

func NewDict() *Dict {
	return &Dict{buckets: map[uint64][]dictEntry{}}
}

func (*Dict) value() {}

func (d *Dict) Len() int { return d.count }

// Set stores a key/value pair, replacing the value of an equal key.
func (d *Dict) Set(key, val Value) {
	h := Hash(key)
	bucket := d.buckets[h]
	for i, e := range bucket {
		if Equal(e.key, key) {
			bucket[i].val = val
			return
		}
	}
	d.buckets[h] = append(bucket, dictEntry{key: key, val: val})
	d.count++
}

// Get looks a key up.
func (d *Dict) Get(key Value) (Value, bool) {
	if !Hashable(key) {
		return nil, false
	}
	for _, e := range d.buckets[Hash(key)] {
		if Equal(e.key, key) {
			return e.val, true
		}
	}
	return nil, false
}

// Contains reports whether a key is present.
func (d *Dict) Contains(key Value) bool {
	_, ok := d.Get(key)
	return ok
}

// Entries returns the key/value pairs in unspecified order.
func (d *Dict) Entries() ([]Value, []Value) {
	keys := make([]Value, 0, d.count)
	vals := make([]Value, 0, d.count)
	for _, bucket := range d.buckets {
		for _, e := range bucket {
			keys = append(keys, e.key)
			vals = append(vals, e.val)
		}
	}
	return keys, vals
}

func (d *Dict) String() string {
	if d.count == 0 {
		return "{:}"
	}
	pairs := make([]string, 0, d.count)
	keys, vals := d.Entries()
	for i := range keys {
		pairs = append(pairs, keys[i].String()+": "+vals[i].String())
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ", ") + "}"
}
