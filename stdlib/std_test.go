package stdlib

import (
	"bytes"
	"testing"

	"github.com/sylt-lang/sylt/compiler"
	"github.com/sylt-lang/sylt/pkg/bytecode"
	"github.com/sylt-lang/sylt/pkg/value"
)

func run(t *testing.T, src string) string {
	t.Helper()
	tree, errs := compiler.ParseProg("main.sy", map[string]string{"main.sy": src})
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs[0])
	}
	externs := NewRegistry()
	prog, cerrs := bytecode.Compile(tree, externs)
	if len(cerrs) != 0 {
		t.Fatalf("compile errors: %v", cerrs[0])
	}

	var out bytes.Buffer
	vm := bytecode.NewVM(prog, externs)
	vm.SetOutput(&out)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return out.String()
}

func TestLen(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"list", "print len([1, 2, 3])", "3\n"},
		{"string", `print len("abcd")`, "4\n"},
		{"tuple", "print len((1, 2))", "2\n"},
		{"set", "print len({1, 2, 2})", "2\n"},
		{"dict", "print len({1: 2})", "1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.src); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPushMutatesSharedList(t *testing.T) {
	src := `a := [1]
b := a
push(b, 2)
print len(a)
print a[1]`
	if got := run(t, src); got != "2\n2\n" {
		t.Errorf("output = %q, want %q", got, "2\n2\n")
	}
}

func TestConversions(t *testing.T) {
	if got := run(t, "print as_int(3.9)"); got != "3\n" {
		t.Errorf("as_int output = %q, want %q", got, "3\n")
	}
	if got := run(t, "print as_float(2)"); got != "2\n" {
		t.Errorf("as_float output = %q, want %q", got, "2\n")
	}
	if got := run(t, "print as_str(12) + \"!\""); got != "12!\n" {
		t.Errorf("as_str output = %q, want %q", got, "12!\n")
	}
}

func TestMath(t *testing.T) {
	if got := run(t, "print sqrt(9.0)"); got != "3\n" {
		t.Errorf("sqrt output = %q, want %q", got, "3\n")
	}
	if got := run(t, "print abs(0.0 - 2.5)"); got != "2.5\n" {
		t.Errorf("abs output = %q, want %q", got, "2.5\n")
	}
}

func TestRangeIteration(t *testing.T) {
	src := `it := range(3)
total := 0
loop {
    v := next(it)
    if v == nil {
        break
    }
    total = total + v
}
print total`
	if got := run(t, src); got != "3\n" {
		t.Errorf("output = %q, want %q", got, "3\n")
	}
}

func TestIteratorNotRestartable(t *testing.T) {
	// Two handles share one cursor; draining through either advances
	// both, and an exhausted iterator stays exhausted.
	src := `a := range(2)
b := a
print next(a)
print next(b)
print next(a)
print next(a)`
	if got := run(t, src); got != "0\n1\nnil\nnil\n" {
		t.Errorf("output = %q, want %q", got, "0\n1\nnil\nnil\n")
	}
}

func TestStdlibTypechecks(t *testing.T) {
	src := `xs := [1, 2]
push(xs, 3)
n := len(xs)
print as_float(n) + sqrt(4.0)`
	tree, errs := compiler.ParseProg("main.sy", map[string]string{"main.sy": src})
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs[0])
	}
	externs := NewRegistry()
	prog, cerrs := bytecode.Compile(tree, externs)
	if len(cerrs) != 0 {
		t.Fatalf("compile errors: %v", cerrs[0])
	}
	if err := bytecode.TypeCheck(prog, externs); err != nil {
		t.Fatalf("TypeCheck error: %v", err)
	}
}

func TestRegistrationOrderStable(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	an, bn := a.Names(), b.Names()
	if len(an) != len(bn) {
		t.Fatalf("registry sizes differ: %d, %d", len(an), len(bn))
	}
	for i := range an {
		if an[i] != bn[i] {
			t.Errorf("name %d = %q, want %q", i, bn[i], an[i])
		}
	}
	if _, ok := a.Lookup("len"); !ok {
		t.Errorf("len is not registered")
	}
}

func TestPlaceholdersHaveDeclaredShapes(t *testing.T) {
	r := NewRegistry()
	idx, ok := r.Lookup("range")
	if !ok {
		t.Fatalf("range is not registered")
	}
	def, _ := r.Get(idx)

	v, err := def.Fn([]value.Value{value.Int(5)}, true)
	if err != nil {
		t.Fatalf("placeholder call error: %v", err)
	}
	if _, ok := v.(*value.Iter); !ok {
		t.Errorf("range placeholder is %T, want *value.Iter", v)
	}
}
