package bytecode

import (
	"strings"
	"testing"

	"github.com/sylt-lang/sylt/pkg/value"
)

func checkSource(t *testing.T, src string, externs *Registry) error {
	t.Helper()
	if externs == nil {
		externs = NewRegistry()
	}
	prog := compileSource(t, src, externs)
	return TypeCheck(prog, externs)
}

func TestCheckAcceptsWellTyped(t *testing.T) {
	src := `add :: fn a: int, b: int -> int { ret a + b }
x := add(1, 2)
print x + 3`
	if err := checkSource(t, src, nil); err != nil {
		t.Fatalf("TypeCheck error: %v", err)
	}
}

func TestCheckRejectsBadArgument(t *testing.T) {
	src := `f :: fn a: int -> int { ret a }
print f(true)`
	err := checkSource(t, src, nil)
	if err == nil {
		t.Fatalf("TypeCheck accepted a bool argument for an int parameter")
	}
	if _, ok := err.(*TypeError); !ok {
		t.Errorf("error is %T, want *TypeError", err)
	}
}

func TestCheckRejectsBadOperands(t *testing.T) {
	err := checkSource(t, `x := 1 + "no"`, nil)
	if err == nil {
		t.Fatalf("TypeCheck accepted int + str")
	}
}

func TestCheckTerminatesOnRecursion(t *testing.T) {
	// Each block is entered at most once; re-entry yields the declared
	// return shape, so checking a recursive function terminates even
	// though running it would not.
	src := `f :: fn -> int { ret f() }
print f()`
	if err := checkSource(t, src, nil); err != nil {
		t.Fatalf("TypeCheck error: %v", err)
	}
}

func TestCheckTerminatesOnMutualRecursion(t *testing.T) {
	src := `even :: fn n: int -> bool { ret odd(n - 1) }
odd :: fn n: int -> bool { ret even(n - 1) }
print even(10)`
	if err := checkSource(t, src, nil); err != nil {
		t.Fatalf("TypeCheck error: %v", err)
	}
}

func TestCheckSuppressesPrint(t *testing.T) {
	prog := compileSource(t, `print "noisy"`, nil)
	var sb strings.Builder
	vm := NewVM(prog, NewRegistry())
	vm.SetOutput(&sb)
	if err := vm.Check(); err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if sb.Len() != 0 {
		t.Errorf("typecheck printed %q", sb.String())
	}
}

func TestExternPlaceholderShape(t *testing.T) {
	// In check mode the extern must not run for real: it returns a
	// placeholder shaped by its declared List(Int) return type, a
	// one-element list of int.
	sideEffect := false
	retTy := value.ListType{Elem: value.IntType{}}

	externs := NewRegistry()
	externs.Register(ExternDef{
		Name: "load_nums",
		Fn: func(args []value.Value, typecheck bool) (value.Value, error) {
			if typecheck {
				return value.Default(retTy), nil
			}
			sideEffect = true
			return value.NewList(value.Int(4), value.Int(5)), nil
		},
		Ty: &value.FunctionType{Ret: retTy},
	})

	src := `nums := load_nums()
print nums[0] + 1`
	if err := checkSource(t, src, externs); err != nil {
		t.Fatalf("TypeCheck error: %v", err)
	}
	if sideEffect {
		t.Errorf("extern performed its real side effect during typechecking")
	}

	placeholder, err := externs.defs[0].Fn(nil, true)
	if err != nil {
		t.Fatalf("placeholder call error: %v", err)
	}
	list, ok := placeholder.(*value.List)
	if !ok {
		t.Fatalf("placeholder is %T, want *value.List", placeholder)
	}
	if len(list.Elems) != 1 {
		t.Fatalf("placeholder has %d elements, want 1", len(list.Elems))
	}
	if _, ok := list.Elems[0].(value.Int); !ok {
		t.Errorf("placeholder element is %T, want value.Int", list.Elems[0])
	}
}

func TestCheckThenRunPipeline(t *testing.T) {
	tree := parseSource(t, map[string]string{"main.sy": "x := 1 + true"})
	prog, errs := Compile(tree, NewRegistry())
	if len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs[0])
	}

	// The mismatch aborts the check before any real run.
	if err := TypeCheck(prog, NewRegistry()); err == nil {
		t.Fatalf("TypeCheck accepted int + bool")
	}
}

func TestCheckUnknownPropagation(t *testing.T) {
	externs := NewRegistry()
	externs.Register(ExternDef{
		Name: "anything",
		Fn: func(args []value.Value, typecheck bool) (value.Value, error) {
			return value.Unknown{}, nil
		},
		Ty: &value.FunctionType{Ret: value.UnknownType{}},
	})

	// Unknown flows through arithmetic and comparisons instead of
	// failing the check.
	src := `x := anything()
y := x + 1
if y > 0 {
    print y
}`
	if err := checkSource(t, src, externs); err != nil {
		t.Fatalf("TypeCheck error: %v", err)
	}
}

func TestCheckBlobFieldShapes(t *testing.T) {
	err := checkSource(t, `Box :: blob { v: int }
b := Box { v: true }`, nil)
	if err == nil {
		t.Fatalf("TypeCheck accepted a bool for an int field")
	}
}
