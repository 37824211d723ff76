package bytecode

import (
	"bytes"
	"testing"

	"github.com/sylt-lang/sylt/compiler"
	"github.com/sylt-lang/sylt/pkg/value"
)

func parseSource(t *testing.T, sources map[string]string) *compiler.Prog {
	t.Helper()
	tree, errs := compiler.ParseProg("main.sy", sources)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs[0])
	}
	return tree
}

func compileSource(t *testing.T, src string, externs *Registry) *Program {
	t.Helper()
	if externs == nil {
		externs = NewRegistry()
	}
	tree := parseSource(t, map[string]string{"main.sy": src})
	prog, errs := Compile(tree, externs)
	if len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs[0])
	}
	return prog
}

func runSource(t *testing.T, src string, externs *Registry) string {
	t.Helper()
	if externs == nil {
		externs = NewRegistry()
	}
	prog := compileSource(t, src, externs)
	var out bytes.Buffer
	vm := NewVM(prog, externs)
	vm.SetOutput(&out)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return out.String()
}

func constantOperands(b *Block) []int {
	var out []int
	for _, instr := range b.Instrs {
		if instr.Op == OpConstant {
			out = append(out, instr.A)
		}
	}
	return out
}

func TestConstantInterning(t *testing.T) {
	// The same literal from two call sites shares one pool slot.
	prog := compileSource(t, "x := 42\ny := 42", nil)
	consts := constantOperands(prog.Entry())
	// Two 42s plus the final nil.
	if len(consts) != 3 {
		t.Fatalf("len(consts) = %d, want 3", len(consts))
	}
	if consts[0] != consts[1] {
		t.Errorf("pool indices differ: %d, %d", consts[0], consts[1])
	}

	count := 0
	for _, c := range prog.Constants {
		if value.Equal(c, value.Int(42)) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("pool holds %d copies of 42, want 1", count)
	}
}

func TestInterningAcrossKinds(t *testing.T) {
	prog := compileSource(t, `a := "hi"
b := "hi"
c := 1.5
d := 1.5
e := (1, 2)
f := (1, 2)`, nil)

	counts := map[string]int{}
	for _, c := range prog.Constants {
		counts[c.String()]++
	}
	for _, key := range []string{"hi", "1.5", "(1, 2)"} {
		if counts[key] != 1 {
			t.Errorf("pool holds %d copies of %s, want 1", counts[key], key)
		}
	}
}

func TestArrowCompilesLikeDirectCall(t *testing.T) {
	direct := compileSource(t, "f :: fn a: int, b: int -> int { ret a + b }\nx := f(1, 2)", nil)
	arrow := compileSource(t, "f :: fn a: int, b: int -> int { ret a + b }\nx := 1 -> f(2)", nil)

	d, a := direct.Entry().Instrs, arrow.Entry().Instrs
	if len(d) != len(a) {
		t.Fatalf("instruction counts differ: %d, %d", len(d), len(a))
	}
	for i := range d {
		if d[i] != a[i] {
			t.Errorf("instr %d: %v != %v", i, d[i], a[i])
		}
	}
}

func TestTwoCompileErrorsBothSurface(t *testing.T) {
	// Independent errors in separate statements are all reported, one
	// per statement.
	tree := parseSource(t, map[string]string{"main.sy": "x := nope\ny := wrong"})
	prog, errs := Compile(tree, NewRegistry())
	if prog != nil {
		t.Fatalf("got a program alongside errors")
	}
	if len(errs) != 2 {
		t.Fatalf("len(errs) = %d, want 2", len(errs))
	}
	if errs[0].Line != 1 || errs[1].Line != 2 {
		t.Errorf("error lines = %d, %d, want 1, 2", errs[0].Line, errs[1].Line)
	}
}

func TestOneErrorPerStatement(t *testing.T) {
	// Two failures inside one statement report once.
	tree := parseSource(t, map[string]string{"main.sy": "x := nope + wrong"})
	_, errs := Compile(tree, NewRegistry())
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
}

func TestDuplicateDefinition(t *testing.T) {
	tree := parseSource(t, map[string]string{"main.sy": "x := 1\nx := 2"})
	_, errs := Compile(tree, NewRegistry())
	if len(errs) == 0 {
		t.Fatalf("no error for duplicate top-level definition")
	}
}

func TestAssignToCall(t *testing.T) {
	src := "f :: fn -> int { ret 1 }\nf() = 2"
	tree := parseSource(t, map[string]string{"main.sy": src})
	_, errs := Compile(tree, NewRegistry())
	if len(errs) == 0 {
		t.Fatalf("no error for assignment to a call")
	}
}

func TestAssignToConstant(t *testing.T) {
	tree := parseSource(t, map[string]string{"main.sy": "x :: 1\nx = 2"})
	_, errs := Compile(tree, NewRegistry())
	if len(errs) == 0 {
		t.Fatalf("no error for assignment to a constant")
	}
}

func TestGlobalSlotZeroReserved(t *testing.T) {
	prog := compileSource(t, "x := 1", nil)
	for _, instr := range prog.Entry().Instrs {
		if instr.Op == OpAssignGlobal && instr.A == 0 {
			t.Fatalf("a definition was assigned the reserved slot 0")
		}
	}
	if prog.Globals < 2 {
		t.Errorf("Globals = %d, want at least 2", prog.Globals)
	}
}

func TestComparisonSynthesis(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Opcode
	}{
		{"!=", "x := 1 != 2", []Opcode{OpEqual, OpNot}},
		{">=", "x := 1 >= 2", []Opcode{OpLess, OpNot}},
		{"<=", "x := 1 <= 2", []Opcode{OpGreater, OpNot}},
		{">", "x := 1 > 2", []Opcode{OpGreater}},
		{"<", "x := 1 < 2", []Opcode{OpLess}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := compileSource(t, tt.src, nil)
			var got []Opcode
			for _, instr := range prog.Entry().Instrs {
				switch instr.Op {
				case OpEqual, OpNot, OpLess, OpGreater:
					got = append(got, instr.Op)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ops = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("op %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestQualifiedAccess(t *testing.T) {
	sources := map[string]string{
		"main.sy": "use lib\nprint lib.answer",
		"lib.sy":  "answer :: 42",
	}
	tree := parseSource(t, sources)
	prog, errs := Compile(tree, NewRegistry())
	if len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs[0])
	}

	var out bytes.Buffer
	vm := NewVM(prog, NewRegistry())
	vm.SetOutput(&out)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.String() != "42\n" {
		t.Errorf("output = %q, want %q", out.String(), "42\n")
	}
}

func TestQualifiedAccessUnknownName(t *testing.T) {
	sources := map[string]string{
		"main.sy": "use lib\nprint lib.missing",
		"lib.sy":  "answer :: 42",
	}
	tree := parseSource(t, sources)
	_, errs := Compile(tree, NewRegistry())
	if len(errs) == 0 {
		t.Fatalf("no error for unknown qualified name")
	}
}

func TestUnknownModule(t *testing.T) {
	// The loader reports the missing file; a use of a module that
	// never parsed is a compile error too.
	_, errs := compiler.ParseProg("main.sy", map[string]string{"main.sy": "use nothere"})
	if len(errs) == 0 {
		t.Fatalf("no error for missing module file")
	}
}

func TestExternResolution(t *testing.T) {
	externs := NewRegistry()
	externs.Register(ExternDef{
		Name: "mystery",
		Fn: func(args []value.Value, typecheck bool) (value.Value, error) {
			return value.Int(7), nil
		},
		Ty: &value.FunctionType{Ret: value.IntType{}},
	})

	out := runSource(t, "print mystery()", externs)
	if out != "7\n" {
		t.Errorf("output = %q, want %q", out, "7\n")
	}
}

func TestUndefinedName(t *testing.T) {
	tree := parseSource(t, map[string]string{"main.sy": "print nothing"})
	_, errs := Compile(tree, NewRegistry())
	if len(errs) == 0 {
		t.Fatalf("no error for undefined name")
	}
}
