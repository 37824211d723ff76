package bytecode

import (
	"bytes"
	"testing"

	"github.com/sylt-lang/sylt/pkg/value"
)

func echoExtern(name string, result value.Value) ExternDef {
	return ExternDef{
		Name: name,
		Fn: func(args []value.Value, typecheck bool) (value.Value, error) {
			return result, nil
		},
		Ty: &value.FunctionType{Ret: value.TypeOf(result)},
	}
}

func TestImageRoundTrip(t *testing.T) {
	src := `Point :: blob { x: int, y: int }
add :: fn a: int, b: int -> int { ret a + b }
p := Point { x: add(1, 2), y: 4 }
print p.x
print p.y`
	prog := compileSource(t, src, nil)

	data, err := EncodeImage(prog)
	if err != nil {
		t.Fatalf("EncodeImage error: %v", err)
	}

	decoded, err := DecodeImage(data, NewRegistry())
	if err != nil {
		t.Fatalf("DecodeImage error: %v", err)
	}

	if len(decoded.Blocks) != len(prog.Blocks) {
		t.Fatalf("block count = %d, want %d", len(decoded.Blocks), len(prog.Blocks))
	}
	if len(decoded.Constants) != len(prog.Constants) {
		t.Fatalf("constant count = %d, want %d", len(decoded.Constants), len(prog.Constants))
	}
	for i := range prog.Blocks {
		a, b := prog.Blocks[i], decoded.Blocks[i]
		if a.Name != b.Name || len(a.Instrs) != len(b.Instrs) {
			t.Fatalf("block %d differs: %s vs %s", i, a, b)
		}
		for j := range a.Instrs {
			if a.Instrs[j] != b.Instrs[j] {
				t.Errorf("block %d instr %d: %v != %v", i, j, a.Instrs[j], b.Instrs[j])
			}
		}
	}

	var out bytes.Buffer
	vm := NewVM(decoded, NewRegistry())
	vm.SetOutput(&out)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.String() != "3\n4\n" {
		t.Errorf("output = %q, want %q", out.String(), "3\n4\n")
	}
}

func TestImageRelinksExternsByName(t *testing.T) {
	// Compile against one registration order, load against another.
	// References follow names, not baked indices.
	compileRegistry := NewRegistry()
	compileRegistry.Register(echoExtern("alpha", value.Int(1)))
	compileRegistry.Register(echoExtern("beta", value.Int(2)))

	prog := compileSource(t, "print beta()", compileRegistry)
	data, err := EncodeImage(prog)
	if err != nil {
		t.Fatalf("EncodeImage error: %v", err)
	}

	hostRegistry := NewRegistry()
	hostRegistry.Register(echoExtern("beta", value.Int(2)))
	hostRegistry.Register(echoExtern("alpha", value.Int(1)))

	decoded, err := DecodeImage(data, hostRegistry)
	if err != nil {
		t.Fatalf("DecodeImage error: %v", err)
	}

	var out bytes.Buffer
	vm := NewVM(decoded, hostRegistry)
	vm.SetOutput(&out)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.String() != "2\n" {
		t.Errorf("output = %q, want %q", out.String(), "2\n")
	}
}

func TestImageMissingExtern(t *testing.T) {
	compileRegistry := NewRegistry()
	compileRegistry.Register(echoExtern("gone", value.Int(1)))

	prog := compileSource(t, "print gone()", compileRegistry)
	data, err := EncodeImage(prog)
	if err != nil {
		t.Fatalf("EncodeImage error: %v", err)
	}

	if _, err := DecodeImage(data, NewRegistry()); err == nil {
		t.Fatalf("DecodeImage linked against a registry missing the extern")
	}
}

func TestImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage([]byte("not an image"), NewRegistry()); err == nil {
		t.Fatalf("DecodeImage accepted garbage")
	}
}

func TestImageDeterministicApartFromBuildID(t *testing.T) {
	// Canonical encoding: two images of the same program differ only
	// in their build id.
	prog := compileSource(t, "x := 1\nprint x", nil)

	a, err := EncodeImage(prog)
	if err != nil {
		t.Fatalf("EncodeImage error: %v", err)
	}
	b, err := EncodeImage(prog)
	if err != nil {
		t.Fatalf("EncodeImage error: %v", err)
	}
	if len(a) != len(b) {
		t.Errorf("image sizes differ: %d, %d", len(a), len(b))
	}
}
