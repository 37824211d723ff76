package bytecode

import (
	"fmt"

	"github.com/sylt-lang/sylt/pkg/value"
)

// Instr is one instruction. A is the operand for opcodes that take
// one: a pool, string-table, slot, block or jump index, or an element
// count.
type Instr struct {
	Op Opcode
	A  int
}

// UpDesc tells the VM where a closure's captured cell comes from:
// a boxed local slot of the frame creating the closure, or one of
// that frame's own upvalues.
type UpDesc struct {
	InParent bool // true: parent local slot, false: parent upvalue
	Slot     int
}

// Block is one compiled function: its instructions plus, per
// instruction, the source line it came from.
type Block struct {
	Name string
	File string
	Args int

	Instrs []Instr
	Lines  []int

	Ups []UpDesc
	Ty  *value.FunctionType
}

// NewBlock creates an empty block.
func NewBlock(name, file string) *Block {
	return &Block{Name: name, File: file}
}

// Emit appends one instruction and returns its index.
func (b *Block) Emit(op Opcode, a, line int) int {
	b.Instrs = append(b.Instrs, Instr{Op: op, A: a})
	b.Lines = append(b.Lines, line)
	return len(b.Instrs) - 1
}

// EmitJump appends a jump with a placeholder target, to be patched.
func (b *Block) EmitJump(op Opcode, line int) int {
	return b.Emit(op, -1, line)
}

// PatchJump points the jump at index i to the next instruction slot.
func (b *Block) PatchJump(i int) {
	b.Instrs[i].A = len(b.Instrs)
}

// Line returns the source line of the instruction at ip.
func (b *Block) Line(ip int) int {
	if ip < 0 || ip >= len(b.Lines) {
		return 0
	}
	return b.Lines[ip]
}

// Program is a whole compiled program. Indices into all four ordered
// tables are baked into instructions, so any serialization must
// preserve their order.
type Program struct {
	Blocks      []*Block
	Constants   []value.Value
	Strings     []string
	ExternNames []string

	Globals int // global slot count, slot 0 reserved for the entry return
}

// Entry returns the entry block.
func (p *Program) Entry() *Block {
	return p.Blocks[0]
}

// String name interning for field and extern lookups.
func (p *Program) internString(s string) int {
	for i, existing := range p.Strings {
		if existing == s {
			return i
		}
	}
	p.Strings = append(p.Strings, s)
	return len(p.Strings) - 1
}

// constantPool deduplicates constants by structural hash, resolved by
// structural equality within a bucket. Unhashable constants (blobs,
// extern handles) are appended without interning.
type constantPool struct {
	values  []value.Value
	buckets map[uint64][]int
}

func newConstantPool() *constantPool {
	return &constantPool{buckets: map[uint64][]int{}}
}

// Add returns the pool index for a value, reusing the slot of a
// structurally equal value already present.
func (p *constantPool) Add(v value.Value) int {
	if !value.Hashable(v) {
		p.values = append(p.values, v)
		return len(p.values) - 1
	}

	h := value.Hash(v)
	for _, idx := range p.buckets[h] {
		if value.Equal(p.values[idx], v) {
			return idx
		}
	}
	p.values = append(p.values, v)
	idx := len(p.values) - 1
	p.buckets[h] = append(p.buckets[h], idx)
	return idx
}

func (b *Block) String() string {
	return fmt.Sprintf("block %s (%s, %d instrs)", b.Name, b.File, len(b.Instrs))
}
