// Package bytecode lowers the AST to stack-machine bytecode and
// executes it, either for real or as a typecheck pass over the same
// instructions.
package bytecode

import "fmt"

// Opcode identifies a VM instruction.
type Opcode byte

const (
	// Constants and stack management
	OpConstant Opcode = iota // push constant A
	OpPop                    // discard top of stack
	OpPopN                   // discard A values

	// Arithmetic and logic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpNot
	OpEqual
	OpGreater
	OpLess
	OpAnd
	OpOr
	OpAssert   // pop bool, error when false, push nil
	OpContains // pop container and element, push membership

	// Composite builds, A = element (or pair) count
	OpTuple
	OpList
	OpSet
	OpDict

	// Globals, locals and upvalues
	OpReadGlobal
	OpAssignGlobal
	OpReadLocal
	OpAssignLocal
	OpBoxLocal // wrap stack slot A in a shared cell
	OpReadUpvalue
	OpAssignUpvalue

	// Fields and indexing, field names via the string table
	OpGetField
	OpAssignField
	OpGetIndex
	OpAssignIndex

	// Control flow
	OpJmp      // jump to A
	OpJmpFalse // pop condition, jump to A when false
	OpCall     // call with A arguments
	OpReturn

	// Values
	OpClosure // build a closure over block A
	OpBlobInst
	OpPrint
)

// OpcodeInfo describes one opcode for the disassembler and for
// sanity checks.
type OpcodeInfo struct {
	Name   string
	HasArg bool
}

var opcodeInfos = map[Opcode]OpcodeInfo{
	OpConstant: {"CONSTANT", true},
	OpPop:      {"POP", false},
	OpPopN:     {"POP_N", true},

	OpAdd:      {"ADD", false},
	OpSub:      {"SUB", false},
	OpMul:      {"MUL", false},
	OpDiv:      {"DIV", false},
	OpNeg:      {"NEG", false},
	OpNot:      {"NOT", false},
	OpEqual:    {"EQUAL", false},
	OpGreater:  {"GREATER", false},
	OpLess:     {"LESS", false},
	OpAnd:      {"AND", false},
	OpOr:       {"OR", false},
	OpAssert:   {"ASSERT", false},
	OpContains: {"CONTAINS", false},

	OpTuple: {"TUPLE", true},
	OpList:  {"LIST", true},
	OpSet:   {"SET", true},
	OpDict:  {"DICT", true},

	OpReadGlobal:    {"READ_GLOBAL", true},
	OpAssignGlobal:  {"ASSIGN_GLOBAL", true},
	OpReadLocal:     {"READ_LOCAL", true},
	OpAssignLocal:   {"ASSIGN_LOCAL", true},
	OpBoxLocal:      {"BOX_LOCAL", true},
	OpReadUpvalue:   {"READ_UPVALUE", true},
	OpAssignUpvalue: {"ASSIGN_UPVALUE", true},

	OpGetField:    {"GET_FIELD", true},
	OpAssignField: {"ASSIGN_FIELD", true},
	OpGetIndex:    {"GET_INDEX", false},
	OpAssignIndex: {"ASSIGN_INDEX", false},

	OpJmp:      {"JMP", true},
	OpJmpFalse: {"JMP_FALSE", true},
	OpCall:     {"CALL", true},
	OpReturn:   {"RETURN", false},

	OpClosure:  {"CLOSURE", true},
	OpBlobInst: {"BLOB_INST", true},
	OpPrint:    {"PRINT", false},
}

// GetOpcodeInfo returns metadata for an opcode.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfos[op]
	return info, ok
}

func (op Opcode) String() string {
	if info, ok := opcodeInfos[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(op))
}
