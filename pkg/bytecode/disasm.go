package bytecode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler
// ---------------------------------------------------------------------------

// Disassemble renders every block of a program.
func Disassemble(prog *Program) string {
	var sb strings.Builder
	for i, block := range prog.Blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		DisassembleBlock(&sb, prog, block)
	}
	return sb.String()
}

// DisassembleBlock renders one block, one instruction per line, with
// source lines and resolved operands.
func DisassembleBlock(sb *strings.Builder, prog *Program, block *Block) {
	fmt.Fprintf(sb, "== %s (%s) ==\n", block.Name, block.File)
	lastLine := -1
	for ip, instr := range block.Instrs {
		line := block.Line(ip)
		if line == lastLine {
			fmt.Fprintf(sb, "%04d    | ", ip)
		} else {
			fmt.Fprintf(sb, "%04d %4d ", ip, line)
			lastLine = line
		}

		info, _ := GetOpcodeInfo(instr.Op)
		if !info.HasArg {
			sb.WriteString(info.Name)
			sb.WriteByte('\n')
			continue
		}

		fmt.Fprintf(sb, "%-14s %4d", info.Name, instr.A)
		if note := operandNote(prog, instr); note != "" {
			fmt.Fprintf(sb, " ; %s", note)
		}
		sb.WriteByte('\n')
	}
}

func operandNote(prog *Program, instr Instr) string {
	switch instr.Op {
	case OpConstant:
		if instr.A < len(prog.Constants) {
			return prog.Constants[instr.A].String()
		}
	case OpGetField, OpAssignField:
		if instr.A < len(prog.Strings) {
			return "." + prog.Strings[instr.A]
		}
	case OpClosure:
		if instr.A < len(prog.Blocks) {
			return prog.Blocks[instr.A].Name
		}
	}
	return ""
}
