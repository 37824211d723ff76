package bytecode

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sylt-lang/sylt/compiler"
	"github.com/sylt-lang/sylt/pkg/value"
)

// ---------------------------------------------------------------------------
// Bytecode compiler: AST -> Program
// ---------------------------------------------------------------------------

type nameKind int

const (
	nameSlot      nameKind = iota // a global variable slot
	nameNamespace                 // an imported module alias
)

// name is one namespace entry: a global slot or an import alias.
type name struct {
	kind     nameKind
	slot     int
	module   int
	constant bool
	line     int
}

type namespace map[string]name

// local is one stack-resident variable of a function frame.
type local struct {
	name     string
	slot     int
	constant bool
	boxed    bool
}

type upvalRef struct {
	desc UpDesc
	name string
}

type loopCtx struct {
	start     int
	localBase int
	breaks    []int
}

// funcCtx is the compilation state of one function body.
type funcCtx struct {
	parent   *funcCtx
	block    *Block
	blockIdx int
	module   int

	locals []local
	scopes []int // local count at each scope entry
	ups    []upvalRef
	loops  []*loopCtx

	// captured holds the names nested function literals reference,
	// found by analyzeCaptures. Definitions of these names are boxed.
	captured map[string]bool
}

// Compiler lowers a parsed program to bytecode.
type Compiler struct {
	prog    *compiler.Prog
	externs *Registry
	out     *Program
	pool    *constantPool

	moduleIdx  map[string]int
	namespaces []namespace
	blobs      []map[string]*value.Blob
	nextGlobal int
	nextBlob   int

	errs []*CompileError

	// panicMode drops further errors until the next resynchronization
	// point, one per top-level statement, so every statement gets one
	// chance to report independently.
	panicMode bool
}

// Compile lowers a program against an extern registry. It returns
// either a runnable program or a non-empty error list, never both.
func Compile(prog *compiler.Prog, externs *Registry) (*Program, []*CompileError) {
	c := &Compiler{
		prog:       prog,
		externs:    externs,
		out:        &Program{},
		pool:       newConstantPool(),
		moduleIdx:  map[string]int{},
		nextGlobal: 1, // slot 0 is the entry return value
	}

	c.extractGlobals()
	c.emitProgram()

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	c.out.Constants = c.pool.values
	c.out.ExternNames = externs.Names()
	c.out.Globals = c.nextGlobal
	return c.out, nil
}

func (c *Compiler) errorf(file string, line int, format string, args ...interface{}) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.errs = append(c.errs, &CompileError{
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// resync opens a new reporting window. Called at every top-level
// statement boundary.
func (c *Compiler) resync() {
	c.panicMode = false
}

func moduleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ---------------------------------------------------------------------------
// Pass 1: extract globals
// ---------------------------------------------------------------------------

// extractGlobals assigns every module a namespace, every top-level
// definition a global slot and registers every use as an alias.
// Duplicates are reported without aborting the scan.
func (c *Compiler) extractGlobals() {
	for i, mf := range c.prog.Modules {
		// Tables stay index-aligned with Modules even on error.
		c.namespaces = append(c.namespaces, namespace{})
		c.blobs = append(c.blobs, map[string]*value.Blob{})

		mname := moduleName(mf.Path)
		if _, dup := c.moduleIdx[mname]; dup {
			c.resync()
			c.errorf(mf.Path, 0, "module %q registered twice", mname)
			continue
		}
		c.moduleIdx[mname] = i
	}

	for i, mf := range c.prog.Modules {
		ns := c.namespaces[i]
		for _, stmt := range mf.Module.Stmts {
			c.resync()
			switch s := stmt.(type) {
			case *compiler.Definition:
				c.declareGlobal(ns, mf.Path, s.Ident, s.Const)

			case *compiler.BlobDef:
				if c.declareGlobal(ns, mf.Path, s.Ident, true) {
					c.blobs[i][s.Ident.Name] = &value.Blob{
						ID:     c.nextBlob,
						Name:   s.Ident.Name,
						Fields: map[string]value.Type{},
					}
					c.nextBlob++
				}

			case *compiler.Use:
				target, ok := c.moduleIdx[s.Ident.Name]
				if !ok {
					c.errorf(mf.Path, s.Ident.Span().Line, "unknown module %q", s.Ident.Name)
					continue
				}
				if _, dup := ns[s.Ident.Name]; dup {
					c.errorf(mf.Path, s.Ident.Span().Line, "%q is already defined in this module", s.Ident.Name)
					continue
				}
				ns[s.Ident.Name] = name{kind: nameNamespace, module: target, line: s.Ident.Span().Line}
			}
		}
	}

	// Blob fields can reference other blobs, so they resolve only
	// after every blob has been declared.
	for i, mf := range c.prog.Modules {
		for _, stmt := range mf.Module.Stmts {
			def, ok := stmt.(*compiler.BlobDef)
			if !ok {
				continue
			}
			blob, ok := c.blobs[i][def.Ident.Name]
			if !ok {
				continue
			}
			c.resync()
			for _, field := range def.Fields {
				if _, dup := blob.Fields[field.Name]; dup {
					c.errorf(mf.Path, def.Span().Line, "duplicate field %q in blob %q", field.Name, def.Ident.Name)
					continue
				}
				blob.Fields[field.Name] = c.resolveType(field.Type, i, mf.Path)
			}
		}
	}
}

// declareGlobal registers a top-level name, reporting duplicates.
func (c *Compiler) declareGlobal(ns namespace, file string, ident *compiler.Identifier, constant bool) bool {
	if prev, dup := ns[ident.Name]; dup {
		c.errorf(file, ident.Span().Line,
			"%q is already defined in this module (line %d)", ident.Name, prev.line)
		return false
	}
	ns[ident.Name] = name{
		kind:     nameSlot,
		slot:     c.nextGlobal,
		constant: constant,
		line:     ident.Span().Line,
	}
	c.nextGlobal++
	return true
}

// ---------------------------------------------------------------------------
// Pass 2: code generation
// ---------------------------------------------------------------------------

// emitProgram compiles every module's top level into the entry block,
// dependencies before the entry module so imported definitions are
// initialized when the entry statements run.
func (c *Compiler) emitProgram() {
	entryFile := ""
	if len(c.prog.Modules) > 0 {
		entryFile = c.prog.Modules[0].Path
	}
	entry := NewBlock("main", entryFile)
	entry.Ty = &value.FunctionType{Ret: value.VoidType{}}
	c.out.Blocks = append(c.out.Blocks, entry)

	ctx := &funcCtx{block: entry, blockIdx: 0}

	for i := len(c.prog.Modules) - 1; i >= 0; i-- {
		mf := c.prog.Modules[i]
		ctx.module = i
		ctx.captured = analyzeCaptures(mf.Module.Stmts)

		for _, stmt := range mf.Module.Stmts {
			c.resync()
			c.compileTopLevel(ctx, mf, stmt)
		}
	}

	c.resync()
	line := 0
	entry.Emit(OpConstant, c.pool.Add(value.Nil{}), line)
	entry.Emit(OpReturn, 0, line)
}

func (c *Compiler) compileTopLevel(ctx *funcCtx, mf compiler.ModuleFile, stmt compiler.Stmt) {
	switch s := stmt.(type) {
	case *compiler.Definition:
		n, ok := c.namespaces[ctx.module][s.Ident.Name]
		if !ok || n.kind != nameSlot {
			return // declaration already failed in pass 1
		}
		c.compileExpr(ctx, s.Value)
		ctx.block.Emit(OpAssignGlobal, n.slot, s.Span().Line)

	case *compiler.BlobDef:
		n, ok := c.namespaces[ctx.module][s.Ident.Name]
		blob, haveBlob := c.blobs[ctx.module][s.Ident.Name]
		if !ok || !haveBlob {
			return
		}
		ctx.block.Emit(OpConstant, c.pool.Add(blob), s.Span().Line)
		ctx.block.Emit(OpAssignGlobal, n.slot, s.Span().Line)

	case *compiler.Use:
		// Resolved entirely in pass 1.

	default:
		c.compileStmt(ctx, stmt)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStmt(ctx *funcCtx, stmt compiler.Stmt) {
	file := c.file(ctx)
	switch s := stmt.(type) {
	case *compiler.EmptyStmt:

	case *compiler.Definition:
		c.compileExpr(ctx, s.Value)
		slot := len(ctx.locals)
		boxed := ctx.captured[s.Ident.Name]
		ctx.locals = append(ctx.locals, local{
			name:     s.Ident.Name,
			slot:     slot,
			constant: s.Const,
			boxed:    boxed,
		})
		if boxed {
			ctx.block.Emit(OpBoxLocal, slot, s.Span().Line)
		}

	case *compiler.Assignment:
		c.compileAssign(ctx, s.Target, s.Value, s.Span().Line)

	case *compiler.Print:
		c.compileExpr(ctx, s.Value)
		ctx.block.Emit(OpPrint, 0, s.Span().Line)

	case *compiler.ExprStmt:
		c.compileExpr(ctx, s.Value)
		ctx.block.Emit(OpPop, 0, s.Span().Line)

	case *compiler.BlockStmt:
		c.beginScope(ctx)
		for _, inner := range s.Stmts {
			c.compileStmt(ctx, inner)
		}
		c.endScope(ctx, s.Span().Line)

	case *compiler.If:
		c.compileExpr(ctx, s.Cond)
		elseJump := ctx.block.EmitJump(OpJmpFalse, s.Span().Line)
		c.compileStmt(ctx, s.Then)
		if s.Else != nil {
			endJump := ctx.block.EmitJump(OpJmp, s.Span().Line)
			ctx.block.PatchJump(elseJump)
			c.compileStmt(ctx, s.Else)
			ctx.block.PatchJump(endJump)
		} else {
			ctx.block.PatchJump(elseJump)
		}

	case *compiler.Loop:
		loop := &loopCtx{start: len(ctx.block.Instrs), localBase: len(ctx.locals)}
		ctx.loops = append(ctx.loops, loop)
		c.compileStmt(ctx, s.Body)
		ctx.block.Emit(OpJmp, loop.start, s.Span().Line)
		for _, br := range loop.breaks {
			ctx.block.PatchJump(br)
		}
		ctx.loops = ctx.loops[:len(ctx.loops)-1]

	case *compiler.Break:
		if len(ctx.loops) == 0 {
			c.errorf(file, s.Span().Line, "break outside of a loop")
			return
		}
		loop := ctx.loops[len(ctx.loops)-1]
		if n := len(ctx.locals) - loop.localBase; n > 0 {
			ctx.block.Emit(OpPopN, n, s.Span().Line)
		}
		loop.breaks = append(loop.breaks, ctx.block.EmitJump(OpJmp, s.Span().Line))

	case *compiler.Ret:
		if s.Value != nil {
			c.compileExpr(ctx, s.Value)
		} else {
			ctx.block.Emit(OpConstant, c.pool.Add(value.Nil{}), s.Span().Line)
		}
		ctx.block.Emit(OpReturn, 0, s.Span().Line)

	case *compiler.Use:
		c.errorf(file, s.Span().Line, "use is only allowed at the top level")

	case *compiler.BlobDef:
		c.errorf(file, s.Span().Line, "blob definitions are only allowed at the top level")

	default:
		c.errorf(file, stmt.Span().Line, "cannot compile this statement")
	}
}

func (c *Compiler) beginScope(ctx *funcCtx) {
	ctx.scopes = append(ctx.scopes, len(ctx.locals))
}

func (c *Compiler) endScope(ctx *funcCtx, line int) {
	base := ctx.scopes[len(ctx.scopes)-1]
	ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
	if n := len(ctx.locals) - base; n > 0 {
		ctx.block.Emit(OpPopN, n, line)
		ctx.locals = ctx.locals[:base]
	}
}

func (c *Compiler) file(ctx *funcCtx) string {
	if ctx.module < len(c.prog.Modules) {
		return c.prog.Modules[ctx.module].Path
	}
	return ""
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(ctx *funcCtx, expr compiler.Expr) {
	file := c.file(ctx)
	switch e := expr.(type) {
	case *compiler.IntLit:
		ctx.block.Emit(OpConstant, c.pool.Add(value.Int(e.Value)), e.Span().Line)
	case *compiler.FloatLit:
		ctx.block.Emit(OpConstant, c.pool.Add(value.Float(e.Value)), e.Span().Line)
	case *compiler.BoolLit:
		ctx.block.Emit(OpConstant, c.pool.Add(value.Bool(e.Value)), e.Span().Line)
	case *compiler.StringLit:
		ctx.block.Emit(OpConstant, c.pool.Add(value.String(e.Value)), e.Span().Line)
	case *compiler.NilLit:
		ctx.block.Emit(OpConstant, c.pool.Add(value.Nil{}), e.Span().Line)

	case *compiler.Unary:
		c.compileExpr(ctx, e.Operand)
		switch e.Op {
		case compiler.OpNeg:
			ctx.block.Emit(OpNeg, 0, e.Span().Line)
		case compiler.OpNot:
			ctx.block.Emit(OpNot, 0, e.Span().Line)
		}

	case *compiler.Binary:
		c.compileBinary(ctx, e)

	case *compiler.TupleLit:
		for _, elem := range e.Elems {
			c.compileExpr(ctx, elem)
		}
		ctx.block.Emit(OpTuple, len(e.Elems), e.Span().Line)

	case *compiler.ListLit:
		for _, elem := range e.Elems {
			c.compileExpr(ctx, elem)
		}
		ctx.block.Emit(OpList, len(e.Elems), e.Span().Line)

	case *compiler.SetLit:
		for _, elem := range e.Elems {
			c.compileExpr(ctx, elem)
		}
		ctx.block.Emit(OpSet, len(e.Elems), e.Span().Line)

	case *compiler.DictLit:
		for i := range e.Keys {
			c.compileExpr(ctx, e.Keys[i])
			c.compileExpr(ctx, e.Values[i])
		}
		ctx.block.Emit(OpDict, len(e.Keys), e.Span().Line)

	case *compiler.FnLit:
		c.compileFnLit(ctx, e)

	case *compiler.BlobInst:
		c.compileRead(ctx, e.Blob)
		for _, field := range e.Fields {
			ctx.block.Emit(OpConstant, c.pool.Add(value.String(field.Name)), e.Span().Line)
			c.compileExpr(ctx, field.Value)
		}
		ctx.block.Emit(OpBlobInst, len(e.Fields), e.Span().Line)

	case *compiler.Get:
		c.compileRead(ctx, e.Target)

	default:
		c.errorf(file, expr.Span().Line, "cannot compile this expression")
	}
}

// compileBinary emits a binary operator. Several comparisons have no
// opcode of their own: != is EQUAL NOT, >= is LESS NOT, <= is
// GREATER NOT. <=> asserts equality at run time.
func (c *Compiler) compileBinary(ctx *funcCtx, e *compiler.Binary) {
	c.compileExpr(ctx, e.Left)
	c.compileExpr(ctx, e.Right)
	line := e.Span().Line

	switch e.Op {
	case compiler.OpAdd:
		ctx.block.Emit(OpAdd, 0, line)
	case compiler.OpSub:
		ctx.block.Emit(OpSub, 0, line)
	case compiler.OpMul:
		ctx.block.Emit(OpMul, 0, line)
	case compiler.OpDiv:
		ctx.block.Emit(OpDiv, 0, line)
	case compiler.OpEq:
		ctx.block.Emit(OpEqual, 0, line)
	case compiler.OpNeq:
		ctx.block.Emit(OpEqual, 0, line)
		ctx.block.Emit(OpNot, 0, line)
	case compiler.OpGt:
		ctx.block.Emit(OpGreater, 0, line)
	case compiler.OpGteq:
		ctx.block.Emit(OpLess, 0, line)
		ctx.block.Emit(OpNot, 0, line)
	case compiler.OpLt:
		ctx.block.Emit(OpLess, 0, line)
	case compiler.OpLteq:
		ctx.block.Emit(OpGreater, 0, line)
		ctx.block.Emit(OpNot, 0, line)
	case compiler.OpAnd:
		ctx.block.Emit(OpAnd, 0, line)
	case compiler.OpOr:
		ctx.block.Emit(OpOr, 0, line)
	case compiler.OpIn:
		ctx.block.Emit(OpContains, 0, line)
	case compiler.OpAssertEq:
		ctx.block.Emit(OpEqual, 0, line)
		ctx.block.Emit(OpAssert, 0, line)
	}
}

// ---------------------------------------------------------------------------
// Reads, assignments and name resolution
// ---------------------------------------------------------------------------

// compileRead emits code leaving the value of an assignable on the
// stack.
func (c *Compiler) compileRead(ctx *funcCtx, target compiler.Assignable) {
	file := c.file(ctx)
	switch t := target.(type) {
	case *compiler.Read:
		c.compileReadName(ctx, t.Ident)

	case *compiler.Access:
		// Qualified access through an imported namespace resolves to
		// the other module's global. Anything else is a field read.
		if n, ok := c.resolveQualified(ctx, t); ok {
			ctx.block.Emit(OpReadGlobal, n.slot, t.Span().Line)
			return
		}
		c.compileRead(ctx, t.Target)
		ctx.block.Emit(OpGetField, c.out.internString(t.Ident.Name), t.Span().Line)

	case *compiler.Index:
		c.compileRead(ctx, t.Target)
		c.compileExpr(ctx, t.Expr)
		ctx.block.Emit(OpGetIndex, 0, t.Span().Line)

	case *compiler.Call:
		c.compileRead(ctx, t.Target)
		for _, arg := range t.Args {
			c.compileExpr(ctx, arg)
		}
		ctx.block.Emit(OpCall, len(t.Args), t.Span().Line)

	default:
		c.errorf(file, target.Span().Line, "cannot compile this expression")
	}
}

// compileReadName resolves a plain name: local, then upvalue, then
// the module's own namespace, then the extern table.
func (c *Compiler) compileReadName(ctx *funcCtx, ident *compiler.Identifier) {
	line := ident.Span().Line

	if l, ok := findLocal(ctx, ident.Name); ok {
		ctx.block.Emit(OpReadLocal, l.slot, line)
		return
	}
	if idx, ok := c.resolveCapture(ctx, ident.Name); ok {
		ctx.block.Emit(OpReadUpvalue, idx, line)
		return
	}
	if n, ok := c.namespaces[ctx.module][ident.Name]; ok {
		if n.kind == nameNamespace {
			c.errorf(c.file(ctx), line, "module %q is not a value", ident.Name)
			return
		}
		ctx.block.Emit(OpReadGlobal, n.slot, line)
		return
	}
	if idx, ok := c.externs.Lookup(ident.Name); ok {
		ctx.block.Emit(OpConstant, c.pool.Add(value.ExternFunction(idx)), line)
		return
	}
	c.errorf(c.file(ctx), line, "undefined name %q", ident.Name)
}

// compileAssign emits code assigning value to target.
func (c *Compiler) compileAssign(ctx *funcCtx, target compiler.Assignable, val compiler.Expr, line int) {
	file := c.file(ctx)
	switch t := target.(type) {
	case *compiler.Read:
		if l, ok := findLocal(ctx, t.Ident.Name); ok {
			if l.constant {
				c.errorf(file, line, "cannot assign to constant %q", t.Ident.Name)
				return
			}
			c.compileExpr(ctx, val)
			ctx.block.Emit(OpAssignLocal, l.slot, line)
			return
		}
		if idx, ok := c.resolveCapture(ctx, t.Ident.Name); ok {
			c.compileExpr(ctx, val)
			ctx.block.Emit(OpAssignUpvalue, idx, line)
			return
		}
		if n, ok := c.namespaces[ctx.module][t.Ident.Name]; ok && n.kind == nameSlot {
			if n.constant {
				c.errorf(file, line, "cannot assign to constant %q", t.Ident.Name)
				return
			}
			c.compileExpr(ctx, val)
			ctx.block.Emit(OpAssignGlobal, n.slot, line)
			return
		}
		c.errorf(file, line, "cannot assign to undefined name %q", t.Ident.Name)

	case *compiler.Access:
		if n, ok := c.resolveQualified(ctx, t); ok {
			if n.constant {
				c.errorf(file, line, "cannot assign to constant %q", t.Ident.Name)
				return
			}
			c.compileExpr(ctx, val)
			ctx.block.Emit(OpAssignGlobal, n.slot, line)
			return
		}
		c.compileRead(ctx, t.Target)
		c.compileExpr(ctx, val)
		ctx.block.Emit(OpAssignField, c.out.internString(t.Ident.Name), line)

	case *compiler.Index:
		c.compileRead(ctx, t.Target)
		c.compileExpr(ctx, t.Expr)
		c.compileExpr(ctx, val)
		ctx.block.Emit(OpAssignIndex, 0, line)

	case *compiler.Call:
		c.errorf(file, line, "cannot assign to the result of a call")

	default:
		c.errorf(file, line, "cannot assign to this expression")
	}
}

// resolveQualified matches mod.name where mod is an import alias in
// the current module, yielding the imported module's global.
func (c *Compiler) resolveQualified(ctx *funcCtx, access *compiler.Access) (name, bool) {
	read, ok := access.Target.(*compiler.Read)
	if !ok {
		return name{}, false
	}
	if _, shadowed := findLocal(ctx, read.Ident.Name); shadowed {
		return name{}, false
	}
	alias, ok := c.namespaces[ctx.module][read.Ident.Name]
	if !ok || alias.kind != nameNamespace {
		return name{}, false
	}
	n, ok := c.namespaces[alias.module][access.Ident.Name]
	if !ok || n.kind != nameSlot {
		c.errorf(c.file(ctx), access.Span().Line,
			"module %q has no definition %q", read.Ident.Name, access.Ident.Name)
		return name{}, false
	}
	return n, true
}

func findLocal(ctx *funcCtx, name string) (local, bool) {
	for i := len(ctx.locals) - 1; i >= 0; i-- {
		if ctx.locals[i].name == name {
			return ctx.locals[i], true
		}
	}
	return local{}, false
}

// resolveCapture resolves a name against enclosing function frames,
// threading an upvalue through every frame between the definition and
// the use.
func (c *Compiler) resolveCapture(ctx *funcCtx, nm string) (int, bool) {
	if ctx.parent == nil {
		return 0, false
	}
	if l, ok := findLocal(ctx.parent, nm); ok {
		return addUpvalue(ctx, UpDesc{InParent: true, Slot: l.slot}, nm), true
	}
	if idx, ok := c.resolveCapture(ctx.parent, nm); ok {
		return addUpvalue(ctx, UpDesc{InParent: false, Slot: idx}, nm), true
	}
	return 0, false
}

func addUpvalue(ctx *funcCtx, desc UpDesc, nm string) int {
	for i, up := range ctx.ups {
		if up.desc == desc {
			return i
		}
	}
	ctx.ups = append(ctx.ups, upvalRef{desc: desc, name: nm})
	ctx.block.Ups = append(ctx.block.Ups, desc)
	return len(ctx.ups) - 1
}

// ---------------------------------------------------------------------------
// Function literals
// ---------------------------------------------------------------------------

func (c *Compiler) compileFnLit(ctx *funcCtx, fn *compiler.FnLit) {
	file := c.file(ctx)
	line := fn.Span().Line

	block := NewBlock(fmt.Sprintf("fn@%s:%d", moduleName(file), line), file)
	block.Args = len(fn.Params)

	params := make([]value.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = c.resolveType(p.Type, ctx.module, file)
	}
	block.Ty = &value.FunctionType{
		Params: params,
		Ret:    c.resolveType(fn.Ret, ctx.module, file),
	}

	blockIdx := len(c.out.Blocks)
	c.out.Blocks = append(c.out.Blocks, block)

	inner := &funcCtx{
		parent:   ctx,
		block:    block,
		blockIdx: blockIdx,
		module:   ctx.module,
		captured: analyzeCaptures([]compiler.Stmt{fn.Body}),
	}

	for i, p := range fn.Params {
		boxed := inner.captured[p.Ident.Name]
		inner.locals = append(inner.locals, local{name: p.Ident.Name, slot: i, boxed: boxed})
		if boxed {
			block.Emit(OpBoxLocal, i, line)
		}
	}

	c.compileStmt(inner, fn.Body)

	// Implicit return for bodies that fall off the end.
	block.Emit(OpConstant, c.pool.Add(value.Nil{}), line)
	block.Emit(OpReturn, 0, line)

	ctx.block.Emit(OpClosure, blockIdx, line)
}

// ---------------------------------------------------------------------------
// Capture analysis
// ---------------------------------------------------------------------------

// analyzeCaptures finds the names that nested function literals
// reference. Definitions of these names must be boxed so the closure
// and the defining frame share one cell. The analysis is name-based
// and may over-approximate; boxing an uncaptured local is harmless.
func analyzeCaptures(stmts []compiler.Stmt) map[string]bool {
	captured := map[string]bool{}
	for _, stmt := range stmts {
		walkStmt(stmt, func(e compiler.Expr) {
			if fn, ok := e.(*compiler.FnLit); ok {
				collectReferences(fn.Body, captured)
			}
		})
	}
	return captured
}

// collectReferences gathers every name read or assigned in a subtree,
// nested function bodies included.
func collectReferences(stmt compiler.Stmt, out map[string]bool) {
	walkStmt(stmt, func(e compiler.Expr) {
		if get, ok := e.(*compiler.Get); ok {
			collectAssignableNames(get.Target, out)
		}
	})
}

func collectAssignableNames(a compiler.Assignable, out map[string]bool) {
	switch t := a.(type) {
	case *compiler.Read:
		out[t.Ident.Name] = true
	case *compiler.Access:
		collectAssignableNames(t.Target, out)
	case *compiler.Index:
		collectAssignableNames(t.Target, out)
	case *compiler.Call:
		collectAssignableNames(t.Target, out)
	}
}

// walkStmt visits every expression under a statement, depth first.
func walkStmt(stmt compiler.Stmt, visit func(compiler.Expr)) {
	switch s := stmt.(type) {
	case *compiler.Definition:
		walkExpr(s.Value, visit)
	case *compiler.Assignment:
		walkAssignable(s.Target, visit)
		walkExpr(s.Value, visit)
	case *compiler.Print:
		walkExpr(s.Value, visit)
	case *compiler.ExprStmt:
		walkExpr(s.Value, visit)
	case *compiler.BlockStmt:
		for _, inner := range s.Stmts {
			walkStmt(inner, visit)
		}
	case *compiler.If:
		walkExpr(s.Cond, visit)
		walkStmt(s.Then, visit)
		if s.Else != nil {
			walkStmt(s.Else, visit)
		}
	case *compiler.Loop:
		walkStmt(s.Body, visit)
	case *compiler.Ret:
		if s.Value != nil {
			walkExpr(s.Value, visit)
		}
	}
}

func walkExpr(expr compiler.Expr, visit func(compiler.Expr)) {
	if expr == nil {
		return
	}
	visit(expr)
	switch e := expr.(type) {
	case *compiler.Unary:
		walkExpr(e.Operand, visit)
	case *compiler.Binary:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case *compiler.TupleLit:
		for _, elem := range e.Elems {
			walkExpr(elem, visit)
		}
	case *compiler.ListLit:
		for _, elem := range e.Elems {
			walkExpr(elem, visit)
		}
	case *compiler.SetLit:
		for _, elem := range e.Elems {
			walkExpr(elem, visit)
		}
	case *compiler.DictLit:
		for i := range e.Keys {
			walkExpr(e.Keys[i], visit)
			walkExpr(e.Values[i], visit)
		}
	case *compiler.FnLit:
		walkStmt(e.Body, visit)
	case *compiler.BlobInst:
		walkAssignable(e.Blob, visit)
		for _, f := range e.Fields {
			walkExpr(f.Value, visit)
		}
	case *compiler.Get:
		walkAssignable(e.Target, visit)
	}
}

func walkAssignable(a compiler.Assignable, visit func(compiler.Expr)) {
	switch t := a.(type) {
	case *compiler.Read:
	case *compiler.Access:
		walkAssignable(t.Target, visit)
	case *compiler.Index:
		walkAssignable(t.Target, visit)
		walkExpr(t.Expr, visit)
	case *compiler.Call:
		walkAssignable(t.Target, visit)
		for _, arg := range t.Args {
			walkExpr(arg, visit)
		}
	}
}

// ---------------------------------------------------------------------------
// Type resolution
// ---------------------------------------------------------------------------

// resolveType lowers a syntactic type. Unknown names resolve to the
// module's blobs; anything else is an error.
func (c *Compiler) resolveType(t compiler.TypeExpr, module int, file string) value.Type {
	switch t := t.(type) {
	case *compiler.NamedType:
		switch t.Name {
		case "int":
			return value.IntType{}
		case "float":
			return value.FloatType{}
		case "bool":
			return value.BoolType{}
		case "str":
			return value.StringType{}
		case "void":
			return value.VoidType{}
		}
		if blob, ok := c.blobs[module][t.Name]; ok {
			return value.InstanceType{Blob: blob}
		}
		c.errorf(file, t.Span().Line, "unknown type %q", t.Name)
		return value.UnknownType{}

	case *compiler.TupleType:
		elems := make(value.TupleType, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = c.resolveType(e, module, file)
		}
		return elems

	case *compiler.ListType:
		return value.ListType{Elem: c.resolveType(t.Elem, module, file)}

	case *compiler.SetType:
		return value.SetType{Elem: c.resolveType(t.Elem, module, file)}

	case *compiler.DictType:
		return value.DictType{
			Key:   c.resolveType(t.Key, module, file),
			Value: c.resolveType(t.Value, module, file),
		}

	case *compiler.FnType:
		params := make([]value.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = c.resolveType(p, module, file)
		}
		return &value.FunctionType{Params: params, Ret: c.resolveType(t.Ret, module, file)}

	default:
		return value.UnknownType{}
	}
}
