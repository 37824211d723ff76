package compiler

// ---------------------------------------------------------------------------
// AST: abstract syntax tree for sylt
// ---------------------------------------------------------------------------

// Span records where a node came from in the source.
type Span struct {
	Line int // 1-based source line
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Identifier is a name with its source location.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLit represents an integer literal.
type IntLit struct {
	SpanVal Span
	Value   int64
}

func (n *IntLit) Span() Span { return n.SpanVal }
func (n *IntLit) node()      {}
func (n *IntLit) expr()      {}

// FloatLit represents a floating-point literal.
type FloatLit struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLit) Span() Span { return n.SpanVal }
func (n *FloatLit) node()      {}
func (n *FloatLit) expr()      {}

// BoolLit represents true or false.
type BoolLit struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLit) Span() Span { return n.SpanVal }
func (n *BoolLit) node()      {}
func (n *BoolLit) expr()      {}

// StringLit represents a string literal.
type StringLit struct {
	SpanVal Span
	Value   string
}

func (n *StringLit) Span() Span { return n.SpanVal }
func (n *StringLit) node()      {}
func (n *StringLit) expr()      {}

// NilLit represents the nil literal.
type NilLit struct {
	SpanVal Span
}

func (n *NilLit) Span() Span { return n.SpanVal }
func (n *NilLit) node()      {}
func (n *NilLit) expr()      {}

// BinOp enumerates binary operators.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpGt
	OpGteq
	OpLt
	OpLteq
	OpAnd
	OpOr
	OpIn
	OpAssertEq
)

var binOpNames = map[BinOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpEq: "==", OpNeq: "!=", OpGt: ">", OpGteq: ">=",
	OpLt: "<", OpLteq: "<=", OpAnd: "and", OpOr: "or",
	OpIn: "in", OpAssertEq: "<=>",
}

func (op BinOp) String() string { return binOpNames[op] }

// Binary represents a binary operator expression.
type Binary struct {
	SpanVal Span
	Op      BinOp
	Left    Expr
	Right   Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// UnOp enumerates unary operators.
type UnOp int

const (
	OpNeg UnOp = iota // -x
	OpNot             // !x
)

// Unary represents a unary operator expression.
type Unary struct {
	SpanVal Span
	Op      UnOp
	Operand Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// TupleLit represents a tuple literal: (), (,), (a,), (a, b).
type TupleLit struct {
	SpanVal Span
	Elems   []Expr
}

func (n *TupleLit) Span() Span { return n.SpanVal }
func (n *TupleLit) node()      {}
func (n *TupleLit) expr()      {}

// ListLit represents a list literal: [a, b, c].
type ListLit struct {
	SpanVal Span
	Elems   []Expr
}

func (n *ListLit) Span() Span { return n.SpanVal }
func (n *ListLit) node()      {}
func (n *ListLit) expr()      {}

// SetLit represents a set literal: {a, b, c}. {} is the empty set.
type SetLit struct {
	SpanVal Span
	Elems   []Expr
}

func (n *SetLit) Span() Span { return n.SpanVal }
func (n *SetLit) node()      {}
func (n *SetLit) expr()      {}

// DictLit represents a dict literal: {k: v, ...}. {:} is the empty dict.
// Keys and Values are parallel slices.
type DictLit struct {
	SpanVal Span
	Keys    []Expr
	Values  []Expr
}

func (n *DictLit) Span() Span { return n.SpanVal }
func (n *DictLit) node()      {}
func (n *DictLit) expr()      {}

// Param is one function-literal parameter: name and declared type.
type Param struct {
	Ident *Identifier
	Type  TypeExpr
}

// FnLit represents a function literal:
// fn a: int, b: bool -> bool { ... }
// A body opening without -> means a Void return type.
type FnLit struct {
	SpanVal Span
	Params  []Param
	Ret     TypeExpr // never nil; Void when omitted
	Body    Stmt
}

func (n *FnLit) Span() Span { return n.SpanVal }
func (n *FnLit) node()      {}
func (n *FnLit) expr()      {}

// FieldInit is one field initializer in a blob instantiation.
type FieldInit struct {
	Name  string
	Value Expr
}

// BlobInst represents a blob instantiation: Name { field: expr, ... }.
type BlobInst struct {
	SpanVal Span
	Blob    Assignable
	Fields  []FieldInit
}

func (n *BlobInst) Span() Span { return n.SpanVal }
func (n *BlobInst) node()      {}
func (n *BlobInst) expr()      {}

// Get wraps an assignable used as an expression.
type Get struct {
	SpanVal Span
	Target  Assignable
}

func (n *Get) Span() Span { return n.SpanVal }
func (n *Get) node()      {}
func (n *Get) expr()      {}

// ---------------------------------------------------------------------------
// Assignable nodes: things that can appear on the left of '=' and
// as read/call/access/index chains.
// ---------------------------------------------------------------------------

// Assignable is the interface for assignable nodes.
type Assignable interface {
	Node
	assignable() // marker method
}

// Read references a plain name.
type Read struct {
	SpanVal Span
	Ident   *Identifier
}

func (n *Read) Span() Span  { return n.SpanVal }
func (n *Read) node()       {}
func (n *Read) assignable() {}

// Call invokes a callee with arguments.
type Call struct {
	SpanVal Span
	Target  Assignable
	Args    []Expr
}

func (n *Call) Span() Span  { return n.SpanVal }
func (n *Call) node()       {}
func (n *Call) assignable() {}

// Access reads a member: a.b. The target may be a namespace alias
// (module access) or an instance (field access).
type Access struct {
	SpanVal Span
	Target  Assignable
	Ident   *Identifier
}

func (n *Access) Span() Span  { return n.SpanVal }
func (n *Access) node()       {}
func (n *Access) assignable() {}

// Index reads an element: a[b].
type Index struct {
	SpanVal Span
	Target  Assignable
	Expr    Expr
}

func (n *Index) Span() Span  { return n.SpanVal }
func (n *Index) node()       {}
func (n *Index) assignable() {}

// ---------------------------------------------------------------------------
// Type expressions (syntactic types, resolved by the bytecode compiler)
// ---------------------------------------------------------------------------

// TypeExpr is the interface for syntactic type nodes.
type TypeExpr interface {
	Node
	typeExpr() // marker method
}

// NamedType is a primitive type name (int, float, bool, str, void)
// or a blob type name.
type NamedType struct {
	SpanVal Span
	Name    string
}

func (n *NamedType) Span() Span { return n.SpanVal }
func (n *NamedType) node()      {}
func (n *NamedType) typeExpr()  {}

// TupleType is (T, U).
type TupleType struct {
	SpanVal Span
	Elems   []TypeExpr
}

func (n *TupleType) Span() Span { return n.SpanVal }
func (n *TupleType) node()      {}
func (n *TupleType) typeExpr()  {}

// ListType is [T].
type ListType struct {
	SpanVal Span
	Elem    TypeExpr
}

func (n *ListType) Span() Span { return n.SpanVal }
func (n *ListType) node()      {}
func (n *ListType) typeExpr()  {}

// SetType is {T}.
type SetType struct {
	SpanVal Span
	Elem    TypeExpr
}

func (n *SetType) Span() Span { return n.SpanVal }
func (n *SetType) node()      {}
func (n *SetType) typeExpr()  {}

// DictType is {K: V}.
type DictType struct {
	SpanVal Span
	Key     TypeExpr
	Value   TypeExpr
}

func (n *DictType) Span() Span { return n.SpanVal }
func (n *DictType) node()      {}
func (n *DictType) typeExpr()  {}

// FnType is fn T, U -> R.
type FnType struct {
	SpanVal Span
	Params  []TypeExpr
	Ret     TypeExpr
}

func (n *FnType) Span() Span { return n.SpanVal }
func (n *FnType) node()      {}
func (n *FnType) typeExpr()  {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// EmptyStmt is an empty statement (stray separator).
type EmptyStmt struct {
	SpanVal Span
}

func (n *EmptyStmt) Span() Span { return n.SpanVal }
func (n *EmptyStmt) node()      {}
func (n *EmptyStmt) stmt()      {}

// Definition declares a new variable:
// x := e (mutable), x :: e (const), x : T = e (typed).
type Definition struct {
	SpanVal Span
	Ident   *Identifier
	Type    TypeExpr // nil when inferred
	Const   bool
	Value   Expr
}

func (n *Definition) Span() Span { return n.SpanVal }
func (n *Definition) node()      {}
func (n *Definition) stmt()      {}

// Assignment assigns to an existing target: target = e.
type Assignment struct {
	SpanVal Span
	Target  Assignable
	Value   Expr
}

func (n *Assignment) Span() Span { return n.SpanVal }
func (n *Assignment) node()      {}
func (n *Assignment) stmt()      {}

// Print prints a value: print e.
type Print struct {
	SpanVal Span
	Value   Expr
}

func (n *Print) Span() Span { return n.SpanVal }
func (n *Print) node()      {}
func (n *Print) stmt()      {}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Use imports a sibling module: use name.
type Use struct {
	SpanVal Span
	Ident   *Identifier
}

func (n *Use) Span() Span { return n.SpanVal }
func (n *Use) node()      {}
func (n *Use) stmt()      {}

// FieldDecl is one field declaration in a blob definition.
type FieldDecl struct {
	Name string
	Type TypeExpr
}

// BlobDef declares a blob (record) type: Name :: blob { field: Type, ... }.
type BlobDef struct {
	SpanVal Span
	Ident   *Identifier
	Fields  []FieldDecl
}

func (n *BlobDef) Span() Span { return n.SpanVal }
func (n *BlobDef) node()      {}
func (n *BlobDef) stmt()      {}

// BlockStmt groups statements into a scope: { ... }.
type BlockStmt struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// If branches on a condition.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt // nil when absent
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// Loop repeats its body until a break.
type Loop struct {
	SpanVal Span
	Body    Stmt
}

func (n *Loop) Span() Span { return n.SpanVal }
func (n *Loop) node()      {}
func (n *Loop) stmt()      {}

// Break exits the innermost loop.
type Break struct {
	SpanVal Span
}

func (n *Break) Span() Span { return n.SpanVal }
func (n *Break) node()      {}
func (n *Break) stmt()      {}

// Ret returns from the enclosing function. Value may be nil.
type Ret struct {
	SpanVal Span
	Value   Expr
}

func (n *Ret) Span() Span { return n.SpanVal }
func (n *Ret) node()      {}
func (n *Ret) stmt()      {}

// ---------------------------------------------------------------------------
// Top-level structure
// ---------------------------------------------------------------------------

// Module is one parsed source file.
type Module struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Module) Span() Span { return n.SpanVal }
func (n *Module) node()      {}

// ModuleFile pairs a module with the path it was read from.
type ModuleFile struct {
	Path   string
	Module *Module
}

// Prog is a whole program: one or more modules, entry module first.
type Prog struct {
	Modules []ModuleFile
}
