package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with precedence climbing for expressions
// ---------------------------------------------------------------------------

// SyntaxError is a parse error with its source location.
type SyntaxError struct {
	File    string
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error: %s", e.File, e.Line, e.Message)
}

// Operator precedence, lowest to highest. Infix parsing consumes an
// operator only while its precedence is at least the minimum, recursing
// on the right with the next level up, so binary trees come out
// left-associative.
const (
	precNone = iota
	precArrow
	precAssert
	precBoolOr
	precBoolAnd
	precComparison
	precTerm
	precFactor
	precIndex
)

var infixPrecedence = map[TokenType]int{
	TokenArrow:       precArrow,
	TokenAssertEqual: precAssert,
	TokenOr:          precBoolOr,
	TokenAnd:         precBoolAnd,

	TokenEqualEqual:   precComparison,
	TokenNotEqual:     precComparison,
	TokenLess:         precComparison,
	TokenLessEqual:    precComparison,
	TokenGreater:      precComparison,
	TokenGreaterEqual: precComparison,

	TokenPlus:  precTerm,
	TokenMinus: precTerm,
	TokenStar:  precFactor,
	TokenSlash: precFactor,

	TokenIn: precIndex,
}

var infixOps = map[TokenType]BinOp{
	TokenAssertEqual:  OpAssertEq,
	TokenOr:           OpOr,
	TokenAnd:          OpAnd,
	TokenEqualEqual:   OpEq,
	TokenNotEqual:     OpNeq,
	TokenLess:         OpLt,
	TokenLessEqual:    OpLteq,
	TokenGreater:      OpGt,
	TokenGreaterEqual: OpGteq,
	TokenPlus:         OpAdd,
	TokenMinus:        OpSub,
	TokenStar:         OpMul,
	TokenSlash:        OpDiv,
	TokenIn:           OpIn,
}

// bail unwinds the parser out of a malformed construct. It is always
// recovered at a statement boundary or a speculation point.
type bail struct{}

// Parser turns a token stream into a Module, accumulating syntax
// errors and resynchronizing at statement boundaries so one pass can
// report several independent errors.
type Parser struct {
	file   string
	tokens []Token
	pos    int
	errors []*SyntaxError

	// noBlob suppresses blob instantiation parsing while an if
	// condition is read, so "if x {" opens the branch body instead
	// of an "x { ... }" literal.
	noBlob bool
}

// NewParser creates a parser for the given file's tokens.
func NewParser(file string, tokens []Token) *Parser {
	return &Parser{file: file, tokens: tokens}
}

// Parse tokenizes and parses one source file.
func Parse(file, src string) (*Module, []*SyntaxError) {
	p := NewParser(file, Tokenize(src))
	return p.ParseModule()
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) peek2() Token {
	if p.pos+2 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+2]
}

func (p *Parser) advance() Token {
	tok := p.cur()
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) errorf(line int, format string, args ...interface{}) {
	p.errors = append(p.errors, &SyntaxError{
		File:    p.file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// fail records an error and unwinds to the nearest recovery point.
func (p *Parser) fail(line int, format string, args ...interface{}) {
	p.errorf(line, format, args...)
	panic(bail{})
}

func (p *Parser) expect(t TokenType) Token {
	tok := p.cur()
	if tok.Type != t {
		p.fail(tok.Line, "expected %s, got %s", t, tok)
	}
	return p.advance()
}

func (p *Parser) skipNewlines() {
	for p.cur().Type == TokenNewline {
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Module and statements
// ---------------------------------------------------------------------------

// ParseModule parses the whole token stream.
func (p *Parser) ParseModule() (*Module, []*SyntaxError) {
	mod := &Module{SpanVal: Span{Line: 1}}

	for {
		p.skipNewlines()
		if tok := p.cur(); tok.Type == TokenEOF {
			break
		} else if tok.Type == TokenError {
			p.errorf(tok.Line, "%s", tok.Literal)
			p.advance()
			break
		}
		mod.Stmts = append(mod.Stmts, p.parseStatementRecover())
	}

	return mod, p.errors
}

// parseStatementRecover parses one statement, resynchronizing at the
// next statement boundary if the statement is malformed.
func (p *Parser) parseStatementRecover() (stmt Stmt) {
	line := p.cur().Line
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bail); !ok {
				panic(r)
			}
			p.synchronize()
			stmt = &EmptyStmt{SpanVal: Span{Line: line}}
		}
	}()
	return p.parseStatement()
}

// synchronize skips tokens to the next statement separator at the
// current nesting depth.
func (p *Parser) synchronize() {
	depth := 0
	for {
		switch p.cur().Type {
		case TokenEOF, TokenError:
			return
		case TokenNewline:
			if depth <= 0 {
				p.advance()
				return
			}
		case TokenLParen, TokenLBracket, TokenLBrace:
			depth++
		case TokenRParen, TokenRBracket, TokenRBrace:
			depth--
			if depth < 0 {
				return
			}
		}
		p.advance()
	}
}

func (p *Parser) parseStatement() Stmt {
	tok := p.cur()
	switch tok.Type {
	case TokenUse:
		return p.parseUse()
	case TokenPrint:
		p.advance()
		return &Print{SpanVal: Span{Line: tok.Line}, Value: p.parseExpression()}
	case TokenIf:
		return p.parseIf()
	case TokenLoop:
		p.advance()
		return &Loop{SpanVal: Span{Line: tok.Line}, Body: p.parseBlockStmt()}
	case TokenBreak:
		p.advance()
		return &Break{SpanVal: Span{Line: tok.Line}}
	case TokenRet:
		p.advance()
		ret := &Ret{SpanVal: Span{Line: tok.Line}}
		if t := p.cur().Type; t != TokenNewline && t != TokenRBrace && t != TokenEOF {
			ret.Value = p.parseExpression()
		}
		return ret
	case TokenLBrace:
		return p.parseBlockStmt()
	case TokenIdentifier:
		switch p.peek().Type {
		case TokenColonEqual, TokenColonColon, TokenColon:
			return p.parseDefinition()
		}
	}
	return p.parseAssignmentOrExpr()
}

func (p *Parser) parseUse() Stmt {
	tok := p.advance() // use
	name := p.expect(TokenIdentifier)
	return &Use{
		SpanVal: Span{Line: tok.Line},
		Ident:   &Identifier{SpanVal: Span{Line: name.Line}, Name: name.Literal},
	}
}

// parseDefinition handles x := e, x :: e, x : T = e, x : T : e,
// and blob type definitions Name :: blob { ... }.
func (p *Parser) parseDefinition() Stmt {
	name := p.expect(TokenIdentifier)
	ident := &Identifier{SpanVal: Span{Line: name.Line}, Name: name.Literal}

	switch p.cur().Type {
	case TokenColonEqual:
		p.advance()
		return &Definition{
			SpanVal: Span{Line: name.Line},
			Ident:   ident,
			Value:   p.parseExpression(),
		}

	case TokenColonColon:
		p.advance()
		if p.cur().Type == TokenBlob {
			return p.parseBlobDef(ident)
		}
		return &Definition{
			SpanVal: Span{Line: name.Line},
			Ident:   ident,
			Const:   true,
			Value:   p.parseExpression(),
		}

	case TokenColon:
		p.advance()
		ty := p.parseType()
		def := &Definition{SpanVal: Span{Line: name.Line}, Ident: ident, Type: ty}
		switch tok := p.cur(); tok.Type {
		case TokenEqual:
			p.advance()
		case TokenColon:
			p.advance()
			def.Const = true
		default:
			p.fail(tok.Line, "expected = or : after type in definition, got %s", tok)
		}
		def.Value = p.parseExpression()
		return def
	}

	// Unreachable from parseStatement's lookahead.
	p.fail(name.Line, "malformed definition of %q", name.Literal)
	return nil
}

func (p *Parser) parseBlobDef(ident *Identifier) Stmt {
	p.expect(TokenBlob)
	p.expect(TokenLBrace)
	p.skipNewlines()

	def := &BlobDef{SpanVal: ident.SpanVal, Ident: ident}
	for p.cur().Type != TokenRBrace {
		field := p.expect(TokenIdentifier)
		p.expect(TokenColon)
		def.Fields = append(def.Fields, FieldDecl{Name: field.Literal, Type: p.parseType()})
		if p.cur().Type == TokenComma {
			p.advance()
		}
		p.skipNewlines()
	}
	p.expect(TokenRBrace)
	return def
}

func (p *Parser) parseIf() Stmt {
	tok := p.advance() // if

	// Blob instantiation is off inside the condition so the branch
	// body's brace is not swallowed as a literal.
	saved := p.noBlob
	p.noBlob = true
	cond := p.parseExpression()
	p.noBlob = saved

	stmt := &If{SpanVal: Span{Line: tok.Line}, Cond: cond, Then: p.parseBlockStmt()}
	if p.cur().Type == TokenElse {
		p.advance()
		if p.cur().Type == TokenIf {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBlockStmt()
		}
	}
	return stmt
}

func (p *Parser) parseBlockStmt() *BlockStmt {
	open := p.expect(TokenLBrace)
	block := &BlockStmt{SpanVal: Span{Line: open.Line}}

	for {
		p.skipNewlines()
		if t := p.cur().Type; t == TokenRBrace || t == TokenEOF {
			break
		}
		block.Stmts = append(block.Stmts, p.parseStatementRecover())
	}
	p.expect(TokenRBrace)
	return block
}

func (p *Parser) parseAssignmentOrExpr() Stmt {
	line := p.cur().Line
	expr := p.parseExpression()

	if p.cur().Type == TokenEqual {
		eq := p.advance()
		get, ok := expr.(*Get)
		if !ok {
			p.fail(eq.Line, "cannot assign to this expression")
		}
		return &Assignment{
			SpanVal: Span{Line: line},
			Target:  get.Target,
			Value:   p.parseExpression(),
		}
	}
	return &ExprStmt{SpanVal: Span{Line: line}, Value: expr}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() Expr {
	return p.parsePrecedence(precArrow)
}

func (p *Parser) parsePrecedence(minPrec int) Expr {
	lhs := p.parsePrefix()

	for {
		tok := p.cur()
		prec, ok := infixPrecedence[tok.Type]
		if !ok || prec < minPrec {
			return lhs
		}
		p.advance()

		if tok.Type == TokenArrow {
			lhs = p.spliceArrow(tok, lhs)
			continue
		}

		rhs := p.parsePrecedence(prec + 1)
		lhs = &Binary{
			SpanVal: Span{Line: tok.Line},
			Op:      infixOps[tok.Type],
			Left:    lhs,
			Right:   rhs,
		}
	}
}

// spliceArrow rewrites a -> f(b, c) into f(a, b, c). The right-hand
// side must itself be a call.
func (p *Parser) spliceArrow(tok Token, lhs Expr) Expr {
	rhs := p.parsePrecedence(precArrow + 1)

	get, ok := rhs.(*Get)
	if !ok {
		p.fail(tok.Line, "expected a call after ->")
	}
	call, ok := get.Target.(*Call)
	if !ok {
		p.fail(tok.Line, "expected a call after ->")
	}
	call.Args = append([]Expr{lhs}, call.Args...)
	return rhs
}

func (p *Parser) parsePrefix() Expr {
	tok := p.cur()
	switch tok.Type {
	case TokenInt:
		p.advance()
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.fail(tok.Line, "malformed integer literal %q", tok.Literal)
		}
		return &IntLit{SpanVal: Span{Line: tok.Line}, Value: v}

	case TokenFloat:
		p.advance()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.fail(tok.Line, "malformed float literal %q", tok.Literal)
		}
		return &FloatLit{SpanVal: Span{Line: tok.Line}, Value: v}

	case TokenString:
		p.advance()
		return &StringLit{SpanVal: Span{Line: tok.Line}, Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.advance()
		return &BoolLit{SpanVal: Span{Line: tok.Line}, Value: tok.Type == TokenTrue}

	case TokenNil:
		p.advance()
		return &NilLit{SpanVal: Span{Line: tok.Line}}

	case TokenMinus:
		p.advance()
		return &Unary{SpanVal: Span{Line: tok.Line}, Op: OpNeg, Operand: p.parsePrecedence(precFactor + 1)}

	case TokenBang:
		p.advance()
		return &Unary{SpanVal: Span{Line: tok.Line}, Op: OpNot, Operand: p.parsePrecedence(precFactor + 1)}

	case TokenLParen:
		return p.parseGroupingOrTuple()

	case TokenLBracket:
		return p.parseListLit()

	case TokenLBrace:
		return p.parseSetOrDict()

	case TokenFn:
		return p.parseFnLit()

	case TokenIdentifier:
		if !p.noBlob {
			if blob, ok := p.tryBlobInst(); ok {
				return blob
			}
		}
		name := p.advance()
		ident := &Identifier{SpanVal: Span{Line: name.Line}, Name: name.Literal}
		target := p.parseAssignableChain(&Read{SpanVal: ident.SpanVal, Ident: ident})
		return &Get{SpanVal: ident.SpanVal, Target: target}

	case TokenError:
		p.fail(tok.Line, "%s", tok.Literal)
		return nil

	default:
		p.fail(tok.Line, "expected an expression, got %s", tok)
		return nil
	}
}

// parseAssignableChain extends a read with member access, calls and
// indexing.
func (p *Parser) parseAssignableChain(target Assignable) Assignable {
	for {
		switch tok := p.cur(); tok.Type {
		case TokenDot:
			p.advance()
			name := p.expect(TokenIdentifier)
			target = &Access{
				SpanVal: Span{Line: tok.Line},
				Target:  target,
				Ident:   &Identifier{SpanVal: Span{Line: name.Line}, Name: name.Literal},
			}

		case TokenLParen:
			p.advance()
			call := &Call{SpanVal: Span{Line: tok.Line}, Target: target}
			p.skipNewlines()
			for p.cur().Type != TokenRParen {
				// Arguments may themselves open braces; the condition
				// restriction does not apply inside the call.
				saved := p.noBlob
				p.noBlob = false
				call.Args = append(call.Args, p.parseExpression())
				p.noBlob = saved
				if p.cur().Type != TokenComma {
					break
				}
				p.advance()
				p.skipNewlines()
			}
			p.expect(TokenRParen)
			target = call

		case TokenLBracket:
			p.advance()
			p.skipNewlines()
			index := p.parseExpression()
			p.skipNewlines()
			p.expect(TokenRBracket)
			target = &Index{SpanVal: Span{Line: tok.Line}, Target: target, Expr: index}

		default:
			return target
		}
	}
}

// parseGroupingOrTuple disambiguates (e) from tuple literals. An empty
// pair, a lone comma, a trailing comma or more than one element makes
// a tuple; a single parenthesized expression is just that expression.
func (p *Parser) parseGroupingOrTuple() Expr {
	open := p.expect(TokenLParen)
	p.skipNewlines()

	tuple := &TupleLit{SpanVal: Span{Line: open.Line}}

	// () and (,) are both the zero-element tuple.
	if p.cur().Type == TokenRParen {
		p.advance()
		return tuple
	}
	if p.cur().Type == TokenComma {
		p.advance()
		p.skipNewlines()
		p.expect(TokenRParen)
		return tuple
	}

	first := p.parseExpression()
	p.skipNewlines()
	if p.cur().Type == TokenRParen {
		p.advance()
		return first // grouping
	}

	tuple.Elems = append(tuple.Elems, first)
	for p.cur().Type == TokenComma {
		p.advance()
		p.skipNewlines()
		if p.cur().Type == TokenRParen {
			break // trailing comma
		}
		tuple.Elems = append(tuple.Elems, p.parseExpression())
		p.skipNewlines()
	}
	p.expect(TokenRParen)
	return tuple
}

func (p *Parser) parseListLit() Expr {
	open := p.expect(TokenLBracket)
	list := &ListLit{SpanVal: Span{Line: open.Line}}

	p.skipNewlines()
	for p.cur().Type != TokenRBracket {
		list.Elems = append(list.Elems, p.parseExpression())
		p.skipNewlines()
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
		p.skipNewlines()
	}
	p.expect(TokenRBracket)
	return list
}

// parseSetOrDict disambiguates {} literals. A leading : or a : after
// the first element commits to a dict; otherwise the literal is a set.
// Mixing both entry styles is a syntax error.
func (p *Parser) parseSetOrDict() Expr {
	open := p.expect(TokenLBrace)
	p.skipNewlines()

	// {:} is the empty dict.
	if p.cur().Type == TokenColon {
		p.advance()
		p.skipNewlines()
		p.expect(TokenRBrace)
		return &DictLit{SpanVal: Span{Line: open.Line}}
	}

	// {} is the empty set.
	if p.cur().Type == TokenRBrace {
		p.advance()
		return &SetLit{SpanVal: Span{Line: open.Line}}
	}

	first := p.parseExpression()

	if p.cur().Type == TokenColon {
		p.advance()
		dict := &DictLit{SpanVal: Span{Line: open.Line}}
		dict.Keys = append(dict.Keys, first)
		dict.Values = append(dict.Values, p.parseExpression())
		p.skipNewlines()
		for p.cur().Type == TokenComma {
			p.advance()
			p.skipNewlines()
			if p.cur().Type == TokenRBrace {
				break
			}
			key := p.parseExpression()
			if tok := p.cur(); tok.Type != TokenColon {
				p.fail(tok.Line, "expected : after dict key")
			}
			p.advance()
			dict.Keys = append(dict.Keys, key)
			dict.Values = append(dict.Values, p.parseExpression())
			p.skipNewlines()
		}
		p.expect(TokenRBrace)
		return dict
	}

	set := &SetLit{SpanVal: Span{Line: open.Line}}
	set.Elems = append(set.Elems, first)
	p.skipNewlines()
	for p.cur().Type == TokenComma {
		p.advance()
		p.skipNewlines()
		if p.cur().Type == TokenRBrace {
			break
		}
		set.Elems = append(set.Elems, p.parseExpression())
		if tok := p.cur(); tok.Type == TokenColon {
			p.fail(tok.Line, "cannot mix set and dict entries in one literal")
		}
		p.skipNewlines()
	}
	p.expect(TokenRBrace)
	return set
}

// parseFnLit parses fn a: int, b: bool -> bool { ... }. A body opening
// without -> means a void return type.
func (p *Parser) parseFnLit() Expr {
	open := p.expect(TokenFn)
	fn := &FnLit{SpanVal: Span{Line: open.Line}}

	for p.cur().Type == TokenIdentifier {
		name := p.advance()
		p.expect(TokenColon)
		fn.Params = append(fn.Params, Param{
			Ident: &Identifier{SpanVal: Span{Line: name.Line}, Name: name.Literal},
			Type:  p.parseType(),
		})
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}

	switch tok := p.cur(); tok.Type {
	case TokenArrow:
		p.advance()
		fn.Ret = p.parseType()
	case TokenLBrace:
		fn.Ret = &NamedType{SpanVal: Span{Line: tok.Line}, Name: "void"}
	default:
		p.fail(tok.Line, "expected -> or { in function literal, got %s", tok)
	}

	fn.Body = p.parseBlockStmt()
	return fn
}

// tryBlobInst speculatively parses Name { field: expr, ... }. On any
// mismatch the parser position and error list roll back and the caller
// parses the identifier as an ordinary expression. A blob literal
// immediately followed by else is rejected: that is an if statement.
func (p *Parser) tryBlobInst() (expr Expr, ok bool) {
	savedPos := p.pos
	savedErrs := len(p.errors)

	defer func() {
		if r := recover(); r != nil {
			if _, isBail := r.(bail); !isBail {
				panic(r)
			}
			p.pos = savedPos
			p.errors = p.errors[:savedErrs]
			expr, ok = nil, false
		}
	}()

	name := p.expect(TokenIdentifier)
	ident := &Identifier{SpanVal: Span{Line: name.Line}, Name: name.Literal}
	var target Assignable = &Read{SpanVal: ident.SpanVal, Ident: ident}
	for p.cur().Type == TokenDot {
		p.advance()
		member := p.expect(TokenIdentifier)
		target = &Access{
			SpanVal: Span{Line: member.Line},
			Target:  target,
			Ident:   &Identifier{SpanVal: Span{Line: member.Line}, Name: member.Literal},
		}
	}

	p.expect(TokenLBrace)
	p.skipNewlines()

	inst := &BlobInst{SpanVal: ident.SpanVal, Blob: target}
	for p.cur().Type != TokenRBrace {
		field := p.expect(TokenIdentifier)
		p.expect(TokenColon)
		inst.Fields = append(inst.Fields, FieldInit{Name: field.Literal, Value: p.parseExpression()})
		if p.cur().Type == TokenComma {
			p.advance()
		}
		p.skipNewlines()
	}
	p.expect(TokenRBrace)

	if p.cur().Type == TokenElse {
		panic(bail{})
	}
	return inst, true
}

// ---------------------------------------------------------------------------
// Type expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseType() TypeExpr {
	tok := p.cur()
	switch tok.Type {
	case TokenIdentifier:
		p.advance()
		return &NamedType{SpanVal: Span{Line: tok.Line}, Name: tok.Literal}

	case TokenLParen:
		p.advance()
		tup := &TupleType{SpanVal: Span{Line: tok.Line}}
		p.skipNewlines()
		for p.cur().Type != TokenRParen {
			tup.Elems = append(tup.Elems, p.parseType())
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
			p.skipNewlines()
		}
		p.expect(TokenRParen)
		return tup

	case TokenLBracket:
		p.advance()
		elem := p.parseType()
		p.expect(TokenRBracket)
		return &ListType{SpanVal: Span{Line: tok.Line}, Elem: elem}

	case TokenLBrace:
		p.advance()
		first := p.parseType()
		if p.cur().Type == TokenColon {
			p.advance()
			value := p.parseType()
			p.expect(TokenRBrace)
			return &DictType{SpanVal: Span{Line: tok.Line}, Key: first, Value: value}
		}
		p.expect(TokenRBrace)
		return &SetType{SpanVal: Span{Line: tok.Line}, Elem: first}

	case TokenFn:
		p.advance()
		fn := &FnType{SpanVal: Span{Line: tok.Line}}
		for p.cur().Type != TokenArrow && p.cur().Type != TokenEOF {
			fn.Params = append(fn.Params, p.parseType())
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
		}
		p.expect(TokenArrow)
		fn.Ret = p.parseType()
		return fn

	default:
		p.fail(tok.Line, "expected a type, got %s", tok)
		return nil
	}
}
