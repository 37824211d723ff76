package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for sylt source text
// ---------------------------------------------------------------------------

// Lexer tokenizes sylt source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.pos = l.readPos
		l.readPos += size
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	line := l.line

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Line: line}

	case l.ch == '\n':
		l.readChar()
		l.line++
		return Token{Type: TokenNewline, Literal: "\n", Line: line}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Line: line}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Line: line}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Line: line}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Line: line}

	case l.ch == '{':
		l.readChar()
		return Token{Type: TokenLBrace, Literal: "{", Line: line}

	case l.ch == '}':
		l.readChar()
		return Token{Type: TokenRBrace, Literal: "}", Line: line}

	case l.ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Line: line}

	case l.ch == '.':
		l.readChar()
		return Token{Type: TokenDot, Literal: ".", Line: line}

	case l.ch == ':':
		l.readChar()
		switch l.ch {
		case ':':
			l.readChar()
			return Token{Type: TokenColonColon, Literal: "::", Line: line}
		case '=':
			l.readChar()
			return Token{Type: TokenColonEqual, Literal: ":=", Line: line}
		}
		return Token{Type: TokenColon, Literal: ":", Line: line}

	case l.ch == '+':
		l.readChar()
		return Token{Type: TokenPlus, Literal: "+", Line: line}

	case l.ch == '-':
		l.readChar()
		if l.ch == '>' {
			l.readChar()
			return Token{Type: TokenArrow, Literal: "->", Line: line}
		}
		return Token{Type: TokenMinus, Literal: "-", Line: line}

	case l.ch == '*':
		l.readChar()
		return Token{Type: TokenStar, Literal: "*", Line: line}

	case l.ch == '/':
		l.readChar()
		return Token{Type: TokenSlash, Literal: "/", Line: line}

	case l.ch == '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenEqualEqual, Literal: "==", Line: line}
		}
		return Token{Type: TokenEqual, Literal: "=", Line: line}

	case l.ch == '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenNotEqual, Literal: "!=", Line: line}
		}
		return Token{Type: TokenBang, Literal: "!", Line: line}

	case l.ch == '<':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			if l.ch == '>' {
				l.readChar()
				return Token{Type: TokenAssertEqual, Literal: "<=>", Line: line}
			}
			return Token{Type: TokenLessEqual, Literal: "<=", Line: line}
		}
		return Token{Type: TokenLess, Literal: "<", Line: line}

	case l.ch == '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenGreaterEqual, Literal: ">=", Line: line}
		}
		return Token{Type: TokenGreater, Literal: ">", Line: line}

	case l.ch == '"':
		return l.readString(line)

	case isDigit(l.ch):
		return l.readNumber(line)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(line)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Line: line}
	}
}

// skipWhitespaceAndComments skips horizontal whitespace and // comments.
// Newlines are significant (statement separators) and are not skipped.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		break
	}
}

// readString reads a double-quoted string literal with escapes.
func (l *Lexer) readString(line int) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != 0 && l.ch != '"' {
		if l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Line: line}
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("invalid escape: \\%c", l.ch), Line: line}
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch != '"' {
		return Token{Type: TokenError, Literal: "unterminated string", Line: line}
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Line: line}
}

// readNumber reads an integer or float literal.
func (l *Lexer) readNumber(line int) Token {
	start := l.pos
	isFloat := false

	for isDigit(l.ch) {
		l.readChar()
	}

	// Fraction. A '.' not followed by a digit is a member access, not a float.
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// Exponent
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if isFloat {
		return Token{Type: TokenFloat, Literal: l.input[start:l.pos], Line: line}
	}
	return Token{Type: TokenInt, Literal: l.input[start:l.pos], Line: line}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(line int) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]
	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Line: line}
	}
	return Token{Type: TokenIdentifier, Literal: literal, Line: line}
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF or ERROR.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
