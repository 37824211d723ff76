package compiler

import "testing"

func TestLexerOperators(t *testing.T) {
	input := ": :: := = == != < <= <=> > >= ! -> - + * /"
	want := []TokenType{
		TokenColon, TokenColonColon, TokenColonEqual,
		TokenEqual, TokenEqualEqual, TokenNotEqual,
		TokenLess, TokenLessEqual, TokenAssertEqual,
		TokenGreater, TokenGreaterEqual,
		TokenBang, TokenArrow, TokenMinus,
		TokenPlus, TokenStar, TokenSlash,
		TokenEOF,
	}

	tokens := Tokenize(input)
	if len(tokens) != len(want) {
		t.Fatalf("len(tokens) = %d, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Type != want[i] {
			t.Errorf("token %d = %s, want %s", i, tok.Type, want[i])
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input   string
		tokType TokenType
		literal string
	}{
		{"42", TokenInt, "42"},
		{"0", TokenInt, "0"},
		{"3.14", TokenFloat, "3.14"},
		{"1e10", TokenFloat, "1e10"},
		{"2.5e-3", TokenFloat, "2.5e-3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			if tok.Type != tt.tokType {
				t.Errorf("type = %s, want %s", tok.Type, tt.tokType)
			}
			if tok.Literal != tt.literal {
				t.Errorf("literal = %q, want %q", tok.Literal, tt.literal)
			}
		})
	}
}

func TestLexerDotAfterInt(t *testing.T) {
	// 1.foo is a member access on 1, not a float.
	tokens := Tokenize("1.foo")
	want := []TokenType{TokenInt, TokenDot, TokenIdentifier, TokenEOF}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d = %s, want %s", i, tokens[i].Type, w)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `"hello"`, "hello"},
		{"empty", `""`, ""},
		{"escapes", `"a\nb\t\"c\\"`, "a\nb\t\"c\\"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			if tok.Type != TokenString {
				t.Fatalf("type = %s, want STRING", tok.Type)
			}
			if tok.Literal != tt.want {
				t.Errorf("literal = %q, want %q", tok.Literal, tt.want)
			}
		})
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tok := NewLexer(`"oops`).NextToken()
	if tok.Type != TokenError {
		t.Errorf("type = %s, want ERROR", tok.Type)
	}
}

func TestLexerReservedWords(t *testing.T) {
	input := "fn if else loop break ret print use blob and or in true false nil"
	want := []TokenType{
		TokenFn, TokenIf, TokenElse, TokenLoop, TokenBreak, TokenRet,
		TokenPrint, TokenUse, TokenBlob, TokenAnd, TokenOr, TokenIn,
		TokenTrue, TokenFalse, TokenNil, TokenEOF,
	}

	tokens := Tokenize(input)
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d = %s, want %s", i, tokens[i].Type, w)
		}
	}
}

func TestLexerNewlinesAndComments(t *testing.T) {
	input := "a // comment\nb"
	tokens := Tokenize(input)
	want := []TokenType{TokenIdentifier, TokenNewline, TokenIdentifier, TokenEOF}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d = %s, want %s", i, tokens[i].Type, w)
		}
	}
	if tokens[2].Line != 2 {
		t.Errorf("line of b = %d, want 2", tokens[2].Line)
	}
}
