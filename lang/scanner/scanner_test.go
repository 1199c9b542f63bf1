package scanner_test

import (
	"testing"

	"github.com/mna/vela/lang/scanner"
	"github.com/mna/vela/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(src string) []token.Token {
	s := scanner.New(src)
	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll("(){}[],.-+;:*/ ! != = == < <= > >=")
	want := []token.Kind{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.LBRACK, token.RBRACK, token.COMMA, token.DOT, token.MINUS,
		token.PLUS, token.SEMICOLON, token.COLON, token.STAR, token.SLASH,
		token.BANG, token.BANGEQ, token.EQUAL, token.EQUALEQUAL,
		token.LESS, token.LESSEQ, token.GREATER, token.GREATEREQ, token.EOF,
	}
	assert.Equal(t, want, kinds(toks))
}

func TestScanKeywordsVsIdentifiers(t *testing.T) {
	toks := scanAll("var x = fun andy and x2")
	want := []token.Kind{token.VAR, token.IDENT, token.EQUAL, token.FUN, token.IDENT, token.AND, token.IDENT, token.EOF}
	require.Equal(t, want, kinds(toks))
	assert.Equal(t, "andy", toks[4].Lexeme)
	assert.Equal(t, "x2", toks[6].Lexeme)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll("123 1.5 0.")
	require.Len(t, toks, 5)
	assert.Equal(t, "123", toks[0].Lexeme)
	assert.Equal(t, "1.5", toks[1].Lexeme)
	// trailing dot with no fractional digit is not consumed as part of the number
	assert.Equal(t, "0", toks[2].Lexeme)
	assert.Equal(t, token.DOT, toks[3].Kind)
}

func TestScanString(t *testing.T) {
	toks := scanAll(`"hello there"`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "hello there", scanner.StringValue(toks[0].Lexeme))
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(`"hello`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.ILLEGAL, toks[0].Kind)
}

func TestScanLineTracking(t *testing.T) {
	toks := scanAll("var a = 1;\nvar b = 2;\nprint b;")
	var printLine int
	for _, tok := range toks {
		if tok.Kind == token.PRINT {
			printLine = tok.Line
		}
	}
	assert.Equal(t, 3, printLine)
}

func TestScanCommentsAreSkipped(t *testing.T) {
	toks := scanAll("1 // a comment\n+ 2")
	want := []token.Kind{token.NUMBER, token.PLUS, token.NUMBER, token.EOF}
	assert.Equal(t, want, kinds(toks))
}
