package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerTokens(t *testing.T) {
	input := `[ category:sql ] | function:run | [ category:io ] +app max-frames=3`

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{LBRACKET, "["},
		{WORD, "category:sql"},
		{RBRACKET, "]"},
		{PIPE, "|"},
		{WORD, "function:run"},
		{PIPE, "|"},
		{LBRACKET, "["},
		{WORD, "category:io"},
		{RBRACKET, "]"},
		{WORD, "+app"},
		{WORD, "max-frames=3"},
		{EOF, ""},
	}

	l := NewLexer(input)
	for i, want := range expected {
		tok := l.NextToken()
		require.Equal(t, want.typ, tok.Type, "token %d type", i)
		assert.Equal(t, want.literal, tok.Literal, "token %d literal", i)
	}
}

func TestLexerBracketsInsidePatterns(t *testing.T) {
	// Brackets only delimit at a word boundary; inside a word they are
	// glob character classes.
	l := NewLexer(`function:std::[a-z]* -group`)

	tok := l.NextToken()
	require.Equal(t, WORD, tok.Type)
	assert.Equal(t, "function:std::[a-z]*", tok.Literal)

	tok = l.NextToken()
	require.Equal(t, WORD, tok.Type)
	assert.Equal(t, "-group", tok.Literal)

	assert.Equal(t, EOF, l.NextToken().Type)
}

func TestLexerQuotedSections(t *testing.T) {
	l := NewLexer(`function:"foo bar" +app`)

	tok := l.NextToken()
	require.Equal(t, WORD, tok.Type)
	assert.Equal(t, `function:"foo bar"`, tok.Literal)

	tok = l.NextToken()
	assert.Equal(t, "+app", tok.Literal)
}

func TestLexerComments(t *testing.T) {
	l := NewLexer(`path:**/foo.js # trailing note`)

	tok := l.NextToken()
	require.Equal(t, WORD, tok.Type)
	assert.Equal(t, "path:**/foo.js", tok.Literal)

	assert.Equal(t, EOF, l.NextToken().Type)
	assert.Equal(t, EOF, l.NextToken().Type)
}

func TestLexerEmptyInput(t *testing.T) {
	l := NewLexer("   \t ")
	assert.Equal(t, EOF, l.NextToken().Type)
}
