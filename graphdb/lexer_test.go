package graphdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeCreateQuery(t *testing.T) {
	tokens, err := NewTokenizer(`CREATE (n:Person {name: "Alice", age: 30})`).Tokenize()
	require.NoError(t, err)

	expected := []Token{
		{Type: TokenKeyword, Value: "CREATE", Pos: 0},
		{Type: TokenSymbol, Value: "(", Pos: 7},
		{Type: TokenIdentifier, Value: "n", Pos: 8},
		{Type: TokenSymbol, Value: ":", Pos: 9},
		{Type: TokenIdentifier, Value: "Person", Pos: 10},
		{Type: TokenSymbol, Value: "{", Pos: 17},
		{Type: TokenIdentifier, Value: "name", Pos: 18},
		{Type: TokenSymbol, Value: ":", Pos: 22},
		{Type: TokenString, Value: "Alice", Pos: 24},
		{Type: TokenSymbol, Value: ",", Pos: 31},
		{Type: TokenIdentifier, Value: "age", Pos: 33},
		{Type: TokenSymbol, Value: ":", Pos: 36},
		{Type: TokenNumber, Value: "30", Pos: 38},
		{Type: TokenSymbol, Value: "}", Pos: 40},
		{Type: TokenSymbol, Value: ")", Pos: 41},
		{Type: TokenEOF, Pos: 42},
	}
	assert.Equal(t, expected, tokens)
}

func TestTokenizeKeywordsCaseInsensitive(t *testing.T) {
	tokens, err := NewTokenizer("match Create WHERE set delete Return").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 7)
	for _, tok := range tokens[:6] {
		assert.Equal(t, TokenKeyword, tok.Type)
	}
	// Original casing preserved
	assert.Equal(t, "match", tokens[0].Value)
	assert.Equal(t, "Create", tokens[1].Value)
}

func TestTokenizeArrow(t *testing.T) {
	tokens, err := NewTokenizer("-[r:KNOWS]->(b)").Tokenize()
	require.NoError(t, err)

	values := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Type == TokenSymbol {
			values = append(values, tok.Value)
		}
	}
	assert.Equal(t, []string{"-", "[", ":", "]", "->", "(", ")"}, values)
}

func TestTokenizeTrailingDash(t *testing.T) {
	tokens, err := NewTokenizer("a-").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, Token{Type: TokenSymbol, Value: "-", Pos: 1}, tokens[1])
}

func TestTokenizeIdentifierWithDigitsAndUnderscore(t *testing.T) {
	tokens, err := NewTokenizer("user_2fa").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Type: TokenIdentifier, Value: "user_2fa", Pos: 0}, tokens[0])
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := NewTokenizer(`MATCH (n:Person) WHERE n.name = "Ali`).Tokenize()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "position 32")
}

func TestTokenizeEmptyString(t *testing.T) {
	tokens, err := NewTokenizer(`""`).Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Type: TokenString, Value: "", Pos: 0}, tokens[0])
}

func TestTokenizeSkipsUnknownCharacters(t *testing.T) {
	tokens, err := NewTokenizer("a @ b").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, "a", tokens[0].Value)
	assert.Equal(t, "b", tokens[1].Value)
}

func TestTokenizeEmptyInput(t *testing.T) {
	tokens, err := NewTokenizer("").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenEOF, tokens[0].Type)
}
