package graphdb

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// TokenType defines types of tokens
type TokenType int

const (
	TokenKeyword TokenType = iota
	TokenIdentifier
	TokenString
	TokenNumber
	TokenSymbol
	TokenEOF
)

// Token represents a lexical token. Pos is the byte offset of the token's
// first character in the input (for strings, the opening quote).
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// keywords are lexed case-insensitively, preserving original casing in Value
var keywords = map[string]bool{
	"CREATE": true,
	"MATCH":  true,
	"SET":    true,
	"DELETE": true,
	"RETURN": true,
	"WHERE":  true,
}

// Tokenizer breaks a query into tokens
type Tokenizer struct {
	input  string
	pos    int
	tokens []Token
}

// NewTokenizer initializes a new Tokenizer
func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{input: input}
}

// Tokenize processes the input query into tokens terminated by EOF
func (t *Tokenizer) Tokenize() ([]Token, error) {
	log := logrus.WithField("component", "Tokenizer")
	log.Debug("Starting tokenization")
	for t.pos < len(t.input) {
		switch {
		case unicode.IsSpace(rune(t.input[t.pos])):
			t.pos++
		case unicode.IsLetter(rune(t.input[t.pos])):
			t.readIdentifierOrKeyword()
		case t.input[t.pos] == '"':
			if err := t.readString(); err != nil {
				log.WithError(err).Error("Tokenization failed")
				return nil, err
			}
		case unicode.IsDigit(rune(t.input[t.pos])):
			t.readNumber()
		default:
			t.readSymbol()
		}
	}
	t.tokens = append(t.tokens, Token{Type: TokenEOF, Pos: len(t.input)})
	log.WithField("token_count", len(t.tokens)).Debug("Tokenization complete")
	return t.tokens, nil
}

// readIdentifierOrKeyword reads an identifier or keyword
func (t *Tokenizer) readIdentifierOrKeyword() {
	start := t.pos
	for t.pos < len(t.input) && (unicode.IsLetter(rune(t.input[t.pos])) || unicode.IsDigit(rune(t.input[t.pos])) || t.input[t.pos] == '_') {
		t.pos++
	}
	value := t.input[start:t.pos]
	tokenType := TokenIdentifier
	if keywords[strings.ToUpper(value)] {
		tokenType = TokenKeyword
	}
	t.tokens = append(t.tokens, Token{Type: tokenType, Value: value, Pos: start})
}

// readString reads a quoted string. No escape sequences; a string missing its
// closing quote is an error.
func (t *Tokenizer) readString() error {
	quotePos := t.pos
	t.pos++
	start := t.pos
	for t.pos < len(t.input) && t.input[t.pos] != '"' {
		t.pos++
	}
	if t.pos >= len(t.input) {
		return fmt.Errorf("%w: unterminated string starting at position %d", ErrParse, quotePos)
	}
	value := t.input[start:t.pos]
	t.pos++
	t.tokens = append(t.tokens, Token{Type: TokenString, Value: value, Pos: quotePos})
	return nil
}

// readNumber reads a run of ASCII digits
func (t *Tokenizer) readNumber() {
	start := t.pos
	for t.pos < len(t.input) && unicode.IsDigit(rune(t.input[t.pos])) {
		t.pos++
	}
	t.tokens = append(t.tokens, Token{Type: TokenNumber, Value: t.input[start:t.pos], Pos: start})
}

// readSymbol reads a single-character symbol, or the two-character arrow.
// Unknown characters are skipped with a warning.
func (t *Tokenizer) readSymbol() {
	start := t.pos
	switch t.input[t.pos] {
	case '(', ')', '{', '}', ':', ',', '=', '[', ']', '.':
		t.tokens = append(t.tokens, Token{Type: TokenSymbol, Value: string(t.input[t.pos]), Pos: start})
		t.pos++
	case '-':
		if t.pos+1 < len(t.input) && t.input[t.pos+1] == '>' {
			t.tokens = append(t.tokens, Token{Type: TokenSymbol, Value: "->", Pos: start})
			t.pos += 2
		} else {
			t.tokens = append(t.tokens, Token{Type: TokenSymbol, Value: "-", Pos: start})
			t.pos++
		}
	default:
		logrus.WithFields(logrus.Fields{
			"char": string(t.input[t.pos]),
			"pos":  t.pos,
		}).Warn("Unknown symbol, skipping")
		t.pos++
	}
}
