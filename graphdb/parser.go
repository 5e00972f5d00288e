package graphdb

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Parser converts a token stream into an AST by recursive descent. No error
// recovery: the first unexpected token aborts the parse.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser initializes a new Parser
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses the query into an AST
func (p *Parser) Parse() (ASTNode, error) {
	log := logrus.WithField("component", "Parser")
	log.Debug("Starting parsing")
	if len(p.tokens) == 0 || p.tokens[0].Type == TokenEOF {
		return ASTNode{}, fmt.Errorf("%w: empty query", ErrParse)
	}
	node, err := p.query()
	if err != nil {
		log.WithError(err).Error("Failed to parse query")
		return ASTNode{}, err
	}
	if p.current().Type != TokenEOF {
		log.Error("Unexpected tokens after query")
		return ASTNode{}, p.unexpected("end of query")
	}
	log.Debug("Parsing complete")
	return node, nil
}

// current returns the token at the cursor; past the end it returns EOF
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Pos: p.pos}
	}
	return p.tokens[p.pos]
}

// unexpected builds a parse error for the current token
func (p *Parser) unexpected(want string) error {
	tok := p.current()
	value := tok.Value
	if tok.Type == TokenEOF {
		value = "EOF"
	}
	return fmt.Errorf("%w: unexpected token %q at position %d, expected %s", ErrParse, value, tok.Pos, want)
}

// query parses a sequence of clauses up to EOF
func (p *Parser) query() (ASTNode, error) {
	node := ASTNode{Type: NodeQuery}
	for p.current().Type != TokenEOF {
		var (
			clause ASTNode
			err    error
		)
		switch strings.ToUpper(p.current().Value) {
		case "CREATE":
			clause, err = p.createClause()
		case "MATCH":
			clause, err = p.matchClause()
		case "WHERE":
			clause, err = p.whereClause()
		case "SET":
			clause, err = p.setClause()
		case "DELETE":
			clause, err = p.deleteClause()
		case "RETURN":
			clause, err = p.returnClause()
		default:
			return ASTNode{}, p.unexpected("a clause keyword")
		}
		if err != nil {
			return ASTNode{}, err
		}
		node.Children = append(node.Children, clause)
	}
	return node, nil
}

// createClause parses CREATE followed by comma-separated patterns
func (p *Parser) createClause() (ASTNode, error) {
	if !p.expect(TokenKeyword, "CREATE") {
		return ASTNode{}, p.unexpected("CREATE")
	}
	node := ASTNode{Type: NodeCreate}
	for {
		pattern, err := p.pattern()
		if err != nil {
			return ASTNode{}, err
		}
		node.Children = append(node.Children, pattern)
		if !p.accept(TokenSymbol, ",") {
			break
		}
	}
	return node, nil
}

// matchClause parses MATCH followed by comma-separated patterns
func (p *Parser) matchClause() (ASTNode, error) {
	if !p.expect(TokenKeyword, "MATCH") {
		return ASTNode{}, p.unexpected("MATCH")
	}
	node := ASTNode{Type: NodeMatch}
	for {
		pattern, err := p.pattern()
		if err != nil {
			return ASTNode{}, err
		}
		node.Children = append(node.Children, pattern)
		if !p.accept(TokenSymbol, ",") {
			break
		}
	}
	return node, nil
}

// whereClause parses WHERE followed by one expression
func (p *Parser) whereClause() (ASTNode, error) {
	if !p.expect(TokenKeyword, "WHERE") {
		return ASTNode{}, p.unexpected("WHERE")
	}
	node := ASTNode{Type: NodeWhere}
	expr, err := p.expression()
	if err != nil {
		return ASTNode{}, err
	}
	node.Children = append(node.Children, expr)
	return node, nil
}

// setClause parses SET followed by comma-separated property assignments
func (p *Parser) setClause() (ASTNode, error) {
	if !p.expect(TokenKeyword, "SET") {
		return ASTNode{}, p.unexpected("SET")
	}
	node := ASTNode{Type: NodeSet}
	for {
		prop, err := p.propertyAssignment()
		if err != nil {
			return ASTNode{}, err
		}
		node.Children = append(node.Children, prop)
		if !p.accept(TokenSymbol, ",") {
			break
		}
	}
	return node, nil
}

// deleteClause parses DELETE followed by comma-separated identifiers
func (p *Parser) deleteClause() (ASTNode, error) {
	if !p.expect(TokenKeyword, "DELETE") {
		return ASTNode{}, p.unexpected("DELETE")
	}
	node := ASTNode{Type: NodeDelete}
	for {
		if !p.expect(TokenIdentifier, "") {
			return ASTNode{}, p.unexpected("an identifier")
		}
		node.Children = append(node.Children, ASTNode{
			Type:  NodeIdentifier,
			Value: p.tokens[p.pos-1].Value,
		})
		if !p.accept(TokenSymbol, ",") {
			break
		}
	}
	return node, nil
}

// returnClause parses RETURN followed by comma-separated identifiers
func (p *Parser) returnClause() (ASTNode, error) {
	if !p.expect(TokenKeyword, "RETURN") {
		return ASTNode{}, p.unexpected("RETURN")
	}
	node := ASTNode{Type: NodeReturn}
	for {
		if !p.expect(TokenIdentifier, "") {
			return ASTNode{}, p.unexpected("an identifier")
		}
		node.Children = append(node.Children, ASTNode{
			Type:  NodeIdentifier,
			Value: p.tokens[p.pos-1].Value,
		})
		if !p.accept(TokenSymbol, ",") {
			break
		}
	}
	return node, nil
}

// pattern parses "(node)" optionally followed by "-[rel]->(node)"
func (p *Parser) pattern() (ASTNode, error) {
	node := ASTNode{Type: NodePattern}
	if !p.expect(TokenSymbol, "(") {
		return ASTNode{}, p.unexpected("(")
	}
	nodeNode, err := p.node()
	if err != nil {
		return ASTNode{}, err
	}
	node.Children = append(node.Children, nodeNode)
	if !p.expect(TokenSymbol, ")") {
		return ASTNode{}, p.unexpected(")")
	}

	if p.accept(TokenSymbol, "-") {
		rel, err := p.relationship()
		if err != nil {
			return ASTNode{}, err
		}
		node.Children = append(node.Children, rel)
		if !p.expect(TokenSymbol, "(") {
			return ASTNode{}, p.unexpected("( after relationship")
		}
		nodeNode, err := p.node()
		if err != nil {
			return ASTNode{}, err
		}
		node.Children = append(node.Children, nodeNode)
		if !p.expect(TokenSymbol, ")") {
			return ASTNode{}, p.unexpected(")")
		}
	}
	return node, nil
}

// node parses the inside of a node pattern: [var] [:Label] [{props}]
func (p *Parser) node() (ASTNode, error) {
	node := ASTNode{Type: NodeNode}
	if p.accept(TokenIdentifier, "") {
		node.Value = p.tokens[p.pos-1].Value
	}
	if p.accept(TokenSymbol, ":") {
		if !p.expect(TokenIdentifier, "") {
			return ASTNode{}, p.unexpected("a label after :")
		}
		node.Children = append(node.Children, ASTNode{
			Type:  NodeLabel,
			Value: p.tokens[p.pos-1].Value,
		})
	}
	props, err := p.propertyBlock()
	if err != nil {
		return ASTNode{}, err
	}
	node.Children = append(node.Children, props...)
	return node, nil
}

// relationship parses "[var] [:TYPE] [{props}] ] ->"; the opening "-" has
// already been consumed by pattern
func (p *Parser) relationship() (ASTNode, error) {
	node := ASTNode{Type: NodeRelationship}
	if !p.expect(TokenSymbol, "[") {
		return ASTNode{}, p.unexpected("[")
	}
	if p.accept(TokenIdentifier, "") {
		node.Value = p.tokens[p.pos-1].Value
	}
	if p.accept(TokenSymbol, ":") {
		if !p.expect(TokenIdentifier, "") {
			return ASTNode{}, p.unexpected("a relationship type after :")
		}
		node.Children = append(node.Children, ASTNode{
			Type:  NodeType,
			Value: p.tokens[p.pos-1].Value,
		})
	}
	props, err := p.propertyBlock()
	if err != nil {
		return ASTNode{}, err
	}
	node.Children = append(node.Children, props...)
	if !p.expect(TokenSymbol, "]") {
		return ASTNode{}, p.unexpected("]")
	}
	if !p.expect(TokenSymbol, "->") {
		return ASTNode{}, p.unexpected("->")
	}
	return node, nil
}

// propertyBlock parses an optional "{ key: literal, ... }"
func (p *Parser) propertyBlock() ([]ASTNode, error) {
	if !p.accept(TokenSymbol, "{") {
		return nil, nil
	}
	var props []ASTNode
	for p.current().Type != TokenEOF && p.current().Value != "}" {
		prop, err := p.property()
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
		if !p.accept(TokenSymbol, ",") {
			break
		}
	}
	if !p.expect(TokenSymbol, "}") {
		return nil, p.unexpected("}")
	}
	return props, nil
}

// property parses "key: literal" into a two-child property node
func (p *Parser) property() (ASTNode, error) {
	if !p.expect(TokenIdentifier, "") {
		return ASTNode{}, p.unexpected("a property key")
	}
	key := p.tokens[p.pos-1].Value
	if !p.expect(TokenSymbol, ":") {
		return ASTNode{}, p.unexpected(": after property key")
	}
	lit, err := p.literal()
	if err != nil {
		return ASTNode{}, err
	}
	return ASTNode{
		Type: NodeProperty,
		Children: []ASTNode{
			{Type: NodeIdentifier, Value: key},
			lit,
		},
	}, nil
}

// propertyAssignment parses "var.key = literal" into a three-child property
// node
func (p *Parser) propertyAssignment() (ASTNode, error) {
	varName, key, lit, err := p.dottedAssignment()
	if err != nil {
		return ASTNode{}, err
	}
	return ASTNode{
		Type: NodeProperty,
		Children: []ASTNode{
			{Type: NodeIdentifier, Value: varName},
			{Type: NodeIdentifier, Value: key},
			lit,
		},
	}, nil
}

// expression parses "var.key = literal" into a three-child expression node
func (p *Parser) expression() (ASTNode, error) {
	varName, key, lit, err := p.dottedAssignment()
	if err != nil {
		return ASTNode{}, err
	}
	return ASTNode{
		Type: NodeExpression,
		Children: []ASTNode{
			{Type: NodeIdentifier, Value: varName},
			{Type: NodeIdentifier, Value: key},
			lit,
		},
	}, nil
}

// dottedAssignment parses the shared "var.key = literal" shape
func (p *Parser) dottedAssignment() (string, string, ASTNode, error) {
	if !p.expect(TokenIdentifier, "") {
		return "", "", ASTNode{}, p.unexpected("an identifier")
	}
	varName := p.tokens[p.pos-1].Value
	if !p.expect(TokenSymbol, ".") {
		return "", "", ASTNode{}, p.unexpected(".")
	}
	if !p.expect(TokenIdentifier, "") {
		return "", "", ASTNode{}, p.unexpected("a property key")
	}
	key := p.tokens[p.pos-1].Value
	if !p.expect(TokenSymbol, "=") {
		return "", "", ASTNode{}, p.unexpected("=")
	}
	lit, err := p.literal()
	if err != nil {
		return "", "", ASTNode{}, err
	}
	return varName, key, lit, nil
}

// literal parses a string, number, or boolean into a literal node whose
// single child carries the type tag
func (p *Parser) literal() (ASTNode, error) {
	tok := p.current()
	var propType PropertyType
	switch tok.Type {
	case TokenString:
		propType = PropertyString
	case TokenNumber:
		propType = PropertyInt
	case TokenIdentifier:
		lower := strings.ToLower(tok.Value)
		if lower != "true" && lower != "false" {
			return ASTNode{}, p.unexpected("a literal value")
		}
		propType = PropertyBool
	default:
		return ASTNode{}, p.unexpected("a literal value")
	}
	p.pos++
	return ASTNode{
		Type:     NodeLiteral,
		Value:    tok.Value,
		Children: []ASTNode{{Type: NodeLiteral, Value: propType.String()}},
	}, nil
}

// expect checks and consumes a token. An empty value matches any token of the
// given type; keywords match case-insensitively.
func (p *Parser) expect(tokenType TokenType, value string) bool {
	current := p.current()
	if current.Type != tokenType {
		return false
	}
	switch {
	case value == "":
	case tokenType == TokenKeyword:
		if !strings.EqualFold(current.Value, value) {
			return false
		}
	default:
		if current.Value != value {
			return false
		}
	}
	p.pos++
	return true
}

// accept is expect under a name that signals the token is optional
func (p *Parser) accept(tokenType TokenType, value string) bool {
	return p.expect(tokenType, value)
}
