package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var fieldLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Name", Pattern: `[A-Za-z]+`},
	{Name: "Punct", Pattern: `[*?,/#-]`},
})

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenName
	tokenAny
	tokenComma
	tokenDash
	tokenSlash
	tokenHash
)

func (k tokenKind) String() string {
	switch k {
	case tokenNumber:
		return "number"
	case tokenName:
		return "name"
	case tokenAny:
		return "wildcard"
	case tokenComma:
		return "','"
	case tokenDash:
		return "'-'"
	case tokenSlash:
		return "'/'"
	case tokenHash:
		return "'#'"
	}
	return "unknown"
}

// token is one lexical element of a single cron field.
// value is only meaningful for tokenNumber.
type token struct {
	kind  tokenKind
	text  string
	value int
}

func (t token) is(kind tokenKind) bool {
	return t.kind == kind
}

// isName reports whether t is a name token equal to name, ignoring case.
func (t token) isName(name string) bool {
	return t.kind == tokenName && strings.EqualFold(t.text, name)
}

// tokenize lexes a single cron field into typed tokens.
func tokenize(field string) ([]token, error) {
	lex, err := fieldLexer.LexString("", field)
	if err != nil {
		return nil, err
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}

	symbols := fieldLexer.Symbols()
	tokens := make([]token, 0, len(raw))
	for _, rt := range raw {
		if rt.EOF() {
			break
		}
		switch rt.Type {
		case symbols["Number"]:
			n, err := strconv.Atoi(rt.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", rt.Value)
			}
			tokens = append(tokens, token{kind: tokenNumber, text: rt.Value, value: n})
		case symbols["Name"]:
			tokens = append(tokens, token{kind: tokenName, text: rt.Value})
		case symbols["Punct"]:
			tokens = append(tokens, token{kind: punctKind(rt.Value), text: rt.Value})
		default:
			return nil, fmt.Errorf("unexpected input %q", rt.Value)
		}
	}
	return tokens, nil
}

func punctKind(p string) tokenKind {
	switch p {
	case ",":
		return tokenComma
	case "-":
		return tokenDash
	case "/":
		return tokenSlash
	case "#":
		return tokenHash
	}
	return tokenAny
}

// splitItems splits a token list on commas. Empty items are rejected.
func splitItems(tokens []token) ([][]token, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty field")
	}
	var items [][]token
	var current []token
	for _, t := range tokens {
		if t.is(tokenComma) {
			if len(current) == 0 {
				return nil, fmt.Errorf("empty list item")
			}
			items = append(items, current)
			current = nil
			continue
		}
		current = append(current, t)
	}
	if len(current) == 0 {
		return nil, fmt.Errorf("empty list item")
	}
	return append(items, current), nil
}

// kinds returns the token kinds of item, used to match item shapes.
func kinds(item []token) []tokenKind {
	out := make([]tokenKind, len(item))
	for i, t := range item {
		out[i] = t.kind
	}
	return out
}

func shapeIs(item []token, shape ...tokenKind) bool {
	if len(item) != len(shape) {
		return false
	}
	for i, k := range kinds(item) {
		if k != shape[i] {
			return false
		}
	}
	return true
}
