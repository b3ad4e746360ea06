package lang

import (
	"fmt"
	"strconv"
)

// TokenType defines the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenInt
	TokenDefine // :=
	TokenPlus
	TokenMinus
	TokenStar
	TokenRel
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "Ident"
	case TokenInt:
		return "Int"
	case TokenDefine:
		return ":="
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenRel:
		return "Rel"
	default:
		return "Unknown"
	}
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Col   int
}

// Lex splits an edge operation into tokens.
func Lex(input string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(input) {
		c := input[i]
		start := i
		switch {
		case c == ' ' || c == '\t':
			i++
		case isIdentifierStart(c):
			for i < len(input) && isIdentifierChar(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Type: TokenIdent, Value: input[start:i], Col: start + 1})
		case isDigit(c):
			for i < len(input) && isDigit(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Type: TokenInt, Value: input[start:i], Col: start + 1})
		case c == ':' && i+1 < len(input) && input[i+1] == '=':
			i += 2
			tokens = append(tokens, Token{Type: TokenDefine, Value: ":=", Col: start + 1})
		case c == '+':
			i++
			tokens = append(tokens, Token{Type: TokenPlus, Value: "+", Col: start + 1})
		case c == '-':
			i++
			tokens = append(tokens, Token{Type: TokenMinus, Value: "-", Col: start + 1})
		case c == '*':
			i++
			tokens = append(tokens, Token{Type: TokenStar, Value: "*", Col: start + 1})
		case c == '=' || c == '!' || c == '<' || c == '>':
			i++
			if i < len(input) && input[i] == '=' {
				i++
			}
			op := input[start:i]
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("col %d: unexpected %q", start+1, op)
			}
			tokens = append(tokens, Token{Type: TokenRel, Value: op, Col: start + 1})
		default:
			return nil, fmt.Errorf("col %d: unexpected character %q", start+1, c)
		}
	}
	tokens = append(tokens, Token{Type: TokenEOF, Col: len(input) + 1})
	return tokens, nil
}

func parseRel(s string) Rel {
	switch s {
	case "==":
		return OpEq
	case "!=":
		return OpNeq
	case "<":
		return OpLt
	case "<=":
		return OpLte
	case ">":
		return OpGt
	case ">=":
		return OpGte
	}
	return 0
}

func parseInt(tok Token, negative bool) (int64, error) {
	v, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("col %d: %w", tok.Col, err)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func isIdentifierStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentifierChar(c byte) bool {
	return isIdentifierStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
