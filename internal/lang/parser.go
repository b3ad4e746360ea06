package lang

import (
	"errors"
	"fmt"
)

var errNoVariable = errors.New("assumption must mention a variable")

// Parse reads one edge operation:
//
//	skip
//	x := 3 | x := y | x := y + 2 | x := y - 2 | x := *
//	assume x < 3 | assume 3 > x | assume x == y + 1
func Parse(input string) (Op, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	op, err := p.op()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", input, err)
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, fmt.Errorf("parse %q: col %d: unexpected %q", input, tok.Col, tok.Value)
	}
	return op, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(tt TokenType) (Token, error) {
	tok := p.next()
	if tok.Type != tt {
		return tok, fmt.Errorf("col %d: expected %s, got %q", tok.Col, tt, tok.Value)
	}
	return tok, nil
}

func (p *parser) op() (Op, error) {
	tok := p.peek()
	if tok.Type != TokenIdent {
		return nil, fmt.Errorf("col %d: expected operation, got %q", tok.Col, tok.Value)
	}
	switch tok.Value {
	case "skip":
		p.next()
		return Skip{}, nil
	case "assume":
		p.next()
		return p.assume()
	}

	target := p.next().Value
	if _, err := p.expect(TokenDefine); err != nil {
		return nil, err
	}
	if p.peek().Type == TokenStar {
		p.next()
		return Havoc{Target: target}, nil
	}
	value, err := p.term()
	if err != nil {
		return nil, err
	}
	return Assign{Target: target, Value: value}, nil
}

func (p *parser) assume() (Op, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	relTok, err := p.expect(TokenRel)
	if err != nil {
		return nil, err
	}
	right, err := p.term()
	if err != nil {
		return nil, err
	}
	rel := parseRel(relTok.Value)

	switch {
	case !left.IsConst() && left.Const == 0:
		return Assume{Left: left.Var, Rel: rel, Right: right}, nil
	case !left.IsConst() && right.IsConst():
		// x + c REL k  =>  x REL k - c
		return Assume{Left: left.Var, Rel: rel, Right: Term{Const: right.Const - left.Const}}, nil
	case left.IsConst() && !right.IsConst():
		// k REL y + c  =>  y REL' k - c
		return Assume{Left: right.Var, Rel: rel.Flip(), Right: Term{Const: left.Const - right.Const}}, nil
	case !left.IsConst() && !right.IsConst():
		// x + a REL y + b  =>  x REL y + (b - a)
		return Assume{Left: left.Var, Rel: rel, Right: Term{Var: right.Var, Const: right.Const - left.Const}}, nil
	}
	return nil, errNoVariable
}

// term parses [-]int | ident | ident (+|-) int
func (p *parser) term() (Term, error) {
	tok := p.next()
	switch tok.Type {
	case TokenMinus:
		n, err := p.expect(TokenInt)
		if err != nil {
			return Term{}, err
		}
		v, err := parseInt(n, true)
		return Term{Const: v}, err
	case TokenInt:
		v, err := parseInt(tok, false)
		return Term{Const: v}, err
	case TokenIdent:
		t := Term{Var: tok.Value}
		if next := p.peek(); next.Type == TokenPlus || next.Type == TokenMinus {
			p.next()
			n, err := p.expect(TokenInt)
			if err != nil {
				return Term{}, err
			}
			v, err := parseInt(n, next.Type == TokenMinus)
			if err != nil {
				return Term{}, err
			}
			t.Const = v
		}
		return t, nil
	}
	return Term{}, fmt.Errorf("col %d: expected term, got %q", tok.Col, tok.Value)
}
