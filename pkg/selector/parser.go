// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package selector

import (
	"fmt"
	"regexp"
	"strings"

	jms "github.com/GwynCerbin/go_jms"
)

type parser struct {
	tokens []token
	pos    int
}

func parse(expr string) (node, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, nil
	}

	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, syntaxError(tok.pos, fmt.Sprintf("unexpected %q", tok.text))
	}

	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) keyword(word string) bool {
	if tok := p.peek(); tok.kind == tokKeyword && tok.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(word string) error {
	if !p.keyword(word) {
		tok := p.peek()
		return syntaxError(tok.pos, fmt.Sprintf("expected %s, got %q", word, tok.text))
	}
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok := p.peek()
	if tok.kind != kind {
		return token{}, syntaxError(tok.pos, fmt.Sprintf("expected %s, got %q", what, tok.text))
	}
	return p.advance(), nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) not() (node, error) {
	if p.keyword("NOT") {
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return notNode{x}, nil
	}
	return p.predicate()
}

func (p *parser) predicate() (node, error) {
	left, err := p.sum()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.kind == tokOp && isComparison(tok.text) {
		p.advance()
		right, err := p.sum()
		if err != nil {
			return nil, err
		}
		return compareNode{op: tok.text, left: left, right: right}, nil
	}

	if p.keyword("IS") {
		negate := p.keyword("NOT")
		if err = p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return isNullNode{x: left, negate: negate}, nil
	}

	negate := p.keyword("NOT")

	switch {
	case p.keyword("IN"):
		return p.in(left, negate)
	case p.keyword("LIKE"):
		return p.like(left, negate)
	case p.keyword("BETWEEN"):
		lo, err := p.sum()
		if err != nil {
			return nil, err
		}
		if err = p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.sum()
		if err != nil {
			return nil, err
		}
		return betweenNode{x: left, lo: lo, hi: hi, negate: negate}, nil
	}

	if negate {
		tok := p.peek()
		return nil, syntaxError(tok.pos, fmt.Sprintf("expected IN, LIKE or BETWEEN after NOT, got %q", tok.text))
	}

	return left, nil
}

func (p *parser) in(x node, negate bool) (node, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}

	var set []any
	for {
		lit, err := p.literal()
		if err != nil {
			return nil, err
		}
		set = append(set, lit)

		if p.peek().kind != tokComma {
			break
		}
		p.advance()
	}

	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}

	return inNode{x: x, set: set, negate: negate}, nil
}

func (p *parser) like(x node, negate bool) (node, error) {
	pattern, err := p.expect(tokString, "pattern string")
	if err != nil {
		return nil, err
	}

	var escape rune
	if p.keyword("ESCAPE") {
		tok, err := p.expect(tokString, "escape string")
		if err != nil {
			return nil, err
		}
		runes := []rune(tok.str)
		if len(runes) != 1 {
			return nil, syntaxError(tok.pos, "escape must be a single character")
		}
		escape = runes[0]
	}

	re, err := likePattern(pattern.str, escape)
	if err != nil {
		return nil, syntaxError(pattern.pos, err.Error())
	}

	return likeNode{x: x, re: re, negate: negate}, nil
}

// likePattern translates % and _ wildcards into an anchored regular expression.
func likePattern(pattern string, escape rune) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escape != 0 && r == escape:
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("pattern ends with escape character")
			}
			i++
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	return regexp.Compile(b.String())
}

func (p *parser) literal() (any, error) {
	tok := p.advance()

	switch tok.kind {
	case tokString:
		return tok.str, nil
	case tokInt:
		return tok.i, nil
	case tokFloat:
		return tok.f, nil
	case tokKeyword:
		switch tok.text {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
	case tokOp:
		if tok.text == "-" {
			switch next := p.advance(); next.kind {
			case tokInt:
				return -next.i, nil
			case tokFloat:
				return -next.f, nil
			}
		}
	}

	return nil, syntaxError(tok.pos, fmt.Sprintf("expected literal, got %q", tok.text))
}

func (p *parser) sum() (node, error) {
	left, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || tok.text != "+" && tok.text != "-" {
			return left, nil
		}
		p.advance()
		right, err := p.product()
		if err != nil {
			return nil, err
		}
		left = arithNode{op: tok.text, left: left, right: right}
	}
}

func (p *parser) product() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || tok.text != "*" && tok.text != "/" {
			return left, nil
		}
		p.advance()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = arithNode{op: tok.text, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if tok := p.peek(); tok.kind == tokOp && (tok.text == "-" || tok.text == "+") {
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if tok.text == "-" {
			return negNode{x}, nil
		}
		return x, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	tok := p.advance()

	switch tok.kind {
	case tokIdent:
		return identNode{jms.NewPropertyExpression(tok.text)}, nil
	case tokString:
		return literalNode{tok.str}, nil
	case tokInt:
		return literalNode{tok.i}, nil
	case tokFloat:
		return literalNode{tok.f}, nil
	case tokKeyword:
		switch tok.text {
		case "TRUE":
			return literalNode{true}, nil
		case "FALSE":
			return literalNode{false}, nil
		case "NULL":
			return literalNode{nil}, nil
		}
	case tokLParen:
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return n, nil
	}

	return nil, syntaxError(tok.pos, fmt.Sprintf("unexpected %q", tok.text))
}

func isComparison(op string) bool {
	switch op {
	case "=", "<>", "<", ">", "<=", ">=":
		return true
	default:
		return false
	}
}
