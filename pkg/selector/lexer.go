// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package selector

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokInt
	tokFloat
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokKeyword
)

type token struct {
	kind tokenKind
	text string
	pos  int

	str string
	i   int64
	f   float64
}

var keywords = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {},
	"IS": {}, "NULL": {},
	"IN": {}, "LIKE": {}, "ESCAPE": {}, "BETWEEN": {},
	"TRUE": {}, "FALSE": {},
}

type lexer struct {
	src []rune
	pos int
}

func lex(expr string) ([]token, error) {
	l := &lexer{src: []rune(expr)}

	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	r := l.src[l.pos]

	switch {
	case r == '\'':
		return l.string()
	case isIdentStart(r):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		text := string(l.src[start:l.pos])
		if upper := strings.ToUpper(text); isKeyword(upper) {
			return token{kind: tokKeyword, text: upper, pos: start}, nil
		}
		return token{kind: tokIdent, text: text, pos: start}, nil
	case unicode.IsDigit(r) || r == '.' && l.pos+1 < len(l.src) && unicode.IsDigit(l.src[l.pos+1]):
		return l.number()
	case r == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case r == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case r == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case r == '<':
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '=' || l.src[l.pos] == '>') {
			l.pos++
		}
		return token{kind: tokOp, text: string(l.src[start:l.pos]), pos: start}, nil
	case r == '>':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
		}
		return token{kind: tokOp, text: string(l.src[start:l.pos]), pos: start}, nil
	case strings.ContainsRune("=+-*/", r):
		l.pos++
		return token{kind: tokOp, text: string(r), pos: start}, nil
	default:
		return token{}, syntaxError(start, fmt.Sprintf("unexpected character %q", r))
	}
}

// string reads a quoted literal; a doubled quote stands for one quote.
func (l *lexer) string() (token, error) {
	start := l.pos
	l.pos++

	var b strings.Builder
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		l.pos++
		if r != '\'' {
			b.WriteRune(r)
			continue
		}
		if l.pos < len(l.src) && l.src[l.pos] == '\'' {
			b.WriteRune('\'')
			l.pos++
			continue
		}
		return token{kind: tokString, text: string(l.src[start:l.pos]), pos: start, str: b.String()}, nil
	}

	return token{}, syntaxError(start, "unterminated string literal")
}

func (l *lexer) number() (token, error) {
	start := l.pos
	float := false

	for l.pos < len(l.src) {
		r := l.src[l.pos]
		switch {
		case unicode.IsDigit(r):
		case r == '.':
			float = true
		case r == 'e' || r == 'E':
			float = true
			if l.pos+1 < len(l.src) && (l.src[l.pos+1] == '+' || l.src[l.pos+1] == '-') {
				l.pos++
			}
		default:
			return l.numberToken(start, float)
		}
		l.pos++
	}

	return l.numberToken(start, float)
}

func (l *lexer) numberToken(start int, float bool) (token, error) {
	text := string(l.src[start:l.pos])
	tok := token{text: text, pos: start}

	if !float {
		i, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			tok.kind, tok.i = tokInt, i
			return tok, nil
		}
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, syntaxError(start, fmt.Sprintf("malformed number %q", text))
	}
	tok.kind, tok.f = tokFloat, f

	return tok, nil
}

func isKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '.'
}
