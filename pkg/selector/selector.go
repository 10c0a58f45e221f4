// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package selector compiles message selectors, the SQL-92 conditional expression subset
// used to filter deliveries by envelope fields and user properties.
package selector

import (
	"fmt"
	"strings"

	jms "github.com/GwynCerbin/go_jms"
)

// InvalidSelectorError is returned when a selector does not parse.
type InvalidSelectorError struct{}

func (InvalidSelectorError) Error() string {
	return "invalid selector"
}

func syntaxError(pos int, msg string) error {
	return fmt.Errorf("%w: at %d: %s", InvalidSelectorError{}, pos, msg)
}

// Selector is a compiled selector. It is safe for concurrent use.
type Selector struct {
	expr string
	root node
}

// Compile parses expr. An empty expression matches every message.
func Compile(expr string) (*Selector, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return &Selector{expr: strings.TrimSpace(expr), root: root}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(expr string) *Selector {
	s, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Matches reports whether m satisfies the selector. Unknown results do not match.
func (s *Selector) Matches(m *jms.Message) (bool, error) {
	if s == nil || s.root == nil {
		return true, nil
	}

	v, err := s.root.eval(m)
	if err != nil {
		return false, fmt.Errorf("evaluate selector %q: %w", s.expr, err)
	}

	return v == true, nil
}

func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	return s.expr
}
