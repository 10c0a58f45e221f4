// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package selector

import (
	"regexp"

	jms "github.com/GwynCerbin/go_jms"
)

// node evaluates to nil (unknown), bool, int64, float64 or string.
type node interface {
	eval(m *jms.Message) (any, error)
}

type literalNode struct{ v any }

func (n literalNode) eval(*jms.Message) (any, error) { return n.v, nil }

type identNode struct{ expr jms.PropertyExpression }

func (n identNode) eval(m *jms.Message) (any, error) {
	v, err := n.expr.Evaluate(m)
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

type notNode struct{ x node }

func (n notNode) eval(m *jms.Message) (any, error) {
	v, err := n.x.eval(m)
	if err != nil {
		return nil, err
	}
	if b, ok := v.(bool); ok {
		return !b, nil
	}
	return nil, nil
}

type andNode struct{ left, right node }

func (n andNode) eval(m *jms.Message) (any, error) {
	l, err := n.left.eval(m)
	if err != nil {
		return nil, err
	}
	if b, ok := l.(bool); ok && !b {
		return false, nil
	}

	r, err := n.right.eval(m)
	if err != nil {
		return nil, err
	}
	if b, ok := r.(bool); ok && !b {
		return false, nil
	}

	if l == true && r == true {
		return true, nil
	}
	return nil, nil
}

type orNode struct{ left, right node }

func (n orNode) eval(m *jms.Message) (any, error) {
	l, err := n.left.eval(m)
	if err != nil {
		return nil, err
	}
	if l == true {
		return true, nil
	}

	r, err := n.right.eval(m)
	if err != nil {
		return nil, err
	}
	if r == true {
		return true, nil
	}

	if l == false && r == false {
		return false, nil
	}
	return nil, nil
}

type compareNode struct {
	op          string
	left, right node
}

func (n compareNode) eval(m *jms.Message) (any, error) {
	l, err := n.left.eval(m)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(m)
	if err != nil {
		return nil, err
	}
	return compare(n.op, l, r), nil
}

type arithNode struct {
	op          string
	left, right node
}

func (n arithNode) eval(m *jms.Message) (any, error) {
	l, err := n.left.eval(m)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(m)
	if err != nil {
		return nil, err
	}
	return arithmetic(n.op, l, r), nil
}

type negNode struct{ x node }

func (n negNode) eval(m *jms.Message) (any, error) {
	v, err := n.x.eval(m)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case int64:
		return -t, nil
	case float64:
		return -t, nil
	default:
		return nil, nil
	}
}

type isNullNode struct {
	x      node
	negate bool
}

func (n isNullNode) eval(m *jms.Message) (any, error) {
	v, err := n.x.eval(m)
	if err != nil {
		return nil, err
	}
	return (v == nil) != n.negate, nil
}

type inNode struct {
	x      node
	set    []any
	negate bool
}

func (n inNode) eval(m *jms.Message) (any, error) {
	v, err := n.x.eval(m)
	if err != nil || v == nil {
		return nil, err
	}
	for _, item := range n.set {
		if compare("=", v, item) == true {
			return !n.negate, nil
		}
	}
	return n.negate, nil
}

type likeNode struct {
	x      node
	re     *regexp.Regexp
	negate bool
}

func (n likeNode) eval(m *jms.Message) (any, error) {
	v, err := n.x.eval(m)
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	return n.re.MatchString(s) != n.negate, nil
}

type betweenNode struct {
	x, lo, hi node
	negate    bool
}

func (n betweenNode) eval(m *jms.Message) (any, error) {
	v, err := n.x.eval(m)
	if err != nil {
		return nil, err
	}
	lo, err := n.lo.eval(m)
	if err != nil {
		return nil, err
	}
	hi, err := n.hi.eval(m)
	if err != nil {
		return nil, err
	}

	ge, le := compare(">=", v, lo), compare("<=", v, hi)
	if ge == false || le == false {
		return n.negate, nil
	}
	if ge == true && le == true {
		return !n.negate, nil
	}
	return nil, nil
}

// compare applies op with SQL semantics: unknown operands or mismatched types give nil.
// Strings and booleans only support equality.
func compare(op string, l, r any) any {
	if l == nil || r == nil {
		return nil
	}

	if lf, rf, ok := numbers(l, r); ok {
		switch op {
		case "=":
			return lf == rf
		case "<>":
			return lf != rf
		case "<":
			return lf < rf
		case ">":
			return lf > rf
		case "<=":
			return lf <= rf
		case ">=":
			return lf >= rf
		}
		return nil
	}

	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		if !ok {
			return nil
		}
		return equality(op, lv == rv)
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return nil
		}
		return equality(op, lv == rv)
	}

	return nil
}

func equality(op string, equal bool) any {
	switch op {
	case "=":
		return equal
	case "<>":
		return !equal
	default:
		return nil
	}
}

func arithmetic(op string, l, r any) any {
	li, lok := l.(int64)
	ri, rok := r.(int64)
	if lok && rok {
		switch op {
		case "+":
			return li + ri
		case "-":
			return li - ri
		case "*":
			return li * ri
		case "/":
			if ri == 0 {
				return nil
			}
			return li / ri
		}
		return nil
	}

	lf, rf, ok := numbers(l, r)
	if !ok {
		return nil
	}
	switch op {
	case "+":
		return lf + rf
	case "-":
		return lf - rf
	case "*":
		return lf * rf
	case "/":
		if rf == 0 {
			return nil
		}
		return lf / rf
	}
	return nil
}

// numbers widens two numeric operands to float64.
func numbers(l, r any) (float64, float64, bool) {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	return lf, rf, lok && rok
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// normalize maps message values onto the evaluator's value set.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	case nil, bool, int64, float64, string:
		return t
	default:
		return nil
	}
}
