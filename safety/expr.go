package safety

import (
	"fmt"
)

// The predicate trees below give each constraint an O(depth) evaluation
// against a variable table, with names interned at build time. There is no
// parser; constraints compile directly into nodes.

type evalContext map[string]float64

type numExpr interface {
	eval(ctx evalContext) (float64, error)
	collectVars(set map[string]struct{})
}

type boolExpr interface {
	eval(ctx evalContext) (bool, error)
	collectVars(set map[string]struct{})
}

type variable struct{ name string }

func (v variable) eval(ctx evalContext) (float64, error) {
	val, ok := ctx[v.name]
	if !ok {
		return 0, fmt.Errorf("unknown variable %q", v.name)
	}
	return val, nil
}

func (v variable) collectVars(set map[string]struct{}) { set[v.name] = struct{}{} }

type literal struct{ val float64 }

func (l literal) eval(evalContext) (float64, error) { return l.val, nil }
func (literal) collectVars(map[string]struct{})     {}

type arith struct {
	op   byte // + - * /
	l, r numExpr
}

func (a arith) eval(ctx evalContext) (float64, error) {
	lv, err := a.l.eval(ctx)
	if err != nil {
		return 0, err
	}
	rv, err := a.r.eval(ctx)
	if err != nil {
		return 0, err
	}
	switch a.op {
	case '+':
		return lv + rv, nil
	case '-':
		return lv - rv, nil
	case '*':
		return lv * rv, nil
	case '/':
		if rv == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return lv / rv, nil
	}
	return 0, fmt.Errorf("unknown arithmetic op %q", a.op)
}

func (a arith) collectVars(set map[string]struct{}) {
	a.l.collectVars(set)
	a.r.collectVars(set)
}

type cmpOp int

const (
	cmpLT cmpOp = iota
	cmpLE
	cmpGE
	cmpGT
)

type cmp struct {
	op   cmpOp
	l, r numExpr
}

func (c cmp) eval(ctx evalContext) (bool, error) {
	lv, err := c.l.eval(ctx)
	if err != nil {
		return false, err
	}
	rv, err := c.r.eval(ctx)
	if err != nil {
		return false, err
	}
	switch c.op {
	case cmpLT:
		return lv < rv, nil
	case cmpLE:
		return lv <= rv, nil
	case cmpGE:
		return lv >= rv, nil
	case cmpGT:
		return lv > rv, nil
	}
	return false, fmt.Errorf("unknown comparison op %d", c.op)
}

func (c cmp) collectVars(set map[string]struct{}) {
	c.l.collectVars(set)
	c.r.collectVars(set)
}

type logicOp int

const (
	logicAnd logicOp = iota
	logicOr
)

type logic struct {
	op   logicOp
	l, r boolExpr
}

func (l logic) eval(ctx evalContext) (bool, error) {
	lv, err := l.l.eval(ctx)
	if err != nil {
		return false, err
	}
	// Short-circuit only on the boolean value; evaluation is side-effect
	// free so both orders agree.
	if l.op == logicAnd && !lv {
		return false, nil
	}
	if l.op == logicOr && lv {
		return true, nil
	}
	return l.r.eval(ctx)
}

func (l logic) collectVars(set map[string]struct{}) {
	l.l.collectVars(set)
	l.r.collectVars(set)
}

type constBool struct{ val bool }

func (c constBool) eval(evalContext) (bool, error) { return c.val, nil }
func (constBool) collectVars(map[string]struct{}) {}

// Builders keep constraint compilation readable.

func vr(name string) numExpr     { return variable{name: name} }
func lit(v float64) numExpr      { return literal{val: v} }
func add(l, r numExpr) numExpr   { return arith{op: '+', l: l, r: r} }
func mul(l, r numExpr) numExpr   { return arith{op: '*', l: l, r: r} }
func le(l, r numExpr) boolExpr   { return cmp{op: cmpLE, l: l, r: r} }
func ge(l, r numExpr) boolExpr   { return cmp{op: cmpGE, l: l, r: r} }
func and(l, r boolExpr) boolExpr { return logic{op: logicAnd, l: l, r: r} }

func andAll(exprs ...boolExpr) boolExpr {
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = and(out, e)
	}
	return out
}

// between compiles lo <= v <= hi.
func between(v numExpr, lo, hi float64) boolExpr {
	return and(ge(v, lit(lo)), le(v, lit(hi)))
}
