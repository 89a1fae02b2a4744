// Package expr implements the three-valued expression evaluator, builtin
// functions, and aggregates over the Expression AST of package algebra.
package expr

import (
	"fmt"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// Kind tags a Result: a bound Value, an Unbound variable reference, or an
// Error from a type mismatch, divide-by-zero, or unknown function.
type Kind int

const (
	KindValue Kind = iota
	KindUnbound
	KindError
)

// Result is the three-valued expression result {Value, Unbound, Error}.
// Filter and Extend propagate Unbound and Error differently (see package
// executor).
type Result struct {
	Kind Kind
	Term rdf.Term
	Err  error
}

func Value(t rdf.Term) Result { return Result{Kind: KindValue, Term: t} }
func Unbound() Result         { return Result{Kind: KindUnbound} }
func Errorf(format string, a ...any) Result {
	return Result{Kind: KindError, Err: fmt.Errorf(format, a...)}
}

func (r Result) IsValue() bool   { return r.Kind == KindValue }
func (r Result) IsError() bool   { return r.Kind == KindError }
func (r Result) IsUnbound() bool { return r.Kind == KindUnbound }

// ExistsEvaluator lets package expr evaluate EXISTS/NOT EXISTS without
// importing package executor (which itself imports expr): the Executor
// implements this and passes itself to Eval.
type ExistsEvaluator interface {
	Exists(pattern algebra.Node, binding algebra.Binding) (bool, error)
}

// Eval evaluates expr against binding. ex may be nil if expr is known not to
// contain EXISTS/NOT EXISTS (e.g. inside a BGP optimizer cost estimate).
func Eval(e algebra.Expression, binding algebra.Binding, ex ExistsEvaluator) Result {
	switch v := e.(type) {
	case *algebra.VarExpr:
		t, ok := binding.Get(v.Name)
		if !ok {
			return Unbound()
		}
		return Value(t)

	case *algebra.LitExpr:
		return Value(v.Term)

	case *algebra.UnaryOp:
		return evalUnary(v, binding, ex)

	case *algebra.BinaryOp:
		return evalBinary(v, binding, ex)

	case *algebra.FuncCall:
		return evalFuncCall(v, binding, ex)

	case *algebra.InExpr:
		return evalIn(v, binding, ex)

	case *algebra.IfExpr:
		cond := Eval(v.Cond, binding, ex)
		if cond.Kind != KindValue {
			return cond
		}
		ebv, err := EffectiveBooleanValue(cond.Term)
		if err != nil {
			return Errorf("IF: %w", err)
		}
		if ebv {
			return Eval(v.Then, binding, ex)
		}
		return Eval(v.Else, binding, ex)

	case *algebra.CoalesceExpr:
		for _, a := range v.Args {
			r := Eval(a, binding, ex)
			if r.Kind == KindValue {
				return r
			}
		}
		return Unbound()

	case *algebra.ExistsExpr:
		if ex == nil {
			return Errorf("EXISTS not available in this evaluation context")
		}
		ok, err := ex.Exists(v.Pattern, binding)
		if err != nil {
			return Errorf("EXISTS: %w", err)
		}
		if v.Negated {
			ok = !ok
		}
		return Value(rdf.NewBooleanLiteral(ok))

	default:
		return Errorf("unsupported expression type %T", e)
	}
}

func evalUnary(v *algebra.UnaryOp, binding algebra.Binding, ex ExistsEvaluator) Result {
	operand := Eval(v.Operand, binding, ex)
	if operand.Kind != KindValue {
		return operand
	}
	switch v.Op {
	case "!":
		ebv, err := EffectiveBooleanValue(operand.Term)
		if err != nil {
			return Errorf("!: %w", err)
		}
		return Value(rdf.NewBooleanLiteral(!ebv))
	case "-", "+":
		n, ok := parseNumeric(operand.Term)
		if !ok {
			return Errorf("unary %s requires a numeric operand", v.Op)
		}
		if v.Op == "+" {
			return Value(n.literal())
		}
		neg, err := numericArith("-", numeric{kind: numInteger, i: 0}, n)
		if err != nil {
			return Errorf("unary -: %w", err)
		}
		return Value(neg.literal())
	default:
		return Errorf("unsupported unary operator %q", v.Op)
	}
}

func evalBinary(v *algebra.BinaryOp, binding algebra.Binding, ex ExistsEvaluator) Result {
	switch v.Op {
	case "&&":
		return evalAnd(v.Left, v.Right, binding, ex)
	case "||":
		return evalOr(v.Left, v.Right, binding, ex)
	}

	left := Eval(v.Left, binding, ex)
	if left.Kind != KindValue {
		return left
	}
	right := Eval(v.Right, binding, ex)
	if right.Kind != KindValue {
		return right
	}

	switch v.Op {
	case "=":
		return Value(rdf.NewBooleanLiteral(termEquals(left.Term, right.Term)))
	case "!=":
		return Value(rdf.NewBooleanLiteral(!termEquals(left.Term, right.Term)))
	case "<", "<=", ">", ">=":
		return compareOp(v.Op, left.Term, right.Term)
	case "+", "-", "*", "/":
		ln, lok := parseNumeric(left.Term)
		rn, rok := parseNumeric(right.Term)
		if !lok || !rok {
			return Errorf("%s requires numeric operands", v.Op)
		}
		res, err := numericArith(v.Op, ln, rn)
		if err != nil {
			return Errorf("%s: %w", v.Op, err)
		}
		return Value(res.literal())
	default:
		return Errorf("unsupported binary operator %q", v.Op)
	}
}

func evalAnd(lhs, rhs algebra.Expression, binding algebra.Binding, ex ExistsEvaluator) Result {
	left := Eval(lhs, binding, ex)
	if left.Kind == KindValue {
		ebv, err := EffectiveBooleanValue(left.Term)
		if err == nil && !ebv {
			return Value(rdf.NewBooleanLiteral(false))
		}
	}
	right := Eval(rhs, binding, ex)
	if right.Kind == KindValue {
		ebv, err := EffectiveBooleanValue(right.Term)
		if err == nil && !ebv {
			return Value(rdf.NewBooleanLiteral(false))
		}
	}
	if left.Kind != KindValue {
		return left
	}
	if right.Kind != KindValue {
		return right
	}
	lebv, lerr := EffectiveBooleanValue(left.Term)
	rebv, rerr := EffectiveBooleanValue(right.Term)
	if lerr != nil {
		return Errorf("&&: %w", lerr)
	}
	if rerr != nil {
		return Errorf("&&: %w", rerr)
	}
	return Value(rdf.NewBooleanLiteral(lebv && rebv))
}

func evalOr(lhs, rhs algebra.Expression, binding algebra.Binding, ex ExistsEvaluator) Result {
	left := Eval(lhs, binding, ex)
	if left.Kind == KindValue {
		ebv, err := EffectiveBooleanValue(left.Term)
		if err == nil && ebv {
			return Value(rdf.NewBooleanLiteral(true))
		}
	}
	right := Eval(rhs, binding, ex)
	if right.Kind == KindValue {
		ebv, err := EffectiveBooleanValue(right.Term)
		if err == nil && ebv {
			return Value(rdf.NewBooleanLiteral(true))
		}
	}
	if left.Kind != KindValue {
		return left
	}
	if right.Kind != KindValue {
		return right
	}
	lebv, lerr := EffectiveBooleanValue(left.Term)
	rebv, rerr := EffectiveBooleanValue(right.Term)
	if lerr != nil {
		return Errorf("||: %w", lerr)
	}
	if rerr != nil {
		return Errorf("||: %w", rerr)
	}
	return Value(rdf.NewBooleanLiteral(lebv || rebv))
}

func evalIn(v *algebra.InExpr, binding algebra.Binding, ex ExistsEvaluator) Result {
	operand := Eval(v.Operand, binding, ex)
	if operand.Kind != KindValue {
		return operand
	}
	found := false
	sawError := false
	for _, item := range v.List {
		r := Eval(item, binding, ex)
		switch r.Kind {
		case KindValue:
			if termEquals(operand.Term, r.Term) {
				found = true
			}
		case KindError:
			sawError = true
		}
	}
	if !found && sawError {
		return Errorf("IN: comparison error against list member")
	}
	result := found
	if v.Negated {
		result = !found
	}
	return Value(rdf.NewBooleanLiteral(result))
}

// termEquals is RDF term equality as SPARQL's `=` sees it: identical to
// sameTerm for IRIs, blanks, and quoted triples, and additionally
// numeric-value-aware for literals whose datatypes are both numeric.
// Non-numeric literals of differing datatype compare unequal rather than
// raising a type error.
func termEquals(a, b rdf.Term) bool {
	an, aok := parseNumeric(a)
	bn, bok := parseNumeric(b)
	if aok && bok {
		return compareNumeric(an, bn) == 0
	}
	return a.Equals(b)
}

// compareOp evaluates <, <=, >, >= with the numeric overlay: numeric
// literals compare by value; a numeric against a non-numeric operand is a
// type error; other literals fall back to the reference term ordering.
func compareOp(op string, a, b rdf.Term) Result {
	var cmp int
	an, aok := parseNumeric(a)
	bn, bok := parseNumeric(b)
	if aok && bok {
		cmp = compareNumeric(an, bn)
	} else if aok != bok {
		return Errorf("%s cannot compare a numeric with a non-numeric operand", op)
	} else {
		_, aIsLit := a.(*rdf.Literal)
		_, bIsLit := b.(*rdf.Literal)
		if !aIsLit || !bIsLit {
			return Errorf("%s requires comparable literal operands", op)
		}
		cmp = rdf.Compare(a, b)
	}
	var result bool
	switch op {
	case "<":
		result = cmp < 0
	case "<=":
		result = cmp <= 0
	case ">":
		result = cmp > 0
	case ">=":
		result = cmp >= 0
	}
	return Value(rdf.NewBooleanLiteral(result))
}

// EffectiveBooleanValue implements the SPARQL EBV rules: a bound
// xsd:boolean yields its value; a numeric literal yields (value != 0 and not
// NaN); a plain/xsd:string yields (length > 0); anything else is a type
// error.
func EffectiveBooleanValue(t rdf.Term) (bool, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return false, fmt.Errorf("cannot compute EBV of non-literal term %s", t)
	}
	if lit.Datatype != nil && lit.Datatype.IRI == rdf.XSDBoolean.IRI {
		return lit.Value == "true" || lit.Value == "1", nil
	}
	if n, ok := parseNumeric(t); ok {
		f := n.toFloat()
		return f != 0 && f == f, nil // f == f is false for NaN
	}
	if lit.Datatype == nil || lit.Datatype.IRI == rdf.XSDString.IRI {
		return lit.Value != "", nil
	}
	return false, fmt.Errorf("cannot compute EBV of literal with datatype %s", lit.Datatype.IRI)
}

// CompareOrdered is the total order used by ORDER BY: numeric overlay
// first, then the reference term ordering. UNBOUND sorts before all bound
// values; callers represent UNBOUND with a nil Term.
func CompareOrdered(a, b rdf.Term) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	an, aok := parseNumeric(a)
	bn, bok := parseNumeric(b)
	if aok && bok {
		return compareNumeric(an, bn)
	}
	return rdf.Compare(a, b)
}
