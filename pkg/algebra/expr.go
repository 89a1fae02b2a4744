package algebra

import "github.com/gonnect-uk/quadcore/pkg/rdf"

// Expression is the SPARQL expression language: logical, comparison,
// arithmetic operators, EXISTS/NOT EXISTS, builtin functions, and the
// conditional forms IF/COALESCE. Evaluation (the three-valued result type)
// lives in package expr, which depends on this package, not the reverse.
type Expression interface {
	isExpression()
}

// VarExpr references a binding's value for a variable.
type VarExpr struct{ Name string }

func (*VarExpr) isExpression() {}

// LitExpr is a constant Term (an IRI, literal, or blank node appearing
// directly in the query).
type LitExpr struct{ Term rdf.Term }

func (*LitExpr) isExpression() {}

// UnaryOp is NOT, unary +, or unary -.
type UnaryOp struct {
	Op      string // "!", "+", "-"
	Operand Expression
}

func (*UnaryOp) isExpression() {}

// BinaryOp is a logical (&&, ||), comparison (=, !=, <, <=, >, >=), or
// arithmetic (+, -, *, /) operator.
type BinaryOp struct {
	Op          string
	Left, Right Expression
}

func (*BinaryOp) isExpression() {}

// FuncCall dispatches to a builtin function by name (matched
// case-insensitively by package expr).
type FuncCall struct {
	Name string
	Args []Expression
}

func (*FuncCall) isExpression() {}

// InExpr is SPARQL IN / NOT IN.
type InExpr struct {
	Operand Expression
	List    []Expression
	Negated bool
}

func (*InExpr) isExpression() {}

// ExistsExpr is EXISTS/NOT EXISTS, evaluated as pattern satisfaction under
// the current binding. Pattern is an algebra Node so EXISTS can wrap
// an arbitrary graph pattern, not just a BGP.
type ExistsExpr struct {
	Pattern Node
	Negated bool
}

func (*ExistsExpr) isExpression() {}

// IfExpr is the conditional form IF(cond, then, else).
type IfExpr struct {
	Cond, Then, Else Expression
}

func (*IfExpr) isExpression() {}

// CoalesceExpr returns the first argument that evaluates to a bound value,
// skipping arguments that are unbound or raise an error.
type CoalesceExpr struct{ Args []Expression }

func (*CoalesceExpr) isExpression() {}
