// Package algebra implements Component C of the core: the logical plan data
// types the Optimizer (package optimizer) annotates and the Executor
// (package executor) evaluates. The SPARQL *syntax* parser that produces
// an Algebra tree from query text lives outside this module; trees here
// are built directly, by tests or by an external, unspecified
// parser.
package algebra

import "github.com/gonnect-uk/quadcore/pkg/rdf"

// Binding is a mapping from variable name to Term. Unbound variables are
// simply absent from the map, matching the external wire form.
type Binding map[string]rdf.Term

// Clone returns a shallow copy, since callers (Extend, LeftJoin, Group) must
// not mutate a binding shared by other branches of the algebra tree.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Get returns the term bound to name, if any.
func (b Binding) Get(name string) (rdf.Term, bool) {
	t, ok := b[name]
	return t, ok
}

// Compatible reports whether a and b agree on every variable they share,
// using Term equality.
func Compatible(a, b Binding) bool {
	small, big := a, b
	if len(big) < len(small) {
		small, big = big, small
	}
	for k, v := range small {
		if ov, ok := big[k]; ok && !v.Equals(ov) {
			return false
		}
	}
	return true
}

// Merge unions two compatible bindings. Callers must check Compatible first.
func Merge(a, b Binding) Binding {
	out := make(Binding, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// SharedVars returns the variable names present in both bindings.
func SharedVars(a, b Binding) []string {
	var shared []string
	for k := range a {
		if _, ok := b[k]; ok {
			shared = append(shared, k)
		}
	}
	return shared
}

// BindingSet is the ordered sequence of Bindings produced by the Executor
// Order is significant only after OrderBy/Slice.
type BindingSet []Binding

// Node is any algebra operator. Implementations are pointer types so
// the tree can be walked without copying; children are owned, acyclic
// references (9.: "no child needs to know its parent").
type Node interface {
	isAlgebraNode()
}

// TriplePattern is one triple of a BGP; any of Subject/Predicate/Object may
// be a *rdf.Variable. When Path is non-nil it replaces Predicate with a
// property path; Predicate is ignored in that case.
type TriplePattern struct {
	Subject   rdf.Term
	Predicate rdf.Term
	Object    rdf.Term
	Path      Path
}

// Variables returns the distinct variable names referenced by the pattern.
func (p TriplePattern) Variables() []string {
	var out []string
	add := func(t rdf.Term) {
		if v, ok := t.(*rdf.Variable); ok {
			for _, seen := range out {
				if seen == v.Name {
					return
				}
			}
			out = append(out, v.Name)
		}
	}
	add(p.Subject)
	if p.Path == nil {
		add(p.Predicate)
	}
	add(p.Object)
	return out
}

// BGP is a Basic Graph Pattern: a conjunction of triple patterns. An
// empty pattern list short-circuits to empty results.
type BGP struct {
	Patterns []TriplePattern

	// Strategy is filled in by the Optimizer before the Executor walks
	// the tree; the zero value StrategyUnset means "not yet planned".
	Strategy Strategy
}

func (*BGP) isAlgebraNode() {}

// Variables returns the distinct variables referenced anywhere in the BGP.
func (b *BGP) Variables() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range b.Patterns {
		for _, v := range p.Variables() {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// Strategy is the plan the Optimizer chose for a BGP.
type Strategy int

const (
	StrategyUnset Strategy = iota
	StrategyPairwiseJoin
	StrategyLFTJ
)

func (s Strategy) String() string {
	switch s {
	case StrategyPairwiseJoin:
		return "PairwiseJoin"
	case StrategyLFTJ:
		return "LFTJ"
	default:
		return "unset"
	}
}

// Join is an inner natural join on shared variables.
type Join struct{ Left, Right Node }

func (*Join) isAlgebraNode() {}

// LeftJoin is SPARQL OPTIONAL. Filter may be nil.
type LeftJoin struct {
	Left, Right Node
	Filter      Expression
}

func (*LeftJoin) isAlgebraNode() {}

// Filter retains bindings whose expression's EBV is true.
type Filter struct {
	Expr  Expression
	Child Node
}

func (*Filter) isAlgebraNode() {}

// Union is sequence concatenation.
type Union struct{ Left, Right Node }

func (*Union) isAlgebraNode() {}

// Minus retains left bindings with no compatible, variable-sharing right
// binding, per the SPARQL 1.1 MINUS definition.
type Minus struct{ Left, Right Node }

func (*Minus) isAlgebraNode() {}

// Graph scopes Child to a named graph; Term is a concrete IRI or a Variable
// bound to each stored named graph in turn.
type Graph struct {
	Term  rdf.Term
	Child Node
}

func (*Graph) isAlgebraNode() {}

// Service is SPARQL SERVICE; non-silent Service fails with
// ServiceNotSupported.
type Service struct {
	IRI    rdf.Term
	Silent bool
	Child  Node
}

func (*Service) isAlgebraNode() {}

// Extend is SPARQL BIND: sets Var to Expr's value per binding, or leaves it
// unbound on evaluation failure; fails with Conflict if Var was already
// bound.
type Extend struct {
	Var   *rdf.Variable
	Expr  Expression
	Child Node
}

func (*Extend) isAlgebraNode() {}

// Project restricts each binding to Vars.
type Project struct {
	Vars  []*rdf.Variable
	Child Node
}

func (*Project) isAlgebraNode() {}

// Distinct removes duplicate bindings by structural equality.
type Distinct struct{ Child Node }

func (*Distinct) isAlgebraNode() {}

// Reduced may remove some duplicates; either behavior is conformant.
type Reduced struct{ Child Node }

func (*Reduced) isAlgebraNode() {}

// OrderCondition is one (expression, direction) pair of an ORDER BY clause.
type OrderCondition struct {
	Expr       Expression
	Descending bool
}

// OrderBy stably sorts by Conditions using the total term order of
// package rdf, with the numeric overlay of package expr; UNBOUND sorts
// before all bound values.
type OrderBy struct {
	Conditions []OrderCondition
	Child      Node
}

func (*OrderBy) isAlgebraNode() {}

// Slice drops the first Offset bindings and takes the next Limit.
// Limit < 0 means unlimited.
type Slice struct {
	Offset int64
	Limit  int64
	Child  Node
}

func (*Slice) isAlgebraNode() {}

// AggregateOp is one of the SPARQL 1.1 aggregate functions.
type AggregateOp int

const (
	AggCount AggregateOp = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggSample
	AggGroupConcat
)

func (op AggregateOp) String() string {
	switch op {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggSample:
		return "SAMPLE"
	case AggGroupConcat:
		return "GROUP_CONCAT"
	default:
		return "UNKNOWN"
	}
}

// AggregateExpr is one aggregate in a Group's SELECT list. Expr is nil for
// COUNT(*). Var names the output variable the aggregate's result is bound
// to.
type AggregateExpr struct {
	Op        AggregateOp
	Expr      Expression // nil means COUNT(*)
	Distinct  bool
	Separator string // GROUP_CONCAT only; defaults to " "
	Var       *rdf.Variable
}

// Group partitions Child by Keys and emits one binding per group with the
// key variables bound plus one variable per aggregate. Keys pair an
// expression with the output variable it is bound to (nil Var means the key
// expression is itself a bare variable reference and reuses that name).
type GroupKey struct {
	Expr Expression
	Var  *rdf.Variable
}

type Group struct {
	Keys       []GroupKey
	Aggregates []AggregateExpr
	Child      Node
}

func (*Group) isAlgebraNode() {}
