// Package optimizer implements BGP classification, strategy selection
// between PairwiseJoin and the worst-case-optimal Leapfrog Trie Join, and
// the LFTJ algorithm itself. It depends on package store (the Backend the
// chosen strategy scans) and package algebra (the BGP shape it
// classifies), and is consumed by package executor.
package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// Shape classifies a BGP's variable-sharing structure.
type Shape int

const (
	ShapeChain Shape = iota
	ShapeStar
	ShapeCyclic
)

func (s Shape) String() string {
	switch s {
	case ShapeStar:
		return "star"
	case ShapeCyclic:
		return "cyclic"
	default:
		return "chain"
	}
}

// Statistics holds the triple total and per-predicate counts (keyed by
// TermID) alongside the optimizer's pattern-shape heuristics, stopping
// short of a histogram-based cost model. Plan costing does not consult
// PredicateCounts, since lookupPredicateID cannot map a predicate IRI to
// its id; a bound predicate is costed with the flat 0.1 constant. A nil
// *Statistics falls back to a flat constant selectivity.
type Statistics struct {
	TotalTriples    int64
	PredicateCounts map[rdf.TermID]int64
}

// EstimatePredicateSelectivity returns a value in (0, 1] estimating the
// fraction of all triples a bound predicate id matches. Falls back to a
// flat 0.1 constant when no count is available.
func (s *Statistics) EstimatePredicateSelectivity(predID rdf.TermID) float64 {
	if s == nil || s.TotalTriples == 0 {
		return 0.1
	}
	count, ok := s.PredicateCounts[predID]
	if !ok || count == 0 {
		return 0.1
	}
	return float64(count) / float64(s.TotalTriples)
}

// Optimizer is a stateless planner: Explain is a pure function of a BGP's
// pattern list (plus optional Statistics), never touching the store.
type Optimizer struct {
	stats *Statistics
}

// NewOptimizer creates an Optimizer. stats may be nil.
func NewOptimizer(stats *Statistics) *Optimizer {
	return &Optimizer{stats: stats}
}

// UpdateStats swaps in fresh Statistics, letting a long-lived Optimizer
// track a Store's growing predicate counts without rebuilding the
// Optimizer or its Executor per query.
func (o *Optimizer) UpdateStats(stats *Statistics) { o.stats = stats }

// QueryPlan is an annotated plan: strategy, estimated cost, and a
// human-readable explanation.
type QueryPlan struct {
	Strategy  algebra.Strategy
	Shape     Shape
	Cost      float64
	Explain   string
	// OrderedPatterns is populated for StrategyPairwiseJoin: the BGP's
	// patterns reordered by estimated selectivity.
	OrderedPatterns []algebra.TriplePattern
	// VariableOrder is populated for StrategyLFTJ: the variable
	// evaluation order the leapfrog recursion descends.
	VariableOrder []string
}

// String renders a tree-indented human-readable plan.
func (p *QueryPlan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (shape=%s, cost=%.2f)\n", p.Strategy, p.Shape, p.Cost)
	switch p.Strategy {
	case algebra.StrategyLFTJ:
		fmt.Fprintf(&b, "  variable order: %s\n", strings.Join(p.VariableOrder, ", "))
	case algebra.StrategyPairwiseJoin:
		for i, pat := range p.OrderedPatterns {
			fmt.Fprintf(&b, "  [%d] %s %s %s\n", i, pat.Subject, predicateText(pat), pat.Object)
		}
	}
	if p.Explain != "" {
		fmt.Fprintf(&b, "  %s\n", p.Explain)
	}
	return b.String()
}

func predicateText(p algebra.TriplePattern) string {
	if p.Path != nil {
		return "<path>"
	}
	return fmt.Sprintf("%s", p.Predicate)
}

// Explain classifies patterns and selects a strategy, without touching
// the store.
func (o *Optimizer) Explain(patterns []algebra.TriplePattern) *QueryPlan {
	if len(patterns) == 0 {
		return &QueryPlan{Strategy: algebra.StrategyPairwiseJoin, Explain: "empty BGP short-circuits to empty results"}
	}

	shape := classify(patterns)
	k := len(patterns)

	// Patterns with all slots variable degenerate to a full scan and are
	// no candidate for LFTJ.
	allVariable := true
	for _, p := range patterns {
		if p.Path == nil {
			if _, ok := p.Predicate.(*rdf.Variable); !ok {
				allVariable = false
			}
		}
		if _, ok := p.Subject.(*rdf.Variable); !ok {
			allVariable = false
		}
		if _, ok := p.Object.(*rdf.Variable); !ok {
			allVariable = false
		}
	}

	// Property paths are resolved inside BGP handling by the executor, one
	// pattern at a time; LFTJ's per-relation trie needs a concrete
	// predicate id, so any pattern carrying a Path disqualifies LFTJ.
	hasPath := false
	for _, p := range patterns {
		if p.Path != nil {
			hasPath = true
		}
	}

	useLFTJ := k >= 4 && (shape == ShapeStar || shape == ShapeCyclic) && !allVariable && !hasPath

	if useLFTJ {
		order := chooseVariableOrder(patterns)
		output := estimateLFTJOutput(patterns, o.stats)
		return &QueryPlan{
			Strategy:      algebra.StrategyLFTJ,
			Shape:         shape,
			Cost:          output,
			VariableOrder: order,
			Explain: fmt.Sprintf(
				"%d patterns classified %s; leapfrog trie join over variable order [%s]",
				k, shape, strings.Join(order, ", "),
			),
		}
	}

	ordered, cost := reorderBySelectivity(patterns, o.stats)
	return &QueryPlan{
		Strategy:        algebra.StrategyPairwiseJoin,
		Shape:           shape,
		Cost:            cost,
		OrderedPatterns: ordered,
		Explain: fmt.Sprintf(
			"%d patterns classified %s; left-deep pairwise join reordered by selectivity",
			k, shape,
		),
	}
}

// classify buckets a BGP as star, cyclic, or chain.
func classify(patterns []algebra.TriplePattern) Shape {
	if isStar(patterns) {
		return ShapeStar
	}
	if hasCycle(patterns) {
		return ShapeCyclic
	}
	return ShapeChain
}

// isStar reports whether all patterns share one common subject variable
// and there are at least 3 of them.
func isStar(patterns []algebra.TriplePattern) bool {
	if len(patterns) < 3 {
		return false
	}
	v, ok := patterns[0].Subject.(*rdf.Variable)
	if !ok {
		return false
	}
	for _, p := range patterns[1:] {
		pv, ok := p.Subject.(*rdf.Variable)
		if !ok || pv.Name != v.Name {
			return false
		}
	}
	return true
}

// hasCycle detects a cycle in the variable-sharing graph (nodes =
// patterns, edges = patterns sharing a variable) via DFS.
func hasCycle(patterns []algebra.TriplePattern) bool {
	n := len(patterns)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		vi := variableSet(patterns[i])
		for j := i + 1; j < n; j++ {
			if sharesVariable(vi, patterns[j]) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}

	visited := make([]bool, n)
	var dfs func(node, parent int) bool
	dfs = func(node, parent int) bool {
		visited[node] = true
		for _, next := range adj[node] {
			if !visited[next] {
				if dfs(next, node) {
					return true
				}
			} else if next != parent {
				return true
			}
		}
		return false
	}

	for i := 0; i < n; i++ {
		if !visited[i] {
			if dfs(i, -1) {
				return true
			}
		}
	}
	return false
}

func variableSet(p algebra.TriplePattern) map[string]bool {
	out := map[string]bool{}
	for _, v := range p.Variables() {
		out[v] = true
	}
	return out
}

func sharesVariable(vi map[string]bool, p algebra.TriplePattern) bool {
	for _, v := range p.Variables() {
		if vi[v] {
			return true
		}
	}
	return false
}

// reorderBySelectivity orders patterns for the pairwise join: highest
// concrete bound count first, then bound-predicate patterns, ties broken
// by textual order for determinism. Returns the reordered patterns and an
// estimated cost (sum of intermediate cardinalities).
func reorderBySelectivity(patterns []algebra.TriplePattern, stats *Statistics) ([]algebra.TriplePattern, float64) {
	ordered := make([]algebra.TriplePattern, len(patterns))
	copy(ordered, patterns)

	sort.SliceStable(ordered, func(i, j int) bool {
		bi, bj := boundCount(ordered[i]), boundCount(ordered[j])
		if bi != bj {
			return bi > bj
		}
		pi, pj := predicateBound(ordered[i]), predicateBound(ordered[j])
		if pi != pj {
			return pi
		}
		return patternText(ordered[i]) < patternText(ordered[j])
	})

	cost := 0.0
	running := 1.0
	for _, p := range ordered {
		sel := 1.0
		if !isVar(p.Subject) {
			sel *= 0.01
		}
		if p.Path == nil && !isVar(p.Predicate) {
			if predTerm, ok := p.Predicate.(*rdf.NamedNode); ok && stats != nil {
				if id, known := lookupPredicateID(stats, predTerm); known {
					sel *= stats.EstimatePredicateSelectivity(id)
				} else {
					sel *= 0.1
				}
			} else {
				sel *= 0.1
			}
		}
		if !isVar(p.Object) {
			sel *= 0.1
		}
		running *= sel
		cost += running
	}
	return ordered, cost
}

// lookupPredicateID is a hook point for callers that maintain a predicate
// string -> id cache; Statistics only stores the numeric side, so without
// an injected dictionary lookup we cannot resolve NamedNode -> TermID
// here. Optimizer.Explain is deliberately store-free, so this always
// misses and callers fall back to the flat constant, even though the Store
// facade refreshes Statistics before each query.
func lookupPredicateID(stats *Statistics, pred *rdf.NamedNode) (rdf.TermID, bool) {
	return 0, false
}

func boundCount(p algebra.TriplePattern) int {
	n := 0
	if !isVar(p.Subject) {
		n++
	}
	if p.Path == nil && !isVar(p.Predicate) {
		n++
	}
	if !isVar(p.Object) {
		n++
	}
	return n
}

func predicateBound(p algebra.TriplePattern) bool {
	return p.Path == nil && !isVar(p.Predicate)
}

func isVar(t rdf.Term) bool {
	_, ok := t.(*rdf.Variable)
	return ok
}

func patternText(p algebra.TriplePattern) string {
	return fmt.Sprintf("%s|%s|%s", p.Subject, p.Predicate, p.Object)
}

// chooseVariableOrder places the most-shared variable first, breaking
// ties by variable name for determinism.
func chooseVariableOrder(patterns []algebra.TriplePattern) []string {
	counts := map[string]int{}
	var order []string
	for _, p := range patterns {
		for _, v := range p.Variables() {
			if counts[v] == 0 {
				order = append(order, v)
			}
			counts[v]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i] < order[j]
	})
	return order
}

// estimateLFTJOutput approximates LFTJ's cost as its output size, using
// the tightest per-predicate bound available as a stand-in for the true
// output cardinality.
func estimateLFTJOutput(patterns []algebra.TriplePattern, stats *Statistics) float64 {
	best := -1.0
	for _, p := range patterns {
		sel := 1.0
		if p.Path == nil && !isVar(p.Predicate) {
			sel = 0.1
		}
		total := 1000.0
		if stats != nil && stats.TotalTriples > 0 {
			total = float64(stats.TotalTriples)
		}
		est := total * sel
		if best < 0 || est < best {
			best = est
		}
	}
	if best < 0 {
		best = 0
	}
	return best
}
