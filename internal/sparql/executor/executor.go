// Package executor evaluates an algebra.Node tree against a
// store.QuadStore, producing an algebra.BindingSet. Each operator is
// evaluated in one visit and materializes its BindingSet, rather than
// chaining lazy row-at-a-time iterators, since the join, distinct, and
// aggregate operators all need the whole of one side before they can
// produce output.
package executor

import (
	"fmt"
	"sort"

	"github.com/gonnect-uk/quadcore/internal/sparql/optimizer"
	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/qerror"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
	"github.com/gonnect-uk/quadcore/pkg/sparql/expr"
	"github.com/gonnect-uk/quadcore/pkg/store"
)

// Executor walks an algebra.Node tree against one QuadStore. It is not
// safe for concurrent queries: currentGraph and lastPlan are scratch state
// for the query in progress.
type Executor struct {
	store     *store.QuadStore
	optimizer *optimizer.Optimizer
	cancel    func() bool

	currentGraph rdf.Term
	lastPlan     *optimizer.QueryPlan
}

// NewExecutor wires a QuadStore and Optimizer into an Executor.
func NewExecutor(qs *store.QuadStore, opt *optimizer.Optimizer) *Executor {
	return &Executor{store: qs, optimizer: opt}
}

// SetCancelFunc installs the cooperative cancellation hook: cancel is
// polled at BGP/LFTJ level boundaries and before sorting. A nil cancel (the
// default) means the query always runs to completion.
func (e *Executor) SetCancelFunc(cancel func() bool) { e.cancel = cancel }

// LastPlan returns the QueryPlan chosen for the most recently evaluated
// BGP.
func (e *Executor) LastPlan() *optimizer.QueryPlan { return e.lastPlan }

func (e *Executor) checkCancelled() error {
	if e.cancel != nil && e.cancel() {
		return qerror.ErrCancelled
	}
	return nil
}

// Query evaluates root against the default graph, the entry point used by
// the Store facade for query bodies that are not themselves wrapped in a
// Graph operator.
func (e *Executor) Query(root algebra.Node) (algebra.BindingSet, error) {
	return e.Eval(root, rdf.NewDefaultGraph())
}

// Eval evaluates node with graph as the active graph: the graph every
// BGP/TriplePattern beneath node, not itself inside a nested Graph operator,
// is matched against.
func (e *Executor) Eval(node algebra.Node, graph rdf.Term) (algebra.BindingSet, error) {
	if err := e.checkCancelled(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *algebra.BGP:
		return e.evalBGP(n, graph)
	case *algebra.Join:
		return e.evalJoin(n, graph)
	case *algebra.LeftJoin:
		return e.evalLeftJoin(n, graph)
	case *algebra.Filter:
		return e.evalFilter(n, graph)
	case *algebra.Union:
		return e.evalUnion(n, graph)
	case *algebra.Minus:
		return e.evalMinus(n, graph)
	case *algebra.Graph:
		return e.evalGraph(n, graph)
	case *algebra.Service:
		return e.evalService(n, graph)
	case *algebra.Extend:
		return e.evalExtend(n, graph)
	case *algebra.Project:
		return e.evalProject(n, graph)
	case *algebra.Distinct:
		return e.evalDistinct(n, graph)
	case *algebra.Reduced:
		return e.evalReduced(n, graph)
	case *algebra.OrderBy:
		return e.evalOrderBy(n, graph)
	case *algebra.Slice:
		return e.evalSlice(n, graph)
	case *algebra.Group:
		return e.evalGroup(n, graph)
	default:
		return nil, qerror.New(qerror.TypeError, fmt.Sprintf("unsupported algebra node %T", node))
	}
}

// evalBGP dispatches to the strategy the Optimizer chose for this BGP's
// pattern list, recording the plan for LastPlan.
func (e *Executor) evalBGP(b *algebra.BGP, graph rdf.Term) (algebra.BindingSet, error) {
	if len(b.Patterns) == 0 {
		return nil, nil // empty BGP short-circuits to empty results
	}

	plan := e.optimizer.Explain(b.Patterns)
	e.lastPlan = plan
	b.Strategy = plan.Strategy

	if plan.Strategy == algebra.StrategyLFTJ {
		return optimizer.RunLFTJ(e.store, graph, b.Patterns, plan.VariableOrder, e.cancel)
	}
	return e.evalPairwise(plan.OrderedPatterns, graph)
}

// evalPairwise is the PairwiseJoin strategy: scan the first (most
// selective) pattern, then join each subsequent pattern's scan into the
// running result, left-deep.
func (e *Executor) evalPairwise(patterns []algebra.TriplePattern, graph rdf.Term) (algebra.BindingSet, error) {
	result, err := e.scanPattern(patterns[0], graph)
	if err != nil {
		return nil, err
	}
	for _, p := range patterns[1:] {
		if err := e.checkCancelled(); err != nil {
			return nil, err
		}
		next, err := e.scanPattern(p, graph)
		if err != nil {
			return nil, err
		}
		result = joinBindingSets(result, next)
	}
	return result, nil
}

func joinBindingSets(left, right algebra.BindingSet) algebra.BindingSet {
	var out algebra.BindingSet
	for _, l := range left {
		for _, r := range right {
			if algebra.Compatible(l, r) {
				out = append(out, algebra.Merge(l, r))
			}
		}
	}
	return out
}

// scanPattern evaluates one triple pattern against graph: a property-path
// traversal when Path is set, else a direct store.QuadStore.Match.
func (e *Executor) scanPattern(p algebra.TriplePattern, graph rdf.Term) (algebra.BindingSet, error) {
	if p.Path != nil {
		return e.evalPropertyPath(p, graph)
	}

	sp := store.Pattern{
		Subject:   groundOrNil(p.Subject),
		Predicate: groundOrNil(p.Predicate),
		Object:    groundOrNil(p.Object),
		Graph:     graph,
	}
	it, err := e.store.Match(sp)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out algebra.BindingSet
	for it.Next() {
		q := it.Quad()
		b := algebra.Binding{}
		if bindSlot(b, p.Subject, q.Subject) && bindSlot(b, p.Predicate, q.Predicate) && bindSlot(b, p.Object, q.Object) {
			out = append(out, b)
		}
	}
	return out, nil
}

// bindSlot binds term's variable (if it is one) to value, reporting false
// if term is a variable already bound in b to a different value: the
// self-join check a repeated variable within one triple pattern (e.g. `?x
// ex:knows ?x`) requires, which a naive per-slot assignment would silently
// lose (the second write would just overwrite the first).
func bindSlot(b algebra.Binding, term, value rdf.Term) bool {
	v, ok := term.(*rdf.Variable)
	if !ok {
		return true
	}
	if existing, has := b[v.Name]; has {
		return existing.Equals(value)
	}
	b[v.Name] = value
	return true
}

func groundOrNil(t rdf.Term) rdf.Term {
	if _, ok := t.(*rdf.Variable); ok {
		return nil
	}
	return t
}

// evalPropertyPath evaluates a TriplePattern whose Predicate has been
// replaced by a property Path. Both ends bound: existence check. One end
// bound: forward/backward traversal. Neither end bound: every distinct
// subject in the active graph seeds a forward traversal, since the store
// offers no native "reachability" index to start from otherwise.
func (e *Executor) evalPropertyPath(p algebra.TriplePattern, graph rdf.Term) (algebra.BindingSet, error) {
	// Property paths over quoted triples are unsupported and fail loudly
	// rather than silently mis-evaluating.
	if _, ok := p.Subject.(*rdf.QuotedTriple); ok {
		return nil, qerror.New(qerror.UnknownFunction, "property paths over quoted triples are not supported")
	}
	if _, ok := p.Object.(*rdf.QuotedTriple); ok {
		return nil, qerror.New(qerror.UnknownFunction, "property paths over quoted triples are not supported")
	}
	pe := &pathEvaluator{qs: e.store, graph: graph}

	subjectVar, subjectIsVar := p.Subject.(*rdf.Variable)
	objectVar, objectIsVar := p.Object.(*rdf.Variable)
	sameVar := subjectIsVar && objectIsVar && subjectVar.Name == objectVar.Name

	switch {
	case !subjectIsVar && !objectIsVar:
		reached, err := pe.forward(p.Path, p.Subject)
		if err != nil {
			return nil, err
		}
		if containsTerm(reached, p.Object) {
			return algebra.BindingSet{algebra.Binding{}}, nil
		}
		return nil, nil

	case !subjectIsVar:
		reached, err := pe.forward(p.Path, p.Subject)
		if err != nil {
			return nil, err
		}
		var out algebra.BindingSet
		for _, t := range reached {
			out = append(out, algebra.Binding{objectVar.Name: t})
		}
		return out, nil

	case !objectIsVar:
		reached, err := pe.backward(p.Path, p.Object)
		if err != nil {
			return nil, err
		}
		var out algebra.BindingSet
		for _, t := range reached {
			out = append(out, algebra.Binding{subjectVar.Name: t})
		}
		return out, nil

	default:
		starts, err := e.distinctSubjects(graph)
		if err != nil {
			return nil, err
		}
		var out algebra.BindingSet
		for _, s := range starts {
			reached, err := pe.forward(p.Path, s)
			if err != nil {
				return nil, err
			}
			for _, t := range reached {
				if sameVar && !s.Equals(t) {
					continue
				}
				b := algebra.Binding{subjectVar.Name: s}
				if !sameVar {
					b[objectVar.Name] = t
				}
				out = append(out, b)
			}
		}
		return out, nil
	}
}

func (e *Executor) distinctSubjects(graph rdf.Term) ([]rdf.Term, error) {
	it, err := e.store.Match(store.Pattern{Graph: graph})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	seen := map[string]bool{}
	var out []rdf.Term
	for it.Next() {
		s := it.Quad().Subject
		key := s.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func (e *Executor) evalJoin(n *algebra.Join, graph rdf.Term) (algebra.BindingSet, error) {
	left, err := e.Eval(n.Left, graph)
	if err != nil {
		return nil, err
	}
	right, err := e.Eval(n.Right, graph)
	if err != nil {
		return nil, err
	}
	return joinBindingSets(left, right), nil
}

// evalLeftJoin implements SPARQL OPTIONAL: every left binding survives,
// joined with each compatible (and, if Filter is set, filter-passing) right
// binding, or alone if none match.
func (e *Executor) evalLeftJoin(n *algebra.LeftJoin, graph rdf.Term) (algebra.BindingSet, error) {
	left, err := e.Eval(n.Left, graph)
	if err != nil {
		return nil, err
	}
	right, err := e.Eval(n.Right, graph)
	if err != nil {
		return nil, err
	}
	e.currentGraph = graph

	var out algebra.BindingSet
	for _, l := range left {
		matched := false
		for _, r := range right {
			if !algebra.Compatible(l, r) {
				continue
			}
			merged := algebra.Merge(l, r)
			if n.Filter != nil {
				res := expr.Eval(n.Filter, merged, e)
				if res.Kind != expr.KindValue {
					continue
				}
				ok, err := expr.EffectiveBooleanValue(res.Term)
				if err != nil || !ok {
					continue
				}
			}
			out = append(out, merged)
			matched = true
		}
		if !matched {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

// evalFilter retains bindings whose expression's effective boolean value
// is true; Unbound and Error results are excluded.
func (e *Executor) evalFilter(n *algebra.Filter, graph rdf.Term) (algebra.BindingSet, error) {
	child, err := e.Eval(n.Child, graph)
	if err != nil {
		return nil, err
	}
	e.currentGraph = graph

	var out algebra.BindingSet
	for _, b := range child {
		if err := e.checkCancelled(); err != nil {
			return nil, err
		}
		res := expr.Eval(n.Expr, b, e)
		if res.Kind != expr.KindValue {
			continue
		}
		ok, err := expr.EffectiveBooleanValue(res.Term)
		if err != nil || !ok {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (e *Executor) evalUnion(n *algebra.Union, graph rdf.Term) (algebra.BindingSet, error) {
	left, err := e.Eval(n.Left, graph)
	if err != nil {
		return nil, err
	}
	right, err := e.Eval(n.Right, graph)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// evalMinus retains left bindings with no compatible, variable-sharing
// right binding: left bindings sharing no variable with any right binding
// are never excluded, matching the SPARQL 1.1 MINUS definition.
func (e *Executor) evalMinus(n *algebra.Minus, graph rdf.Term) (algebra.BindingSet, error) {
	left, err := e.Eval(n.Left, graph)
	if err != nil {
		return nil, err
	}
	right, err := e.Eval(n.Right, graph)
	if err != nil {
		return nil, err
	}

	var out algebra.BindingSet
	for _, l := range left {
		excluded := false
		for _, r := range right {
			if len(algebra.SharedVars(l, r)) == 0 {
				continue
			}
			if algebra.Compatible(l, r) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, l)
		}
	}
	return out, nil
}

// evalGraph scopes Child to Term: a fixed graph if Term is concrete, or,
// if Term is a Variable, every stored graph in turn with Term's variable
// bound in each output row.
func (e *Executor) evalGraph(n *algebra.Graph, graph rdf.Term) (algebra.BindingSet, error) {
	v, isVar := n.Term.(*rdf.Variable)
	if !isVar {
		return e.Eval(n.Child, n.Term)
	}

	graphs, err := e.store.ListGraphs()
	if err != nil {
		return nil, err
	}
	var out algebra.BindingSet
	for _, g := range graphs {
		sub, err := e.Eval(n.Child, g)
		if err != nil {
			return nil, err
		}
		for _, b := range sub {
			nb := b.Clone()
			nb[v.Name] = g
			out = append(out, nb)
		}
	}
	return out, nil
}

// evalService: networking to an external endpoint is not part of this
// engine, so a non-silent SERVICE always fails with ServiceNotSupported; a
// silent SERVICE degrades to the single empty solution mapping SPARQL 1.1
// federation prescribes for a failed silent service, rather than
// evaluating Child (which describes what would have been sent to the
// endpoint, not local data).
func (e *Executor) evalService(n *algebra.Service, graph rdf.Term) (algebra.BindingSet, error) {
	if !n.Silent {
		return nil, qerror.ErrServiceNotSupported
	}
	return algebra.BindingSet{algebra.Binding{}}, nil
}

// evalExtend implements SPARQL BIND: fails with Conflict if Var is
// already bound in some input row; otherwise sets Var to Expr's value, or
// leaves it unbound if Expr evaluates to Unbound or Error.
func (e *Executor) evalExtend(n *algebra.Extend, graph rdf.Term) (algebra.BindingSet, error) {
	child, err := e.Eval(n.Child, graph)
	if err != nil {
		return nil, err
	}
	e.currentGraph = graph

	out := make(algebra.BindingSet, 0, len(child))
	for _, b := range child {
		if _, bound := b.Get(n.Var.Name); bound {
			return nil, qerror.New(qerror.Conflict, fmt.Sprintf("BIND: variable ?%s is already bound", n.Var.Name))
		}
		nb := b.Clone()
		if res := expr.Eval(n.Expr, b, e); res.Kind == expr.KindValue {
			nb[n.Var.Name] = res.Term
		}
		out = append(out, nb)
	}
	return out, nil
}

func (e *Executor) evalProject(n *algebra.Project, graph rdf.Term) (algebra.BindingSet, error) {
	child, err := e.Eval(n.Child, graph)
	if err != nil {
		return nil, err
	}
	out := make(algebra.BindingSet, 0, len(child))
	for _, b := range child {
		nb := algebra.Binding{}
		for _, v := range n.Vars {
			if t, ok := b.Get(v.Name); ok {
				nb[v.Name] = t
			}
		}
		out = append(out, nb)
	}
	return out, nil
}

// evalDistinct removes duplicate bindings by structural equality, using
// bindingHash with bindingEqual to break hash collisions.
func (e *Executor) evalDistinct(n *algebra.Distinct, graph rdf.Term) (algebra.BindingSet, error) {
	child, err := e.Eval(n.Child, graph)
	if err != nil {
		return nil, err
	}
	buckets := map[uint64][]algebra.Binding{}
	out := make(algebra.BindingSet, 0, len(child))
	for _, b := range child {
		h := bindingHash(b)
		dup := false
		for _, seen := range buckets[h] {
			if bindingEqual(seen, b) {
				dup = true
				break
			}
		}
		if !dup {
			buckets[h] = append(buckets[h], b)
			out = append(out, b)
		}
	}
	return out, nil
}

// evalReduced is a pass-through: REDUCED permits but does not require
// duplicate removal, and this executor elects the cheaper conformant
// option of removing none, reserving Distinct's hashing cost for when the
// query actually asked for it.
func (e *Executor) evalReduced(n *algebra.Reduced, graph rdf.Term) (algebra.BindingSet, error) {
	return e.Eval(n.Child, graph)
}

// evalOrderBy stably sorts by Conditions using expr.CompareOrdered, which
// places UNBOUND (here, a nil Term from an Unbound/Error expression result)
// before all bound values.
func (e *Executor) evalOrderBy(n *algebra.OrderBy, graph rdf.Term) (algebra.BindingSet, error) {
	child, err := e.Eval(n.Child, graph)
	if err != nil {
		return nil, err
	}
	if err := e.checkCancelled(); err != nil {
		return nil, err
	}
	e.currentGraph = graph

	sort.SliceStable(child, func(i, j int) bool {
		for _, cond := range n.Conditions {
			ti := orderKey(expr.Eval(cond.Expr, child[i], e))
			tj := orderKey(expr.Eval(cond.Expr, child[j], e))
			c := expr.CompareOrdered(ti, tj)
			if c == 0 {
				continue
			}
			if cond.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return child, nil
}

func orderKey(r expr.Result) rdf.Term {
	if r.Kind != expr.KindValue {
		return nil
	}
	return r.Term
}

// evalSlice drops Offset bindings then takes up to Limit; Limit < 0 means
// unlimited.
func (e *Executor) evalSlice(n *algebra.Slice, graph rdf.Term) (algebra.BindingSet, error) {
	child, err := e.Eval(n.Child, graph)
	if err != nil {
		return nil, err
	}
	start := n.Offset
	if start < 0 {
		start = 0
	}
	if start >= int64(len(child)) {
		return algebra.BindingSet{}, nil
	}
	sliced := child[start:]
	if n.Limit >= 0 && int64(len(sliced)) > n.Limit {
		sliced = sliced[:n.Limit]
	}
	return sliced, nil
}

// evalGroup partitions Child by Keys and folds Aggregates per group.
// With no GROUP BY keys and a Child producing zero rows, a single group
// still emits one row, matching SPARQL 1.1's implicit-single-group rule for
// an aggregate SELECT with no GROUP BY clause.
func (e *Executor) evalGroup(n *algebra.Group, graph rdf.Term) (algebra.BindingSet, error) {
	child, err := e.Eval(n.Child, graph)
	if err != nil {
		return nil, err
	}
	e.currentGraph = graph

	type groupEntry struct {
		key  algebra.Binding
		accs []expr.Accumulator
	}

	newEntry := func(key algebra.Binding) *groupEntry {
		g := &groupEntry{key: key, accs: make([]expr.Accumulator, len(n.Aggregates))}
		for i, agg := range n.Aggregates {
			g.accs[i] = expr.NewAccumulator(agg, agg.Op == algebra.AggCount && agg.Expr == nil)
		}
		return g
	}

	buckets := map[uint64][]*groupEntry{}
	var order []*groupEntry

	for _, b := range child {
		key := algebra.Binding{}
		for _, k := range n.Keys {
			res := expr.Eval(k.Expr, b, e)
			if res.Kind != expr.KindValue {
				continue
			}
			name := keyVarName(k)
			if name != "" {
				key[name] = res.Term
			}
		}

		h := bindingHash(key)
		var entry *groupEntry
		for _, cand := range buckets[h] {
			if bindingEqual(cand.key, key) {
				entry = cand
				break
			}
		}
		if entry == nil {
			entry = newEntry(key)
			buckets[h] = append(buckets[h], entry)
			order = append(order, entry)
		}

		for i, agg := range n.Aggregates {
			if agg.Expr == nil {
				entry.accs[i].Add(nil, true)
				continue
			}
			res := expr.Eval(agg.Expr, b, e)
			entry.accs[i].Add(res.Term, res.Kind == expr.KindValue)
		}
	}

	if len(n.Keys) == 0 && len(order) == 0 {
		order = append(order, newEntry(algebra.Binding{}))
	}

	out := make(algebra.BindingSet, 0, len(order))
	for _, entry := range order {
		nb := entry.key.Clone()
		for i, agg := range n.Aggregates {
			if val, ok := entry.accs[i].Finish(); ok {
				nb[agg.Var.Name] = val
			}
		}
		out = append(out, nb)
	}
	return out, nil
}

func keyVarName(k algebra.GroupKey) string {
	if k.Var != nil {
		return k.Var.Name
	}
	if v, ok := k.Expr.(*algebra.VarExpr); ok {
		return v.Name
	}
	return ""
}

// Exists implements expr.ExistsEvaluator: EXISTS{pattern} holds under
// binding iff pattern, evaluated against the graph active when the
// enclosing Filter/Extend/OrderBy/Group ran, has at least one solution
// compatible with binding.
func (e *Executor) Exists(pattern algebra.Node, binding algebra.Binding) (bool, error) {
	sub, err := e.Eval(pattern, e.currentGraph)
	if err != nil {
		return false, err
	}
	for _, b := range sub {
		if algebra.Compatible(b, binding) {
			return true, nil
		}
	}
	return false, nil
}
