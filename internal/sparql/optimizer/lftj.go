package optimizer

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/qerror"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
	"github.com/gonnect-uk/quadcore/pkg/store"
)

// errCancelled reports cooperative cancellation of a long-running LFTJ
// evaluation; callers test errors.Is(err, qerror.ErrCancelled).
var errCancelled = qerror.ErrCancelled

// CancelFunc is polled between LFTJ levels and periodically within a
// level's intersection loop; it reports whether the caller has requested
// abort.
type CancelFunc func() bool

// RunLFTJ evaluates patterns against graph (a resolved, concrete graph
// term; LFTJ is invoked once per graph binding, since package executor's
// Graph operator already scopes iteration per graph before delegating to a
// BGP) using a worst-case-optimal leapfrog trie join over the variable
// order chosen by Explain, most-shared variable first.
//
// The store exposes four fixed permutation indexes, not a general
// per-relation trie keyed by an arbitrary variable order, so each level's
// sorted candidate set is materialized from store.QuadStore.Match: for the
// variable being resolved at this level, every other pattern slot is
// substituted with its already-bound term (or left as a wildcard if it is
// a variable not yet reached in the order), and the distinct values at the
// target slot are collected and sorted by rdf.Compare. Each level runs one
// prefix scan per participating pattern and nothing beyond the level is
// ever materialized, which
// keeps the leapfrog intersection semantics (round-robin seek-to-max
// across relations sharing a variable, opened one level at a time) while
// fitting the existing Backend contract.
func RunLFTJ(qs *store.QuadStore, graph rdf.Term, patterns []algebra.TriplePattern, order []string, cancel CancelFunc) (algebra.BindingSet, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	var out algebra.BindingSet
	if err := lftjLevel(qs, graph, patterns, order, 0, algebra.Binding{}, &out, cancel); err != nil {
		return nil, err
	}
	return out, nil
}

func lftjLevel(qs *store.QuadStore, graph rdf.Term, patterns []algebra.TriplePattern, order []string, level int, binding algebra.Binding, out *algebra.BindingSet, cancel CancelFunc) error {
	if cancel != nil && cancel() {
		return errCancelled
	}
	if level == len(order) {
		*out = append(*out, binding.Clone())
		return nil
	}

	v := order[level]
	var participants []algebra.TriplePattern
	for _, p := range patterns {
		if containsVar(p, v) {
			participants = append(participants, p)
		}
	}
	if len(participants) == 0 {
		return lftjLevel(qs, graph, patterns, order, level+1, binding, out, cancel)
	}

	// Each participant's candidate list comes from an independent backend
	// scan, so the k scans of this level run concurrently (each on its own
	// read snapshot) before the single-threaded leapfrog loop starts.
	iters := make([]*levelIter, len(participants))
	var g errgroup.Group
	for i, p := range participants {
		g.Go(func() error {
			vals, err := candidatesFor(qs, graph, p, v, binding)
			if err != nil {
				return err
			}
			iters[i] = &levelIter{vals: dedupSortedTerms(vals)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	hits := leapfrogIntersect(iters)
	for i, h := range hits {
		if cancel != nil && i%1024 == 0 && cancel() {
			return errCancelled
		}
		next := binding.Clone()
		next[v] = h
		if err := lftjLevel(qs, graph, patterns, order, level+1, next, out, cancel); err != nil {
			return err
		}
	}
	return nil
}

func containsVar(p algebra.TriplePattern, name string) bool {
	for _, v := range p.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// candidatesFor materializes the sorted, distinct candidate set for target
// within pattern, given the bindings already fixed at shallower levels.
// Other slots of pattern are resolved to their bound term where known and
// left as wildcards otherwise; the target slot itself is always a wildcard
// so every value it takes on is returned.
func candidatesFor(qs *store.QuadStore, graph rdf.Term, pattern algebra.TriplePattern, target string, binding algebra.Binding) ([]rdf.Term, error) {
	resolve := func(t rdf.Term) rdf.Term {
		v, ok := t.(*rdf.Variable)
		if !ok {
			return t
		}
		if v.Name == target {
			return nil
		}
		if bound, ok := binding.Get(v.Name); ok {
			return bound
		}
		return nil
	}

	q := store.Pattern{
		Subject:   resolve(pattern.Subject),
		Predicate: resolve(pattern.Predicate),
		Object:    resolve(pattern.Object),
		Graph:     graph,
	}

	it, err := qs.Match(q)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	slot := targetSlot(pattern, target)
	var vals []rdf.Term
	for it.Next() {
		quad := it.Quad()
		var t rdf.Term
		switch slot {
		case slotSubject:
			t = quad.Subject
		case slotPredicate:
			t = quad.Predicate
		case slotObject:
			t = quad.Object
		}
		if t != nil {
			vals = append(vals, t)
		}
	}
	return vals, nil
}

type patternSlot int

const (
	slotSubject patternSlot = iota
	slotPredicate
	slotObject
)

func targetSlot(p algebra.TriplePattern, target string) patternSlot {
	if v, ok := p.Subject.(*rdf.Variable); ok && v.Name == target {
		return slotSubject
	}
	if v, ok := p.Predicate.(*rdf.Variable); ok && v.Name == target {
		return slotPredicate
	}
	return slotObject
}

// dedupSortedTerms sorts vals by rdf.Compare and removes adjacent
// duplicates, giving each level's relation the sorted, distinct candidate
// list leapfrog intersection requires.
func dedupSortedTerms(vals []rdf.Term) []rdf.Term {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]rdf.Term, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return rdf.Compare(sorted[i], sorted[j]) < 0 })

	out := sorted[:1]
	for _, t := range sorted[1:] {
		if rdf.Compare(out[len(out)-1], t) != 0 {
			out = append(out, t)
		}
	}
	return out
}

// levelIter is one relation's sorted candidate list at the current LFTJ
// level, positioned by Seek.
type levelIter struct {
	vals []rdf.Term
	pos  int
}

func (it *levelIter) AtEnd() bool { return it.pos >= len(it.vals) }

func (it *levelIter) Key() rdf.Term {
	if it.AtEnd() {
		return nil
	}
	return it.vals[it.pos]
}
func (it *levelIter) Next() bool {
	it.pos++
	return !it.AtEnd()
}

// Seek advances past every value less than target, reporting whether a
// value remains.
func (it *levelIter) Seek(target rdf.Term) bool {
	for !it.AtEnd() && rdf.Compare(it.vals[it.pos], target) < 0 {
		it.pos++
	}
	return !it.AtEnd()
}

// leapfrogIntersect is the leapfrog loop: repeatedly find the maximum
// current key across all relations, seek every other relation up to it, and
// emit the key once every relation agrees; then advance one relation past
// the match and repeat. Any relation exhausting its candidates ends the
// intersection.
func leapfrogIntersect(iters []*levelIter) []rdf.Term {
	for _, it := range iters {
		if it.AtEnd() {
			return nil
		}
	}

	var out []rdf.Term
	for {
		max := iters[0].Key()
		for _, it := range iters[1:] {
			if rdf.Compare(it.Key(), max) > 0 {
				max = it.Key()
			}
		}

		allEqual := true
		for _, it := range iters {
			if rdf.Compare(it.Key(), max) != 0 {
				if !it.Seek(max) {
					return out
				}
				allEqual = false
			}
		}
		if allEqual {
			out = append(out, max)
			if !iters[0].Next() {
				return out
			}
		}
	}
}
