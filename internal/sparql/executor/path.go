package executor

import (
	"fmt"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
	"github.com/gonnect-uk/quadcore/pkg/store"
)

// pathEvaluator evaluates property paths by walking the store one hop at
// a time; ZeroOrMore/OneOrMore perform their own BFS closure rather than
// delegating to a generic outer closure, since a path like (a|b)* needs
// the alternation re-evaluated at every hop, not just once.
type pathEvaluator struct {
	qs    *store.QuadStore
	graph rdf.Term
}

// forward returns the distinct terms reachable from start by path, in the
// subject-to-object direction.
func (e *pathEvaluator) forward(path algebra.Path, start rdf.Term) ([]rdf.Term, error) {
	switch p := path.(type) {
	case *algebra.PredicatePath:
		return e.step(start, p.IRI, false)

	case *algebra.InversePath:
		return e.backward(p.Path, start)

	case *algebra.SeqPath:
		mids, err := e.forward(p.First, start)
		if err != nil {
			return nil, err
		}
		return e.forwardMany(p.Second, mids)

	case *algebra.AltPath:
		left, err := e.forward(p.Left, start)
		if err != nil {
			return nil, err
		}
		right, err := e.forward(p.Right, start)
		if err != nil {
			return nil, err
		}
		return dedupeTerms(append(left, right...)), nil

	case *algebra.ZeroOrMorePath:
		return e.closureForward(p.Path, start, true)

	case *algebra.OneOrMorePath:
		return e.closureForward(p.Path, start, false)

	case *algebra.ZeroOrOnePath:
		one, err := e.forward(p.Path, start)
		if err != nil {
			return nil, err
		}
		return dedupeTerms(append(one, start)), nil

	case *algebra.NegatedPropertySet:
		return e.negatedStep(start, p, false)

	default:
		return nil, fmt.Errorf("unsupported property path type %T", path)
	}
}

// backward is forward with subject/object traversal reversed.
func (e *pathEvaluator) backward(path algebra.Path, end rdf.Term) ([]rdf.Term, error) {
	switch p := path.(type) {
	case *algebra.PredicatePath:
		return e.step(end, p.IRI, true)

	case *algebra.InversePath:
		return e.forward(p.Path, end)

	case *algebra.SeqPath:
		mids, err := e.backward(p.Second, end)
		if err != nil {
			return nil, err
		}
		return e.backwardMany(p.First, mids)

	case *algebra.AltPath:
		left, err := e.backward(p.Left, end)
		if err != nil {
			return nil, err
		}
		right, err := e.backward(p.Right, end)
		if err != nil {
			return nil, err
		}
		return dedupeTerms(append(left, right...)), nil

	case *algebra.ZeroOrMorePath:
		return e.closureBackward(p.Path, end, true)

	case *algebra.OneOrMorePath:
		return e.closureBackward(p.Path, end, false)

	case *algebra.ZeroOrOnePath:
		one, err := e.backward(p.Path, end)
		if err != nil {
			return nil, err
		}
		return dedupeTerms(append(one, end)), nil

	case *algebra.NegatedPropertySet:
		return e.negatedStep(end, p, true)

	default:
		return nil, fmt.Errorf("unsupported property path type %T", path)
	}
}

func (e *pathEvaluator) forwardMany(path algebra.Path, starts []rdf.Term) ([]rdf.Term, error) {
	var out []rdf.Term
	for _, s := range starts {
		next, err := e.forward(path, s)
		if err != nil {
			return nil, err
		}
		out = append(out, next...)
	}
	return dedupeTerms(out), nil
}

func (e *pathEvaluator) backwardMany(path algebra.Path, ends []rdf.Term) ([]rdf.Term, error) {
	var out []rdf.Term
	for _, s := range ends {
		prev, err := e.backward(path, s)
		if err != nil {
			return nil, err
		}
		out = append(out, prev...)
	}
	return dedupeTerms(out), nil
}

// step is the base case for both directions: a single predicate IRI hop.
func (e *pathEvaluator) step(from rdf.Term, pred *rdf.NamedNode, reverse bool) ([]rdf.Term, error) {
	var pat store.Pattern
	if reverse {
		pat = store.Pattern{Subject: nil, Predicate: pred, Object: from, Graph: e.graph}
	} else {
		pat = store.Pattern{Subject: from, Predicate: pred, Object: nil, Graph: e.graph}
	}
	it, err := e.qs.Match(pat)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []rdf.Term
	for it.Next() {
		q := it.Quad()
		if reverse {
			out = append(out, q.Subject)
		} else {
			out = append(out, q.Object)
		}
	}
	return out, nil
}

func (e *pathEvaluator) negatedStep(from rdf.Term, p *algebra.NegatedPropertySet, reverse bool) ([]rdf.Term, error) {
	excluded := map[string]bool{}
	for i, iri := range p.IRIs {
		if i < len(p.Inverse) && p.Inverse[i] == reverse {
			excluded[iri.IRI] = true
		}
	}

	var pat store.Pattern
	if reverse {
		pat = store.Pattern{Subject: nil, Predicate: nil, Object: from, Graph: e.graph}
	} else {
		pat = store.Pattern{Subject: from, Predicate: nil, Object: nil, Graph: e.graph}
	}
	it, err := e.qs.Match(pat)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []rdf.Term
	for it.Next() {
		q := it.Quad()
		pred, ok := q.Predicate.(*rdf.NamedNode)
		if !ok || excluded[pred.IRI] {
			continue
		}
		if reverse {
			out = append(out, q.Subject)
		} else {
			out = append(out, q.Object)
		}
	}
	return dedupeTerms(out), nil
}

// closureForward computes Path* (includeStart=true) or Path+
// (includeStart=false) via breadth-first expansion.
func (e *pathEvaluator) closureForward(path algebra.Path, start rdf.Term, includeStart bool) ([]rdf.Term, error) {
	visited := map[string]rdf.Term{}
	if includeStart {
		visited[start.String()] = start
	}
	frontier := []rdf.Term{start}
	for len(frontier) > 0 {
		var next []rdf.Term
		for _, f := range frontier {
			reached, err := e.forward(path, f)
			if err != nil {
				return nil, err
			}
			for _, r := range reached {
				key := r.String()
				if _, seen := visited[key]; !seen {
					visited[key] = r
					next = append(next, r)
				}
			}
		}
		frontier = next
	}
	out := make([]rdf.Term, 0, len(visited))
	for _, t := range visited {
		out = append(out, t)
	}
	return out, nil
}

func (e *pathEvaluator) closureBackward(path algebra.Path, end rdf.Term, includeEnd bool) ([]rdf.Term, error) {
	visited := map[string]rdf.Term{}
	if includeEnd {
		visited[end.String()] = end
	}
	frontier := []rdf.Term{end}
	for len(frontier) > 0 {
		var next []rdf.Term
		for _, f := range frontier {
			reached, err := e.backward(path, f)
			if err != nil {
				return nil, err
			}
			for _, r := range reached {
				key := r.String()
				if _, seen := visited[key]; !seen {
					visited[key] = r
					next = append(next, r)
				}
			}
		}
		frontier = next
	}
	out := make([]rdf.Term, 0, len(visited))
	for _, t := range visited {
		out = append(out, t)
	}
	return out, nil
}

func dedupeTerms(terms []rdf.Term) []rdf.Term {
	seen := map[string]bool{}
	out := make([]rdf.Term, 0, len(terms))
	for _, t := range terms {
		key := t.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

func containsTerm(terms []rdf.Term, target rdf.Term) bool {
	for _, t := range terms {
		if t.Equals(target) {
			return true
		}
	}
	return false
}
