package expr

import (
	"strings"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// Accumulator folds one group's per-row expression values into an
// aggregate's final Term. Callers
// (package executor's Group operator) create one Accumulator per aggregate
// per group, call Add once per row, and call Finish once. Rows whose
// expression is Unbound or Error are passed with ok false; each accumulator
// ignores them, except COUNT(*), which counts every row.
type Accumulator interface {
	// Add records one row's value. ok is false if the row's expression was
	// Unbound or Error; the two cases are not told apart.
	Add(t rdf.Term, ok bool)
	Finish() (rdf.Term, bool) // bool reports whether the aggregate is bound
}

// NewAccumulator builds the accumulator for one AggregateExpr. countStar
// is true only for bare COUNT(*), which counts group size regardless of any
// expression.
func NewAccumulator(agg algebra.AggregateExpr, countStar bool) Accumulator {
	base := newDistinctFilter(agg.Distinct)
	switch agg.Op {
	case algebra.AggCount:
		return &countAcc{distinct: base, star: countStar}
	case algebra.AggSum:
		return &sumAcc{distinct: base}
	case algebra.AggAvg:
		return &avgAcc{distinct: base}
	case algebra.AggMin:
		return &minMaxAcc{distinct: base, wantMax: false}
	case algebra.AggMax:
		return &minMaxAcc{distinct: base, wantMax: true}
	case algebra.AggSample:
		return &sampleAcc{}
	case algebra.AggGroupConcat:
		sep := agg.Separator
		if sep == "" {
			sep = " "
		}
		return &groupConcatAcc{distinct: base, separator: sep}
	default:
		return &countAcc{distinct: base}
	}
}

// distinctFilter dedupes values by their canonical string encoding when
// DISTINCT is requested; it is a no-op pass-through otherwise.
type distinctFilter struct {
	enabled bool
	seen    map[string]bool
}

func newDistinctFilter(enabled bool) *distinctFilter {
	if !enabled {
		return &distinctFilter{}
	}
	return &distinctFilter{enabled: true, seen: map[string]bool{}}
}

// admit reports whether t should be folded into the aggregate: always true
// when DISTINCT is off, else true only the first time t's encoding is seen.
func (f *distinctFilter) admit(t rdf.Term) bool {
	if !f.enabled {
		return true
	}
	key := t.String()
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

// countAcc implements COUNT(*) and COUNT([DISTINCT] expr): COUNT(*)
// counts group size; COUNT(DISTINCT e) counts distinct non-error values.
// COUNT never returns unbound: it is 0 on empty input.
type countAcc struct {
	distinct *distinctFilter
	star     bool
	rows     int64
	n        int64
}

func (a *countAcc) Add(t rdf.Term, ok bool) {
	a.rows++
	if a.star {
		return
	}
	if !ok {
		return
	}
	if a.distinct.admit(t) {
		a.n++
	}
}

func (a *countAcc) Finish() (rdf.Term, bool) {
	if a.star {
		return rdf.NewIntegerLiteral(a.rows), true
	}
	return rdf.NewIntegerLiteral(a.n), true
}

// sumAcc implements SUM: coerce to numeric, ignore type errors, return
// unbound on empty input. Empty here means no row contributed a valid
// numeric value, since a group with only non-numeric rows has nothing to
// sum.
type sumAcc struct {
	distinct *distinctFilter
	sum      numeric
	any      bool
}

func (a *sumAcc) Add(t rdf.Term, ok bool) {
	if !ok {
		return
	}
	n, numOK := parseNumeric(t)
	if !numOK || !a.distinct.admit(t) {
		return
	}
	if !a.any {
		a.sum = n
		a.any = true
		return
	}
	if res, err := numericArith("+", a.sum, n); err == nil {
		a.sum = res
	}
}

func (a *sumAcc) Finish() (rdf.Term, bool) {
	if !a.any {
		return nil, false
	}
	return a.sum.literal(), true
}

// avgAcc implements AVG with the same empty-input contract as sumAcc.
type avgAcc struct {
	distinct *distinctFilter
	sum      numeric
	count    int64
	any      bool
}

func (a *avgAcc) Add(t rdf.Term, ok bool) {
	if !ok {
		return
	}
	n, numOK := parseNumeric(t)
	if !numOK || !a.distinct.admit(t) {
		return
	}
	if !a.any {
		a.sum = n
		a.any = true
	} else if res, err := numericArith("+", a.sum, n); err == nil {
		a.sum = res
	}
	a.count++
}

func (a *avgAcc) Finish() (rdf.Term, bool) {
	if !a.any || a.count == 0 {
		return nil, false
	}
	res, err := numericArith("/", a.sum, numeric{kind: numInteger, i: a.count})
	if err != nil {
		return nil, false
	}
	return res.literal(), true
}

// minMaxAcc implements MIN/MAX over the plain Term order, not the numeric
// overlay applied in ORDER BY.
type minMaxAcc struct {
	distinct *distinctFilter
	wantMax  bool
	best     rdf.Term
	any      bool
}

func (a *minMaxAcc) Add(t rdf.Term, ok bool) {
	if !ok || !a.distinct.admit(t) {
		return
	}
	if !a.any {
		a.best = t
		a.any = true
		return
	}
	c := rdf.Compare(t, a.best)
	if (a.wantMax && c > 0) || (!a.wantMax && c < 0) {
		a.best = t
	}
}

func (a *minMaxAcc) Finish() (rdf.Term, bool) {
	if !a.any {
		return nil, false
	}
	return a.best, true
}

// sampleAcc implements SAMPLE: an arbitrary (here: the first) bound value.
type sampleAcc struct {
	val rdf.Term
	any bool
}

func (a *sampleAcc) Add(t rdf.Term, ok bool) {
	if !ok || a.any {
		return
	}
	a.val = t
	a.any = true
}

func (a *sampleAcc) Finish() (rdf.Term, bool) {
	if !a.any {
		return nil, false
	}
	return a.val, true
}

// groupConcatAcc implements GROUP_CONCAT(separator): "joins string forms
// with the given separator (default ' ')".
type groupConcatAcc struct {
	distinct  *distinctFilter
	separator string
	parts     []string
	any       bool
}

func (a *groupConcatAcc) Add(t rdf.Term, ok bool) {
	if !ok || !a.distinct.admit(t) {
		return
	}
	s, stringOK := stringValue(t)
	if !stringOK {
		s = t.String()
	}
	a.parts = append(a.parts, s)
	a.any = true
}

func (a *groupConcatAcc) Finish() (rdf.Term, bool) {
	if !a.any {
		return rdf.NewLiteral(""), true
	}
	return rdf.NewLiteral(strings.Join(a.parts, a.separator)), true
}
