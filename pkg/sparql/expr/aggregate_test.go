package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

func accFor(op algebra.AggregateOp, distinct bool) Accumulator {
	agg := algebra.AggregateExpr{Op: op, Distinct: distinct, Var: rdf.NewVariable("out")}
	return NewAccumulator(agg, false)
}

func TestCountStar(t *testing.T) {
	acc := NewAccumulator(algebra.AggregateExpr{Op: algebra.AggCount, Var: rdf.NewVariable("n")}, true)
	acc.Add(nil, true)
	acc.Add(nil, true)
	acc.Add(nil, true)
	got, ok := acc.Finish()
	require.True(t, ok)
	assert.True(t, got.Equals(rdf.NewIntegerLiteral(3)))
}

func TestCountSkipsErrorsAndCountsDistinct(t *testing.T) {
	acc := accFor(algebra.AggCount, true)
	acc.Add(rdf.NewIntegerLiteral(1), true)
	acc.Add(rdf.NewIntegerLiteral(1), true)
	acc.Add(rdf.NewIntegerLiteral(2), true)
	acc.Add(nil, false) // error/unbound row is not counted
	got, ok := acc.Finish()
	require.True(t, ok)
	assert.True(t, got.Equals(rdf.NewIntegerLiteral(2)))
}

func TestCountEmptyIsZero(t *testing.T) {
	got, ok := accFor(algebra.AggCount, false).Finish()
	require.True(t, ok, "COUNT returns 0 on empty input, never unbound")
	assert.True(t, got.Equals(rdf.NewIntegerLiteral(0)))
}

func TestSumAndAvg(t *testing.T) {
	sum := accFor(algebra.AggSum, false)
	avg := accFor(algebra.AggAvg, false)
	for _, v := range []int64{1, 2, 3} {
		sum.Add(rdf.NewIntegerLiteral(v), true)
		avg.Add(rdf.NewIntegerLiteral(v), true)
	}
	// Non-numeric rows are ignored, not fatal.
	sum.Add(rdf.NewLiteral("oops"), true)
	avg.Add(rdf.NewLiteral("oops"), true)

	gotSum, ok := sum.Finish()
	require.True(t, ok)
	assert.True(t, gotSum.Equals(rdf.NewIntegerLiteral(6)))

	gotAvg, ok := avg.Finish()
	require.True(t, ok)
	lit, isLit := gotAvg.(*rdf.Literal)
	require.True(t, isLit)
	assert.Equal(t, "2", lit.Value)
}

func TestSumEmptyIsUnbound(t *testing.T) {
	_, ok := accFor(algebra.AggSum, false).Finish()
	assert.False(t, ok)
	_, ok = accFor(algebra.AggAvg, false).Finish()
	assert.False(t, ok)
}

func TestMinMaxUseTermOrder(t *testing.T) {
	min := accFor(algebra.AggMin, false)
	max := accFor(algebra.AggMax, false)
	for _, v := range []string{"banana", "apple", "cherry"} {
		min.Add(rdf.NewLiteral(v), true)
		max.Add(rdf.NewLiteral(v), true)
	}
	gotMin, ok := min.Finish()
	require.True(t, ok)
	assert.True(t, gotMin.Equals(rdf.NewLiteral("apple")))

	gotMax, ok := max.Finish()
	require.True(t, ok)
	assert.True(t, gotMax.Equals(rdf.NewLiteral("cherry")))
}

func TestSample(t *testing.T) {
	acc := accFor(algebra.AggSample, false)
	acc.Add(rdf.NewLiteral("first"), true)
	acc.Add(rdf.NewLiteral("second"), true)
	got, ok := acc.Finish()
	require.True(t, ok)
	assert.True(t, got.Equals(rdf.NewLiteral("first")))
}

func TestGroupConcat(t *testing.T) {
	agg := algebra.AggregateExpr{Op: algebra.AggGroupConcat, Separator: ", ", Var: rdf.NewVariable("out")}
	acc := NewAccumulator(agg, false)
	acc.Add(rdf.NewLiteral("a"), true)
	acc.Add(rdf.NewLiteral("b"), true)
	acc.Add(rdf.NewLiteral("c"), true)
	got, ok := acc.Finish()
	require.True(t, ok)
	assert.True(t, got.Equals(rdf.NewLiteral("a, b, c")))
}

func TestGroupConcatDefaultSeparator(t *testing.T) {
	acc := accFor(algebra.AggGroupConcat, false)
	acc.Add(rdf.NewLiteral("x"), true)
	acc.Add(rdf.NewLiteral("y"), true)
	got, ok := acc.Finish()
	require.True(t, ok)
	assert.True(t, got.Equals(rdf.NewLiteral("x y")))
}

func TestDistinctSum(t *testing.T) {
	acc := accFor(algebra.AggSum, true)
	acc.Add(rdf.NewIntegerLiteral(5), true)
	acc.Add(rdf.NewIntegerLiteral(5), true)
	acc.Add(rdf.NewIntegerLiteral(3), true)
	got, ok := acc.Finish()
	require.True(t, ok)
	assert.True(t, got.Equals(rdf.NewIntegerLiteral(8)))
}
