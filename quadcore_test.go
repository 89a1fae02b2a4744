package quadcore

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

func iri(suffix string) *rdf.NamedNode {
	return rdf.NewNamedNode("http://example.org/" + suffix)
}

func v(name string) *rdf.Variable { return rdf.NewVariable(name) }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertQueryRoundTrip(t *testing.T) {
	s := openTestStore(t)

	inserted, err := s.InsertQuad(rdf.NewQuad(iri("A"), iri("knows"), iri("B"), nil))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertQuad(rdf.NewQuad(iri("A"), iri("knows"), iri("B"), nil))
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate insert is a no-op")

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	out, err := s.Query(&algebra.BGP{Patterns: []algebra.TriplePattern{
		{Subject: v("x"), Predicate: iri("knows"), Object: iri("B")},
	}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	x, ok := out[0].Get("x")
	require.True(t, ok)
	assert.True(t, x.Equals(iri("A")))
}

func TestDeleteAndClear(t *testing.T) {
	s := openTestStore(t)

	q1 := rdf.NewQuad(iri("A"), iri("p"), iri("x"), nil)
	q2 := rdf.NewQuad(iri("B"), iri("p"), iri("y"), iri("g"))
	for _, q := range []*rdf.Quad{q1, q2} {
		_, err := s.InsertQuad(q)
		require.NoError(t, err)
	}

	removed, err := s.DeleteQuad(q1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteQuad(q1)
	require.NoError(t, err)
	assert.False(t, removed, "deleting an absent quad reports false")

	require.NoError(t, s.Clear())
	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, s.Stats().TotalTriples)
}

func TestListGraphs(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertQuad(rdf.NewQuad(iri("A"), iri("p"), iri("x"), iri("g1")))
	require.NoError(t, err)
	_, err = s.InsertQuad(rdf.NewQuad(iri("A"), iri("p"), iri("y"), nil))
	require.NoError(t, err)

	graphs, err := s.ListGraphs()
	require.NoError(t, err)
	require.Len(t, graphs, 1, "default graph is not listed")
	assert.True(t, graphs[0].Equals(iri("g1")))
}

func TestStatsTrackPredicates(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.InsertQuad(rdf.NewQuad(iri("A"), iri("knows"), iri("B"), nil))
		require.NoError(t, err)
		_, err = s.InsertQuad(rdf.NewQuad(iri("A"), iri("likes"), rdf.NewIntegerLiteral(int64(i)), nil))
		require.NoError(t, err)
	}

	stats := s.Stats()
	assert.Equal(t, int64(4), stats.TotalTriples) // knows deduped to one quad
	knowsID, ok := s.Dictionary().LookupTerm(iri("knows"))
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.PredicateCounts[knowsID])
}

func TestQueryPlanAndLastPlan(t *testing.T) {
	s := openTestStore(t)
	patterns := []algebra.TriplePattern{
		{Subject: v("s"), Predicate: iri("p1"), Object: iri("o1")},
		{Subject: v("s"), Predicate: iri("p2"), Object: iri("o2")},
		{Subject: v("s"), Predicate: iri("p3"), Object: iri("o3")},
		{Subject: v("s"), Predicate: iri("p4"), Object: iri("o4")},
	}

	plan := s.QueryPlan(patterns)
	require.NotNil(t, plan)
	assert.Equal(t, algebra.StrategyLFTJ, plan.Strategy)
	assert.NotEmpty(t, plan.String())

	_, err := s.Query(&algebra.BGP{Patterns: patterns})
	require.NoError(t, err)
	require.NotNil(t, s.LastPlan())
	assert.Equal(t, algebra.StrategyLFTJ, s.LastPlan().Strategy)
}

func TestResultsIndependentOfInsertionOrder(t *testing.T) {
	// Evaluation must be a function of the quad set, not the
	// insertion sequence.
	quads := []*rdf.Quad{
		rdf.NewQuad(iri("A"), iri("k"), iri("B"), nil),
		rdf.NewQuad(iri("B"), iri("k"), iri("C"), nil),
		rdf.NewQuad(iri("C"), iri("k"), iri("A"), nil),
	}
	tree := func() algebra.Node {
		return &algebra.BGP{Patterns: []algebra.TriplePattern{
			{Subject: v("a"), Predicate: iri("k"), Object: v("b")},
			{Subject: v("b"), Predicate: iri("k"), Object: v("c")},
			{Subject: v("c"), Predicate: iri("k"), Object: v("a")},
		}}
	}

	s1 := openTestStore(t)
	for _, q := range quads {
		_, err := s1.InsertQuad(q)
		require.NoError(t, err)
	}
	out1, err := s1.Query(tree())
	require.NoError(t, err)

	s2 := openTestStore(t)
	for i := len(quads) - 1; i >= 0; i-- {
		_, err := s2.InsertQuad(quads[i])
		require.NoError(t, err)
	}
	out2, err := s2.Query(tree())
	require.NoError(t, err)

	set := func(bs algebra.BindingSet) map[string]bool {
		out := map[string]bool{}
		for _, b := range bs {
			a, _ := b.Get("a")
			out[a.String()] = true
		}
		return out
	}
	assert.Equal(t, set(out1), set(out2))
	assert.Len(t, out1, 3)
}

func TestLoadIsNotWired(t *testing.T) {
	s := openTestStore(t)
	err := s.Load("text/turtle", []byte("<a> <b> <c> ."), nil)
	require.Error(t, err)
	var qe *Error
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, UnknownFunction, qe.Kind)
}

func TestCancellation(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertQuad(rdf.NewQuad(iri("A"), iri("p"), iri("x"), nil))
	require.NoError(t, err)

	s.SetCancelFunc(func() bool { return true })
	_, err = s.Query(&algebra.BGP{Patterns: []algebra.TriplePattern{
		{Subject: v("s"), Predicate: iri("p"), Object: v("o")},
	}})
	require.Error(t, err)
	var qe *Error
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, Cancelled, qe.Kind)
}

func TestWireBindings(t *testing.T) {
	qt, err := rdf.NewQuotedTriple(iri("A"), iri("said"), rdf.NewLiteral("hi"))
	require.NoError(t, err)

	bs := algebra.BindingSet{
		{
			"i": iri("thing"),
			"l": rdf.NewLiteralWithDatatype("5", rdf.XSDInteger),
			"t": rdf.NewLiteralWithLanguage("hallo", "de"),
			"b": rdf.NewBlankNode("b1"),
			"q": qt,
		},
		{}, // fully unbound row stays an empty map, not nulls
	}

	records, err := WireBindings(bs)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec := records[0]
	assert.Equal(t, TermRecord{Kind: "iri", Value: "http://example.org/thing"}, rec["i"])
	assert.Equal(t, "literal", rec["l"].Kind)
	assert.Equal(t, rdf.XSDInteger.IRI, rec["l"].Datatype)
	assert.Equal(t, "de", rec["t"].Language)
	assert.Equal(t, "blank", rec["b"].Kind)
	require.NotNil(t, rec["q"].Components)
	assert.Equal(t, "iri", rec["q"].Components.Subject.Kind)
	assert.Empty(t, records[1])

	data, err := MarshalBindingsJSON(bs)
	require.NoError(t, err)
	var decoded []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	_, hasUnbound := decoded[1]["i"]
	assert.False(t, hasUnbound, "unbound variables are absent, not null")
}
