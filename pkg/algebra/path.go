package algebra

import "github.com/gonnect-uk/quadcore/pkg/rdf"

// Path is a SPARQL 1.1 property path, resolved inside BGP handling by
// the Executor; it never lowers to a plain triple pattern. RDF-star property
// paths (paths over quoted triples) are out of scope: the Executor fails
// such evaluation attempts with UnknownFunction.
type Path interface {
	isPath()
}

// PredicatePath is a single IRI predicate, the base case every other path
// variant composes.
type PredicatePath struct{ IRI *rdf.NamedNode }

func (*PredicatePath) isPath() {}

// InversePath reverses subject/object traversal of the wrapped path.
type InversePath struct{ Path Path }

func (*InversePath) isPath() {}

// SeqPath is path concatenation: First then Second.
type SeqPath struct{ First, Second Path }

func (*SeqPath) isPath() {}

// AltPath is path alternation: either Left or Right.
type AltPath struct{ Left, Right Path }

func (*AltPath) isPath() {}

// ZeroOrMorePath is Path*.
type ZeroOrMorePath struct{ Path Path }

func (*ZeroOrMorePath) isPath() {}

// OneOrMorePath is Path+.
type OneOrMorePath struct{ Path Path }

func (*OneOrMorePath) isPath() {}

// ZeroOrOnePath is Path?.
type ZeroOrOnePath struct{ Path Path }

func (*ZeroOrOnePath) isPath() {}

// NegatedPropertySet is !(iri1|...|irin), optionally over inverse
// predicates; Inverse[i] says IRIs[i] is matched against the inverse
// direction (^iri).
type NegatedPropertySet struct {
	IRIs    []*rdf.NamedNode
	Inverse []bool
}

func (*NegatedPropertySet) isPath() {}
