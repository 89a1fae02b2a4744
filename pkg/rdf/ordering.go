package rdf

import "strings"

// variantRank fixes the variant sequence
// BlankNode < NamedNode < Literal < QuotedTriple. Variable is only ever
// compared within algebra, never stored, but is given the highest rank so
// that Compare remains total if one is ever passed in by a caller.
func variantRank(t Term) int {
	switch t.Type() {
	case TermTypeBlankNode:
		return 0
	case TermTypeNamedNode:
		return 1
	case TermTypeLiteral:
		return 2
	case TermTypeQuotedTriple:
		return 3
	case TermTypeDefaultGraph:
		return 4
	default:
		return 5
	}
}

// Compare is the total order on Terms used by ORDER BY, MIN/MAX and LFTJ
// (index keys sort by TermID instead): variant tag first, then content. This is the non-numeric
// reference ORDER BY order; the numeric overlay for numeric literals lives
// in pkg/sparql/expr, which falls back to Compare when operands are not
// both numeric.
func Compare(a, b Term) int {
	ra, rb := variantRank(a), variantRank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case *BlankNode:
		// Blank ids compare lexically by their string form, not by the
		// numeric counter value behind them; any stable total order on
		// blank nodes is acceptable since the ids are opaque.
		bv := b.(*BlankNode)
		return strings.Compare(av.ID, bv.ID)
	case *NamedNode:
		bv := b.(*NamedNode)
		return strings.Compare(av.IRI, bv.IRI)
	case *Literal:
		bv := b.(*Literal)
		if c := strings.Compare(av.Value, bv.Value); c != 0 {
			return c
		}
		adt, bdt := "", ""
		if av.Datatype != nil {
			adt = av.Datatype.IRI
		}
		if bv.Datatype != nil {
			bdt = bv.Datatype.IRI
		}
		if c := strings.Compare(adt, bdt); c != 0 {
			return c
		}
		return strings.Compare(av.Language, bv.Language)
	case *QuotedTriple:
		bv := b.(*QuotedTriple)
		if c := Compare(av.Subject, bv.Subject); c != 0 {
			return c
		}
		if c := Compare(av.Predicate, bv.Predicate); c != 0 {
			return c
		}
		return Compare(av.Object, bv.Object)
	default:
		return strings.Compare(a.String(), b.String())
	}
}

// Less reports whether a sorts strictly before b under Compare.
func Less(a, b Term) bool { return Compare(a, b) < 0 }
