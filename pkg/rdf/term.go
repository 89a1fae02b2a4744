package rdf

import (
	"fmt"
	"strings"
	"time"
)

// TermType tags the variant of a Term. The ordering of the iota values
// matches the variant order of Compare (used by ORDER BY, MIN/MAX and
// LFTJ): BlankNode < NamedNode < Literal < QuotedTriple. The store's index
// keys sort by dictionary TermID, not by this order. Variable never appears
// in a stored Quad; it exists only inside query algebra.
type TermType byte

const (
	TermTypeBlankNode TermType = iota + 1
	TermTypeNamedNode
	TermTypeLiteral
	TermTypeQuotedTriple
	TermTypeDefaultGraph
	TermTypeVariable
)

// Term is a tagged sum over the five stored variants plus Variable.
type Term interface {
	Type() TermType
	String() string
	Equals(other Term) bool
}

// NamedNode is an IRI.
type NamedNode struct {
	IRI string
}

func NewNamedNode(iri string) *NamedNode { return &NamedNode{IRI: iri} }

func (n *NamedNode) Type() TermType { return TermTypeNamedNode }

func (n *NamedNode) String() string { return fmt.Sprintf("<%s>", n.IRI) }

func (n *NamedNode) Equals(other Term) bool {
	if on, ok := other.(*NamedNode); ok {
		return n.IRI == on.IRI
	}
	return false
}

// BlankNode is a session-scoped identifier; see Dictionary.NewBlankNode.
// Two BlankNodes are equal iff their IDs match; IDs minted by different
// Dictionary instances are never equal to one another (session scoping is
// enforced by Dictionary, not by BlankNode itself).
type BlankNode struct {
	ID string
}

func NewBlankNode(id string) *BlankNode { return &BlankNode{ID: id} }

func (b *BlankNode) Type() TermType { return TermTypeBlankNode }

func (b *BlankNode) String() string { return fmt.Sprintf("_:%s", b.ID) }

func (b *BlankNode) Equals(other Term) bool {
	if ob, ok := other.(*BlankNode); ok {
		return b.ID == ob.ID
	}
	return false
}

// Literal is (lexical_form, datatype?, language?). A language tag implies
// the datatype rdf:langString; an absent datatype means the literal is
// effectively xsd:string.
type Literal struct {
	Value     string
	Language  string     // BCP-47 tag for language-tagged strings
	Direction string     // RDF 1.2 base direction: "ltr", "rtl", or ""
	Datatype  *NamedNode // nil for language-tagged or plain strings
}

func NewLiteral(value string) *Literal { return &Literal{Value: value} }

func NewLiteralWithLanguage(value, language string) *Literal {
	return &Literal{Value: value, Language: language}
}

func NewLiteralWithLanguageAndDirection(value, language, direction string) *Literal {
	return &Literal{Value: value, Language: language, Direction: direction}
}

func NewLiteralWithDatatype(value string, datatype *NamedNode) *Literal {
	return &Literal{Value: value, Datatype: datatype}
}

func (l *Literal) Type() TermType { return TermTypeLiteral }

func (l *Literal) String() string {
	result := fmt.Sprintf(`"%s"`, l.Value)
	switch {
	case l.Language != "":
		result += "@" + l.Language
		if l.Direction != "" {
			result += "--" + l.Direction
		}
	case l.Datatype != nil:
		result += "^^" + l.Datatype.String()
	}
	return result
}

func (l *Literal) Equals(other Term) bool {
	ol, ok := other.(*Literal)
	if !ok {
		return false
	}
	if l.Value != ol.Value || l.Language != ol.Language || l.Direction != ol.Direction {
		return false
	}
	if (l.Datatype == nil) != (ol.Datatype == nil) {
		return false
	}
	if l.Datatype == nil {
		return true
	}
	return l.Datatype.Equals(ol.Datatype)
}

// DefaultGraph is the sentinel graph term denoting the absence of a named graph.
type DefaultGraph struct{}

func NewDefaultGraph() *DefaultGraph { return &DefaultGraph{} }

func (d *DefaultGraph) Type() TermType { return TermTypeDefaultGraph }

func (d *DefaultGraph) String() string { return "DEFAULT" }

func (d *DefaultGraph) Equals(other Term) bool {
	_, ok := other.(*DefaultGraph)
	return ok
}

// QuotedTriple is an owned (subject, predicate, object) reference used for
// RDF-star. Predicate must be an IRI; subject must be IRI, BlankNode, or
// another QuotedTriple; object may be any Term except Variable.
type QuotedTriple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewQuotedTriple validates and constructs a QuotedTriple.
func NewQuotedTriple(subject, predicate, object Term) (*QuotedTriple, error) {
	switch subject.(type) {
	case *NamedNode, *BlankNode, *QuotedTriple:
	default:
		return nil, fmt.Errorf("quoted triple subject must be IRI, blank node, or quoted triple, got %T", subject)
	}
	if _, ok := predicate.(*NamedNode); !ok {
		return nil, fmt.Errorf("quoted triple predicate must be IRI, got %T", predicate)
	}
	if _, ok := object.(*Variable); ok {
		return nil, fmt.Errorf("quoted triple object must not be a variable")
	}
	return &QuotedTriple{Subject: subject, Predicate: predicate, Object: object}, nil
}

func (q *QuotedTriple) Type() TermType { return TermTypeQuotedTriple }

func (q *QuotedTriple) String() string {
	return fmt.Sprintf("<< %s %s %s >>", q.Subject, q.Predicate, q.Object)
}

func (q *QuotedTriple) Equals(other Term) bool {
	oq, ok := other.(*QuotedTriple)
	if !ok {
		return false
	}
	return q.Subject.Equals(oq.Subject) && q.Predicate.Equals(oq.Predicate) && q.Object.Equals(oq.Object)
}

// Variable is an algebra-only term; it never appears in a stored Quad. The
// store's insert operations reject it (see ValidateGroundTerm).
type Variable struct {
	Name string
}

func NewVariable(name string) *Variable { return &Variable{Name: name} }

func (v *Variable) Type() TermType { return TermTypeVariable }

func (v *Variable) String() string { return "?" + v.Name }

func (v *Variable) Equals(other Term) bool {
	if ov, ok := other.(*Variable); ok {
		return v.Name == ov.Name
	}
	return false
}

// Triple is (s, p, o), s ∈ {IRI, BlankNode, QuotedTriple}, p ∈ {IRI}.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func NewTriple(subject, predicate, object Term) *Triple {
	return &Triple{Subject: subject, Predicate: predicate, Object: object}
}

func (t *Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// Quad is a Triple plus an optional graph term; DefaultGraph denotes absence.
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

func NewQuad(subject, predicate, object, graph Term) *Quad {
	return &Quad{Subject: subject, Predicate: predicate, Object: object, Graph: graph}
}

func (q *Quad) String() string {
	return fmt.Sprintf("%s %s %s %s .", q.Subject, q.Predicate, q.Object, q.Graph)
}

// ValidateGroundTerm rejects Variable: variables never reach stored quads.
func ValidateGroundTerm(t Term) error {
	if _, ok := t.(*Variable); ok {
		return fmt.Errorf("variable %s is not a ground term and cannot be stored", t)
	}
	return nil
}

// Common XSD datatypes.
var (
	XSDString   = NewNamedNode("http://www.w3.org/2001/XMLSchema#string")
	XSDInteger  = NewNamedNode("http://www.w3.org/2001/XMLSchema#integer")
	XSDDecimal  = NewNamedNode("http://www.w3.org/2001/XMLSchema#decimal")
	XSDDouble   = NewNamedNode("http://www.w3.org/2001/XMLSchema#double")
	XSDFloat    = NewNamedNode("http://www.w3.org/2001/XMLSchema#float")
	XSDBoolean  = NewNamedNode("http://www.w3.org/2001/XMLSchema#boolean")
	XSDDateTime = NewNamedNode("http://www.w3.org/2001/XMLSchema#dateTime")
	XSDDate     = NewNamedNode("http://www.w3.org/2001/XMLSchema#date")
	XSDTime     = NewNamedNode("http://www.w3.org/2001/XMLSchema#time")
	XSDDuration = NewNamedNode("http://www.w3.org/2001/XMLSchema#duration")

	RDFLangString = NewNamedNode("http://www.w3.org/1999/02/22-rdf-syntax-ns#langString")
)

func NewIntegerLiteral(value int64) *Literal {
	return NewLiteralWithDatatype(fmt.Sprintf("%d", value), XSDInteger)
}

func NewBooleanLiteral(value bool) *Literal {
	return NewLiteralWithDatatype(fmt.Sprintf("%t", value), XSDBoolean)
}

func NewDoubleLiteral(value float64) *Literal {
	return NewLiteralWithDatatype(formatFloat(value), XSDDouble)
}

func NewDecimalLiteral(value float64) *Literal {
	str := fmt.Sprintf("%.1f", value)
	if value != float64(int64(value*10)/10) {
		str = strings.TrimRight(fmt.Sprintf("%f", value), "0")
		if strings.HasSuffix(str, ".") {
			str += "0"
		}
	}
	return NewLiteralWithDatatype(str, XSDDecimal)
}

func NewDateTimeLiteral(value time.Time) *Literal {
	return NewLiteralWithDatatype(value.Format(time.RFC3339), XSDDateTime)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) && value < 1e15 && value > -1e15 {
		return fmt.Sprintf("%.1f", value)
	}
	str := fmt.Sprintf("%g", value)
	if !strings.ContainsAny(str, ".eE") {
		str += ".0"
	}
	return str
}
