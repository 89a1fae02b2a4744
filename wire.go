package quadcore

import (
	"encoding/json"
	"fmt"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// TermRecord is the wire form of one bound term: `{ kind:
// iri|literal|blank|quoted, value, datatype?, language?, components? }`.
// For kind "quoted", Components carries the subject/predicate/object records
// and Value is empty.
type TermRecord struct {
	Kind       string              `json:"kind"`
	Value      string              `json:"value,omitempty"`
	Datatype   string              `json:"datatype,omitempty"`
	Language   string              `json:"language,omitempty"`
	Components *QuotedTripleRecord `json:"components,omitempty"`
}

// QuotedTripleRecord is the Components field of a quoted-triple TermRecord.
type QuotedTripleRecord struct {
	Subject   TermRecord `json:"subject"`
	Predicate TermRecord `json:"predicate"`
	Object    TermRecord `json:"object"`
}

// BindingRecord is one solution row on the wire: a map from variable name to
// term record. Unbound variables are absent from the map, not null.
type BindingRecord map[string]TermRecord

// WireTerm converts a ground Term to its wire record.
func WireTerm(t rdf.Term) (TermRecord, error) {
	switch v := t.(type) {
	case *rdf.NamedNode:
		return TermRecord{Kind: "iri", Value: v.IRI}, nil
	case *rdf.BlankNode:
		return TermRecord{Kind: "blank", Value: v.ID}, nil
	case *rdf.Literal:
		rec := TermRecord{Kind: "literal", Value: v.Value, Language: v.Language}
		if v.Datatype != nil {
			rec.Datatype = v.Datatype.IRI
		}
		return rec, nil
	case *rdf.QuotedTriple:
		s, err := WireTerm(v.Subject)
		if err != nil {
			return TermRecord{}, err
		}
		p, err := WireTerm(v.Predicate)
		if err != nil {
			return TermRecord{}, err
		}
		o, err := WireTerm(v.Object)
		if err != nil {
			return TermRecord{}, err
		}
		return TermRecord{Kind: "quoted", Components: &QuotedTripleRecord{Subject: s, Predicate: p, Object: o}}, nil
	default:
		return TermRecord{}, fmt.Errorf("term %s has no wire form", t)
	}
}

// WireBindings converts an executor BindingSet to the record sequence SDK
// layers consume. Terms are resolved eagerly, so the result remains usable
// after the store is closed.
func WireBindings(bs algebra.BindingSet) ([]BindingRecord, error) {
	out := make([]BindingRecord, 0, len(bs))
	for _, b := range bs {
		rec := BindingRecord{}
		for name, term := range b {
			tr, err := WireTerm(term)
			if err != nil {
				return nil, err
			}
			rec[name] = tr
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarshalBindingsJSON renders the wire form as JSON, the concrete encoding
// the HTTP/SDK layers sit on.
func MarshalBindingsJSON(bs algebra.BindingSet) ([]byte, error) {
	records, err := WireBindings(bs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}
