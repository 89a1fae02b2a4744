package expr

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// numKind is a rung of the numeric promotion ladder integer, decimal,
// float, double. xsd:decimal arithmetic uses apd.Decimal for arbitrary
// precision; float/double both map to float64.
type numKind int

const (
	numInteger numKind = iota
	numDecimal
	numFloat
	numDouble
)

type numeric struct {
	kind numKind
	i    int64
	d    *apd.Decimal
	f    float64
}

var decCtx = apd.BaseContext.WithPrecision(34)

func numKindOf(datatype *rdf.NamedNode) (numKind, bool) {
	if datatype == nil {
		return 0, false
	}
	switch datatype.IRI {
	case rdf.XSDInteger.IRI,
		"http://www.w3.org/2001/XMLSchema#int",
		"http://www.w3.org/2001/XMLSchema#long",
		"http://www.w3.org/2001/XMLSchema#short",
		"http://www.w3.org/2001/XMLSchema#byte",
		"http://www.w3.org/2001/XMLSchema#nonNegativeInteger",
		"http://www.w3.org/2001/XMLSchema#positiveInteger",
		"http://www.w3.org/2001/XMLSchema#negativeInteger",
		"http://www.w3.org/2001/XMLSchema#nonPositiveInteger",
		"http://www.w3.org/2001/XMLSchema#unsignedLong",
		"http://www.w3.org/2001/XMLSchema#unsignedInt":
		return numInteger, true
	case rdf.XSDDecimal.IRI:
		return numDecimal, true
	case rdf.XSDFloat.IRI:
		return numFloat, true
	case rdf.XSDDouble.IRI:
		return numDouble, true
	default:
		return 0, false
	}
}

// parseNumeric attempts to read t as a numeric literal. ok is false for any
// non-numeric term, which callers treat as a type error.
func parseNumeric(t rdf.Term) (numeric, bool) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return numeric{}, false
	}
	kind, ok := numKindOf(lit.Datatype)
	if !ok {
		return numeric{}, false
	}
	switch kind {
	case numInteger:
		v, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return numeric{}, false
		}
		return numeric{kind: numInteger, i: v}, true
	case numDecimal:
		d, _, err := decCtx.NewFromString(lit.Value)
		if err != nil {
			return numeric{}, false
		}
		return numeric{kind: numDecimal, d: d}, true
	default: // numFloat, numDouble
		v, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return numeric{}, false
		}
		return numeric{kind: kind, f: v}, true
	}
}

// promote widens a and b to their common rung of the ladder.
func promote(a, b numeric) numKind {
	if a.kind > b.kind {
		return a.kind
	}
	return b.kind
}

func (n numeric) toDecimal() *apd.Decimal {
	switch n.kind {
	case numInteger:
		return apd.New(n.i, 0)
	case numDecimal:
		return n.d
	default:
		d := new(apd.Decimal)
		d.SetFloat64(n.f)
		return d
	}
}

func (n numeric) toFloat() float64 {
	switch n.kind {
	case numInteger:
		return float64(n.i)
	case numDecimal:
		f, _ := n.d.Float64()
		return f
	default:
		return n.f
	}
}

func (n numeric) datatype() *rdf.NamedNode {
	switch n.kind {
	case numInteger:
		return rdf.XSDInteger
	case numDecimal:
		return rdf.XSDDecimal
	case numFloat:
		return rdf.XSDFloat
	default:
		return rdf.XSDDouble
	}
}

func (n numeric) literal() *rdf.Literal {
	switch n.kind {
	case numInteger:
		return rdf.NewIntegerLiteral(n.i)
	case numDecimal:
		reduced, _ := new(apd.Decimal).Reduce(n.d)
		return rdf.NewLiteralWithDatatype(reduced.Text('f'), rdf.XSDDecimal)
	case numFloat:
		return rdf.NewLiteralWithDatatype(formatFloat(n.f), rdf.XSDFloat)
	default:
		return rdf.NewDoubleLiteral(n.f)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// numericArith applies op to a and b at their promoted rung. Division by
// zero returns an error.
func numericArith(op string, a, b numeric) (numeric, error) {
	kind := promote(a, b)
	switch kind {
	case numInteger:
		x, y := a.i, b.i
		switch op {
		case "+":
			return numeric{kind: numInteger, i: x + y}, nil
		case "-":
			return numeric{kind: numInteger, i: x - y}, nil
		case "*":
			return numeric{kind: numInteger, i: x * y}, nil
		case "/":
			if y == 0 {
				return numeric{}, fmt.Errorf("division by zero")
			}
			// SPARQL division always yields a decimal-or-wider result even
			// for integer operands, so fall through to decimal division.
			d, err := decimalDivide(apd.New(x, 0), apd.New(y, 0))
			return numeric{kind: numDecimal, d: d}, err
		}
	case numDecimal:
		x, y := a.toDecimal(), b.toDecimal()
		switch op {
		case "+":
			d := new(apd.Decimal)
			_, err := decCtx.Add(d, x, y)
			return numeric{kind: numDecimal, d: d}, err
		case "-":
			d := new(apd.Decimal)
			_, err := decCtx.Sub(d, x, y)
			return numeric{kind: numDecimal, d: d}, err
		case "*":
			d := new(apd.Decimal)
			_, err := decCtx.Mul(d, x, y)
			return numeric{kind: numDecimal, d: d}, err
		case "/":
			if y.IsZero() {
				return numeric{}, fmt.Errorf("division by zero")
			}
			d, err := decimalDivide(x, y)
			return numeric{kind: numDecimal, d: d}, err
		}
	default: // numFloat, numDouble
		x, y := a.toFloat(), b.toFloat()
		var r float64
		switch op {
		case "+":
			r = x + y
		case "-":
			r = x - y
		case "*":
			r = x * y
		case "/":
			if y == 0 {
				return numeric{}, fmt.Errorf("division by zero")
			}
			r = x / y
		}
		return numeric{kind: kind, f: r}, nil
	}
	return numeric{}, fmt.Errorf("unsupported arithmetic operator %q", op)
}

func decimalDivide(x, y *apd.Decimal) (*apd.Decimal, error) {
	d := new(apd.Decimal)
	_, err := decCtx.Quo(d, x, y)
	return d, err
}

// compareNumeric compares two numeric values at their promoted rung.
func compareNumeric(a, b numeric) int {
	switch promote(a, b) {
	case numInteger:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case numDecimal:
		return a.toDecimal().Cmp(b.toDecimal())
	default:
		x, y := a.toFloat(), b.toFloat()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
}
