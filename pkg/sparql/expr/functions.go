package expr

import (
	"math"
	"strings"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// evalFuncCall dispatches a builtin function by name. Each returns an
// expression error on a type mismatch; callers decide whether that drops
// the row or leaves a variable unbound.
func evalFuncCall(v *algebra.FuncCall, binding algebra.Binding, ex ExistsEvaluator) Result {
	name := strings.ToUpper(v.Name)

	// BOUND is special: it inspects the binding directly without evaluating
	// its argument (an unbound variable is not an error here).
	if name == "BOUND" {
		if len(v.Args) != 1 {
			return Errorf("BOUND requires exactly 1 argument")
		}
		ve, ok := v.Args[0].(*algebra.VarExpr)
		if !ok {
			return Errorf("BOUND requires a variable argument")
		}
		_, bound := binding.Get(ve.Name)
		return Value(rdf.NewBooleanLiteral(bound))
	}

	args := make([]Result, len(v.Args))
	for i, a := range v.Args {
		args[i] = Eval(a, binding, ex)
	}
	for _, a := range args {
		if a.Kind == KindError {
			return a
		}
	}

	switch name {
	case "ISIRI", "ISURI":
		return unary1(args, func(t rdf.Term) Result {
			_, ok := t.(*rdf.NamedNode)
			return Value(rdf.NewBooleanLiteral(ok))
		})
	case "ISBLANK":
		return unary1(args, func(t rdf.Term) Result {
			_, ok := t.(*rdf.BlankNode)
			return Value(rdf.NewBooleanLiteral(ok))
		})
	case "ISLITERAL":
		return unary1(args, func(t rdf.Term) Result {
			_, ok := t.(*rdf.Literal)
			return Value(rdf.NewBooleanLiteral(ok))
		})
	case "ISNUMERIC":
		return unary1(args, func(t rdf.Term) Result {
			_, ok := parseNumeric(t)
			return Value(rdf.NewBooleanLiteral(ok))
		})

	case "STR":
		return unary1(args, func(t rdf.Term) Result {
			switch tv := t.(type) {
			case *rdf.NamedNode:
				return Value(rdf.NewLiteral(tv.IRI))
			case *rdf.Literal:
				return Value(rdf.NewLiteral(tv.Value))
			case *rdf.BlankNode:
				return Value(rdf.NewLiteral("_:" + tv.ID))
			default:
				return Errorf("STR: unsupported term type %T", t)
			}
		})
	case "LANG":
		return unary1(args, func(t rdf.Term) Result {
			lit, ok := t.(*rdf.Literal)
			if !ok {
				return Errorf("LANG requires a literal")
			}
			return Value(rdf.NewLiteral(lit.Language))
		})
	case "DATATYPE":
		return unary1(args, func(t rdf.Term) Result {
			lit, ok := t.(*rdf.Literal)
			if !ok {
				return Errorf("DATATYPE requires a literal")
			}
			switch {
			case lit.Language != "":
				return Value(rdf.RDFLangString)
			case lit.Datatype != nil:
				return Value(lit.Datatype)
			default:
				return Value(rdf.XSDString)
			}
		})

	case "STRLEN":
		return stringUnary(args, func(s string) Result {
			return Value(rdf.NewIntegerLiteral(int64(len([]rune(s)))))
		})
	case "UCASE":
		return stringUnary(args, func(s string) Result { return Value(rdf.NewLiteral(strings.ToUpper(s))) })
	case "LCASE":
		return stringUnary(args, func(s string) Result { return Value(rdf.NewLiteral(strings.ToLower(s))) })

	case "STRSTARTS":
		return stringBinary(args, func(a, b string) Result { return Value(rdf.NewBooleanLiteral(strings.HasPrefix(a, b))) })
	case "STRENDS":
		return stringBinary(args, func(a, b string) Result { return Value(rdf.NewBooleanLiteral(strings.HasSuffix(a, b))) })
	case "CONTAINS":
		return stringBinary(args, func(a, b string) Result { return Value(rdf.NewBooleanLiteral(strings.Contains(a, b))) })

	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			s, ok := stringValue(a.Term)
			if !ok {
				return Errorf("CONCAT requires string-like arguments")
			}
			sb.WriteString(s)
		}
		return Value(rdf.NewLiteral(sb.String()))

	case "SAMETERM":
		if len(args) != 2 {
			return Errorf("sameTerm requires exactly 2 arguments")
		}
		return Value(rdf.NewBooleanLiteral(args[0].Term.Equals(args[1].Term)))

	case "ABS":
		return numericUnary(args, func(n numeric) (numeric, error) {
			switch n.kind {
			case numInteger:
				if n.i < 0 {
					return numeric{kind: numInteger, i: -n.i}, nil
				}
				return n, nil
			case numDecimal:
				d := n.toDecimal().Abs(n.toDecimal())
				return numeric{kind: numDecimal, d: d}, nil
			default:
				return numeric{kind: n.kind, f: math.Abs(n.toFloat())}, nil
			}
		})
	case "CEIL":
		return numericUnary(args, func(n numeric) (numeric, error) {
			if n.kind == numInteger {
				return n, nil
			}
			return numeric{kind: numInteger, i: int64(math.Ceil(n.toFloat()))}, nil
		})
	case "FLOOR":
		return numericUnary(args, func(n numeric) (numeric, error) {
			if n.kind == numInteger {
				return n, nil
			}
			return numeric{kind: numInteger, i: int64(math.Floor(n.toFloat()))}, nil
		})
	case "ROUND":
		return numericUnary(args, func(n numeric) (numeric, error) {
			if n.kind == numInteger {
				return n, nil
			}
			return numeric{kind: numInteger, i: int64(math.Floor(n.toFloat() + 0.5))}, nil
		})

	default:
		return Errorf("unknown function %s", v.Name)
	}
}

func unary1(args []Result, f func(rdf.Term) Result) Result {
	if len(args) != 1 {
		return Errorf("function requires exactly 1 argument")
	}
	return f(args[0].Term)
}

func stringValue(t rdf.Term) (string, bool) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return "", false
	}
	return lit.Value, true
}

func stringUnary(args []Result, f func(string) Result) Result {
	if len(args) != 1 {
		return Errorf("function requires exactly 1 argument")
	}
	s, ok := stringValue(args[0].Term)
	if !ok {
		return Errorf("function requires a string-like argument")
	}
	return f(s)
}

func stringBinary(args []Result, f func(a, b string) Result) Result {
	if len(args) != 2 {
		return Errorf("function requires exactly 2 arguments")
	}
	a, ok := stringValue(args[0].Term)
	if !ok {
		return Errorf("function requires string-like arguments")
	}
	b, ok := stringValue(args[1].Term)
	if !ok {
		return Errorf("function requires string-like arguments")
	}
	return f(a, b)
}

func numericUnary(args []Result, f func(numeric) (numeric, error)) Result {
	if len(args) != 1 {
		return Errorf("function requires exactly 1 argument")
	}
	n, ok := parseNumeric(args[0].Term)
	if !ok {
		return Errorf("function requires a numeric argument")
	}
	out, err := f(n)
	if err != nil {
		return Errorf("%w", err)
	}
	return Value(out.literal())
}
