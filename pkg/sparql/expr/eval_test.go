package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

func lit(s string) algebra.Expression { return &algebra.LitExpr{Term: rdf.NewLiteral(s)} }

func intLit(i int64) algebra.Expression {
	return &algebra.LitExpr{Term: rdf.NewIntegerLiteral(i)}
}
func varRef(name string) algebra.Expression { return &algebra.VarExpr{Name: name} }

func requireValue(t *testing.T, r Result) rdf.Term {
	t.Helper()
	require.Equal(t, KindValue, r.Kind, "expected a value, got %+v", r)
	return r.Term
}

func assertBool(t *testing.T, r Result, want bool) {
	t.Helper()
	term := requireValue(t, r)
	ebv, err := EffectiveBooleanValue(term)
	require.NoError(t, err)
	assert.Equal(t, want, ebv)
}

func TestVarExpr(t *testing.T) {
	b := algebra.Binding{"x": rdf.NewLiteral("hello")}
	r := Eval(varRef("x"), b, nil)
	assert.True(t, requireValue(t, r).Equals(rdf.NewLiteral("hello")))

	r = Eval(varRef("missing"), b, nil)
	assert.Equal(t, KindUnbound, r.Kind)
}

func TestComparisons(t *testing.T) {
	b := algebra.Binding{}
	tests := []struct {
		op   string
		l, r algebra.Expression
		want bool
	}{
		{"=", intLit(2), intLit(2), true},
		{"=", intLit(2), intLit(3), false},
		{"!=", intLit(2), intLit(3), true},
		{"<", intLit(2), intLit(3), true},
		{"<=", intLit(3), intLit(3), true},
		{">", intLit(2), intLit(3), false},
		{">=", intLit(3), intLit(3), true},
		{"<", lit("abc"), lit("abd"), true},
		// Numeric overlay: integer and double compare by value.
		{"=", intLit(2), &algebra.LitExpr{Term: rdf.NewDoubleLiteral(2.0)}, true},
	}
	for _, tt := range tests {
		r := Eval(&algebra.BinaryOp{Op: tt.op, Left: tt.l, Right: tt.r}, b, nil)
		assertBool(t, r, tt.want)
	}
}

func TestArithmetic(t *testing.T) {
	b := algebra.Binding{}

	sum := requireValue(t, Eval(&algebra.BinaryOp{Op: "+", Left: intLit(2), Right: intLit(3)}, b, nil))
	assert.True(t, sum.Equals(rdf.NewIntegerLiteral(5)))

	prod := requireValue(t, Eval(&algebra.BinaryOp{Op: "*", Left: intLit(4), Right: intLit(5)}, b, nil))
	assert.True(t, prod.Equals(rdf.NewIntegerLiteral(20)))

	neg := requireValue(t, Eval(&algebra.UnaryOp{Op: "-", Operand: intLit(7)}, b, nil))
	assert.True(t, neg.Equals(rdf.NewIntegerLiteral(-7)))

	// Integer division promotes to decimal (SPARQL op:numeric-divide).
	quot := requireValue(t, Eval(&algebra.BinaryOp{Op: "/", Left: intLit(7), Right: intLit(2)}, b, nil))
	qlit, ok := quot.(*rdf.Literal)
	require.True(t, ok)
	assert.Equal(t, rdf.XSDDecimal.IRI, qlit.Datatype.IRI)
	assert.Equal(t, "3.5", qlit.Value)
}

func TestDivisionByZeroIsExpressionError(t *testing.T) {
	r := Eval(&algebra.BinaryOp{Op: "/", Left: intLit(1), Right: intLit(0)}, algebra.Binding{}, nil)
	assert.Equal(t, KindError, r.Kind)
}

func TestArithmeticOnNonNumericIsError(t *testing.T) {
	r := Eval(&algebra.BinaryOp{Op: "+", Left: lit("a"), Right: intLit(1)}, algebra.Binding{}, nil)
	assert.Equal(t, KindError, r.Kind)
}

func TestDecimalPrecision(t *testing.T) {
	dec := func(s string) algebra.Expression {
		return &algebra.LitExpr{Term: rdf.NewLiteralWithDatatype(s, rdf.XSDDecimal)}
	}
	// 0.1 + 0.2 must be exactly 0.3 under apd decimal arithmetic, where
	// float64 would give 0.30000000000000004.
	r := requireValue(t, Eval(&algebra.BinaryOp{Op: "+", Left: dec("0.1"), Right: dec("0.2")}, algebra.Binding{}, nil))
	rl, ok := r.(*rdf.Literal)
	require.True(t, ok)
	assert.Equal(t, "0.3", rl.Value)
}

func TestLogicalOperators(t *testing.T) {
	b := algebra.Binding{}
	tr := &algebra.LitExpr{Term: rdf.NewBooleanLiteral(true)}
	fa := &algebra.LitExpr{Term: rdf.NewBooleanLiteral(false)}

	assertBool(t, Eval(&algebra.BinaryOp{Op: "&&", Left: tr, Right: tr}, b, nil), true)
	assertBool(t, Eval(&algebra.BinaryOp{Op: "&&", Left: tr, Right: fa}, b, nil), false)
	assertBool(t, Eval(&algebra.BinaryOp{Op: "||", Left: fa, Right: tr}, b, nil), true)
	assertBool(t, Eval(&algebra.UnaryOp{Op: "!", Operand: fa}, b, nil), true)

	// SPARQL three-valued logic: error && false is false, error || true is
	// true; error && true stays an error.
	errExpr := &algebra.BinaryOp{Op: "/", Left: intLit(1), Right: intLit(0)}
	assertBool(t, Eval(&algebra.BinaryOp{Op: "&&", Left: errExpr, Right: fa}, b, nil), false)
	assertBool(t, Eval(&algebra.BinaryOp{Op: "||", Left: errExpr, Right: tr}, b, nil), true)
	assert.Equal(t, KindError, Eval(&algebra.BinaryOp{Op: "&&", Left: errExpr, Right: tr}, b, nil).Kind)
}

func TestEffectiveBooleanValue(t *testing.T) {
	tests := []struct {
		term    rdf.Term
		want    bool
		wantErr bool
	}{
		{rdf.NewBooleanLiteral(true), true, false},
		{rdf.NewBooleanLiteral(false), false, false},
		{rdf.NewIntegerLiteral(0), false, false},
		{rdf.NewIntegerLiteral(42), true, false},
		{rdf.NewDoubleLiteral(0.0), false, false},
		{rdf.NewLiteral(""), false, false},
		{rdf.NewLiteral("x"), true, false},
		{rdf.NewNamedNode("http://example.org/a"), false, true},
	}
	for _, tt := range tests {
		got, err := EffectiveBooleanValue(tt.term)
		if tt.wantErr {
			assert.Error(t, err, "term %s", tt.term)
			continue
		}
		require.NoError(t, err, "term %s", tt.term)
		assert.Equal(t, tt.want, got, "term %s", tt.term)
	}
}

func TestInExpr(t *testing.T) {
	b := algebra.Binding{}
	in := &algebra.InExpr{Operand: intLit(2), List: []algebra.Expression{intLit(1), intLit(2), intLit(3)}}
	assertBool(t, Eval(in, b, nil), true)

	notIn := &algebra.InExpr{Operand: intLit(9), List: []algebra.Expression{intLit(1)}, Negated: true}
	assertBool(t, Eval(notIn, b, nil), true)
}

func TestIfAndCoalesce(t *testing.T) {
	b := algebra.Binding{}
	cond := &algebra.BinaryOp{Op: "<", Left: intLit(1), Right: intLit(2)}
	r := requireValue(t, Eval(&algebra.IfExpr{Cond: cond, Then: lit("yes"), Else: lit("no")}, b, nil))
	assert.True(t, r.Equals(rdf.NewLiteral("yes")))

	// COALESCE skips unbound and error arguments.
	co := &algebra.CoalesceExpr{Args: []algebra.Expression{
		varRef("missing"),
		&algebra.BinaryOp{Op: "/", Left: intLit(1), Right: intLit(0)},
		lit("fallback"),
	}}
	r = requireValue(t, Eval(co, b, nil))
	assert.True(t, r.Equals(rdf.NewLiteral("fallback")))

	empty := &algebra.CoalesceExpr{Args: []algebra.Expression{varRef("missing")}}
	assert.Equal(t, KindUnbound, Eval(empty, b, nil).Kind)
}

func TestBuiltinFunctions(t *testing.T) {
	b := algebra.Binding{
		"iri": rdf.NewNamedNode("http://example.org/thing"),
		"str": rdf.NewLiteral("Hello"),
		"tag": rdf.NewLiteralWithLanguage("bonjour", "fr"),
		"num": rdf.NewIntegerLiteral(-4),
		"f":   rdf.NewDoubleLiteral(2.5),
	}
	call := func(name string, args ...algebra.Expression) Result {
		return Eval(&algebra.FuncCall{Name: name, Args: args}, b, nil)
	}

	assert.True(t, requireValue(t, call("STR", varRef("iri"))).Equals(rdf.NewLiteral("http://example.org/thing")))
	assert.True(t, requireValue(t, call("LANG", varRef("tag"))).Equals(rdf.NewLiteral("fr")))
	assert.True(t, requireValue(t, call("DATATYPE", varRef("num"))).Equals(rdf.XSDInteger))
	assert.True(t, requireValue(t, call("DATATYPE", varRef("str"))).Equals(rdf.XSDString))
	assert.True(t, requireValue(t, call("DATATYPE", varRef("tag"))).Equals(rdf.RDFLangString))

	assert.True(t, requireValue(t, call("STRLEN", varRef("str"))).Equals(rdf.NewIntegerLiteral(5)))
	assert.True(t, requireValue(t, call("UCASE", varRef("str"))).Equals(rdf.NewLiteral("HELLO")))
	assert.True(t, requireValue(t, call("LCASE", varRef("str"))).Equals(rdf.NewLiteral("hello")))

	assertBool(t, call("STRSTARTS", varRef("str"), lit("He")), true)
	assertBool(t, call("STRENDS", varRef("str"), lit("lo")), true)
	assertBool(t, call("CONTAINS", varRef("str"), lit("ell")), true)
	assert.True(t, requireValue(t, call("CONCAT", varRef("str"), lit(" world"))).Equals(rdf.NewLiteral("Hello world")))

	assert.True(t, requireValue(t, call("ABS", varRef("num"))).Equals(rdf.NewIntegerLiteral(4)))
	assert.True(t, requireValue(t, call("CEIL", varRef("f"))).Equals(rdf.NewIntegerLiteral(3)))
	assert.True(t, requireValue(t, call("FLOOR", varRef("f"))).Equals(rdf.NewIntegerLiteral(2)))
	assert.True(t, requireValue(t, call("ROUND", varRef("f"))).Equals(rdf.NewIntegerLiteral(3)))

	assertBool(t, call("ISIRI", varRef("iri")), true)
	assertBool(t, call("ISIRI", varRef("str")), false)
	assertBool(t, call("ISLITERAL", varRef("str")), true)
	assertBool(t, call("ISBLANK", &algebra.LitExpr{Term: rdf.NewBlankNode("b1")}), true)
	assertBool(t, call("ISNUMERIC", varRef("num")), true)
	assertBool(t, call("ISNUMERIC", varRef("str")), false)

	assertBool(t, call("BOUND", varRef("str")), true)
	assertBool(t, call("BOUND", varRef("missing")), false)
	assertBool(t, call("SAMETERM", varRef("str"), lit("Hello")), true)
}

func TestUnknownFunctionIsExpressionError(t *testing.T) {
	r := Eval(&algebra.FuncCall{Name: "NO_SUCH_FN", Args: nil}, algebra.Binding{}, nil)
	assert.Equal(t, KindError, r.Kind)
}

func TestCompareOrderedUnboundFirst(t *testing.T) {
	a := rdf.NewLiteral("a")
	assert.Equal(t, -1, CompareOrdered(nil, a))
	assert.Equal(t, 1, CompareOrdered(a, nil))
	assert.Equal(t, 0, CompareOrdered(nil, nil))

	// Numeric overlay across datatypes.
	two := rdf.NewIntegerLiteral(2)
	tenF := rdf.NewDoubleLiteral(10.0)
	assert.Negative(t, CompareOrdered(two, tenF))
}
