package costexpr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/costexpr"
)

func eval(t *testing.T, src string, env costexpr.Env) float64 {
	t.Helper()
	e, err := costexpr.Parse(src)
	require.NoError(t, err)
	v, err := e.Eval(env)
	require.NoError(t, err)
	return v
}

func TestParseEvalArithmetic(t *testing.T) {
	env := costexpr.Env{Inputs: []float64{4}, Outputs: []float64{2}}
	require.Equal(t, 6.0, eval(t, "in0 + out0", env))
	require.Equal(t, 2.0, eval(t, "in0 - out0", env))
	require.Equal(t, 8.0, eval(t, "in0 * out0", env))
	require.Equal(t, 2.0, eval(t, "in0 / out0", env))
}

func TestParsePrecedenceAndParens(t *testing.T) {
	env := costexpr.Env{Inputs: []float64{2, 3}}
	require.Equal(t, 11.0, eval(t, "in0 + in1 * 3", env))
	require.Equal(t, 15.0, eval(t, "(in0 + in1) * 3", env))
}

func TestParseVariables(t *testing.T) {
	env := costexpr.Env{Inputs: []float64{10}, Variables: map[string]float64{"a": 2, "b": 5}}
	require.Equal(t, 25.0, eval(t, "${a} * in0 + ${b}", env))
}

func TestParseIntrinsics(t *testing.T) {
	env := costexpr.Env{}
	require.Equal(t, 3.0, eval(t, "round(2.6)", env))
	require.Equal(t, 5.0, eval(t, "max(1, 5, 3)", env))
	require.Equal(t, 1.0, eval(t, "min(1, 5, 3)", env))
}

func TestEvalUnboundVariableErrors(t *testing.T) {
	e, err := costexpr.Parse("${missing}")
	require.NoError(t, err)
	_, err = e.Eval(costexpr.Env{})
	require.Error(t, err)
}

func TestEvalDivisionByZeroErrors(t *testing.T) {
	e, err := costexpr.Parse("1 / 0")
	require.NoError(t, err)
	_, err = e.Eval(costexpr.Env{})
	require.Error(t, err)
}

func TestEvalSymbolOutOfRangeErrors(t *testing.T) {
	e, err := costexpr.Parse("in5")
	require.NoError(t, err)
	_, err = e.Eval(costexpr.Env{Inputs: []float64{1}})
	require.Error(t, err)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := costexpr.Parse("1 + 1 2")
	require.Error(t, err)
}

// TestStringRoundTripReparses exercises the parse -> String -> parse
// idempotence: re-parsing a printed expression must evaluate identically.
func TestStringRoundTripReparses(t *testing.T) {
	env := costexpr.Env{Inputs: []float64{4}, Outputs: []float64{2}, Variables: map[string]float64{"a": 3}}
	e, err := costexpr.Parse("${a} * in0 + out0")
	require.NoError(t, err)
	printed := e.String()

	reparsed, err := costexpr.Parse(printed)
	require.NoError(t, err)

	want, err := e.Eval(env)
	require.NoError(t, err)
	got, err := reparsed.Eval(env)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
