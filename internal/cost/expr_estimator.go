package cost

import (
	"github.com/saad749/rheem/internal/costexpr"
	"github.com/saad749/rheem/internal/interval"
)

// ParsedLoadProfile holds one parsed costexpr.Expr per resource, the
// concrete form of a "rheem.<platform>.<op>.load" configuration value.
// A resource left nil evaluates to zero.
type ParsedLoadProfile struct {
	CPU, RAM, Disk, Net costexpr.Expr
}

// Estimator adapts a ParsedLoadProfile into a cost.Estimator, resolving
// inK/outK symbols from the operator's cardinality estimates (taking the
// upper bound, the conservative choice for a single scalar estimate) and
// named variables from vars (the coefficients C8 fits).
func (p ParsedLoadProfile) Estimator(vars map[string]float64) Estimator {
	return func(inputs, outputs []interval.CardinalityEstimate) LoadProfile {
		env := costexpr.Env{
			Inputs:    upperBounds(inputs),
			Outputs:   upperBounds(outputs),
			Variables: vars,
		}
		return LoadProfile{
			CPU:  evalResource(p.CPU, env),
			RAM:  evalResource(p.RAM, env),
			Disk: evalResource(p.Disk, env),
			Net:  evalResource(p.Net, env),
		}
	}
}

func upperBounds(cards []interval.CardinalityEstimate) []float64 {
	out := make([]float64, len(cards))
	for i, c := range cards {
		out[i] = float64(c.Upper)
	}
	return out
}

func evalResource(e costexpr.Expr, env costexpr.Env) interval.ProbabilisticInterval {
	if e == nil {
		return interval.ProbabilisticInterval{P: 1.0}
	}
	v, err := e.Eval(env)
	if err != nil {
		// A malformed runtime symbol reference (e.g. outK beyond arity)
		// degrades to zero load rather than failing the whole push; the
		// caller is expected to have validated the expression at parse
		// time via costexpr.Parse.
		return interval.ProbabilisticInterval{P: 1.0}
	}
	return interval.ProbabilisticInterval{Lower: v, Upper: v, P: 1.0}
}
