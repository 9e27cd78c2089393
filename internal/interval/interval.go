// Package interval implements the probabilistic interval arithmetic shared
// by cardinality estimation and the cost model: CardinalityEstimate is the
// triple (lower, upper, p), and CostEstimate/TimeEstimate are a
// ProbabilisticDoubleInterval, both combined by the same interval-arithmetic
// rules (addition and multiplication preserve lower<=upper, p'=min(p1,p2)).
package interval

// CardinalityEstimate is the triple (lower, upper, p).
// Invariant: Lower <= Upper, P in [0,1].
type CardinalityEstimate struct {
	Lower uint64
	Upper uint64
	P     float64
}

// Exact builds a CardinalityEstimate with Lower == Upper == n and full
// confidence, the form measured cardinality injection always produces.
func Exact(n uint64) CardinalityEstimate {
	return CardinalityEstimate{Lower: n, Upper: n, P: 1.0}
}

// Unknown is the zero-confidence fallback used when no estimator and no
// measurement is available.
var Unknown = CardinalityEstimate{Lower: 0, Upper: 0, P: 0}

// Equal is the null-safe equality used when deciding whether
// SetOutputCardinality marks a slot as changed.
func (c CardinalityEstimate) Equal(o CardinalityEstimate) bool {
	return c.Lower == o.Lower && c.Upper == o.Upper && c.P == o.P
}

func minP(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Add implements cardinality addition: interval bounds add, confidence
// takes the minimum of the two operands.
func (c CardinalityEstimate) Add(o CardinalityEstimate) CardinalityEstimate {
	return CardinalityEstimate{
		Lower: c.Lower + o.Lower,
		Upper: c.Upper + o.Upper,
		P:     minP(c.P, o.P),
	}
}

// Mul implements cardinality multiplication (e.g. a join's fan-out), same
// confidence rule as Add.
func (c CardinalityEstimate) Mul(o CardinalityEstimate) CardinalityEstimate {
	return CardinalityEstimate{
		Lower: c.Lower * o.Lower,
		Upper: c.Upper * o.Upper,
		P:     minP(c.P, o.P),
	}
}

// Scale multiplies both bounds by a constant factor (selectivity estimates,
// iteration-count multiplication), confidence unchanged.
func (c CardinalityEstimate) Scale(factor float64) CardinalityEstimate {
	lower := uint64(float64(c.Lower) * factor)
	upper := uint64(float64(c.Upper) * factor)
	if upper < lower {
		upper = lower
	}
	return CardinalityEstimate{Lower: lower, Upper: upper, P: c.P}
}

// GreaterOrEqual reports whether c's bounds both dominate o's, used by the
// cardinality-monotonicity property test.
func (c CardinalityEstimate) GreaterOrEqual(o CardinalityEstimate) bool {
	return c.Lower >= o.Lower && c.Upper >= o.Upper
}

// ProbabilisticInterval is a single-resource (cpu/ram/disk/net) load
// quantity: a probabilistic interval plus an additive overhead scalar.
type ProbabilisticInterval struct {
	Lower, Upper float64
	P            float64
	Overhead     float64
}

func (pi ProbabilisticInterval) Add(o ProbabilisticInterval) ProbabilisticInterval {
	return ProbabilisticInterval{
		Lower:    pi.Lower + o.Lower,
		Upper:    pi.Upper + o.Upper,
		P:        minP(pi.P, o.P),
		Overhead: pi.Overhead + o.Overhead,
	}
}

// Total returns the interval with overhead folded into both bounds.
func (pi ProbabilisticInterval) Total() (lower, upper float64) {
	return pi.Lower + pi.Overhead, pi.Upper + pi.Overhead
}

// ProbabilisticDoubleInterval is the TimeEstimate/CostEstimate shape: a
// probabilistic interval in some unit (ms for time, money for cost), with
// no separate overhead field (overhead is folded in upstream).
type ProbabilisticDoubleInterval struct {
	Lower, Upper float64
	P            float64
}

func (d ProbabilisticDoubleInterval) Add(o ProbabilisticDoubleInterval) ProbabilisticDoubleInterval {
	return ProbabilisticDoubleInterval{
		Lower: d.Lower + o.Lower,
		Upper: d.Upper + o.Upper,
		P:     minP(d.P, o.P),
	}
}

// Scale multiplies both bounds by a constant, e.g. a loop's iteration count.
func (d ProbabilisticDoubleInterval) Scale(factor float64) ProbabilisticDoubleInterval {
	return ProbabilisticDoubleInterval{Lower: d.Lower * factor, Upper: d.Upper * factor, P: d.P}
}

// MulScalar maps a time interval to cost via a per-unit rate plus a fixed
// addend, the shape TimeToCostConverter uses.
func (d ProbabilisticDoubleInterval) MulScalar(rate, fixed float64) ProbabilisticDoubleInterval {
	return ProbabilisticDoubleInterval{
		Lower: d.Lower*rate + fixed,
		Upper: d.Upper*rate + fixed,
		P:     d.P,
	}
}

// Expectation is the default plan comparator's sort key: the probability-
// weighted midpoint.
func (d ProbabilisticDoubleInterval) Expectation() float64 {
	mid := (d.Lower + d.Upper) / 2
	return mid * d.P
}

// Compare implements the default comparator: lower expectation wins, ties
// broken by lower upper bound.
func Compare(a, b ProbabilisticDoubleInterval) int {
	ea, eb := a.Expectation(), b.Expectation()
	switch {
	case ea < eb:
		return -1
	case ea > eb:
		return 1
	case a.Upper < b.Upper:
		return -1
	case a.Upper > b.Upper:
		return 1
	default:
		return 0
	}
}
