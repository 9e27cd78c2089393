// Package cost implements the cost model: load profiles, time estimates,
// cost intervals and the platform converters that turn one into the next.
package cost

import "github.com/saad749/rheem/internal/interval"

// LoadProfile is the per-resource work estimate: a probabilistic interval
// per resource, each with its own additive overhead.
type LoadProfile struct {
	CPU, RAM, Disk, Net interval.ProbabilisticInterval
}

// Add combines two load profiles resource-wise, used when concatenating
// sequential operators' profiles.
func (lp LoadProfile) Add(o LoadProfile) LoadProfile {
	return LoadProfile{
		CPU:  lp.CPU.Add(o.CPU),
		RAM:  lp.RAM.Add(o.RAM),
		Disk: lp.Disk.Add(o.Disk),
		Net:  lp.Net.Add(o.Net),
	}
}

// Estimator computes a LoadProfile from an operator's input/output
// cardinalities. Built-in, platform-default and
// user-override estimators all share this shape; later layers override
// earlier ones.
type Estimator func(inputs, outputs []interval.CardinalityEstimate) LoadProfile

// LayeredEstimator composes three estimator layers, later ones winning
// when present.
type LayeredEstimator struct {
	Builtin  Estimator
	Platform Estimator
	Override Estimator
}

// Resolve returns the effective estimator: override if set, else platform,
// else builtin, else nil (caller falls back further, e.g. to a zero
// profile with a one-time warning).
func (l LayeredEstimator) Resolve() Estimator {
	if l.Override != nil {
		return l.Override
	}
	if l.Platform != nil {
		return l.Platform
	}
	return l.Builtin
}
