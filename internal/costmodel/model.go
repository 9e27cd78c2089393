// Package costmodel ties the cost primitives in package cost to the plan
// graph and the OptimizationContext arena: for each execution operator it
// resolves a layered load-profile estimator, converts the resulting
// LoadProfile to a time estimate via the operator's platform converter, and
// the time estimate to a cost estimate, writing all three into the
// operator's Context.
package costmodel

import (
	"context"

	"github.com/saad749/rheem/internal/cost"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/optctx"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/internal/rlog"
)

// PlatformProfile bundles the converters a single backend platform
// contributes to the cost model.
type PlatformProfile struct {
	ToTime cost.LoadProfileToTimeConverter
	ToCost cost.TimeToCostConverter
}

// Model resolves load-profile estimators and platform converters for every
// execution operator in a plan and computes its time/cost estimate.
type Model struct {
	// Estimators is keyed by "<platform>/<operatorClass>"; see EstimatorKey.
	Estimators map[string]cost.LayeredEstimator
	// Platforms is keyed by platform name.
	Platforms map[string]PlatformProfile
	// Comparator orders two cost estimates; interval.Compare (expectation,
	// tiebreak lower upper bound) if nil.
	Comparator func(a, b interval.ProbabilisticDoubleInterval) int

	warner *rlog.OnceWarner
}

// NewModel returns an empty model; callers populate Estimators/Platforms
// directly as plain maps — an explicit registry passed at construction
// rather than a global.
func NewModel() *Model {
	return &Model{
		Estimators: make(map[string]cost.LayeredEstimator),
		Platforms:  make(map[string]PlatformProfile),
		warner:     rlog.NewOnceWarner(),
	}
}

// EstimatorKey builds the map key Model.Estimators uses.
func EstimatorKey(platform, operatorClass string) string {
	return platform + "/" + operatorClass
}

func (m *Model) compare(a, b interval.ProbabilisticDoubleInterval) int {
	if m.Comparator != nil {
		return m.Comparator(a, b)
	}
	return interval.Compare(a, b)
}

// Compute fills in ctx.LoadProfile, ctx.TimeEstimate and ctx.CostEstimate
// for a single execution operator, from its already-pushed cardinalities.
func (m *Model) Compute(goCtx context.Context, op *plan.ExecutionOperator, opCtx *optctx.Context) {
	est := m.resolveEstimator(op)
	if est == nil {
		m.warner.Warn(goCtx, "noestimator:"+op.Platform+"/"+op.Class(),
			"no load-profile estimator for %s/%s; using zero profile", op.Platform, op.Class())
		opCtx.LoadProfile = cost.LoadProfile{}
	} else {
		opCtx.LoadProfile = est(opCtx.InputCardinalities, opCtx.OutputCardinalities)
	}

	conv, ok := m.Platforms[op.Platform]
	if !ok {
		m.warner.Warn(goCtx, "noconverter:"+op.Platform,
			"no platform converter registered for %s; using default linear converter", op.Platform)
		conv = PlatformProfile{ToTime: cost.NewDefaultConverter(1, 0), ToCost: cost.TimeToCostConverter{RatePerMs: 1}}
	}

	time := conv.ToTime.Convert(opCtx.LoadProfile)
	opCtx.SetTimeEstimate(time)
	opCtx.CostEstimate = conv.ToCost.Convert(time, 1)
}

func (m *Model) resolveEstimator(op *plan.ExecutionOperator) cost.Estimator {
	layered, ok := m.Estimators[EstimatorKey(op.Platform, op.Class())]
	if !ok {
		return nil
	}
	return layered.Resolve()
}

// ComputeAll runs Compute for every execution operator reachable in p,
// after a cardinality push has populated their contexts.
func (m *Model) ComputeAll(goCtx context.Context, arena *optctx.Arena, p *plan.Plan) {
	for _, op := range p.Operators() {
		exec, ok := op.(*plan.ExecutionOperator)
		if !ok {
			continue
		}
		opCtx := arena.Get(op)
		m.Compute(goCtx, exec, opCtx)
	}
}

// CombineSequential adds two independent operators' time/cost estimates:
// intervals sum and confidence takes the minimum of the two operands,
// already implemented by ProbabilisticDoubleInterval.Add.
func CombineSequential(a, b interval.ProbabilisticDoubleInterval) interval.ProbabilisticDoubleInterval {
	return a.Add(b)
}
