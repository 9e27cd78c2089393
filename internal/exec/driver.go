package exec

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saad749/rheem/internal/cardinality"
	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/config"
	"github.com/saad749/rheem/internal/enumerate"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/optctx"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/internal/rheemerrors"
	"github.com/saad749/rheem/platform"
)

// BreakpointReason names why ExecuteUntilBreakpoint returned control to its
// caller instead of continuing to the next stage.
type BreakpointReason int

const (
	// ReasonDone means every stage in the flow has executed.
	ReasonDone BreakpointReason = iota
	// ReasonFrontier means the Frontier breakpoint fired after a stage.
	ReasonFrontier
	// ReasonCardinalityDrift means a measured cardinality diverged from its
	// estimate beyond the configured ratio.
	ReasonCardinalityDrift
	// ReasonCanceled means the context was canceled between stage
	// submissions; any stage already in flight was let to finish.
	ReasonCanceled
)

// StageResult records what one executed stage reported.
type StageResult struct {
	Stage    *Stage
	Partials []platform.PartialExecution
}

// Report is ExecuteUntilBreakpoint's return value: every stage executed
// during the call, why it stopped, and (for a breakpoint other than
// ReasonDone) the open channels a caller re-entering the enumerator needs to
// wire new stages onto.
type Report struct {
	Reason        BreakpointReason
	Stages        []StageResult
	OpenChannels  []*channel.Instance
	DriftOperator plan.OperatorID
}

// Driver executes a Flow incrementally: one stage at a time, checking for
// cancellation and breakpoints between submissions, following the push
// executor template (submit a task, await completion, receive its outputs
// and partial execution).
type Driver struct {
	Enumerator  *enumerate.Enumerator
	Cardinality *cardinality.Engine
	Arena       *optctx.Arena
	Config      *config.Configuration
	Platforms   map[string]platform.Executor
	Breakpoints Breakpoints
}

// ExecuteUntilBreakpoint runs flow's ready stages in topological order until
// either the flow completes, a configured breakpoint fires, or ctx is
// canceled. Tasks already in flight within a stage are always let to
// finish; cancellation is only ever observed between stage submissions.
func (d *Driver) ExecuteUntilBreakpoint(ctx context.Context, flow *Flow) (*Report, error) {
	report := &Report{Reason: ReasonDone}
	for {
		order := flow.TopoOrder()
		if len(order) == 0 {
			break
		}
		stages := Split(order)
		stage := stages[0]

		if err := ctx.Err(); err != nil {
			report.Reason = ReasonCanceled
			report.OpenChannels = flow.OpenChannels()
			return report, nil
		}

		sr, driftOp, err := d.runStage(ctx, stage)
		report.Stages = append(report.Stages, sr)
		if err != nil {
			return report, rheemerrors.Mark(rheemerrors.BackendExecutionError, err)
		}

		if driftOp != 0 {
			report.Reason = ReasonCardinalityDrift
			report.DriftOperator = driftOp
			report.OpenChannels = flow.OpenChannels()
			return report, nil
		}
		if d.Breakpoints.Frontier && !flow.Complete() {
			report.Reason = ReasonFrontier
			report.OpenChannels = flow.OpenChannels()
			return report, nil
		}
	}
	return report, nil
}

// runStage executes every task of stage concurrently via one goroutine per
// task, joined at the stage boundary — the granularity at which the driver
// is concurrent; the optimizer itself (C1-C6) stays single-threaded.
func (d *Driver) runStage(ctx context.Context, stage *Stage) (StageResult, plan.OperatorID, error) {
	executor, ok := d.Platforms[stage.Platform]
	if !ok {
		return StageResult{Stage: stage}, 0, rheemerrors.Newf(rheemerrors.BackendExecutionError,
			"no executor registered for platform %q", stage.Platform)
	}

	result := StageResult{Stage: stage}
	var mu sync.Mutex
	var driftOp plan.OperatorID

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range stage.Tasks {
		t := t
		g.Go(func() error {
			outputs, partial, err := executor.Execute(gctx, t.Operator, t.Inputs)
			if err != nil {
				return rheemerrors.Newf(rheemerrors.BackendExecutionError,
					"task %d (%s/%s): %v", t.Operator.ID(), t.Operator.Platform, t.Operator.Class(), err)
			}
			for i, out := range outputs {
				if i < len(t.Outputs) && out != nil {
					t.Outputs[i] = out
				}
			}
			for _, out := range t.Outputs {
				out.MarkProduced()
			}

			mu.Lock()
			t.done = true
			if partial != nil {
				result.Partials = append(result.Partials, *partial)
			}
			mu.Unlock()

			if op := d.checkDrift(t); op != 0 {
				mu.Lock()
				driftOp = op
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, 0, err
	}
	return result, driftOp, nil
}

// checkDrift compares t's freshly measured output cardinalities against its
// arena estimate, reporting t's operator ID if any output exceeds the
// configured drift ratio.
func (d *Driver) checkDrift(t *Task) plan.OperatorID {
	if d.Breakpoints.NoIteration || d.Arena == nil {
		return 0
	}
	for i, out := range t.Outputs {
		measured, ok := out.GetMeasuredCardinality()
		if !ok {
			continue
		}
		opCtx, ok := d.Arena.Lookup(t.Operator.ID())
		if !ok || i >= len(opCtx.OutputCardinalities) {
			continue
		}
		est := opCtx.OutputCardinalities[i]
		if d.Breakpoints.driftExceeds(measured, est.Lower, est.Upper) {
			return t.Operator.ID()
		}
	}
	return 0
}

// Reoptimize injects every completed task's measured output cardinalities
// into the cardinality engine, re-enumerates p, and expands flow with the
// newly chosen implementation: completed tasks are retained verbatim: any
// newly chosen task whose logical input was already produced is rewired
// onto that produced instance instead of re-running it.
func (d *Driver) Reoptimize(ctx context.Context, flow *Flow, p *plan.Plan) (*Flow, error) {
	for _, t := range flow.Tasks {
		if !t.done || t.Operator.Logical == nil {
			continue
		}
		for i, out := range t.Outputs {
			measured, ok := out.GetMeasuredCardinality()
			if !ok {
				continue
			}
			if err := d.Cardinality.InjectMeasured(ctx, t.Operator.Logical, i, p, measured); err != nil {
				return nil, err
			}
		}
	}

	enumeration, err := d.Enumerator.Enumerate(ctx, p)
	if err != nil {
		return nil, err
	}
	best := enumeration.Best(interval.Compare)
	if best == nil {
		return nil, rheemerrors.Newf(rheemerrors.NoViablePlan, "re-enumeration after breakpoint produced no implementation")
	}

	next := Lower(best)

	done := make(map[plan.OperatorID]*Task)
	var merged []*Task
	for _, t := range flow.Tasks {
		if t.done {
			done[t.Operator.Logical.ID()] = t
			merged = append(merged, t)
		}
	}
	for _, t := range next.Tasks {
		logical := t.Operator.Logical
		if logical == nil {
			merged = append(merged, t)
			continue
		}
		if _, already := done[logical.ID()]; already {
			continue
		}
		for i, in := range logical.Inputs() {
			incoming := in.Incoming()
			if incoming == nil {
				continue
			}
			if prior, ok := done[incoming.Owner.ID()]; ok && incoming.Index < len(prior.Outputs) {
				t.Inputs[i] = prior.Outputs[incoming.Index]
			}
		}
		merged = append(merged, t)
	}
	next.Tasks = merged
	return next, nil
}

// wallclock is a small helper reporting the time elapsed since start; no
// code in this package calls it.
func wallclock(start time.Time) time.Duration { return time.Since(start) }
