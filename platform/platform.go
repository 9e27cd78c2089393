// Package platform defines the backend contract: what the core (C1-C8)
// requires from a platform adapter, and nothing more. It is a top-level
// package rather than internal/ because it is the extension surface
// third-party backends implement against; platform/local is this repo's own
// reference implementation of it.
package platform

import (
	"context"

	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/plan"
)

// OperatorExecution is one operator's contribution to a PartialExecution
// report: enough for the execution log (C7 writes it) and the learner (C8
// reads it back) to reconstruct what ran.
type OperatorExecution struct {
	OperatorClass string
	InputCards    []uint64
	OutputCards   []uint64
	// InputConfidence/OutputConfidence carry the correctness probability the
	// backend attaches to each measured cardinality; the learner's load-and-
	// filter step drops records whose confidence falls below a configured
	// minimum.
	InputConfidence  []float64
	OutputConfidence []float64
}

// PartialExecution is what one Executor.Execute call reports back to the
// driver: wall-clock duration, the platforms it touched, and the per-
// operator bookkeeping the execution log persists.
type PartialExecution struct {
	DurationMs        float64
	InvolvedPlatforms []string
	Operators         []OperatorExecution
}

// Executor runs ExecutionOperators belonging to a single platform. A
// backend implements this once; the driver calls it once per Task,
// following the "push executor template": submit, await completion,
// receive (outputs, partial execution).
type Executor interface {
	// Execute runs op over inputs and returns freshly produced channel
	// instances for each of op's outputs, plus an optional partial-execution
	// report (nil when the task is pure bookkeeping and contributes nothing
	// measurable, e.g. a zero-cost pass-through).
	Execute(ctx context.Context, op *plan.ExecutionOperator, inputs []*channel.Instance) ([]*channel.Instance, *PartialExecution, error)
	// Dispose releases resources the executor holds. Idempotent.
	Dispose() error
}

// Platform is a backend's identity plus a factory for its Executor. The
// core never reflects into a plugin directory to discover platforms: a
// Platform value is constructed and handed to whatever registers active
// platforms at startup (the CLI, a test harness).
type Platform struct {
	Name        string
	DisplayName string
	NewExecutor func() Executor
}
