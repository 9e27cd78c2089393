package local

import (
	"context"
	"time"

	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/internal/rheemerrors"
	"github.com/saad749/rheem/platform"
)

// Executor runs source/map/filter/reduceBy/groupBy/join/collect operators
// directly in process over plain Go slices of interface{}. It is the
// reference implementation of the platform.Executor contract, built so C1-
// C8 are exercisable end to end without any external system.
type Executor struct {
	Behaviors *Behaviors

	data map[*channel.Instance][]interface{}
}

// NewExecutor builds an Executor backed by b (or an empty Behaviors if nil).
func NewExecutor(b *Behaviors) *Executor {
	if b == nil {
		b = NewBehaviors()
	}
	return &Executor{Behaviors: b, data: make(map[*channel.Instance][]interface{})}
}

// NewPlatform returns the platform.Platform descriptor for the local
// backend, producing a fresh Executor per call.
func NewPlatform(b *Behaviors) platform.Platform {
	return platform.Platform{
		Name:        Platform,
		DisplayName: "Local in-process engine",
		NewExecutor: func() platform.Executor { return NewExecutor(b) },
	}
}

// Collected returns the materialized rows behind inst, for a caller (the
// demo command, a test) reading a sink's final output after the job runs.
func (e *Executor) Collected(inst *channel.Instance) []interface{} {
	return e.data[inst]
}

// Execute implements platform.Executor.
func (e *Executor) Execute(ctx context.Context, op *plan.ExecutionOperator, inputs []*channel.Instance) ([]*channel.Instance, *platform.PartialExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	logicalID := op.ID()
	if op.Logical != nil {
		logicalID = op.Logical.ID()
	}

	var out []interface{}
	var err error
	switch op.Class() {
	case "source":
		provider, ok := e.Behaviors.Sources[logicalID]
		if !ok {
			return nil, nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no source provider for operator %d", logicalID)
		}
		out = provider()
	case "map":
		fn, ok := e.Behaviors.Maps[logicalID]
		if !ok {
			return nil, nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no map function for operator %d", logicalID)
		}
		in := e.inputData(inputs, 0)
		out = make([]interface{}, len(in))
		for i, v := range in {
			out[i] = fn(v)
		}
	case "filter":
		fn, ok := e.Behaviors.Filters[logicalID]
		if !ok {
			return nil, nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no filter predicate for operator %d", logicalID)
		}
		for _, v := range e.inputData(inputs, 0) {
			if fn(v) {
				out = append(out, v)
			}
		}
	case "reduceBy":
		out, err = e.reduceBy(logicalID, e.inputData(inputs, 0))
	case "groupBy":
		out, err = e.groupBy(logicalID, e.inputData(inputs, 0))
	case "join":
		out, err = e.join(logicalID, e.inputData(inputs, 0), e.inputData(inputs, 1))
	case "collect":
		out = e.inputData(inputs, 0)
	default:
		return nil, nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: unsupported operator class %q", op.Class())
	}
	if err != nil {
		return nil, nil, err
	}

	outputs := make([]*channel.Instance, len(op.Outputs()))
	for i := range outputs {
		desc := StreamDescriptor
		if prefs := op.SupportedOutputChannels(i); len(prefs) > 0 {
			desc = prefs[0]
		}
		inst := channel.NewInstance(desc)
		e.data[inst] = out
		inst.SetMeasuredCardinality(uint64(len(out)))
		outputs[i] = inst
	}

	partial := &platform.PartialExecution{
		DurationMs:        float64(time.Since(start).Microseconds()) / 1000.0,
		InvolvedPlatforms: []string{Platform},
		Operators: []platform.OperatorExecution{{
			OperatorClass:    op.Class(),
			InputCards:       cardinalities(inputs, e.data),
			OutputCards:      []uint64{uint64(len(out))},
			InputConfidence:  onesLike(inputs),
			OutputConfidence: []float64{1.0},
		}},
	}
	return outputs, partial, nil
}

// Dispose implements platform.Executor; the local backend holds no
// disposable resources.
func (e *Executor) Dispose() error { return nil }

func (e *Executor) inputData(inputs []*channel.Instance, i int) []interface{} {
	if i >= len(inputs) || inputs[i] == nil {
		return nil
	}
	return e.data[inputs[i]]
}

func (e *Executor) reduceBy(id plan.OperatorID, in []interface{}) ([]interface{}, error) {
	keyFn, ok := e.Behaviors.ReduceKeys[id]
	if !ok {
		return nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no reduceBy key function for operator %d", id)
	}
	combine, ok := e.Behaviors.Reduces[id]
	if !ok {
		return nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no reduceBy combine function for operator %d", id)
	}
	order, groups := partition(in, keyFn)
	out := make([]interface{}, 0, len(order))
	for _, k := range order {
		vals := groups[k]
		acc := vals[0]
		for _, v := range vals[1:] {
			acc = combine(acc, v)
		}
		out = append(out, acc)
	}
	return out, nil
}

func (e *Executor) groupBy(id plan.OperatorID, in []interface{}) ([]interface{}, error) {
	keyFn, ok := e.Behaviors.GroupKeys[id]
	if !ok {
		return nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no groupBy key function for operator %d", id)
	}
	order, groups := partition(in, keyFn)
	out := make([]interface{}, 0, len(order))
	for _, k := range order {
		out = append(out, Group{Key: k, Values: groups[k]})
	}
	return out, nil
}

// partition groups in by keyFn(v), preserving first-seen key order so
// downstream output is deterministic.
func partition(in []interface{}, keyFn func(interface{}) interface{}) ([]interface{}, map[interface{}][]interface{}) {
	var order []interface{}
	groups := make(map[interface{}][]interface{})
	for _, v := range in {
		k := keyFn(v)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v)
	}
	return order, groups
}

func (e *Executor) join(id plan.OperatorID, left, right []interface{}) ([]interface{}, error) {
	leftKey, ok := e.Behaviors.JoinLeftKeys[id]
	if !ok {
		return nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no join left-key function for operator %d", id)
	}
	rightKey, ok := e.Behaviors.JoinRightKeys[id]
	if !ok {
		return nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no join right-key function for operator %d", id)
	}
	combine, ok := e.Behaviors.Join[id]
	if !ok {
		return nil, rheemerrors.Newf(rheemerrors.BackendExecutionError, "local: no join combine function for operator %d", id)
	}
	index := make(map[interface{}][]interface{}, len(right))
	for _, r := range right {
		k := rightKey(r)
		index[k] = append(index[k], r)
	}
	var out []interface{}
	for _, l := range left {
		k := leftKey(l)
		for _, r := range index[k] {
			out = append(out, combine(l, r))
		}
	}
	return out, nil
}

func cardinalities(inputs []*channel.Instance, data map[*channel.Instance][]interface{}) []uint64 {
	out := make([]uint64, 0, len(inputs))
	for _, in := range inputs {
		if in == nil {
			out = append(out, 0)
			continue
		}
		out = append(out, uint64(len(data[in])))
	}
	return out
}

func onesLike(inputs []*channel.Instance) []float64 {
	out := make([]float64, len(inputs))
	for i := range out {
		out[i] = 1.0
	}
	return out
}
