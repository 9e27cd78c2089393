// Package exec implements the execution driver (C7): lowering a chosen
// PlanImplementation to tasks and channels, splitting the result into
// per-platform stages, running stages under a push executor template, and
// re-optimizing at a breakpoint by re-entering the cardinality engine and
// enumerator with the open channels of whatever has not yet executed.
package exec

import (
	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/enumerate"
	"github.com/saad749/rheem/internal/plan"
)

// Task is one execution operator bound to its resolved input/output channel
// instances — the execution-time counterpart of a chosen alternative, and
// the unit the driver submits to a backend's Executor.
type Task struct {
	Operator *plan.ExecutionOperator
	Inputs   []*channel.Instance
	Outputs  []*channel.Instance

	done bool
}

// Done reports whether this task has already executed.
func (t *Task) Done() bool { return t.done }

// Flow is a PlanImplementation lowered into tasks and channel instances: one
// Task per bound execution operator (including those inlined from composite
// and loop-head alternatives), one channel.Instance per resolved connection.
type Flow struct {
	Tasks    []*Task
	Channels []*channel.Instance

	byOperator map[plan.OperatorID]*Task
	producer   map[*channel.Instance]*Task
	consumers  map[*channel.Instance][]*Task
}

func newFlow() *Flow {
	return &Flow{
		byOperator: make(map[plan.OperatorID]*Task),
		producer:   make(map[*channel.Instance]*Task),
		consumers:  make(map[*channel.Instance][]*Task),
	}
}

// Lower builds a Flow from a chosen implementation, recursively flattening
// every composite/loop-head's chosen inner implementation so their tasks
// participate in stage splitting and execution exactly like top-level ones.
func Lower(impl *enumerate.PlanImplementation) *Flow {
	f := newFlow()
	f.lowerInto(impl)
	f.wireDanglingOutputs()
	return f
}

func (f *Flow) lowerInto(impl *enumerate.PlanImplementation) {
	for id, op := range impl.Choices {
		if _, seen := f.byOperator[id]; seen {
			continue
		}
		t := &Task{Operator: op, Inputs: make([]*channel.Instance, len(op.Inputs())), Outputs: make([]*channel.Instance, len(op.Outputs()))}
		f.byOperator[id] = t
		f.Tasks = append(f.Tasks, t)
	}
	for key, junction := range impl.Junctions {
		producer, ok := f.byOperator[key.Producer]
		if !ok {
			continue
		}
		consumer, ok := f.byOperator[key.Consumer]
		if !ok {
			continue
		}
		inst := producer.Outputs[key.Output]
		if inst == nil {
			inst = channel.NewInstance(junction.Descriptor)
			producer.Outputs[key.Output] = inst
			f.Channels = append(f.Channels, inst)
			f.producer[inst] = producer
		}
		consumer.Inputs[key.Input] = inst
		f.consumers[inst] = append(f.consumers[inst], consumer)
	}
	for _, inner := range impl.CompositeBest {
		f.lowerInto(inner)
	}
}

// wireDanglingOutputs gives every output slot that never gained an instance
// (a plan sink, or an as-yet-unconsumed frontier output) its own instance so
// Execute always has somewhere to write.
func (f *Flow) wireDanglingOutputs() {
	for _, t := range f.Tasks {
		for i, out := range t.Outputs {
			if out != nil {
				continue
			}
			desc := channel.Descriptor{ID: t.Operator.Platform + "/" + t.Operator.Class(), Platform: t.Operator.Platform}
			if prefs := t.Operator.SupportedOutputChannels(i); len(prefs) > 0 {
				desc = prefs[0]
			}
			inst := channel.NewInstance(desc)
			t.Outputs[i] = inst
			f.Channels = append(f.Channels, inst)
			f.producer[inst] = t
		}
	}
}

func (f *Flow) producerOf(inst *channel.Instance) *Task    { return f.producer[inst] }
func (f *Flow) consumersOf(inst *channel.Instance) []*Task { return f.consumers[inst] }

// TaskFor returns the task bound to a logical operator's ID, if one exists
// in this flow.
func (f *Flow) TaskFor(logicalID plan.OperatorID) (*Task, bool) {
	for _, t := range f.Tasks {
		if t.Operator.Logical != nil && t.Operator.Logical.ID() == logicalID {
			return t, true
		}
	}
	return nil, false
}

// OpenChannels returns every channel whose data has been produced but whose
// consumer task(s) have not all run yet — the frontier a re-optimization
// pass hands back to the enumerator.
func (f *Flow) OpenChannels() []*channel.Instance {
	var open []*channel.Instance
	for _, inst := range f.Channels {
		if !inst.WasProduced() {
			continue
		}
		for _, t := range f.consumersOf(inst) {
			if !t.done {
				open = append(open, inst)
				break
			}
		}
	}
	return open
}

// Complete reports whether every task in the flow has executed.
func (f *Flow) Complete() bool {
	for _, t := range f.Tasks {
		if !t.done {
			return false
		}
	}
	return true
}

// TopoOrder returns every not-yet-done task in an order where a task's
// producers (by channel instance) all precede it, breaking ties by
// insertion order (Kahn's algorithm over the channel-instance DAG).
func (f *Flow) TopoOrder() []*Task {
	indegree := make(map[*Task]int, len(f.Tasks))
	for _, t := range f.Tasks {
		if t.done {
			continue
		}
		n := 0
		for _, in := range t.Inputs {
			if in == nil {
				continue
			}
			if producer := f.producer[in]; producer != nil && !producer.done {
				n++
			}
		}
		indegree[t] = n
	}

	var ready []*Task
	for _, t := range f.Tasks {
		if !t.done && indegree[t] == 0 {
			ready = append(ready, t)
		}
	}

	var order []*Task
	satisfied := make(map[*Task]bool)
	for len(ready) > 0 {
		t := ready[0]
		ready = ready[1:]
		if t.done || satisfied[t] {
			continue
		}
		satisfied[t] = true
		order = append(order, t)
		for _, out := range t.Outputs {
			for _, c := range f.consumers[out] {
				if c.done || satisfied[c] {
					continue
				}
				indegree[c]--
				if indegree[c] == 0 {
					ready = append(ready, c)
				}
			}
		}
	}
	return order
}
