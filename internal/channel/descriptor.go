// Package channel models the typed conduits between execution operators
// and implements the channel-conversion search that bridges producers and
// consumers bound to different backends.
package channel

// Descriptor identifies a channel type and its capabilities. Two
// descriptors with the same ID are considered the same vertex by the
// conversion graph even if instantiated separately, so platform adapters
// should use a package-level var for each descriptor they expose.
type Descriptor struct {
	ID                string
	Platform          string
	Reusable          bool // can be read by more than one consumer (broadcast-capable)
	Internal          bool // never crosses process/backend boundaries
	SupportsBroadcast bool
}

func (d Descriptor) String() string { return d.ID }

// Instance is the runtime materialization of a Descriptor. The driver (C7) owns instances; the cardinality
// engine (C3) and learner (C8) only read measured cardinality off them.
type Instance struct {
	Descriptor Descriptor

	produced bool
	measured *uint64

	instrument bool
	lineage    []*Instance
}

// NewInstance creates an instance for descriptor d with no predecessors.
func NewInstance(d Descriptor) *Instance {
	return &Instance{Descriptor: d}
}

// WasProduced reports whether the upstream task has materialized this
// channel's data.
func (i *Instance) WasProduced() bool { return i.produced }

// MarkProduced records that the upstream task completed;
// this must happen strictly before any consumer starts.
func (i *Instance) MarkProduced() { i.produced = true }

// GetMeasuredCardinality returns the measured row/element count, if the
// instrumentation hook recorded one.
func (i *Instance) GetMeasuredCardinality() (uint64, bool) {
	if i.measured == nil {
		return 0, false
	}
	return *i.measured, true
}

// SetMeasuredCardinality records a cardinality observed by instrumentation.
func (i *Instance) SetMeasuredCardinality(m uint64) {
	v := m
	i.measured = &v
}

// IsMarkedForInstrumentation reports whether the driver should record a
// measured cardinality when this channel is produced.
func (i *Instance) IsMarkedForInstrumentation() bool { return i.instrument }

// MarkForInstrumentation flags this instance so the driver records a
// measured cardinality when it is produced.
func (i *Instance) MarkForInstrumentation() { i.instrument = true }

// GetLazyChannelLineage returns the DAG of predecessor instances that have
// not yet executed; "lazy" because it is only walked when the driver needs
// to decide what is still open at a breakpoint.
func (i *Instance) GetLazyChannelLineage() []*Instance {
	var open []*Instance
	for _, p := range i.lineage {
		if !p.WasProduced() {
			open = append(open, p)
		}
	}
	return open
}

// AddLineage records a predecessor instance.
func (i *Instance) AddLineage(pred *Instance) {
	i.lineage = append(i.lineage, pred)
}
