package exec

// Breakpoints configures where the driver pauses a running job to consider
// re-optimization. The frontier of not-yet-executed stages is always an
// implicit breakpoint candidate (ExecuteUntilBreakpoint considers it after
// every stage); Frontier controls whether that candidate actually stops the job,
// versus the driver continuing straight through to the next stage.
type Breakpoints struct {
	// Frontier, when true, returns control to the caller after every stage
	// even when no cardinality has drifted, so a caller can always choose to
	// re-enumerate before continuing.
	Frontier bool
	// CardinalityDrift pauses when a measured cardinality differs from its
	// estimate by more than this ratio (e.g. 0.5 means "off by more than
	// 50%"); zero or negative disables the check.
	CardinalityDrift float64
	// NoIteration turns the cardinality-drift breakpoint off for every task
	// of the flow. It does not tell tasks inside a loop body apart from any
	// other task: with it set, no measurement triggers a drift breakpoint.
	NoIteration bool
}

// driftExceeds reports whether a measured cardinality differs from the
// [estLower, estUpper] estimate by more than the configured ratio.
func (b Breakpoints) driftExceeds(measured uint64, estLower, estUpper uint64) bool {
	if b.CardinalityDrift <= 0 {
		return false
	}
	mid := (estLower + estUpper) / 2
	if mid == 0 {
		return measured != 0
	}
	diff := float64(measured) - float64(mid)
	if diff < 0 {
		diff = -diff
	}
	return diff/float64(mid) > b.CardinalityDrift
}
