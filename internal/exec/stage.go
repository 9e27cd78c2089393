package exec

// Stage is a contiguous run of tasks the driver submits and waits on
// together.
type Stage struct {
	ID       int
	Platform string
	Tasks    []*Task
}

// Split partitions order (a topologically sorted, not-yet-done task list)
// into stages by the default stage-splitting criterion: one stage per
// contiguous, same-platform region in topological order. Because order is
// topological, a producer/consumer pair spanning platforms is never placed
// in the same contiguous run, so it always splits — there is no separate
// cross-platform check to perform beyond the platform-equality test below.
func Split(order []*Task) []*Stage {
	var stages []*Stage
	var cur *Stage
	for _, t := range order {
		if cur == nil || cur.Platform != t.Operator.Platform {
			cur = &Stage{ID: len(stages), Platform: t.Operator.Platform}
			stages = append(stages, cur)
		}
		cur.Tasks = append(cur.Tasks, t)
	}
	return stages
}
