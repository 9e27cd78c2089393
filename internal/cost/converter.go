package cost

import "github.com/saad749/rheem/internal/interval"

// MinTimeMs is the floor applied to a converted time estimate so a
// degenerate all-zero load profile never yields a literal zero-time
// operator.
const MinTimeMs = 0.01

// LoadToTimeConverter turns a single resource's load into a time
// contribution. The default is linear: load*rate + constant.
type LoadToTimeConverter func(load interval.ProbabilisticInterval) interval.ProbabilisticDoubleInterval

// LinearConverter builds the default LoadToTimeConverter.
func LinearConverter(rate, constant float64) LoadToTimeConverter {
	return func(load interval.ProbabilisticInterval) interval.ProbabilisticDoubleInterval {
		lower, upper := load.Total()
		return interval.ProbabilisticDoubleInterval{
			Lower: lower*rate + constant,
			Upper: upper*rate + constant,
			P:     load.P,
		}
	}
}

// Combiner reduces four already-time-converted resource contributions to a
// single time estimate. The default combiner is cpu+disk+net.
type Combiner func(cpu, ram, disk, net interval.ProbabilisticDoubleInterval) interval.ProbabilisticDoubleInterval

// DefaultCombiner implements the default cpu+disk+net combination, with the
// MinTimeMs floor applied.
func DefaultCombiner(cpu, ram, disk, net interval.ProbabilisticDoubleInterval) interval.ProbabilisticDoubleInterval {
	sum := cpu.Add(disk).Add(net)
	if sum.Lower < MinTimeMs {
		sum.Lower = MinTimeMs
	}
	if sum.Upper < MinTimeMs {
		sum.Upper = MinTimeMs
	}
	return sum
}

// LoadProfileToTimeConverter converts a LoadProfile into a TimeEstimate by
// running each resource through a (possibly per-resource distinct)
// LoadToTimeConverter and reducing with a Combiner.
type LoadProfileToTimeConverter struct {
	CPU, RAM, Disk, Net LoadToTimeConverter
	Combine             Combiner
}

// NewDefaultConverter builds a converter where every resource uses the
// same linear rate/constant and the default combiner is used.
func NewDefaultConverter(rate, constant float64) LoadProfileToTimeConverter {
	c := LinearConverter(rate, constant)
	return LoadProfileToTimeConverter{CPU: c, RAM: c, Disk: c, Net: c, Combine: DefaultCombiner}
}

// Convert turns a LoadProfile into a TimeEstimate.
func (c LoadProfileToTimeConverter) Convert(lp LoadProfile) interval.ProbabilisticDoubleInterval {
	combine := c.Combine
	if combine == nil {
		combine = DefaultCombiner
	}
	cpu := convertOrZero(c.CPU, lp.CPU)
	ram := convertOrZero(c.RAM, lp.RAM)
	disk := convertOrZero(c.Disk, lp.Disk)
	net := convertOrZero(c.Net, lp.Net)
	return combine(cpu, ram, disk, net)
}

func convertOrZero(conv LoadToTimeConverter, load interval.ProbabilisticInterval) interval.ProbabilisticDoubleInterval {
	if conv == nil {
		return interval.ProbabilisticDoubleInterval{P: 1.0}
	}
	return conv(load)
}

// TimeToCostConverter maps a time interval to monetary cost via a per-ms
// rate plus a fixed cost per involved platform.
type TimeToCostConverter struct {
	RatePerMs float64
	FixCost   float64
}

// Convert turns a time estimate into a cost estimate. numPlatforms scales
// the fixed cost, since each involved platform adds its own fixed cost.
func (c TimeToCostConverter) Convert(t interval.ProbabilisticDoubleInterval, numPlatforms int) interval.ProbabilisticDoubleInterval {
	return t.MulScalar(c.RatePerMs, c.FixCost*float64(numPlatforms))
}
