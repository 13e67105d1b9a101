package sim

import (
	"math"

	"nof1sim/domain/core"
	"nof1sim/domain/study"
)

// sampleValue draws a single stochastic value for a variable and clamps it
// into the variable's bounds. The distribution set is closed; an unknown
// kind is a configuration defect and fails the block, never a silent null.
func (s *Simulation) sampleValue(name string, p study.VariableParams) (float64, error) {
	var val float64
	switch p.Distribution {
	case study.DistConstant:
		val = p.Value
	case study.DistNormal:
		val = s.stream.Normal(p.Mean, p.Std)
	case study.DistFlag:
		// One Normal(0, 100) draw against p1*100, as the reference
		// defines the flag draw; keeps the stream advancing per day.
		if s.stream.Normal(0, 100) <= p.P1*100 {
			val = 1
		} else {
			val = 0
		}
	case study.DistPoisson:
		if p.Lambda < 0 {
			return 0, core.NewValidationError(name, "poisson rate must be non-negative")
		}
		if p.Lambda == 0 {
			val = 0
		} else {
			val = s.stream.Poisson(p.Lambda)
		}
	case study.DistUnit:
		low, high, err := unitRange(name, p.Bounds)
		if err != nil {
			return 0, err
		}
		val = float64(low + s.stream.Intn(high-low+1))
	case study.DistLiteral:
		// Pass-through: the configured value, never clipped.
		return p.Value, nil
	default:
		return 0, core.NewUnknownDistributionError(name, string(p.Distribution))
	}
	return p.Bounds.Clip(val), nil
}

// unitRange extracts the inclusive integer range of a discrete uniform from
// the variable's bounds. Inverted or open bounds cannot be sampled.
func unitRange(name string, b *study.Bounds) (int, int, error) {
	if b == nil || b.Low == nil || b.High == nil {
		return 0, 0, core.NewValidationError(name, "unit distribution requires closed boarders")
	}
	low := int(math.Floor(*b.Low))
	high := int(math.Floor(*b.High))
	if low > high {
		return 0, 0, core.ErrInvalidBounds
	}
	return low, high, nil
}

// clipSeries applies per-side bounds element-wise.
func clipSeries(series []float64, b *study.Bounds) {
	if b == nil {
		return
	}
	for i := range series {
		series[i] = b.Clip(series[i])
	}
}
