package sim

import (
	"fmt"
	"math"
	"sort"

	"nof1sim/domain/record"
	"nof1sim/domain/study"
)

// baselineDrift generates the outcome's bounded random walk. Each day adds
// Normal(mu, sigma) to the previous value (x0 on the first day) and clips
// into the outcome bounds.
func (s *Simulation) baselineDrift(x0 float64, length int, mu, sigma float64, bounds study.Bounds) []float64 {
	drift := make([]float64, length)
	prev := x0
	for day := 0; day < length; day++ {
		prev = bounds.Clip(prev + s.stream.Normal(mu, sigma))
		drift[day] = prev
	}
	return drift
}

// simulateOutcome produces the baseline drift, the clipped underlying state
// and the noisy, rounded, clipped observation series for the current period.
// A treatment parent contributes its realized effect series; any other
// parent contributes its raw series scaled by the edge weight. Lagged
// contributions read the parent value at t-1-lag, zero when that index
// precedes the period.
func (s *Simulation) simulateOutcome(
	length int,
	parents []string,
	cols map[string][]float64,
	overTime map[string]study.LagSpec,
) (drift, state, observation []float64, err error) {
	out := s.params.Outcome

	drift = s.baselineDrift(out.X0, length, out.MuB, out.SigmaB, out.Bounds)

	state = append([]float64(nil), drift...)
	for _, parent := range parents {
		if s.params.IsExposure(parent) {
			effects := cols[record.EffectColumn(parent)]
			for i := range state {
				state[i] += effects[i]
			}
			continue
		}
		weight := s.params.Weight(parent, out.Name)
		values := cols[parent]
		for i := range state {
			state[i] += values[i] * weight
		}
	}

	if len(overTime) > 0 {
		lagParents := make([]string, 0, len(overTime))
		for parent := range overTime {
			lagParents = append(lagParents, parent)
		}
		sort.Strings(lagParents)
		for _, parent := range lagParents {
			values, ok := cols[parent]
			if !ok {
				return nil, nil, nil, fmt.Errorf("over-time parent %s has no generated series", parent)
			}
			addLagged(state, values, overTime[parent].Effects)
		}
	}

	clipSeries(state, &out.Bounds)

	observation = make([]float64, length)
	for i := range state {
		observation[i] = out.Bounds.Clip(math.Round(state[i] + s.stream.Normal(0, out.Sigma0)))
	}
	return drift, state, observation, nil
}

// addLagged accumulates per-lag weighted parent values into target.
// effects[lag] weighs the parent value at t-1-lag.
func addLagged(target, parent []float64, effects []float64) {
	for i := range target {
		for lag, effect := range effects {
			idx := i - 1 - lag
			if idx >= 0 {
				target[i] += parent[idx] * effect
			}
		}
	}
}
