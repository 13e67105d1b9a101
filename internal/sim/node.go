package sim

import (
	"fmt"
	"sort"

	"nof1sim/domain/study"
)

// simulateNode generates one ordinary variable for the current period. A
// constant variable samples once and repeats. Otherwise each day draws a
// base value, adds every parent's weighted raw value (treatment parents
// contribute their 0/1 indicator, not their effect series) plus lagged
// contributions, then the variable's bounds are applied element-wise.
func (s *Simulation) simulateNode(
	name string,
	parents []string,
	length int,
	cols map[string][]float64,
	params study.VariableParams,
	overTime map[string]study.LagSpec,
) ([]float64, error) {
	result := make([]float64, length)

	if params.Constant {
		value, err := s.sampleValue(name, params)
		if err != nil {
			return nil, err
		}
		for i := range result {
			result[i] = value
		}
		clipSeries(result, params.Bounds)
		return result, nil
	}

	lagParents := make([]string, 0, len(overTime))
	for parent := range overTime {
		lagParents = append(lagParents, parent)
	}
	sort.Strings(lagParents)

	for i := 0; i < length; i++ {
		value, err := s.sampleValue(name, params)
		if err != nil {
			return nil, err
		}
		for _, parent := range parents {
			value += cols[parent][i] * s.params.Weight(parent, name)
		}
		for _, parent := range lagParents {
			series, ok := cols[parent]
			if !ok {
				return nil, fmt.Errorf("over-time parent %s of %s has no generated series", parent, name)
			}
			for lag, effect := range overTime[parent].Effects {
				idx := i - 1 - lag
				if idx >= 0 {
					value += series[idx] * effect
				}
			}
		}
		result[i] = value
	}

	clipSeries(result, params.Bounds)
	return result, nil
}
