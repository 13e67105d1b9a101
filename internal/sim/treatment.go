package sim

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"nof1sim/domain/core"
	"nof1sim/domain/study"
)

// EffectSeries evaluates the pharmacodynamic recurrence over a day-level
// 0/1 exposure sequence. State starts at zero; while treated the effect
// approaches treatmentEffect at rate 1/tau, while untreated it decays toward
// zero at rate 1/gamma:
//
//	x[t] = x[t-1] + ((E - x[t-1]) / tau) * treated[t] - (x[t-1] / gamma) * (1 - treated[t])
func EffectSeries(treated []float64, gamma, tau, treatmentEffect float64) ([]float64, error) {
	if tau == 0 {
		return nil, fmt.Errorf("%w: tau", core.ErrDivisionByZero)
	}
	if gamma == 0 {
		return nil, fmt.Errorf("%w: gamma", core.ErrDivisionByZero)
	}

	effect := make([]float64, len(treated))
	prev := 0.0
	for t := range treated {
		next := prev + ((treatmentEffect-prev)/tau)*treated[t] - (prev/gamma)*(1-treated[t])
		effect[t] = next
		prev = next
	}
	return effect, nil
}

// standardize scales a series to zero mean and unit (population) variance.
// A constant series has no variance to standardize and contributes nothing.
func standardize(series []float64) ([]float64, error) {
	mean, err := stats.Mean(stats.Float64Data(series))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrArithmetic, err)
	}
	std, err := stats.StandardDeviation(stats.Float64Data(series))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrArithmetic, err)
	}

	out := make([]float64, len(series))
	if std == 0 {
		return out, nil
	}
	for i, v := range series {
		out[i] = (v - mean) / std
	}
	return out, nil
}

// simulateTreatment generates one exposure for the newest period. The
// crossover design is expanded into a day-level indicator over the full
// block history, perturbed by the standardized, weighted series of each
// causal parent (aligned on the current period, the only span for which
// parent data exists), re-binarized at 0.5 and fed through the effect
// recurrence. The recurrence runs over the full history so carry-over state
// survives block boundaries, but only the newest period's slices are
// returned.
func (s *Simulation) simulateTreatment(
	design []string,
	daysPerPeriod int,
	name string,
	parents []string,
	params study.ExposureParams,
	cols map[string][]float64,
) (indicator, effect []float64, err error) {
	treated := make([]float64, 0, len(design)*daysPerPeriod)
	for _, label := range design {
		value := 0.0
		if label == name {
			value = 1.0
		}
		for day := 0; day < daysPerPeriod; day++ {
			treated = append(treated, value)
		}
	}

	offset := len(treated) - daysPerPeriod
	for _, parent := range parents {
		normalized, err := standardize(cols[parent])
		if err != nil {
			return nil, nil, fmt.Errorf("standardize %s for %s: %w", parent, name, err)
		}
		weight := s.params.Weight(parent, name)
		for i, v := range normalized {
			treated[offset+i] += v * weight
		}
	}

	for i, v := range treated {
		if v >= 0.5 {
			treated[i] = 1
		} else {
			treated[i] = 0
		}
	}

	full, err := EffectSeries(treated, params.Gamma, params.Tau, params.TreatmentEffect)
	if err != nil {
		return nil, nil, fmt.Errorf("exposure %s: %w", name, err)
	}
	return treated[offset:], full[offset:], nil
}
