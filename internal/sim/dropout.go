package sim

import (
	"fmt"
	"math"

	"nof1sim/domain/core"
	"nof1sim/domain/record"
	"nof1sim/domain/study"
)

// ApplyDropout produces a missingness-afflicted copy of a record. Two
// mechanisms compose:
//
//   - Vacation: a uniformly placed contiguous span of rows loses all
//     non-identifier data, simulating a reporting gap.
//   - Fractional dropout: of the rows that survive the vacation, only
//     round(fraction*n) keep their non-identifier data, sampled without
//     replacement with weight 1/(position+1) so early rows are favored.
//
// Identifier columns (patient id, date, block, day, treatment), exposure
// indicator columns and any caller-excluded columns are kept for every row.
// The source record is not mutated; row order is preserved.
func (s *Simulation) ApplyDropout(t *record.Table, spec study.DropOutSpec) (*record.Table, error) {
	if spec.Fraction < 0 || spec.Fraction > 1 {
		return nil, core.NewSamplingError(fmt.Sprintf("fraction %v outside [0, 1]", spec.Fraction))
	}
	if spec.Vacation < 0 {
		return nil, core.NewSamplingError(fmt.Sprintf("vacation length %d is negative", spec.Vacation))
	}

	out := t.Clone()
	n := out.Len()

	droppable := s.droppableColumns(out, spec.ExcludeColumns)

	// Rows that still carry data, in original order.
	remaining := make([]int, 0, n)
	for i := 0; i < n; i++ {
		remaining = append(remaining, i)
	}

	if spec.Vacation > 0 {
		if n-spec.Vacation < 2 {
			return nil, core.NewSamplingError(fmt.Sprintf("vacation of %d days does not fit %d rows", spec.Vacation, n))
		}
		start := 1 + s.stream.Intn(n-spec.Vacation-1)
		for _, name := range droppable {
			series := out.Series[name]
			for i := start; i < start+spec.Vacation; i++ {
				series[i] = math.NaN()
			}
		}
		remaining = append(remaining[:start:start], remaining[start+spec.Vacation:]...)
	}

	if spec.Fraction > 0 {
		kept := s.weightedSample(remaining, int(math.Round(spec.Fraction*float64(len(remaining)))))
		keptSet := make(map[int]bool, len(kept))
		for _, row := range kept {
			keptSet[row] = true
		}
		for _, row := range remaining {
			if keptSet[row] {
				continue
			}
			for _, name := range droppable {
				out.Series[name][row] = math.NaN()
			}
		}
	}

	return out, nil
}

// droppableColumns lists the series columns subject to dropout: everything
// except the exposure indicators and the caller's exclusions. The typed
// identifier columns are kept by construction.
func (s *Simulation) droppableColumns(t *record.Table, exclude []string) []string {
	keep := map[string]bool{}
	for name := range s.params.Exposures {
		keep[name] = true
	}
	for _, name := range exclude {
		keep[name] = true
	}

	var droppable []string
	for _, name := range t.SeriesNames() {
		if !keep[name] {
			droppable = append(droppable, name)
		}
	}
	return droppable
}

// weightedSample draws k distinct rows without replacement, weighting each
// remaining row by the inverse of its position (earlier rows are more likely
// to be kept).
func (s *Simulation) weightedSample(rows []int, k int) []int {
	if k >= len(rows) {
		return append([]int(nil), rows...)
	}

	weights := make([]float64, len(rows))
	total := 0.0
	for pos := range rows {
		weights[pos] = 1 / float64(pos+1)
		total += weights[pos]
	}

	chosen := make([]int, 0, k)
	taken := make([]bool, len(rows))
	for len(chosen) < k {
		r := s.stream.Float64() * total
		for pos := range rows {
			if taken[pos] {
				continue
			}
			r -= weights[pos]
			if r <= 0 {
				taken[pos] = true
				total -= weights[pos]
				chosen = append(chosen, rows[pos])
				break
			}
		}
	}
	return chosen
}
