// Package sim implements the N-of-1 simulation engine: a causal-graph
// driven generator of longitudinal patient records. The engine is a pure
// computation over an owned random stream; it performs no I/O.
package sim

import (
	"fmt"
	"time"

	"nof1sim/domain/core"
	"nof1sim/domain/record"
	"nof1sim/domain/study"
)

// Simulation generates patient data for one study configuration. The
// parameters are read-only after construction; the stream is the only
// mutable state.
type Simulation struct {
	params study.Parameters
	deps   study.DependencyMap
	order  []string
	stream *Stream
}

// New validates the parameters, derives the dependency map and fixes the
// topological node order. A cyclic graph is refused here, before any data
// is generated.
func New(params study.Parameters, stream *Stream) (*Simulation, error) {
	if stream == nil {
		return nil, core.NewValidationError("stream", "required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	deps, err := study.BuildDependencyMap(params)
	if err != nil {
		return nil, err
	}
	order, err := study.TopologicalOrder(deps)
	if err != nil {
		return nil, err
	}
	return &Simulation{params: params, deps: deps, order: order, stream: stream}, nil
}

// Params returns the simulation's configuration.
func (s *Simulation) Params() study.Parameters {
	return s.params
}

// NodeOrder returns the topological execution order.
func (s *Simulation) NodeOrder() []string {
	return append([]string(nil), s.order...)
}

// StepRequest asks for one additional study period for one patient.
type StepRequest struct {
	// Treatment is the block-level assignment for the new period.
	Treatment string
	// DaysPerPeriod is the fixed period length in days.
	DaysPerPeriod int
	// PatientID selects the patient within the record.
	PatientID int
	// Record is the patient's cumulative record so far; nil starts fresh.
	Record *record.Table
	// FirstDay is the explicit start date; required when the patient has
	// no recorded rows, otherwise derived as the day after the latest one.
	FirstDay time.Time
	// DropOut overrides the configured drop-out spec for this step.
	DropOut *study.DropOutSpec
}

// StepPatient advances one patient by one block. It returns the extended
// cumulative record and, when a drop-out spec applies, a dropout-filtered
// copy; the canonical record is never mutated. The input record is not
// modified either: the result is an appended clone.
func (s *Simulation) StepPatient(req StepRequest) (*record.Table, *record.Table, error) {
	if req.Treatment == "" {
		return nil, nil, core.NewValidationError("treatment", "required")
	}
	if req.DaysPerPeriod <= 0 {
		return nil, nil, core.NewValidationError("days_per_period", "must be positive")
	}

	table := req.Record
	if table == nil {
		table = record.New()
	}
	length := req.DaysPerPeriod

	firstDay := req.FirstDay
	if firstDay.IsZero() {
		last, ok := table.LastDate(req.PatientID)
		if !ok {
			return nil, nil, core.NewValidationError("first_day", "required for a patient with no recorded rows")
		}
		firstDay = last.AddDate(0, 0, 1)
	}
	dates := make([]time.Time, length)
	for i := range dates {
		dates[i] = firstDay.AddDate(0, 0, i)
	}

	design := s.resolveDesign(table, req.PatientID, req.Treatment)

	block := 1
	if max, ok := table.MaxBlock(req.PatientID); ok {
		block = max + 1
	}
	day := 1
	if max, ok := table.MaxDay(req.PatientID); ok {
		day = max + 1
	}

	cols := map[string][]float64{}
	for _, node := range s.order {
		switch {
		case s.params.IsExposure(node):
			indicator, effect, err := s.simulateTreatment(design, length, node, s.deps[node], s.params.Exposures[node], cols)
			if err != nil {
				return nil, nil, err
			}
			cols[node] = indicator
			cols[record.EffectColumn(node)] = effect

		case node == s.params.Outcome.Name:
			drift, state, observation, err := s.simulateOutcome(length, s.deps[node], cols, s.params.OverTime[node])
			if err != nil {
				return nil, nil, err
			}
			cols[record.ColBaselineDrift] = drift
			cols[record.ColUnderlyingState] = state
			cols[node] = observation

		default:
			values, err := s.simulateNode(node, s.deps[node], length, cols, s.params.Variables[node], s.params.OverTime[node])
			if err != nil {
				return nil, nil, err
			}
			cols[node] = values
		}
	}

	out := table.Clone()
	out.AppendPeriod(record.Period{
		PatientID: req.PatientID,
		Treatment: req.Treatment,
		Block:     block,
		FirstDay:  day,
		Dates:     dates,
		Series:    cols,
	})

	spec := req.DropOut
	if spec == nil {
		spec = s.params.DropOut
	}
	if spec == nil {
		return out, nil, nil
	}
	observed, err := s.ApplyDropout(out, *spec)
	if err != nil {
		return nil, nil, fmt.Errorf("drop out: %w", err)
	}
	return out, observed, nil
}

// resolveDesign reconstructs the crossover design: one treatment label per
// prior block plus the newly requested one. The historical label is read
// from a uniformly drawn row of each block; labels are constant within a
// block, so the draw only fixes the stream position, which is itself part
// of the reproducibility contract.
func (s *Simulation) resolveDesign(table *record.Table, patientID int, treatment string) []string {
	blocks := table.Blocks(patientID)
	design := make([]string, 0, len(blocks)+1)
	for _, block := range blocks {
		rows := table.BlockRows(patientID, block)
		row := rows[s.stream.Intn(len(rows))]
		design = append(design, table.Treatment[row])
	}
	return append(design, treatment)
}
