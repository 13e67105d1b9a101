package sim

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"nof1sim/domain/core"
	"nof1sim/domain/record"
	"nof1sim/domain/study"
)

// noiselessParams is the deterministic single-exposure configuration: with
// both sigmas at zero the baseline stays pinned at X_0 and the observation
// is the rounded, clipped sum of baseline and realized effect.
func noiselessParams() study.Parameters {
	return study.Parameters{
		Exposures: map[string]study.ExposureParams{
			"Treatment_1": {Gamma: 5, Tau: 3, TreatmentEffect: 2},
		},
		Outcome: study.OutcomeParams{
			Name:   "Pain",
			X0:     5,
			SigmaB: 0,
			Sigma0: 0,
			Bounds: *study.NewBounds(0, 10),
		},
		Variables:    map[string]study.VariableParams{},
		Dependencies: map[string]float64{"Treatment_1 -> Pain": 1},
	}
}

func noisyParams() study.Parameters {
	p := noiselessParams()
	p.Outcome.SigmaB = 0.1
	p.Outcome.Sigma0 = 0.5
	p.Variables = map[string]study.VariableParams{
		"Stress": {Distribution: study.DistNormal, Mean: 0, Std: 1, Bounds: study.NewBounds(-3, 3)},
	}
	p.Dependencies["Stress -> Pain"] = 0.3
	return p
}

func startDate() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func stepOnce(t *testing.T, s *Simulation, table *record.Table, treatment string, first time.Time) *record.Table {
	t.Helper()
	out, _, err := s.StepPatient(StepRequest{
		Treatment:     treatment,
		DaysPerPeriod: 7,
		PatientID:     0,
		Record:        table,
		FirstDay:      first,
	})
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	return out
}

func TestStepPatient_NoiselessTreatedBlock(t *testing.T) {
	s, err := New(noiselessParams(), NewStream(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	table := stepOnce(t, s, nil, "Treatment_1", startDate())

	if table.Len() != 7 {
		t.Fatalf("expected 7 rows, got %d", table.Len())
	}

	indicator := table.Series["Treatment_1"]
	effect := table.Series[record.EffectColumn("Treatment_1")]
	drift := table.Series[record.ColBaselineDrift]
	pain := table.Series["Pain"]

	wantEffect, err := EffectSeries([]float64{1, 1, 1, 1, 1, 1, 1}, 5, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 7; i++ {
		if indicator[i] != 1 {
			t.Errorf("day %d: expected treated indicator 1, got %v", i, indicator[i])
		}
		if drift[i] != 5 {
			t.Errorf("day %d: with sigma_b=0 the baseline must stay at 5, got %v", i, drift[i])
		}
		if math.Abs(effect[i]-wantEffect[i]) > 1e-12 {
			t.Errorf("day %d: expected effect %v, got %v", i, wantEffect[i], effect[i])
		}
		want := math.Round(5 + wantEffect[i])
		if pain[i] != want {
			t.Errorf("day %d: expected observation %v, got %v", i, want, pain[i])
		}
		if table.Block[i] != 1 || table.Day[i] != i+1 {
			t.Errorf("day %d: block/day columns wrong: %d/%d", i, table.Block[i], table.Day[i])
		}
		if !table.Date[i].Equal(startDate().AddDate(0, 0, i)) {
			t.Errorf("day %d: unexpected date %v", i, table.Date[i])
		}
	}
}

func TestStepPatient_CarryOverAcrossBlocks(t *testing.T) {
	s, err := New(noiselessParams(), NewStream(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	table := stepOnce(t, s, nil, "Treatment_1", startDate())
	table = stepOnce(t, s, table, "Rest", time.Time{})

	if table.Len() != 14 {
		t.Fatalf("expected 14 rows, got %d", table.Len())
	}
	if table.Block[7] != 2 || table.Day[7] != 8 {
		t.Errorf("second block should continue the counters, got block %d day %d", table.Block[7], table.Day[7])
	}
	if !table.Date[7].Equal(startDate().AddDate(0, 0, 7)) {
		t.Errorf("second block should start the day after the first ended, got %v", table.Date[7])
	}

	effect := table.Series[record.EffectColumn("Treatment_1")]

	// The washout block decays the accumulated effect instead of resetting it.
	want := effect[6] * (1 - 1.0/5)
	if math.Abs(effect[7]-want) > 1e-12 {
		t.Errorf("expected carry-over decay %v on the first washout day, got %v", want, effect[7])
	}
	for i := 8; i < 14; i++ {
		if effect[i] >= effect[i-1] {
			t.Errorf("day %d: effect should keep decaying during washout", i)
		}
	}
}

func TestStepPatient_DoesNotMutateInput(t *testing.T) {
	s, err := New(noiselessParams(), NewStream(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := stepOnce(t, s, nil, "Treatment_1", startDate())
	snapshot := first.Clone()

	_ = stepOnce(t, s, first, "Rest", time.Time{})

	if !reflect.DeepEqual(first, snapshot) {
		t.Error("stepping must not mutate the input record")
	}
}

func TestStepPatient_Reproducibility(t *testing.T) {
	run := func() *record.Table {
		s, err := New(noisyParams(), NewStream(99))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		table := stepOnce(t, s, nil, "Treatment_1", startDate())
		return stepOnce(t, s, table, "Rest", time.Time{})
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Error("identical seed and requests must reproduce the record bit for bit")
	}

	s, err := New(noisyParams(), NewStream(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := stepOnce(t, s, nil, "Treatment_1", startDate())
	if reflect.DeepEqual(a.Series["Stress"][:7], c.Series["Stress"]) {
		t.Error("different seeds should diverge")
	}
}

func TestStepPatient_AppendIsPrefixStable(t *testing.T) {
	build := func(blocks int) *record.Table {
		s, err := New(noisyParams(), NewStream(7))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		table := stepOnce(t, s, nil, "Treatment_1", startDate())
		for b := 1; b < blocks; b++ {
			table = stepOnce(t, s, table, "Rest", time.Time{})
		}
		return table
	}

	one, two := build(1), build(2)
	for name, series := range one.Series {
		if !reflect.DeepEqual(series, two.Series[name][:7]) {
			t.Errorf("series %s: appending a block rewrote the existing prefix", name)
		}
	}
}

func TestStepPatient_ValidatesRequest(t *testing.T) {
	s, err := New(noiselessParams(), NewStream(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := s.StepPatient(StepRequest{DaysPerPeriod: 7, FirstDay: startDate()}); !core.IsConfigurationError(err) {
		t.Errorf("missing treatment should fail, got %v", err)
	}
	if _, _, err := s.StepPatient(StepRequest{Treatment: "Treatment_1", FirstDay: startDate()}); !core.IsConfigurationError(err) {
		t.Errorf("non-positive period length should fail, got %v", err)
	}
	if _, _, err := s.StepPatient(StepRequest{Treatment: "Treatment_1", DaysPerPeriod: 7}); !core.IsConfigurationError(err) {
		t.Errorf("empty record without a first day should fail, got %v", err)
	}
}

func TestStepPatient_LaggedContribution(t *testing.T) {
	p := noiselessParams()
	p.Variables = map[string]study.VariableParams{
		"Stress": {Distribution: study.DistConstant, Constant: true, Value: 2},
	}
	p.Dependencies["Stress -> Pain"] = 0
	p.OverTime = map[string]map[string]study.LagSpec{
		"Pain": {"Stress": {Effects: []float64{0.5}}},
	}

	s, err := New(p, NewStream(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table := stepOnce(t, s, nil, "Rest", startDate())

	pain := table.Series["Pain"]
	// Day 0 has no predecessor: baseline only. Later days add 0.5 * Stress[t-1].
	if pain[0] != 5 {
		t.Errorf("day 0 should have no lagged contribution, got %v", pain[0])
	}
	for i := 1; i < 7; i++ {
		if pain[i] != 6 {
			t.Errorf("day %d: expected 5 + 0.5*2 = 6, got %v", i, pain[i])
		}
	}
}

func TestStepPatient_CyclicGraphRefused(t *testing.T) {
	p := noiselessParams()
	p.Variables = map[string]study.VariableParams{
		"A": {Distribution: study.DistNormal},
		"B": {Distribution: study.DistNormal},
	}
	p.Dependencies["A -> B"] = 1
	p.Dependencies["B -> A"] = 1

	if _, err := New(p, NewStream(1)); !errors.Is(err, core.ErrCyclicGraph) {
		t.Fatalf("expected ErrCyclicGraph, got %v", err)
	}
}
