package sim

import (
	"errors"
	"testing"

	"nof1sim/domain/core"
	"nof1sim/domain/study"
)

func minimalSim(t *testing.T, seed uint64) *Simulation {
	t.Helper()
	params := study.Parameters{
		Exposures:    map[string]study.ExposureParams{},
		Outcome:      study.OutcomeParams{Name: "Pain", Bounds: *study.NewBounds(0, 10)},
		Variables:    map[string]study.VariableParams{},
		Dependencies: map[string]float64{},
	}
	s, err := New(params, NewStream(seed))
	if err != nil {
		t.Fatalf("failed to build simulation: %v", err)
	}
	return s
}

func TestSampleValue_ConstantClipsIntoBounds(t *testing.T) {
	s := minimalSim(t, 1)

	v, err := s.sampleValue("x", study.VariableParams{
		Distribution: study.DistConstant,
		Value:        5,
		Bounds:       study.NewBounds(0, 3),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 3 {
		t.Errorf("expected 3, got %v", v)
	}
}

func TestSampleValue_LiteralIgnoresBounds(t *testing.T) {
	s := minimalSim(t, 1)

	v, err := s.sampleValue("x", study.VariableParams{
		Distribution: study.DistLiteral,
		Value:        99,
		Bounds:       study.NewBounds(0, 1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Errorf("literal must pass through unclipped, got %v", v)
	}
}

func TestSampleValue_UnitIsInclusive(t *testing.T) {
	s := minimalSim(t, 7)
	params := study.VariableParams{
		Distribution: study.DistUnit,
		Bounds:       study.NewBounds(1, 6),
	}

	seenLow, seenHigh := false, false
	for i := 0; i < 500; i++ {
		v, err := s.sampleValue("die", params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v < 1 || v > 6 || v != float64(int(v)) {
			t.Fatalf("value %v outside inclusive integer range [1, 6]", v)
		}
		if v == 1 {
			seenLow = true
		}
		if v == 6 {
			seenHigh = true
		}
	}
	if !seenLow || !seenHigh {
		t.Error("both endpoints should be reachable")
	}
}

func TestSampleValue_UnitInvertedBounds(t *testing.T) {
	s := minimalSim(t, 1)

	_, err := s.sampleValue("x", study.VariableParams{
		Distribution: study.DistUnit,
		Bounds:       study.NewBounds(6, 1),
	})
	if !errors.Is(err, core.ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestSampleValue_FlagIsBinary(t *testing.T) {
	s := minimalSim(t, 3)
	params := study.VariableParams{Distribution: study.DistFlag, P1: 0.5}

	ones := 0
	for i := 0; i < 200; i++ {
		v, err := s.sampleValue("flag", params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 0 && v != 1 {
			t.Fatalf("flag must be 0 or 1, got %v", v)
		}
		if v == 1 {
			ones++
		}
	}
	if ones == 0 || ones == 200 {
		t.Errorf("flag with p1=0.5 should mix values, got %d ones", ones)
	}
}

func TestSampleValue_NormalIsBounded(t *testing.T) {
	s := minimalSim(t, 9)
	params := study.VariableParams{
		Distribution: study.DistNormal,
		Mean:         0,
		Std:          5,
		Bounds:       study.NewBounds(-1, 1),
	}

	for i := 0; i < 200; i++ {
		v, err := s.sampleValue("x", params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v < -1 || v > 1 {
			t.Fatalf("value %v escaped bounds", v)
		}
	}
}

func TestSampleValue_PoissonNonNegative(t *testing.T) {
	s := minimalSim(t, 11)
	params := study.VariableParams{Distribution: study.DistPoisson, Lambda: 3}

	for i := 0; i < 100; i++ {
		v, err := s.sampleValue("count", params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v < 0 || v != float64(int(v)) {
			t.Fatalf("poisson draw should be a non-negative integer, got %v", v)
		}
	}

	if _, err := s.sampleValue("count", study.VariableParams{Distribution: study.DistPoisson, Lambda: -1}); !core.IsConfigurationError(err) {
		t.Errorf("negative rate should fail, got %v", err)
	}
}

func TestSampleValue_UnknownDistribution(t *testing.T) {
	s := minimalSim(t, 1)

	_, err := s.sampleValue("x", study.VariableParams{Distribution: "weird"})
	if !errors.Is(err, core.ErrUnknownDistribution) {
		t.Fatalf("expected ErrUnknownDistribution, got %v", err)
	}
}

func TestStream_Determinism(t *testing.T) {
	a := NewStream(1234)
	b := NewStream(1234)

	for i := 0; i < 100; i++ {
		if av, bv := a.Normal(0, 1), b.Normal(0, 1); av != bv {
			t.Fatalf("draw %d diverged: %v vs %v", i, av, bv)
		}
	}
}

func TestDeriveSeed_DistinctPerPatient(t *testing.T) {
	seen := map[uint64]int{}
	for id := 0; id < 100; id++ {
		seed := DeriveSeed(42, id)
		if prev, ok := seen[seed]; ok {
			t.Fatalf("patients %d and %d share seed %d", prev, id, seed)
		}
		seen[seed] = id
	}
}
