package run

import (
	"testing"

	"nof1sim/domain/study"
)

func testParams(weight float64) study.Parameters {
	return study.Parameters{
		Exposures:    map[string]study.ExposureParams{"Treatment_1": {Gamma: 5, Tau: 3, TreatmentEffect: 2}},
		Outcome:      study.OutcomeParams{Name: "Pain", X0: 5, Bounds: *study.NewBounds(0, 10)},
		Variables:    map[string]study.VariableParams{},
		Dependencies: map[string]float64{"Treatment_1 -> Pain": weight},
	}
}

func TestNewManifest_FingerprintIsStable(t *testing.T) {
	a, err := NewManifest(testParams(1), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewManifest(testParams(1), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.SameExperiment(b) {
		t.Error("identical parameters and seed should describe the same experiment")
	}
	if a.RunID == b.RunID {
		t.Error("run ids must be unique per manifest")
	}
	if err := a.Validate(); err != nil {
		t.Errorf("manifest should validate: %v", err)
	}
}

func TestNewManifest_DetectsDivergence(t *testing.T) {
	base, _ := NewManifest(testParams(1), 42)

	reseeded, _ := NewManifest(testParams(1), 43)
	if base.SameExperiment(reseeded) {
		t.Error("different seeds are different experiments")
	}

	reweighted, _ := NewManifest(testParams(2), 42)
	if base.SameExperiment(reweighted) {
		t.Error("different parameters are different experiments")
	}
}
