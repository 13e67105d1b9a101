package run

import (
	"encoding/json"

	"nof1sim/domain/core"
	"nof1sim/domain/study"
)

// Manifest records everything needed to replay a simulation run: the seed
// and a fingerprint of the parameter document. Two manifests with equal
// fingerprints and seeds describe byte-identical output.
type Manifest struct {
	RunID             core.RunID     `json:"run_id"`
	Seed              uint64         `json:"seed"`
	ParamsFingerprint core.Hash      `json:"params_fingerprint"`
	CreatedAt         core.Timestamp `json:"created_at"`
}

// NewManifest fingerprints the parameters and stamps a fresh run id.
// encoding/json sorts map keys, so the marshaled document is canonical.
func NewManifest(params study.Parameters, seed uint64) (*Manifest, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		RunID:             core.RunID(core.NewID()),
		Seed:              seed,
		ParamsFingerprint: core.NewHash(canonical),
		CreatedAt:         core.Now(),
	}, nil
}

// SameExperiment reports whether two manifests describe the same
// reproducible run.
func (m *Manifest) SameExperiment(other *Manifest) bool {
	return m.Seed == other.Seed && m.ParamsFingerprint.Equals(other.ParamsFingerprint)
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.ParamsFingerprint.IsEmpty() {
		return core.NewValidationError("run_manifest", "params_fingerprint cannot be empty")
	}
	return nil
}
