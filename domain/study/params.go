package study

import (
	"encoding/json"
	"fmt"
	"io"

	"nof1sim/domain/core"
)

// Distribution identifies one of the closed set of generative primitives a
// variable may draw from. Unknown names are rejected at configuration time;
// they never reach the sampler.
type Distribution string

const (
	DistConstant Distribution = "constant"
	DistNormal   Distribution = "normal"
	DistPoisson  Distribution = "poisson"
	DistUnit     Distribution = "unit"
	DistFlag     Distribution = "flag"
	// DistLiteral passes the configured value through without clipping.
	DistLiteral Distribution = "not"
)

// KnownDistribution reports whether d is a member of the closed set.
func KnownDistribution(d Distribution) bool {
	switch d {
	case DistConstant, DistNormal, DistPoisson, DistUnit, DistFlag, DistLiteral:
		return true
	}
	return false
}

// Bounds is an optional per-side clipping range. A nil side is open.
type Bounds struct {
	Low  *float64
	High *float64
}

// NewBounds builds a closed range.
func NewBounds(low, high float64) *Bounds {
	return &Bounds{Low: &low, High: &high}
}

// Clip clamps v into the bounds, one side at a time.
func (b *Bounds) Clip(v float64) float64 {
	if b == nil {
		return v
	}
	if b.Low != nil && v < *b.Low {
		v = *b.Low
	}
	if b.High != nil && v > *b.High {
		v = *b.High
	}
	return v
}

// MarshalJSON encodes bounds as the two-element [low, high] form used by the
// cross-implementation parameter document. Open sides encode as null.
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{b.Low, b.High})
}

// UnmarshalJSON accepts [low, high] with either side null.
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var pair [2]*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("boarders must be a [low, high] pair: %w", err)
	}
	b.Low = pair[0]
	b.High = pair[1]
	return nil
}

// ExposureParams configures the pharmacodynamics of one treatment.
type ExposureParams struct {
	Gamma           float64 `json:"gamma"`
	Tau             float64 `json:"tau"`
	TreatmentEffect float64 `json:"treatment_effect"`
}

// OutcomeParams configures the study outcome.
type OutcomeParams struct {
	Name   string  `json:"name"`
	X0     float64 `json:"X_0"`
	SigmaB float64 `json:"sigma_b"`
	Sigma0 float64 `json:"sigma_0"`
	Bounds Bounds  `json:"boarders"`
	MuB    float64 `json:"mu_b,omitempty"`
}

// VariableParams configures one ordinary (non-exposure, non-outcome)
// variable. The distribution parameters are flat, matching the parameter
// document; only the fields relevant to the chosen distribution are read.
type VariableParams struct {
	Constant     bool         `json:"constant"`
	Distribution Distribution `json:"distribution"`
	Mean         float64      `json:"mean,omitempty"`
	Std          float64      `json:"std,omitempty"`
	Lambda       float64      `json:"lam,omitempty"`
	P1           float64      `json:"p1,omitempty"`
	Value        float64      `json:"value,omitempty"`
	Bounds       *Bounds      `json:"boarders,omitempty"`
}

// LagSpec carries the ordered per-lag weights of an over-time dependency.
// Effects[0] applies to the parent value at t-1, Effects[1] at t-2, and so on.
type LagSpec struct {
	Effects []float64 `json:"effects"`
}

// DropOutSpec configures the optional missing-data post-processing.
type DropOutSpec struct {
	Fraction float64 `json:"fraction,omitempty"`
	Vacation int     `json:"vacation,omitempty"`
	// ExcludeColumns are kept intact in addition to the identifier and
	// treatment columns.
	ExcludeColumns []string `json:"exclude_columns,omitempty"`
}

// Parameters is the engine's sole configuration input. It is constructed
// once and treated as read-only for the lifetime of a simulation instance.
type Parameters struct {
	Exposures    map[string]ExposureParams `json:"exposures"`
	Outcome      OutcomeParams             `json:"outcome"`
	Variables    map[string]VariableParams `json:"variables"`
	Dependencies map[string]float64        `json:"dependencies"`
	OverTime     map[string]map[string]LagSpec `json:"over_time_dependencies,omitempty"`
	DropOut      *DropOutSpec                  `json:"drop_out,omitempty"`
}

// Load reads and validates a parameter document.
func Load(r io.Reader) (Parameters, error) {
	var p Parameters
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Parameters{}, core.NewValidationError("parameters", err.Error())
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// Nodes returns every declared node: variables, exposures and the outcome.
func (p Parameters) Nodes() []string {
	nodes := make([]string, 0, len(p.Variables)+len(p.Exposures)+1)
	for name := range p.Variables {
		nodes = append(nodes, name)
	}
	for name := range p.Exposures {
		nodes = append(nodes, name)
	}
	if p.Outcome.Name != "" {
		nodes = append(nodes, p.Outcome.Name)
	}
	return nodes
}

// IsExposure reports whether name is a configured treatment.
func (p Parameters) IsExposure(name string) bool {
	_, ok := p.Exposures[name]
	return ok
}

// Weight returns the causal weight of the parent -> child edge.
func (p Parameters) Weight(parent, child string) float64 {
	return p.Dependencies[EdgeKey(parent, child)]
}

// Validate enforces the structural invariants: the outcome is named, every
// node is declared exactly once, every edge references declared nodes and
// every variable draws from a known distribution.
func (p Parameters) Validate() error {
	if p.Outcome.Name == "" {
		return core.NewValidationError("outcome.name", "required")
	}

	declared := map[string]int{}
	for name := range p.Variables {
		declared[name]++
	}
	for name := range p.Exposures {
		declared[name]++
	}
	declared[p.Outcome.Name]++
	for name, count := range declared {
		if count > 1 {
			return fmt.Errorf("%w: %s", core.ErrDuplicateNode, name)
		}
	}

	for name, v := range p.Variables {
		if !KnownDistribution(v.Distribution) {
			return core.NewUnknownDistributionError(name, string(v.Distribution))
		}
	}

	for edge := range p.Dependencies {
		parent, child, err := SplitEdgeKey(edge)
		if err != nil {
			return err
		}
		if _, ok := declared[parent]; !ok {
			return fmt.Errorf("%w: %s (edge %q)", core.ErrUndeclaredNode, parent, edge)
		}
		if _, ok := declared[child]; !ok {
			return fmt.Errorf("%w: %s (edge %q)", core.ErrUndeclaredNode, child, edge)
		}
	}

	for child, parents := range p.OverTime {
		if _, ok := declared[child]; !ok {
			return fmt.Errorf("%w: %s (over_time_dependencies)", core.ErrUndeclaredNode, child)
		}
		for parent := range parents {
			if _, ok := declared[parent]; !ok {
				return fmt.Errorf("%w: %s (over_time_dependencies of %s)", core.ErrUndeclaredNode, parent, child)
			}
		}
	}

	if p.DropOut != nil {
		if p.DropOut.Fraction < 0 || p.DropOut.Fraction > 1 {
			return core.NewValidationError("drop_out.fraction", "must be within [0, 1]")
		}
		if p.DropOut.Vacation < 0 {
			return core.NewValidationError("drop_out.vacation", "must be non-negative")
		}
	}

	return nil
}
