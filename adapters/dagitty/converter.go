// Package dagitty converts a line-oriented causal-graph description into
// the engine's StudyParameters. Each non-edge line declares a node, with
// "exposure" or "outcome" appearing among its attributes; each edge line
// reads "source -> target". The engine never consumes this format directly.
package dagitty

import (
	"bufio"
	"io"
	"strings"

	"nof1sim/domain/core"
	"nof1sim/domain/study"
)

// Default generation parameters assigned to converted nodes. The converter
// produces a runnable skeleton; researchers tune the numbers afterwards.
var (
	defaultExposure = study.ExposureParams{Gamma: 1, Tau: 1, TreatmentEffect: 1}
	defaultVariable = study.VariableParams{
		Constant:     false,
		Distribution: study.DistNormal,
		Mean:         0,
		Std:          1,
		Bounds:       study.NewBounds(-1, 1),
	}
)

// Convert parses a dagitty-style graph description into StudyParameters.
func Convert(r io.Reader) (study.Parameters, error) {
	params := study.Parameters{
		Exposures:    map[string]study.ExposureParams{},
		Variables:    map[string]study.VariableParams{},
		Dependencies: map[string]float64{},
	}

	type edge struct{ from, to string }
	var (
		edges    []edge
		exposure = map[string]bool{}
		outcome  = map[string]bool{}
		nodes    []string
	)

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			// The opening "dag {" header carries no content.
			first = false
			continue
		}
		if line == "" || line == "}" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 3 && (strings.HasPrefix(fields[1], "-") || strings.HasPrefix(fields[1], "<")) {
			edges = append(edges, edge{from: fields[0], to: fields[2]})
			continue
		}

		name := fields[0]
		attrs := strings.Join(fields[1:], " ")
		switch {
		case strings.Contains(attrs, "outcome"):
			outcome[name] = true
		case strings.Contains(attrs, "exposure"):
			exposure[name] = true
		}
		nodes = append(nodes, name)
	}
	if err := scanner.Err(); err != nil {
		return study.Parameters{}, err
	}
	if len(nodes) == 0 {
		return study.Parameters{}, core.NewValidationError("dagitty", "no nodes declared")
	}

	for _, name := range nodes {
		switch {
		case exposure[name]:
			params.Exposures[name] = defaultExposure
		case outcome[name]:
			params.Outcome = study.OutcomeParams{
				Name:   name,
				X0:     0,
				SigmaB: 0.1,
				Sigma0: 0.1,
				Bounds: *study.NewBounds(-1, 1),
			}
		default:
			params.Variables[name] = defaultVariable
		}
	}
	for _, e := range edges {
		params.Dependencies[study.EdgeKey(e.from, e.to)] = 1
	}

	if err := params.Validate(); err != nil {
		return study.Parameters{}, err
	}
	return params, nil
}
