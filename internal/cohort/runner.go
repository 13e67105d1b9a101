// Package cohort runs many independent patient simulations in parallel.
// Patients share no state: each worker owns a Simulation whose stream is
// derived deterministically from the base seed and the patient id, so a
// cohort is reproducible regardless of scheduling.
package cohort

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"nof1sim/domain/core"
	"nof1sim/domain/record"
	"nof1sim/domain/study"
	"nof1sim/internal"
	"nof1sim/internal/sim"
)

// Config describes one cohort run.
type Config struct {
	// Patients is the number of patients to simulate, ids 0..Patients-1.
	Patients int
	// Treatments is the block-level assignment sequence; one block is run
	// per entry.
	Treatments []string
	// DaysPerPeriod is the fixed period length.
	DaysPerPeriod int
	// FirstDay is the study start date shared by every patient.
	FirstDay time.Time
	// Seed is the base seed; patient streams derive from it.
	Seed uint64
	// Parallelism caps concurrent patient workers; zero means Patients.
	Parallelism int64
}

// PatientResult is the outcome of one patient's simulation.
type PatientResult struct {
	PatientID int
	Record    *record.Table
	// Observed is the dropout-filtered view, nil without a drop-out spec.
	Observed *record.Table
	Err      error
}

// Runner executes cohorts for one study configuration.
type Runner struct {
	params study.Parameters
	log    *internal.Logger
}

// NewRunner creates a cohort runner.
func NewRunner(params study.Parameters, log *internal.Logger) *Runner {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Runner{params: params, log: log}
}

// Run simulates every patient across all configured blocks. The returned
// slice is indexed by patient id; individual patient failures are reported
// per result, a setup failure aborts the run.
func (r *Runner) Run(ctx context.Context, cfg Config) ([]PatientResult, error) {
	if cfg.Patients <= 0 {
		return nil, core.NewValidationError("patients", "must be positive")
	}
	if len(cfg.Treatments) == 0 {
		return nil, core.NewValidationError("treatments", "at least one block is required")
	}
	if cfg.FirstDay.IsZero() {
		return nil, core.NewValidationError("first_day", "required")
	}

	workers := cfg.Parallelism
	if workers <= 0 {
		workers = int64(cfg.Patients)
	}
	sem := semaphore.NewWeighted(workers)

	results := make([]PatientResult, cfg.Patients)
	var wg sync.WaitGroup
	for id := 0; id < cfg.Patients; id++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(patientID int) {
			defer wg.Done()
			defer sem.Release(1)
			results[patientID] = r.runPatient(patientID, cfg)
		}(id)
	}
	wg.Wait()

	return results, nil
}

// runPatient advances one patient through every block with a dedicated
// stream.
func (r *Runner) runPatient(patientID int, cfg Config) PatientResult {
	stream := sim.NewStream(sim.DeriveSeed(cfg.Seed, patientID))
	simulation, err := sim.New(r.params, stream)
	if err != nil {
		return PatientResult{PatientID: patientID, Err: err}
	}

	var table, observed *record.Table
	for block, treatment := range cfg.Treatments {
		req := sim.StepRequest{
			Treatment:     treatment,
			DaysPerPeriod: cfg.DaysPerPeriod,
			PatientID:     patientID,
			Record:        table,
		}
		if block == 0 {
			req.FirstDay = cfg.FirstDay
		}
		table, observed, err = simulation.StepPatient(req)
		if err != nil {
			r.log.Error("patient %d failed at block %d: %v", patientID, block+1, err)
			return PatientResult{PatientID: patientID, Err: err}
		}
	}

	r.log.Debug("patient %d simulated: %d rows", patientID, table.Len())
	return PatientResult{PatientID: patientID, Record: table, Observed: observed}
}
