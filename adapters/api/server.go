// Package api exposes the simulation entry points over a small JSON
// surface. It is a thin adapter: all semantics live in the engine.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nof1sim/domain/core"
	"nof1sim/domain/record"
	"nof1sim/domain/study"
	"nof1sim/internal"
	"nof1sim/internal/sim"
)

// Server wraps one simulation instance. Requests are served sequentially
// relative to the shared stream; callers wanting parallel patients should
// run one server (or cohort runner) per stream.
type Server struct {
	sim *sim.Simulation
	log *internal.Logger
}

// NewServer creates an API server around a simulation.
func NewServer(simulation *sim.Simulation, log *internal.Logger) *Server {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Server{sim: simulation, log: log}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/step", s.handleStep)
	r.Post("/dropout", s.handleDropout)
	return r
}

type stepRequest struct {
	Treatment     string             `json:"treatment"`
	DaysPerPeriod int                `json:"days_per_period"`
	PatientID     int                `json:"patient_id"`
	FirstDay      string             `json:"first_day,omitempty"`
	Record        *record.Table      `json:"record,omitempty"`
	DropOut       *study.DropOutSpec `json:"drop_out,omitempty"`
}

type stepResponse struct {
	Record   *record.Table `json:"record"`
	Observed *record.Table `json:"observed,omitempty"`
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var firstDay time.Time
	if req.FirstDay != "" {
		parsed, err := time.Parse("2006-01-02", req.FirstDay)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		firstDay = parsed
	}

	table, observed, err := s.sim.StepPatient(sim.StepRequest{
		Treatment:     req.Treatment,
		DaysPerPeriod: req.DaysPerPeriod,
		PatientID:     req.PatientID,
		Record:        req.Record,
		FirstDay:      firstDay,
		DropOut:       req.DropOut,
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, stepResponse{Record: table, Observed: observed})
}

type dropoutRequest struct {
	Record         *record.Table `json:"record"`
	Fraction       float64       `json:"fraction,omitempty"`
	Vacation       int           `json:"vacation,omitempty"`
	ExcludeColumns []string      `json:"exclude_columns,omitempty"`
}

func (s *Server) handleDropout(w http.ResponseWriter, r *http.Request) {
	var req dropoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Record == nil {
		s.writeError(w, http.StatusBadRequest, core.NewValidationError("record", "required"))
		return
	}

	filtered, err := s.sim.ApplyDropout(req.Record, study.DropOutSpec{
		Fraction:       req.Fraction,
		Vacation:       req.Vacation,
		ExcludeColumns: req.ExcludeColumns,
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, stepResponse{Record: filtered})
}

func statusFor(err error) int {
	if core.IsConfigurationError(err) || core.IsArithmeticError(err) || core.IsSamplingError(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Warn("request failed: %v", err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
