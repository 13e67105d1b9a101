// Package postgres persists simulated patient records.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"nof1sim/domain/core"
	"nof1sim/domain/record"
)

// RecordRepository stores patient records keyed by run and patient.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new PostgreSQL record repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// EnsureSchema creates the backing table when it does not exist.
func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS patient_records (
			run_id     TEXT NOT NULL,
			patient_id INTEGER NOT NULL,
			rows       INTEGER NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, patient_id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure patient_records schema: %w", err)
	}
	return nil
}

// Save upserts one patient's record for a run.
func (r *RecordRepository) Save(ctx context.Context, runID core.RunID, patientID int, t *record.Table) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO patient_records (run_id, patient_id, rows, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, patient_id) DO UPDATE SET
			rows = EXCLUDED.rows,
			payload = EXCLUDED.payload`,
		runID.String(), patientID, t.Len(), payload)
	if err != nil {
		return fmt.Errorf("save record %s/%d: %w", runID, patientID, err)
	}
	return nil
}

// Get loads one patient's record for a run.
func (r *RecordRepository) Get(ctx context.Context, runID core.RunID, patientID int) (*record.Table, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload FROM patient_records
		WHERE run_id = $1 AND patient_id = $2`,
		runID.String(), patientID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%d", core.ErrRecordNotFound, runID, patientID)
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s/%d: %w", runID, patientID, err)
	}

	t := record.New()
	if err := json.Unmarshal(payload, t); err != nil {
		return nil, fmt.Errorf("unmarshal record %s/%d: %w", runID, patientID, err)
	}
	return t, nil
}

// ListPatients returns the patient ids stored for a run, in order.
func (r *RecordRepository) ListPatients(ctx context.Context, runID core.RunID) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `
		SELECT patient_id FROM patient_records
		WHERE run_id = $1 ORDER BY patient_id`,
		runID.String())
	if err != nil {
		return nil, fmt.Errorf("list patients for %s: %w", runID, err)
	}
	return ids, nil
}
