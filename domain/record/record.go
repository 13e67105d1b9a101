// Package record holds the column-oriented patient table the simulation
// threads forward. The identifier columns are typed fields; generated series
// (variables, exposure indicators, realized effects, outcome, drift and
// state) live in an extension map keyed by column name. Rows accumulate
// monotonically across blocks; a table is never rewritten, only appended to.
package record

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Fixed series column names emitted alongside the outcome.
const (
	ColBaselineDrift   = "baseline_drift"
	ColUnderlyingState = "underlying_state"
)

// EffectColumn names the realized-effect series of an exposure.
func EffectColumn(exposure string) string {
	return exposure + "_effect"
}

// Table is a patient record. Missing cells are NaN.
type Table struct {
	PatientID []int
	Date      []time.Time
	Block     []int
	Day       []int
	Treatment []string
	Series    map[string][]float64
}

// New returns an empty table.
func New() *Table {
	return &Table{Series: map[string][]float64{}}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.PatientID)
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := &Table{
		PatientID: append([]int(nil), t.PatientID...),
		Date:      append([]time.Time(nil), t.Date...),
		Block:     append([]int(nil), t.Block...),
		Day:       append([]int(nil), t.Day...),
		Treatment: append([]string(nil), t.Treatment...),
		Series:    make(map[string][]float64, len(t.Series)),
	}
	for name, values := range t.Series {
		out.Series[name] = append([]float64(nil), values...)
	}
	return out
}

// Period is one block's worth of freshly generated rows for one patient.
type Period struct {
	PatientID int
	Treatment string
	Block     int
	FirstDay  int
	Dates     []time.Time
	Series    map[string][]float64
}

// AppendPeriod extends the table with the period's rows. Series columns the
// table has not seen before are backfilled with NaN for the existing rows;
// columns the period did not produce get NaN for the new rows.
func (t *Table) AppendPeriod(p Period) {
	existing := t.Len()
	added := len(p.Dates)

	for i := 0; i < added; i++ {
		t.PatientID = append(t.PatientID, p.PatientID)
		t.Date = append(t.Date, p.Dates[i])
		t.Block = append(t.Block, p.Block)
		t.Day = append(t.Day, p.FirstDay+i)
		t.Treatment = append(t.Treatment, p.Treatment)
	}

	if t.Series == nil {
		t.Series = map[string][]float64{}
	}
	for name, values := range p.Series {
		col, ok := t.Series[name]
		if !ok {
			col = nanSlice(existing)
		}
		t.Series[name] = append(col, values...)
	}
	for name, col := range t.Series {
		if _, ok := p.Series[name]; !ok {
			t.Series[name] = append(col, nanSlice(added)...)
		}
	}
}

// PatientRows returns the row indices belonging to a patient, in order.
func (t *Table) PatientRows(patientID int) []int {
	var rows []int
	for i, id := range t.PatientID {
		if id == patientID {
			rows = append(rows, i)
		}
	}
	return rows
}

// BlockRows returns the row indices of one block of one patient.
func (t *Table) BlockRows(patientID, block int) []int {
	var rows []int
	for i, id := range t.PatientID {
		if id == patientID && t.Block[i] == block {
			rows = append(rows, i)
		}
	}
	return rows
}

// Blocks returns the distinct block indices of a patient in ascending order.
func (t *Table) Blocks(patientID int) []int {
	seen := map[int]bool{}
	var blocks []int
	for _, i := range t.PatientRows(patientID) {
		if !seen[t.Block[i]] {
			seen[t.Block[i]] = true
			blocks = append(blocks, t.Block[i])
		}
	}
	sort.Ints(blocks)
	return blocks
}

// MaxBlock returns the highest block index recorded for a patient.
func (t *Table) MaxBlock(patientID int) (int, bool) {
	max, found := 0, false
	for _, i := range t.PatientRows(patientID) {
		if !found || t.Block[i] > max {
			max, found = t.Block[i], true
		}
	}
	return max, found
}

// MaxDay returns the highest day index recorded for a patient.
func (t *Table) MaxDay(patientID int) (int, bool) {
	max, found := 0, false
	for _, i := range t.PatientRows(patientID) {
		if !found || t.Day[i] > max {
			max, found = t.Day[i], true
		}
	}
	return max, found
}

// LastDate returns the latest recorded date for a patient.
func (t *Table) LastDate(patientID int) (time.Time, bool) {
	var last time.Time
	found := false
	for _, i := range t.PatientRows(patientID) {
		if !found || t.Date[i].After(last) {
			last, found = t.Date[i], true
		}
	}
	return last, found
}

// SeriesNames returns the series column names in sorted order.
func (t *Table) SeriesNames() []string {
	names := make([]string, 0, len(t.Series))
	for name := range t.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsMissing reports whether a cell is missing.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// tableJSON is the wire form of a table. Series cells use pointers so that
// missing values survive JSON, which has no NaN literal.
type tableJSON struct {
	PatientID []int                 `json:"patient_id"`
	Date      []time.Time           `json:"date"`
	Block     []int                 `json:"block"`
	Day       []int                 `json:"day"`
	Treatment []string              `json:"treatment"`
	Series    map[string][]*float64 `json:"series"`
}

// MarshalJSON encodes the table with NaN cells as null.
func (t *Table) MarshalJSON() ([]byte, error) {
	wire := tableJSON{
		PatientID: t.PatientID,
		Date:      t.Date,
		Block:     t.Block,
		Day:       t.Day,
		Treatment: t.Treatment,
		Series:    make(map[string][]*float64, len(t.Series)),
	}
	for name, values := range t.Series {
		cells := make([]*float64, len(values))
		for i := range values {
			if !math.IsNaN(values[i]) {
				v := values[i]
				cells[i] = &v
			}
		}
		wire.Series[name] = cells
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the wire form, restoring null cells as NaN.
func (t *Table) UnmarshalJSON(data []byte) error {
	var wire tableJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.PatientID = wire.PatientID
	t.Date = wire.Date
	t.Block = wire.Block
	t.Day = wire.Day
	t.Treatment = wire.Treatment
	t.Series = make(map[string][]float64, len(wire.Series))
	for name, cells := range wire.Series {
		values := make([]float64, len(cells))
		for i, cell := range cells {
			if cell == nil {
				values[i] = math.NaN()
			} else {
				values[i] = *cell
			}
		}
		t.Series[name] = values
	}
	return nil
}
