package domain

import "time"

// StationKind tags the network a station belongs to. It prefixes station names.
type StationKind string

// KindWRF is the station kind of WRF grid points.
const KindWRF StationKind = "wrf"

// Station is a persisted point location. Stations are never mutated after
// creation.
type Station struct {
	ID          int64
	Name        string
	Latitude    float64
	Longitude   float64
	Kind        StationKind
	Description string
}

// StationResult is the tagged outcome of a get-or-create call.
type StationResult struct {
	ID      int64
	Created bool
}

// SeriesMetadata is the full set of attributes defining a series' identity.
type SeriesMetadata struct {
	SimTag    string
	Model     string
	Version   string
	Variable  string
	Unit      string
	UnitType  string
	Latitude  float64
	Longitude float64
}

// Fields returns the metadata as the key/value mapping that gets hashed.
func (m SeriesMetadata) Fields() map[string]string {
	return map[string]string{
		"sim_tag":   m.SimTag,
		"model":     m.Model,
		"version":   m.Version,
		"variable":  m.Variable,
		"unit":      m.Unit,
		"unit_type": m.UnitType,
		"latitude":  FormatCoord(m.Latitude),
		"longitude": FormatCoord(m.Longitude),
	}
}

// RunState reports whether EnsureRun created the ledger row.
type RunState int

const (
	RunNew RunState = iota
	RunExisting
)

func (s RunState) String() string {
	if s == RunNew {
		return "new"
	}
	return "existing"
}

// Run is the ledger row of one series.
type Run struct {
	SeriesID   string
	SimTag     string
	Start      time.Time
	End        time.Time
	FGT        time.Time
	StationID  int64
	SourceID   int64
	VariableID int64
	UnitID     int64
}

// SeriesPoint is one interval value. Points are keyed by (SeriesID, Time);
// a later forecast overwrites an earlier one for the same instant.
type SeriesPoint struct {
	SeriesID string
	Time     time.Time
	FGT      time.Time
	Value    float64
}

// Template is the validated metadata shared by every cell of one grid.
// Coordinates are filled in per cell.
type Template struct {
	SimTag       string
	Model        string
	Version      string
	Variable     string
	Unit         string
	UnitType     string
	StationKind  StationKind
	Policy       Policy
	ShiftMinutes int

	SourceID   int64
	VariableID int64
	UnitID     int64
}

// Metadata returns the series metadata of the cell at (lat, lon). The
// coordinates are rounded here so identity always uses rounded values.
func (t Template) Metadata(lat, lon float64) SeriesMetadata {
	return SeriesMetadata{
		SimTag:    t.SimTag,
		Model:     t.Model,
		Version:   t.Version,
		Variable:  t.Variable,
		Unit:      t.Unit,
		UnitType:  t.UnitType,
		Latitude:  RoundCoord(lat),
		Longitude: RoundCoord(lon),
	}
}

// Completion describes a finished grid ingestion for downstream notification.
type Completion struct {
	BatchID     string    `json:"batch_id"`
	Source      string    `json:"source"`
	Version     string    `json:"version"`
	RunDate     string    `json:"run_date"`
	Path        string    `json:"path"`
	FGT         time.Time `json:"fgt"`
	Cells       int       `json:"cells"`
	FailedCells int       `json:"failed_cells"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completed_at"`
}

// IntervalTimes returns the stored timestamp of each interval value derived
// from an accumulated series sampled at times: the policy label converted to
// local wall clock and shifted.
func (t Template) IntervalTimes(times []time.Time) []time.Time {
	labels := t.Policy.Label(times)
	for i, l := range labels {
		labels[i] = ToLocal(l, t.ShiftMinutes)
	}
	return labels
}
