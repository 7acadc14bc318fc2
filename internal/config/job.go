package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

// DefaultInput is the single-field WRF rainfall file layout under WRFDir.
var DefaultInput = Input{
	Pattern:  "STATIONS_{date}/d03_RAINNC_{date}_{model}.nc",
	Variable: "RAINNC",
}

// Input locates one accumulated field. Pattern is relative to the job's WRF
// directory; {date} and {model} are replaced with the run date and sub-model.
type Input struct {
	Pattern  string `yaml:"pattern"`
	Variable string `yaml:"variable"`
}

// Path renders the input location for one sub-model and date.
func (in Input) Path(dir, subModel, date string) string {
	r := strings.NewReplacer("{date}", date, "{model}", subModel)
	p := r.Replace(in.Pattern)
	if dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Job describes one ingestion batch: which files to read and the metadata
// template applied to every series they produce.
type Job struct {
	WRFDir    string   `yaml:"wrf_dir"`
	Model     string   `yaml:"model"`
	Version   string   `yaml:"version"`
	SubModels []string `yaml:"sub_models"`
	Dates     []string `yaml:"dates"`

	SimTag      string `yaml:"sim_tag"`
	Variable    string `yaml:"variable"`
	Unit        string `yaml:"unit"`
	UnitType    string `yaml:"unit_type"`
	StationKind string `yaml:"station_kind"`
	Policy      string `yaml:"policy"`

	Inputs           []Input `yaml:"inputs"`
	TimeShiftMinutes int     `yaml:"time_shift_minutes"`
}

// LoadJob reads and validates a YAML job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	return ParseJob(data)
}

// ParseJob decodes a YAML job document, applies defaults and validates it.
// Unknown keys are rejected.
func ParseJob(data []byte) (*Job, error) {
	var job Job
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	job.applyDefaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *Job) applyDefaults() {
	if len(j.Dates) == 0 {
		j.Dates = []string{domain.Yesterday()}
	}
	if j.StationKind == "" {
		j.StationKind = string(domain.KindWRF)
	}
	if j.Policy == "" {
		j.Policy = string(domain.PolicyFirstDifference)
	}
	if len(j.Inputs) == 0 {
		j.Inputs = []Input{DefaultInput}
	}
}

// Validate checks that the job can produce well-formed series metadata.
func (j *Job) Validate() error {
	var errs []error
	required := []struct{ key, val string }{
		{"model", j.Model},
		{"version", j.Version},
		{"sim_tag", j.SimTag},
		{"variable", j.Variable},
		{"unit", j.Unit},
		{"unit_type", j.UnitType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if len(j.SubModels) == 0 {
		errs = append(errs, errors.New("sub_models must not be empty"))
	}
	for _, d := range j.Dates {
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			errs = append(errs, fmt.Errorf("invalid date %q: want YYYY-MM-DD", d))
		}
	}

	policy, err := domain.ParsePolicy(j.Policy)
	if err != nil {
		errs = append(errs, err)
	}
	switch {
	case err != nil:
	case policy == domain.PolicyFirstDifference && len(j.Inputs) != 1:
		errs = append(errs, fmt.Errorf("policy %s takes exactly one input, got %d", policy, len(j.Inputs)))
	case len(j.Inputs) > 2:
		errs = append(errs, fmt.Errorf("policy %s takes one or two inputs, got %d", policy, len(j.Inputs)))
	}
	for i, in := range j.Inputs {
		if in.Pattern == "" || in.Variable == "" {
			errs = append(errs, fmt.Errorf("inputs[%d]: pattern and variable are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid job: %w", errors.Join(errs...))
	}
	return nil
}

// SourceName is the source reference for one sub-model, e.g. "WRF_A".
func (j *Job) SourceName(subModel string) string {
	return j.Model + "_" + subModel
}

// Template builds the metadata template for one sub-model. Reference ids are
// filled in by the caller once they are resolved.
func (j *Job) Template(subModel string) domain.Template {
	policy, _ := domain.ParsePolicy(j.Policy)
	return domain.Template{
		SimTag:       j.SimTag,
		Model:        j.SourceName(subModel),
		Version:      j.Version,
		Variable:     j.Variable,
		Unit:         j.Unit,
		UnitType:     j.UnitType,
		StationKind:  domain.StationKind(j.StationKind),
		Policy:       policy,
		ShiftMinutes: j.TimeShiftMinutes,
	}
}
