package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/fcst-grid-ingest/internal/config"
	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
	"github.com/couchcryptid/fcst-grid-ingest/internal/observability"
)

// FileStatus is the outcome of one (sub-model, date) input.
type FileStatus string

const (
	FileIngested FileStatus = "ingested"
	FileSkipped  FileStatus = "skipped"
	FileFailed   FileStatus = "failed"
)

// FileReport describes what happened to one input.
type FileReport struct {
	SubModel string
	Date     string
	Path     string
	Status   FileStatus
	FGT      time.Time
	Summary  Summary
	Err      error
}

// Report collects the file reports of one batch in job order.
type Report struct {
	BatchID string
	Files   []FileReport
}

// Totals sums the cell summaries of every file.
func (r Report) Totals() Summary {
	var s Summary
	for _, f := range r.Files {
		s.Add(f.Summary)
	}
	return s
}

// Count returns how many files ended with status.
func (r Report) Count(status FileStatus) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// HasFailures reports whether any file failed or any cell failed to write.
func (r Report) HasFailures() bool {
	return r.Count(FileFailed) > 0 || r.Totals().Failed > 0
}

// Status is a point-in-time view of the current or last batch.
type Status struct {
	BatchID   string    `json:"batch_id,omitempty"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Files     int       `json:"files"`
	Ingested  int       `json:"ingested"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Totals    Summary   `json:"totals"`
}

func (s *Status) record(fr FileReport) {
	s.Files++
	switch fr.Status {
	case FileIngested:
		s.Ingested++
	case FileSkipped:
		s.Skipped++
	case FileFailed:
		s.Failed++
	}
	s.Totals.Add(fr.Summary)
}

// Runner ingests every sub-model and date of a job.
type Runner struct {
	reader   GridReader
	refs     ReferenceStore
	stations *StationCache
	ingestor *Ingestor
	notifier CompletionNotifier
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu     sync.Mutex
	status Status
}

// NewRunner creates a Runner. notifier may be nil.
func NewRunner(reader GridReader, refs ReferenceStore, stations *StationCache, ingestor *Ingestor, notifier CompletionNotifier, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		reader:   reader,
		refs:     refs,
		stations: stations,
		ingestor: ingestor,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run ingests job. Sub-models run concurrently, each walking its dates in
// order. Missing inputs are skipped and file-level failures are reported;
// neither aborts the batch. Run returns an error only when reference data
// cannot be resolved or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, job *config.Job) (Report, error) {
	report := Report{BatchID: uuid.NewString()}
	r.setStatus(Status{BatchID: report.BatchID, Running: true, StartedAt: domain.Now()})
	r.metrics.IngestRunning.Set(1)
	defer func() {
		r.metrics.IngestRunning.Set(0)
		r.mu.Lock()
		r.status.Running = false
		r.mu.Unlock()
	}()

	templates, err := r.resolveTemplates(ctx, job)
	if err != nil {
		return report, err
	}

	loaded, err := r.stations.Refresh(ctx, domain.StationKind(job.StationKind))
	if err != nil {
		return report, fmt.Errorf("preload stations: %w", err)
	}
	r.logger.Info("batch started",
		"batch_id", report.BatchID,
		"sub_models", len(job.SubModels),
		"dates", len(job.Dates),
		"cached_stations", loaded,
	)

	perModel := make([][]FileReport, len(job.SubModels))
	var g errgroup.Group
	for i, sub := range job.SubModels {
		g.Go(func() error {
			for _, date := range job.Dates {
				if ctx.Err() != nil {
					return nil
				}
				fr := r.ingestFile(ctx, job, templates[i], sub, date, report.BatchID)
				perModel[i] = append(perModel[i], fr)
				r.mu.Lock()
				r.status.record(fr)
				r.mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, files := range perModel {
		report.Files = append(report.Files, files...)
	}

	totals := report.Totals()
	r.logger.Info("batch finished",
		"batch_id", report.BatchID,
		"ingested", report.Count(FileIngested),
		"skipped", report.Count(FileSkipped),
		"failed", report.Count(FileFailed),
		"cells", totals.Cells,
		"failed_cells", totals.Failed,
		"points", totals.Points,
	)
	return report, ctx.Err()
}

// Status returns the progress of the current batch, or the outcome of the
// last one when none is running.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// resolveTemplates builds one template per sub-model with its reference ids,
// creating source, variable and unit rows on first use.
func (r *Runner) resolveTemplates(ctx context.Context, job *config.Job) ([]domain.Template, error) {
	variableID, err := r.refs.GetOrCreateVariable(ctx, job.Variable)
	if err != nil {
		return nil, fmt.Errorf("resolve variable %q: %w", job.Variable, err)
	}
	unitID, err := r.refs.GetOrCreateUnit(ctx, job.Unit, job.UnitType)
	if err != nil {
		return nil, fmt.Errorf("resolve unit %q: %w", job.Unit, err)
	}

	out := make([]domain.Template, len(job.SubModels))
	for i, sub := range job.SubModels {
		tpl := job.Template(sub)
		tpl.SourceID, err = r.refs.GetOrCreateSource(ctx, tpl.Model)
		if err != nil {
			return nil, fmt.Errorf("resolve source %q: %w", tpl.Model, err)
		}
		tpl.VariableID = variableID
		tpl.UnitID = unitID
		out[i] = tpl
	}
	return out, nil
}

func (r *Runner) ingestFile(ctx context.Context, job *config.Job, tpl domain.Template, sub, date, batchID string) FileReport {
	paths := make([]string, len(job.Inputs))
	for i, in := range job.Inputs {
		paths[i] = in.Path(job.WRFDir, sub, date)
	}
	fr := FileReport{SubModel: sub, Date: date, Path: paths[0]}
	log := r.logger.With("sub_model", sub, "date", date, "path", fr.Path)

	fgt, err := GenerationTime(paths[0])
	if err == nil {
		fr.FGT = fgt
		var grid domain.Grid
		grid, err = r.readInputs(job.Inputs, paths)
		if err == nil {
			fr.Summary, err = r.ingestor.IngestGrid(ctx, grid, tpl, fgt)
		}
	}

	var missing *domain.MissingInputError
	switch {
	case errors.As(err, &missing):
		fr.Status = FileSkipped
		fr.Err = err
		log.Warn("input missing, skipping", "missing", missing.Path)
	case err != nil:
		fr.Status = FileFailed
		fr.Err = err
		log.Error("file ingest failed", "error", err)
	default:
		fr.Status = FileIngested
		log.Info("file ingested",
			"fgt", fgt.Format(domain.WallClockLayout),
			"cells", fr.Summary.Cells,
			"failed_cells", fr.Summary.Failed,
			"points", fr.Summary.Points,
			"stations_created", fr.Summary.StationsCreated,
			"runs_created", fr.Summary.RunsCreated,
		)
	}
	r.metrics.FilesProcessed.WithLabelValues(string(fr.Status)).Inc()

	if fr.Status == FileIngested {
		r.notify(ctx, domain.Completion{
			BatchID:     batchID,
			Source:      tpl.Model,
			Version:     tpl.Version,
			RunDate:     date,
			Path:        fr.Path,
			FGT:         fgt,
			Cells:       fr.Summary.Cells,
			FailedCells: fr.Summary.Failed,
			Points:      fr.Summary.Points,
			CompletedAt: domain.Now(),
		})
	}
	return fr
}

// readInputs loads every input field and sums them into one grid.
func (r *Runner) readInputs(inputs []config.Input, paths []string) (domain.Grid, error) {
	grids := make([]domain.Grid, len(inputs))
	for i, in := range inputs {
		g, _, err := r.reader.ReadGrid(paths[i], in.Variable)
		if err != nil {
			return domain.Grid{}, err
		}
		grids[i] = g
	}
	if len(grids) == 1 {
		return grids[0], nil
	}
	return domain.CombineGrids(grids...)
}

func (r *Runner) notify(ctx context.Context, c domain.Completion) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyCompletion(ctx, c); err != nil {
		r.metrics.Notifications.WithLabelValues("error").Inc()
		r.logger.Warn("completion notification failed", "error", err, "path", c.Path)
		return
	}
	r.metrics.Notifications.WithLabelValues("success").Inc()
}

// GenerationTime is the forecast generation time of a file: its
// modification time as local wall clock, to the second.
func GenerationTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, &domain.MissingInputError{Path: path}
		}
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return domain.ToLocal(info.ModTime(), 0).Truncate(time.Second), nil
}
