// Command verify checks a store against the input files of a job: every grid
// point has its station, every series has its run row with the expected
// window, and every stored value matches the transform of the file that last
// wrote it.
//
// Usage:
//
//	DATABASE_DRIVER=sqlite DATABASE_URL=fcst.db go run ./cmd/verify -job job.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/netcdf"
	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/postgres"
	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/sqlstore"
	"github.com/couchcryptid/fcst-grid-ingest/internal/config"
	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
	"github.com/couchcryptid/fcst-grid-ingest/internal/ingest"
)

const valueTolerance = 1e-6

type store interface {
	ListStations(ctx context.Context, kind domain.StationKind) (map[string]int64, error)
	GetRun(ctx context.Context, seriesID string) (domain.Run, error)
	FetchPoints(ctx context.Context, seriesID string) ([]domain.SeriesPoint, error)
	Close() error
}

// phase tracks pass/fail for a verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// input is one file of the job that exists on disk.
type input struct {
	subModel string
	date     string
	grid     domain.Grid
	tpl      domain.Template
	fgt      time.Time
}

func main() {
	jobFile := flag.String("job", "", "job file whose inputs should be verified")
	flag.Parse()

	if *jobFile == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*jobFile); code != 0 {
		os.Exit(code)
	}
}

func run(jobFile string) int {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	job, err := config.LoadJob(jobFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open store: %v\n", err)
		return 1
	}
	defer db.Close()

	fmt.Println("=== Forecast Grid Verification ===")
	fmt.Println()

	inputs, err := loadInputs(job, netcdf.NewReader(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	stations, err := db.ListStations(ctx, domain.StationKind(job.StationKind))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list stations: %v\n", err)
		return 1
	}

	phases := []*phase{
		verifyStations(inputs, stations),
		verifyRuns(ctx, db, inputs, stations),
		verifyValues(ctx, db, inputs),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d present of %d expected, %d stations of kind %s\n",
		len(inputs), len(job.SubModels)*len(job.Dates), len(stations), job.StationKind)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

// loadInputs reads every present file of job. Missing files are skipped the
// same way the ingest command skips them.
func loadInputs(job *config.Job, reader *netcdf.Reader) ([]input, error) {
	var out []input
	for _, sub := range job.SubModels {
		for _, date := range job.Dates {
			primary := job.Inputs[0].Path(job.WRFDir, sub, date)
			fgt, err := ingest.GenerationTime(primary)
			var missing *domain.MissingInputError
			if errors.As(err, &missing) {
				fmt.Printf("  skip %s (missing)\n", primary)
				continue
			}
			if err != nil {
				return nil, err
			}

			grids := make([]domain.Grid, len(job.Inputs))
			for i, in := range job.Inputs {
				grids[i], _, err = reader.ReadGrid(in.Path(job.WRFDir, sub, date), in.Variable)
				if err != nil {
					return nil, err
				}
			}
			grid, err := domain.CombineGrids(grids...)
			if err != nil {
				return nil, err
			}
			out = append(out, input{subModel: sub, date: date, grid: grid, tpl: job.Template(sub), fgt: fgt})
		}
	}
	return out, nil
}

func verifyStations(inputs []input, stations map[string]int64) *phase {
	p := &phase{name: "Phase 1: Stations"}
	seen := map[string]bool{}
	for _, in := range inputs {
		for _, lat := range in.grid.Lats {
			for _, lon := range in.grid.Lons {
				meta := in.tpl.Metadata(lat, lon)
				name := domain.StationName(in.tpl.StationKind, meta.Latitude, meta.Longitude)
				if seen[name] {
					continue
				}
				seen[name] = true
				if _, ok := stations[name]; !ok {
					p.errorf("station %s missing", name)
				}
			}
		}
	}
	return p
}

func verifyRuns(ctx context.Context, db store, inputs []input, stations map[string]int64) *phase {
	p := &phase{name: "Phase 2: Run ledger"}
	for _, in := range inputs {
		times := in.tpl.IntervalTimes(in.grid.Times)
		for _, lat := range in.grid.Lats {
			for _, lon := range in.grid.Lons {
				meta := in.tpl.Metadata(lat, lon)
				id, err := domain.SeriesID(meta)
				if err != nil {
					p.errorf("%s/%s (%v, %v): %v", in.subModel, in.date, lat, lon, err)
					continue
				}
				run, err := db.GetRun(ctx, id)
				if err != nil {
					p.errorf("%s/%s run %s: %v", in.subModel, in.date, id, err)
					continue
				}
				if want := stations[domain.StationName(in.tpl.StationKind, meta.Latitude, meta.Longitude)]; run.StationID != want {
					p.errorf("run %s: station %d, want %d", id, run.StationID, want)
				}
				if run.FGT.Before(in.fgt) {
					p.errorf("run %s: fgt %s older than file %s", id, run.FGT.Format(domain.WallClockLayout), in.fgt.Format(domain.WallClockLayout))
				}
				if len(times) > 0 && run.FGT.Equal(in.fgt) {
					if !run.Start.Equal(times[0]) || !run.End.Equal(times[len(times)-1]) {
						p.errorf("run %s: window %s..%s, want %s..%s", id,
							run.Start.Format(domain.WallClockLayout), run.End.Format(domain.WallClockLayout),
							times[0].Format(domain.WallClockLayout), times[len(times)-1].Format(domain.WallClockLayout))
					}
				}
			}
		}
	}
	return p
}

func verifyValues(ctx context.Context, db store, inputs []input) *phase {
	p := &phase{name: "Phase 3: Series values"}
	for _, in := range inputs {
		times := in.tpl.IntervalTimes(in.grid.Times)
		for y, lat := range in.grid.Lats {
			for x, lon := range in.grid.Lons {
				id, err := domain.SeriesID(in.tpl.Metadata(lat, lon))
				if err != nil {
					continue
				}
				points, err := db.FetchPoints(ctx, id)
				if err != nil {
					p.errorf("series %s: %v", id, err)
					continue
				}
				stored := make(map[int64]domain.SeriesPoint, len(points))
				for _, pt := range points {
					stored[pt.Time.Unix()] = pt
				}

				values := in.tpl.Policy.Intervals(in.grid.Series(y, x))
				for i, v := range values {
					pt, ok := stored[times[i].Unix()]
					if !ok {
						p.errorf("series %s: no value at %s", id, times[i].Format(domain.WallClockLayout))
						continue
					}
					// A later forecast owns overlapping instants.
					if !pt.FGT.Equal(in.fgt) {
						continue
					}
					if math.Abs(pt.Value-v) > valueTolerance {
						p.errorf("series %s at %s: stored %g, want %g", id, times[i].Format(domain.WallClockLayout), pt.Value, v)
					}
				}
			}
		}
	}
	return p
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	default:
		return sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	}
}
