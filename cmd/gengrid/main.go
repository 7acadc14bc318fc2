// Command gengrid writes synthetic WRF accumulated rainfall files for every
// input of a job, so the ingest command can be exercised without model output.
// Accumulations are non-decreasing and seeded, so reruns produce identical
// files.
//
// Usage:
//
//	go run ./cmd/gengrid -job testdata/job.yaml -rows 20 -cols 20 -steps 25
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/netcdf"
	"github.com/couchcryptid/fcst-grid-ingest/internal/config"
	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

type gridShape struct {
	rows, cols, steps int
	lat0, lon0, res   float64
	interval          time.Duration
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	jobFile := flag.String("job", "", "job file whose inputs should be generated")
	rows := flag.Int("rows", 10, "latitude rows")
	cols := flag.Int("cols", 10, "longitude columns")
	steps := flag.Int("steps", 25, "timestamps per file")
	lat0 := flag.Float64("lat0", 6.0, "southernmost latitude")
	lon0 := flag.Float64("lon0", 79.5, "westernmost longitude")
	res := flag.Float64("res", 0.125, "grid resolution in degrees")
	interval := flag.Duration("interval", time.Hour, "time between timestamps")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *jobFile == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -job")
	}
	if *rows < 1 || *cols < 1 || *steps < 1 {
		return fmt.Errorf("rows, cols and steps must be positive")
	}

	job, err := config.LoadJob(*jobFile)
	if err != nil {
		return err
	}
	shape := gridShape{
		rows: *rows, cols: *cols, steps: *steps,
		lat0: *lat0, lon0: *lon0, res: *res,
		interval: *interval,
	}
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	written := map[string]bool{}
	for _, sub := range job.SubModels {
		for _, date := range job.Dates {
			origin, err := time.Parse(domain.DateLayout, date)
			if err != nil {
				return fmt.Errorf("date %q: %w", date, err)
			}
			for _, in := range job.Inputs {
				path := in.Path(job.WRFDir, sub, date)
				if written[path] {
					return fmt.Errorf("%s: inputs sharing one file are not supported", path)
				}
				written[path] = true

				grid, err := syntheticGrid(rng, shape, origin)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return err
				}
				if err := netcdf.WriteGrid(path, in.Variable, grid, origin); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				log.Printf("%s: %s %dx%dx%d, max accumulation %.2f",
					path, in.Variable, shape.steps, shape.rows, shape.cols, maxAccumulation(grid))
			}
		}
	}
	log.Printf("wrote %d files", len(written))
	return nil
}

// syntheticGrid accumulates exponential hourly rainfall with dry spells.
func syntheticGrid(rng *rand.Rand, s gridShape, origin time.Time) (domain.Grid, error) {
	times := make([]time.Time, s.steps)
	for i := range times {
		times[i] = origin.Add(time.Duration(i) * s.interval)
	}
	lats := make([]float64, s.rows)
	for y := range lats {
		lats[y] = s.lat0 + float64(y)*s.res
	}
	lons := make([]float64, s.cols)
	for x := range lons {
		lons[x] = s.lon0 + float64(x)*s.res
	}

	values := make([][][]float64, s.steps)
	for t := range values {
		values[t] = make([][]float64, s.rows)
		for y := range values[t] {
			values[t][y] = make([]float64, s.cols)
			if t == 0 {
				continue
			}
			for x := range values[t][y] {
				rain := 0.0
				if rng.Float64() < 0.4 {
					rain = rng.ExpFloat64() * 2.5
				}
				values[t][y][x] = values[t-1][y][x] + rain
			}
		}
	}
	return domain.NewGrid(times, lats, lons, values)
}

func maxAccumulation(g domain.Grid) float64 {
	last := g.Values[len(g.Values)-1]
	m := 0.0
	for _, row := range last {
		m = max(m, floats.Max(row))
	}
	return m
}
