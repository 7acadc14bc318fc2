package domain

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Grid is an immutable snapshot of one ingestion input: accumulated values
// indexed [time][lat][lon].
type Grid struct {
	Times  []time.Time
	Lats   []float64
	Lons   []float64
	Values [][][]float64
}

// NewGrid validates the axes against the value array. Axes must be sorted
// ascending and every dimension must match its axis length exactly.
func NewGrid(times []time.Time, lats, lons []float64, values [][][]float64) (Grid, error) {
	if !sort.Float64sAreSorted(lats) {
		return Grid{}, &MalformedGridError{Reason: "latitude axis not ascending"}
	}
	if !sort.Float64sAreSorted(lons) {
		return Grid{}, &MalformedGridError{Reason: "longitude axis not ascending"}
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return Grid{}, &MalformedGridError{Reason: fmt.Sprintf("time axis not monotonic at index %d", i)}
		}
	}
	if len(values) != len(times) {
		return Grid{}, &MalformedGridError{
			Reason: fmt.Sprintf("time dimension %d does not match %d timestamps", len(values), len(times)),
		}
	}
	for t, plane := range values {
		if len(plane) != len(lats) {
			return Grid{}, &MalformedGridError{
				Reason: fmt.Sprintf("step %d: lat dimension %d does not match axis %d", t, len(plane), len(lats)),
			}
		}
		for y, row := range plane {
			if len(row) != len(lons) {
				return Grid{}, &MalformedGridError{
					Reason: fmt.Sprintf("step %d row %d: lon dimension %d does not match axis %d", t, y, len(row), len(lons)),
				}
			}
		}
	}
	return Grid{Times: times, Lats: lats, Lons: lons, Values: values}, nil
}

// Height is the number of latitude rows.
func (g Grid) Height() int { return len(g.Lats) }

// Width is the number of longitude columns.
func (g Grid) Width() int { return len(g.Lons) }

// Series returns the accumulated values of cell (y, x) over time.
func (g Grid) Series(y, x int) []float64 {
	out := make([]float64, len(g.Times))
	for t := range g.Values {
		out[t] = g.Values[t][y][x]
	}
	return out
}

// CombineGrids sums grids elementwise. All grids must share axes exactly.
func CombineGrids(grids ...Grid) (Grid, error) {
	if len(grids) == 0 {
		return Grid{}, &MalformedGridError{Reason: "no grids to combine"}
	}
	base := grids[0]
	if len(grids) == 1 {
		return base, nil
	}
	for i, g := range grids[1:] {
		if err := sameAxes(base, g); err != nil {
			return Grid{}, &MalformedGridError{Reason: fmt.Sprintf("field %d: %v", i+1, err)}
		}
	}

	values := make([][][]float64, len(base.Values))
	for t := range base.Values {
		values[t] = make([][]float64, len(base.Lats))
		for y := range base.Values[t] {
			row := make([]float64, len(base.Lons))
			copy(row, base.Values[t][y])
			for _, g := range grids[1:] {
				floats.Add(row, g.Values[t][y])
			}
			values[t][y] = row
		}
	}
	return Grid{Times: base.Times, Lats: base.Lats, Lons: base.Lons, Values: values}, nil
}

func sameAxes(a, b Grid) error {
	if len(a.Times) != len(b.Times) {
		return fmt.Errorf("time axis length %d != %d", len(b.Times), len(a.Times))
	}
	for i := range a.Times {
		if !a.Times[i].Equal(b.Times[i]) {
			return fmt.Errorf("time axis differs at index %d", i)
		}
	}
	if !floats.Equal(a.Lats, b.Lats) {
		return fmt.Errorf("latitude axis differs")
	}
	if !floats.Equal(a.Lons, b.Lons) {
		return fmt.Errorf("longitude axis differs")
	}
	return nil
}
