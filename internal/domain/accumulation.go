package domain

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Policy selects how accumulated totals become interval values.
type Policy string

const (
	// PolicyFirstDifference differences a single accumulation field.
	PolicyFirstDifference Policy = "first_difference"
	// PolicyTwoPointAverage smooths the summed convective and non-convective
	// fields with a trailing pairwise average before differencing.
	PolicyTwoPointAverage Policy = "two_point_average"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyFirstDifference, PolicyTwoPointAverage:
		return p, nil
	default:
		return "", fmt.Errorf("unknown accumulation policy %q", s)
	}
}

// Intervals converts an accumulated series into len(acc)-1 interval values.
func (p Policy) Intervals(acc []float64) []float64 {
	if p == PolicyTwoPointAverage {
		return TwoPointAverage(acc)
	}
	return FirstDifference(acc)
}

// Label returns the timestamp of each interval produced by Intervals.
// First differences are right-labelled; two-point averages keep the left
// sample's timestamp.
func (p Policy) Label(times []time.Time) []time.Time {
	if len(times) < 2 {
		return nil
	}
	out := make([]time.Time, len(times)-1)
	if p == PolicyTwoPointAverage {
		copy(out, times[:len(times)-1])
	} else {
		copy(out, times[1:])
	}
	return out
}

// FirstDifference returns out[i] = acc[i+1] - acc[i].
func FirstDifference(acc []float64) []float64 {
	if len(acc) < 2 {
		return []float64{}
	}
	out := make([]float64, len(acc)-1)
	floats.SubTo(out, acc[1:], acc[:len(acc)-1])
	return out
}

// TwoPointAverage averages consecutive samples, then first-differences the
// averages against an implicit leading zero.
func TwoPointAverage(acc []float64) []float64 {
	if len(acc) < 2 {
		return []float64{}
	}
	n := len(acc) - 1
	avg := make([]float64, n)
	floats.AddTo(avg, acc[1:], acc[:n])
	floats.Scale(0.5, avg)

	out := make([]float64, n)
	out[0] = avg[0]
	if n > 1 {
		floats.SubTo(out[1:], avg[1:], avg[:n-1])
	}
	return out
}
