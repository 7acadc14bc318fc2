package netcdf

import "fmt"

// The native reader returns typed slices whose element type follows the file
// (float for WRF output, double for some re-gridded products). These helpers
// widen them to float64.

func toVector(v any) ([]float64, error) {
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, f := range vals {
			out[i] = float64(f)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(vals))
		for i, n := range vals {
			out[i] = float64(n)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(vals))
		for i, n := range vals {
			out[i] = float64(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected 1-D numeric values, got %T", v)
	}
}

func toMatrix(v any) ([][]float64, error) {
	switch vals := v.(type) {
	case [][]float64:
		return vals, nil
	case [][]float32:
		out := make([][]float64, len(vals))
		for i, row := range vals {
			out[i], _ = toVector(row)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected 2-D float values, got %T", v)
	}
}

func toCube(v any) ([][][]float64, error) {
	switch vals := v.(type) {
	case [][][]float64:
		return vals, nil
	case [][][]float32:
		out := make([][][]float64, len(vals))
		for i, plane := range vals {
			out[i], _ = toMatrix(plane)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected 3-D float values, got %T", v)
	}
}

func toFloat32Cube(v [][][]float64) [][][]float32 {
	out := make([][][]float32, len(v))
	for t, plane := range v {
		out[t] = make([][]float32, len(plane))
		for y, row := range plane {
			out[t][y] = make([]float32, len(row))
			for x, f := range row {
				out[t][y][x] = float32(f)
			}
		}
	}
	return out
}
