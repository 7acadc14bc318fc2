// Package domain models gridded numerical weather prediction (NWP) rainfall
// output and the time series derived from it.
//
// # Data Source
//
// WRF model runs write one NetCDF file per sub-model and run date, e.g.
// STATIONS_2019-04-18/d03_RAINNC_2019-04-18_A.nc. Each file carries:
//
//	XLAT, XLONG   [Time, south_north, west_east] coordinate grids (degrees)
//	XTIME         [Time] minutes since the run origin
//	RAINNC        [Time, south_north, west_east] non-convective accumulation (mm)
//	RAINC         [Time, south_north, west_east] convective accumulation (mm)
//
// The XTIME units attribute has the form "minutes since 2019-04-02T18:00:00"
// and is always UTC.
//
// # Accumulations
//
// The model reports running totals. Interval rainfall is recovered with one of
// two policies (see [Policy]):
//
//	first_difference    out[i] = acc[i+1] - acc[i], labelled times[i+1]
//	two_point_average   avg[i] = (acc[i] + acc[i+1]) / 2,
//	                    out[i] = avg[i] - avg[i-1] (avg[-1] = 0), labelled times[i]
//
// Negative intervals (model resets) are kept as-is; consumers expect raw
// model output.
//
// # Local Time
//
// Points, run windows and forecast generation times (fgt) are stored as Sri
// Lanka wall-clock values (UTC+05:30, no DST). They are carried as UTC-located
// time.Time values so SQL drivers persist the wall clock unchanged. See
// [ToLocal].
//
// # Identity
//
// Coordinates are rounded to 6 decimal digits before any identity is derived.
// Stations are keyed by (lat, lon, kind) and named "<kind>_<lat>_<lon>".
// Series identifiers are SHA-256 digests of the canonical JSON rendering of
// [SeriesMetadata], byte-compatible with json.dumps(meta, sort_keys=True) so
// series created by earlier pushers resolve to the same id. See [SeriesID].
package domain
