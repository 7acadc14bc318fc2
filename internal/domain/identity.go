package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// CoordPrecision is the number of decimal digits kept before identity is
// derived from a coordinate.
const CoordPrecision = 6

// RoundCoord rounds v to CoordPrecision decimal digits, exactly as parsing its
// "%.6f" rendering would.
func RoundCoord(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', CoordPrecision, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// FormatCoord renders a coordinate as the shortest decimal that round-trips,
// always with a fractional part ("80.0", "7.123456"). Very small magnitudes
// use exponent notation ("5e-05"). The rendering is locale-independent.
func FormatCoord(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if abs := math.Abs(v); v != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// StationKey returns "<lat>_<lon>" from the rounded coordinates.
func StationKey(lat, lon float64) string {
	return FormatCoord(RoundCoord(lat)) + "_" + FormatCoord(RoundCoord(lon))
}

// StationName returns "<kind>_<lat>_<lon>".
func StationName(kind StationKind, lat, lon float64) string {
	return string(kind) + "_" + StationKey(lat, lon)
}

// NewStation builds the station for a grid point.
func NewStation(kind StationKind, lat, lon float64) Station {
	return Station{
		Name:        StationName(kind, lat, lon),
		Latitude:    RoundCoord(lat),
		Longitude:   RoundCoord(lon),
		Kind:        kind,
		Description: strings.ToUpper(string(kind)) + " point",
	}
}

// SeriesID returns the hex SHA-256 of the canonical serialization of meta.
// Equal metadata always yields the same id, in any process.
func SeriesID(meta SeriesMetadata) (string, error) {
	if !isFinite(meta.Latitude) || !isFinite(meta.Longitude) {
		return "", &IdentityComputationError{
			Err: fmt.Errorf("non-finite coordinates (%v, %v)", meta.Latitude, meta.Longitude),
		}
	}
	if meta.Model == "" || meta.Variable == "" {
		return "", &IdentityComputationError{Err: errors.New("model and variable are required")}
	}
	sum := sha256.Sum256([]byte(CanonicalJSON(meta.Fields())))
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON renders fields with sorted keys, ", " and ": " separators and
// ASCII-only escapes, so ids stay stable against series already stored.
func CanonicalJSON(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		writeQuoted(&b, k)
		b.WriteString(": ")
		writeQuoted(&b, fields[k])
	}
	b.WriteByte('}')
	return b.String()
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r < 0x7f:
				b.WriteRune(r)
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				fmt.Fprintf(b, `\u%04x\u%04x`, r1, r2)
			default:
				fmt.Fprintf(b, `\u%04x`, r)
			}
		}
	}
	b.WriteByte('"')
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
