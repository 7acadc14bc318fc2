package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnits(t *testing.T) {
	origin, err := ParseTimeUnits("minutes since 2019-04-02T18:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 4, 2, 18, 0, 0, 0, time.UTC), origin)

	origin, err = ParseTimeUnits("minutes since 2019-04-02 18:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 4, 2, 18, 0, 0, 0, time.UTC), origin)

	_, err = ParseTimeUnits("hours since 2019-04-02T18:00:00")
	assert.Error(t, err)

	_, err = ParseTimeUnits("minutes since yesterday")
	assert.Error(t, err)
}

func TestDecodeTimes(t *testing.T) {
	times, err := DecodeTimes("minutes since 2019-04-02T18:00:00", []float64{0, 15, 90.5})
	require.NoError(t, err)
	require.Len(t, times, 3)
	assert.Equal(t, time.Date(2019, 4, 2, 18, 0, 0, 0, time.UTC), times[0])
	assert.Equal(t, time.Date(2019, 4, 2, 18, 15, 0, 0, time.UTC), times[1])
	assert.Equal(t, time.Date(2019, 4, 2, 19, 30, 30, 0, time.UTC), times[2])
}

func TestToLocal(t *testing.T) {
	utc := time.Date(2019, 4, 2, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "2019-04-02 23:30:00", ToLocal(utc, 0).Format(WallClockLayout))
	assert.Equal(t, "2019-04-02 23:45:00", ToLocal(utc, 15).Format(WallClockLayout))

	// same instant in another zone converts identically
	ny := utc.In(time.FixedZone("EDT", -4*3600))
	assert.Equal(t, ToLocal(utc, 0), ToLocal(ny, 0))
}

func TestYesterday(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2019, 4, 19, 20, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	// 20:00 UTC is already 01:30 on the 20th in local time.
	assert.Equal(t, "2019-04-19", Yesterday())
}
