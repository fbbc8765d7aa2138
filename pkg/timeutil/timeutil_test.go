package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay_RespectsLocation(t *testing.T) {
	almaty := time.FixedZone("UTC+5", 5*60*60)
	ts := time.Date(2026, 5, 1, 21, 30, 0, 0, time.UTC) // 02:30 next day in UTC+5

	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), StartOfDay(ts, nil))
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, almaty), StartOfDay(ts, almaty))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2026-02-14 ", nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-14", FormatDateStr(d))

	_, err = ParseDate("14.02.2026", nil)
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(t0)
	c.Advance(36 * time.Hour)

	assert.Equal(t, t0.Add(36*time.Hour), c.Now())
	assert.False(t, IsSameDay(t0, c.Now(), nil))
}
