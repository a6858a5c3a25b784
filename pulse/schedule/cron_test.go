package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/errors"
)

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 17, 42, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 */1 * * *", time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)},
		{"*/5 * * * *", time.Date(2026, 10, 16, 9, 20, 0, 0, time.UTC)},
		{"30 6 * * *", time.Date(2026, 10, 17, 6, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{"0 8 * * MON", time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)},
		{"@hourly", time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)},
		{"@daily", time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := NextOccurrence(tt.expr, now, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextOccurrenceIsStrictlyAfter(t *testing.T) {
	onTheHour := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	got, err := NextOccurrence("0 * * * *", onTheHour, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, onTheHour.Add(time.Hour), got)
}

func TestNextOccurrenceInLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) // 09:00 in Tokyo

	got, err := NextOccurrence("0 6 * * *", now, jst)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseRecurrenceRejects(t *testing.T) {
	for _, expr := range []string{
		"",
		"bogus",
		"61 * * * *",
		"0 0 * * * *", // seconds field
		"@every 1h",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseRecurrence(expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBadRecurrence), "got %v", err)
		})
	}
}

func TestNeverFiring(t *testing.T) {
	_, err := NextOccurrence("0 0 30 2 *", time.Now(), time.UTC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRecurrence))
}

func TestRecurrenceString(t *testing.T) {
	r, err := ParseRecurrence("@weekly")
	require.NoError(t, err)
	assert.Equal(t, "@weekly", r.String())
}
