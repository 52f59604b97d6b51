package snapshot

import (
	"testing"
	"time"

	"nbaodds/backfill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloor(t *testing.T) {
	in := time.Date(2024, 4, 10, 22, 43, 17, 0, time.UTC)
	assert.Equal(t, "2024-04-10T22:40:00Z", Format(in))

	aligned := time.Date(2024, 4, 10, 22, 45, 0, 0, time.UTC)
	assert.Equal(t, "2024-04-10T22:45:00Z", Format(aligned), "Aligned instants are unchanged")
}

func TestFloor_ConvertsToUTC(t *testing.T) {
	eastern := time.FixedZone("EDT", -4*3600)
	in := time.Date(2024, 4, 10, 19, 33, 0, 0, eastern)
	assert.Equal(t, "2024-04-10T23:30:00Z", Format(in))
}

func TestCompute_GameLines(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     string
	}{
		{Conservative, "2024-04-10T19:30:00Z"},
		{Pregame, "2024-04-10T21:30:00Z"},
		{Final, "2024-04-10T22:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			got, err := Compute("2024-04-10T23:30:00Z", "2024-04-10", tt.strategy, models.ResourceGameLines)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_PlayerProps(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     string
	}{
		{Conservative, "2024-04-10T21:30:00Z"},
		{Pregame, "2024-04-10T22:30:00Z"},
		{Final, "2024-04-10T23:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			got, err := Compute("2024-04-10T23:30:00Z", "2024-04-10", tt.strategy, models.ResourcePlayerProps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_OffsetResultIsFloored(t *testing.T) {
	got, err := Compute("2024-04-11T02:43:17Z", "2024-04-10", Conservative, models.ResourceGameLines)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10T22:40:00Z", got)
}

func TestCompute_GameLinesWithoutStartTimeFallsBack(t *testing.T) {
	got, err := Compute("", "2024-04-10", Conservative, models.ResourceGameLines)
	require.NoError(t, err, "Missing start time is not an error for game lines")
	assert.Equal(t, "2024-04-10T15:00:00Z", got)
}

func TestCompute_UnparsableStartTimeFallsBack(t *testing.T) {
	got, err := Compute("TBD", "2024-04-10", Pregame, models.ResourceGameLines)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10T15:00:00Z", got)

	got, err = Compute("TBD", "2024-04-10", Pregame, models.ResourcePlayerProps)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10T15:00:00Z", got)
}

func TestCompute_PlayerPropsRequireStartTime(t *testing.T) {
	_, err := Compute("", "2024-04-10", Pregame, models.ResourcePlayerProps)
	assert.ErrorIs(t, err, ErrCommenceTimeRequired)
}

func TestCompute_AcceptsOffsetAndNaiveLayouts(t *testing.T) {
	got, err := Compute("2024-04-10T19:30:00-04:00", "2024-04-10", Final, models.ResourceGameLines)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10T22:30:00Z", got)

	got, err = Compute("2024-04-10 23:30:00", "2024-04-10", Final, models.ResourceGameLines)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10T22:30:00Z", got)
}

func TestCompute_UnknownStrategy(t *testing.T) {
	_, err := Compute("2024-04-10T23:30:00Z", "2024-04-10", Strategy("closing"), models.ResourceGameLines)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestDateSnapshot(t *testing.T) {
	got, err := DateSnapshot("2024-04-10", Conservative, models.ResourceGameLines)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10T19:00:00Z", got)

	got, err = DateSnapshot("2024-04-10", Final, models.ResourcePlayerProps)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10T22:30:00Z", got)

	_, err = DateSnapshot("04/10/2024", Final, models.ResourcePlayerProps)
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Pregame ")
	require.NoError(t, err)
	assert.Equal(t, Pregame, s)

	_, err = ParseStrategy("consrvative")
	require.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Contains(t, err.Error(), `did you mean "conservative"`)

	_, err = ParseStrategy("zzz")
	require.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Contains(t, err.Error(), "valid: conservative, final, pregame")
}

func TestEarliest(t *testing.T) {
	got, ok := Earliest([]string{"2024-04-10T22:30:00Z", "2024-04-10T17:00:00Z", "2024-04-10T23:00:00Z"})
	require.True(t, ok)
	assert.Equal(t, "2024-04-10T17:00:00Z", got)

	_, ok = Earliest(nil)
	assert.False(t, ok)
}
