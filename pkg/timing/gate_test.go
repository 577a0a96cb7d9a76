package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

func TestCheck_DisabledOrNilIsAllowed(t *testing.T) {
	now := time.Date(2024, 6, 16, 3, 0, 0, 0, time.UTC) // Sunday 03:00

	result, err := Check(nil, now)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = Check(&models.TimingConfig{Enabled: false, Days: []string{"monday"}}, now)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestCheck_InsideWindow(t *testing.T) {
	cfg := &models.TimingConfig{
		Enabled: true,
		Days:    []string{"tuesday"},
		Start:   "09:00",
		End:     "17:00",
	}

	// Tuesday 10:00 UTC.
	result, err := Check(cfg, time.Date(2024, 6, 18, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.NextAllowed.IsZero())
}

func TestCheck_OutsideAllowedDays(t *testing.T) {
	cfg := &models.TimingConfig{
		Enabled: true,
		Days:    []string{"monday"},
		Start:   "09:00",
		End:     "17:00",
	}

	// Tuesday 10:00 UTC: the time of day is fine but the day is not. The next
	// allowed instant is the following Monday's window start.
	result, err := Check(cfg, time.Date(2024, 6, 18, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Date(2024, 6, 24, 9, 0, 0, 0, time.UTC), result.NextAllowed)
}

func TestCheck_BeforeWindowStartSameDay(t *testing.T) {
	cfg := &models.TimingConfig{
		Enabled: true,
		Days:    []string{"wednesday"},
		Start:   "09:00",
		End:     "17:00",
	}

	// Wednesday 08:30 UTC resumes at 09:00 the same day.
	result, err := Check(cfg, time.Date(2024, 6, 19, 8, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Date(2024, 6, 19, 9, 0, 0, 0, time.UTC), result.NextAllowed)
}

func TestCheck_AfterWindowEndRollsForward(t *testing.T) {
	cfg := &models.TimingConfig{
		Enabled: true,
		Days:    []string{"wednesday", "thursday"},
		Start:   "09:00",
		End:     "17:00",
	}

	// Wednesday 17:00 is outside the half-open window; next start is Thursday.
	result, err := Check(cfg, time.Date(2024, 6, 19, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC), result.NextAllowed)
}

func TestCheck_WindowBoundaries(t *testing.T) {
	cfg := &models.TimingConfig{
		Enabled: true,
		Days:    []string{"friday"},
		Start:   "09:00",
		End:     "17:00",
	}

	// Start is inclusive.
	result, err := Check(cfg, time.Date(2024, 6, 21, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// End is exclusive.
	result, err = Check(cfg, time.Date(2024, 6, 21, 16, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestCheck_DefaultsToWeekdayBusinessHours(t *testing.T) {
	cfg := &models.TimingConfig{Enabled: true}

	// Monday 10:00 falls inside the 09:00-17:00 weekday default.
	result, err := Check(cfg, time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// Saturday is outside the default days; next start is Monday 09:00.
	result, err = Check(cfg, time.Date(2024, 6, 22, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Date(2024, 6, 24, 9, 0, 0, 0, time.UTC), result.NextAllowed)
}

func TestCheck_TimezoneProjection(t *testing.T) {
	cfg := &models.TimingConfig{
		Enabled:  true,
		Days:     []string{"monday"},
		Start:    "09:00",
		End:      "17:00",
		Timezone: "America/Chicago",
	}

	// Monday 15:00 UTC is Monday 10:00 in Chicago (CDT): inside the window.
	result, err := Check(cfg, time.Date(2024, 6, 17, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// Monday 13:00 UTC is Monday 08:00 in Chicago: before the window opens.
	// 09:00 CDT is 14:00 UTC.
	result, err = Check(cfg, time.Date(2024, 6, 17, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Date(2024, 6, 17, 14, 0, 0, 0, time.UTC), result.NextAllowed)
}

func TestCheck_InvalidConfig(t *testing.T) {
	_, err := Check(&models.TimingConfig{Enabled: true, Timezone: "Mars/Olympus"}, time.Now())
	assert.Error(t, err)

	_, err = Check(&models.TimingConfig{Enabled: true, Start: "25:00"}, time.Now())
	assert.Error(t, err)

	// Unrecognized day names fall back to the weekday default rather than
	// producing an empty window.
	result, err := Check(&models.TimingConfig{Enabled: true, Days: []string{"caturday"}},
		time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
