package waits_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/waits"
)

// 2025-03-10 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func saturday(hour, minute int) time.Time {
	return time.Date(2025, 3, 15, hour, minute, 0, 0, time.UTC)
}

func weekWindow(days ...string) models.WaitData {
	return models.WaitData{
		Mode:  models.WaitModeBusinessHours,
		Days:  days,
		Start: "09:00",
		End:   "18:00",
	}
}

func TestComputeResume_Timer(t *testing.T) {
	t.Parallel()

	now := monday(10, 0)

	resume, err := waits.ComputeResume(models.WaitData{
		Mode: models.WaitModeTimer, Hours: 1, Minutes: 30, Seconds: 15,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, waits.ResumeDeadline, resume.Kind)
	assert.Equal(t, now.Add(time.Hour+30*time.Minute+15*time.Second), resume.At)
	assert.False(t, resume.Immediate(now))
}

func TestComputeResume_ZeroTimerIsImmediate(t *testing.T) {
	t.Parallel()

	now := monday(10, 0)

	resume, err := waits.ComputeResume(models.WaitData{Mode: models.WaitModeTimer}, now)
	require.NoError(t, err)
	assert.True(t, resume.Immediate(now))
}

func TestComputeResume_Message(t *testing.T) {
	t.Parallel()

	resume, err := waits.ComputeResume(models.WaitData{Mode: models.WaitModeMessage}, monday(10, 0))
	require.NoError(t, err)

	assert.Equal(t, waits.ResumeAwaitMessage, resume.Kind)
	assert.False(t, resume.Immediate(monday(10, 0)))
}

func TestComputeResume_UnknownMode(t *testing.T) {
	t.Parallel()

	_, err := waits.ComputeResume(models.WaitData{Mode: "lunar"}, monday(10, 0))
	assert.Error(t, err)
}

func TestComputeResume_BusinessHoursInsideWindow(t *testing.T) {
	t.Parallel()

	now := monday(10, 0)

	resume, err := waits.ComputeResume(weekWindow("mon", "tue", "wed", "thu", "fri"), now)
	require.NoError(t, err)

	assert.Equal(t, waits.ResumeDeadline, resume.Kind)
	assert.Equal(t, monday(18, 0), resume.At, "releases at the closing boundary")
	assert.False(t, resume.Immediate(now))
}

func TestComputeResume_BusinessHoursOutsideWindowIsImmediate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		now  time.Time
	}{
		{"saturday with mon-fri window", saturday(10, 0)},
		{"monday before opening", monday(8, 0)},
		{"monday exactly at close", monday(18, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resume, err := waits.ComputeResume(weekWindow("mon", "tue", "wed", "thu", "fri"), tt.now)
			require.NoError(t, err)

			assert.Equal(t, tt.now, resume.At, "already outside, resumes at once")
			assert.True(t, resume.Immediate(tt.now))
		})
	}
}

func TestComputeResume_BusinessHoursStartBoundaryIsInside(t *testing.T) {
	t.Parallel()

	resume, err := waits.ComputeResume(weekWindow("mon"), monday(9, 0))
	require.NoError(t, err)

	assert.Equal(t, monday(18, 0), resume.At)
}

func TestComputeResume_WrappingWindow(t *testing.T) {
	t.Parallel()

	window := models.WaitData{
		Mode:  models.WaitModeBusinessHours,
		Days:  []string{"mon"},
		Start: "22:00",
		End:   "06:00",
	}

	// Inside the evening segment: closes tomorrow morning.
	resume, err := waits.ComputeResume(window, monday(23, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC), resume.At)

	// The early-morning segment belongs to the Monday that opened it.
	tuesdayEarly := time.Date(2025, 3, 11, 5, 0, 0, 0, time.UTC)
	resume, err = waits.ComputeResume(window, tuesdayEarly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC), resume.At)

	// Monday early morning precedes the Monday opening: outside.
	resume, err = waits.ComputeResume(window, monday(5, 0))
	require.NoError(t, err)
	assert.True(t, resume.Immediate(monday(5, 0)))
}

func TestComputeResume_BusinessHoursValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*models.WaitData)
	}{
		{"no days", func(d *models.WaitData) { d.Days = nil }},
		{"unknown day", func(d *models.WaitData) { d.Days = []string{"monday"} }},
		{"bad start", func(d *models.WaitData) { d.Start = "9am" }},
		{"bad end", func(d *models.WaitData) { d.End = "24:30" }},
		{"empty interval", func(d *models.WaitData) { d.End = "09:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := weekWindow("mon")
			tt.mutate(&data)

			_, err := waits.ComputeResume(data, monday(10, 0))
			require.Error(t, err)
			assert.ErrorIs(t, err, waits.ErrBadWindow)
		})
	}
}
