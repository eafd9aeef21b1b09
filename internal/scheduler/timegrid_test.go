package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

var weekdays = NewWeekdaySet([]int{1, 2, 3, 4, 5})

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := ParseDate(raw)
	require.NoError(t, err)
	return parsed
}

func TestToMinutes(t *testing.T) {
	minutes, err := ToMinutes("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, minutes)

	minutes, err = ToMinutes(" 00:00 ")
	require.NoError(t, err)
	assert.Equal(t, 0, minutes)

	for _, raw := range []string{"", "9", "24:00", "12:60", "ab:cd", "-1:10"} {
		_, err := ToMinutes(raw)
		assert.ErrorIs(t, err, ErrInvalidClock, raw)
	}
}

func TestToTimeStringWraps(t *testing.T) {
	assert.Equal(t, "09:05", ToTimeString(545))
	assert.Equal(t, "01:00", ToTimeString(MinutesPerDay+60))
	assert.Equal(t, "23:00", ToTimeString(-60))

	shifted, err := AddMinutes("17:30", 90)
	require.NoError(t, err)
	assert.Equal(t, "19:00", shifted)
}

func TestValidateWindowRejectsMidnight(t *testing.T) {
	assert.NoError(t, ValidateWindow(22*60, 120))
	assert.ErrorIs(t, ValidateWindow(23*60, 90), ErrCrossesMidnight)
	assert.ErrorIs(t, ValidateWindow(-5, 10), ErrInvalidClock)
}

func TestNextWorkingDaySkipsWeekend(t *testing.T) {
	saturday := date(t, "2024-06-08")
	require.Equal(t, time.Saturday, saturday.Weekday())

	next, err := NextWorkingDay(saturday, weekdays)
	require.NoError(t, err)
	assert.Equal(t, date(t, "2024-06-10"), next)
	assert.Equal(t, time.Monday, next.Weekday())

	next, err = NextWorkingDay(date(t, "2024-06-04"), weekdays)
	require.NoError(t, err)
	assert.Equal(t, date(t, "2024-06-05"), next)
}

func TestNextWorkingDayEmptySet(t *testing.T) {
	_, err := NextWorkingDay(date(t, "2024-06-08"), NewWeekdaySet(nil))
	assert.ErrorIs(t, err, ErrNoWorkingDays)
}

func TestNewWeekdaySetIgnoresOutOfRange(t *testing.T) {
	set := NewWeekdaySet([]int{0, 6, 7, -1})
	assert.Len(t, set, 2)
	assert.True(t, IsWorkingDay(date(t, "2024-06-09"), set))
	assert.False(t, IsWorkingDay(date(t, "2024-06-10"), set))
}

func TestNewTiming(t *testing.T) {
	timing, err := NewTiming(models.ExamTimings{
		OpeningTime:          "09:00",
		ClosingTime:          "17:00",
		SectionDuration:      60,
		BreakBetweenSections: 15,
		WorkingDays:          []int{1, 2, 3, 4, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 540, timing.Opening)
	assert.Equal(t, 1020, timing.Closing)
	assert.True(t, timing.Fits(540, 60))
	assert.False(t, timing.Fits(990, 60))
	assert.False(t, timing.Fits(500, 60))
}

func TestNewTimingValidation(t *testing.T) {
	base := models.ExamTimings{OpeningTime: "09:00", ClosingTime: "11:00", SectionDuration: 60, WorkingDays: []int{1}}

	cases := map[string]func(models.ExamTimings) models.ExamTimings{
		"closing before opening": func(t models.ExamTimings) models.ExamTimings { t.ClosingTime = "08:00"; return t },
		"zero duration":          func(t models.ExamTimings) models.ExamTimings { t.SectionDuration = 0; return t },
		"negative break":         func(t models.ExamTimings) models.ExamTimings { t.BreakBetweenSections = -1; return t },
		"section too long":       func(t models.ExamTimings) models.ExamTimings { t.SectionDuration = 180; return t },
		"bad clock":              func(t models.ExamTimings) models.ExamTimings { t.OpeningTime = "9am"; return t },
		"no working days":        func(t models.ExamTimings) models.ExamTimings { t.WorkingDays = nil; return t },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTiming(mutate(base))
			assert.Error(t, err)
		})
	}
}
