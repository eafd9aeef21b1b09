// Package scheduler holds the pure exam placement engine: clock arithmetic,
// machine availability, question sampling, section planning and tick-level
// rescheduling. Persistence is reached only through the small source
// interfaces declared here.
package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// MinutesPerDay bounds clock values.
const MinutesPerDay = 24 * 60

var (
	// ErrNoWorkingDays is returned when an institute has no working weekday configured.
	ErrNoWorkingDays = errors.New("no working days configured")
	// ErrCrossesMidnight is returned for windows that would end on the next calendar day.
	ErrCrossesMidnight = errors.New("exam window crosses midnight")
	// ErrInvalidClock is returned for malformed HH:MM values.
	ErrInvalidClock = errors.New("invalid clock value")
)

// ToMinutes converts "HH:MM" into minutes after midnight.
func ToMinutes(clock string) (int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w %q", ErrInvalidClock, clock)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidClock, clock)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidClock, clock)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w %q", ErrInvalidClock, clock)
	}
	return hours*60 + minutes, nil
}

// ToTimeString renders minutes as "HH:MM". Values wrap at midnight.
func ToTimeString(minutes int) string {
	minutes %= MinutesPerDay
	if minutes < 0 {
		minutes += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes shifts a clock value by delta minutes.
func AddMinutes(clock string, delta int) (string, error) {
	base, err := ToMinutes(clock)
	if err != nil {
		return "", err
	}
	return ToTimeString(base + delta), nil
}

// ValidateWindow rejects windows that run past midnight instead of wrapping them.
func ValidateWindow(start, duration int) error {
	if start < 0 || duration < 0 {
		return fmt.Errorf("%w: negative window", ErrInvalidClock)
	}
	if start+duration > MinutesPerDay {
		return fmt.Errorf("%w: %s + %d minutes", ErrCrossesMidnight, ToTimeString(start), duration)
	}
	return nil
}

// WeekdaySet is the set of weekdays an institute runs exams on.
type WeekdaySet map[time.Weekday]bool

// NewWeekdaySet builds a set from 0 (Sunday) .. 6 (Saturday); other values are ignored.
func NewWeekdaySet(days []int) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, day := range days {
		if day < 0 || day > 6 {
			continue
		}
		set[time.Weekday(day)] = true
	}
	return set
}

// IsWorkingDay reports whether date falls on a working weekday.
func IsWorkingDay(date time.Time, days WeekdaySet) bool {
	return days[date.Weekday()]
}

// NextWorkingDay returns the first working day strictly after date.
func NextWorkingDay(date time.Time, days WeekdaySet) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, ErrNoWorkingDays
	}
	next := DateOnly(date)
	for i := 0; i < 7; i++ {
		next = next.AddDate(0, 0, 1)
		if days[next.Weekday()] {
			return next, nil
		}
	}
	return time.Time{}, ErrNoWorkingDays
}

// DateOnly truncates a timestamp to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return parsed, nil
}

// Timing is an institute's exam timing policy resolved to minutes.
type Timing struct {
	Opening         int
	Closing         int
	SectionDuration int
	Break           int
	WorkingDays     WeekdaySet
}

// NewTiming parses and validates institute exam timings.
func NewTiming(t models.ExamTimings) (Timing, error) {
	opening, err := ToMinutes(t.OpeningTime)
	if err != nil {
		return Timing{}, fmt.Errorf("opening time: %w", err)
	}
	closing, err := ToMinutes(t.ClosingTime)
	if err != nil {
		return Timing{}, fmt.Errorf("closing time: %w", err)
	}
	timing := Timing{
		Opening:         opening,
		Closing:         closing,
		SectionDuration: t.SectionDuration,
		Break:           t.BreakBetweenSections,
		WorkingDays:     NewWeekdaySet(t.WorkingDays),
	}
	if err := timing.Validate(); err != nil {
		return Timing{}, err
	}
	return timing, nil
}

// Validate checks that at least one section fits into a working day.
func (t Timing) Validate() error {
	if t.Closing <= t.Opening {
		return fmt.Errorf("closing time %s must be after opening time %s", ToTimeString(t.Closing), ToTimeString(t.Opening))
	}
	if t.SectionDuration <= 0 {
		return fmt.Errorf("section duration must be positive")
	}
	if t.Break < 0 {
		return fmt.Errorf("break between sections must not be negative")
	}
	if err := ValidateWindow(t.Opening, t.SectionDuration); err != nil {
		return err
	}
	if t.Opening+t.SectionDuration > t.Closing {
		return fmt.Errorf("section duration of %d minutes does not fit between %s and %s", t.SectionDuration, ToTimeString(t.Opening), ToTimeString(t.Closing))
	}
	if len(t.WorkingDays) == 0 {
		return ErrNoWorkingDays
	}
	return nil
}

// Fits reports whether [start, start+duration) lies inside operating hours.
func (t Timing) Fits(start, duration int) bool {
	return start >= t.Opening && start+duration <= t.Closing
}
