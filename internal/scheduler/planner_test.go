package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

type plannerFixture struct {
	systems  []models.System
	buffer   int
	bookings map[time.Time][]Booking
	loads    int
}

func (f *plannerFixture) IndexFor(_ context.Context, date time.Time) (*SlotIndex, error) {
	f.loads++
	return NewSlotIndex(f.systems, f.buffer, f.bookings[date]), nil
}

func scenarioTiming(closing int) Timing {
	return Timing{Opening: 540, Closing: closing, SectionDuration: 60, Break: 30, WorkingDays: weekdays}
}

func roster(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("student-%d", i+1)
	}
	return ids
}

func assertNoDoubleBooking(t *testing.T, plan *Plan, buffer int) {
	t.Helper()
	type window struct {
		date       time.Time
		start, end int
	}
	byMachine := make(map[string][]window)
	for _, section := range plan.Sections {
		for _, assignment := range section.Assignments {
			byMachine[assignment.SystemName] = append(byMachine[assignment.SystemName], window{section.Date, section.Start, section.End})
		}
	}
	for machine, windows := range byMachine {
		for i := range windows {
			for j := i + 1; j < len(windows); j++ {
				if !windows[i].date.Equal(windows[j].date) {
					continue
				}
				assert.False(t, Conflicts(windows[i].start, windows[i].end, windows[j].start, windows[j].end, buffer),
					"machine %s double booked", machine)
			}
		}
	}
}

func TestPlannerEndToEndScenario(t *testing.T) {
	source := &plannerFixture{systems: pool("PC-1", "PC-2"), buffer: 30}
	planner := NewPlanner(scenarioTiming(660), source, 0)
	monday := date(t, "2024-06-03")

	plan, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(5), Date: monday})
	require.NoError(t, err)
	require.Len(t, plan.Sections, 3)

	expected := []struct {
		date     string
		start    string
		end      string
		students int
	}{
		{"2024-06-03", "09:00", "10:00", 2},
		{"2024-06-04", "09:00", "10:00", 2},
		{"2024-06-05", "09:00", "10:00", 1},
	}
	for i, want := range expected {
		section := plan.Sections[i]
		assert.Equal(t, i+1, section.SectionNumber)
		assert.Equal(t, date(t, want.date), section.Date)
		assert.Equal(t, want.start, section.StartTime())
		assert.Equal(t, want.end, section.EndTime())
		assert.Len(t, section.Assignments, want.students)
		for _, assignment := range section.Assignments {
			assert.Equal(t, section.SectionNumber, assignment.SectionNumber)
		}
	}

	assert.True(t, plan.MultiSection())
	assert.Equal(t, monday, plan.Date())
	assert.Equal(t, "09:00", plan.StartTime())
	assert.Equal(t, "10:00", plan.EndTime())
	assert.Equal(t, 3, source.loads)

	assignments := plan.Assignments()
	require.Len(t, assignments, 5)
	for i, assignment := range assignments {
		assert.Equal(t, fmt.Sprintf("student-%d", i+1), assignment.StudentID)
	}
	assert.Equal(t, "PC-1", assignments[0].SystemName)
	assert.Equal(t, "PC-2", assignments[1].SystemName)

	sections := plan.ModelSections()
	require.Len(t, sections, 3)
	assert.Equal(t, "09:00", sections[2].StartTime)
	assert.Len(t, sections[2].SystemAssignments, 1)
}

func TestPlannerPacksSameDayAndAvoidsExistingBookings(t *testing.T) {
	monday := date(t, "2024-06-03")
	source := &plannerFixture{
		systems: pool("PC-1", "PC-2"),
		buffer:  30,
		bookings: map[time.Time][]Booking{
			monday: {{ExamID: "other", StudentID: "x", System: "PC-1", Date: monday, Start: 540, End: 600}},
		},
	}
	planner := NewPlanner(scenarioTiming(12*60), source, 0)

	plan, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(3), Date: monday})
	require.NoError(t, err)
	require.Len(t, plan.Sections, 2)

	assert.Equal(t, []models.Assignment{{StudentID: "student-1", SystemName: "PC-2", SectionNumber: 1}}, plan.Sections[0].Assignments)
	assert.Equal(t, "10:30", plan.Sections[1].StartTime())
	assert.Equal(t, monday, plan.Sections[1].Date)
	assert.Len(t, plan.Sections[1].Assignments, 2)
	assertNoDoubleBooking(t, plan, 30)
}

func TestPlannerRosterCompletenessLargeRoster(t *testing.T) {
	source := &plannerFixture{systems: pool("PC-1", "PC-2", "PC-3"), buffer: 15}
	planner := NewPlanner(Timing{Opening: 480, Closing: 1020, SectionDuration: 90, Break: 15, WorkingDays: weekdays}, source, 0)

	plan, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(40), Date: date(t, "2024-06-07")})
	require.NoError(t, err)

	total := 0
	for _, section := range plan.Sections {
		total += len(section.Assignments)
		assert.NotEqual(t, time.Saturday, section.Date.Weekday())
		assert.NotEqual(t, time.Sunday, section.Date.Weekday())
	}
	assert.Equal(t, 40, total)
	assertNoDoubleBooking(t, plan, 15)
}

func TestPlannerStartsOnNextWorkingDay(t *testing.T) {
	planner := NewPlanner(scenarioTiming(660), &plannerFixture{systems: pool("PC-1")}, 0)

	plan, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: date(t, "2024-06-08")})
	require.NoError(t, err)
	assert.Equal(t, date(t, "2024-06-10"), plan.Date())
}

func TestPlannerRequestedStartTime(t *testing.T) {
	planner := NewPlanner(scenarioTiming(12*60), &plannerFixture{systems: pool("PC-1")}, 0)

	plan, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: date(t, "2024-06-03"), StartTime: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, "10:00", plan.StartTime())

	plan, err = planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: date(t, "2024-06-03"), StartTime: "07:00"})
	require.NoError(t, err)
	assert.Equal(t, "09:00", plan.StartTime(), "never before opening")

	_, err = planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: date(t, "2024-06-03"), StartTime: "nine"})
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestPlannerForceFlags(t *testing.T) {
	monday := date(t, "2024-06-03")
	planner := NewPlanner(scenarioTiming(13*60), &plannerFixture{systems: pool("PC-1")}, 0)

	plan, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: monday, ForceNextSection: true})
	require.NoError(t, err)
	assert.Equal(t, monday, plan.Date())
	assert.Equal(t, "10:30", plan.StartTime())

	plan, err = planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: monday, ForceNextDay: true})
	require.NoError(t, err)
	assert.Equal(t, date(t, "2024-06-04"), plan.Date())
	assert.Equal(t, "09:00", plan.StartTime())

	plan, err = planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: monday, ForceNextDay: true, ForceNextSection: true})
	require.NoError(t, err)
	assert.Equal(t, date(t, "2024-06-04"), plan.Date())
	assert.Equal(t, "09:00", plan.StartTime(), "next day wins")

	plan, err = planner.Plan(context.Background(), PlanRequest{Roster: roster(3), Date: monday, ForceNextSection: true})
	require.NoError(t, err)
	require.Len(t, plan.Sections, 3)
	assert.Equal(t, "12:00", plan.Sections[1].StartTime())
	assert.Equal(t, date(t, "2024-06-04"), plan.Sections[2].Date)
	assert.Equal(t, "09:00", plan.Sections[2].StartTime(), "force flags only move the first slot")
}

func TestPlannerHorizonExhausted(t *testing.T) {
	offline := []models.System{{Name: "PC-1", Status: models.SystemStatusOffline}}
	planner := NewPlanner(scenarioTiming(660), &plannerFixture{systems: offline}, 3)

	_, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: date(t, "2024-06-03")})
	assert.ErrorIs(t, err, ErrHorizonExhausted)
}

func TestPlannerRejectsBadInput(t *testing.T) {
	planner := NewPlanner(scenarioTiming(660), &plannerFixture{systems: pool("PC-1")}, 0)

	_, err := planner.Plan(context.Background(), PlanRequest{Date: date(t, "2024-06-03")})
	assert.ErrorIs(t, err, ErrEmptyRoster)

	_, err = planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: date(t, "2024-06-03"), Duration: 180})
	assert.ErrorIs(t, err, ErrWindowTooLong)
}

func TestPlannerPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("db down")
	planner := NewPlanner(scenarioTiming(660), AvailabilitySourceFunc(func(context.Context, time.Time) (*SlotIndex, error) {
		return nil, boom
	}), 0)

	_, err := planner.Plan(context.Background(), PlanRequest{Roster: roster(1), Date: date(t, "2024-06-03")})
	assert.ErrorIs(t, err, boom)
}

func TestPlannerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	planner := NewPlanner(scenarioTiming(660), &plannerFixture{systems: pool("PC-1")}, 0)

	_, err := planner.Plan(ctx, PlanRequest{Roster: roster(1), Date: date(t, "2024-06-03")})
	assert.ErrorIs(t, err, context.Canceled)
}
