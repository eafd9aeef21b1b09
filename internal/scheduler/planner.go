package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// DefaultHorizonDays bounds how many days a search may span.
const DefaultHorizonDays = 30

var (
	// ErrHorizonExhausted is returned when the roster cannot be seated within the day horizon.
	ErrHorizonExhausted = errors.New("could not schedule within horizon")
	// ErrEmptyRoster is returned when there is nobody to place.
	ErrEmptyRoster = errors.New("roster is empty")
	// ErrWindowTooLong is returned when an exam cannot fit between opening and closing time.
	ErrWindowTooLong = errors.New("exam duration does not fit operating hours")
)

// AvailabilitySource yields a slot index for an institute on a date.
type AvailabilitySource interface {
	IndexFor(ctx context.Context, date time.Time) (*SlotIndex, error)
}

// AvailabilitySourceFunc adapts a function to AvailabilitySource.
type AvailabilitySourceFunc func(ctx context.Context, date time.Time) (*SlotIndex, error)

// IndexFor implements AvailabilitySource.
func (f AvailabilitySourceFunc) IndexFor(ctx context.Context, date time.Time) (*SlotIndex, error) {
	return f(ctx, date)
}

// PlanRequest describes a roster to seat. StartTime and Duration default to
// the opening time and the institute section duration.
type PlanRequest struct {
	Roster           []string
	Date             time.Time
	StartTime        string
	Duration         int
	ForceNextDay     bool
	ForceNextSection bool
}

// PlannedSection is a sitting produced by the planner.
type PlannedSection struct {
	SectionNumber int
	Date          time.Time
	Start         int
	End           int
	Assignments   []models.Assignment
}

// StartTime renders the section start.
func (s PlannedSection) StartTime() string { return ToTimeString(s.Start) }

// EndTime renders the section end.
func (s PlannedSection) EndTime() string { return ToTimeString(s.End) }

// Plan is the ordered list of sections covering a roster.
type Plan struct {
	Sections []PlannedSection
}

// Date is the first section's date.
func (p *Plan) Date() time.Time {
	if len(p.Sections) == 0 {
		return time.Time{}
	}
	return p.Sections[0].Date
}

// StartTime is the first section's start.
func (p *Plan) StartTime() string {
	if len(p.Sections) == 0 {
		return ""
	}
	return p.Sections[0].StartTime()
}

// EndTime is the last section's end.
func (p *Plan) EndTime() string {
	if len(p.Sections) == 0 {
		return ""
	}
	return p.Sections[len(p.Sections)-1].EndTime()
}

// MultiSection reports whether more than one sitting is needed.
func (p *Plan) MultiSection() bool {
	return len(p.Sections) > 1
}

// Assignments flattens every section in order.
func (p *Plan) Assignments() []models.Assignment {
	var result []models.Assignment
	for _, section := range p.Sections {
		result = append(result, section.Assignments...)
	}
	return result
}

// ModelSections converts the plan into persisted sections.
func (p *Plan) ModelSections() []models.Section {
	sections := make([]models.Section, 0, len(p.Sections))
	for _, section := range p.Sections {
		assignments := make([]models.Assignment, len(section.Assignments))
		copy(assignments, section.Assignments)
		sections = append(sections, models.Section{
			SectionNumber:     section.SectionNumber,
			Date:              section.Date,
			StartTime:         section.StartTime(),
			EndTime:           section.EndTime(),
			SystemAssignments: assignments,
		})
	}
	return sections
}

// Planner seats a roster into sections without double-booking machines.
type Planner struct {
	timing      Timing
	source      AvailabilitySource
	horizonDays int
}

// NewPlanner builds a planner; horizonDays <= 0 falls back to DefaultHorizonDays.
func NewPlanner(timing Timing, source AvailabilitySource, horizonDays int) *Planner {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Planner{timing: timing, source: source, horizonDays: horizonDays}
}

// Plan runs greedy bin-packing over time: fill the earliest free slot with as
// many students as there are free machines, then move one section plus break
// forward, rolling to the next working day at closing time.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	if len(req.Roster) == 0 {
		return nil, ErrEmptyRoster
	}
	duration := req.Duration
	if duration <= 0 {
		duration = p.timing.SectionDuration
	}
	if err := ValidateWindow(p.timing.Opening, duration); err != nil {
		return nil, err
	}
	if p.timing.Opening+duration > p.timing.Closing {
		return nil, fmt.Errorf("%w: %d minutes between %s and %s", ErrWindowTooLong, duration, ToTimeString(p.timing.Opening), ToTimeString(p.timing.Closing))
	}

	cursor := &dayCursor{timing: p.timing, horizon: p.horizonDays, date: DateOnly(req.Date), days: 1}
	cursor.start = p.timing.Opening
	if req.StartTime != "" {
		requested, err := ToMinutes(req.StartTime)
		if err != nil {
			return nil, err
		}
		if requested > cursor.start {
			cursor.start = requested
		}
	}
	if req.ForceNextDay || !IsWorkingDay(cursor.date, p.timing.WorkingDays) {
		if err := cursor.roll(); err != nil {
			return nil, err
		}
	} else if req.ForceNextSection {
		cursor.start += duration + p.timing.Break
	}

	indexes := make(map[time.Time]*SlotIndex)
	remaining := req.Roster
	plan := &Plan{}
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := cursor.start + duration
		if end > p.timing.Closing {
			if err := cursor.roll(); err != nil {
				return nil, err
			}
			continue
		}

		index, ok := indexes[cursor.date]
		if !ok {
			var err error
			index, err = p.source.IndexFor(ctx, cursor.date)
			if err != nil {
				return nil, err
			}
			indexes[cursor.date] = index
		}

		free := index.FreeSystems(cursor.start, end)
		if len(free) > 0 {
			count := len(free)
			if len(remaining) < count {
				count = len(remaining)
			}
			section := PlannedSection{
				SectionNumber: len(plan.Sections) + 1,
				Date:          cursor.date,
				Start:         cursor.start,
				End:           end,
				Assignments:   make([]models.Assignment, 0, count),
			}
			for i := 0; i < count; i++ {
				section.Assignments = append(section.Assignments, models.Assignment{
					StudentID:     remaining[i],
					SystemName:    free[i],
					SectionNumber: section.SectionNumber,
				})
				index.Reserve(Booking{StudentID: remaining[i], System: free[i], Date: cursor.date, Start: cursor.start, End: end})
			}
			plan.Sections = append(plan.Sections, section)
			remaining = remaining[count:]
		}

		cursor.start += duration + p.timing.Break
	}
	return plan, nil
}

type dayCursor struct {
	timing  Timing
	horizon int
	date    time.Time
	start   int
	days    int
}

func (c *dayCursor) roll() error {
	next, err := NextWorkingDay(c.date, c.timing.WorkingDays)
	if err != nil {
		return err
	}
	c.days++
	if c.days > c.horizon {
		return fmt.Errorf("%w of %d days", ErrHorizonExhausted, c.horizon)
	}
	c.date = next
	c.start = c.timing.Opening
	return nil
}
