package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

const (
	// DefaultTickMinutes is the granularity of the reschedule board.
	DefaultTickMinutes = 20
	// DefaultMaxAttempts caps the days tried per student.
	DefaultMaxAttempts = 100
)

// ErrAttemptsExhausted is returned when a student cannot be seated within the attempt budget.
var ErrAttemptsExhausted = errors.New("no free system found")

// TickBoard tracks machine occupancy for one date on a fixed tick grid
// anchored at opening time. Tick k covers [opening+k*tick, opening+(k+1)*tick).
type TickBoard struct {
	opening int
	closing int
	tick    int
	buffer  int
	busy    map[string]map[int]bool
}

// NewTickBoard builds a board and marks every booking on it.
func NewTickBoard(timing Timing, tickMinutes int, bookings []Booking) *TickBoard {
	if tickMinutes <= 0 {
		tickMinutes = DefaultTickMinutes
	}
	board := &TickBoard{
		opening: timing.Opening,
		closing: timing.Closing,
		tick:    tickMinutes,
		buffer:  timing.Break,
		busy:    make(map[string]map[int]bool),
	}
	for _, booking := range bookings {
		board.Mark(booking.System, booking.Start, booking.End)
	}
	return board
}

// Mark blocks every tick touched by [start-buffer, end+buffer) on system.
func (b *TickBoard) Mark(system string, start, end int) {
	ticks, ok := b.busy[system]
	if !ok {
		ticks = make(map[int]bool)
		b.busy[system] = ticks
	}
	first, last := b.span(start-b.buffer, end+b.buffer)
	for k := first; k <= last; k++ {
		ticks[k] = true
	}
}

// Free reports whether no tick touched by [start, end) is blocked on system.
func (b *TickBoard) Free(system string, start, end int) bool {
	ticks := b.busy[system]
	if len(ticks) == 0 {
		return true
	}
	first, last := b.span(start, end)
	for k := first; k <= last; k++ {
		if ticks[k] {
			return false
		}
	}
	return true
}

// Find returns the earliest tick and the first usable machine free for duration.
func (b *TickBoard) Find(systems []models.System, duration int) (string, int, bool) {
	for start := b.opening; start+duration <= b.closing; start += b.tick {
		for _, system := range systems {
			if !system.Usable() {
				continue
			}
			if b.Free(system.Name, start, start+duration) {
				return system.Name, start, true
			}
		}
	}
	return "", 0, false
}

func (b *TickBoard) span(start, end int) (int, int) {
	return floorDiv(start-b.opening, b.tick), ceilDiv(end-b.opening, b.tick) - 1
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}

// Placement is the new seat of one rescheduled student.
type Placement struct {
	StudentID string
	System    string
	Date      time.Time
	Start     int
	End       int
}

// StartTime renders the placement start.
func (p Placement) StartTime() string { return ToTimeString(p.Start) }

// EndTime renders the placement end.
func (p Placement) EndTime() string { return ToTimeString(p.End) }

// PlaceRequest lists the students to move. Exclude drops existing bookings
// from the boards, typically the moved students' own current seats.
// HorizonDays, when set, replaces the attempt budget with a calendar window
// starting at Date.
type PlaceRequest struct {
	StudentIDs  []string
	Date        time.Time
	Duration    int
	HorizonDays int
	MaxAttempts int
	Exclude     func(Booking) bool
}

// Rescheduler seats individual students on the tick board, one at a time,
// reserving each seat before the next student is considered.
type Rescheduler struct {
	timing      Timing
	systems     []models.System
	source      BookingSource
	tickMinutes int
	maxAttempts int
}

// NewRescheduler builds a placer over an institute's machine pool.
func NewRescheduler(timing Timing, systems []models.System, source BookingSource, tickMinutes, maxAttempts int) *Rescheduler {
	if tickMinutes <= 0 {
		tickMinutes = DefaultTickMinutes
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Rescheduler{
		timing:      timing,
		systems:     systems,
		source:      source,
		tickMinutes: tickMinutes,
		maxAttempts: maxAttempts,
	}
}

// Place computes seats for every student without writing anything. Either
// every student is placed or an error is returned.
func (r *Rescheduler) Place(ctx context.Context, req PlaceRequest) ([]Placement, error) {
	duration := req.Duration
	if duration <= 0 {
		duration = r.timing.SectionDuration
	}
	if err := ValidateWindow(r.timing.Opening, duration); err != nil {
		return nil, err
	}
	if r.timing.Opening+duration > r.timing.Closing {
		return nil, fmt.Errorf("%w: %d minutes between %s and %s", ErrWindowTooLong, duration, ToTimeString(r.timing.Opening), ToTimeString(r.timing.Closing))
	}

	budget := req.MaxAttempts
	if budget <= 0 {
		budget = r.maxAttempts
	}
	// A horizon bounds the search by calendar date, not by days tried.
	var deadline time.Time
	if req.HorizonDays > 0 {
		deadline = DateOnly(req.Date).AddDate(0, 0, req.HorizonDays)
	}

	first := DateOnly(req.Date)
	if !IsWorkingDay(first, r.timing.WorkingDays) {
		next, err := NextWorkingDay(first, r.timing.WorkingDays)
		if err != nil {
			return nil, err
		}
		first = next
	}

	boards := make(map[time.Time]*TickBoard)
	placements := make([]Placement, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		date := first
		placed := false
		for attempt := 1; ; attempt++ {
			if deadline.IsZero() && attempt > budget {
				break
			}
			if !deadline.IsZero() && !date.Before(deadline) {
				break
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			board, err := r.board(ctx, boards, date, req.Exclude)
			if err != nil {
				return nil, err
			}
			if system, start, ok := board.Find(r.systems, duration); ok {
				board.Mark(system, start, start+duration)
				placements = append(placements, Placement{
					StudentID: studentID,
					System:    system,
					Date:      date,
					Start:     start,
					End:       start + duration,
				})
				placed = true
				break
			}
			if date, err = NextWorkingDay(date, r.timing.WorkingDays); err != nil {
				return nil, err
			}
		}
		if !placed {
			if !deadline.IsZero() {
				return nil, fmt.Errorf("%w: student %s, nothing free before %s", ErrHorizonExhausted, studentID, deadline.Format(models.DateLayout))
			}
			return nil, fmt.Errorf("%w: student %s, %d days tried", ErrAttemptsExhausted, studentID, budget)
		}
	}
	return placements, nil
}

func (r *Rescheduler) board(ctx context.Context, boards map[time.Time]*TickBoard, date time.Time, exclude func(Booking) bool) (*TickBoard, error) {
	if board, ok := boards[date]; ok {
		return board, nil
	}
	bookings, err := r.source.BookingsOn(ctx, date)
	if err != nil {
		return nil, err
	}
	if exclude != nil {
		kept := bookings[:0:0]
		for _, booking := range bookings {
			if !exclude(booking) {
				kept = append(kept, booking)
			}
		}
		bookings = kept
	}
	board := NewTickBoard(r.timing, r.tickMinutes, bookings)
	boards[date] = board
	return board, nil
}
