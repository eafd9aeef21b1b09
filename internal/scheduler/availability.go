package scheduler

import (
	"context"
	"time"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// Booking is one machine held by one student for a window on a date.
type Booking struct {
	ExamID    string
	StudentID string
	System    string
	Date      time.Time
	Start     int
	End       int
}

// Conflicts applies the open-interval-with-buffer rule between two windows.
func Conflicts(start, end, otherStart, otherEnd, buffer int) bool {
	return start < otherEnd+buffer && end+buffer > otherStart
}

// BookingsFromExams flattens exams into per-machine bookings on date.
// Sectioned exams contribute their matching sections; single-section exams
// contribute their flat assignment list. Cancelled exams hold no machines.
func BookingsFromExams(exams []models.Exam, date time.Time) []Booking {
	day := DateOnly(date)
	var bookings []Booking
	for _, exam := range exams {
		if exam.Status == models.ExamStatusCancelled {
			continue
		}
		if len(exam.Sections) > 0 {
			for _, section := range exam.Sections {
				if !DateOnly(section.Date).Equal(day) {
					continue
				}
				bookings = appendAssignments(bookings, exam.ID, day, section.StartTime, section.EndTime, section.SystemAssignments)
			}
			continue
		}
		if !DateOnly(exam.Date).Equal(day) {
			continue
		}
		bookings = appendAssignments(bookings, exam.ID, day, exam.StartTime, exam.EndTime, exam.SystemAssignments)
	}
	return bookings
}

// BookingsFromAdmitCards turns rescheduled admit cards on date into bookings.
func BookingsFromAdmitCards(cards []models.AdmitCard, date time.Time) []Booking {
	day := DateOnly(date)
	var bookings []Booking
	for _, card := range cards {
		if card.SystemName == "" || !DateOnly(card.ExamDate).Equal(day) {
			continue
		}
		start, errStart := ToMinutes(card.StartTime)
		end, errEnd := ToMinutes(card.EndTime)
		if errStart != nil || errEnd != nil {
			continue
		}
		bookings = append(bookings, Booking{
			ExamID:    card.ExamID,
			StudentID: card.StudentID,
			System:    card.SystemName,
			Date:      day,
			Start:     start,
			End:       end,
		})
	}
	return bookings
}

func appendAssignments(bookings []Booking, examID string, day time.Time, startTime, endTime string, assignments []models.Assignment) []Booking {
	start, errStart := ToMinutes(startTime)
	end, errEnd := ToMinutes(endTime)
	if errStart != nil || errEnd != nil {
		return bookings
	}
	for _, assignment := range assignments {
		if assignment.SystemName == "" {
			continue
		}
		bookings = append(bookings, Booking{
			ExamID:    examID,
			StudentID: assignment.StudentID,
			System:    assignment.SystemName,
			Date:      day,
			Start:     start,
			End:       end,
		})
	}
	return bookings
}

// BookingSource loads every committed booking of an institute for a date.
type BookingSource interface {
	BookingsOn(ctx context.Context, date time.Time) ([]Booking, error)
}

// BookingSourceFunc adapts a function to BookingSource.
type BookingSourceFunc func(ctx context.Context, date time.Time) ([]Booking, error)

// BookingsOn implements BookingSource.
func (f BookingSourceFunc) BookingsOn(ctx context.Context, date time.Time) ([]Booking, error) {
	return f(ctx, date)
}

// SlotIndex answers which machines are free for a window on one date.
type SlotIndex struct {
	systems  []models.System
	buffer   int
	bookings []Booking
}

// NewSlotIndex builds an index over the machine pool and existing bookings.
func NewSlotIndex(systems []models.System, buffer int, bookings []Booking) *SlotIndex {
	copied := make([]Booking, len(bookings))
	copy(copied, bookings)
	return &SlotIndex{systems: systems, buffer: buffer, bookings: copied}
}

// Occupied returns machines blocked for [start, end) including the buffer.
func (s *SlotIndex) Occupied(start, end int) map[string]bool {
	occupied := make(map[string]bool)
	for _, booking := range s.bookings {
		if Conflicts(start, end, booking.Start, booking.End, s.buffer) {
			occupied[booking.System] = true
		}
	}
	return occupied
}

// FreeSystems returns usable machines not occupied during [start, end), in pool order.
func (s *SlotIndex) FreeSystems(start, end int) []string {
	occupied := s.Occupied(start, end)
	free := make([]string, 0, len(s.systems))
	for _, system := range s.systems {
		if !system.Usable() || occupied[system.Name] {
			continue
		}
		free = append(free, system.Name)
	}
	return free
}

// Reserve records an in-flight placement so later queries see it.
func (s *SlotIndex) Reserve(booking Booking) {
	s.bookings = append(s.bookings, booking)
}

// Bookings exposes the indexed bookings.
func (s *SlotIndex) Bookings() []Booking {
	return s.bookings
}
