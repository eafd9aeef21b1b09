// Package events publishes scheduling notifications for downstream consumers.
package events

import (
	"context"
	"time"
)

const (
	// ExamScheduled is emitted after an exam and its admit cards are committed.
	ExamScheduled = "exam.scheduled"
	// ExamRescheduled is emitted after students are moved to a new slot.
	ExamRescheduled = "exam.rescheduled"
)

// ExamEvent is the payload published for scheduling changes.
type ExamEvent struct {
	Type           string    `json:"type"`
	ExamID         string    `json:"exam_id"`
	OriginalExamID string    `json:"original_exam_id,omitempty"`
	InstituteID    string    `json:"institute_id"`
	CourseID       string    `json:"course_id"`
	StudentIDs     []string  `json:"student_ids"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event ExamEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ExamEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
