package models

import "time"

// RescheduleRequestStatus tracks student reschedule requests.
type RescheduleRequestStatus string

const (
	RescheduleRequestPending  RescheduleRequestStatus = "Pending"
	RescheduleRequestApproved RescheduleRequestStatus = "Approved"
	RescheduleRequestRejected RescheduleRequestStatus = "Rejected"
)

// RescheduleRequest is raised by a student and decided by an administrator.
type RescheduleRequest struct {
	ID             string                  `db:"id" json:"id"`
	OriginalExamID string                  `db:"original_exam_id" json:"originalExamId"`
	StudentID      string                  `db:"student_id" json:"studentId"`
	CourseID       string                  `db:"course_id" json:"courseId"`
	InstituteID    string                  `db:"institute_id" json:"instituteId"`
	Reason         string                  `db:"reason" json:"reason"`
	Status         RescheduleRequestStatus `db:"status" json:"status"`
	RequestedAt    time.Time               `db:"requested_at" json:"requestedAt"`
	ProcessedAt    *time.Time              `db:"processed_at" json:"processedAt,omitempty"`
	NewExamID      *string                 `db:"new_exam_id" json:"newExamId,omitempty"`
}
