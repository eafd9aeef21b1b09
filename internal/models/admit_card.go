package models

import "time"

// AdmitCard is a denormalised, printable copy of a student's exam slot.
type AdmitCard struct {
	ID                string    `db:"id" json:"id"`
	ExamID            string    `db:"exam_id" json:"examId"`
	StudentID         string    `db:"student_id" json:"studentId"`
	InstituteID       string    `db:"institute_id" json:"instituteId"`
	StudentName       string    `db:"student_name" json:"studentName"`
	RollNo            string    `db:"roll_no" json:"rollNo"`
	CourseName        string    `db:"course_name" json:"courseName"`
	ExamTitle         string    `db:"exam_title" json:"examTitle"`
	ExamDate          time.Time `db:"exam_date" json:"examDate"`
	StartTime         string    `db:"start_time" json:"startTime"`
	EndTime           string    `db:"end_time" json:"endTime"`
	SystemName        string    `db:"system_name" json:"systemName"`
	IsRescheduled     bool      `db:"is_rescheduled" json:"isRescheduled"`
	RescheduledReason *string   `db:"rescheduled_reason" json:"rescheduledReason,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// NewAdmitCard derives the card for an assignment from the authoritative exam.
func NewAdmitCard(exam *Exam, course *Course, student Student, assignment Assignment) AdmitCard {
	date, start, end := exam.WindowFor(assignment)
	card := AdmitCard{
		ExamID:            exam.ID,
		StudentID:         student.ID,
		InstituteID:       exam.InstituteID,
		StudentName:       student.Name,
		RollNo:            student.RollNo,
		ExamTitle:         exam.Title,
		ExamDate:          date,
		StartTime:         start,
		EndTime:           end,
		SystemName:        assignment.SystemName,
		IsRescheduled:     assignment.IsRescheduled,
		RescheduledReason: assignment.RescheduledReason,
	}
	if course != nil {
		card.CourseName = course.Name
	}
	return card
}
