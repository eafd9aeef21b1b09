package models

import (
	"database/sql/driver"
	"time"
)

// ExamType distinguishes machine-allocated exams from practice papers.
type ExamType string

const (
	ExamTypeDPP   ExamType = "DPP"
	ExamTypeFinal ExamType = "Final"
)

// ExamStatus tracks the lifecycle of an exam.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "Scheduled"
	ExamStatusCompleted ExamStatus = "Completed"
	ExamStatusCancelled ExamStatus = "Cancelled"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Assignment binds one student to one machine for an exam.
type Assignment struct {
	StudentID         string  `json:"studentId"`
	SystemName        string  `json:"systemName"`
	SectionNumber     int     `json:"sectionNumber"`
	Attended          bool    `json:"attended"`
	IsRescheduled     bool    `json:"isRescheduled"`
	RescheduledReason *string `json:"rescheduledReason,omitempty"`
}

// Assignments is stored as JSONB on the exam row.
type Assignments []Assignment

// Value implements driver.Valuer.
func (a Assignments) Value() (driver.Value, error) {
	if a == nil {
		a = Assignments{}
	}
	return jsonValue(a)
}

// Scan implements sql.Scanner.
func (a *Assignments) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// Section is a contiguous sitting of a multi-section exam.
type Section struct {
	SectionNumber     int          `json:"sectionNumber"`
	Date              time.Time    `json:"date"`
	StartTime         string       `json:"startTime"`
	EndTime           string       `json:"endTime"`
	SystemAssignments []Assignment `json:"systemAssignments"`
}

// Sections is stored as JSONB on the exam row.
type Sections []Section

// Value implements driver.Valuer.
func (s Sections) Value() (driver.Value, error) {
	if s == nil {
		s = Sections{}
	}
	return jsonValue(s)
}

// Scan implements sql.Scanner.
func (s *Sections) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Exam is the output of the allocation engine.
type Exam struct {
	ID                string            `db:"id" json:"id"`
	Type              ExamType          `db:"type" json:"type"`
	CourseID          string            `db:"course_id" json:"courseId"`
	InstituteID       string            `db:"institute_id" json:"instituteId"`
	ParentExamID      *string           `db:"parent_exam_id" json:"parentExamId,omitempty"`
	Title             string            `db:"title" json:"title"`
	ExamNumber        int               `db:"exam_number" json:"examNumber"`
	Date              time.Time         `db:"date" json:"date"`
	StartTime         string            `db:"start_time" json:"startTime"`
	EndTime           string            `db:"end_time" json:"endTime"`
	Duration          int               `db:"duration" json:"duration"`
	TotalMarks        int               `db:"total_marks" json:"totalMarks"`
	Questions         QuestionSnapshots `db:"questions" json:"questions"`
	Status            ExamStatus        `db:"status" json:"status"`
	MultiSection      bool              `db:"multi_section" json:"multiSection"`
	Sections          Sections          `db:"sections" json:"sections"`
	SystemAssignments Assignments       `db:"system_assignments" json:"systemAssignments"`
	Version           int               `db:"version" json:"version"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updatedAt"`
}

// IsRescheduledChild reports whether the exam was split off another exam.
func (e *Exam) IsRescheduledChild() bool {
	return e.ParentExamID != nil && *e.ParentExamID != ""
}

// FindAssignment returns the assignment for a student, if present.
func (e *Exam) FindAssignment(studentID string) (Assignment, bool) {
	for _, assignment := range e.SystemAssignments {
		if assignment.StudentID == studentID {
			return assignment, true
		}
	}
	return Assignment{}, false
}

// SectionFor returns the section an assignment belongs to.
func (e *Exam) SectionFor(number int) (Section, bool) {
	for _, section := range e.Sections {
		if section.SectionNumber == number {
			return section, true
		}
	}
	return Section{}, false
}

// WindowFor resolves the date and times a student sits the exam.
func (e *Exam) WindowFor(assignment Assignment) (time.Time, string, string) {
	if section, ok := e.SectionFor(assignment.SectionNumber); ok && len(e.Sections) > 0 {
		return section.Date, section.StartTime, section.EndTime
	}
	return e.Date, e.StartTime, e.EndTime
}

// RemoveStudents drops assignments for the given students from the flat list
// and from every section, leaving all other assignments untouched.
func (e *Exam) RemoveStudents(studentIDs map[string]bool) {
	e.SystemAssignments = filterAssignments(e.SystemAssignments, studentIDs)
	for i := range e.Sections {
		e.Sections[i].SystemAssignments = filterAssignments(e.Sections[i].SystemAssignments, studentIDs)
	}
}

// RefreshSpan recomputes the overall window and multi-section flag from the
// sections, dropping sections that no longer hold anyone.
func (e *Exam) RefreshSpan() {
	if len(e.Sections) == 0 {
		return
	}
	kept := e.Sections[:0]
	for _, section := range e.Sections {
		if len(section.SystemAssignments) > 0 {
			kept = append(kept, section)
		}
	}
	if len(kept) == 0 {
		e.Sections = kept
		return
	}
	e.Sections = kept
	first := kept[0]
	last := kept[0]
	for _, section := range kept[1:] {
		if section.Date.Before(first.Date) || (section.Date.Equal(first.Date) && section.StartTime < first.StartTime) {
			first = section
		}
		if section.Date.After(last.Date) || (section.Date.Equal(last.Date) && section.EndTime > last.EndTime) {
			last = section
		}
	}
	e.Date = first.Date
	e.StartTime = first.StartTime
	e.EndTime = last.EndTime
	e.MultiSection = len(kept) > 1
}

func filterAssignments(items []Assignment, drop map[string]bool) []Assignment {
	result := make([]Assignment, 0, len(items))
	for _, item := range items {
		if drop[item.StudentID] {
			continue
		}
		result = append(result, item)
	}
	return result
}
