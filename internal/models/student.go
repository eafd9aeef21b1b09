package models

// Student is the enrolment record the scheduler reads rosters from.
type Student struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	RollNo      string `db:"roll_no" json:"rollNo"`
	CourseID    string `db:"course_id" json:"courseId"`
	InstituteID string `db:"institute_id" json:"instituteId"`
}
