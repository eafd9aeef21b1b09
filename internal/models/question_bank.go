package models

import (
	"database/sql/driver"
	"time"
)

// Question is a multiple choice item inside a bank.
type Question struct {
	Question      string    `json:"question"`
	Options       [4]string `json:"options"`
	CorrectAnswer int       `json:"correctAnswer"`
	Explanation   string    `json:"explanation"`
}

// Questions is stored as JSONB on the question bank row.
type Questions []Question

// Value implements driver.Valuer.
func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		q = Questions{}
	}
	return jsonValue(q)
}

// Scan implements sql.Scanner.
func (q *Questions) Scan(src interface{}) error {
	return scanJSON(src, q)
}

// QuestionBank groups questions by topic.
type QuestionBank struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"courseId"`
	Topic     string    `db:"topic" json:"topic"`
	Questions Questions `db:"questions" json:"questions"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// QuestionSnapshot is a copy of a question frozen into an exam paper.
type QuestionSnapshot struct {
	QuestionBankID string    `json:"questionBankId"`
	Topic          string    `json:"topic"`
	Question       string    `json:"question"`
	Options        [4]string `json:"options"`
	CorrectAnswer  int       `json:"correctAnswer"`
	Explanation    string    `json:"explanation"`
}

// QuestionSnapshots is stored as JSONB on the exam row.
type QuestionSnapshots []QuestionSnapshot

// Value implements driver.Valuer.
func (q QuestionSnapshots) Value() (driver.Value, error) {
	if q == nil {
		q = QuestionSnapshots{}
	}
	return jsonValue(q)
}

// Scan implements sql.Scanner.
func (q *QuestionSnapshots) Scan(src interface{}) error {
	return scanJSON(src, q)
}
