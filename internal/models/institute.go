package models

import (
	"database/sql/driver"
	"time"
)

// SystemStatus is the hardware state of a lab machine.
type SystemStatus string

const (
	SystemStatusAvailable SystemStatus = "Available"
	SystemStatusActive    SystemStatus = "Active"
	SystemStatusOffline   SystemStatus = "Offline"
)

// System is a physical lab computer students sit exams on.
type System struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
}

// Usable reports whether the machine may receive exam assignments.
func (s System) Usable() bool {
	return s.Status == SystemStatusAvailable || s.Status == SystemStatusActive
}

// Systems is the machine pool of an institute.
type Systems []System

// Value implements driver.Valuer.
func (s Systems) Value() (driver.Value, error) {
	if s == nil {
		s = Systems{}
	}
	return jsonValue(s)
}

// Scan implements sql.Scanner.
func (s *Systems) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// ExamTimings are the operating hours used for exam placement.
type ExamTimings struct {
	OpeningTime          string `json:"openingTime"`
	ClosingTime          string `json:"closingTime"`
	SectionDuration      int    `json:"sectionDuration"`
	BreakBetweenSections int    `json:"breakBetweenSections"`
	WorkingDays          []int  `json:"workingDays"`
}

// Value implements driver.Valuer.
func (t ExamTimings) Value() (driver.Value, error) {
	return jsonValue(t)
}

// Scan implements sql.Scanner.
func (t *ExamTimings) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// Institute owns the machine pool and exam operating hours.
type Institute struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Systems     Systems     `db:"systems" json:"systems"`
	ExamTimings ExamTimings `db:"exam_timings" json:"examTimings"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}
