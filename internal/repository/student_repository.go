package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// StudentRepository reads enrolment rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByCourseInstitute returns every student enrolled in a course at an institute, by roll number.
func (r *StudentRepository) ListByCourseInstitute(ctx context.Context, courseID, instituteID string) ([]models.Student, error) {
	const query = `SELECT id, name, roll_no, course_id, institute_id FROM students WHERE course_id = $1 AND institute_id = $2 ORDER BY roll_no ASC, id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID, instituteID); err != nil {
		return nil, fmt.Errorf("list students by course: %w", err)
	}
	return students, nil
}

// ListByIDs returns the requested students in the order the ids were given.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	const query = `SELECT id, name, roll_no, course_id, institute_id FROM students WHERE id = ANY($1)`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	byID := make(map[string]models.Student, len(students))
	for _, student := range students {
		byID[student.ID] = student
	}
	ordered := make([]models.Student, 0, len(students))
	for _, id := range ids {
		if student, ok := byID[id]; ok {
			ordered = append(ordered, student)
			delete(byID, id)
		}
	}
	return ordered, nil
}
