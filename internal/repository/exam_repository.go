package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// ErrExamVersionConflict is returned when an exam changed since it was read.
var ErrExamVersionConflict = errors.New("exam version conflict")

const examColumns = `id, type, course_id, institute_id, parent_exam_id, title, exam_number, date, start_time, end_time,
duration, total_marks, questions, status, multi_section, sections, system_assignments, version, created_at, updated_at`

// ExamRepository persists exams with their sections and assignments.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

func (r *ExamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an exam at version 1.
func (r *ExamRepository) Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	if exam == nil {
		return fmt.Errorf("exam payload is nil")
	}
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.Status == "" {
		exam.Status = models.ExamStatusScheduled
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	exam.Version = 1

	const query = `
INSERT INTO exams (id, type, course_id, institute_id, parent_exam_id, title, exam_number, date, start_time, end_time,
duration, total_marks, questions, status, multi_section, sections, system_assignments, version, created_at, updated_at)
VALUES (:id, :type, :course_id, :institute_id, :parent_exam_id, :title, :exam_number, :date, :start_time, :end_time,
:duration, :total_marks, :questions, :status, :multi_section, :sections, :system_assignments, :version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, exam); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// FindByID loads an exam.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListActiveByInstituteDate returns non-cancelled exams holding machines on date,
// either through their own date or through one of their sections.
func (r *ExamRepository) ListActiveByInstituteDate(ctx context.Context, instituteID string, date time.Time) ([]models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams
WHERE institute_id = $1 AND status <> $2
AND (date = $3 OR EXISTS (SELECT 1 FROM jsonb_array_elements(sections) AS s WHERE LEFT(s->>'date', 10) = $4))
ORDER BY start_time ASC, created_at ASC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, instituteID, models.ExamStatusCancelled, date, date.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("list exams by date: %w", err)
	}
	return exams, nil
}

// Update writes the mutable fields when the stored version still matches and bumps it.
func (r *ExamRepository) Update(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	if exam == nil {
		return fmt.Errorf("exam payload is nil")
	}
	exam.UpdatedAt = time.Now().UTC()

	const query = `
UPDATE exams SET title = :title, date = :date, start_time = :start_time, end_time = :end_time, status = :status,
multi_section = :multi_section, sections = :sections, system_assignments = :system_assignments,
version = version + 1, updated_at = :updated_at
WHERE id = :id AND version = :version`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, exam)
	if err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("exam rows affected: %w", err)
	}
	if affected == 0 {
		return ErrExamVersionConflict
	}
	exam.Version++
	return nil
}

// Delete removes an exam.
func (r *ExamRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM exams WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("exam rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
