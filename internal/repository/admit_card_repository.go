package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

const admitCardColumns = `id, exam_id, student_id, institute_id, student_name, roll_no, course_name, exam_title, exam_date,
start_time, end_time, system_name, is_rescheduled, rescheduled_reason, created_at, updated_at`

// AdmitCardRepository persists admit cards.
type AdmitCardRepository struct {
	db *sqlx.DB
}

// NewAdmitCardRepository constructs an AdmitCardRepository.
func NewAdmitCardRepository(db *sqlx.DB) *AdmitCardRepository {
	return &AdmitCardRepository{db: db}
}

func (r *AdmitCardRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BulkCreate inserts admit cards, assigning ids and timestamps where missing.
func (r *AdmitCardRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, cards []models.AdmitCard) error {
	if len(cards) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range cards {
		if cards[i].ID == "" {
			cards[i].ID = uuid.NewString()
		}
		if cards[i].CreatedAt.IsZero() {
			cards[i].CreatedAt = now
		}
		cards[i].UpdatedAt = now
	}

	const query = `
INSERT INTO admit_cards (id, exam_id, student_id, institute_id, student_name, roll_no, course_name, exam_title, exam_date,
start_time, end_time, system_name, is_rescheduled, rescheduled_reason, created_at, updated_at)
VALUES (:id, :exam_id, :student_id, :institute_id, :student_name, :roll_no, :course_name, :exam_title, :exam_date,
:start_time, :end_time, :system_name, :is_rescheduled, :rescheduled_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, cards); err != nil {
		return fmt.Errorf("insert admit cards: %w", err)
	}
	return nil
}

// ListByExam returns the cards of an exam ordered by date, time and machine.
func (r *AdmitCardRepository) ListByExam(ctx context.Context, examID string) ([]models.AdmitCard, error) {
	query := `SELECT ` + admitCardColumns + ` FROM admit_cards WHERE exam_id = $1 ORDER BY exam_date ASC, start_time ASC, system_name ASC`
	var cards []models.AdmitCard
	if err := r.db.SelectContext(ctx, &cards, query, examID); err != nil {
		return nil, fmt.Errorf("list admit cards: %w", err)
	}
	return cards, nil
}

// ListRescheduledByInstituteDate returns live rescheduled cards on date. Cards of
// the exams students were moved out of are skipped since they no longer hold a seat.
func (r *AdmitCardRepository) ListRescheduledByInstituteDate(ctx context.Context, instituteID string, date time.Time) ([]models.AdmitCard, error) {
	const query = `SELECT ac.id, ac.exam_id, ac.student_id, ac.institute_id, ac.student_name, ac.roll_no, ac.course_name, ac.exam_title,
ac.exam_date, ac.start_time, ac.end_time, ac.system_name, ac.is_rescheduled, ac.rescheduled_reason, ac.created_at, ac.updated_at
FROM admit_cards ac JOIN exams e ON e.id = ac.exam_id
WHERE ac.institute_id = $1 AND ac.exam_date = $2 AND ac.is_rescheduled = TRUE
AND e.parent_exam_id IS NOT NULL AND e.status <> $3`
	var cards []models.AdmitCard
	if err := r.db.SelectContext(ctx, &cards, query, instituteID, date, models.ExamStatusCancelled); err != nil {
		return nil, fmt.Errorf("list rescheduled admit cards: %w", err)
	}
	return cards, nil
}

// Update rewrites the slot of an admit card.
func (r *AdmitCardRepository) Update(ctx context.Context, exec sqlx.ExtContext, card *models.AdmitCard) error {
	card.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE admit_cards SET exam_id = :exam_id, exam_title = :exam_title, exam_date = :exam_date, start_time = :start_time,
end_time = :end_time, system_name = :system_name, is_rescheduled = :is_rescheduled, rescheduled_reason = :rescheduled_reason,
updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, card); err != nil {
		return fmt.Errorf("update admit card: %w", err)
	}
	return nil
}

// MarkRescheduled flags the cards of the given students on an exam.
func (r *AdmitCardRepository) MarkRescheduled(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string, reason string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `UPDATE admit_cards SET is_rescheduled = TRUE, rescheduled_reason = $1, updated_at = $2 WHERE exam_id = $3 AND student_id = ANY($4)`
	if _, err := r.exec(exec).ExecContext(ctx, query, reason, time.Now().UTC(), examID, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("mark admit cards rescheduled: %w", err)
	}
	return nil
}

// ClearRescheduled restores the cards of students returned to an exam.
func (r *AdmitCardRepository) ClearRescheduled(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `UPDATE admit_cards SET is_rescheduled = FALSE, rescheduled_reason = NULL, updated_at = $1 WHERE exam_id = $2 AND student_id = ANY($3)`
	if _, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), examID, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("clear rescheduled admit cards: %w", err)
	}
	return nil
}

// DeleteByExamStudents removes the cards of the given students on an exam.
func (r *AdmitCardRepository) DeleteByExamStudents(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `DELETE FROM admit_cards WHERE exam_id = $1 AND student_id = ANY($2)`
	if _, err := r.exec(exec).ExecContext(ctx, query, examID, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("delete admit cards: %w", err)
	}
	return nil
}
