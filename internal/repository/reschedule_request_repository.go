package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// RescheduleRequestRepository persists student reschedule requests.
type RescheduleRequestRepository struct {
	db *sqlx.DB
}

// NewRescheduleRequestRepository constructs a RescheduleRequestRepository.
func NewRescheduleRequestRepository(db *sqlx.DB) *RescheduleRequestRepository {
	return &RescheduleRequestRepository{db: db}
}

func (r *RescheduleRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByIDs returns the requested reschedule requests, oldest first.
func (r *RescheduleRequestRepository) ListByIDs(ctx context.Context, ids []string) ([]models.RescheduleRequest, error) {
	if len(ids) == 0 {
		return []models.RescheduleRequest{}, nil
	}
	const query = `SELECT id, original_exam_id, student_id, course_id, institute_id, reason, status, requested_at, processed_at, new_exam_id
FROM reschedule_requests WHERE id = ANY($1) ORDER BY requested_at ASC, id ASC`
	var requests []models.RescheduleRequest
	if err := r.db.SelectContext(ctx, &requests, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list reschedule requests: %w", err)
	}
	return requests, nil
}

// UpdateDecision records the outcome of pending requests. Requests already decided are left alone.
func (r *RescheduleRequestRepository) UpdateDecision(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.RescheduleRequestStatus, newExamID *string, processedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE reschedule_requests SET status = $1, new_exam_id = $2, processed_at = $3 WHERE id = ANY($4) AND status = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, status, newExamID, processedAt, pq.Array(ids), models.RescheduleRequestPending)
	if err != nil {
		return 0, fmt.Errorf("update reschedule requests: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reschedule request rows affected: %w", err)
	}
	return affected, nil
}
