package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// QuestionBankRepository reads question banks.
type QuestionBankRepository struct {
	db *sqlx.DB
}

// NewQuestionBankRepository constructs a QuestionBankRepository.
func NewQuestionBankRepository(db *sqlx.DB) *QuestionBankRepository {
	return &QuestionBankRepository{db: db}
}

// ListByIDs returns the requested banks in the order the ids were given.
// Unknown ids are skipped; callers compare lengths to detect them.
func (r *QuestionBankRepository) ListByIDs(ctx context.Context, ids []string) ([]models.QuestionBank, error) {
	if len(ids) == 0 {
		return []models.QuestionBank{}, nil
	}
	const query = `SELECT id, course_id, topic, questions, created_at, updated_at FROM question_banks WHERE id = ANY($1)`
	var banks []models.QuestionBank
	if err := r.db.SelectContext(ctx, &banks, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list question banks: %w", err)
	}

	byID := make(map[string]models.QuestionBank, len(banks))
	for _, bank := range banks {
		byID[bank.ID] = bank
	}
	ordered := make([]models.QuestionBank, 0, len(banks))
	for _, id := range ids {
		if bank, ok := byID[id]; ok {
			ordered = append(ordered, bank)
			delete(byID, id)
		}
	}
	return ordered, nil
}
