package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// InstituteRepository reads institutes with their machine pools and timings.
type InstituteRepository struct {
	db *sqlx.DB
}

// NewInstituteRepository constructs an InstituteRepository.
func NewInstituteRepository(db *sqlx.DB) *InstituteRepository {
	return &InstituteRepository{db: db}
}

// FindByID loads an institute.
func (r *InstituteRepository) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	const query = `SELECT id, name, systems, exam_timings, created_at, updated_at FROM institutes WHERE id = $1`
	var institute models.Institute
	if err := r.db.GetContext(ctx, &institute, query, id); err != nil {
		return nil, err
	}
	return &institute, nil
}
