package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var examRowColumns = []string{"id", "type", "course_id", "institute_id", "parent_exam_id", "title", "exam_number", "date", "start_time", "end_time",
	"duration", "total_marks", "questions", "status", "multi_section", "sections", "system_assignments", "version", "created_at", "updated_at"}

func TestExamRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exams")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	exam := &models.Exam{Type: models.ExamTypeFinal, CourseID: "course-1", InstituteID: "inst-1", Title: "Midterm"}
	require.NoError(t, repo.Create(context.Background(), nil, exam))
	assert.NotEmpty(t, exam.ID)
	assert.Equal(t, 1, exam.Version)
	assert.Equal(t, models.ExamStatusScheduled, exam.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(examRowColumns).
		AddRow("exam-1", "Final", "course-1", "inst-1", nil, "Midterm", 1, date, "09:00", "10:00",
			60, 5, []byte(`[]`), "Scheduled", false, []byte(`[]`),
			[]byte(`[{"studentId":"s1","systemName":"PC-1","sectionNumber":1}]`), 3, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM exams WHERE id = $1")).
		WithArgs("exam-1").
		WillReturnRows(rows)

	exam, err := repo.FindByID(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 3, exam.Version)
	assert.False(t, exam.IsRescheduledChild())
	require.Len(t, exam.SystemAssignments, 1)
	assert.Equal(t, "PC-1", exam.SystemAssignments[0].SystemName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM exams WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(examRowColumns))

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestExamRepositoryListActiveByInstituteDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	date := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM exams\nWHERE institute_id = $1 AND status <> $2")).
		WithArgs("inst-1", string(models.ExamStatusCancelled), date, "2024-06-04").
		WillReturnRows(sqlmock.NewRows(examRowColumns))

	exams, err := repo.ListActiveByInstituteDate(context.Background(), "inst-1", date)
	require.NoError(t, err)
	assert.Empty(t, exams)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpdateBumpsVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET title")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	exam := &models.Exam{ID: "exam-1", Version: 2}
	require.NoError(t, repo.Update(context.Background(), nil, exam))
	assert.Equal(t, 3, exam.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpdateVersionConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET title")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	exam := &models.Exam{ID: "exam-1", Version: 2}
	err := repo.Update(context.Background(), nil, exam)
	assert.ErrorIs(t, err, ErrExamVersionConflict)
	assert.Equal(t, 2, exam.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exams WHERE id = $1")).
		WithArgs("exam-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "exam-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
