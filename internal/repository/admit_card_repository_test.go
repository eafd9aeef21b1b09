package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

func TestAdmitCardRepositoryBulkCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmitCardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admit_cards")).
		WillReturnResult(sqlmock.NewResult(2, 2))

	cards := []models.AdmitCard{
		{ExamID: "exam-1", StudentID: "s1", SystemName: "PC-1"},
		{ExamID: "exam-1", StudentID: "s2", SystemName: "PC-2"},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), nil, cards))
	for _, card := range cards {
		assert.NotEmpty(t, card.ID)
		assert.False(t, card.CreatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitCardRepositoryBulkCreateEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmitCardRepository(db)

	require.NoError(t, repo.BulkCreate(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitCardRepositoryUpdateKeepsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmitCardRepository(db)

	date := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	reason := "Medical"
	card := &models.AdmitCard{
		ID:                "card-7",
		ExamID:            "exam-2",
		StudentID:         "s2",
		ExamTitle:         "Midterm (Rescheduled)",
		ExamDate:          date,
		StartTime:         "10:20",
		EndTime:           "11:20",
		SystemName:        "PC-3",
		IsRescheduled:     true,
		RescheduledReason: &reason,
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE admit_cards SET exam_id = ")).
		WithArgs("exam-2", "Midterm (Rescheduled)", date, "10:20", "11:20", "PC-3", true, sqlmock.AnyArg(), sqlmock.AnyArg(), "card-7").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), nil, card))
	assert.Equal(t, "card-7", card.ID)
	assert.False(t, card.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitCardRepositoryListByExam(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmitCardRepository(db)

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "exam_id", "student_id", "institute_id", "student_name", "roll_no", "course_name", "exam_title", "exam_date",
		"start_time", "end_time", "system_name", "is_rescheduled", "rescheduled_reason", "created_at", "updated_at"}).
		AddRow("card-1", "exam-1", "s1", "inst-1", "Asha", "R1", "Physics", "Midterm", date, "09:00", "10:00", "PC-1", true, "Medical", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM admit_cards WHERE exam_id = $1 ORDER BY exam_date ASC, start_time ASC, system_name ASC")).
		WithArgs("exam-1").
		WillReturnRows(rows)

	cards, err := repo.ListByExam(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	require.NotNil(t, cards[0].RescheduledReason)
	assert.Equal(t, "Medical", *cards[0].RescheduledReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitCardRepositoryMarkAndClearRescheduled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmitCardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admit_cards SET is_rescheduled = TRUE, rescheduled_reason = $1")).
		WithArgs("Medical", sqlmock.AnyArg(), "exam-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE admit_cards SET is_rescheduled = FALSE, rescheduled_reason = NULL")).
		WithArgs(sqlmock.AnyArg(), "exam-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, repo.MarkRescheduled(ctx, nil, "exam-1", []string{"s1", "s2"}, "Medical"))
	require.NoError(t, repo.ClearRescheduled(ctx, nil, "exam-1", []string{"s1"}))
	require.NoError(t, repo.MarkRescheduled(ctx, nil, "exam-1", nil, "noop"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitCardRepositoryDeleteByExamStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmitCardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admit_cards WHERE exam_id = $1 AND student_id = ANY($2)")).
		WithArgs("exam-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByExamStudents(context.Background(), nil, "exam-2", []string{"s4"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
