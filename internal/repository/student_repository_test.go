package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentRepositoryListByCourseInstitute(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "roll_no", "course_id", "institute_id"}).
		AddRow("s1", "Asha", "R1", "course-1", "inst-1").
		AddRow("s2", "Bilal", "R2", "course-1", "inst-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE course_id = $1 AND institute_id = $2 ORDER BY roll_no ASC, id ASC")).
		WithArgs("course-1", "inst-1").
		WillReturnRows(rows)

	students, err := repo.ListByCourseInstitute(context.Background(), "course-1", "inst-1")
	require.NoError(t, err)
	assert.Len(t, students, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListByIDsKeepsRequestOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "roll_no", "course_id", "institute_id"}).
		AddRow("s1", "Asha", "R1", "course-1", "inst-1").
		AddRow("s3", "Chen", "R3", "course-1", "inst-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	students, err := repo.ListByIDs(context.Background(), []string{"s3", "ghost", "s1"})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "s3", students[0].ID)
	assert.Equal(t, "s1", students[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionBankRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionBankRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "topic", "questions", "created_at", "updated_at"}).
		AddRow("bank-2", "course-1", "Optics", []byte(`[{"question":"Focal length?","options":["a","b","c","d"],"correctAnswer":1}]`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM question_banks WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	banks, err := repo.ListByIDs(context.Background(), []string{"bank-1", "bank-2"})
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, "bank-2", banks[0].ID)
	assert.Len(t, banks[0].Questions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseAndInstituteRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, exam_configurations, created_at, updated_at FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "exam_configurations", "created_at", "updated_at"}).
			AddRow("course-1", "Physics", []byte(`[]`), time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, systems, exam_timings, created_at, updated_at FROM institutes WHERE id = $1")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "systems", "exam_timings", "created_at", "updated_at"}).
			AddRow("inst-1", "North Lab", []byte(`[]`), []byte(`{}`), time.Now(), time.Now()))

	course, err := NewCourseRepository(db).FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, "Physics", course.Name)

	institute, err := NewInstituteRepository(db).FindByID(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "North Lab", institute.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
