package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-exam-api/internal/models"
	"github.com/noah-isme/lms-exam-api/internal/repository"
	"github.com/noah-isme/lms-exam-api/internal/scheduler"
	appErrors "github.com/noah-isme/lms-exam-api/pkg/errors"
	"github.com/noah-isme/lms-exam-api/pkg/events"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type instituteReader interface {
	FindByID(ctx context.Context, id string) (*models.Institute, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type questionBankReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.QuestionBank, error)
}

type studentReader interface {
	ListByCourseInstitute(ctx context.Context, courseID, instituteID string) ([]models.Student, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

type examStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListActiveByInstituteDate(ctx context.Context, instituteID string, date time.Time) ([]models.Exam, error)
	Update(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type admitCardStore interface {
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, cards []models.AdmitCard) error
	ListByExam(ctx context.Context, examID string) ([]models.AdmitCard, error)
	ListRescheduledByInstituteDate(ctx context.Context, instituteID string, date time.Time) ([]models.AdmitCard, error)
	Update(ctx context.Context, exec sqlx.ExtContext, card *models.AdmitCard) error
	MarkRescheduled(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string, reason string) error
	ClearRescheduled(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string) error
	DeleteByExamStudents(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string) error
}

type questionSampler interface {
	Sample(banks []models.QuestionBank, target int) []models.QuestionSnapshot
}

// occupancy derives machine bookings from committed exams and rescheduled admit cards.
type occupancy struct {
	exams examStore
	cards admitCardStore
}

func (o occupancy) source(instituteID string) scheduler.BookingSource {
	return scheduler.BookingSourceFunc(func(ctx context.Context, date time.Time) ([]scheduler.Booking, error) {
		exams, err := o.exams.ListActiveByInstituteDate(ctx, instituteID, date)
		if err != nil {
			return nil, err
		}
		cards, err := o.cards.ListRescheduledByInstituteDate(ctx, instituteID, date)
		if err != nil {
			return nil, err
		}
		return append(scheduler.BookingsFromExams(exams, date), scheduler.BookingsFromAdmitCards(cards, date)...), nil
	})
}

func (o occupancy) availability(institute *models.Institute, timing scheduler.Timing) scheduler.AvailabilitySource {
	source := o.source(institute.ID)
	return scheduler.AvailabilitySourceFunc(func(ctx context.Context, date time.Time) (*scheduler.SlotIndex, error) {
		bookings, err := source.BookingsOn(ctx, date)
		if err != nil {
			return nil, err
		}
		return scheduler.NewSlotIndex(institute.Systems, timing.Break, bookings), nil
	})
}

func loadInstitute(ctx context.Context, repo instituteReader, id string) (*models.Institute, scheduler.Timing, error) {
	institute, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scheduler.Timing{}, appErrors.Clone(appErrors.ErrNotFound, "institute not found")
		}
		return nil, scheduler.Timing{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}
	timing, err := scheduler.NewTiming(institute.ExamTimings)
	if err != nil {
		return nil, scheduler.Timing{}, appErrors.Wrap(err, appErrors.ErrPolicyViolation.Code, appErrors.ErrPolicyViolation.Status, "institute exam timings are invalid")
	}
	return institute, timing, nil
}

func loadCourse(ctx context.Context, repo courseReader, id string) (*models.Course, error) {
	course, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func loadExam(ctx context.Context, repo examStore, id string) (*models.Exam, error) {
	exam, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

func loadQuestionBanks(ctx context.Context, repo questionBankReader, ids []string) ([]models.QuestionBank, error) {
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "no question banks configured for this exam")
	}
	banks, err := repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question banks")
	}
	found := make(map[string]bool, len(banks))
	for _, bank := range banks {
		found[bank.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("question bank %s not found", id))
		}
	}
	return banks, nil
}

// loadRoster resolves explicit student ids, or every enrolled student when none are given.
func loadRoster(ctx context.Context, repo studentReader, courseID, instituteID string, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		students, err := repo.ListByCourseInstitute(ctx, courseID, instituteID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
		}
		if len(students) == 0 {
			return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "no students enrolled in this course at the institute")
		}
		return students, nil
	}

	ids = uniqueStrings(ids)
	students, err := repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	byID := make(map[string]models.Student, len(students))
	for _, student := range students {
		byID[student.ID] = student
	}
	for _, id := range ids {
		student, ok := byID[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
		}
		if student.CourseID != courseID || student.InstituteID != instituteID {
			return nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("student %s is not enrolled in this course at the institute", id))
		}
	}
	return students, nil
}

func studentIDs(students []models.Student) []string {
	ids := make([]string, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	return ids
}

func studentIndex(students []models.Student) map[string]models.Student {
	index := make(map[string]models.Student, len(students))
	for _, student := range students {
		index[student.ID] = student
	}
	return index
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	return result
}

func parseDate(raw string) (time.Time, error) {
	date, err := scheduler.ParseDate(raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return date, nil
}

// mapSchedulingError turns engine and repository sentinels into typed errors.
func mapSchedulingError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, scheduler.ErrHorizonExhausted), errors.Is(err, scheduler.ErrAttemptsExhausted):
		return appErrors.Wrap(err, appErrors.ErrSchedulingFailure.Code, appErrors.ErrSchedulingFailure.Status, err.Error())
	case errors.Is(err, scheduler.ErrNoWorkingDays), errors.Is(err, scheduler.ErrCrossesMidnight),
		errors.Is(err, scheduler.ErrWindowTooLong), errors.Is(err, scheduler.ErrInvalidClock):
		return appErrors.Wrap(err, appErrors.ErrPolicyViolation.Code, appErrors.ErrPolicyViolation.Status, err.Error())
	case errors.Is(err, scheduler.ErrEmptyRoster):
		return appErrors.Clone(appErrors.ErrValidation, "no students to schedule")
	case errors.Is(err, repository.ErrExamVersionConflict):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "exam was modified concurrently, retry the request")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scheduling was cancelled")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scheduling failed")
	}
}

// withTx runs fn in a transaction, rolling back when fn fails.
func withTx(ctx context.Context, provider txProvider, fn func(tx *sqlx.Tx) error) (err error) {
	if provider == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}
	return nil
}

func publishExamEvent(ctx context.Context, publisher events.Publisher, eventType string, exam *models.Exam, originalExamID string, students []string) error {
	if publisher == nil || exam == nil {
		return nil
	}
	return publisher.Publish(ctx, events.ExamEvent{
		Type:           eventType,
		ExamID:         exam.ID,
		OriginalExamID: originalExamID,
		InstituteID:    exam.InstituteID,
		CourseID:       exam.CourseID,
		StudentIDs:     students,
		Date:           exam.Date.Format(models.DateLayout),
		StartTime:      exam.StartTime,
		EndTime:        exam.EndTime,
		OccurredAt:     time.Now().UTC(),
	})
}
