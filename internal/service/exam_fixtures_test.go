package service

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-exam-api/internal/models"
	"github.com/noah-isme/lms-exam-api/internal/repository"
	"github.com/noah-isme/lms-exam-api/internal/scheduler"
	"github.com/noah-isme/lms-exam-api/pkg/events"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// examWorld is an in-memory stand-in for every repository the services read and write.
type examWorld struct {
	mu         sync.Mutex
	seq        int
	institutes map[string]models.Institute
	courses    map[string]models.Course
	banks      map[string]models.QuestionBank
	students   []models.Student
	exams      map[string]models.Exam
	cards      []models.AdmitCard
	requests   map[string]models.RescheduleRequest
}

func newExamWorld() *examWorld {
	return &examWorld{
		institutes: make(map[string]models.Institute),
		courses:    make(map[string]models.Course),
		banks:      make(map[string]models.QuestionBank),
		exams:      make(map[string]models.Exam),
		requests:   make(map[string]models.RescheduleRequest),
	}
}

func (w *examWorld) nextID(prefix string) string {
	w.seq++
	return fmt.Sprintf("%s-%d", prefix, w.seq)
}

func labInstitute(id string, machines int, opening, closing string, section, pause int) models.Institute {
	systems := make(models.Systems, 0, machines)
	for i := 1; i <= machines; i++ {
		systems = append(systems, models.System{Name: fmt.Sprintf("PC-%d", i), Status: models.SystemStatusAvailable})
	}
	return models.Institute{
		ID:      id,
		Name:    "Lab " + id,
		Systems: systems,
		ExamTimings: models.ExamTimings{
			OpeningTime:          opening,
			ClosingTime:          closing,
			SectionDuration:      section,
			BreakBetweenSections: pause,
			WorkingDays:          []int{1, 2, 3, 4, 5},
		},
	}
}

// seedCourse registers course-1 with one configured exam and a ten question bank.
func (w *examWorld) seedCourse(instituteID string, students int) {
	questions := make(models.Questions, 0, 10)
	for i := 1; i <= 10; i++ {
		questions = append(questions, models.Question{
			Question:      fmt.Sprintf("Question %d", i),
			Options:       [4]string{"a", "b", "c", "d"},
			CorrectAnswer: 0,
		})
	}
	w.banks["bank-1"] = models.QuestionBank{ID: "bank-1", CourseID: "course-1", Topic: "Basics", Questions: questions}
	w.courses["course-1"] = models.Course{
		ID:   "course-1",
		Name: "Computer Fundamentals",
		ExamConfigurations: models.ExamConfigurations{
			{ExamNumber: 1, Duration: 60, TotalQuestions: 5, QuestionBankIDs: []string{"bank-1"}},
		},
	}
	for i := 1; i <= students; i++ {
		w.students = append(w.students, models.Student{
			ID:          fmt.Sprintf("s%d", i),
			Name:        fmt.Sprintf("Student %d", i),
			RollNo:      fmt.Sprintf("R%03d", i),
			CourseID:    "course-1",
			InstituteID: instituteID,
		})
	}
}

// seedExam stores a single-section exam seating students on PC-1.. in order, with admit cards.
func (w *examWorld) seedExam(id, instituteID string, date time.Time, start, end string, studentIDs ...string) models.Exam {
	assignments := make(models.Assignments, 0, len(studentIDs))
	for i, studentID := range studentIDs {
		assignments = append(assignments, models.Assignment{StudentID: studentID, SystemName: fmt.Sprintf("PC-%d", i+1), SectionNumber: 1})
	}
	exam := models.Exam{
		ID:                id,
		Type:              models.ExamTypeFinal,
		CourseID:          "course-1",
		InstituteID:       instituteID,
		Title:             "Final Exam",
		ExamNumber:        1,
		Date:              date,
		StartTime:         start,
		EndTime:           end,
		Duration:          60,
		Status:            models.ExamStatusScheduled,
		Sections:          models.Sections{},
		SystemAssignments: assignments,
		Version:           1,
	}
	w.exams[id] = cloneExam(exam)
	course := w.courses["course-1"]
	for _, assignment := range assignments {
		student := models.Student{ID: assignment.StudentID}
		for _, candidate := range w.students {
			if candidate.ID == assignment.StudentID {
				student = candidate
			}
		}
		card := models.NewAdmitCard(&exam, &course, student, assignment)
		card.ID = w.nextID("card")
		w.cards = append(w.cards, card)
	}
	return exam
}

func (w *examWorld) exam(id string) models.Exam {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneExam(w.exams[id])
}

func (w *examWorld) card(examID, studentID string) (models.AdmitCard, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, card := range w.cards {
		if card.ExamID == examID && card.StudentID == studentID {
			return card, true
		}
	}
	return models.AdmitCard{}, false
}

func (w *examWorld) cardsFor(examID string) []models.AdmitCard {
	w.mu.Lock()
	defer w.mu.Unlock()
	var result []models.AdmitCard
	for _, card := range w.cards {
		if card.ExamID == examID {
			result = append(result, card)
		}
	}
	return result
}

func cloneExam(exam models.Exam) models.Exam {
	exam.SystemAssignments = append(models.Assignments{}, exam.SystemAssignments...)
	sections := make(models.Sections, len(exam.Sections))
	for i, section := range exam.Sections {
		section.SystemAssignments = append([]models.Assignment{}, section.SystemAssignments...)
		sections[i] = section
	}
	exam.Sections = sections
	if exam.ParentExamID != nil {
		parent := *exam.ParentExamID
		exam.ParentExamID = &parent
	}
	return exam
}

type instituteStub struct{ w *examWorld }

func (s instituteStub) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	institute, ok := s.w.institutes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &institute, nil
}

type courseStub struct{ w *examWorld }

func (s courseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	course, ok := s.w.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

type bankStub struct{ w *examWorld }

func (s bankStub) ListByIDs(ctx context.Context, ids []string) ([]models.QuestionBank, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var banks []models.QuestionBank
	for _, id := range ids {
		if bank, ok := s.w.banks[id]; ok {
			banks = append(banks, bank)
		}
	}
	return banks, nil
}

type studentStub struct{ w *examWorld }

func (s studentStub) ListByCourseInstitute(ctx context.Context, courseID, instituteID string) ([]models.Student, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var result []models.Student
	for _, student := range s.w.students {
		if student.CourseID == courseID && student.InstituteID == instituteID {
			result = append(result, student)
		}
	}
	return result, nil
}

func (s studentStub) ListByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var result []models.Student
	for _, id := range ids {
		for _, student := range s.w.students {
			if student.ID == id {
				result = append(result, student)
			}
		}
	}
	return result, nil
}

type examStub struct{ w *examWorld }

func (s examStub) Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if exam.ID == "" {
		exam.ID = s.w.nextID("exam")
	}
	exam.Version = 1
	s.w.exams[exam.ID] = cloneExam(*exam)
	return nil
}

func (s examStub) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	exam, ok := s.w.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := cloneExam(exam)
	return &clone, nil
}

func (s examStub) ListActiveByInstituteDate(ctx context.Context, instituteID string, date time.Time) ([]models.Exam, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	day := scheduler.DateOnly(date)
	var result []models.Exam
	for _, exam := range s.w.exams {
		if exam.InstituteID != instituteID || exam.Status == models.ExamStatusCancelled {
			continue
		}
		match := scheduler.DateOnly(exam.Date).Equal(day)
		for _, section := range exam.Sections {
			if scheduler.DateOnly(section.Date).Equal(day) {
				match = true
			}
		}
		if match {
			result = append(result, cloneExam(exam))
		}
	}
	return result, nil
}

func (s examStub) Update(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	stored, ok := s.w.exams[exam.ID]
	if !ok || stored.Version != exam.Version {
		return repository.ErrExamVersionConflict
	}
	exam.Version++
	s.w.exams[exam.ID] = cloneExam(*exam)
	return nil
}

func (s examStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if _, ok := s.w.exams[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.w.exams, id)
	return nil
}

type cardStub struct{ w *examWorld }

func (s cardStub) BulkCreate(ctx context.Context, exec sqlx.ExtContext, cards []models.AdmitCard) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for _, card := range cards {
		card.ID = s.w.nextID("card")
		s.w.cards = append(s.w.cards, card)
	}
	return nil
}

func (s cardStub) ListByExam(ctx context.Context, examID string) ([]models.AdmitCard, error) {
	return s.w.cardsFor(examID), nil
}

func (s cardStub) ListRescheduledByInstituteDate(ctx context.Context, instituteID string, date time.Time) ([]models.AdmitCard, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	day := scheduler.DateOnly(date)
	var result []models.AdmitCard
	for _, card := range s.w.cards {
		exam, ok := s.w.exams[card.ExamID]
		if !ok || !exam.IsRescheduledChild() || exam.Status == models.ExamStatusCancelled {
			continue
		}
		if card.InstituteID == instituteID && scheduler.DateOnly(card.ExamDate).Equal(day) {
			result = append(result, card)
		}
	}
	return result, nil
}

func (s cardStub) Update(ctx context.Context, exec sqlx.ExtContext, card *models.AdmitCard) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for i := range s.w.cards {
		if s.w.cards[i].ID == card.ID {
			s.w.cards[i] = *card
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s cardStub) MarkRescheduled(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string, reason string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	targets := toSet(studentIDs)
	for i := range s.w.cards {
		if s.w.cards[i].ExamID == examID && targets[s.w.cards[i].StudentID] {
			r := reason
			s.w.cards[i].IsRescheduled = true
			s.w.cards[i].RescheduledReason = &r
		}
	}
	return nil
}

func (s cardStub) ClearRescheduled(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	targets := toSet(studentIDs)
	for i := range s.w.cards {
		if s.w.cards[i].ExamID == examID && targets[s.w.cards[i].StudentID] {
			s.w.cards[i].IsRescheduled = false
			s.w.cards[i].RescheduledReason = nil
		}
	}
	return nil
}

func (s cardStub) DeleteByExamStudents(ctx context.Context, exec sqlx.ExtContext, examID string, studentIDs []string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	targets := toSet(studentIDs)
	kept := s.w.cards[:0]
	for _, card := range s.w.cards {
		if card.ExamID == examID && targets[card.StudentID] {
			continue
		}
		kept = append(kept, card)
	}
	s.w.cards = kept
	return nil
}

type requestStub struct{ w *examWorld }

func (s requestStub) ListByIDs(ctx context.Context, ids []string) ([]models.RescheduleRequest, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var result []models.RescheduleRequest
	for _, id := range ids {
		if request, ok := s.w.requests[id]; ok {
			result = append(result, request)
		}
	}
	return result, nil
}

func (s requestStub) UpdateDecision(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.RescheduleRequestStatus, newExamID *string, processedAt time.Time) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var updated int64
	for _, id := range ids {
		request, ok := s.w.requests[id]
		if !ok || request.Status != models.RescheduleRequestPending {
			continue
		}
		at := processedAt
		request.Status = status
		request.NewExamID = newExamID
		request.ProcessedAt = &at
		s.w.requests[id] = request
		updated++
	}
	return updated, nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []events.ExamEvent
}

func (p *publisherStub) Publish(ctx context.Context, event events.ExamEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) Close() error { return nil }

func newAllocationFixture(w *examWorld, tx txProvider, publisher events.Publisher, cfg ExamAllocationConfig) *ExamAllocationService {
	return NewExamAllocationService(
		instituteStub{w}, courseStub{w}, bankStub{w}, studentStub{w}, examStub{w}, cardStub{w},
		tx, NewLocalInstituteLocker(), scheduler.NewSampler(rand.NewSource(7)), publisher, nil,
		validator.New(), zap.NewNop(), cfg,
	)
}

func newRescheduleFixture(w *examWorld, tx txProvider, publisher events.Publisher, cfg RescheduleConfig) *RescheduleService {
	return NewRescheduleService(
		instituteStub{w}, courseStub{w}, studentStub{w}, examStub{w}, cardStub{w}, requestStub{w},
		tx, NewLocalInstituteLocker(), publisher, nil,
		validator.New(), zap.NewNop(), cfg,
	)
}

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := time.Parse(models.DateLayout, raw)
	require.NoError(t, err)
	return parsed
}

func assignedStudents(assignments []models.Assignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.StudentID)
	}
	return ids
}
