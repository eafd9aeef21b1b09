package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-exam-api/internal/dto"
	"github.com/noah-isme/lms-exam-api/internal/models"
	"github.com/noah-isme/lms-exam-api/internal/scheduler"
	appErrors "github.com/noah-isme/lms-exam-api/pkg/errors"
	"github.com/noah-isme/lms-exam-api/pkg/events"
	"github.com/noah-isme/lms-exam-api/pkg/logger"
)

// ExamAllocationConfig governs allocation behaviour.
type ExamAllocationConfig struct {
	HorizonDays      int
	MinNoticeDays    int
	MarksPerQuestion int
}

// ExamAllocationService creates exams and seats students on lab machines.
type ExamAllocationService struct {
	institutes instituteReader
	courses    courseReader
	banks      questionBankReader
	students   studentReader
	exams      examStore
	cards      admitCardStore
	tx         txProvider
	locker     InstituteLocker
	sampler    questionSampler
	publisher  events.Publisher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExamAllocationConfig
	now        func() time.Time
}

// NewExamAllocationService wires allocation dependencies.
func NewExamAllocationService(
	institutes instituteReader,
	courses courseReader,
	banks questionBankReader,
	students studentReader,
	exams examStore,
	cards admitCardStore,
	tx txProvider,
	locker InstituteLocker,
	sampler questionSampler,
	publisher events.Publisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExamAllocationConfig,
) *ExamAllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalInstituteLocker()
	}
	if sampler == nil {
		sampler = scheduler.NewRandomSampler()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = scheduler.DefaultHorizonDays
	}
	if cfg.MinNoticeDays < 0 {
		cfg.MinNoticeDays = 0
	}
	if cfg.MarksPerQuestion <= 0 {
		cfg.MarksPerQuestion = 1
	}
	return &ExamAllocationService{
		institutes: institutes,
		courses:    courses,
		banks:      banks,
		students:   students,
		exams:      exams,
		cards:      cards,
		tx:         tx,
		locker:     locker,
		sampler:    sampler,
		publisher:  publisher,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *ExamAllocationService) occupancy() occupancy {
	return occupancy{exams: s.exams, cards: s.cards}
}

// AllocateSystems samples a paper and seats every enrolled student, spilling
// into further sections and days as machines run out. DPP exams carry questions only.
func (s *ExamAllocationService) AllocateSystems(ctx context.Context, req dto.AllocateSystemsRequest) (exam *models.Exam, err error) {
	started := time.Now()
	defer func() { s.observe("allocate_systems", exam, err, started) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	institute, timing, err := loadInstitute(ctx, s.institutes, req.InstituteID)
	if err != nil {
		return nil, err
	}
	course, err := loadCourse(ctx, s.courses, req.CourseID)
	if err != nil {
		return nil, err
	}

	bankIDs := uniqueStrings(req.SelectedQuestionBankIDs)
	if len(bankIDs) == 0 {
		bankIDs = course.QuestionBankIDs()
	}
	banks, err := loadQuestionBanks(ctx, s.banks, bankIDs)
	if err != nil {
		return nil, err
	}
	questions := s.sampler.Sample(banks, req.TotalQuestions)

	exam = &models.Exam{
		Type:        models.ExamTypeFinal,
		CourseID:    course.ID,
		InstituteID: institute.ID,
		Title:       req.Title,
		ExamNumber:  req.ExamNumber,
		Duration:    timing.SectionDuration,
		TotalMarks:  len(questions) * s.cfg.MarksPerQuestion,
		Questions:   questions,
		Status:      models.ExamStatusScheduled,
	}
	if req.Type == string(models.ExamTypeDPP) {
		return s.createPractice(ctx, exam, date, req.StartTime, timing)
	}

	roster, err := loadRoster(ctx, s.students, course.ID, institute.ID, nil)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, institute.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	planner := scheduler.NewPlanner(timing, s.occupancy().availability(institute, timing), s.cfg.HorizonDays)
	plan, err := planner.Plan(ctx, scheduler.PlanRequest{
		Roster:           studentIDs(roster),
		Date:             date,
		StartTime:        req.StartTime,
		Duration:         timing.SectionDuration,
		ForceNextDay:     req.ForceNextDay,
		ForceNextSection: req.ForceNextSection,
	})
	if err != nil {
		return nil, mapSchedulingError(err)
	}
	applyPlan(exam, plan)

	if err := s.persist(ctx, exam, course, roster); err != nil {
		return nil, err
	}
	return exam, nil
}

// ScheduleFinal books a single sitting at the requested time, rejecting the
// request when operating hours or free machines do not allow it.
func (s *ExamAllocationService) ScheduleFinal(ctx context.Context, req dto.ScheduleFinalRequest) (exam *models.Exam, err error) {
	started := time.Now()
	defer func() { s.observe("schedule_final", exam, err, started) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid final exam payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	institute, timing, err := loadInstitute(ctx, s.institutes, req.InstituteID)
	if err != nil {
		return nil, err
	}
	course, err := loadCourse(ctx, s.courses, req.CourseID)
	if err != nil {
		return nil, err
	}
	examCfg, ok := course.ConfigFor(req.ExamNumber)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("exam configuration %d not found for course", req.ExamNumber))
	}
	duration := examCfg.Duration
	if duration <= 0 {
		duration = timing.SectionDuration
	}

	if !scheduler.IsWorkingDay(date, timing.WorkingDays) {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("%s is not a working day (%s)", date.Format(models.DateLayout), date.Weekday()))
	}
	start, err := scheduler.ToMinutes(req.StartTime)
	if err != nil {
		return nil, mapSchedulingError(err)
	}
	if err := checkOperatingHours(timing, start, duration); err != nil {
		return nil, err
	}

	roster, err := loadRoster(ctx, s.students, course.ID, institute.ID, req.StudentIDs)
	if err != nil {
		return nil, err
	}
	bankIDs := examCfg.QuestionBankIDs
	if len(bankIDs) == 0 {
		bankIDs = course.QuestionBankIDs()
	}
	banks, err := loadQuestionBanks(ctx, s.banks, uniqueStrings(bankIDs))
	if err != nil {
		return nil, err
	}
	questions := s.sampler.Sample(banks, examCfg.TotalQuestions)

	unlock, err := s.locker.Lock(ctx, institute.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	index, err := s.occupancy().availability(institute, timing).IndexFor(ctx, date)
	if err != nil {
		return nil, mapSchedulingError(err)
	}
	end := start + duration
	free := index.FreeSystems(start, end)
	if len(free) == 0 {
		return nil, appErrors.Clone(appErrors.ErrCapacityExhausted, "No systems available")
	}
	if len(free) < len(roster) {
		return nil, appErrors.Clone(appErrors.ErrCapacityExhausted, fmt.Sprintf("Only %d systems available for %d students", len(free), len(roster)))
	}

	assignments := make(models.Assignments, 0, len(roster))
	for i, student := range roster {
		assignments = append(assignments, models.Assignment{StudentID: student.ID, SystemName: free[i], SectionNumber: 1})
	}
	exam = &models.Exam{
		Type:              models.ExamTypeFinal,
		CourseID:          course.ID,
		InstituteID:       institute.ID,
		Title:             req.Title,
		ExamNumber:        req.ExamNumber,
		Date:              date,
		StartTime:         scheduler.ToTimeString(start),
		EndTime:           scheduler.ToTimeString(end),
		Duration:          duration,
		TotalMarks:        len(questions) * s.cfg.MarksPerQuestion,
		Questions:         questions,
		Status:            models.ExamStatusScheduled,
		SystemAssignments: assignments,
	}
	if err := s.persist(ctx, exam, course, roster); err != nil {
		return nil, err
	}
	return exam, nil
}

// ScheduleMultiSection books a final exam that may span several sections and
// days. The proposed date must leave the configured notice period.
func (s *ExamAllocationService) ScheduleMultiSection(ctx context.Context, req dto.ScheduleMultiSectionRequest) (exam *models.Exam, err error) {
	started := time.Now()
	defer func() { s.observe("schedule_multi_section", exam, err, started) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multi-section payload")
	}
	date, err := parseDate(req.ProposedDate)
	if err != nil {
		return nil, err
	}
	earliest := scheduler.DateOnly(s.now().UTC()).AddDate(0, 0, s.cfg.MinNoticeDays)
	if date.Before(earliest) {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("multi-section exams need at least %d days notice, earliest date is %s", s.cfg.MinNoticeDays, earliest.Format(models.DateLayout)))
	}

	institute, timing, err := loadInstitute(ctx, s.institutes, req.InstituteID)
	if err != nil {
		return nil, err
	}
	course, err := loadCourse(ctx, s.courses, req.CourseID)
	if err != nil {
		return nil, err
	}
	var (
		examCfg models.ExamConfiguration
		ok      bool
	)
	if req.ExamNumber > 0 {
		examCfg, ok = course.ConfigFor(req.ExamNumber)
	} else {
		examCfg, ok = course.LatestConfig()
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam configuration not found for course")
	}
	duration := examCfg.Duration
	if duration <= 0 {
		duration = timing.SectionDuration
	}

	roster, err := loadRoster(ctx, s.students, course.ID, institute.ID, req.StudentIDs)
	if err != nil {
		return nil, err
	}
	bankIDs := examCfg.QuestionBankIDs
	if len(bankIDs) == 0 {
		bankIDs = course.QuestionBankIDs()
	}
	banks, err := loadQuestionBanks(ctx, s.banks, uniqueStrings(bankIDs))
	if err != nil {
		return nil, err
	}
	questions := s.sampler.Sample(banks, examCfg.TotalQuestions)

	unlock, err := s.locker.Lock(ctx, institute.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	planner := scheduler.NewPlanner(timing, s.occupancy().availability(institute, timing), s.cfg.HorizonDays)
	plan, err := planner.Plan(ctx, scheduler.PlanRequest{Roster: studentIDs(roster), Date: date, Duration: duration})
	if err != nil {
		return nil, mapSchedulingError(err)
	}

	exam = &models.Exam{
		Type:        models.ExamTypeFinal,
		CourseID:    course.ID,
		InstituteID: institute.ID,
		Title:       req.Title,
		ExamNumber:  examCfg.ExamNumber,
		Duration:    duration,
		TotalMarks:  len(questions) * s.cfg.MarksPerQuestion,
		Questions:   questions,
		Status:      models.ExamStatusScheduled,
	}
	applyPlan(exam, plan)
	if err := s.persist(ctx, exam, course, roster); err != nil {
		return nil, err
	}
	return exam, nil
}

// AvailableSystems previews the machines free for a window without booking them.
func (s *ExamAllocationService) AvailableSystems(ctx context.Context, instituteID string, query dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	date, err := parseDate(query.Date)
	if err != nil {
		return nil, err
	}
	institute, timing, err := loadInstitute(ctx, s.institutes, instituteID)
	if err != nil {
		return nil, err
	}
	start, err := scheduler.ToMinutes(query.StartTime)
	if err != nil {
		return nil, mapSchedulingError(err)
	}
	duration := query.Duration
	if duration <= 0 {
		duration = timing.SectionDuration
	}
	if err := scheduler.ValidateWindow(start, duration); err != nil {
		return nil, mapSchedulingError(err)
	}

	resp := &dto.AvailabilityResponse{
		InstituteID: institute.ID,
		Date:        date.Format(models.DateLayout),
		StartTime:   scheduler.ToTimeString(start),
		EndTime:     scheduler.ToTimeString(start + duration),
		Systems:     []string{},
	}
	if !scheduler.IsWorkingDay(date, timing.WorkingDays) || !timing.Fits(start, duration) {
		return resp, nil
	}
	index, err := s.occupancy().availability(institute, timing).IndexFor(ctx, date)
	if err != nil {
		return nil, mapSchedulingError(err)
	}
	resp.Systems = index.FreeSystems(start, start+duration)
	return resp, nil
}

// GetExam returns an exam by id.
func (s *ExamAllocationService) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	return loadExam(ctx, s.exams, id)
}

// ListAdmitCards returns the admit cards issued for an exam.
func (s *ExamAllocationService) ListAdmitCards(ctx context.Context, examID string) ([]models.AdmitCard, error) {
	if _, err := loadExam(ctx, s.exams, examID); err != nil {
		return nil, err
	}
	cards, err := s.cards.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admit cards")
	}
	return cards, nil
}

func (s *ExamAllocationService) createPractice(ctx context.Context, exam *models.Exam, date time.Time, startTime string, timing scheduler.Timing) (*models.Exam, error) {
	exam.Type = models.ExamTypeDPP
	start := timing.Opening
	if startTime != "" {
		parsed, err := scheduler.ToMinutes(startTime)
		if err != nil {
			return nil, mapSchedulingError(err)
		}
		start = parsed
	}
	if err := scheduler.ValidateWindow(start, exam.Duration); err != nil {
		return nil, mapSchedulingError(err)
	}
	exam.Date = date
	exam.StartTime = scheduler.ToTimeString(start)
	exam.EndTime = scheduler.ToTimeString(start + exam.Duration)
	exam.SystemAssignments = models.Assignments{}

	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.exams.Create(ctx, tx, exam); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, s.logger).Info("practice exam created", zap.String("exam_id", exam.ID), zap.Int("questions", len(exam.Questions)))
	return exam, nil
}

// persist writes the exam and its admit cards in one transaction, then announces it.
func (s *ExamAllocationService) persist(ctx context.Context, exam *models.Exam, course *models.Course, roster []models.Student) error {
	students := studentIndex(roster)
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.exams.Create(ctx, tx, exam); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
		}
		cards := make([]models.AdmitCard, 0, len(exam.SystemAssignments))
		for _, assignment := range exam.SystemAssignments {
			cards = append(cards, models.NewAdmitCard(exam, course, students[assignment.StudentID], assignment))
		}
		if err := s.cards.BulkCreate(ctx, tx, cards); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admit cards")
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithContext(ctx, s.logger).Info("exam scheduled",
		zap.String("exam_id", exam.ID),
		zap.String("institute_id", exam.InstituteID),
		zap.String("date", exam.Date.Format(models.DateLayout)),
		zap.Int("students", len(exam.SystemAssignments)),
		zap.Int("sections", sectionCount(exam)),
	)
	if err := publishExamEvent(ctx, s.publisher, events.ExamScheduled, exam, "", assignmentStudentIDs(exam.SystemAssignments)); err != nil {
		logger.WithContext(ctx, s.logger).Warn("publish exam scheduled event", zap.String("exam_id", exam.ID), zap.Error(err))
	}
	return nil
}

func (s *ExamAllocationService) observe(operation string, exam *models.Exam, err error, started time.Time) {
	students, sections := 0, 0
	if exam != nil {
		students = len(exam.SystemAssignments)
		sections = sectionCount(exam)
	}
	s.metrics.ObserveScheduling(operation, students, sections, err, time.Since(started))
}

// checkOperatingHours rejects windows outside opening and closing time.
func checkOperatingHours(timing scheduler.Timing, start, duration int) error {
	if start < timing.Opening {
		return appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("Exam starts at %s, which is before opening time (%s)", scheduler.ToTimeString(start), scheduler.ToTimeString(timing.Opening)))
	}
	if err := scheduler.ValidateWindow(start, duration); err != nil {
		return mapSchedulingError(err)
	}
	if start+duration > timing.Closing {
		return appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("Exam ends at %s, which is after closing time (%s)", scheduler.ToTimeString(start+duration), scheduler.ToTimeString(timing.Closing)))
	}
	return nil
}

// applyPlan copies a plan onto an exam; sections are kept only for multi-section exams.
func applyPlan(exam *models.Exam, plan *scheduler.Plan) {
	exam.Date = plan.Date()
	exam.StartTime = plan.StartTime()
	exam.EndTime = plan.EndTime()
	exam.MultiSection = plan.MultiSection()
	exam.SystemAssignments = plan.Assignments()
	if exam.MultiSection {
		exam.Sections = plan.ModelSections()
	} else {
		exam.Sections = models.Sections{}
	}
}

func sectionCount(exam *models.Exam) int {
	if len(exam.Sections) > 0 {
		return len(exam.Sections)
	}
	if len(exam.SystemAssignments) > 0 {
		return 1
	}
	return 0
}

func assignmentStudentIDs(assignments []models.Assignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.StudentID)
	}
	return ids
}
