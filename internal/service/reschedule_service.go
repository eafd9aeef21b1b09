package service

import (
	"context"
	"fmt"
	"sort"
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

// DefaultRescheduledSuffix is appended to the title of split-off exams.
const DefaultRescheduledSuffix = " (Rescheduled)"

// RescheduleConfig governs tick placement and request approval.
type RescheduleConfig struct {
	TickMinutes         int
	MaxAttempts         int
	ApprovalHorizonDays int
	RescheduledSuffix   string
}

type rescheduleRequestStore interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.RescheduleRequest, error)
	UpdateDecision(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.RescheduleRequestStatus, newExamID *string, processedAt time.Time) (int64, error)
}

// RescheduleService moves students of committed exams onto new seats.
type RescheduleService struct {
	institutes instituteReader
	courses    courseReader
	students   studentReader
	exams      examStore
	cards      admitCardStore
	requests   rescheduleRequestStore
	tx         txProvider
	locker     InstituteLocker
	publisher  events.Publisher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        RescheduleConfig
	now        func() time.Time
}

// NewRescheduleService wires reschedule dependencies.
func NewRescheduleService(
	institutes instituteReader,
	courses courseReader,
	students studentReader,
	exams examStore,
	cards admitCardStore,
	requests rescheduleRequestStore,
	tx txProvider,
	locker InstituteLocker,
	publisher events.Publisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RescheduleConfig,
) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalInstituteLocker()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.TickMinutes <= 0 {
		cfg.TickMinutes = scheduler.DefaultTickMinutes
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = scheduler.DefaultMaxAttempts
	}
	if cfg.ApprovalHorizonDays <= 0 {
		cfg.ApprovalHorizonDays = 14
	}
	if cfg.RescheduledSuffix == "" {
		cfg.RescheduledSuffix = DefaultRescheduledSuffix
	}
	return &RescheduleService{
		institutes: institutes,
		courses:    courses,
		students:   students,
		exams:      exams,
		cards:      cards,
		requests:   requests,
		tx:         tx,
		locker:     locker,
		publisher:  publisher,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// move is one student leaving their current seat.
type move struct {
	studentID string
	reason    string
}

// relocation is the committed outcome of moving students off an exam.
type relocation struct {
	originalExamID string
	target         *models.Exam
	placements     []scheduler.Placement
}

// seat is a student's resolved window, used to regroup exams into sections.
type seat struct {
	assignment models.Assignment
	date       time.Time
	start      string
	end        string
}

// BulkReschedule moves the given students of an exam to the earliest free
// seats from the reschedule date. Students of an ordinary exam are split off
// into a child exam; students of a child exam are re-seated in place.
func (s *RescheduleService) BulkReschedule(ctx context.Context, req dto.BulkRescheduleRequest) (resp *dto.BulkRescheduleResponse, err error) {
	started := time.Now()
	var result *relocation
	defer func() { s.observe("bulk_reschedule", result, err, started) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	if req.ExamID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam id is required")
	}
	date, err := parseDate(req.RescheduleDate)
	if err != nil {
		return nil, err
	}

	ids := uniqueStrings(req.StudentIDs)
	moves := make([]move, 0, len(ids))
	for _, id := range ids {
		moves = append(moves, move{studentID: id, reason: req.Reason})
	}
	result, err = s.relocate(ctx, req.ExamID, moves, date, 0, nil)
	if err != nil {
		return nil, err
	}

	resp = &dto.BulkRescheduleResponse{
		RescheduledStudents: make([]dto.RescheduledStudent, 0, len(result.placements)),
		OriginalExamID:      result.originalExamID,
		RescheduledExamID:   result.target.ID,
	}
	for _, placement := range result.placements {
		resp.RescheduledStudents = append(resp.RescheduledStudents, dto.RescheduledStudent{
			StudentID:  placement.StudentID,
			SystemName: placement.System,
			Date:       placement.Date.Format(models.DateLayout),
			StartTime:  placement.StartTime(),
			EndTime:    placement.EndTime(),
		})
	}
	return resp, nil
}

// UpdateReschedule replaces the roster of a rescheduled exam. Removed students
// go back to their original seat, added students leave the original exam and
// every remaining student is re-seated from the new date with the new reason.
func (s *RescheduleService) UpdateReschedule(ctx context.Context, req dto.UpdateRescheduleRequest) (resp *dto.UpdateRescheduleResponse, err error) {
	started := time.Now()
	var result *relocation
	defer func() { s.observe("update_reschedule", result, err, started) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	if req.ExamID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam id is required")
	}
	date, err := parseDate(req.RescheduleDate)
	if err != nil {
		return nil, err
	}

	child, err := loadExam(ctx, s.exams, req.ExamID)
	if err != nil {
		return nil, err
	}
	if !child.IsRescheduledChild() {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("exam %s is not a rescheduled exam", child.ID))
	}
	institute, timing, err := loadInstitute(ctx, s.institutes, child.InstituteID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, institute.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// reread under the lock
	if child, err = loadExam(ctx, s.exams, req.ExamID); err != nil {
		return nil, err
	}
	parent, err := loadExam(ctx, s.exams, *child.ParentExamID)
	if err != nil {
		return nil, err
	}
	course, err := loadCourse(ctx, s.courses, child.CourseID)
	if err != nil {
		return nil, err
	}

	desired := uniqueStrings(req.StudentIDs)
	desiredSet := toSet(desired)
	current := make(map[string]bool, len(child.SystemAssignments))
	for _, assignment := range child.SystemAssignments {
		current[assignment.StudentID] = true
	}
	var added, removed, kept []string
	for _, id := range desired {
		if current[id] {
			kept = append(kept, id)
			continue
		}
		if _, ok := parent.FindAssignment(id); !ok {
			return nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("student %s is not assigned to exam %s", id, parent.ID))
		}
		added = append(added, id)
	}
	for _, assignment := range child.SystemAssignments {
		if !desiredSet[assignment.StudentID] {
			removed = append(removed, assignment.StudentID)
		}
	}
	addedSet := toSet(added)

	roster, err := loadRoster(ctx, s.students, child.CourseID, child.InstituteID, desired)
	if err != nil {
		return nil, err
	}

	restored, restoredBookings, err := s.restoreSeats(ctx, institute, timing, parent, child, removed)
	if err != nil {
		return nil, err
	}

	base := s.occupancy().source(institute.ID)
	source := scheduler.BookingSourceFunc(func(ctx context.Context, day time.Time) ([]scheduler.Booking, error) {
		bookings, err := base.BookingsOn(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, booking := range restoredBookings {
			if booking.Date.Equal(scheduler.DateOnly(day)) {
				bookings = append(bookings, booking)
			}
		}
		return bookings, nil
	})
	placements, err := s.place(ctx, institute, timing, source, scheduler.PlaceRequest{
		StudentIDs: desired,
		Date:       date,
		Duration:   child.Duration,
		Exclude: func(booking scheduler.Booking) bool {
			return booking.ExamID == child.ID || (booking.ExamID == parent.ID && addedSet[booking.StudentID])
		},
	})
	if err != nil {
		return nil, err
	}

	parent.RemoveStudents(addedSet)
	parent.RefreshSpan()
	if len(restored) > 0 {
		applySeats(parent, append(seatsOf(parent, nil), restored...))
	}
	applySeats(child, placementSeats(placements, uniformReason(desired, req.Reason)))

	students := studentIndex(roster)
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.exams.Update(ctx, tx, parent); err != nil {
			return mapSchedulingError(err)
		}
		if err := s.exams.Update(ctx, tx, child); err != nil {
			return mapSchedulingError(err)
		}
		if err := s.cards.MarkRescheduled(ctx, tx, parent.ID, desired, req.Reason); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag original admit cards")
		}
		if len(removed) > 0 {
			if err := s.cards.ClearRescheduled(ctx, tx, parent.ID, removed); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore original admit cards")
			}
		}
		if len(removed) > 0 {
			if err := s.cards.DeleteByExamStudents(ctx, tx, child.ID, removed); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove admit cards")
			}
		}
		return s.reseatCards(ctx, tx, child, course, students, desired)
	})
	if err != nil {
		return nil, err
	}

	result = &relocation{originalExamID: parent.ID, target: child, placements: placements}
	logger.WithContext(ctx, s.logger).Info("rescheduled exam updated",
		zap.String("exam_id", child.ID),
		zap.String("original_exam_id", parent.ID),
		zap.Int("added", len(added)),
		zap.Int("removed", len(removed)),
		zap.Int("updated", len(kept)),
	)
	if err := publishExamEvent(ctx, s.publisher, events.ExamRescheduled, child, parent.ID, desired); err != nil {
		logger.WithContext(ctx, s.logger).Warn("publish exam rescheduled event", zap.String("exam_id", child.ID), zap.Error(err))
	}

	return &dto.UpdateRescheduleResponse{
		Message: fmt.Sprintf("Rescheduled exam updated: %d added, %d removed, %d updated", len(added), len(removed), len(kept)),
		Added:   nonNil(added),
		Removed: nonNil(removed),
		Updated: nonNil(kept),
	}, nil
}

// ApproveRequests decides pending reschedule requests. Approved requests are
// grouped by original exam and seated from tomorrow, one transaction per group.
// A failing group is rolled back and stops the batch; earlier groups stay committed.
func (s *RescheduleService) ApproveRequests(ctx context.Context, req dto.ApproveRescheduleRequest) (*dto.ApproveRescheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule decision payload")
	}
	ids := uniqueStrings(req.RequestIDs)
	requests, err := s.requests.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule requests")
	}
	found := make(map[string]bool, len(requests))
	for _, request := range requests {
		found[request.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("reschedule request %s not found", id))
		}
	}

	pending := make([]models.RescheduleRequest, 0, len(requests))
	for _, request := range requests {
		if request.Status != models.RescheduleRequestPending {
			logger.WithContext(ctx, s.logger).Info("skipping decided reschedule request", zap.String("reschedule_request_id", request.ID), zap.String("status", string(request.Status)))
			continue
		}
		pending = append(pending, request)
	}

	resp := &dto.ApproveRescheduleResponse{ScheduledExams: []dto.ScheduledExamSummary{}}
	if len(pending) == 0 {
		return resp, nil
	}
	now := s.now().UTC()

	if !req.Approve {
		pendingIDs := make([]string, 0, len(pending))
		for _, request := range pending {
			pendingIDs = append(pendingIDs, request.ID)
		}
		var processed int64
		err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			n, err := s.requests.UpdateDecision(ctx, tx, pendingIDs, models.RescheduleRequestRejected, nil, now)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject reschedule requests")
			}
			processed = n
			return nil
		})
		if err != nil {
			return nil, err
		}
		resp.Processed = int(processed)
		return resp, nil
	}

	var order []string
	groups := make(map[string][]models.RescheduleRequest)
	for _, request := range pending {
		if _, ok := groups[request.OriginalExamID]; !ok {
			order = append(order, request.OriginalExamID)
		}
		groups[request.OriginalExamID] = append(groups[request.OriginalExamID], request)
	}

	tomorrow := scheduler.DateOnly(now).AddDate(0, 0, 1)
	for _, examID := range order {
		group := groups[examID]
		requestIDs := make([]string, 0, len(group))
		moves := make([]move, 0, len(group))
		seen := make(map[string]bool, len(group))
		for _, request := range group {
			requestIDs = append(requestIDs, request.ID)
			if seen[request.StudentID] {
				continue
			}
			seen[request.StudentID] = true
			moves = append(moves, move{studentID: request.StudentID, reason: request.Reason})
		}

		started := time.Now()
		result, err := s.relocate(ctx, examID, moves, tomorrow, s.cfg.ApprovalHorizonDays, func(tx *sqlx.Tx, target *models.Exam) error {
			newExamID := target.ID
			n, err := s.requests.UpdateDecision(ctx, tx, requestIDs, models.RescheduleRequestApproved, &newExamID, now)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve reschedule requests")
			}
			if int(n) != len(requestIDs) {
				return appErrors.Clone(appErrors.ErrConflict, "reschedule requests were decided concurrently")
			}
			return nil
		})
		s.observe("approve_reschedule", result, err, started)
		if err != nil {
			logger.WithContext(ctx, s.logger).Error("reschedule approval group failed",
				zap.String("original_exam_id", examID),
				zap.Strings("request_ids", requestIDs),
				zap.Error(err),
			)
			return nil, err
		}

		resp.ScheduledExams = append(resp.ScheduledExams, dto.ScheduledExamSummary{
			OriginalExamID: result.originalExamID,
			ExamID:         result.target.ID,
			Date:           result.target.Date.Format(models.DateLayout),
			StartTime:      result.target.StartTime,
			EndTime:        result.target.EndTime,
			StudentIDs:     placedStudents(result.placements),
			RequestIDs:     requestIDs,
		})
		resp.Processed += len(requestIDs)
	}
	return resp, nil
}

// relocate seats the moving students anew and commits the move atomically.
// extra runs inside the same transaction once the target exam is known.
func (s *RescheduleService) relocate(ctx context.Context, examID string, moves []move, date time.Time, horizonDays int, extra func(tx *sqlx.Tx, target *models.Exam) error) (*relocation, error) {
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return nil, err
	}
	institute, timing, err := loadInstitute(ctx, s.institutes, exam.InstituteID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, institute.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if exam, err = loadExam(ctx, s.exams, examID); err != nil {
		return nil, err
	}
	if exam.Status == models.ExamStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("exam %s is cancelled", exam.ID))
	}
	course, err := loadCourse(ctx, s.courses, exam.CourseID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(moves))
	reasons := make(map[string]string, len(moves))
	for _, m := range moves {
		if _, ok := exam.FindAssignment(m.studentID); !ok {
			return nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf("student %s is not assigned to exam %s", m.studentID, exam.ID))
		}
		ids = append(ids, m.studentID)
		reasons[m.studentID] = m.reason
	}
	moving := toSet(ids)
	roster, err := loadRoster(ctx, s.students, exam.CourseID, exam.InstituteID, ids)
	if err != nil {
		return nil, err
	}

	placements, err := s.place(ctx, institute, timing, s.occupancy().source(institute.ID), scheduler.PlaceRequest{
		StudentIDs:  ids,
		Date:        date,
		Duration:    exam.Duration,
		HorizonDays: horizonDays,
		Exclude: func(booking scheduler.Booking) bool {
			return booking.ExamID == exam.ID && moving[booking.StudentID]
		},
	})
	if err != nil {
		return nil, err
	}

	students := studentIndex(roster)
	result := &relocation{placements: placements}
	if exam.IsRescheduledChild() {
		parentID := *exam.ParentExamID
		applySeats(exam, append(seatsOf(exam, moving), placementSeats(placements, reasons)...))
		err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			if err := s.exams.Update(ctx, tx, exam); err != nil {
				return mapSchedulingError(err)
			}
			if err := s.flagOriginalCards(ctx, tx, parentID, ids, reasons); err != nil {
				return err
			}
			if err := s.reseatCards(ctx, tx, exam, course, students, ids); err != nil {
				return err
			}
			if extra != nil {
				return extra(tx, exam)
			}
			return nil
		})
		result.originalExamID = parentID
		result.target = exam
	} else {
		parentID := exam.ID
		child := &models.Exam{
			Type:         exam.Type,
			CourseID:     exam.CourseID,
			InstituteID:  exam.InstituteID,
			ParentExamID: &parentID,
			Title:        exam.Title + s.cfg.RescheduledSuffix,
			ExamNumber:   exam.ExamNumber,
			Duration:     exam.Duration,
			TotalMarks:   exam.TotalMarks,
			Questions:    exam.Questions,
			Status:       models.ExamStatusScheduled,
		}
		applySeats(child, placementSeats(placements, reasons))
		exam.RemoveStudents(moving)
		exam.RefreshSpan()
		err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			if err := s.exams.Create(ctx, tx, child); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rescheduled exam")
			}
			if err := s.exams.Update(ctx, tx, exam); err != nil {
				return mapSchedulingError(err)
			}
			if err := s.flagOriginalCards(ctx, tx, exam.ID, ids, reasons); err != nil {
				return err
			}
			if err := s.issueCards(ctx, tx, child, course, students, ids); err != nil {
				return err
			}
			if extra != nil {
				return extra(tx, child)
			}
			return nil
		})
		result.originalExamID = exam.ID
		result.target = child
	}
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).Info("students rescheduled",
		zap.String("exam_id", result.target.ID),
		zap.String("original_exam_id", result.originalExamID),
		zap.Int("students", len(placements)),
		zap.String("first_date", result.target.Date.Format(models.DateLayout)),
	)
	if err := publishExamEvent(ctx, s.publisher, events.ExamRescheduled, result.target, result.originalExamID, ids); err != nil {
		logger.WithContext(ctx, s.logger).Warn("publish exam rescheduled event", zap.String("exam_id", result.target.ID), zap.Error(err))
	}
	return result, nil
}

func (s *RescheduleService) occupancy() occupancy {
	return occupancy{exams: s.exams, cards: s.cards}
}

func (s *RescheduleService) place(ctx context.Context, institute *models.Institute, timing scheduler.Timing, source scheduler.BookingSource, req scheduler.PlaceRequest) ([]scheduler.Placement, error) {
	placer := scheduler.NewRescheduler(timing, institute.Systems, source, s.cfg.TickMinutes, s.cfg.MaxAttempts)
	placements, err := placer.Place(ctx, req)
	if err != nil {
		return nil, mapSchedulingError(err)
	}
	return placements, nil
}

// restoreSeats checks that each removed student's original seat is still free
// and reserves it. The original admit card remembers where that seat was.
func (s *RescheduleService) restoreSeats(ctx context.Context, institute *models.Institute, timing scheduler.Timing, parent, child *models.Exam, removed []string) ([]seat, []scheduler.Booking, error) {
	if len(removed) == 0 {
		return nil, nil, nil
	}
	cards, err := s.cards.ListByExam(ctx, parent.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original admit cards")
	}
	byStudent := make(map[string]models.AdmitCard, len(cards))
	for _, card := range cards {
		byStudent[card.StudentID] = card
	}
	leaving := toSet(removed)
	source := s.occupancy().source(institute.ID)
	indexes := make(map[time.Time]*scheduler.SlotIndex)

	seats := make([]seat, 0, len(removed))
	bookings := make([]scheduler.Booking, 0, len(removed))
	for _, id := range removed {
		card, ok := byStudent[id]
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("original admit card for student %s not found", id))
		}
		day := scheduler.DateOnly(card.ExamDate)
		start, errStart := scheduler.ToMinutes(card.StartTime)
		end, errEnd := scheduler.ToMinutes(card.EndTime)
		if errStart != nil || errEnd != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("original admit card for student %s has an invalid window", id))
		}

		index, ok := indexes[day]
		if !ok {
			existing, err := source.BookingsOn(ctx, day)
			if err != nil {
				return nil, nil, mapSchedulingError(err)
			}
			kept := existing[:0:0]
			for _, booking := range existing {
				if booking.ExamID == child.ID && leaving[booking.StudentID] {
					continue
				}
				kept = append(kept, booking)
			}
			index = scheduler.NewSlotIndex(institute.Systems, timing.Break, kept)
			indexes[day] = index
		}
		if !containsString(index.FreeSystems(start, end), card.SystemName) {
			return nil, nil, appErrors.Clone(appErrors.ErrPolicyViolation, fmt.Sprintf(
				"original seat of student %s (%s on %s %s-%s) is no longer free",
				id, card.SystemName, day.Format(models.DateLayout), scheduler.ToTimeString(start), scheduler.ToTimeString(end),
			))
		}

		booking := scheduler.Booking{ExamID: parent.ID, StudentID: id, System: card.SystemName, Date: day, Start: start, End: end}
		index.Reserve(booking)
		bookings = append(bookings, booking)
		seats = append(seats, seat{
			assignment: models.Assignment{StudentID: id, SystemName: card.SystemName},
			date:       day,
			start:      scheduler.ToTimeString(start),
			end:        scheduler.ToTimeString(end),
		})
	}
	return seats, bookings, nil
}

// flagOriginalCards marks the moved students' original admit cards, one update per reason.
func (s *RescheduleService) flagOriginalCards(ctx context.Context, tx *sqlx.Tx, examID string, ids []string, reasons map[string]string) error {
	var order []string
	byReason := make(map[string][]string)
	for _, id := range ids {
		reason := reasons[id]
		if _, ok := byReason[reason]; !ok {
			order = append(order, reason)
		}
		byReason[reason] = append(byReason[reason], id)
	}
	for _, reason := range order {
		if err := s.cards.MarkRescheduled(ctx, tx, examID, byReason[reason], reason); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag original admit cards")
		}
	}
	return nil
}

// reseatCards moves the existing admit cards of an exam to the students' new
// seats and issues cards for students that have none yet.
func (s *RescheduleService) reseatCards(ctx context.Context, tx *sqlx.Tx, exam *models.Exam, course *models.Course, students map[string]models.Student, ids []string) error {
	existing, err := s.cards.ListByExam(ctx, exam.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admit cards")
	}
	byStudent := make(map[string]models.AdmitCard, len(existing))
	for _, card := range existing {
		byStudent[card.StudentID] = card
	}

	var fresh []string
	for _, id := range ids {
		assignment, ok := exam.FindAssignment(id)
		if !ok {
			continue
		}
		card, ok := byStudent[id]
		if !ok {
			fresh = append(fresh, id)
			continue
		}
		card.ExamTitle = exam.Title
		card.ExamDate, card.StartTime, card.EndTime = exam.WindowFor(assignment)
		card.SystemName = assignment.SystemName
		card.IsRescheduled = assignment.IsRescheduled
		card.RescheduledReason = assignment.RescheduledReason
		if err := s.cards.Update(ctx, tx, &card); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admit card")
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return s.issueCards(ctx, tx, exam, course, students, fresh)
}

func (s *RescheduleService) issueCards(ctx context.Context, tx *sqlx.Tx, exam *models.Exam, course *models.Course, students map[string]models.Student, ids []string) error {
	cards := make([]models.AdmitCard, 0, len(ids))
	for _, id := range ids {
		assignment, ok := exam.FindAssignment(id)
		if !ok {
			continue
		}
		cards = append(cards, models.NewAdmitCard(exam, course, students[id], assignment))
	}
	if err := s.cards.BulkCreate(ctx, tx, cards); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admit cards")
	}
	return nil
}

func (s *RescheduleService) observe(operation string, result *relocation, err error, started time.Time) {
	students, sections := 0, 0
	if result != nil {
		students = len(result.placements)
		sections = sectionCount(result.target)
	}
	s.metrics.ObserveScheduling(operation, students, sections, err, time.Since(started))
}

// seatsOf lists the current seats of an exam, skipping the given students.
func seatsOf(exam *models.Exam, skip map[string]bool) []seat {
	seats := make([]seat, 0, len(exam.SystemAssignments))
	for _, assignment := range exam.SystemAssignments {
		if skip[assignment.StudentID] {
			continue
		}
		date, start, end := exam.WindowFor(assignment)
		seats = append(seats, seat{assignment: assignment, date: scheduler.DateOnly(date), start: start, end: end})
	}
	return seats
}

func placementSeats(placements []scheduler.Placement, reasons map[string]string) []seat {
	seats := make([]seat, 0, len(placements))
	for _, placement := range placements {
		reason := reasons[placement.StudentID]
		seats = append(seats, seat{
			assignment: models.Assignment{
				StudentID:         placement.StudentID,
				SystemName:        placement.System,
				IsRescheduled:     true,
				RescheduledReason: &reason,
			},
			date:  scheduler.DateOnly(placement.Date),
			start: placement.StartTime(),
			end:   placement.EndTime(),
		})
	}
	return seats
}

type seatWindow struct {
	date  time.Time
	start string
	end   string
}

// applySeats regroups seats into sections by window, numbered chronologically.
// Sections are only kept when more than one window remains.
func applySeats(exam *models.Exam, seats []seat) {
	var windows []seatWindow
	grouped := make(map[seatWindow][]models.Assignment)
	for _, s := range seats {
		w := seatWindow{date: s.date, start: s.start, end: s.end}
		if _, ok := grouped[w]; !ok {
			windows = append(windows, w)
		}
		grouped[w] = append(grouped[w], s.assignment)
	}
	sort.SliceStable(windows, func(i, j int) bool {
		if !windows[i].date.Equal(windows[j].date) {
			return windows[i].date.Before(windows[j].date)
		}
		if windows[i].start != windows[j].start {
			return windows[i].start < windows[j].start
		}
		return windows[i].end < windows[j].end
	})

	sections := make(models.Sections, 0, len(windows))
	flat := make(models.Assignments, 0, len(seats))
	for i, w := range windows {
		assignments := grouped[w]
		for k := range assignments {
			assignments[k].SectionNumber = i + 1
		}
		sections = append(sections, models.Section{
			SectionNumber:     i + 1,
			Date:              w.date,
			StartTime:         w.start,
			EndTime:           w.end,
			SystemAssignments: assignments,
		})
		flat = append(flat, assignments...)
	}

	exam.SystemAssignments = flat
	exam.MultiSection = len(sections) > 1
	exam.Sections = models.Sections{}
	if len(sections) == 0 {
		return
	}
	exam.Date = sections[0].Date
	exam.StartTime = sections[0].StartTime
	exam.EndTime = sections[len(sections)-1].EndTime
	if exam.MultiSection {
		exam.Sections = sections
	}
}

func placedStudents(placements []scheduler.Placement) []string {
	ids := make([]string, 0, len(placements))
	for _, placement := range placements {
		ids = append(ids, placement.StudentID)
	}
	return ids
}

func uniformReason(ids []string, reason string) map[string]string {
	reasons := make(map[string]string, len(ids))
	for _, id := range ids {
		reasons[id] = reason
	}
	return reasons
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
