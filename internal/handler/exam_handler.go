package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-exam-api/internal/dto"
	"github.com/noah-isme/lms-exam-api/internal/models"
	"github.com/noah-isme/lms-exam-api/internal/service"
	appErrors "github.com/noah-isme/lms-exam-api/pkg/errors"
	"github.com/noah-isme/lms-exam-api/pkg/response"
)

type examAllocator interface {
	AllocateSystems(ctx context.Context, req dto.AllocateSystemsRequest) (*models.Exam, error)
	ScheduleFinal(ctx context.Context, req dto.ScheduleFinalRequest) (*models.Exam, error)
	ScheduleMultiSection(ctx context.Context, req dto.ScheduleMultiSectionRequest) (*models.Exam, error)
	AvailableSystems(ctx context.Context, instituteID string, query dto.AvailabilityQuery) (*dto.AvailabilityResponse, error)
	GetExam(ctx context.Context, id string) (*models.Exam, error)
	ListAdmitCards(ctx context.Context, examID string) ([]models.AdmitCard, error)
}

// ExamHandler exposes exam allocation endpoints.
type ExamHandler struct {
	service examAllocator
}

// NewExamHandler constructs the handler.
func NewExamHandler(svc *service.ExamAllocationService) *ExamHandler {
	return &ExamHandler{service: svc}
}

// Allocate godoc
// @Summary Create an exam and allocate lab systems to every enrolled student
// @Description DPP exams receive a sampled paper only. Final exams spill into further sections and working days when machines run out.
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.AllocateSystemsRequest true "Allocation payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/allocate [post]
func (h *ExamHandler) Allocate(c *gin.Context) {
	var req dto.AllocateSystemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	exam, err := h.service.AllocateSystems(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// ScheduleFinal godoc
// @Summary Schedule a single-section final exam at a fixed time
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleFinalRequest true "Final exam payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exams/final [post]
func (h *ExamHandler) ScheduleFinal(c *gin.Context) {
	var req dto.ScheduleFinalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid final exam payload"))
		return
	}
	exam, err := h.service.ScheduleFinal(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// ScheduleMultiSection godoc
// @Summary Schedule a final exam across sections and days
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleMultiSectionRequest true "Multi-section payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exams/multi-section [post]
func (h *ExamHandler) ScheduleMultiSection(c *gin.Context) {
	var req dto.ScheduleMultiSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multi-section payload"))
		return
	}
	exam, err := h.service.ScheduleMultiSection(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Get godoc
// @Summary Get an exam with its sections and assignments
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	exam, err := h.service.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam)
}

// AdmitCards godoc
// @Summary List admit cards issued for an exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/admit-cards [get]
func (h *ExamHandler) AdmitCards(c *gin.Context) {
	cards, err := h.service.ListAdmitCards(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, map[string]interface{}{"count": len(cards)})
}

// Availability godoc
// @Summary Preview lab systems free for a window
// @Tags Institutes
// @Produce json
// @Param id path string true "Institute ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param startTime query string true "Start time (HH:MM)"
// @Param duration query int false "Duration in minutes, defaults to the section duration"
// @Success 200 {object} response.Envelope
// @Router /institutes/{id}/availability [get]
func (h *ExamHandler) Availability(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability query"))
		return
	}
	result, err := h.service.AvailableSystems(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
