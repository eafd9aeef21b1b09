package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-exam-api/internal/dto"
	"github.com/noah-isme/lms-exam-api/internal/service"
	appErrors "github.com/noah-isme/lms-exam-api/pkg/errors"
	"github.com/noah-isme/lms-exam-api/pkg/response"
)

type rescheduler interface {
	BulkReschedule(ctx context.Context, req dto.BulkRescheduleRequest) (*dto.BulkRescheduleResponse, error)
	UpdateReschedule(ctx context.Context, req dto.UpdateRescheduleRequest) (*dto.UpdateRescheduleResponse, error)
	ApproveRequests(ctx context.Context, req dto.ApproveRescheduleRequest) (*dto.ApproveRescheduleResponse, error)
}

// RescheduleHandler exposes reschedule endpoints.
type RescheduleHandler struct {
	service rescheduler
}

// NewRescheduleHandler constructs the handler.
func NewRescheduleHandler(svc *service.RescheduleService) *RescheduleHandler {
	return &RescheduleHandler{service: svc}
}

// Bulk godoc
// @Summary Move students of an exam to new seats
// @Description Students of an ordinary exam are split into a "(Rescheduled)" exam. Students of a rescheduled exam are re-seated in place. Either every student is moved or none.
// @Tags Reschedule
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.BulkRescheduleRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/reschedule [post]
func (h *RescheduleHandler) Bulk(c *gin.Context) {
	var req dto.BulkRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	req.ExamID = c.Param("id")
	result, err := h.service.BulkReschedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Update godoc
// @Summary Replace the roster of a rescheduled exam
// @Tags Reschedule
// @Accept json
// @Produce json
// @Param id path string true "Rescheduled exam ID"
// @Param payload body dto.UpdateRescheduleRequest true "Roster payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exams/{id}/reschedule [put]
func (h *RescheduleHandler) Update(c *gin.Context) {
	var req dto.UpdateRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	req.ExamID = c.Param("id")
	result, err := h.service.UpdateReschedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Decide godoc
// @Summary Approve or reject pending reschedule requests
// @Description Approved requests are grouped by original exam and seated from tomorrow.
// @Tags Reschedule
// @Accept json
// @Produce json
// @Param payload body dto.ApproveRescheduleRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /reschedule-requests/decision [post]
func (h *RescheduleHandler) Decide(c *gin.Context) {
	var req dto.ApproveRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule decision payload"))
		return
	}
	result, err := h.service.ApproveRequests(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
