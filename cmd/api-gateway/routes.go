package main

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-exam-api/internal/handler"
)

type routeHandlers struct {
	exams      *handler.ExamHandler
	reschedule *handler.RescheduleHandler
	metrics    *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	exams := api.Group("/exams")
	exams.POST("/allocate", h.exams.Allocate)
	exams.POST("/final", h.exams.ScheduleFinal)
	exams.POST("/multi-section", h.exams.ScheduleMultiSection)
	exams.GET("/:id", h.exams.Get)
	exams.GET("/:id/admit-cards", h.exams.AdmitCards)
	exams.POST("/:id/reschedule", h.reschedule.Bulk)
	exams.PUT("/:id/reschedule", h.reschedule.Update)

	api.POST("/reschedule-requests/decision", h.reschedule.Decide)
	api.GET("/institutes/:id/availability", h.exams.Availability)
	api.GET("/metrics/scheduling", h.metrics.Summary)
}
