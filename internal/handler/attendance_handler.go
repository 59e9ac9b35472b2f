package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/pkg/response"
)

type attendanceService interface {
	List(ctx context.Context, actor policy.Actor, query dto.AttendanceQuery) ([]models.AttendanceRecord, error)
	Mark(ctx context.Context, actor policy.Actor, req dto.MarkAttendanceRequest) (*models.AttendanceRecord, error)
	Update(ctx context.Context, actor policy.Actor, id string, req dto.UpdateAttendanceRequest) (*models.AttendanceRecord, error)
	Acknowledge(ctx context.Context, actor policy.Actor, id string, req dto.AcknowledgeAttendanceRequest) (*models.AttendanceRecord, error)
}

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// List godoc
// @Summary List attendance
// @Description The date range applies only when both startDate and endDate are given.
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Student ID"
// @Param startDate query string false "Start date (YYYY-MM-DD)"
// @Param endDate query string false "End date (YYYY-MM-DD), inclusive"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.AttendanceQuery
	if !bindQuery(c, &query, "invalid attendance filter") {
		return
	}
	records, err := h.attendance.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, records, len(records))
}

// Mark godoc
// @Summary Mark today's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "Attendance"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	record, err := h.attendance.Mark(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body dto.UpdateAttendanceRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	record, err := h.attendance.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Acknowledge godoc
// @Summary Acknowledge attendance
// @Description Parent confirmation with an optional response.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body dto.AcknowledgeAttendanceRequest false "Response"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /attendance/{id}/acknowledge [post]
func (h *AttendanceHandler) Acknowledge(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AcknowledgeAttendanceRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid acknowledgement payload") {
		return
	}
	record, err := h.attendance.Acknowledge(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}
