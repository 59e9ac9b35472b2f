package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/internal/service"
	"github.com/noah-isme/student-erp-api/pkg/response"
)

type performanceService interface {
	GetLogs(ctx context.Context, actor policy.Actor, studentID string) (*models.PerformanceLogs, error)
	GetAnalytics(ctx context.Context, actor policy.Actor, studentID string) (*models.PerformanceAnalytics, error)
	AddRemark(ctx context.Context, actor policy.Actor, studentID string, req dto.AddRemarkRequest) (interface{}, error)
}

type reportService interface {
	Generate(ctx context.Context, actor policy.Actor, studentID, format string) (*service.ReportFile, error)
}

// PerformanceHandler exposes performance logs, analytics and reports.
type PerformanceHandler struct {
	performance performanceService
	reports     reportService
}

// NewPerformanceHandler constructs PerformanceHandler.
func NewPerformanceHandler(performance performanceService, reports reportService) *PerformanceHandler {
	return &PerformanceHandler{performance: performance, reports: reports}
}

// Logs godoc
// @Summary Raw performance logs
// @Tags Performance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /performance/{studentId} [get]
func (h *PerformanceHandler) Logs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logs, err := h.performance.GetLogs(c.Request.Context(), actor, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, logs)
}

// Analytics godoc
// @Summary Aggregated performance analytics
// @Tags Performance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /performance/{studentId}/analytics [get]
func (h *PerformanceHandler) Analytics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	analytics, err := h.performance.GetAnalytics(c.Request.Context(), actor, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, analytics)
}

// AddRemark godoc
// @Summary Remark on the latest log entry
// @Tags Performance
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body dto.AddRemarkRequest true "Remark"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /performance/{studentId}/comments [post]
func (h *PerformanceHandler) AddRemark(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AddRemarkRequest
	if !bindJSON(c, &req, "invalid remark payload") {
		return
	}
	log, err := h.performance.AddRemark(c.Request.Context(), actor, c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, log)
}

// Report godoc
// @Summary Download performance report
// @Tags Performance
// @Produce text/csv
// @Produce application/pdf
// @Param studentId path string true "Student ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Security ApiKeyAuth
// @Router /performance/{studentId}/report [get]
func (h *PerformanceHandler) Report(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ReportQuery
	if !bindQuery(c, &query, "invalid report format") {
		return
	}
	file, err := h.reports.Generate(c.Request.Context(), actor, c.Param("studentId"), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
