package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, actor policy.Actor, query dto.StudentQuery) ([]models.StudentDetail, error)
	Get(ctx context.Context, actor policy.Actor, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, actor policy.Actor, req dto.CreateStudentRequest) (*models.StudentDetail, error)
	AddAcademicResult(ctx context.Context, actor policy.Actor, id string, req dto.AddAcademicResultRequest) ([]models.AcademicResult, error)
	AddPEPerformance(ctx context.Context, actor policy.Actor, id string, req dto.AddPEPerformanceRequest) ([]models.PEPerformance, error)
	AddReadingTime(ctx context.Context, actor policy.Actor, id string, req dto.AddReadingTimeRequest) ([]models.ReadingEntry, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Description Parents only see their own children.
// @Tags Students
// @Produce json
// @Param grade query string false "Grade"
// @Param section query string false "Section"
// @Param search query string false "Name or student id"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.StudentQuery
	if !bindQuery(c, &query, "invalid student filter") {
		return
	}
	students, err := h.students.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, students, len(students))
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	student, err := h.students.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateStudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.students.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// AddAcademicResult godoc
// @Summary Add academic result
// @Description Prepends a result and returns the whole academic log.
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.AddAcademicResultRequest true "Result"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /students/{id}/results [post]
func (h *StudentHandler) AddAcademicResult(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AddAcademicResultRequest
	if !bindJSON(c, &req, "invalid academic result payload") {
		return
	}
	log, err := h.students.AddAcademicResult(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, log)
}

// AddPEPerformance godoc
// @Summary Add PE performance
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.AddPEPerformanceRequest true "Observation"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /students/{id}/pe-performance [post]
func (h *StudentHandler) AddPEPerformance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AddPEPerformanceRequest
	if !bindJSON(c, &req, "invalid PE payload") {
		return
	}
	log, err := h.students.AddPEPerformance(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, log)
}

// AddReadingTime godoc
// @Summary Add reading time
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.AddReadingTimeRequest true "Reading session"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /students/{id}/reading-time [post]
func (h *StudentHandler) AddReadingTime(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AddReadingTimeRequest
	if !bindJSON(c, &req, "invalid reading payload") {
		return
	}
	log, err := h.students.AddReadingTime(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, log)
}
