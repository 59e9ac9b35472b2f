package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/pkg/response"
)

type complaintService interface {
	List(ctx context.Context, actor policy.Actor, query dto.ComplaintQuery) ([]models.ComplaintRecord, error)
	Create(ctx context.Context, actor policy.Actor, req dto.CreateComplaintRequest) (*models.ComplaintRecord, error)
	Respond(ctx context.Context, actor policy.Actor, id string, req dto.ComplaintResponseRequest) (*models.ComplaintRecord, error)
	UpdateStatus(ctx context.Context, actor policy.Actor, id string, req dto.UpdateComplaintStatusRequest) (*models.ComplaintRecord, error)
}

// ComplaintHandler exposes complaint endpoints.
type ComplaintHandler struct {
	complaints complaintService
}

// NewComplaintHandler constructs ComplaintHandler.
func NewComplaintHandler(complaints complaintService) *ComplaintHandler {
	return &ComplaintHandler{complaints: complaints}
}

// List godoc
// @Summary List complaints
// @Tags Complaints
// @Produce json
// @Param status query string false "pending, in-progress or resolved"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ComplaintQuery
	if !bindQuery(c, &query, "invalid complaint filter") {
		return
	}
	complaints, err := h.complaints.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, complaints, len(complaints))
}

// Create godoc
// @Summary Raise complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body dto.CreateComplaintRequest true "Complaint"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateComplaintRequest
	if !bindJSON(c, &req, "invalid complaint payload") {
		return
	}
	complaint, err := h.complaints.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, complaint)
}

// Respond godoc
// @Summary Add response
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.ComplaintResponseRequest true "Message"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /complaints/{id}/responses [post]
func (h *ComplaintHandler) Respond(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ComplaintResponseRequest
	if !bindJSON(c, &req, "invalid response payload") {
		return
	}
	complaint, err := h.complaints.Respond(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, complaint)
}

// UpdateStatus godoc
// @Summary Update complaint status
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.UpdateComplaintStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Security ApiKeyAuth
// @Router /complaints/{id}/status [put]
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateComplaintStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	complaint, err := h.complaints.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, complaint)
}
