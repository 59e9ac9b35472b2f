package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/internal/repository"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

type complaintRepository interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
	Create(ctx context.Context, complaint *models.Complaint) error
	AddResponse(ctx context.Context, id string, response models.ComplaintResponse) error
	UpdateStatus(ctx context.Context, complaint *models.Complaint) error
}

// ComplaintService runs the complaint workflow.
type ComplaintService struct {
	repo      complaintRepository
	students  studentLookup
	users     userDirectory
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewComplaintService constructs the complaint service.
func NewComplaintService(repo complaintRepository, students studentLookup, users userDirectory, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{repo: repo, students: students, users: users, validator: validate, logger: logger, now: time.Now}
}

// List returns complaints visible to the actor, newest first.
func (s *ComplaintService) List(ctx context.Context, actor policy.Actor, query dto.ComplaintQuery) ([]models.ComplaintRecord, error) {
	if err := policy.Authorize(actor, policy.ActionListComplaints, ""); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint filter")
	}
	scope, err := scopedStudentIDs(ctx, s.students, actor)
	if err != nil {
		return nil, err
	}

	complaints, err := s.repo.List(ctx, models.ComplaintFilter{StudentIDs: scope, Status: query.Status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	return s.populate(ctx, complaints)
}

// Create raises a complaint. Parents may only complain about their own student.
func (s *ComplaintService) Create(ctx context.Context, actor policy.Actor, req dto.CreateComplaintRequest) (*models.ComplaintRecord, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionCreateComplaint); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	student, err := findStudent(ctx, s.students, req.StudentID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionCreateComplaint, student.ParentID); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.ComplaintPriorityMedium
	}
	complaint := &models.Complaint{
		StudentID:   student.ID,
		SubmittedBy: actor.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		Status:      models.ComplaintStatusPending,
	}
	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}
	return s.populateOne(ctx, *complaint)
}

// Respond appends a message to the thread.
func (s *ComplaintService) Respond(ctx context.Context, actor policy.Actor, id string, req dto.ComplaintResponseRequest) (*models.ComplaintRecord, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionRespondComplaint); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	complaint, student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionRespondComplaint, student.ParentID); err != nil {
		return nil, err
	}

	response := models.ComplaintResponse{UserID: actor.UserID, Message: req.Message, Timestamp: s.now().UTC()}
	if err := s.repo.AddResponse(ctx, id, response); err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add response")
	}
	complaint.Responses = append(complaint.Responses, response)
	complaint.UpdatedAt = response.Timestamp

	return s.populateOne(ctx, *complaint)
}

// UpdateStatus moves the complaint through its workflow. Resolving records who resolved it and when.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor policy.Actor, id string, req dto.UpdateComplaintStatusRequest) (*models.ComplaintRecord, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionUpdateComplaintStatus); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	complaint, student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionUpdateComplaintStatus, student.ParentID); err != nil {
		return nil, err
	}

	if req.AssignedTo != "" {
		assignee, err := s.users.FindByID(ctx, req.AssignedTo)
		if err != nil {
			if isMissingUser(err) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "assignee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
		}
		if assignee.Role == models.RoleParent {
			return nil, appErrors.Clone(appErrors.ErrValidation, "complaints can only be assigned to staff")
		}
		complaint.AssignedTo = assignee.ID
	}

	complaint.Status = req.Status
	if req.Status == models.ComplaintStatusResolved {
		complaint.Resolution = &models.ComplaintResolution{
			Description: req.Resolution,
			ResolvedBy:  actor.UserID,
			ResolvedAt:  s.now().UTC(),
		}
	}

	if err := s.repo.UpdateStatus(ctx, complaint); err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint")
	}
	s.logger.Info("complaint status changed",
		zap.String("complaint_id", complaint.ID),
		zap.String("status", string(complaint.Status)),
		zap.String("actor_id", actor.UserID))

	return s.populateOne(ctx, *complaint)
}

func (s *ComplaintService) load(ctx context.Context, id string) (*models.Complaint, *models.Student, error) {
	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	student, err := findStudent(ctx, s.students, complaint.StudentID)
	if err != nil {
		return nil, nil, err
	}
	return complaint, student, nil
}

func (s *ComplaintService) populateOne(ctx context.Context, complaint models.Complaint) (*models.ComplaintRecord, error) {
	out, err := s.populate(ctx, []models.Complaint{complaint})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *ComplaintService) populate(ctx context.Context, complaints []models.Complaint) ([]models.ComplaintRecord, error) {
	studentIDs, userIDs := idSet{}, idSet{}
	for _, c := range complaints {
		studentIDs.add(c.StudentID)
		userIDs.add(c.SubmittedBy)
		userIDs.add(c.AssignedTo)
		for _, r := range c.Responses {
			userIDs.add(r.UserID)
		}
		if c.Resolution != nil {
			userIDs.add(c.Resolution.ResolvedBy)
		}
	}
	students, err := s.students.FindSummaries(ctx, studentIDs.slice())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	users, err := s.users.FindSummaries(ctx, userIDs.slice())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}

	out := make([]models.ComplaintRecord, 0, len(complaints))
	for _, c := range complaints {
		responses := make([]models.ComplaintResponse, len(c.Responses))
		for i, r := range c.Responses {
			r.User = userSummaryRef(users, r.UserID)
			responses[i] = r
		}
		c.Responses = responses
		if c.Resolution != nil {
			resolution := *c.Resolution
			resolution.Resolver = userSummaryRef(users, resolution.ResolvedBy)
			c.Resolution = &resolution
		}
		out = append(out, models.ComplaintRecord{
			Complaint:    c,
			Student:      studentSummaryRef(students, c.StudentID),
			Submitter:    userSummaryRef(users, c.SubmittedBy),
			AssignedUser: userSummaryRef(users, c.AssignedTo),
		})
	}
	return out, nil
}
