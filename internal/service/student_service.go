package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/internal/repository"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

type studentRepository interface {
	studentLookup
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	PrependLog(ctx context.Context, id string, kind models.LogKind, entry interface{}) error
}

// analyticsInvalidator drops cached analytics after a log changes.
type analyticsInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string)
}

// StudentService handles student use-cases.
type StudentService struct {
	repo        studentRepository
	users       userDirectory
	invalidator analyticsInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewStudentService constructs the student service. invalidator may be nil.
func NewStudentService(repo studentRepository, users userDirectory, invalidator analyticsInvalidator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, users: users, invalidator: invalidator, validator: validate, logger: logger, now: time.Now}
}

// List returns the students visible to the actor with their parent populated.
func (s *StudentService) List(ctx context.Context, actor policy.Actor, query dto.StudentQuery) ([]models.StudentDetail, error) {
	if err := policy.Authorize(actor, policy.ActionListStudents, ""); err != nil {
		return nil, err
	}
	filter := models.StudentFilter{Grade: query.Grade, Section: query.Section, Search: query.Search}
	if parentID, scoped := policy.ScopeParentID(actor); scoped {
		filter.ParentID = parentID
	}

	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return s.withParents(ctx, students)
}

// Get returns a single student if the actor may view it.
func (s *StudentService) Get(ctx context.Context, actor policy.Actor, id string) (*models.StudentDetail, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionViewStudent); err != nil {
		return nil, err
	}
	student, err := findStudent(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionViewStudent, student.ParentID); err != nil {
		return nil, err
	}
	details, err := s.withParents(ctx, []models.Student{*student})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Create registers a student. The parent reference must point at a parent account.
func (s *StudentService) Create(ctx context.Context, actor policy.Actor, req dto.CreateStudentRequest) (*models.StudentDetail, error) {
	if err := policy.Authorize(actor, policy.ActionCreateStudent, ""); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	parent, err := s.users.FindByID(ctx, req.ParentID)
	if err != nil {
		if isMissingUser(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	if parent.Role != models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "parentId must reference a parent account")
	}

	exists, err := s.repo.ExistsByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
	}

	student := &models.Student{
		StudentID: req.StudentID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Grade:     req.Grade,
		Section:   req.Section,
		ParentID:  req.ParentID,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("actor_id", actor.UserID))
	summary := models.UserSummary{ID: parent.ID, FirstName: parent.FirstName, LastName: parent.LastName, Email: parent.Email, Role: parent.Role}
	return &models.StudentDetail{Student: *student, Parent: &summary}, nil
}

// AddAcademicResult prepends an exam result and returns the updated log.
func (s *StudentService) AddAcademicResult(ctx context.Context, actor policy.Actor, id string, req dto.AddAcademicResultRequest) ([]models.AcademicResult, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionAppendLog); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic result payload")
	}
	entry := models.AcademicResult{
		Subject:    req.Subject,
		Marks:      req.Marks,
		TotalMarks: req.TotalMarks,
		ExamType:   req.ExamType,
		Date:       s.now().UTC(),
	}
	student, err := s.prepend(ctx, actor, id, models.LogAcademic, entry)
	if err != nil {
		return nil, err
	}
	return append([]models.AcademicResult{entry}, student.AcademicResults...), nil
}

// AddPEPerformance prepends a PE observation and returns the updated log.
func (s *StudentService) AddPEPerformance(ctx context.Context, actor policy.Actor, id string, req dto.AddPEPerformanceRequest) ([]models.PEPerformance, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionAppendLog); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid PE payload")
	}
	entry := models.PEPerformance{
		Activity:       req.Activity,
		Performance:    req.Performance,
		TeacherRemarks: req.TeacherRemarks,
		Date:           s.now().UTC(),
	}
	student, err := s.prepend(ctx, actor, id, models.LogPE, entry)
	if err != nil {
		return nil, err
	}
	return append([]models.PEPerformance{entry}, student.PEPerformance...), nil
}

// AddReadingTime prepends a reading session and returns the updated log.
func (s *StudentService) AddReadingTime(ctx context.Context, actor policy.Actor, id string, req dto.AddReadingTimeRequest) ([]models.ReadingEntry, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionAppendLog); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reading payload")
	}
	entry := models.ReadingEntry{
		Minutes:        req.Minutes,
		BookTitle:      req.BookTitle,
		TeacherRemarks: req.TeacherRemarks,
		Date:           s.now().UTC(),
	}
	student, err := s.prepend(ctx, actor, id, models.LogReading, entry)
	if err != nil {
		return nil, err
	}
	return append([]models.ReadingEntry{entry}, student.ReadingTime...), nil
}

// prepend authorizes and writes entry at the head of the log, returning the student as it was before the write.
func (s *StudentService) prepend(ctx context.Context, actor policy.Actor, id string, kind models.LogKind, entry interface{}) (*models.Student, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionAppendLog); err != nil {
		return nil, err
	}
	student, err := findStudent(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionAppendLog, student.ParentID); err != nil {
		return nil, err
	}

	if err := s.repo.PrependLog(ctx, id, kind, entry); err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student log")
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateStudent(ctx, id)
	}
	return student, nil
}

func (s *StudentService) withParents(ctx context.Context, students []models.Student) ([]models.StudentDetail, error) {
	ids := idSet{}
	for _, st := range students {
		ids.add(st.ParentID)
	}
	parents, err := s.users.FindSummaries(ctx, ids.slice())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parents")
	}

	details := make([]models.StudentDetail, 0, len(students))
	for _, st := range students {
		details = append(details, models.StudentDetail{Student: st, Parent: userSummaryRef(parents, st.ParentID)})
	}
	return details, nil
}
