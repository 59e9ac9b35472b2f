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

const dayKeyLayout = "2006-01-02"

type attendanceRepository interface {
	FindForDay(ctx context.Context, studentID string, start, end time.Time) (*models.Attendance, error)
	Insert(ctx context.Context, record *models.Attendance) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	Update(ctx context.Context, record *models.Attendance) error
	Acknowledge(ctx context.Context, id, response string, at time.Time) error
}

// parentNotifier schedules a parent notice for an attendance record.
type parentNotifier interface {
	NotifyAttendance(ctx context.Context, record models.Attendance)
}

// AttendanceService marks, amends and lists daily attendance.
type AttendanceService struct {
	repo      attendanceRepository
	students  studentLookup
	users     userDirectory
	notifier  parentNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service. Calendar days are computed in loc.
func NewAttendanceService(repo attendanceRepository, students studentLookup, users userDirectory, notifier parentNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		repo:      repo,
		students:  students,
		users:     users,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		location:  loc,
		now:       time.Now,
	}
}

// List returns attendance visible to the actor, newest first.
func (s *AttendanceService) List(ctx context.Context, actor policy.Actor, query dto.AttendanceQuery) ([]models.AttendanceRecord, error) {
	if err := policy.Authorize(actor, policy.ActionListAttendance, ""); err != nil {
		return nil, err
	}
	scope, err := scopedStudentIDs(ctx, s.students, actor)
	if err != nil {
		return nil, err
	}

	filter := models.AttendanceFilter{StudentIDs: narrowScope(scope, query.StudentID)}
	if query.StartDate != nil && query.EndDate != nil {
		from := calendarDate(*query.StartDate, s.location)
		to := calendarDate(*query.EndDate, s.location).AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.DateFrom = &from
		filter.DateTo = &to
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return s.populate(ctx, records)
}

// Mark records today's attendance for a student. A second record for the same calendar day is a conflict.
func (s *AttendanceService) Mark(ctx context.Context, actor policy.Actor, req dto.MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionMarkAttendance); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	student, err := findStudent(ctx, s.students, req.StudentID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionMarkAttendance, student.ParentID); err != nil {
		return nil, err
	}

	now := s.now().In(s.location)
	dayStart := startOfDay(now, s.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	// Check-then-insert; concurrent writers can both pass unless the unique day index is enabled.
	if _, err := s.repo.FindForDay(ctx, student.ID, dayStart, dayEnd); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for today")
	} else if !repository.IsNotFound(err) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}

	record := &models.Attendance{
		StudentID:   student.ID,
		Date:        now.UTC(),
		Day:         dayStart.Format(dayKeyLayout),
		Status:      req.Status,
		Reason:      req.Reason,
		LateMinutes: req.LateMinutes,
		VerifiedBy:  actor.UserID,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for today")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	s.metrics.RecordAttendanceMarked(record.Status)
	if record.Status.NeedsParentNotice() && s.notifier != nil {
		s.notifier.NotifyAttendance(ctx, *record)
	}

	return s.populateOne(ctx, *record)
}

// Update amends status, reason or late minutes. Omitted fields keep their stored value and the caller becomes the verifier.
func (s *AttendanceService) Update(ctx context.Context, actor policy.Actor, id string, req dto.UpdateAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionUpdateAttendance); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	record, student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionUpdateAttendance, student.ParentID); err != nil {
		return nil, err
	}

	previous := record.Status
	if req.Status != nil {
		record.Status = *req.Status
	}
	if req.Reason != nil {
		record.Reason = *req.Reason
	}
	if req.LateMinutes != nil {
		record.LateMinutes = *req.LateMinutes
	}
	record.VerifiedBy = actor.UserID

	if err := s.repo.Update(ctx, record); err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}

	if record.Status.NeedsParentNotice() && !previous.NeedsParentNotice() && !record.NotifiedParent && s.notifier != nil {
		s.notifier.NotifyAttendance(ctx, *record)
	}

	return s.populateOne(ctx, *record)
}

// Acknowledge lets the owning parent confirm a record with an optional response.
func (s *AttendanceService) Acknowledge(ctx context.Context, actor policy.Actor, id string, req dto.AcknowledgeAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionAcknowledgeAttendance); err != nil {
		return nil, err
	}
	record, student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionAcknowledgeAttendance, student.ParentID); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if err := s.repo.Acknowledge(ctx, id, req.Response, at); err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge attendance")
	}
	record.ParentAcknowledged = true
	record.ParentResponse = req.Response
	record.UpdatedAt = at

	return s.populateOne(ctx, *record)
}

func (s *AttendanceService) load(ctx context.Context, id string) (*models.Attendance, *models.Student, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	student, err := findStudent(ctx, s.students, record.StudentID)
	if err != nil {
		return nil, nil, err
	}
	return record, student, nil
}

func (s *AttendanceService) populateOne(ctx context.Context, record models.Attendance) (*models.AttendanceRecord, error) {
	out, err := s.populate(ctx, []models.Attendance{record})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *AttendanceService) populate(ctx context.Context, records []models.Attendance) ([]models.AttendanceRecord, error) {
	studentIDs, userIDs := idSet{}, idSet{}
	for _, r := range records {
		studentIDs.add(r.StudentID)
		userIDs.add(r.VerifiedBy)
	}
	students, err := s.students.FindSummaries(ctx, studentIDs.slice())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	users, err := s.users.FindSummaries(ctx, userIDs.slice())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verifiers")
	}

	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		out = append(out, models.AttendanceRecord{
			Attendance: r,
			Student:    studentSummaryRef(students, r.StudentID),
			VerifiedBy: userSummaryRef(users, r.VerifiedBy),
		})
	}
	return out, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// calendarDate keeps the year, month and day of t as written and places midnight in loc.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
