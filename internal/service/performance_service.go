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

const analyticsCachePrefix = "performance:analytics:"

type performanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SetLatestRemark(ctx context.Context, id string, kind models.LogKind, remark string) error
}

// cachedAnalytics keeps the owning parent next to the payload so a hit can be authorized
// without reading the student.
type cachedAnalytics struct {
	ParentID  string                      `json:"parentId"`
	Analytics models.PerformanceAnalytics `json:"analytics"`
}

// PerformanceService exposes student performance logs and their aggregated analytics.
type PerformanceService struct {
	repo      performanceRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPerformanceService constructs the service. cache may be nil.
func NewPerformanceService(repo performanceRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *PerformanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger, now: time.Now}
}

// GetLogs returns the raw logs of a student.
func (s *PerformanceService) GetLogs(ctx context.Context, actor policy.Actor, studentID string) (*models.PerformanceLogs, error) {
	student, err := s.loadVisible(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	logs := logsOf(student)
	return &logs, nil
}

// GetAnalytics aggregates the logs of a student, serving from cache when possible.
func (s *PerformanceService) GetAnalytics(ctx context.Context, actor policy.Actor, studentID string) (*models.PerformanceAnalytics, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionViewPerformance); err != nil {
		return nil, err
	}

	key := analyticsCachePrefix + studentID
	var cached cachedAnalytics
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		if err := policy.Authorize(actor, policy.ActionViewPerformance, cached.ParentID); err != nil {
			return nil, err
		}
		return &cached.Analytics, nil
	}

	student, err := s.loadVisible(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	analytics := AggregatePerformance(logsOf(student), s.now())
	_ = s.cache.Set(ctx, key, cachedAnalytics{ParentID: student.ParentID, Analytics: analytics}, s.cacheTTL)
	return &analytics, nil
}

// Summary returns the student and a freshly computed aggregate, bypassing the cache.
func (s *PerformanceService) Summary(ctx context.Context, actor policy.Actor, studentID string) (*models.Student, models.PerformanceAnalytics, error) {
	student, err := s.loadVisible(ctx, actor, studentID)
	if err != nil {
		return nil, models.PerformanceAnalytics{}, err
	}
	return student, AggregatePerformance(logsOf(student), s.now()), nil
}

// AddRemark sets the teacher remark on the most recently added entry of one log and returns
// that log. An empty log is left untouched.
func (s *PerformanceService) AddRemark(ctx context.Context, actor policy.Actor, studentID string, req dto.AddRemarkRequest) (interface{}, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionAddRemark); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remark payload")
	}
	student, err := findStudent(ctx, s.repo, studentID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionAddRemark, student.ParentID); err != nil {
		return nil, err
	}

	if err := s.repo.SetLatestRemark(ctx, studentID, req.Type, req.Comment); err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save remark")
	}
	s.InvalidateStudent(ctx, studentID)

	switch req.Type {
	case models.LogAcademic:
		if len(student.AcademicResults) > 0 {
			student.AcademicResults[0].TeacherRemarks = req.Comment
		}
		return nonNil(student.AcademicResults), nil
	case models.LogPE:
		if len(student.PEPerformance) > 0 {
			student.PEPerformance[0].TeacherRemarks = req.Comment
		}
		return nonNil(student.PEPerformance), nil
	default:
		if len(student.ReadingTime) > 0 {
			student.ReadingTime[0].TeacherRemarks = req.Comment
		}
		return nonNil(student.ReadingTime), nil
	}
}

// InvalidateStudent drops the cached analytics of a student.
func (s *PerformanceService) InvalidateStudent(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, analyticsCachePrefix+studentID); err != nil {
		s.logger.Warn("failed to invalidate analytics", zap.String("student_id", studentID), zap.Error(err))
	}
}

func (s *PerformanceService) loadVisible(ctx context.Context, actor policy.Actor, studentID string) (*models.Student, error) {
	if err := policy.AuthorizeRole(actor, policy.ActionViewPerformance); err != nil {
		return nil, err
	}
	student, err := findStudent(ctx, s.repo, studentID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionViewPerformance, student.ParentID); err != nil {
		return nil, err
	}
	return student, nil
}

func logsOf(student *models.Student) models.PerformanceLogs {
	return models.PerformanceLogs{
		AcademicResults: nonNil(student.AcademicResults),
		PEPerformance:   nonNil(student.PEPerformance),
		ReadingTime:     nonNil(student.ReadingTime),
	}
}

func nonNil[T any](entries []T) []T {
	if entries == nil {
		return []T{}
	}
	return entries
}
