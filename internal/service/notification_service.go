package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/repository"
	"github.com/noah-isme/student-erp-api/pkg/jobs"
)

const attendanceNoticeJob = "attendance.parent_notice"

// ParentNotice is the message delivered to a parent about an attendance record.
type ParentNotice struct {
	AttendanceID string
	ParentID     string
	ParentEmail  string
	ParentName   string
	StudentName  string
	Status       models.AttendanceStatus
	Date         time.Time
	Reason       string
	LateMinutes  int
}

// Notifier delivers parent notices.
type Notifier interface {
	Notify(ctx context.Context, notice ParentNotice) error
}

// LogNotifier writes notices to the application log instead of an external channel.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notice.
func (n *LogNotifier) Notify(_ context.Context, notice ParentNotice) error {
	n.logger.Info("parent notified",
		zap.String("attendance_id", notice.AttendanceID),
		zap.String("parent_id", notice.ParentID),
		zap.String("parent_email", notice.ParentEmail),
		zap.String("student", notice.StudentName),
		zap.String("status", string(notice.Status)),
		zap.Time("date", notice.Date),
		zap.Int("late_minutes", notice.LateMinutes))
	return nil
}

type notificationRepository interface {
	MarkNotified(ctx context.Context, id string) error
}

// NotificationConfig sizes the worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService delivers attendance notices to parents on a background queue.
type NotificationService struct {
	repo     notificationRepository
	students studentFinder
	users    userDirectory
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
	queue    *jobs.Queue
}

// NewNotificationService wires the service and its queue. Start must be called before notices are accepted.
func NewNotificationService(repo notificationRepository, students studentFinder, users userDirectory, notifier Notifier, metrics *MetricsService, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	s := &NotificationService{
		repo:     repo,
		students: students,
		users:    users,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("parent-notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, err error) {
			s.metrics.RecordNotification(false)
		},
	})
	return s
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight notices to finish.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyAttendance schedules a notice without blocking the caller. Failures are logged only.
func (s *NotificationService) NotifyAttendance(_ context.Context, record models.Attendance) {
	if s == nil {
		return
	}
	err := s.queue.TryEnqueue(jobs.Job{ID: record.ID, Type: attendanceNoticeJob, Payload: record})
	if err != nil {
		s.metrics.RecordNotification(false)
		s.logger.Warn("failed to schedule parent notice", zap.String("attendance_id", record.ID), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	record, ok := job.Payload.(models.Attendance)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	student, err := s.students.FindByID(ctx, record.StudentID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.logger.Warn("notice dropped, student missing", zap.String("attendance_id", record.ID))
			return nil
		}
		return fmt.Errorf("load student: %w", err)
	}
	parent, err := s.users.FindByID(ctx, student.ParentID)
	if err != nil {
		if isMissingUser(err) {
			s.logger.Warn("notice dropped, parent missing", zap.String("attendance_id", record.ID))
			return nil
		}
		return fmt.Errorf("load parent: %w", err)
	}

	notice := ParentNotice{
		AttendanceID: record.ID,
		ParentID:     parent.ID,
		ParentEmail:  parent.Email,
		ParentName:   parent.FirstName + " " + parent.LastName,
		StudentName:  student.FirstName + " " + student.LastName,
		Status:       record.Status,
		Date:         record.Date,
		Reason:       record.Reason,
		LateMinutes:  record.LateMinutes,
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		return fmt.Errorf("deliver notice: %w", err)
	}
	// The notice is out at this point, so a failed flag is not retried.
	if err := s.repo.MarkNotified(ctx, record.ID); err != nil && !repository.IsNotFound(err) {
		s.logger.Warn("failed to flag attendance notified", zap.String("attendance_id", record.ID), zap.Error(err))
	}
	s.metrics.RecordNotification(true)
	return nil
}
