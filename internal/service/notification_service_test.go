package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-erp-api/internal/models"
)

type recordingChannel struct {
	mu      sync.Mutex
	notices []ParentNotice
	failFor int
	calls   int
}

func (c *recordingChannel) Notify(ctx context.Context, notice ParentNotice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failFor {
		return errors.New("gateway down")
	}
	c.notices = append(c.notices, notice)
	return nil
}

func (c *recordingChannel) delivered() []ParentNotice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ParentNotice(nil), c.notices...)
}

func TestNotificationServiceDeliversAndFlags(t *testing.T) {
	record := models.Attendance{ID: "a1", StudentID: "stu-1", Status: models.AttendanceStatusAbsent, Reason: "flu", Date: attendanceNow}
	repo := newFakeAttendance(record)
	channel := &recordingChannel{}
	metrics := NewMetricsService()
	svc := NewNotificationService(repo, sampleStudents(), defaultUsers(), channel, metrics, NotificationConfig{Workers: 1, RetryDelay: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.NotifyAttendance(ctx, record)

	require.Eventually(t, func() bool { return len(channel.delivered()) == 1 }, time.Second, 5*time.Millisecond)
	notice := channel.delivered()[0]
	assert.Equal(t, "pat@example.com", notice.ParentEmail)
	assert.Equal(t, "Ana Lee", notice.StudentName)
	assert.Equal(t, models.AttendanceStatusAbsent, notice.Status)

	require.Eventually(t, func() bool {
		stored, err := repo.FindByID(context.Background(), "a1")
		return err == nil && stored.NotifiedParent
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return metrics.Snapshot().NotificationsSent == 1 }, time.Second, 5*time.Millisecond)
}

func TestNotificationServiceRetriesThenGivesUp(t *testing.T) {
	record := models.Attendance{ID: "a1", StudentID: "stu-1", Status: models.AttendanceStatusLate}
	repo := newFakeAttendance(record)
	channel := &recordingChannel{failFor: 10}
	metrics := NewMetricsService()
	svc := NewNotificationService(repo, sampleStudents(), defaultUsers(), channel, metrics, NotificationConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.NotifyAttendance(ctx, record)

	require.Eventually(t, func() bool { return metrics.Snapshot().NotificationsFailed == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, channel.delivered())
	stored, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, stored.NotifiedParent)
}

func TestNotificationServiceNotStartedCountsFailure(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewNotificationService(newFakeAttendance(), sampleStudents(), defaultUsers(), nil, metrics, NotificationConfig{}, nil)

	svc.NotifyAttendance(context.Background(), models.Attendance{ID: "a1", StudentID: "stu-1"})
	assert.Equal(t, uint64(1), metrics.Snapshot().NotificationsFailed)

	var nilService *NotificationService
	assert.NotPanics(t, func() { nilService.NotifyAttendance(context.Background(), models.Attendance{}) })
}
