package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

type memoryCache struct {
	items   map[string][]byte
	gets    int
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.items, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

var performanceNow = time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

func performanceStudents() *fakeStudents {
	return newFakeStudents(
		models.Student{
			ID: "stu-1", StudentID: "S-001", FirstName: "Ana", LastName: "Lee", ParentID: parentActor.UserID,
			AcademicResults: []models.AcademicResult{
				{Subject: "Math", Marks: 40, TotalMarks: 50, ExamType: "quiz", Date: performanceNow.AddDate(0, 0, -1)},
				{Subject: "Math", Marks: 35, TotalMarks: 50, ExamType: "quiz", Date: performanceNow.AddDate(0, 0, -8)},
			},
			PEPerformance: []models.PEPerformance{{Activity: "Running", Performance: "Good", Date: performanceNow}},
			ReadingTime:   []models.ReadingEntry{{Minutes: 30, BookTitle: "Heidi", Date: performanceNow}},
		},
		models.Student{ID: "stu-2", StudentID: "S-002", ParentID: otherParent.UserID},
	)
}

func newPerformanceServiceForTest(students *fakeStudents, cache *CacheService) *PerformanceService {
	svc := NewPerformanceService(students, cache, time.Minute, nil, nil)
	svc.now = func() time.Time { return performanceNow }
	return svc
}

func TestPerformanceServiceGetLogs(t *testing.T) {
	svc := newPerformanceServiceForTest(performanceStudents(), nil)

	logs, err := svc.GetLogs(context.Background(), parentActor, "stu-1")
	require.NoError(t, err)
	assert.Len(t, logs.AcademicResults, 2)

	empty, err := svc.GetLogs(context.Background(), teacherActor, "stu-2")
	require.NoError(t, err)
	assert.NotNil(t, empty.ReadingTime)

	_, err = svc.GetLogs(context.Background(), parentActor, "stu-2")
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))

	_, err = svc.GetLogs(context.Background(), teacherActor, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestPerformanceServiceAnalyticsUsesCache(t *testing.T) {
	students := performanceStudents()
	store := newMemoryCache()
	metrics := NewMetricsService()
	svc := newPerformanceServiceForTest(students, NewCacheService(store, metrics, time.Minute, nil, true))
	ctx := context.Background()

	first, err := svc.GetAnalytics(ctx, parentActor, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, first.Academic["Math"].AveragePercentage)
	assert.Contains(t, store.items, analyticsCachePrefix+"stu-1")

	students.err = assert.AnError
	second, err := svc.GetAnalytics(ctx, parentActor, "stu-1")
	require.NoError(t, err, "served from cache without touching the store")
	assert.Equal(t, first.Academic, second.Academic)

	_, err = svc.GetAnalytics(ctx, otherParent, "stu-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err), "cached entries are still authorized")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestPerformanceServiceAddRemark(t *testing.T) {
	students := performanceStudents()
	store := newMemoryCache()
	svc := newPerformanceServiceForTest(students, NewCacheService(store, nil, time.Minute, nil, true))
	ctx := context.Background()

	_, err := svc.GetAnalytics(ctx, teacherActor, "stu-1")
	require.NoError(t, err)

	out, err := svc.AddRemark(ctx, teacherActor, "stu-1", dto.AddRemarkRequest{Type: models.LogAcademic, Comment: "Great improvement"})
	require.NoError(t, err)
	results, ok := out.([]models.AcademicResult)
	require.True(t, ok)
	assert.Equal(t, "Great improvement", results[0].TeacherRemarks)
	assert.Empty(t, results[1].TeacherRemarks)
	assert.Equal(t, []string{analyticsCachePrefix + "stu-1"}, store.deleted)

	stored, err := students.FindByID(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Great improvement", stored.AcademicResults[0].TeacherRemarks)
}

func TestPerformanceServiceAddRemarkEmptyLogAndRejections(t *testing.T) {
	students := performanceStudents()
	svc := newPerformanceServiceForTest(students, nil)
	ctx := context.Background()

	out, err := svc.AddRemark(ctx, teacherActor, "stu-2", dto.AddRemarkRequest{Type: models.LogPE, Comment: "n/a"})
	require.NoError(t, err)
	assert.Equal(t, []models.PEPerformance{}, out)

	_, err = svc.AddRemark(ctx, parentActor, "stu-1", dto.AddRemarkRequest{Type: models.LogPE, Comment: "hi"})
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))

	_, err = svc.AddRemark(ctx, teacherActor, "stu-1", dto.AddRemarkRequest{Type: "music", Comment: "hi"})
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
	assert.Equal(t, 1, students.remarks)
}
