package client

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
)

// maxFanOut bounds concurrent requests issued by a single view.
const maxFanOut = 4

// AttendanceSummary counts attendance records by status.
type AttendanceSummary struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
}

// Add counts one record.
func (s *AttendanceSummary) Add(status models.AttendanceStatus) {
	switch status {
	case models.AttendanceStatusPresent:
		s.Present++
	case models.AttendanceStatusAbsent:
		s.Absent++
	case models.AttendanceStatusLate:
		s.Late++
	case models.AttendanceStatusExcused:
		s.Excused++
	}
}

// Dashboard is the landing view: every visible student with attendance and analytics, plus
// open complaints.
type Dashboard struct {
	Students   []models.StudentDetail                 `json:"students"`
	Attendance []models.AttendanceRecord              `json:"attendance"`
	Summary    AttendanceSummary                      `json:"summary"`
	Analytics  map[string]models.PerformanceAnalytics `json:"analytics"`
	Complaints []models.ComplaintRecord               `json:"complaints"`
}

// Dashboard loads the landing view for cred. Per-student requests run concurrently; the first
// failure cancels the rest.
func (c *Client) Dashboard(ctx context.Context, cred Credential) (*Dashboard, error) {
	students, err := c.Students(ctx, cred, dto.StudentQuery{})
	if err != nil {
		return nil, err
	}

	view := &Dashboard{
		Students:  students,
		Analytics: make(map[string]models.PerformanceAnalytics, len(students)),
	}
	attendance := make([][]models.AttendanceRecord, len(students))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	g.Go(func() error {
		complaints, err := c.Complaints(gctx, cred, "")
		if err != nil {
			return err
		}
		view.Complaints = complaints
		return nil
	})
	for i := range students {
		i, id := i, students[i].ID
		g.Go(func() error {
			records, err := c.Attendance(gctx, cred, id)
			if err != nil {
				return err
			}
			attendance[i] = records
			return nil
		})
		g.Go(func() error {
			analytics, err := c.Analytics(gctx, cred, id)
			if err != nil {
				return err
			}
			mu.Lock()
			view.Analytics[id] = *analytics
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view.Attendance = []models.AttendanceRecord{}
	for _, records := range attendance {
		for _, record := range records {
			view.Summary.Add(record.Status)
		}
		view.Attendance = append(view.Attendance, records...)
	}
	if view.Complaints == nil {
		view.Complaints = []models.ComplaintRecord{}
	}
	return view, nil
}

// StudentProfile is the single-student view.
type StudentProfile struct {
	Student     models.StudentDetail      `json:"student"`
	Performance models.PerformanceLogs    `json:"performance"`
	Attendance  []models.AttendanceRecord `json:"attendance"`
	Summary     AttendanceSummary         `json:"summary"`
}

// StudentProfile loads a student, their logs and their attendance concurrently.
func (c *Client) StudentProfile(ctx context.Context, cred Credential, studentID string) (*StudentProfile, error) {
	var (
		student    *models.StudentDetail
		logs       *models.PerformanceLogs
		attendance []models.AttendanceRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		student, err = c.Student(gctx, cred, studentID)
		return err
	})
	g.Go(func() (err error) {
		logs, err = c.PerformanceLogs(gctx, cred, studentID)
		return err
	})
	g.Go(func() (err error) {
		attendance, err = c.Attendance(gctx, cred, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profile := &StudentProfile{Student: *student, Performance: *logs, Attendance: attendance}
	for _, record := range attendance {
		profile.Summary.Add(record.Status)
	}
	return profile, nil
}
