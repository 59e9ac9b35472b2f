package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/middleware"
	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/internal/service"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

type apiEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditStub struct{ entries int }

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.entries++
	return nil
}

type authStub struct {
	registered models.RegisterRequest
	loginErr   error
}

func (a *authStub) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	a.registered = req
	return &models.LoginResponse{Token: "tok", User: models.UserInfo{Email: req.Email, Role: models.RoleParent}}, nil
}

func (a *authStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return &models.LoginResponse{Token: "tok"}, nil
}

func (a *authStub) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{Token: "tok2"}, nil
}

func (a *authStub) Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) error {
	return nil
}

func (a *authStub) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	return nil
}

func (a *authStub) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

type studentStub struct {
	lastActor policy.Actor
	lastQuery dto.StudentQuery
	created   int
}

func (s *studentStub) List(ctx context.Context, actor policy.Actor, query dto.StudentQuery) ([]models.StudentDetail, error) {
	s.lastActor, s.lastQuery = actor, query
	return []models.StudentDetail{{Student: models.Student{ID: "stu-1"}}, {Student: models.Student{ID: "stu-2"}}}, nil
}

func (s *studentStub) Get(ctx context.Context, actor policy.Actor, id string) (*models.StudentDetail, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return &models.StudentDetail{Student: models.Student{ID: id}}, nil
}

func (s *studentStub) Create(ctx context.Context, actor policy.Actor, req dto.CreateStudentRequest) (*models.StudentDetail, error) {
	s.created++
	return &models.StudentDetail{Student: models.Student{ID: "stu-new", StudentID: req.StudentID}}, nil
}

func (s *studentStub) AddAcademicResult(ctx context.Context, actor policy.Actor, id string, req dto.AddAcademicResultRequest) ([]models.AcademicResult, error) {
	return []models.AcademicResult{{Subject: req.Subject}}, nil
}

func (s *studentStub) AddPEPerformance(ctx context.Context, actor policy.Actor, id string, req dto.AddPEPerformanceRequest) ([]models.PEPerformance, error) {
	return []models.PEPerformance{{Activity: req.Activity}}, nil
}

func (s *studentStub) AddReadingTime(ctx context.Context, actor policy.Actor, id string, req dto.AddReadingTimeRequest) ([]models.ReadingEntry, error) {
	return []models.ReadingEntry{{BookTitle: req.BookTitle}}, nil
}

type attendanceStub struct {
	lastQuery dto.AttendanceQuery
	markErr   error
	ackReq    dto.AcknowledgeAttendanceRequest
}

func (a *attendanceStub) List(ctx context.Context, actor policy.Actor, query dto.AttendanceQuery) ([]models.AttendanceRecord, error) {
	a.lastQuery = query
	return []models.AttendanceRecord{}, nil
}

func (a *attendanceStub) Mark(ctx context.Context, actor policy.Actor, req dto.MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if a.markErr != nil {
		return nil, a.markErr
	}
	return &models.AttendanceRecord{Attendance: models.Attendance{ID: "att-1", Status: req.Status}}, nil
}

func (a *attendanceStub) Update(ctx context.Context, actor policy.Actor, id string, req dto.UpdateAttendanceRequest) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{Attendance: models.Attendance{ID: id}}, nil
}

func (a *attendanceStub) Acknowledge(ctx context.Context, actor policy.Actor, id string, req dto.AcknowledgeAttendanceRequest) (*models.AttendanceRecord, error) {
	a.ackReq = req
	return &models.AttendanceRecord{Attendance: models.Attendance{ID: id, ParentAcknowledged: true, ParentResponse: req.Response}}, nil
}

type complaintStub struct {
	lastStatus dto.UpdateComplaintStatusRequest
}

func (c *complaintStub) List(ctx context.Context, actor policy.Actor, query dto.ComplaintQuery) ([]models.ComplaintRecord, error) {
	return []models.ComplaintRecord{{Complaint: models.Complaint{ID: "c1"}}}, nil
}

func (c *complaintStub) Create(ctx context.Context, actor policy.Actor, req dto.CreateComplaintRequest) (*models.ComplaintRecord, error) {
	return &models.ComplaintRecord{Complaint: models.Complaint{ID: "c1", SubmittedBy: actor.UserID}}, nil
}

func (c *complaintStub) Respond(ctx context.Context, actor policy.Actor, id string, req dto.ComplaintResponseRequest) (*models.ComplaintRecord, error) {
	return &models.ComplaintRecord{Complaint: models.Complaint{ID: id}}, nil
}

func (c *complaintStub) UpdateStatus(ctx context.Context, actor policy.Actor, id string, req dto.UpdateComplaintStatusRequest) (*models.ComplaintRecord, error) {
	c.lastStatus = req
	return &models.ComplaintRecord{Complaint: models.Complaint{ID: id, Status: req.Status}}, nil
}

type performanceStub struct{}

func (performanceStub) GetLogs(ctx context.Context, actor policy.Actor, studentID string) (*models.PerformanceLogs, error) {
	return &models.PerformanceLogs{}, nil
}

func (performanceStub) GetAnalytics(ctx context.Context, actor policy.Actor, studentID string) (*models.PerformanceAnalytics, error) {
	return &models.PerformanceAnalytics{Academic: map[string]models.SubjectAnalytics{"Math": {AveragePercentage: 75}}}, nil
}

func (performanceStub) AddRemark(ctx context.Context, actor policy.Actor, studentID string, req dto.AddRemarkRequest) (interface{}, error) {
	return []models.PEPerformance{}, nil
}

type reportStub struct{ format string }

func (r *reportStub) Generate(ctx context.Context, actor policy.Actor, studentID, format string) (*service.ReportFile, error) {
	r.format = format
	return &service.ReportFile{Filename: "performance_S-001.csv", ContentType: "text/csv", Body: []byte("a,b\n")}, nil
}

type testAPI struct {
	router     *gin.Engine
	auth       *authStub
	students   *studentStub
	attendance *attendanceStub
	complaints *complaintStub
	reports    *reportStub
	audit      *auditStub
}

func newTestAPI(checks map[string]ReadinessCheck) *testAPI {
	gin.SetMode(gin.TestMode)
	api := &testAPI{
		router:     gin.New(),
		auth:       &authStub{},
		students:   &studentStub{},
		attendance: &attendanceStub{},
		complaints: &complaintStub{},
		reports:    &reportStub{},
		audit:      &auditStub{},
	}
	RegisterRoutes(api.router, "/api", Handlers{
		Auth:        NewAuthHandler(api.auth),
		Students:    NewStudentHandler(api.students),
		Attendance:  NewAttendanceHandler(api.attendance),
		Complaints:  NewComplaintHandler(api.complaints),
		Performance: NewPerformanceHandler(performanceStub{}, api.reports),
		Metrics:     NewMetricsHandler(service.NewMetricsService(), checks),
	}, RouteDeps{
		Tokens: tokenStub{
			"admin":   {UserID: "a1", Role: models.RoleAdmin},
			"teacher": {UserID: "t1", Role: models.RoleTeacher},
			"parent":  {UserID: "p1", Role: models.RoleParent},
		},
		Audit:        api.audit,
		LoginLimiter: middleware.NewMemoryRateLimiter(3, time.Minute),
	})
	return api
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiEnvelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env apiEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestRoutesRequireToken(t *testing.T) {
	api := newTestAPI(nil)

	for _, path := range []string{"/api/students", "/api/attendance", "/api/complaints", "/api/performance/stu-1", "/api/auth/me"} {
		rec, env := api.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, env.Error.Code)
	}
}

func TestStudentRoutes(t *testing.T) {
	api := newTestAPI(nil)

	rec, env := api.do(http.MethodGet, "/api/students?grade=5&search=ana", "parent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), env.Meta["count"])
	assert.Equal(t, policy.Actor{UserID: "p1", Role: models.RoleParent}, api.students.lastActor)
	assert.Equal(t, dto.StudentQuery{Grade: "5", Search: "ana"}, api.students.lastQuery)

	rec, env = api.do(http.MethodGet, "/api/students/missing", "teacher", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, env.Error.Code)

	rec, _ = api.do(http.MethodPost, "/api/students", "parent", dto.CreateStudentRequest{StudentID: "S-9"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, api.students.created)

	rec, _ = api.do(http.MethodPost, "/api/students", "admin", dto.CreateStudentRequest{StudentID: "S-9"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, api.audit.entries)

	rec, env = api.do(http.MethodPost, "/api/students/stu-1/reading-time", "teacher", dto.AddReadingTimeRequest{Minutes: 10, BookTitle: "Heidi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"date":"0001-01-01T00:00:00Z","minutes":0,"bookTitle":"Heidi"}]`, string(env.Data))
}

func TestStudentRoutesRejectMalformedJSON(t *testing.T) {
	api := newTestAPI(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/students/stu-1/results", bytes.NewBufferString("{"))
	req.Header.Set(middleware.TokenHeader, "teacher")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaffRoutesForbidParentsBeforeBinding(t *testing.T) {
	api := newTestAPI(nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/attendance"},
		{http.MethodPut, "/api/attendance/att-1"},
		{http.MethodPost, "/api/students/stu-1/results"},
		{http.MethodPost, "/api/students/stu-1/pe-performance"},
		{http.MethodPost, "/api/students/stu-1/reading-time"},
		{http.MethodPut, "/api/complaints/c1/status"},
		{http.MethodPost, "/api/performance/stu-1/comments"},
	}
	bodies := map[string]string{
		"malformed": "{",
		"invalid":   `{"status":"sleeping","marks":-1,"minutes":-1}`,
	}

	for _, route := range routes {
		for name, body := range bodies {
			req := httptest.NewRequest(route.method, route.path, bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(middleware.TokenHeader, "parent")
			rec := httptest.NewRecorder()
			api.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s with %s body", route.method, route.path, name)
			var env apiEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			require.NotNil(t, env.Error)
			assert.Equal(t, appErrors.ErrForbidden.Code, env.Error.Code)
		}
	}
	assert.Zero(t, api.audit.entries, "rejected calls are not audited")
}

func TestAttendanceRoutes(t *testing.T) {
	api := newTestAPI(nil)

	rec, _ := api.do(http.MethodGet, "/api/attendance?studentId=stu-1&startDate=2024-03-01&endDate=2024-03-31", "teacher", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", api.attendance.lastQuery.StudentID)
	require.NotNil(t, api.attendance.lastQuery.StartDate)
	require.NotNil(t, api.attendance.lastQuery.EndDate)
	assert.Equal(t, 31, api.attendance.lastQuery.EndDate.Day())

	rec, _ = api.do(http.MethodGet, "/api/attendance?startDate=yesterday", "teacher", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/attendance", "teacher", dto.MarkAttendanceRequest{StudentID: "stu-1", Status: models.AttendanceStatusPresent})
	assert.Equal(t, http.StatusCreated, rec.Code)

	api.attendance.markErr = appErrors.Clone(appErrors.ErrConflict, "attendance already marked for today")
	rec, env := api.do(http.MethodPost, "/api/attendance", "teacher", dto.MarkAttendanceRequest{StudentID: "stu-1", Status: models.AttendanceStatusPresent})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "attendance already marked for today", env.Error.Message)

	rec, _ = api.do(http.MethodPost, "/api/attendance/att-1/acknowledge", "parent", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "an empty body is accepted")
	assert.Empty(t, api.attendance.ackReq.Response)

	rec, _ = api.do(http.MethodPost, "/api/attendance/att-1/acknowledge", "parent", dto.AcknowledgeAttendanceRequest{Response: "noted"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "noted", api.attendance.ackReq.Response)
}

func TestComplaintRoutes(t *testing.T) {
	api := newTestAPI(nil)

	rec, env := api.do(http.MethodPost, "/api/complaints", "parent", dto.CreateComplaintRequest{StudentID: "stu-1", Type: "other", Title: "t", Description: "d"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.ComplaintRecord
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "p1", created.SubmittedBy)

	rec, _ = api.do(http.MethodPut, "/api/complaints/c1/status", "teacher", map[string]string{"status": "resolved", "resolution": "fixed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fixed", api.complaints.lastStatus.Resolution)
	assert.Equal(t, models.ComplaintStatusResolved, api.complaints.lastStatus.Status)
}

func TestPerformanceReportDownload(t *testing.T) {
	api := newTestAPI(nil)

	rec, _ := api.do(http.MethodGet, "/api/performance/stu-1/report?format=csv", "parent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="performance_S-001.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", rec.Body.String())
	assert.Equal(t, "csv", api.reports.format)

	rec, env := api.do(http.MethodGet, "/api/performance/stu-1/analytics", "parent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"averagePercentage":75`)
}

func TestLoginRateLimited(t *testing.T) {
	api := newTestAPI(nil)
	api.auth.loginErr = appErrors.ErrInvalidCredentials

	for i := 0; i < 3; i++ {
		rec, _ := api.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "x@example.com", Password: "bad"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, env := api.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "x@example.com", Password: "bad"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, appErrors.ErrTooManyRequests.Code, env.Error.Code)
}

func TestRegisterRoute(t *testing.T) {
	api := newTestAPI(nil)

	rec, _ := api.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{Email: "new@example.com", Password: "secret1", FirstName: "N", LastName: "U"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "new@example.com", api.auth.registered.Email)
}

func TestOpsRoutes(t *testing.T) {
	api := newTestAPI(map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"mongo":    func(ctx context.Context) error { return errors.New("no reachable servers") },
	})

	rec, _ := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no reachable servers")

	rec, _ = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/system/metrics", "teacher", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/system/metrics", "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
