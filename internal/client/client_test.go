package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeError(w http.ResponseWriter, err *appErrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": err})
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "p1", "exp": exp.Unix()})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestCredentialExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Credential{}.Expired(now))
	assert.False(t, Credential{Token: "t"}.Expired(now))
	assert.False(t, Credential{Token: "t", ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Credential{Token: "t", ExpiresAt: now}.Expired(now))
}

func TestCredentialFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	cred, err := CredentialFromToken(signedToken(t, exp))
	require.NoError(t, err)
	assert.True(t, exp.Equal(cred.ExpiresAt))

	_, err = CredentialFromToken("not-a-jwt")
	assert.Error(t, err)
}

func TestExpiredCredentialIsNotSent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeData(w, http.StatusOK, []interface{}{})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Students(context.Background(), Credential{Token: "t", ExpiresAt: time.Now().Add(-time.Minute)}, dto.StudentQuery{})
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestLoginReturnsCredential(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get(TokenHeader))
		var req models.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pat@example.com", req.Email)
		writeData(w, http.StatusOK, models.LoginResponse{Token: signedToken(t, exp), User: models.UserInfo{ID: "p1", Role: models.RoleParent}})
	}))
	defer srv.Close()

	cred, user, err := New(srv.URL+"/api/").Login(context.Background(), "pat@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "p1", user.ID)
	assert.True(t, exp.Equal(cred.ExpiresAt))
}

func TestAPIErrorsAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get(TokenHeader))
		writeError(w, appErrors.Clone(appErrors.ErrForbidden, "not your student"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Student(context.Background(), Credential{Token: "tok"}, "stu-2")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
	assert.Equal(t, "not your student", appErrors.FromError(err).Message)
}

func TestNonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Me(context.Background(), Credential{Token: "tok"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, appErrors.FromError(err).Status)
}

func dashboardServer(t *testing.T, failAnalytics bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/students":
			writeData(w, http.StatusOK, []models.StudentDetail{
				{Student: models.Student{ID: "stu-1"}},
				{Student: models.Student{ID: "stu-2"}},
			})
		case r.URL.Path == "/attendance":
			id := r.URL.Query().Get("studentId")
			records := []models.AttendanceRecord{{Attendance: models.Attendance{ID: id + "-a", StudentID: id, Status: models.AttendanceStatusPresent}}}
			if id == "stu-2" {
				records = append(records, models.AttendanceRecord{Attendance: models.Attendance{ID: id + "-b", StudentID: id, Status: models.AttendanceStatusLate}})
			}
			writeData(w, http.StatusOK, records)
		case strings.HasSuffix(r.URL.Path, "/analytics"):
			if failAnalytics {
				writeError(w, appErrors.ErrInternal)
				return
			}
			writeData(w, http.StatusOK, models.PerformanceAnalytics{Reading: models.ReadingAnalytics{TotalMinutes: 30}})
		case r.URL.Path == "/complaints":
			writeData(w, http.StatusOK, []models.ComplaintRecord{{Complaint: models.Complaint{ID: "c1"}}})
		case strings.HasPrefix(r.URL.Path, "/students/"):
			writeData(w, http.StatusOK, models.StudentDetail{Student: models.Student{ID: "stu-1", StudentID: "S-001"}})
		case strings.HasPrefix(r.URL.Path, "/performance/"):
			writeData(w, http.StatusOK, models.PerformanceLogs{ReadingTime: []models.ReadingEntry{{Minutes: 15}}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestDashboard(t *testing.T) {
	srv := dashboardServer(t, false)
	defer srv.Close()

	view, err := New(srv.URL).Dashboard(context.Background(), Credential{Token: "tok"})
	require.NoError(t, err)

	assert.Len(t, view.Students, 2)
	assert.Len(t, view.Attendance, 3)
	assert.Equal(t, AttendanceSummary{Present: 2, Late: 1}, view.Summary)
	require.Contains(t, view.Analytics, "stu-2")
	assert.Equal(t, float64(30), view.Analytics["stu-2"].Reading.TotalMinutes)
	assert.Len(t, view.Complaints, 1)
}

func TestDashboardFailsOnFirstError(t *testing.T) {
	srv := dashboardServer(t, true)
	defer srv.Close()

	_, err := New(srv.URL).Dashboard(context.Background(), Credential{Token: "tok"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))
}

func TestStudentProfile(t *testing.T) {
	srv := dashboardServer(t, false)
	defer srv.Close()

	profile, err := New(srv.URL).StudentProfile(context.Background(), Credential{Token: "tok"}, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "S-001", profile.Student.StudentID)
	assert.Len(t, profile.Performance.ReadingTime, 1)
	assert.Equal(t, AttendanceSummary{Present: 1}, profile.Summary)
}
