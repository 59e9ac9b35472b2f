// Package client calls the student ERP API. Every request takes an explicit Credential; the
// client keeps no ambient session state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/student-erp-api/internal/dto"
	"github.com/noah-isme/student-erp-api/internal/models"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

// TokenHeader carries the access token on every authenticated request.
const TokenHeader = "x-auth-token"

// ErrCredentialExpired is returned before any request is sent with an expired credential.
var ErrCredentialExpired = appErrors.Clone(appErrors.ErrUnauthorized, "credential expired")

// Credential is an access token together with its expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// CredentialFromToken reads the expiry from the token's exp claim. The signature is not
// verified; the server does that.
func CredentialFromToken(token string) (Credential, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Credential{}, fmt.Errorf("parse token: %w", err)
	}
	cred := Credential{Token: token}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Credential{}, fmt.Errorf("read token expiry: %w", err)
	}
	if exp != nil {
		cred.ExpiresAt = exp.Time
	}
	return cred, nil
}

// Expired reports whether the credential can no longer be used at now. A zero expiry never
// expires.
func (c Credential) Expired(now time.Time) bool {
	if c.Token == "" {
		return true
	}
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Client is a thin typed wrapper over the REST API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	now     func() time.Time
}

// New creates a client for the API mounted at baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

// do sends one request. A nil cred sends an anonymous request.
func (c *Client) do(ctx context.Context, cred *Credential, method, path string, query url.Values, in, out interface{}) error {
	if cred != nil && cred.Expired(c.now()) {
		return ErrCredentialExpired
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if cred != nil {
		req.Header.Set(TokenHeader, cred.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return appErrors.New(appErrors.ErrInternal.Code, resp.StatusCode, resp.Status)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if env.Error != nil {
			if env.Error.Status == 0 {
				env.Error.Status = resp.StatusCode
			}
			return env.Error
		}
		return appErrors.New(appErrors.ErrInternal.Code, resp.StatusCode, resp.Status)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context, path string, in interface{}) (Credential, *models.UserInfo, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, nil, http.MethodPost, path, nil, in, &resp); err != nil {
		return Credential{}, nil, err
	}
	cred := Credential{Token: resp.Token, ExpiresAt: resp.ExpiresAt}
	if cred.ExpiresAt.IsZero() {
		if parsed, err := CredentialFromToken(resp.Token); err == nil {
			cred = parsed
		}
	}
	return cred, &resp.User, nil
}

// Login exchanges email and password for a credential.
func (c *Client) Login(ctx context.Context, email, password string) (Credential, *models.UserInfo, error) {
	return c.authenticate(ctx, "/auth/login", models.LoginRequest{Email: email, Password: password})
}

// Register creates an account and returns its first credential.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (Credential, *models.UserInfo, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

// Me resolves the identity behind cred.
func (c *Client) Me(ctx context.Context, cred Credential) (*models.UserInfo, error) {
	var user models.UserInfo
	if err := c.do(ctx, &cred, http.MethodGet, "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Students lists the students visible to cred.
func (c *Client) Students(ctx context.Context, cred Credential, query dto.StudentQuery) ([]models.StudentDetail, error) {
	params := url.Values{}
	setIf(params, "grade", query.Grade)
	setIf(params, "section", query.Section)
	setIf(params, "search", query.Search)
	var students []models.StudentDetail
	if err := c.do(ctx, &cred, http.MethodGet, "/students", params, nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// Student fetches one student.
func (c *Client) Student(ctx context.Context, cred Credential, id string) (*models.StudentDetail, error) {
	var student models.StudentDetail
	if err := c.do(ctx, &cred, http.MethodGet, "/students/"+url.PathEscape(id), nil, nil, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// CreateStudent registers a student.
func (c *Client) CreateStudent(ctx context.Context, cred Credential, req dto.CreateStudentRequest) (*models.StudentDetail, error) {
	var student models.StudentDetail
	if err := c.do(ctx, &cred, http.MethodPost, "/students", nil, req, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// AddAcademicResult prepends an exam result and returns the updated log.
func (c *Client) AddAcademicResult(ctx context.Context, cred Credential, studentID string, req dto.AddAcademicResultRequest) ([]models.AcademicResult, error) {
	var log []models.AcademicResult
	err := c.do(ctx, &cred, http.MethodPost, "/students/"+url.PathEscape(studentID)+"/results", nil, req, &log)
	return log, err
}

// AddPEPerformance prepends a PE observation and returns the updated log.
func (c *Client) AddPEPerformance(ctx context.Context, cred Credential, studentID string, req dto.AddPEPerformanceRequest) ([]models.PEPerformance, error) {
	var log []models.PEPerformance
	err := c.do(ctx, &cred, http.MethodPost, "/students/"+url.PathEscape(studentID)+"/pe-performance", nil, req, &log)
	return log, err
}

// AddReadingTime prepends a reading session and returns the updated log.
func (c *Client) AddReadingTime(ctx context.Context, cred Credential, studentID string, req dto.AddReadingTimeRequest) ([]models.ReadingEntry, error) {
	var log []models.ReadingEntry
	err := c.do(ctx, &cred, http.MethodPost, "/students/"+url.PathEscape(studentID)+"/reading-time", nil, req, &log)
	return log, err
}

// Attendance lists attendance, optionally for a single student.
func (c *Client) Attendance(ctx context.Context, cred Credential, studentID string) ([]models.AttendanceRecord, error) {
	params := url.Values{}
	setIf(params, "studentId", studentID)
	var records []models.AttendanceRecord
	if err := c.do(ctx, &cred, http.MethodGet, "/attendance", params, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// MarkAttendance records today's attendance.
func (c *Client) MarkAttendance(ctx context.Context, cred Credential, req dto.MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := c.do(ctx, &cred, http.MethodPost, "/attendance", nil, req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// AcknowledgeAttendance sends a parent's acknowledgement with an optional response.
func (c *Client) AcknowledgeAttendance(ctx context.Context, cred Credential, id, response string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	req := dto.AcknowledgeAttendanceRequest{Response: response}
	if err := c.do(ctx, &cred, http.MethodPost, "/attendance/"+url.PathEscape(id)+"/acknowledge", nil, req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Complaints lists complaints visible to cred.
func (c *Client) Complaints(ctx context.Context, cred Credential, status models.ComplaintStatus) ([]models.ComplaintRecord, error) {
	params := url.Values{}
	setIf(params, "status", string(status))
	var complaints []models.ComplaintRecord
	if err := c.do(ctx, &cred, http.MethodGet, "/complaints", params, nil, &complaints); err != nil {
		return nil, err
	}
	return complaints, nil
}

// CreateComplaint raises a complaint.
func (c *Client) CreateComplaint(ctx context.Context, cred Credential, req dto.CreateComplaintRequest) (*models.ComplaintRecord, error) {
	var complaint models.ComplaintRecord
	if err := c.do(ctx, &cred, http.MethodPost, "/complaints", nil, req, &complaint); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// RespondToComplaint appends a message to a complaint thread.
func (c *Client) RespondToComplaint(ctx context.Context, cred Credential, id, message string) (*models.ComplaintRecord, error) {
	var complaint models.ComplaintRecord
	req := dto.ComplaintResponseRequest{Message: message}
	if err := c.do(ctx, &cred, http.MethodPost, "/complaints/"+url.PathEscape(id)+"/responses", nil, req, &complaint); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// PerformanceLogs fetches the raw academic, PE and reading logs of a student.
func (c *Client) PerformanceLogs(ctx context.Context, cred Credential, studentID string) (*models.PerformanceLogs, error) {
	var logs models.PerformanceLogs
	if err := c.do(ctx, &cred, http.MethodGet, "/performance/"+url.PathEscape(studentID), nil, nil, &logs); err != nil {
		return nil, err
	}
	return &logs, nil
}

// Analytics fetches the aggregated performance view of a student.
func (c *Client) Analytics(ctx context.Context, cred Credential, studentID string) (*models.PerformanceAnalytics, error) {
	var analytics models.PerformanceAnalytics
	if err := c.do(ctx, &cred, http.MethodGet, "/performance/"+url.PathEscape(studentID)+"/analytics", nil, nil, &analytics); err != nil {
		return nil, err
	}
	return &analytics, nil
}

func setIf(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}
