package dto

import (
	"time"

	"github.com/noah-isme/student-erp-api/internal/models"
)

// CreateStudentRequest registers a student under a parent account.
type CreateStudentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
	Section   string `json:"section" validate:"required"`
	ParentID  string `json:"parentId" validate:"required"`
}

// StudentQuery holds list filters taken from the query string.
type StudentQuery struct {
	Grade   string `form:"grade"`
	Section string `form:"section"`
	Search  string `form:"search"`
}

// AddAcademicResultRequest appends an exam result. Marks above totalMarks are accepted.
type AddAcademicResultRequest struct {
	Subject    string  `json:"subject" validate:"required"`
	Marks      float64 `json:"marks" validate:"gte=0"`
	TotalMarks float64 `json:"totalMarks" validate:"gte=0"`
	ExamType   string  `json:"examType" validate:"required"`
}

// AddPEPerformanceRequest appends a PE observation.
type AddPEPerformanceRequest struct {
	Activity       string `json:"activity" validate:"required"`
	Performance    string `json:"performance" validate:"required"`
	TeacherRemarks string `json:"teacherRemarks"`
}

// AddReadingTimeRequest appends a reading session.
type AddReadingTimeRequest struct {
	Minutes        float64 `json:"minutes" validate:"gte=0"`
	BookTitle      string  `json:"bookTitle" validate:"required"`
	TeacherRemarks string  `json:"teacherRemarks"`
}

// AddRemarkRequest attaches a teacher remark to the latest entry of a log.
type AddRemarkRequest struct {
	Type    models.LogKind `json:"type" validate:"required,oneof=academic pe reading"`
	Comment string         `json:"comment" validate:"required"`
}

// MarkAttendanceRequest records today's attendance for a student.
type MarkAttendanceRequest struct {
	StudentID   string                  `json:"studentId" validate:"required"`
	Status      models.AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
	Reason      string                  `json:"reason"`
	LateMinutes int                     `json:"lateMinutes" validate:"gte=0"`
}

// UpdateAttendanceRequest changes an existing record. Nil fields keep their stored value.
type UpdateAttendanceRequest struct {
	Status      *models.AttendanceStatus `json:"status" validate:"omitempty,oneof=present absent late excused"`
	Reason      *string                  `json:"reason"`
	LateMinutes *int                     `json:"lateMinutes" validate:"omitempty,gte=0"`
}

// AcknowledgeAttendanceRequest is the parent's optional reply.
type AcknowledgeAttendanceRequest struct {
	Response string `json:"response"`
}

// AttendanceQuery filters attendance listing. The date range applies only when both ends are set.
type AttendanceQuery struct {
	StudentID string     `form:"studentId"`
	StartDate *time.Time `form:"startDate" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"endDate" time_format:"2006-01-02"`
}

// CreateComplaintRequest raises a complaint about a student.
type CreateComplaintRequest struct {
	StudentID   string                   `json:"studentId" validate:"required"`
	Type        string                   `json:"type" validate:"required"`
	Title       string                   `json:"title" validate:"required"`
	Description string                   `json:"description" validate:"required"`
	Priority    models.ComplaintPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// ComplaintResponseRequest adds a message to a complaint thread.
type ComplaintResponseRequest struct {
	Message string `json:"message" validate:"required"`
}

// UpdateComplaintStatusRequest moves a complaint through its workflow.
type UpdateComplaintStatusRequest struct {
	Status     models.ComplaintStatus `json:"status" validate:"required,oneof=pending in-progress resolved"`
	Resolution string                 `json:"resolution"`
	AssignedTo string                 `json:"assignedTo"`
}

// ComplaintQuery filters complaint listing.
type ComplaintQuery struct {
	Status models.ComplaintStatus `form:"status" validate:"omitempty,oneof=pending in-progress resolved"`
}

// ReportQuery selects the export format.
type ReportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
