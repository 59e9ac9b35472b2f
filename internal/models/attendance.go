package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// NeedsParentNotice reports whether a parent should be told about the record.
func (s AttendanceStatus) NeedsParentNotice() bool {
	return s == AttendanceStatusAbsent || s == AttendanceStatusLate
}

// Attendance is one student's attendance for one calendar day.
type Attendance struct {
	ID                 string           `bson:"_id" json:"id"`
	StudentID          string           `bson:"student" json:"studentId"`
	Date               time.Time        `bson:"date" json:"date"`
	Day                string           `bson:"day" json:"day"`
	Status             AttendanceStatus `bson:"status" json:"status"`
	Reason             string           `bson:"reason" json:"reason"`
	LateMinutes        int              `bson:"lateMinutes" json:"lateMinutes"`
	VerifiedBy         string           `bson:"verifiedBy" json:"verifiedById"`
	NotifiedParent     bool             `bson:"notifiedParent" json:"notifiedParent"`
	ParentAcknowledged bool             `bson:"parentAcknowledged" json:"parentAcknowledged"`
	ParentResponse     string           `bson:"parentResponse" json:"parentResponse"`
	CreatedAt          time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// AttendanceRecord is an attendance document with its references populated.
type AttendanceRecord struct {
	Attendance
	Student    *StudentSummary `json:"student,omitempty"`
	VerifiedBy *UserSummary    `json:"verifiedBy,omitempty"`
}

// AttendanceFilter scopes attendance listing. A non-nil StudentIDs restricts results to that set.
type AttendanceFilter struct {
	StudentIDs []string
	DateFrom   *time.Time
	DateTo     *time.Time
}
