package models

import "time"

// Student represents a learner together with the logs teachers append to it.
type Student struct {
	ID              string           `bson:"_id" json:"id"`
	StudentID       string           `bson:"studentId" json:"studentId"`
	FirstName       string           `bson:"firstName" json:"firstName"`
	LastName        string           `bson:"lastName" json:"lastName"`
	Grade           string           `bson:"grade" json:"grade"`
	Section         string           `bson:"section" json:"section"`
	ParentID        string           `bson:"parent" json:"parentId"`
	AcademicResults []AcademicResult `bson:"academicResults" json:"academicResults"`
	PEPerformance   []PEPerformance  `bson:"pePerformance" json:"pePerformance"`
	ReadingTime     []ReadingEntry   `bson:"readingTime" json:"readingTime"`
	CreatedAt       time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// AcademicResult is a single exam result. Marks are not checked against TotalMarks.
type AcademicResult struct {
	Subject        string    `bson:"subject" json:"subject"`
	Marks          float64   `bson:"marks" json:"marks"`
	TotalMarks     float64   `bson:"totalMarks" json:"totalMarks"`
	ExamType       string    `bson:"examType" json:"examType"`
	Date           time.Time `bson:"date" json:"date"`
	TeacherRemarks string    `bson:"teacherRemarks,omitempty" json:"teacherRemarks,omitempty"`
}

// PEPerformance records a physical education observation.
type PEPerformance struct {
	Activity       string    `bson:"activity" json:"activity"`
	Performance    string    `bson:"performance" json:"performance"`
	TeacherRemarks string    `bson:"teacherRemarks,omitempty" json:"teacherRemarks,omitempty"`
	Date           time.Time `bson:"date" json:"date"`
}

// ReadingEntry records minutes spent reading a book on a day.
type ReadingEntry struct {
	Date           time.Time `bson:"date" json:"date"`
	Minutes        float64   `bson:"minutes" json:"minutes"`
	BookTitle      string    `bson:"bookTitle" json:"bookTitle"`
	TeacherRemarks string    `bson:"teacherRemarks,omitempty" json:"teacherRemarks,omitempty"`
}

// StudentSummary is the populated view of a referenced student.
type StudentSummary struct {
	ID        string `bson:"_id" json:"id"`
	FirstName string `bson:"firstName" json:"firstName"`
	LastName  string `bson:"lastName" json:"lastName"`
	StudentID string `bson:"studentId" json:"studentId"`
	ParentID  string `bson:"parent" json:"-"`
}

// StudentDetail is a student with its parent populated.
type StudentDetail struct {
	Student
	Parent *UserSummary `json:"parent,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ParentID string
	Grade    string
	Section  string
	Search   string
}

// LogKind names one of the embedded student logs.
type LogKind string

const (
	LogAcademic LogKind = "academic"
	LogPE       LogKind = "pe"
	LogReading  LogKind = "reading"
)

// Field returns the document field holding the log.
func (k LogKind) Field() string {
	switch k {
	case LogAcademic:
		return "academicResults"
	case LogPE:
		return "pePerformance"
	case LogReading:
		return "readingTime"
	default:
		return ""
	}
}
