package models

import "time"

// ComplaintPriority ranks urgency.
type ComplaintPriority string

const (
	ComplaintPriorityLow    ComplaintPriority = "low"
	ComplaintPriorityMedium ComplaintPriority = "medium"
	ComplaintPriorityHigh   ComplaintPriority = "high"
	ComplaintPriorityUrgent ComplaintPriority = "urgent"
)

// ComplaintStatus tracks the complaint workflow.
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "pending"
	ComplaintStatusInProgress ComplaintStatus = "in-progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
)

// Complaint is raised about a student and discussed through responses.
type Complaint struct {
	ID          string               `bson:"_id" json:"id"`
	StudentID   string               `bson:"student" json:"studentId"`
	SubmittedBy string               `bson:"submittedBy" json:"submittedById"`
	AssignedTo  string               `bson:"assignedTo,omitempty" json:"assignedToId,omitempty"`
	Type        string               `bson:"type" json:"type"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Priority    ComplaintPriority    `bson:"priority" json:"priority"`
	Status      ComplaintStatus      `bson:"status" json:"status"`
	Responses   []ComplaintResponse  `bson:"responses" json:"responses"`
	Resolution  *ComplaintResolution `bson:"resolution,omitempty" json:"resolution,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// ComplaintResponse is one message in a complaint thread.
type ComplaintResponse struct {
	UserID    string       `bson:"user" json:"userId"`
	User      *UserSummary `bson:"-" json:"user,omitempty"`
	Message   string       `bson:"message" json:"message"`
	Timestamp time.Time    `bson:"timestamp" json:"timestamp"`
}

// ComplaintResolution is set when a complaint moves to resolved.
type ComplaintResolution struct {
	Description string       `bson:"description" json:"description"`
	ResolvedBy  string       `bson:"resolvedBy" json:"resolvedById"`
	Resolver    *UserSummary `bson:"-" json:"resolvedBy,omitempty"`
	ResolvedAt  time.Time    `bson:"resolvedAt" json:"resolvedAt"`
}

// ComplaintRecord is a complaint with its references populated.
type ComplaintRecord struct {
	Complaint
	Student      *StudentSummary `json:"student,omitempty"`
	Submitter    *UserSummary    `json:"submittedBy,omitempty"`
	AssignedUser *UserSummary    `json:"assignedTo,omitempty"`
}

// ComplaintFilter scopes complaint listing. A non-nil StudentIDs restricts results to that set.
type ComplaintFilter struct {
	StudentIDs []string
	Status     ComplaintStatus
}
