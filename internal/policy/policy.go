// Package policy decides whether a caller may act on a student-owned record.
//
// Decisions depend only on the caller's role and identity and on the parent that owns the
// target student, so handlers and services can evaluate them before touching any store.
package policy

import (
	"github.com/noah-isme/student-erp-api/internal/models"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

// Action names an operation guarded by the policy.
type Action string

const (
	ActionListStudents          Action = "students:list"
	ActionViewStudent           Action = "students:view"
	ActionCreateStudent         Action = "students:create"
	ActionAppendLog             Action = "students:append-log"
	ActionAddRemark             Action = "students:add-remark"
	ActionViewPerformance       Action = "performance:view"
	ActionListAttendance        Action = "attendance:list"
	ActionMarkAttendance        Action = "attendance:mark"
	ActionUpdateAttendance      Action = "attendance:update"
	ActionAcknowledgeAttendance Action = "attendance:acknowledge"
	ActionListComplaints        Action = "complaints:list"
	ActionCreateComplaint       Action = "complaints:create"
	ActionRespondComplaint      Action = "complaints:respond"
	ActionUpdateComplaintStatus Action = "complaints:update-status"
)

type rule int

const (
	// anyRole lets every authenticated role through.
	anyRole rule = iota
	// staffOnly denies parents outright.
	staffOnly
	// staffOrOwningParent lets staff through and parents only for their own student.
	staffOrOwningParent
	// owningParentOnly allows only the parent of the student.
	owningParentOnly
)

var rules = map[Action]rule{
	ActionListStudents:          anyRole,
	ActionListAttendance:        anyRole,
	ActionListComplaints:        anyRole,
	ActionViewStudent:           staffOrOwningParent,
	ActionViewPerformance:       staffOrOwningParent,
	ActionCreateComplaint:       staffOrOwningParent,
	ActionRespondComplaint:      staffOrOwningParent,
	ActionCreateStudent:         staffOnly,
	ActionAppendLog:             staffOnly,
	ActionAddRemark:             staffOnly,
	ActionMarkAttendance:        staffOnly,
	ActionUpdateAttendance:      staffOnly,
	ActionUpdateComplaintStatus: staffOnly,
	ActionAcknowledgeAttendance: owningParentOnly,
}

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Role   models.UserRole
}

// ActorFromClaims builds an actor from token claims.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}

// IsParent reports whether the actor is a parent.
func (a Actor) IsParent() bool {
	return a.Role == models.RoleParent
}

// IsStaff reports whether the actor is an admin or teacher.
func (a Actor) IsStaff() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleTeacher
}

// Authorize returns nil when actor may perform action on a record whose student belongs to
// ownerParentID. Pass an empty owner for actions without a target student.
func Authorize(actor Actor, action Action, ownerParentID string) error {
	if actor.UserID == "" || !actor.Role.Valid() {
		return appErrors.ErrUnauthorized
	}
	r, ok := rules[action]
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}

	switch r {
	case anyRole:
		return nil
	case staffOnly:
		if actor.IsStaff() {
			return nil
		}
	case staffOrOwningParent:
		if actor.IsStaff() {
			return nil
		}
		if actor.IsParent() && owns(actor, ownerParentID) {
			return nil
		}
	case owningParentOnly:
		if actor.IsParent() && owns(actor, ownerParentID) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not authorized")
}

// AuthorizeRole checks only the role half of the rule for action. It lets callers reject a
// request before loading the target; Authorize must still run once the owner is known.
func AuthorizeRole(actor Actor, action Action) error {
	if actor.UserID == "" || !actor.Role.Valid() {
		return appErrors.ErrUnauthorized
	}
	r, ok := rules[action]
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	switch r {
	case staffOnly:
		if !actor.IsStaff() {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized")
		}
	case owningParentOnly:
		if !actor.IsParent() {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized")
		}
	case staffOrOwningParent:
		if !actor.IsStaff() && !actor.IsParent() {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized")
		}
	}
	return nil
}

// ScopeParentID returns the parent id list queries must be restricted to. The second
// result is false when the actor may see every record.
func ScopeParentID(actor Actor) (string, bool) {
	if actor.IsParent() {
		return actor.UserID, true
	}
	return "", false
}

func owns(actor Actor, ownerParentID string) bool {
	return ownerParentID != "" && ownerParentID == actor.UserID
}
