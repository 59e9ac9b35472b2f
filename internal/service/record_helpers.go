package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/internal/repository"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

// userDirectory resolves user references held by student records.
type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// studentLookup is the read side of the student store shared by every record service.
type studentLookup interface {
	studentFinder
	FindSummaries(ctx context.Context, ids []string) (map[string]models.StudentSummary, error)
	IDsByParent(ctx context.Context, parentID string) ([]string, error)
}

func findStudent(ctx context.Context, students studentFinder, id string) (*models.Student, error) {
	student, err := students.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// scopedStudentIDs returns the student ids a parent may see, or nil when the actor is unrestricted.
// A parent without children gets an empty, non-nil slice so list queries match nothing.
func scopedStudentIDs(ctx context.Context, students studentLookup, actor policy.Actor) ([]string, error) {
	parentID, scoped := policy.ScopeParentID(actor)
	if !scoped {
		return nil, nil
	}
	ids, err := students.IDsByParent(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children")
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// narrowScope intersects a scope with an explicit student filter.
func narrowScope(scope []string, studentID string) []string {
	if studentID == "" {
		return scope
	}
	if scope == nil {
		return []string{studentID}
	}
	for _, id := range scope {
		if id == studentID {
			return []string{studentID}
		}
	}
	return []string{}
}

func isMissingUser(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func userSummaryRef(summaries map[string]models.UserSummary, id string) *models.UserSummary {
	if id == "" {
		return nil
	}
	if s, ok := summaries[id]; ok {
		return &s
	}
	return nil
}

func studentSummaryRef(summaries map[string]models.StudentSummary, id string) *models.StudentSummary {
	if s, ok := summaries[id]; ok {
		return &s
	}
	return nil
}

type idSet map[string]struct{}

func (s idSet) add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s idSet) slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
