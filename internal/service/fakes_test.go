package service

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	"github.com/noah-isme/student-erp-api/internal/repository"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
)

var (
	adminActor   = policy.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	teacherActor = policy.Actor{UserID: "teacher-1", Role: models.RoleTeacher}
	parentActor  = policy.Actor{UserID: "parent-1", Role: models.RoleParent}
	otherParent  = policy.Actor{UserID: "parent-2", Role: models.RoleParent}
)

func errorCode(err error) string {
	if e := appErrors.FromError(err); e != nil {
		return e.Code
	}
	return ""
}

type fakeUsers struct {
	users map[string]models.User
	err   error
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func defaultUsers() *fakeUsers {
	return newFakeUsers(
		models.User{ID: adminActor.UserID, FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin},
		models.User{ID: teacherActor.UserID, FirstName: "Tom", LastName: "Teacher", Role: models.RoleTeacher},
		models.User{ID: parentActor.UserID, FirstName: "Pat", LastName: "Parent", Email: "pat@example.com", Role: models.RoleParent},
		models.User{ID: otherParent.UserID, FirstName: "Olga", LastName: "Other", Role: models.RoleParent},
	)
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f *fakeUsers) FindSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = models.UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Role: u.Role}
		}
	}
	return out, nil
}

// fakeStudents keeps students in memory and mirrors the write semantics of the Mongo repository.
type fakeStudents struct {
	mu       sync.Mutex
	students map[string]*models.Student
	seq      int
	err      error
	remarks  int
}

func newFakeStudents(students ...models.Student) *fakeStudents {
	f := &fakeStudents{students: map[string]*models.Student{}}
	for i := range students {
		st := students[i]
		f.students[st.ID] = &st
	}
	return f
}

func sampleStudents() *fakeStudents {
	return newFakeStudents(
		models.Student{ID: "stu-1", StudentID: "S-001", FirstName: "Ana", LastName: "Lee", Grade: "5", Section: "A", ParentID: parentActor.UserID},
		models.Student{ID: "stu-2", StudentID: "S-002", FirstName: "Ben", LastName: "Kim", Grade: "5", Section: "B", ParentID: otherParent.UserID},
	)
}

func (f *fakeStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Student{}
	for _, st := range f.students {
		if filter.ParentID != "" && st.ParentID != filter.ParentID {
			continue
		}
		if filter.Grade != "" && st.Grade != filter.Grade {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.students[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *st
	cp.AcademicResults = append([]models.AcademicResult(nil), st.AcademicResults...)
	cp.PEPerformance = append([]models.PEPerformance(nil), st.PEPerformance...)
	cp.ReadingTime = append([]models.ReadingEntry(nil), st.ReadingTime...)
	return &cp, nil
}

func (f *fakeStudents) FindSummaries(ctx context.Context, ids []string) (map[string]models.StudentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]models.StudentSummary{}
	for _, id := range ids {
		if st, ok := f.students[id]; ok {
			out[id] = models.StudentSummary{ID: st.ID, FirstName: st.FirstName, LastName: st.LastName, StudentID: st.StudentID, ParentID: st.ParentID}
		}
	}
	return out, nil
}

func (f *fakeStudents) IDsByParent(ctx context.Context, parentID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for _, st := range f.students {
		if st.ParentID == parentID {
			ids = append(ids, st.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStudents) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range f.students {
		if st.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudents) Create(ctx context.Context, student *models.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.seq++
	student.ID = "stu-new-" + strconv.Itoa(f.seq)
	student.AcademicResults = []models.AcademicResult{}
	student.PEPerformance = []models.PEPerformance{}
	student.ReadingTime = []models.ReadingEntry{}
	cp := *student
	f.students[student.ID] = &cp
	return nil
}

func (f *fakeStudents) PrependLog(ctx context.Context, id string, kind models.LogKind, entry interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	st, ok := f.students[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	switch e := entry.(type) {
	case models.AcademicResult:
		st.AcademicResults = append([]models.AcademicResult{e}, st.AcademicResults...)
	case models.PEPerformance:
		st.PEPerformance = append([]models.PEPerformance{e}, st.PEPerformance...)
	case models.ReadingEntry:
		st.ReadingTime = append([]models.ReadingEntry{e}, st.ReadingTime...)
	}
	return nil
}

func (f *fakeStudents) SetLatestRemark(ctx context.Context, id string, kind models.LogKind, remark string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.remarks++
	st, ok := f.students[id]
	if !ok {
		return nil
	}
	switch kind {
	case models.LogAcademic:
		if len(st.AcademicResults) > 0 {
			st.AcademicResults[0].TeacherRemarks = remark
		}
	case models.LogPE:
		if len(st.PEPerformance) > 0 {
			st.PEPerformance[0].TeacherRemarks = remark
		}
	case models.LogReading:
		if len(st.ReadingTime) > 0 {
			st.ReadingTime[0].TeacherRemarks = remark
		}
	}
	return nil
}

type fakeAttendance struct {
	mu         sync.Mutex
	records    map[string]*models.Attendance
	seq        int
	uniqueDay  bool
	lastFilter models.AttendanceFilter
	notified   []string
}

func newFakeAttendance(records ...models.Attendance) *fakeAttendance {
	f := &fakeAttendance{records: map[string]*models.Attendance{}}
	for i := range records {
		r := records[i]
		f.records[r.ID] = &r
	}
	return f
}

func (f *fakeAttendance) FindForDay(ctx context.Context, studentID string, start, end time.Time) (*models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.StudentID == studentID && !r.Date.Before(start) && r.Date.Before(end) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeAttendance) Insert(ctx context.Context, record *models.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uniqueDay {
		for _, r := range f.records {
			if r.StudentID == record.StudentID && r.Day == record.Day {
				return repository.ErrDuplicate
			}
		}
	}
	f.seq++
	record.ID = "att-" + strconv.Itoa(f.seq)
	cp := *record
	f.records[record.ID] = &cp
	return nil
}

func (f *fakeAttendance) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	out := []models.Attendance{}
	for _, r := range f.records {
		if filter.StudentIDs != nil && !contains(filter.StudentIDs, r.StudentID) {
			continue
		}
		if filter.DateFrom != nil && r.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && r.Date.After(*filter.DateTo) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeAttendance) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *r
	return &cp, nil
}

func (f *fakeAttendance) Update(ctx context.Context, record *models.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[record.ID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	r.Status, r.Reason, r.LateMinutes, r.VerifiedBy = record.Status, record.Reason, record.LateMinutes, record.VerifiedBy
	return nil
}

func (f *fakeAttendance) Acknowledge(ctx context.Context, id, response string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	r.ParentAcknowledged = true
	r.ParentResponse = response
	r.UpdatedAt = at
	return nil
}

func (f *fakeAttendance) MarkNotified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	r.NotifiedParent = true
	f.notified = append(f.notified, id)
	return nil
}

func (f *fakeAttendance) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeComplaints struct {
	complaints map[string]*models.Complaint
	seq        int
	lastFilter models.ComplaintFilter
}

func newFakeComplaints(complaints ...models.Complaint) *fakeComplaints {
	f := &fakeComplaints{complaints: map[string]*models.Complaint{}}
	for i := range complaints {
		c := complaints[i]
		f.complaints[c.ID] = &c
	}
	return f
}

func (f *fakeComplaints) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	f.lastFilter = filter
	out := []models.Complaint{}
	for _, c := range f.complaints {
		if filter.StudentIDs != nil && !contains(filter.StudentIDs, c.StudentID) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeComplaints) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	c, ok := f.complaints[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *c
	cp.Responses = append([]models.ComplaintResponse(nil), c.Responses...)
	return &cp, nil
}

func (f *fakeComplaints) Create(ctx context.Context, complaint *models.Complaint) error {
	f.seq++
	complaint.ID = "cmp-" + strconv.Itoa(f.seq)
	complaint.Responses = []models.ComplaintResponse{}
	cp := *complaint
	f.complaints[complaint.ID] = &cp
	return nil
}

func (f *fakeComplaints) AddResponse(ctx context.Context, id string, response models.ComplaintResponse) error {
	c, ok := f.complaints[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	c.Responses = append(c.Responses, response)
	return nil
}

func (f *fakeComplaints) UpdateStatus(ctx context.Context, complaint *models.Complaint) error {
	c, ok := f.complaints[complaint.ID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	c.Status = complaint.Status
	c.AssignedTo = complaint.AssignedTo
	c.Resolution = complaint.Resolution
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []models.Attendance
}

func (n *recordingNotifier) NotifyAttendance(ctx context.Context, record models.Attendance) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
}

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) InvalidateStudent(ctx context.Context, studentID string) {
	f.invalidated = append(f.invalidated, studentID)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
