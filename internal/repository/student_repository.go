package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/student-erp-api/internal/models"
)

var studentSummaryProjection = bson.M{"_id": 1, "firstName": 1, "lastName": 1, "studentId": 1, "parent": 1}

// StudentRepository manages student documents and their embedded logs.
type StudentRepository struct {
	coll *mongo.Collection
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *mongo.Database) *StudentRepository {
	return &StudentRepository{coll: db.Collection(studentCollection)}
}

// EnsureIndexes creates the unique studentId index and the parent lookup index.
func (r *StudentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "studentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "parent", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure student indexes: %w", err)
	}
	return nil
}

// List returns students matching the provided filters ordered by name.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	query := bson.M{}
	if filter.ParentID != "" {
		query["parent"] = filter.ParentID
	}
	if filter.Grade != "" {
		query["grade"] = filter.Grade
	}
	if filter.Section != "" {
		query["section"] = filter.Section
	}
	if filter.Search != "" {
		pattern := containsInsensitive(filter.Search)
		query["$or"] = bson.A{
			bson.M{"firstName": pattern},
			bson.M{"lastName": pattern},
			bson.M{"studentId": pattern},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}})
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]models.Student, 0)
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return students, nil
}

// FindByID returns a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&student); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// FindSummaries loads the populated view of the given students keyed by id.
func (r *StudentRepository) FindSummaries(ctx context.Context, ids []string) (map[string]models.StudentSummary, error) {
	result := make(map[string]models.StudentSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	summaries, err := r.findSummaries(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		result[s.ID] = s
	}
	return result, nil
}

// IDsByParent returns the ids of every student linked to the parent.
func (r *StudentRepository) IDsByParent(ctx context.Context, parentID string) ([]string, error) {
	summaries, err := r.findSummaries(ctx, bson.M{"parent": parentID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (r *StudentRepository) findSummaries(ctx context.Context, query bson.M) ([]models.StudentSummary, error) {
	cursor, err := r.coll.Find(ctx, query, options.Find().SetProjection(studentSummaryProjection))
	if err != nil {
		return nil, fmt.Errorf("find student summaries: %w", err)
	}
	var summaries []models.StudentSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("decode student summaries: %w", err)
	}
	return summaries, nil
}

// ExistsByStudentID reports whether the school-issued student number is taken.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := r.coll.FindOne(ctx, bson.M{"studentId": studentID}, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// Create inserts a new student with empty logs.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.AcademicResults == nil {
		student.AcademicResults = []models.AcademicResult{}
	}
	if student.PEPerformance == nil {
		student.PEPerformance = []models.PEPerformance{}
	}
	if student.ReadingTime == nil {
		student.ReadingTime = []models.ReadingEntry{}
	}

	if _, err := r.coll.InsertOne(ctx, student); err != nil {
		return fmt.Errorf("create student: %w", translateWriteError(err))
	}
	return nil
}

// PrependLog inserts entry at the head of the given log so the newest entry is always index 0.
func (r *StudentRepository) PrependLog(ctx context.Context, id string, kind models.LogKind, entry interface{}) error {
	field := kind.Field()
	if field == "" {
		return fmt.Errorf("prepend log: unknown kind %q", kind)
	}
	update := bson.M{
		"$push": bson.M{field: bson.M{"$each": bson.A{entry}, "$position": 0}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("prepend %s: %w", field, err)
	}
	return requireMatch(res)
}

// SetLatestRemark writes teacherRemarks on index 0 of the log. An empty log is left untouched.
func (r *StudentRepository) SetLatestRemark(ctx context.Context, id string, kind models.LogKind, remark string) error {
	field := kind.Field()
	if field == "" {
		return fmt.Errorf("set remark: unknown kind %q", kind)
	}
	filter := bson.M{"_id": id, field + ".0": bson.M{"$exists": true}}
	update := bson.M{"$set": bson.M{
		field + ".0.teacherRemarks": remark,
		"updatedAt":                 time.Now().UTC(),
	}}
	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("set %s remark: %w", field, err)
	}
	return nil
}

func containsInsensitive(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
}
