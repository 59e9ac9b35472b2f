package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/student-erp-api/internal/models"
)

// AttendanceRepository persists daily attendance documents.
type AttendanceRepository struct {
	coll *mongo.Collection
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *mongo.Database) *AttendanceRepository {
	return &AttendanceRepository{coll: db.Collection(attendanceCollection)}
}

// EnsureIndexes creates the lookup index and, when uniqueDay is set, a unique (student, day) index.
func (r *AttendanceRepository) EnsureIndexes(ctx context.Context, uniqueDay bool) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "student", Value: 1}, {Key: "date", Value: -1}}},
	}
	if uniqueDay {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "student", Value: 1}, {Key: "day", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("student_day_unique"),
		})
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("ensure attendance indexes: %w", err)
	}
	return nil
}

// FindForDay returns the student's record dated within [start, end).
func (r *AttendanceRepository) FindForDay(ctx context.Context, studentID string, start, end time.Time) (*models.Attendance, error) {
	query := bson.M{
		"student": studentID,
		"date":    bson.M{"$gte": start, "$lt": end},
	}
	var record models.Attendance
	if err := r.coll.FindOne(ctx, query).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance for day: %w", err)
	}
	return &record, nil
}

// Insert stores a new attendance record.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert attendance: %w", translateWriteError(err))
	}
	return nil
}

// List returns attendance ordered by date, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	query := bson.M{}
	if filter.StudentIDs != nil {
		query["student"] = bson.M{"$in": filter.StudentIDs}
	}
	dateRange := bson.M{}
	if filter.DateFrom != nil {
		dateRange["$gte"] = *filter.DateFrom
	}
	if filter.DateTo != nil {
		dateRange["$lte"] = *filter.DateTo
	}
	if len(dateRange) > 0 {
		query["date"] = dateRange
	}

	cursor, err := r.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	records := make([]models.Attendance, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode attendance: %w", err)
	}
	return records, nil
}

// FindByID returns an attendance record by identifier.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	var record models.Attendance
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &record, nil
}

// Update writes the mutable fields of the record and its verifier.
func (r *AttendanceRepository) Update(ctx context.Context, record *models.Attendance) error {
	record.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":      record.Status,
		"reason":      record.Reason,
		"lateMinutes": record.LateMinutes,
		"verifiedBy":  record.VerifiedBy,
		"updatedAt":   record.UpdatedAt,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": record.ID}, update)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return requireMatch(res)
}

// Acknowledge records the parent's acknowledgement and optional response.
func (r *AttendanceRepository) Acknowledge(ctx context.Context, id, response string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"parentAcknowledged": true,
		"parentResponse":     response,
		"updatedAt":          at,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("acknowledge attendance: %w", err)
	}
	return requireMatch(res)
}

// MarkNotified flags that the parent has been told about the record.
func (r *AttendanceRepository) MarkNotified(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"notifiedParent": true, "updatedAt": time.Now().UTC()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("mark attendance notified: %w", err)
	}
	return requireMatch(res)
}
