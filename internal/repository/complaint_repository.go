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

// ComplaintRepository persists complaints and their response threads.
type ComplaintRepository struct {
	coll *mongo.Collection
}

// NewComplaintRepository constructs a ComplaintRepository.
func NewComplaintRepository(db *mongo.Database) *ComplaintRepository {
	return &ComplaintRepository{coll: db.Collection(complaintCollection)}
}

// EnsureIndexes creates the student lookup index.
func (r *ComplaintRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "student", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("ensure complaint indexes: %w", err)
	}
	return nil
}

// List returns complaints ordered newest first.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	query := bson.M{}
	if filter.StudentIDs != nil {
		query["student"] = bson.M{"$in": filter.StudentIDs}
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	cursor, err := r.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	complaints := make([]models.Complaint, 0)
	if err := cursor.All(ctx, &complaints); err != nil {
		return nil, fmt.Errorf("decode complaints: %w", err)
	}
	return complaints, nil
}

// FindByID returns a complaint by identifier.
func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&complaint); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find complaint: %w", err)
	}
	return &complaint, nil
}

// Create inserts a new complaint.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	if complaint.Responses == nil {
		complaint.Responses = []models.ComplaintResponse{}
	}
	if _, err := r.coll.InsertOne(ctx, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", translateWriteError(err))
	}
	return nil
}

// AddResponse appends a message to the end of the thread.
func (r *ComplaintRepository) AddResponse(ctx context.Context, id string, response models.ComplaintResponse) error {
	update := bson.M{
		"$push": bson.M{"responses": response},
		"$set":  bson.M{"updatedAt": response.Timestamp},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("add complaint response: %w", err)
	}
	return requireMatch(res)
}

// UpdateStatus writes the workflow fields of the complaint.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, complaint *models.Complaint) error {
	complaint.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"status":    complaint.Status,
		"updatedAt": complaint.UpdatedAt,
	}
	if complaint.AssignedTo != "" {
		set["assignedTo"] = complaint.AssignedTo
	}
	if complaint.Resolution != nil {
		set["resolution"] = complaint.Resolution
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": complaint.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update complaint status: %w", err)
	}
	return requireMatch(res)
}
