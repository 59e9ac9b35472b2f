package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/student-erp-api/internal/models"
)

func TestComplaintRepositoryList(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("decodes thread", func(mt *mtest.T) {
		repo := NewComplaintRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.complaints", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "c1"},
			{Key: "student", Value: "s1"},
			{Key: "status", Value: "pending"},
			{Key: "responses", Value: bson.A{
				bson.D{{Key: "user", Value: "t1"}, {Key: "message", Value: "Looking into it"}},
			}},
		}))

		complaints, err := repo.List(context.Background(), models.ComplaintFilter{Status: models.ComplaintStatusPending})
		require.NoError(t, err)
		require.Len(t, complaints, 1)
		require.Len(t, complaints[0].Responses, 1)
		assert.Equal(t, "t1", complaints[0].Responses[0].UserID)
	})
}

func TestComplaintRepositoryCreate(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("ok", func(mt *mtest.T) {
		repo := NewComplaintRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		complaint := &models.Complaint{StudentID: "s1", Title: "Bus late"}
		require.NoError(t, repo.Create(context.Background(), complaint))
		assert.NotEmpty(t, complaint.ID)
		assert.NotNil(t, complaint.Responses)
	})
}

func TestComplaintRepositoryAddResponse(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("appends", func(mt *mtest.T) {
		repo := NewComplaintRepository(mt.DB)
		mt.AddMockResponses(updated(1))

		err := repo.AddResponse(context.Background(), "c1", models.ComplaintResponse{UserID: "p1", Message: "thanks", Timestamp: time.Now()})
		require.NoError(t, err)
		cmd := mt.GetStartedEvent().Command.String()
		assert.Contains(t, cmd, `"$push"`)
		assert.NotContains(t, cmd, `"$position"`)
	})

	mt.Run("missing", func(mt *mtest.T) {
		repo := NewComplaintRepository(mt.DB)
		mt.AddMockResponses(updated(0))

		err := repo.AddResponse(context.Background(), "nope", models.ComplaintResponse{Message: "x"})
		assert.True(t, IsNotFound(err))
	})
}

func TestComplaintRepositoryUpdateStatus(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("writes resolution", func(mt *mtest.T) {
		repo := NewComplaintRepository(mt.DB)
		mt.AddMockResponses(updated(1))

		complaint := &models.Complaint{
			ID:     "c1",
			Status: models.ComplaintStatusResolved,
			Resolution: &models.ComplaintResolution{
				Description: "Route changed",
				ResolvedBy:  "a1",
				ResolvedAt:  time.Now(),
			},
		}
		require.NoError(t, repo.UpdateStatus(context.Background(), complaint))
		assert.Contains(t, mt.GetStartedEvent().Command.String(), `"resolution"`)
	})
}
