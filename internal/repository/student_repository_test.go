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

func newMongoMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func updated(n int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func TestStudentRepositoryList(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("decodes documents", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "s1"}, {Key: "studentId", Value: "ST-1"}, {Key: "firstName", Value: "Ana"}, {Key: "parent", Value: "p1"}},
			bson.D{{Key: "_id", Value: "s2"}, {Key: "studentId", Value: "ST-2"}, {Key: "firstName", Value: "Ben"}, {Key: "parent", Value: "p2"}},
		))

		students, err := repo.List(context.Background(), models.StudentFilter{Search: "a.*"})
		require.NoError(t, err)
		require.Len(t, students, 2)
		assert.Equal(t, "ST-1", students[0].StudentID)
		assert.Equal(t, "p2", students[1].ParentID)

		cmd := mt.GetStartedEvent().Command.String()
		assert.Contains(t, cmd, `a\\.\\*`)
	})

	mt.Run("empty result is not nil", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch))

		students, err := repo.List(context.Background(), models.StudentFilter{ParentID: "p1"})
		require.NoError(t, err)
		assert.NotNil(t, students)
		assert.Empty(t, students)
	})
}

func TestStudentRepositoryFindByID(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("found", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "s1"},
			{Key: "academicResults", Value: bson.A{
				bson.D{{Key: "subject", Value: "math"}, {Key: "marks", Value: 80.0}, {Key: "totalMarks", Value: 100.0}, {Key: "date", Value: date}},
			}},
		}))

		student, err := repo.FindByID(context.Background(), "s1")
		require.NoError(t, err)
		require.Len(t, student.AcademicResults, 1)
		assert.Equal(t, 80.0, student.AcademicResults[0].Marks)
		assert.True(t, date.Equal(student.AcademicResults[0].Date))
	})

	mt.Run("missing", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch))

		student, err := repo.FindByID(context.Background(), "nope")
		assert.Nil(t, student)
		assert.True(t, IsNotFound(err))
	})
}

func TestStudentRepositoryIDsByParent(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("collects ids", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "s1"}, {Key: "parent", Value: "p1"}},
			bson.D{{Key: "_id", Value: "s3"}, {Key: "parent", Value: "p1"}},
		))

		ids, err := repo.IDsByParent(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s3"}, ids)
	})

	mt.Run("no children yields empty slice", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch))

		ids, err := repo.IDsByParent(context.Background(), "p9")
		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	})
}

func TestStudentRepositoryFindSummaries(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("keyed by id", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "s1"}, {Key: "firstName", Value: "Ana"}, {Key: "lastName", Value: "Diaz"}, {Key: "studentId", Value: "ST-1"}},
		))

		summaries, err := repo.FindSummaries(context.Background(), []string{"s1", "s2"})
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Diaz", summaries["s1"].LastName)
	})
}

func TestStudentRepositoryCreate(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("assigns id and empty logs", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		student := &models.Student{StudentID: "ST-1", FirstName: "Ana", ParentID: "p1"}
		require.NoError(t, repo.Create(context.Background(), student))
		assert.NotEmpty(t, student.ID)
		assert.NotNil(t, student.AcademicResults)
		assert.NotNil(t, student.ReadingTime)
	})

	mt.Run("duplicate student id", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		err := repo.Create(context.Background(), &models.Student{StudentID: "ST-1"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestStudentRepositoryExistsByStudentID(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("taken", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch, bson.D{{Key: "_id", Value: "s1"}}))

		exists, err := repo.ExistsByStudentID(context.Background(), "ST-1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	mt.Run("free", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.students", mtest.FirstBatch))

		exists, err := repo.ExistsByStudentID(context.Background(), "ST-9")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestStudentRepositoryPrependLog(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("pushes at position zero", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(updated(1))

		entry := models.ReadingEntry{Date: time.Now(), Minutes: 20, BookTitle: "Holes"}
		require.NoError(t, repo.PrependLog(context.Background(), "s1", models.LogReading, entry))

		cmd := mt.GetStartedEvent().Command.String()
		assert.Contains(t, cmd, `"$position"`)
		assert.Contains(t, cmd, `"readingTime"`)
	})

	mt.Run("unknown student", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(updated(0))

		err := repo.PrependLog(context.Background(), "missing", models.LogPE, models.PEPerformance{Activity: "run"})
		assert.True(t, IsNotFound(err))
	})

	mt.Run("unknown kind", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)

		err := repo.PrependLog(context.Background(), "s1", models.LogKind("art"), nil)
		assert.Error(t, err)
	})
}

func TestStudentRepositorySetLatestRemark(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("targets index zero", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(updated(1))

		require.NoError(t, repo.SetLatestRemark(context.Background(), "s1", models.LogAcademic, "Well done"))

		cmd := mt.GetStartedEvent().Command.String()
		assert.Contains(t, cmd, `academicResults.0.teacherRemarks`)
		assert.Contains(t, cmd, `"$exists"`)
	})

	mt.Run("empty log is a no-op", func(mt *mtest.T) {
		repo := NewStudentRepository(mt.DB)
		mt.AddMockResponses(updated(0))

		assert.NoError(t, repo.SetLatestRemark(context.Background(), "s1", models.LogPE, "Keep going"))
	})
}
