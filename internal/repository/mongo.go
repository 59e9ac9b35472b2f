package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names in the record store.
const (
	studentCollection    = "students"
	attendanceCollection = "attendance"
	complaintCollection  = "complaints"
)

// ErrDuplicate is returned when a write violates a unique index.
var ErrDuplicate = errors.New("duplicate key")

// IsNotFound reports whether err means the addressed document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func translateWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func requireMatch(res *mongo.UpdateResult) error {
	if res == nil || res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
