package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load student: %w", Clone(ErrNotFound, "student not found"))

	got := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, got.Code)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "student not found", got.Message)
}

func TestFromErrorHidesUnknownErrors(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, ErrInternal.Message, got.Message)
	assert.ErrorIs(t, got, sql.ErrConnDone)

	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateTemplate(t *testing.T) {
	clone := Clone(ErrConflict, "attendance already marked for today")
	assert.Equal(t, "conflict", ErrConflict.Message)
	assert.Equal(t, ErrConflict.Code, clone.Code)

	assert.Equal(t, ErrConflict.Message, Clone(ErrConflict, "").Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestIsCodeAndWrap(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(cause, ErrConflict.Code, ErrConflict.Status, "student ID already exists")

	assert.True(t, IsCode(err, ErrConflict.Code))
	assert.False(t, IsCode(err, ErrNotFound.Code))
	assert.False(t, IsCode(cause, ErrConflict.Code))
	assert.Equal(t, "student ID already exists: duplicate key", err.Error())
	assert.ErrorIs(t, err, cause)
}
