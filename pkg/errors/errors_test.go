package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrCapacity, "summer camp is full")

	assert.True(t, errors.Is(err, ErrCapacity))
	assert.False(t, errors.Is(err, ErrDuplicate))
	assert.Equal(t, "summer camp is full", err.Message)
	assert.Equal(t, "program is full", ErrCapacity.Message)
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("approve: %w", Clone(ErrInvalidTransition, "completed enrollments cannot be cancelled"))

	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}
