package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "test error message",
	}

	assert.Equal(t, "test error message", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("validation failed")

	assert.Error(t, err)
	assert.Equal(t, "validation failed", err.Error())

	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "validation failed", validationErr.Message)
}

func TestNewValidationErrorf(t *testing.T) {
	err := NewValidationErrorf("horizon must be between %d and %d", 1, 60)

	assert.Error(t, err)
	assert.Equal(t, "horizon must be between 1 and 60", err.Error())
}

func TestNewFieldValidationError(t *testing.T) {
	err := NewFieldValidationError("discount_rate", "must be greater than -1")
	assert.Equal(t, "discount_rate: must be greater than -1", err.Error())
	assert.True(t, IsValidationError(err))
	assert.False(t, IsIngestionError(err))
}

func TestIngestionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"reason only", NewIngestionError("dataset has no rows"), "ingestion error: dataset has no rows"},
		{"wrapped cause", WrapIngestionError("cannot read sheet", errors.New("zip: not a valid zip file")), "ingestion error: cannot read sheet: zip: not a valid zip file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
			assert.True(t, IsIngestionError(tt.err))
		})
	}
}

func TestIngestionError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := fmt.Errorf("upload: %w", WrapIngestionError("cannot parse csv", cause))

	require.True(t, IsIngestionError(err))
	assert.ErrorIs(t, err, cause)

	var ie *IngestionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "cannot parse csv", ie.Reason)
}
