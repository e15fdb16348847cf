package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ValidationError
		contains []string
	}{
		{
			name: "with field",
			err:  NewValidationError("database", "DB_PASSWORD", errors.New("base error")),
			contains: []string{"database", "DB_PASSWORD", "base error"},
		},
		{
			name: "without field",
			err:  NewValidationError("retention", "", errors.New("invalid value")),
			contains: []string{"retention", "invalid value"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				assert.Contains(t, errStr, substr)
			}
		})
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	validationErr := NewValidationError("guardrail", "TICK_INTERVAL", baseErr)

	assert.Equal(t, baseErr, validationErr.Unwrap())
	assert.True(t, errors.Is(validationErr, baseErr))
}

func TestLoadErrorError(t *testing.T) {
	err := NewLoadError("DATABASE", errors.New("connection refused"))
	assert.Contains(t, err.Error(), "DATABASE")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoadErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	loadErr := NewLoadError("AUTH", baseErr)

	assert.Equal(t, baseErr, loadErr.Unwrap())
	assert.True(t, errors.Is(loadErr, baseErr))
}
