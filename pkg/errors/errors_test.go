package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeConnectionFailed, "Connection failed"),
			expected: "[CMDW1001] Connection failed",
		},
		{
			name:     "wrapped error",
			err:      Wrap(fmt.Errorf("403 forbidden"), ErrCodeObjectCreateFailed, "Failed to create x"),
			expected: "[CMDW3002] Failed to create x: 403 forbidden",
		},
		{
			name: "suggestions do not leak into Error()",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithSuggestions("Check network"),
			expected: "[CMDW1001] Connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDetailed(t *testing.T) {
	err := New(ErrCodeConnectionFailed, "Connection failed").
		WithSuggestions("Check network", "Verify credentials")

	assert.Equal(t,
		"[CMDW1001] ERROR: Connection failed\nSuggestions:\n  1. Check network\n  2. Verify credentials",
		err.Detailed())
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("database connection refused")

	appErr := Wrap(baseErr, ErrCodeConnectionFailed, "Failed to connect")

	assert.Equal(t, baseErr, appErr.Cause)
	assert.Equal(t, ErrCodeConnectionFailed, appErr.Code)
	assert.True(t, Is(appErr, baseErr))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeQueryFailed, "query failed").WithContext("object", "p.d.ext_a")
	outer := Wrap(inner, ErrCodeMaterializeFailed, "materialize failed")

	assert.Equal(t, "p.d.ext_a", outer.Context["object"])
	assert.True(t, HasCode(outer, ErrCodeQueryFailed))
	assert.True(t, HasCode(outer, ErrCodeMaterializeFailed))
	assert.False(t, HasCode(outer, ErrCodeNamespaceMissing))
}

func TestNamespaceMissingError(t *testing.T) {
	err := NamespaceMissingError("proj.ds", "bq mk --dataset --location=US proj.ds", nil)

	assert.Equal(t, ErrCodeNamespaceMissing, err.Code)
	assert.Equal(t, SeverityCritical, err.Severity)
	assert.Equal(t, []string{"bq mk --dataset --location=US proj.ds"}, err.Suggestions)
	assert.Equal(t, ErrCodeNamespaceMissing, GetErrorCode(fmt.Errorf("stage: %w", err)))
}

func TestObjectError(t *testing.T) {
	err := ObjectError(ErrCodeViewCreateFailed, "p.d.src_a", fmt.Errorf("boom"))

	assert.Equal(t, "[CMDW3003] Failed to create view p.d.src_a: boom", err.Error())
	assert.Equal(t, "p.d.src_a", err.Context["object"])
}

func TestGetErrorCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("plain")))
}
