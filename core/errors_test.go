package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/worktrack/core"
)

func TestErrorKinds_Unwrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		client   bool
	}{
		{"validation", core.Invalid("date", "bad"), core.ErrValidation, true},
		{"overlap", &core.OverlapError{EmployeeID: 7, ConflictingID: 3}, core.ErrOverlap, true},
		{"not found", core.NotFound("shift", 9), core.ErrNotFound, false},
		{"state", &core.StateConflictError{ShiftID: 1, Status: core.ExchangeApproved, Op: "decide"}, core.ErrStateConflict, true},
		{"version", core.ErrVersionConflict, core.ErrStateConflict, true},
		{"unavailable", core.Unavailable("tx", context.DeadlineExceeded), core.ErrStoreUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("create shift: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.client, core.IsClientError(wrapped))
		})
	}
}

func TestUnavailable_KeepsCauseAndIsRetryable(t *testing.T) {
	err := core.Unavailable("insert", context.DeadlineExceeded)

	assert.True(t, core.IsRetryable(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// Wrapping twice does not nest.
	assert.Same(t, err, core.Unavailable("outer", err))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, core.IsNotFound(fmt.Errorf("load: %w", core.NotFound("employee", 4))))
	assert.False(t, core.IsNotFound(core.Invalid("x", "y")))
	assert.False(t, core.IsRetryable(core.NotFound("employee", 4)))
}
