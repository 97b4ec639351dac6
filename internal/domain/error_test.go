package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "ipc.Attach: NOT_FOUND: no process", E(CodeNotFound, "ipc.Attach", "no process", nil).Error())
	assert.Equal(t, "UNAVAILABLE: process not found", E(CodeUnavailable, "", "", ErrProcessNotFound).Error())
	assert.Equal(t, "INTERNAL", (&Error{Code: CodeInternal}).Error())
}

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := E(CodePermissionDenied, "", "denied", ErrAttachDenied)
	wrapped := Wrap(CodeInternal, "ipc.Dial", fmt.Errorf("dial: %w", inner))
	require.NotNil(t, wrapped)
	assert.Equal(t, CodePermissionDenied, wrapped.Code)
	assert.Equal(t, "ipc.Dial", wrapped.Op)
	assert.ErrorIs(t, wrapped, ErrAttachDenied)

	assert.Nil(t, Wrap(CodeInternal, "op", nil))

	plain := Wrap(CodeUnavailable, "op", errors.New("boom"))
	assert.Equal(t, CodeUnavailable, plain.Code)
}

func TestCodeFrom(t *testing.T) {
	tests := []struct {
		err  error
		code ErrorCode
		ok   bool
	}{
		{nil, "", false},
		{E(CodeCanceled, "op", "", nil), CodeCanceled, true},
		{fmt.Errorf("x: %w", ErrProcessNotFound), CodeNotFound, true},
		{ErrAlreadyTraced, CodeFailedPrecond, true},
		{ErrSessionUsed, CodeFailedPrecond, true},
		{ErrStreamFault, CodeUnavailable, true},
		{ErrInvalidConfig, CodeInvalidArgument, true},
		{errors.New("other"), "", false},
	}
	for _, tt := range tests {
		code, ok := CodeFrom(tt.err)
		assert.Equal(t, tt.code, code, "%v", tt.err)
		assert.Equal(t, tt.ok, ok, "%v", tt.err)
	}
}

func TestAttachError(t *testing.T) {
	err := fmt.Errorf("start: %w", &AttachError{PID: 7, Err: ErrNoDiagnosticEndpoint})
	assert.True(t, IsAttachError(err))
	assert.ErrorIs(t, err, ErrNoDiagnosticEndpoint)
	assert.Contains(t, err.Error(), "attach to process 7")
	assert.False(t, IsAttachError(ErrNoDiagnosticEndpoint))
}
