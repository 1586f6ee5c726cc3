package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error without cause",
			err:      &Error{Code: ErrCodeConfig, Message: "unknown segment: lab"},
			expected: "[CONFIGURATION_ERROR] unknown segment: lab",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeDependency, "failed to flush table 100", errors.New("operation not permitted")),
			expected: "[DEPENDENCY_UNAVAILABLE] failed to flush table 100: operation not permitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, "wrapper", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := NewNotFoundError("VPN interface for mullvad not found", nil)

	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("Expected error to match ErrResourceNotFound")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected error not to match ErrConfiguration")
	}

	wrapped := fmt.Errorf("assign pentest: %w", err)
	if !errors.Is(wrapped, ErrResourceNotFound) {
		t.Errorf("Expected wrapped error to match ErrResourceNotFound")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"config", NewConfigError("bad target", nil), ErrCodeConfig},
		{"dependency wrapped", fmt.Errorf("ctx: %w", NewDependencyError("nft missing", nil)), ErrCodeDependency},
		{"plain error", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name string
		err  *Error
		code ErrorCode
	}{
		{"config", NewConfigError("m", cause), ErrCodeConfig},
		{"not found", NewNotFoundError("m", cause), ErrCodeNotFound},
		{"dependency", NewDependencyError("m", cause), ErrCodeDependency},
		{"internal", NewInternalError("m", cause), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %v, got %v", tt.code, tt.err.Code)
			}
			if tt.err.Cause != cause {
				t.Errorf("Expected cause to be preserved")
			}
		})
	}
}
