package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeNumerical, cause, "solve failed")

	if err.Code != ErrCodeNumerical {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNumerical)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeInvalidInput,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeNumerical,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeNumerical, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeNumerical,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidConfig, "test"),
			expected: ErrCodeInvalidConfig,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStructuredErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"structural", &StructuralError{Kind: KindUnknownNet, Gate: 3, Net: 9}, ErrCodeStructural},
		{"numerical", &NumericalError{Op: "cg", Axis: "x", Iterations: 40}, ErrCodeNumerical},
		{"wrapped structural", fmt.Errorf("stage quadratic: %w", &StructuralError{Kind: KindUnanchoredComponent}), ErrCodeStructural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %v, want %v", got, tt.code)
			}
			if !Is(tt.err, tt.code) {
				t.Errorf("Is(%v) = false, want true", tt.code)
			}
		})
	}
}

func TestStructuralErrorMessage(t *testing.T) {
	err := &StructuralError{Kind: KindUnanchoredComponent, Component: 2, Gates: []int{4, 5, 6}}
	want := "STRUCTURAL: unanchored_component component=2 size=3"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = &StructuralError{Kind: KindConnectivityMismatch, Gate: 7, Detail: "declared 3, listed 2"}
	want = "STRUCTURAL: connectivity_mismatch gate=7: declared 3, listed 2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNumericalErrorMessage(t *testing.T) {
	err := &NumericalError{Op: "cholesky", Axis: "y", RankDeficiency: 1, Detail: "matrix is not positive definite"}
	want := "NUMERICAL: cholesky axis=y rank_deficiency>=1: matrix is not positive definite"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestEmptyCodeNeverMatches(t *testing.T) {
	if Is(errors.New("plain"), "") {
		t.Error("Is(plain, \"\") = true, want false")
	}
}
