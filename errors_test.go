package gdao

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestErrorError(t *testing.T) {
	err := Error{
		Type:    ErrorTypeNotFound,
		Message: "person not found",
	}

	expected := "not_found: person not found"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("database connection failed")
	err := NewErrorWithCause(ErrorTypeConnection, "failed to connect", cause)

	expectedMsg := "connection: failed to connect (caused by: database connection failed)"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable through the wrapped chain")
	}
}

func TestErrorIs(t *testing.T) {
	err1 := Error{Type: ErrorTypeValidation, Message: "validation error"}
	err2 := Error{Type: ErrorTypeValidation, Message: "different validation error"}
	err3 := Error{Type: ErrorTypeNotFound, Message: "not found error"}

	if !errors.Is(err1, err2) {
		t.Error("Expected errors with same type to be equal")
	}
	if errors.Is(err1, err3) {
		t.Error("Expected errors with different types to not be equal")
	}
	if !errors.Is(err3, ErrNotFound) {
		t.Error("Expected not found error to match ErrNotFound")
	}
}

func TestErrorHelpersSeeThroughWrapping(t *testing.T) {
	base := NewError(ErrorTypeNotFound, "task not found")
	wrapped := errors.Wrap(base, "loading person")

	if !IsNotFound(wrapped) {
		t.Error("Expected IsNotFound to match a wrapped not found error")
	}
	if IsDuplicate(wrapped) {
		t.Error("Expected IsDuplicate to be false")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("Expected plain errors not to be typed")
	}
	if IsNotFound(nil) {
		t.Error("Expected nil not to be a not found error")
	}
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"duplicate", NewError(ErrorTypeDuplicate, "x"), IsDuplicate},
		{"validation", NewError(ErrorTypeValidation, "x"), IsValidation},
		{"connection", NewError(ErrorTypeConnection, "x"), IsConnection},
		{"transaction", NewError(ErrorTypeTransaction, "x"), IsTransaction},
		{"unsupported", NewError(ErrorTypeUnsupported, "x"), IsUnsupported},
		{"invalid argument", NewError(ErrorTypeInvalidArgument, "x"), IsInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("Expected helper to match %s error", tt.name)
			}
			if tt.check(NewError(ErrorTypeInternal, "x")) {
				t.Errorf("Expected helper not to match internal error")
			}
		})
	}
}

func TestNewErrorWithCode(t *testing.T) {
	err := NewErrorWithCode(ErrorTypeDuplicate, "duplicate name", "23505")
	if err.Code != "23505" {
		t.Errorf("Expected code '23505', got '%s'", err.Code)
	}
}
