package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := NewSchemaViolation("biometrics.height", "expected number")

	expected := "SCHEMA_VIOLATION: biometrics.height: expected number"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if err.Path != "biometrics.height" {
		t.Errorf("Path = %q, want %q", err.Path, "biometrics.height")
	}
	if err.Reason != "expected number" {
		t.Errorf("Reason = %q, want %q", err.Reason, "expected number")
	}
}

func TestNewPersistence_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewPersistence(cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected persistence error to wrap its cause")
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
}

func TestIs_WrappedChain(t *testing.T) {
	err := fmt.Errorf("commit: %w", NewPersistence(stderrors.New("boom")))

	if !Is(err, ErrPersistence) {
		t.Error("expected Is to find PERSISTENCE_ERROR through wrapping")
	}
	if Is(err, ErrSchemaViolation) {
		t.Error("did not expect SCHEMA_VIOLATION")
	}
	if Is(stderrors.New("plain"), ErrPersistence) {
		t.Error("plain errors carry no code")
	}
}

func TestCodeOfAndStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		code   ErrorCode
		status int
	}{
		{NewEmptyTranscript(), ErrEmptyTranscript, 422},
		{NewUnknownRecordType("x"), ErrUnknownRecordType, 404},
		{NewMalformedResponse(nil), ErrMalformedResponse, 502},
		{NewExtractionFailed(nil), ErrExtractionFailed, 502},
		{stderrors.New("plain"), "", 500},
	}

	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.code {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.err, got, tt.code)
		}
		if got := StatusOf(tt.err); got != tt.status {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}
