package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a pipeline error code.
type ErrorCode string

const (
	ErrEmptyTranscript   ErrorCode = "EMPTY_TRANSCRIPT"    // 422
	ErrUnknownRecordType ErrorCode = "UNKNOWN_RECORD_TYPE" // 404
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"  // 502
	ErrSchemaViolation   ErrorCode = "SCHEMA_VIOLATION"    // 422
	ErrPersistence       ErrorCode = "PERSISTENCE_ERROR"   // 500
	ErrExtractionFailed  ErrorCode = "EXTRACTION_FAILED"   // 502
)

// Error is a structured pipeline failure.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string

	// Path and Reason are set for schema violations.
	Path   string
	Reason string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewEmptyTranscript is returned when a transcript is empty after trimming.
func NewEmptyTranscript() *Error {
	return &Error{
		Code:    ErrEmptyTranscript,
		Status:  422,
		Message: "transcript is empty",
	}
}

// NewUnknownRecordType is returned when a record type is not registered.
func NewUnknownRecordType(recordType string) *Error {
	return &Error{
		Code:    ErrUnknownRecordType,
		Status:  404,
		Message: fmt.Sprintf("unknown record type: %q", recordType),
	}
}

// NewMalformedResponse is returned when extraction output cannot be parsed.
func NewMalformedResponse(err error) *Error {
	return &Error{
		Code:    ErrMalformedResponse,
		Status:  502,
		Message: "extraction response is not a JSON object",
		Err:     err,
	}
}

// NewSchemaViolation is returned when a leaf does not satisfy its field spec.
func NewSchemaViolation(path, reason string) *Error {
	return &Error{
		Code:    ErrSchemaViolation,
		Status:  422,
		Message: fmt.Sprintf("%s: %s", path, reason),
		Path:    path,
		Reason:  reason,
	}
}

// NewPersistence wraps a storage failure.
func NewPersistence(err error) *Error {
	return &Error{
		Code:    ErrPersistence,
		Status:  500,
		Message: "could not persist record",
		Err:     err,
	}
}

// NewExtractionFailed wraps a failed call to the extraction service.
func NewExtractionFailed(err error) *Error {
	return &Error{
		Code:    ErrExtractionFailed,
		Status:  502,
		Message: "extraction service call failed",
		Err:     err,
	}
}

// Is checks if err is, or wraps, an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pErr *Error
	if stderrors.As(err, &pErr) {
		return pErr.Code
	}
	return ""
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var pErr *Error
	if stderrors.As(err, &pErr) && pErr.Status != 0 {
		return pErr.Status
	}
	return 500
}
