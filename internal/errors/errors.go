package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Textual error code.
type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "INVALID_REQUEST"           // 400
	ErrInvalidRow              ErrorCode = "INVALID_ROW"               // 400
	ErrInvalidRedactionRequest ErrorCode = "INVALID_REDACTION_REQUEST" // 400, rejected by the service
	ErrUnauthorized            ErrorCode = "UNAUTHORIZED"              // 401
	ErrNotFound                ErrorCode = "NOT_FOUND"                 // 404
	ErrFileNotFound            ErrorCode = "FILE_NOT_FOUND"            // 404
	ErrConflict                ErrorCode = "CONFLICT"                  // 409
	ErrTextMismatch            ErrorCode = "TEXT_MISMATCH"             // 422
	ErrInvariantViolation      ErrorCode = "INVARIANT_VIOLATION"       // 422
	ErrInternal                ErrorCode = "INTERNAL"                  // 500
	ErrRemote                  ErrorCode = "REMOTE"                    // 502
)

// TextualError represents a structured error with code, status, and details.
type TextualError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *TextualError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TextualError {
	return &TextualError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidRow creates a 400 error for a CSV row whose column count differs from the header.
func NewInvalidRow(row, got, want int) *TextualError {
	return &TextualError{
		Code:    ErrInvalidRow,
		Status:  400,
		Message: fmt.Sprintf("Invalid row. Row must have same number of columns as header (row %d has %d, header has %d)", row, got, want),
		Details: map[string]any{"row": row, "columns": got, "header_columns": want},
	}
}

// NewInvalidRedactionRequest creates a 400 error for a request the service refused.
func NewInvalidRedactionRequest(body string) *TextualError {
	return &TextualError{
		Code:    ErrInvalidRedactionRequest,
		Status:  400,
		Message: fmt.Sprintf("service rejected redaction request: %s", body),
	}
}

// NewUnauthorized creates a 401 error for missing or rejected credentials.
func NewUnauthorized(msg string) *TextualError {
	return &TextualError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a resource cannot be found.
func NewNotFound(identifier string) *TextualError {
	return &TextualError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *TextualError {
	return &TextualError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *TextualError {
	return &TextualError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewTextMismatch creates a 422 error when the joined fragments differ from the
// text the redaction result describes.
func NewTextMismatch(expected, actual int) *TextualError {
	return &TextualError{
		Code:    ErrTextMismatch,
		Status:  422,
		Message: fmt.Sprintf("joined fragments do not match redaction input: %d chars, result describes %d", expected, actual),
		Details: map[string]any{"joined_chars": expected, "original_chars": actual},
	}
}

// NewInvariantViolation creates a 422 error for a redaction result whose offsets
// do not describe its own text.
func NewInvariantViolation(msg string) *TextualError {
	return &TextualError{
		Code:    ErrInvariantViolation,
		Status:  422,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TextualError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TextualError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewRemote creates a 502 error for a failed call to the redaction service.
func NewRemote(status int, msg string) *TextualError {
	return &TextualError{
		Code:    ErrRemote,
		Status:  502,
		Message: msg,
		Details: map[string]any{"status": status},
	}
}

// Is checks if an error is (or wraps) a TextualError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TextualError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}
