package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a node lifecycle error with a structured error code.
// Codes have the form MN-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "MN-ATTACH-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface. The cause, when present, is appended
// so daemon-supplied reason text reaches the operator.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Attachment Errors (ATTACH, IMPORT, JOIN)
// ============================================================================

var (
	// ErrAttachRejected indicates the daemon refused the token or application path.
	// It is recovered locally once per cycle by the import/join branch.
	ErrAttachRejected = NewDomainError("MN-ATTACH-4010", "attach rejected")

	// ErrImportFailed indicates the ImportLocalNode call itself failed.
	ErrImportFailed = NewDomainError("MN-IMPORT-5000", "import local node failed")

	// ErrJoinFailed indicates Join failed, the daemon reported JoinFailed,
	// or no JoinComplete arrived in time.
	ErrJoinFailed = NewDomainError("MN-JOIN-5000", "join failed")

	// ErrCallbackRejected indicates an unsolicited or repeated join callback.
	ErrCallbackRejected = NewDomainError("MN-JOIN-4090", "join callback rejected")
)

// ============================================================================
// State Errors (STATE)
// ============================================================================

var (
	// ErrInvalidState indicates an operation attempted in the wrong lifecycle state.
	ErrInvalidState = NewDomainError("MN-STATE-4090", "invalid state")
)

// ============================================================================
// Storage Errors (STORE)
// ============================================================================

var (
	// ErrStorageError indicates a storage layer I/O failure.
	ErrStorageError = NewDomainError("MN-STORE-5000", "storage error")

	// ErrStoreCorruption indicates an unparseable persisted record.
	ErrStoreCorruption = NewDomainError("MN-STORE-5001", "token store corrupted")
)

// ============================================================================
// System and Argument Errors (SYS, ARG)
// ============================================================================

var (
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("MN-SYS-5000", "internal error")

	// ErrBusUnavailable indicates the message bus could not be reached.
	ErrBusUnavailable = NewDomainError("MN-SYS-5030", "bus unavailable")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("MN-ARG-1001", "invalid argument")
)
