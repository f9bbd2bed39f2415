package errors

import "fmt"

// ErrorCode represents a ctxkeep error code.
type ErrorCode string

const (
	ErrInvalidPayload  ErrorCode = "INVALID_PAYLOAD"  // 400, covers malformed and oversized input
	ErrUnsupportedTool ErrorCode = "UNSUPPORTED_TOOL" // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrConflict        ErrorCode = "CONFLICT"         // 409
	ErrQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"   // 429
	ErrCorruptPayload  ErrorCode = "CORRUPT_PAYLOAD"  // 500
	ErrInternal        ErrorCode = "INTERNAL"         // 500
	ErrTimeout         ErrorCode = "TIMEOUT"          // 504
)

// EngineError represents a structured error with code, status, and details.
type EngineError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidPayload creates a 400 error for payload data that failed validation.
// The field parameter names the offending field so callers can fix their input.
func NewInvalidPayload(field, reason string) *EngineError {
	return &EngineError{
		Code:    ErrInvalidPayload,
		Status:  400,
		Message: fmt.Sprintf("invalid payload: %s: %s", field, reason),
		Details: map[string]any{"field": field, "reason": reason},
	}
}

// NewUnsupportedTool creates a 400 error for an unknown restore target.
func NewUnsupportedTool(toolID string, known []string) *EngineError {
	return &EngineError{
		Code:    ErrUnsupportedTool,
		Status:  400,
		Message: fmt.Sprintf("no formatter registered for tool %q", toolID),
		Details: map[string]any{"tool_id": toolID, "supported": known},
	}
}

// NewNotFound creates a 404 error for an unknown, soft-deleted, or not-owned
// snapshot. All three cases look identical so ownership is never leaked.
func NewNotFound(id string) *EngineError {
	return &EngineError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("snapshot not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewConflict creates a 409 error for a stale-version update.
func NewConflict(id string, expected, current int64) *EngineError {
	return &EngineError{
		Code:    ErrConflict,
		Status:  409,
		Message: fmt.Sprintf("snapshot %s changed since version %d (now %d)", id, expected, current),
		Details: map[string]any{"id": id, "expected_version": expected, "current_version": current},
	}
}

// NewPayloadTooLarge creates an INVALID_PAYLOAD error for oversized input,
// with the size limits in the details so callers can trim their context.
func NewPayloadTooLarge(max, actual int) *EngineError {
	return &EngineError{
		Code:    ErrInvalidPayload,
		Status:  400,
		Message: fmt.Sprintf("invalid payload: exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"field": "payload", "max_bytes": max, "actual_bytes": actual},
	}
}

// NewQuotaExceeded creates a 429 error when the usage-limit checker denies an operation.
func NewQuotaExceeded(ownerID, op string) *EngineError {
	return &EngineError{
		Code:    ErrQuotaExceeded,
		Status:  429,
		Message: fmt.Sprintf("quota exceeded for operation %q", op),
		Details: map[string]any{"owner_id": ownerID, "operation": op},
	}
}

// NewCorruptPayload creates a 500 error for a stored blob that failed
// decompression. Never retried; the record is reported as a data-integrity
// incident, not guessed at or repaired.
func NewCorruptPayload(id string, cause error) *EngineError {
	msg := fmt.Sprintf("stored payload for snapshot %s is corrupt", id)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &EngineError{
		Code:    ErrCorruptPayload,
		Status:  500,
		Message: msg,
		Details: map[string]any{"id": id},
	}
}

// NewTimeout creates a 504 error when the caller-supplied deadline elapsed.
func NewTimeout(op string) *EngineError {
	return &EngineError{
		Code:    ErrTimeout,
		Status:  504,
		Message: fmt.Sprintf("deadline exceeded during %s; no partial state was written", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *EngineError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &EngineError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is an EngineError with the given code.
func Is(err error, code ErrorCode) bool {
	if eErr, ok := err.(*EngineError); ok {
		return eErr.Code == code
	}
	return false
}
