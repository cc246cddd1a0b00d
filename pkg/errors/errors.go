package errors

import (
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

const (
	// ErrCodeUnknown represents an unknown error
	ErrCodeUnknown ErrorCode = 1000

	// Configuration errors (7000-7999)
	ErrCodeInvalidConfig ErrorCode = 7000
	ErrCodeMissingConfig ErrorCode = 7001

	// Validation errors (9000-9999)
	ErrCodeValidationFailed ErrorCode = 9000
	ErrCodeInvalidInput     ErrorCode = 9001
	ErrCodeMissingParameter ErrorCode = 9002

	// Storage / push errors (4000-4999)
	ErrCodeStorageError   ErrorCode = 4000
	ErrCodeUploadFailed   ErrorCode = 4002
	ErrCodeDownloadFailed ErrorCode = 4003

	// Segmenter errors (11000-11099)
	ErrCodeNotActive             ErrorCode = 11000
	ErrCodeNonMonotonicTimestamp ErrorCode = 11001
	ErrCodeNoFramesPending       ErrorCode = 11002
	ErrCodeConfigurationInvalid  ErrorCode = 11003

	// Sequence / DVR errors (11100-11199)
	ErrCodeInvalidSegmentIndex   ErrorCode = 11100
	ErrCodeParentSegmentNotFound ErrorCode = 11101

	// Playlist errors (11200-11299)
	ErrCodeStreamEnded          ErrorCode = 11200
	ErrCodeInvalidConfiguration ErrorCode = 11201

	// CMAF writer errors (11300-11399)
	ErrCodeCMAFInvariantViolation ErrorCode = 11300

	// Key manager errors (11400-11499)
	ErrCodeUnknownKey            ErrorCode = 11400
	ErrCodeInvalidRotationPolicy ErrorCode = 11401
	ErrCodeKeyProviderFailed     ErrorCode = 11402
)

// Error represents a custom error with code and message
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsErrorCode checks if the error has the given error code
func IsErrorCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.Code == code
	}

	return false
}

// GetErrorCode returns the error code from an error, or ErrCodeUnknown if not found
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeUnknown
	}

	if e, ok := err.(*Error); ok {
		return e.Code
	}

	return ErrCodeUnknown
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *Error {
	return New(ErrCodeValidationFailed, message)
}

// NewInvalidConfigError creates a new invalid configuration error
func NewInvalidConfigError(message string) *Error {
	return New(ErrCodeInvalidConfig, message)
}

// NewUploadFailedError wraps an upload failure from a SegmentPusher backend
func NewUploadFailedError(key string, cause error) *Error {
	return Wrap(ErrCodeUploadFailed, fmt.Sprintf("upload failed: %s", key), cause)
}

// Segmenter error constructors (§4.2, §7)

// NewNotActiveError reports ingest attempted after finish()
func NewNotActiveError() *Error {
	return New(ErrCodeNotActive, "segmenter is not active")
}

// NewNonMonotonicTimestampError reports a frame timestamp behind the last ingested one
func NewNonMonotonicTimestampError(last, got int64) *Error {
	return New(ErrCodeNonMonotonicTimestamp, fmt.Sprintf("non-monotonic timestamp: last=%d got=%d", last, got))
}

// NewNoFramesPendingError reports force_segment_boundary called with an empty buffer
func NewNoFramesPendingError() *Error {
	return New(ErrCodeNoFramesPending, "no frames pending to cut a segment from")
}

// NewConfigurationInvalidError reports an invalid segmenter configuration
func NewConfigurationInvalidError(message string) *Error {
	return New(ErrCodeConfigurationInvalid, message)
}

// Sequence / DVR error constructors (§4.3, §4.4, §7)

// NewInvalidSegmentIndexError reports a lookup for a segment index that is not in the buffer
func NewInvalidSegmentIndexError(index uint64) *Error {
	return New(ErrCodeInvalidSegmentIndex, fmt.Sprintf("invalid segment index: %d", index))
}

// NewParentSegmentNotFoundError reports a partial segment whose parent has already been evicted
func NewParentSegmentNotFoundError(index uint64) *Error {
	return New(ErrCodeParentSegmentNotFound, fmt.Sprintf("parent segment not found: %d", index))
}

// Playlist error constructors (§4.6-§4.8, §7)

// NewStreamEndedError reports an add_segment call after end_stream()
func NewStreamEndedError() *Error {
	return New(ErrCodeStreamEnded, "playlist has already ended")
}

// NewInvalidConfigurationError reports an invalid playlist configuration
func NewInvalidConfigurationError(message string) *Error {
	return New(ErrCodeInvalidConfiguration, message)
}

// Key manager error constructors (§4.9, §7)

// NewUnknownKeyError reports a lookup for a key id the manager never issued
func NewUnknownKeyError(keyID string) *Error {
	return New(ErrCodeUnknownKey, fmt.Sprintf("unknown key id: %s", keyID))
}

// NewInvalidRotationPolicyError reports a malformed rotation policy (e.g. EveryNSegments(0))
func NewInvalidRotationPolicyError(message string) *Error {
	return New(ErrCodeInvalidRotationPolicy, message)
}

// NewKeyProviderFailedError wraps an opaque KeyProvider failure; rotation state is left untouched
func NewKeyProviderFailedError(cause error) *Error {
	return Wrap(ErrCodeKeyProviderFailed, "key provider failed", cause)
}
