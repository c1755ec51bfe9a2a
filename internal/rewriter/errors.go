package rewriter

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid rewriter configuration. It is returned
// before any pass runs.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Field names the offending parameter, e.g. "passes".
	Field string

	// Message is a human-readable description.
	Message string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownPass indicates a custom pass name outside the registry.
	ErrCodeUnknownPass ConfigErrorCode = "UNKNOWN_PASS"

	// ErrCodeNoPasses indicates a custom pipeline without passes.
	ErrCodeNoPasses ConfigErrorCode = "NO_PASSES"

	// ErrCodeUnknownMode indicates an unrecognized pipeline mode.
	ErrCodeUnknownMode ConfigErrorCode = "UNKNOWN_MODE"

	// ErrCodeBadBlockShape indicates a non-positive block size.
	ErrCodeBadBlockShape ConfigErrorCode = "BAD_BLOCKSHAPE"

	// ErrCodeBadThreshold indicates a non-positive heuristic threshold.
	ErrCodeBadThreshold ConfigErrorCode = "BAD_THRESHOLD"

	// ErrCodeNoPlatform indicates a missing capability object.
	ErrCodeNoPlatform ConfigErrorCode = "NO_PLATFORM"

	// ErrCodeBadPasses indicates a pass list that is not a list of names.
	ErrCodeBadPasses ConfigErrorCode = "BAD_PASSES"

	// ErrCodeBadPlatform indicates an unusable platform description.
	ErrCodeBadPlatform ConfigErrorCode = "BAD_PLATFORM"

	// ErrCodeBadFlag indicates an on/off parameter that is not a boolean.
	ErrCodeBadFlag ConfigErrorCode = "BAD_FLAG"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// NewConfigError builds a ConfigError for callers outside the package
// that validate rewriter inputs, such as configuration loaders.
func NewConfigError(code ConfigErrorCode, field, format string, args ...any) *ConfigError {
	return configErrorf(code, field, format, args...)
}

func configErrorf(code ConfigErrorCode, field, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}
