package services

import (
	"errors"
	"fmt"
	"strings"
)

// Marker errors classify every failure the engine can report. Each error a
// component returns wraps exactly one of these so callers can route on
// errors.Is without string matching.
var (
	ErrEncoderNotFound   = errors.New("encoder not found")
	ErrNotFound          = errors.New("source not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOutputPath        = errors.New("output path error")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInsufficientSpace = errors.New("insufficient space")
	ErrCompressionFailed = errors.New("compression failed")
	ErrCancelled         = errors.New("cancelled")
	ErrUnknown           = errors.New("unknown error")
)

var markers = []error{
	ErrEncoderNotFound,
	ErrNotFound,
	ErrInvalidInput,
	ErrOutputPath,
	ErrPermissionDenied,
	ErrInsufficientSpace,
	ErrCompressionFailed,
	ErrCancelled,
	ErrUnknown,
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUnknown
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Marker returns the sentinel the error wraps, or ErrUnknown when it carries
// none.
func Marker(err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return ErrUnknown
}

// Kind returns a stable short name for the error's marker, used in history
// records and CLI output.
func Kind(err error) string {
	switch Marker(err) {
	case nil:
		return ""
	case ErrEncoderNotFound:
		return "encoder_not_found"
	case ErrNotFound:
		return "not_found"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrOutputPath:
		return "output_path"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrInsufficientSpace:
		return "insufficient_space"
	case ErrCompressionFailed:
		return "compression_failed"
	case ErrCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether the failure is worth offering a retry for.
// Missing binaries and unparseable sources stay terminal until the operator
// fixes the underlying condition; cancellation is not a failure at all.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch Marker(err) {
	case ErrCompressionFailed, ErrNotFound, ErrInsufficientSpace, ErrOutputPath, ErrPermissionDenied, ErrUnknown:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether the error represents a cancelled operation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
