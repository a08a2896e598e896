package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ExtractError wraps a per-page extraction failure with its location.
type ExtractError struct {
	Path string
	Page int
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s page %d: %v", e.Path, e.Page, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// isFatalError checks if error is permanent and should go straight to DLQ.
func isFatalError(err error) bool {
	if err == nil {
		return false
	}

	// Missing or unreadable input never fixes itself on retry.
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return true
	}

	// go-fitz reports a missing input as a plain string, without
	// wrapping os.ErrNotExist.
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "no such file") ||
		strings.Contains(errStr, "out of range") ||
		strings.Contains(errStr, "is null") ||
		strings.Contains(errStr, "no extractable text") ||
		strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "corrupt") ||
		strings.Contains(errStr, "encrypted") ||
		strings.Contains(errStr, "invalid pdf") {
		return true
	}

	return false
}

// isTransientError checks if error is transient and worth a delayed retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if isFatalError(err) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Redis hiccups and filesystem pressure
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "temporarily") ||
		strings.Contains(errStr, "eof") {
		return true
	}

	// Unknown failures get the benefit of the doubt until attempts run out.
	return true
}
