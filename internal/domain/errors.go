package domain

import (
	"errors"
	"fmt"
)

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	if cause == nil {
		return &EngineError{Code: code, Message: msg}
	}
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// CodeOf returns the EngineError code carried by err, or 0.
func CodeOf(err error) int {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Code
	}
	return 0
}

// Message returns the human-readable part of err without the code prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Message
	}
	return err.Error()
}

// ---- GUI / dispatch errors (-32010 to -32039) ----

var (
	ErrGuiUnavailable   = &EngineError{Code: -32010, Message: "UI toolkit is not available"}
	ErrDispatchTimeout  = &EngineError{Code: -32011, Message: "UI thread did not complete the call in time"}
	ErrDispatchFailed   = &EngineError{Code: -32012, Message: "UI thread call failed"}
	ErrDispatchCanceled = &EngineError{Code: -32013, Message: "caller stopped waiting for the UI thread"}
)

// ---- Workflow errors (-32040 to -32069) ----

var (
	ErrElementNotFound    = &EngineError{Code: -32040, Message: "expected UI element not found"}
	ErrDecisionUnresolved = &EngineError{Code: -32041, Message: "no button matches the resolved decision"}
	ErrLoadFailure        = &EngineError{Code: -32042, Message: "low-level load failed"}
	ErrStuckConfirmation  = &EngineError{Code: -32043, Message: "confirmation dialog is still visible"}
	ErrViewNotFound       = &EngineError{Code: -32044, Message: "view not found"}
	ErrInvalidTransition  = &EngineError{Code: -32045, Message: "invalid workflow state transition"}
	ErrSaveFailed         = &EngineError{Code: -32046, Message: "database save failed"}
)

// ---- Guard errors (-32100 to -32129) ----

var (
	ErrRateLimitExceeded = &EngineError{Code: -32100, Message: "rate limit exceeded"}
	ErrHostBusy          = &EngineError{Code: -32101, Message: "another workflow holds the host"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit     = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery    = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite    = &EngineError{Code: -32132, Message: "store write failed"}
	ErrRunNotFound   = &EngineError{Code: -32133, Message: "workflow run not found"}
	ErrConfigInvalid = &EngineError{Code: -32136, Message: "invalid configuration"}
)
