// Package exception provides the structured error taxonomy used across the
// orchestrator. Every error carries a kind sentinel, the module it originated
// in, and the identifier of the offending entity so callers (an HTTP boundary,
// a CLI) can map it to an appropriate response without string matching.
package exception

import (
	"errors"
	"fmt"
)

// Kind sentinels. Compare with errors.Is.
var (
	// ErrConfig indicates a malformed job list: missing id/name/type, a
	// duplicate id, or a dependsOn entry referencing an unknown job.
	ErrConfig = errors.New("invalid configuration")
	// ErrCycle indicates the dependency relation of a job list is cyclic.
	ErrCycle = errors.New("dependency cycle detected")
	// ErrHandlerNotFound indicates no handler is registered for a job type.
	ErrHandlerNotFound = errors.New("handler not found")
	// ErrHandlerExecution wraps an error returned by a job handler.
	ErrHandlerExecution = errors.New("handler execution failed")
	// ErrNotFound indicates a referenced execution, checkpoint, backfill or
	// artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCancellationRejected indicates a cancel request against an execution
	// that already reached a terminal state.
	ErrCancellationRejected = errors.New("cancellation rejected")
	// ErrConflict indicates an attempt to create an entity whose ID already exists.
	ErrConflict = errors.New("already exists")
)

// OrchestratorError is the structured error type of the orchestrator core.
// Kind is one of the sentinels above, Module names the component that raised
// the error, and Ref carries the offending identifier (job id, execution id, ...).
type OrchestratorError struct {
	Kind    error
	Module  string
	Message string
	Ref     string
	Err     error
}

// Error implements the error interface.
func (e *OrchestratorError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Module, e.Message)
	if e.Ref != "" {
		msg = fmt.Sprintf("%s (ref: %s)", msg, e.Ref)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the wrapped cause, if any, falling back to the kind sentinel
// so errors.Is(err, ErrConfig) and friends work on every OrchestratorError.
func (e *OrchestratorError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, module, message, ref string, cause error) *OrchestratorError {
	return &OrchestratorError{Kind: kind, Module: module, Message: message, Ref: ref, Err: cause}
}

// NewConfigError creates an ErrConfig error. ref is the offending job id, if known.
func NewConfigError(module, message, ref string) *OrchestratorError {
	return newError(ErrConfig, module, message, ref, nil)
}

// NewCycleError creates an ErrCycle error. ref names the ids on the cycle path.
func NewCycleError(module, message, ref string) *OrchestratorError {
	return newError(ErrCycle, module, message, ref, nil)
}

// NewHandlerNotFoundError creates an ErrHandlerNotFound error for the given job type.
func NewHandlerNotFoundError(module, jobType string) *OrchestratorError {
	return newError(ErrHandlerNotFound, module, fmt.Sprintf("no handler registered for job type '%s'", jobType), jobType, nil)
}

// NewHandlerExecutionError wraps an error thrown by a handler for the given job id.
func NewHandlerExecutionError(module, jobID string, cause error) *OrchestratorError {
	return newError(ErrHandlerExecution, module, "handler returned an error", jobID, cause)
}

// NewNotFoundError creates an ErrNotFound error for the given entity id.
func NewNotFoundError(module, message, ref string) *OrchestratorError {
	return newError(ErrNotFound, module, message, ref, nil)
}

// NewCancellationRejectedError creates an ErrCancellationRejected error for the given execution id.
func NewCancellationRejectedError(module, executionID, status string) *OrchestratorError {
	return newError(ErrCancellationRejected, module,
		fmt.Sprintf("execution is already in terminal state '%s'", status), executionID, nil)
}

// NewConflictError creates an ErrConflict error for the given entity id.
func NewConflictError(module, message, ref string) *OrchestratorError {
	return newError(ErrConflict, module, message, ref, nil)
}

// KindOf returns the kind sentinel of err if it is an OrchestratorError, nil otherwise.
func KindOf(err error) error {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return nil
}

// RefOf returns the offending identifier of err if it is an OrchestratorError.
func RefOf(err error) string {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.Ref
	}
	return ""
}
