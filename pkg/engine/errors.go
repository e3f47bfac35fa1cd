// Package engine implements the convergence core: a resource graph with
// dependency ordering, a read-only state prober, a pure diff engine, a
// plan executor and the controller that ties the phases together.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an engine error by the phase and blast radius it
// belongs to. Load and graph errors are fatal to the run before anything
// is mutated; probe and backend errors stay scoped to one resource.
type ErrorClass string

const (
	// ErrorClassLoad indicates malformed desired-state input. Fatal,
	// nothing gets probed or applied.
	ErrorClassLoad ErrorClass = "load"

	// ErrorClassGraph indicates an invalid resource graph (duplicate
	// identity, dangling dependency, cycle). Fatal at build time.
	ErrorClassGraph ErrorClass = "graph"

	// ErrorClassProbe indicates a failure reading actual state for one
	// resource. Non-fatal; the resource and its dependents fail, the
	// rest of the run continues.
	ErrorClassProbe ErrorClass = "probe"

	// ErrorClassBackend indicates a failed backend mutation for one
	// action. Non-fatal; recorded as a Failed outcome.
	ErrorClassBackend ErrorClass = "backend"

	// ErrorClassCancelled indicates the run was cancelled before the
	// action was scheduled.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// Error codes for programmatic handling.
const (
	CodeDuplicateResource  = "DUPLICATE_RESOURCE"
	CodeDanglingDependency = "DANGLING_DEPENDENCY"
	CodeDependencyCycle    = "DEPENDENCY_CYCLE"
	CodeValidation         = "VALIDATION_ERROR"
	CodeProbeFailed        = "PROBE_FAILED"
	CodeBackendFailed      = "BACKEND_FAILED"
	CodeDependencyFailed   = "DEPENDENCY_FAILED"
	CodeRunCancelled       = "RUN_CANCELLED"
)

// Error is a classified engine error with resource and operation context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Resource is the resource identity the error is scoped to, if any.
	Resource string `json:"resource,omitempty"`

	// Op is the operation being performed when the error occurred.
	Op string `json:"op,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Resource != "" {
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches engine errors by class and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// WithResource adds resource identity context to the error.
func (e *Error) WithResource(id string) *Error {
	e.Resource = id
	return e
}

// WithOp adds operation context to the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// NewLoadError creates a fatal desired-state input error.
func NewLoadError(message string, err error) *Error {
	return &Error{Class: ErrorClassLoad, Code: CodeValidation, Message: message, Err: err}
}

// NewDuplicateResourceError reports an identity collision at graph
// insertion time.
func NewDuplicateResourceError(id string) *Error {
	return &Error{
		Class:    ErrorClassGraph,
		Code:     CodeDuplicateResource,
		Message:  "duplicate resource identity",
		Resource: id,
	}
}

// NewDanglingDependencyError reports a dependency on an identity that is
// not in the graph, detected at finalization time.
func NewDanglingDependencyError(id, dep string) *Error {
	return &Error{
		Class:    ErrorClassGraph,
		Code:     CodeDanglingDependency,
		Message:  fmt.Sprintf("dependency %q does not resolve to a resource in the graph", dep),
		Resource: id,
	}
}

// NewCycleError reports a dependency cycle.
func NewCycleError(cycle string) *Error {
	return &Error{
		Class:   ErrorClassGraph,
		Code:    CodeDependencyCycle,
		Message: fmt.Sprintf("dependency cycle detected: %s", cycle),
	}
}

// NewProbeError creates a per-resource actual-state read failure.
func NewProbeError(kind ResourceKind, err error) *Error {
	return &Error{
		Class:   ErrorClassProbe,
		Code:    CodeProbeFailed,
		Message: fmt.Sprintf("probing %s state failed", kind),
		Err:     err,
	}
}

// NewBackendError creates a per-action backend mutation failure.
func NewBackendError(op ActionOp, err error) *Error {
	return &Error{
		Class:   ErrorClassBackend,
		Code:    CodeBackendFailed,
		Message: "backend error",
		Op:      string(op),
		Err:     err,
	}
}

// IsFatal reports whether the error must abort the run before probing.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassLoad || e.Class == ErrorClassGraph
	}
	return false
}

// IsProbe reports whether the error is a per-resource probe failure.
func IsProbe(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassProbe
	}
	return false
}

// IsBackend reports whether the error is a per-action backend failure.
func IsBackend(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassBackend
	}
	return false
}
