package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes shared by every bounded context
const (
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodePreconditionViolation  = "PRECONDITION_VIOLATION"
	CodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so a detailed error still
// satisfies errors.Is against the package sentinels.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput           = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidStateTransition = NewDomainError(CodeInvalidStateTransition, "Operation not allowed in current state")
	ErrPreconditionViolation  = NewDomainError(CodePreconditionViolation, "Operation blocked by dependent records")
	ErrConcurrencyConflict    = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)

// NewNotFoundError reports a missing (or soft-deleted) entity
func NewNotFoundError(entity string, id any) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", entity, id),
		Details: map[string]any{"entity": entity, "id": fmt.Sprint(id)},
	}
}

// NewInvalidInputError reports a rejected input value
func NewInvalidInputError(message string) *DomainError {
	return NewDomainError(CodeInvalidInput, message)
}

// NewInvalidTransitionError reports a state machine violation and carries the
// current state so callers do not retry blindly.
func NewInvalidTransitionError(entity, current, target string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidStateTransition,
		Message: fmt.Sprintf("cannot move %s from %s to %s", entity, current, target),
		Details: map[string]any{
			"entity":  entity,
			"current": current,
			"target":  target,
		},
	}
}

// NewPreconditionError reports records that block an operation, keyed by the
// blocking product (or other reference) with the number of dependents.
func NewPreconditionError(operation string, blockers map[string]int64) *DomainError {
	keys := make([]string, 0, len(blockers))
	for k := range blockers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	details := make(map[string]any, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s (%d)", k, blockers[k]))
		details[k] = blockers[k]
	}

	return &DomainError{
		Code:    CodePreconditionViolation,
		Message: fmt.Sprintf("%s blocked by active sales for products: %s", operation, strings.Join(parts, ", ")),
		Details: map[string]any{"operation": operation, "blockers": details},
	}
}
