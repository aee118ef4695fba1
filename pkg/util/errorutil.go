package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every DomainError wraps exactly one of these so callers can
// branch with errors.Is regardless of message or details.
var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrAlreadyAssigned    = errors.New("already assigned")
	ErrNotFound           = errors.New("not found")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
	ErrInternal           = errors.New("internal error")
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Kind       error
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *DomainError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind error, code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details, Kind: kind}
}

func NewInvalidTransition(ticketID string, from, to any) error {
	return NewDomainError(ErrInvalidTransition, "INVALID_TRANSITION",
		fmt.Sprintf("cannot move ticket from %v to %v", from, to),
		http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "current": from, "requested": to})
}

func NewAlreadyAssigned(ticketID, assignee string) error {
	return NewDomainError(ErrAlreadyAssigned, "ALREADY_ASSIGNED", "ticket already assigned",
		http.StatusConflict, map[string]any{"ticket_id": ticketID, "assignee": assignee})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError(ErrNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource),
		http.StatusNotFound, details)
}

func NewPolicyViolation(message string, details map[string]any) error {
	return NewDomainError(ErrPolicyViolation, "POLICY_VIOLATION", message, http.StatusBadRequest, details)
}

func NewValidationError(message string, details map[string]any) error {
	return NewPolicyViolation(message, details)
}

func NewPersistenceFailure(ticketID string, err error) error {
	de := NewDomainError(ErrPersistenceFailure, "PERSISTENCE_FAILURE", "ticket write-through failed",
		http.StatusServiceUnavailable, map[string]any{"ticket_id": ticketID})
	de.Err = err
	return de
}

func NewUnauthorized(message string) error {
	return NewDomainError(ErrUnauthorized, "UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(ErrForbidden, "FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(ErrConflict, "CONFLICT", message, http.StatusConflict, details)
}

func NewRateLimited(retryAfterSeconds int) error {
	return NewDomainError(ErrRateLimited, "RATE_LIMITED", "too many tickets created, try again later",
		http.StatusTooManyRequests, map[string]any{"retry_after_seconds": retryAfterSeconds})
}

func NewInternalError(err error) error {
	de := NewDomainError(ErrInternal, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError, nil)
	de.Err = err
	return de
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	de, _ := NewInternalError(err).(*DomainError)
	return de
}

// MapError converts any error into a DomainError while keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsKind reports whether err carries the given kind sentinel.
func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}
