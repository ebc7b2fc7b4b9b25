package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks sizing, measurement, or request values outside the recognised enumerations.
	ErrValidation = errors.New("fulfillment: validation failed")
	// ErrNotFound marks a referenced attendee, event, look, or order that does not exist.
	ErrNotFound = errors.New("fulfillment: not found")
	// ErrService marks a failed call to an external collaborator or the persistence backend.
	ErrService = errors.New("fulfillment: service failure")

	// ErrOrderInvalidInput indicates the inbound paid order could not be interpreted.
	ErrOrderInvalidInput = errors.New("order assembler: invalid input")
	// ErrDiscountInvalidInput indicates malformed discount commands.
	ErrDiscountInvalidInput = errors.New("discount: invalid input")
	// ErrDiscountExceedsLook signals the requested credits would exceed the attendee's look price.
	ErrDiscountExceedsLook = errors.New("discount: total exceeds look price")
	// ErrAttendeeNotEligible signals an attendee that is not styled, not invited, or has no look.
	ErrAttendeeNotEligible = errors.New("discount: attendee not eligible")
	// ErrGroupDiscountIneligible signals the event has too few eligible attendees for a group credit.
	ErrGroupDiscountIneligible = errors.New("discount: group discount not available")
)

// ValidationError names the offending field of a rejected value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	reason := e.Reason
	if reason == "" {
		reason = "unsupported value"
	}
	return fmt.Sprintf("%s: %s %q: %s", ErrValidation.Error(), e.Field, e.Value, reason)
}

// Unwrap exposes ErrValidation for errors.Is checks.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, value string) *ValidationError {
	return &ValidationError{Field: field, Value: value}
}
