package core

import (
	"fmt"
	"strings"
)

// ValidateTurn validates a conversation turn before it is appended to memory.
//
// Validation rules:
//   - Role must be user, system or assistant
//   - Content must not be blank
func ValidateTurn(role Role, content string) error {
	if err := ValidateRole(role); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return Invalid(ErrEmptyContent)
	}
	return nil
}

// ValidateRole checks that role is one of the known roles.
func ValidateRole(role Role) error {
	switch role {
	case RoleUser, RoleSystem, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidRole, role)
	}
}

// ParseBookingStatus converts s into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidBookingStatus, s)
	}
}

// ValidateStatusTransition checks a booking lifecycle change.
// Pending bookings may become confirmed or cancelled. Setting the current
// status again is allowed. Everything else is rejected.
func ValidateStatusTransition(from, to BookingStatus) error {
	if from == to {
		return nil
	}
	if from == BookingPending && (to == BookingConfirmed || to == BookingCancelled) {
		return nil
	}
	return fmt.Errorf("%w: %w: %s -> %s", ErrValidation, ErrInvalidStatusTransition, from, to)
}

// ValidateBooking validates a booking before it is persisted.
func ValidateBooking(b *Booking) error {
	if b == nil {
		return Invalidf("booking is nil")
	}
	info := BookingInfo{Name: b.Name, Email: b.Email, Date: b.Date, Time: b.Time}
	if !info.Complete() {
		return Invalid(ErrIncompleteBooking)
	}
	if _, err := ParseBookingStatus(string(b.Status)); err != nil {
		return err
	}
	return nil
}
