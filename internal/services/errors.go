package services

import (
	"errors"
	"fmt"
)

// Error classes. Handlers switch on these with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrExhausted    = errors.New("exhausted")
)

var (
	ErrInvalidStatus = fmt.Errorf("invalid status: %w", ErrInvalidInput)

	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
	ErrDoctorNotFound  = fmt.Errorf("doctor %w", ErrNotFound)

	ErrSlotUnavailable          = fmt.Errorf("slot unavailable: %w", ErrConflict)
	ErrCallEnded                = fmt.Errorf("call already ended: %w", ErrConflict)
	ErrStaleRoom                = fmt.Errorf("video room is no longer valid: %w", ErrConflict)
	ErrBookingNotPaid           = fmt.Errorf("booking is not paid: %w", ErrConflict)
	ErrMaterializationCorrupted = fmt.Errorf("materialization corrupted: %w", ErrConflict)

	ErrRoomAllocationExhausted = fmt.Errorf("room allocation: %w", ErrExhausted)
)
