package parking

import "errors"

var (
	// Allocation and release failures surfaced to callers.
	ErrCapacityExhausted = errors.New("parking facility is full")
	ErrUnknownSlot       = errors.New("slot not found")
	ErrInvalidState      = errors.New("slot already empty")
	ErrDuplicateVehicle  = errors.New("vehicle is already parked")
	ErrVehicleNotFound   = errors.New("vehicle not found")

	// ErrCorruptStore marks a persisted snapshot that cannot be trusted.
	ErrCorruptStore = errors.New("corrupt parking store")

	// Input validation.
	ErrUnknownCategory  = errors.New("unknown category")
	ErrNegativeDuration = errors.New("negative duration")
	ErrInvalidRange     = errors.New("invalid range")
	ErrInvalidVehicle   = errors.New("invalid vehicle")
)
