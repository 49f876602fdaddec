package prescription

import "errors"

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrMedicationNotFound   = errors.New("medication not found on prescription")
	ErrNoMedications        = errors.New("prescription must contain at least one medication")
	ErrInvalidExpiration    = errors.New("expiration date must be after issue date")
	ErrNotActive            = errors.New("prescription is not active")
	ErrPrescriptionExpired  = errors.New("prescription has expired")
	ErrAlreadyFulfilled     = errors.New("prescription has already been fulfilled")
	ErrAlreadyCancelled     = errors.New("prescription is already cancelled")
	ErrInvalidRenewalDate   = errors.New("new expiration date must be later than the current one")
)
