package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentConflict     = errors.New("doctor is not available in the selected time slot")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrAlreadyCancelled        = errors.New("appointment is already cancelled")
	ErrScheduledInPast         = errors.New("cannot schedule appointment in the past")
	ErrInvalidDuration         = errors.New("appointment duration must be between 5 and 480 minutes")
	ErrInvalidAppointmentType  = errors.New("invalid appointment type")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrDoctorUnavailable       = errors.New("doctor does not exist or is not an active doctor")
	ErrPatientInactive         = errors.New("patient is not active")
)
