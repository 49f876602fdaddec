package treatment

import "errors"

var (
	ErrTreatmentNotFound       = errors.New("treatment not found")
	ErrInvalidStatusTransition = errors.New("invalid treatment status transition")
	ErrAlreadyCompleted        = errors.New("treatment is already completed")
	ErrNotActive               = errors.New("only active treatments can be modified")
	ErrInvalidType             = errors.New("invalid treatment type")
	ErrEndBeforeStart          = errors.New("end date cannot be before start date")
)
