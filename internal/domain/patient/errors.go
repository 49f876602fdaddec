package patient

import "errors"

var (
	ErrPatientNotFound         = errors.New("patient not found")
	ErrPatientAlreadyExists    = errors.New("patient with this medical identifier already exists")
	ErrAlreadyActive           = errors.New("patient is already active")
	ErrAlreadyInactive         = errors.New("patient is already inactive")
	ErrInvalidGender           = errors.New("invalid gender value")
	ErrInvalidBloodType        = errors.New("invalid blood type")
	ErrInvalidDateOfBirth      = errors.New("date of birth cannot be in the future")
	ErrInvalidAllergyOperation = errors.New("allergy operation must be SET, ADD or REMOVE")
)
