package medical_record

import "errors"

var (
	ErrRecordNotFound   = errors.New("medical record not found")
	ErrRecordExists     = errors.New("patient already has a medical record")
	ErrInvalidEntryType = errors.New("invalid medical record entry type")
	ErrEntryDescription = errors.New("entry description is required")
	ErrNoEntries        = errors.New("medical record has no entries")
)
