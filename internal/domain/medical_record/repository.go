package medical_record

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create returns ErrRecordExists if the patient already has a record.
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	GetByPatientID(ctx context.Context, patientID uuid.UUID) (*MedicalRecord, error)

	// AppendEntry pushes e onto the stored entry list without rewriting it.
	AppendEntry(ctx context.Context, recordID uuid.UUID, e Entry) error
}
