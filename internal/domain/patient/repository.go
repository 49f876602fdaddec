package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient. Returns ErrPatientAlreadyExists on duplicate MedicalIdentifier.
	Create(ctx context.Context, p *Patient) error

	// GetByID returns inactive patients too. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Update replaces the stored document with p.
	Update(ctx context.Context, p *Patient) error

	// List returns a paginated, filtered list of patients.
	List(ctx context.Context, q *ListPatientsQuery) (*PagedPatients, error)

	// ExistsByMedicalIdentifier checks for uniqueness without fetching the full record.
	ExistsByMedicalIdentifier(ctx context.Context, medicalID string, excludeID *uuid.UUID) (bool, error)
}
