package treatment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	Update(ctx context.Context, t *Treatment) error
	List(ctx context.Context, q *ListTreatmentsQuery) (*PagedTreatments, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error)
}
