package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	OccupancyReader

	// Create returns ErrAppointmentConflict when the store rejects a second
	// occupying booking for the same doctor and start time.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error)

	// Update persists the full mutable state of a, including status.
	Update(ctx context.Context, a *Appointment) error
}
