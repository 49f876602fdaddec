package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Booking is the slice of an appointment the conflict checker needs.
type Booking struct {
	ID           uuid.UUID `json:"id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	DurationMins int       `json:"duration_mins"`
}

func (b Booking) EndsAt() time.Time {
	return b.ScheduledAt.Add(time.Duration(b.DurationMins) * time.Minute)
}

// OccupancyReader returns a doctor's bookings whose status is occupying.
type OccupancyReader interface {
	FindOccupyingAppointments(ctx context.Context, doctorID uuid.UUID) ([]Booking, error)
}

// Overlaps treats both windows as half-open, so touching endpoints never overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// AvailabilityChecker answers whether a doctor is free for a window. Every
// call reads a fresh snapshot from the store.
type AvailabilityChecker struct {
	store OccupancyReader
}

func NewAvailabilityChecker(store OccupancyReader) *AvailabilityChecker {
	return &AvailabilityChecker{store: store}
}

// IsAvailable expects durationMins > 0.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMins int, excludeID *uuid.UUID) (bool, error) {
	conflicts, err := c.Conflicts(ctx, doctorID, start, durationMins, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts returns the occupying bookings that overlap [start, start+durationMins).
func (c *AvailabilityChecker) Conflicts(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMins int, excludeID *uuid.UUID) ([]Booking, error) {
	bookings, err := c.store.FindOccupyingAppointments(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	end := start.Add(time.Duration(durationMins) * time.Minute)
	var conflicts []Booking
	for _, b := range bookings {
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if Overlaps(start, end, b.ScheduledAt, b.EndsAt()) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}
