package appointment

import (
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/google/uuid"
)

const (
	MinDurationMins = 5
	MaxDurationMins = 480
)

type AppointmentType string

const (
	TypeConsultation   AppointmentType = "CONSULTATION"
	TypeFollowUp       AppointmentType = "FOLLOW_UP"
	TypeEmergency      AppointmentType = "EMERGENCY"
	TypeRoutineCheckup AppointmentType = "ROUTINE_CHECKUP"
	TypeProcedure      AppointmentType = "PROCEDURE"
	TypeLabResults     AppointmentType = "LAB_RESULTS"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency, TypeRoutineCheckup, TypeProcedure, TypeLabResults:
		return true
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`

	ScheduledAt  time.Time       `json:"scheduled_at"`
	DurationMins int             `json:"duration_mins"`
	Type         AppointmentType `json:"type"`
	Status       Status          `json:"status"`

	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
	Room   string `json:"room,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMins) * time.Minute)
}

func (a *Appointment) Booking() Booking {
	return Booking{ID: a.ID, ScheduledAt: a.ScheduledAt, DurationMins: a.DurationMins}
}

// Apply runs op through the status machine. On failure the appointment,
// including UpdatedAt, is left exactly as it was.
func (a *Appointment) Apply(op Operation) error {
	return a.applyAt(op, time.Now().UTC())
}

func (a *Appointment) applyAt(op Operation, now time.Time) error {
	next, err := a.Status.Next(op)
	if err != nil {
		return err
	}
	a.Status = next
	a.UpdatedAt = now
	switch next {
	case StatusCompleted:
		a.CompletedAt = &now
	case StatusCancelled:
		a.CancelledAt = &now
	}
	return nil
}

func (a *Appointment) Confirm() error {
	return a.Apply(OpConfirm)
}

func (a *Appointment) StartProgress() error {
	return a.Apply(OpStartProgress)
}

// Complete finishes the visit. Non-empty notes are appended to the
// appointment notes.
func (a *Appointment) Complete(notes string) error {
	if err := a.Apply(OpComplete); err != nil {
		return err
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		a.Notes = appendNote(a.Notes, "[Completion notes: "+notes+"]")
	}
	return nil
}

func (a *Appointment) Cancel(reason string, cancelledBy uuid.UUID) error {
	if err := a.Apply(OpCancel); err != nil {
		return err
	}
	a.CancelledBy = &cancelledBy
	if reason = strings.TrimSpace(reason); reason != "" {
		a.CancellationReason = reason
		a.Notes = appendNote(a.Notes, "[Cancellation reason: "+reason+"]")
	}
	return nil
}

func (a *Appointment) MarkAsMissed() error {
	return a.Apply(OpMarkMissed)
}

// Reschedule moves the slot. Only appointments that still hold the doctor's
// time may move; availability is the caller's concern.
func (a *Appointment) Reschedule(start time.Time, durationMins int) error {
	if !a.Status.IsOccupying() {
		return &domain.RuleViolation{
			Entity:    "appointment",
			Operation: "reschedule",
			From:      string(a.Status),
			Err:       ErrInvalidStatusTransition,
		}
	}
	a.ScheduledAt = start
	a.DurationMins = durationMins
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func appendNote(existing, note string) string {
	return strings.TrimSpace(existing + "\n" + note)
}

type CreateAppointmentCommand struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	ScheduledAt  time.Time
	DurationMins int
	Type         AppointmentType
	Reason       string
	Notes        string
	Room         string
	CreatedBy    uuid.UUID
}

type UpdateAppointmentCommand struct {
	ScheduledAt  *time.Time
	DurationMins *int
	Type         *AppointmentType
	Reason       *string
	Notes        *string
	Room         *string
	UpdatedBy    uuid.UUID
}

func (c *UpdateAppointmentCommand) ChangesSlot() bool {
	return c.ScheduledAt != nil || c.DurationMins != nil
}

type CancelAppointmentCommand struct {
	Reason      string
	CancelledBy uuid.UUID
}

type CompleteAppointmentCommand struct {
	Notes       string
	CompletedBy uuid.UUID
}

type ListAppointmentsQuery struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Type      *AppointmentType
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

type PagedAppointments struct {
	Appointments []*Appointment `json:"appointments"`
	TotalCount   int64          `json:"total_count"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
}
