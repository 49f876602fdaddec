package treatment

import (
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/google/uuid"
)

type Type string

const (
	TypeMedication      Type = "MEDICATION"
	TypePhysicalTherapy Type = "PHYSICAL_THERAPY"
	TypeSurgery         Type = "SURGERY"
	TypePsychological   Type = "PSYCHOLOGICAL"
	TypeNutritional     Type = "NUTRITIONAL"
	TypeAlternative     Type = "ALTERNATIVE"
	TypeOther           Type = "OTHER"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeMedication, TypePhysicalTherapy, TypeSurgery, TypePsychological,
		TypeNutritional, TypeAlternative, TypeOther:
		return true
	}
	return false
}

// Status of a treatment. CANCELLED is not terminal: it can be reactivated.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Operation string

const (
	OpComplete   Operation = "complete"
	OpCancel     Operation = "cancel"
	OpReactivate Operation = "reactivate"
)

// Next is the pure transition function. A redundant cancel is rejected.
func (s Status) Next(op Operation) (Status, error) {
	switch {
	case op == OpComplete && (s == StatusActive || s == StatusCompleted):
		return StatusCompleted, nil
	case op == OpCancel && s == StatusActive:
		return StatusCancelled, nil
	case op == OpReactivate && s == StatusCancelled:
		return StatusActive, nil
	}
	return s, &domain.RuleViolation{
		Entity:    "treatment",
		Operation: string(op),
		From:      string(s),
		Err:       ErrInvalidStatusTransition,
	}
}

type Treatment struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        Type       `json:"type"`
	Status      Status     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`

	Instructions string `json:"instructions"`
	Notes        string `json:"notes,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Treatment) IsActive() bool {
	return t.Status == StatusActive
}

func (t *Treatment) apply(op Operation, now time.Time) error {
	next, err := t.Status.Next(op)
	if err != nil {
		return err
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Complete sets EndDate to now unless one was already recorded.
func (t *Treatment) Complete() error {
	return t.completeAt(time.Now().UTC())
}

func (t *Treatment) completeAt(now time.Time) error {
	if err := t.apply(OpComplete, now); err != nil {
		return err
	}
	if t.EndDate == nil {
		t.EndDate = &now
	}
	return nil
}

func (t *Treatment) Cancel(reason string) error {
	if err := t.apply(OpCancel, time.Now().UTC()); err != nil {
		return err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		t.AppendNote("[Cancelled: " + reason + "]")
	}
	return nil
}

func (t *Treatment) Reactivate() error {
	return t.apply(OpReactivate, time.Now().UTC())
}

func (t *Treatment) AppendNote(note string) {
	if t.Notes == "" {
		t.Notes = note
	} else {
		t.Notes = t.Notes + "\n" + note
	}
}

type CreateTreatmentCommand struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	Name         string
	Description  string
	Type         Type
	Instructions string
	StartDate    time.Time
	EndDate      *time.Time
	Notes        string
	CreatedBy    uuid.UUID
}

type UpdateTreatmentCommand struct {
	Name         *string
	Description  *string
	Type         *Type
	Instructions *string
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
	Notes        *string
	UpdatedBy    uuid.UUID
}

type ListTreatmentsQuery struct {
	PatientID     *uuid.UUID
	DoctorID      *uuid.UUID
	Status        *Status
	Type          *Type
	Active        *bool
	StartDateFrom *time.Time
	StartDateTo   *time.Time
	Page          int
	PageSize      int
}

type PagedTreatments struct {
	Treatments []*Treatment `json:"treatments"`
	TotalCount int64        `json:"total_count"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}
