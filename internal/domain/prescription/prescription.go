package prescription

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFulfilled Status = "FULFILLED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusFulfilled, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type Medication struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`    // e.g. "500mg"
	Frequency    string    `json:"frequency"` // e.g. "3 times a day"
	Duration     string    `json:"duration"`  // e.g. "7 days", "2 weeks"
	Instructions string    `json:"instructions,omitempty"`
	Quantity     int       `json:"quantity"`
	IsControlled bool      `json:"is_controlled"`
}

var firstNumber = regexp.MustCompile(`\d+`)

// TotalDoses estimates doses over the whole course from the free-text
// frequency and duration. Unparseable values count as 1.
func (m Medication) TotalDoses() int {
	return perDay(m.Frequency) * durationDays(m.Duration)
}

func perDay(frequency string) int {
	if strings.Contains(strings.ToLower(frequency), "day") {
		return leadingNumber(frequency, 1)
	}
	return 1
}

func durationDays(duration string) int {
	d := strings.ToLower(duration)
	switch {
	case strings.Contains(d, "day"):
		return leadingNumber(d, 1)
	case strings.Contains(d, "week"):
		return leadingNumber(d, 1) * 7
	}
	return 1
}

func leadingNumber(s string, fallback int) int {
	if m := firstNumber.FindString(s); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return fallback
}

type Prescription struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`

	Medications    []Medication `json:"medications"`
	IssueDate      time.Time    `json:"issue_date"`
	ExpirationDate time.Time    `json:"expiration_date"`
	Status         Status       `json:"status"`
	Notes          string       `json:"notes,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValid reports whether the prescription can still be dispensed at now.
func (p *Prescription) IsValid(now time.Time) bool {
	return p.Status == StatusActive && !now.After(p.ExpirationDate)
}

func (p *Prescription) HasControlledSubstance() bool {
	for _, m := range p.Medications {
		if m.IsControlled {
			return true
		}
	}
	return false
}

func (p *Prescription) AddMedication(m Medication) error {
	if p.Status != StatusActive {
		return ErrNotActive
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	p.Medications = append(p.Medications, m)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveMedication refuses to leave a prescription without medications.
func (p *Prescription) RemoveMedication(id uuid.UUID) error {
	if p.Status != StatusActive {
		return ErrNotActive
	}
	idx := -1
	for i, m := range p.Medications {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrMedicationNotFound
	}
	if len(p.Medications) == 1 {
		return ErrNoMedications
	}
	p.Medications = append(p.Medications[:idx], p.Medications[idx+1:]...)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Prescription) Fulfill(now time.Time) error {
	if p.Status != StatusActive {
		return ErrNotActive
	}
	if now.After(p.ExpirationDate) {
		return ErrPrescriptionExpired
	}
	p.Status = StatusFulfilled
	p.UpdatedAt = now
	return nil
}

func (p *Prescription) Cancel(reason string, now time.Time) error {
	switch p.Status {
	case StatusFulfilled:
		return ErrAlreadyFulfilled
	case StatusCancelled:
		return ErrAlreadyCancelled
	}
	p.Status = StatusCancelled
	note := "Cancelled"
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	p.addNote(note, now)
	return nil
}

func (p *Prescription) Renew(newExpiration, now time.Time) error {
	if p.Status != StatusActive {
		return ErrNotActive
	}
	if !newExpiration.After(p.ExpirationDate) {
		return ErrInvalidRenewalDate
	}
	p.ExpirationDate = newExpiration
	p.addNote("Renewed until "+newExpiration.Format(time.DateOnly), now)
	return nil
}

func (p *Prescription) addNote(note string, now time.Time) {
	line := "[" + now.Format(time.RFC3339) + "] " + note
	if p.Notes == "" {
		p.Notes = line
	} else {
		p.Notes += "\n" + line
	}
	p.UpdatedAt = now
}

type CreatePrescriptionCommand struct {
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	AppointmentID  *uuid.UUID
	Medications    []Medication
	IssueDate      time.Time
	ExpirationDate time.Time
	Notes          string
	CreatedBy      uuid.UUID
}

type ListPrescriptionsQuery struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	ValidAt   *time.Time
	Page      int
	PageSize  int
}

type PagedPrescriptions struct {
	Prescriptions []*Prescription `json:"prescriptions"`
	TotalCount    int64           `json:"total_count"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
	TotalPages    int             `json:"total_pages"`
}
