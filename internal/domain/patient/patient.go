package patient

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale           Gender = "MALE"
	GenderFemale         Gender = "FEMALE"
	GenderOther          Gender = "OTHER"
	GenderPreferNotToSay Gender = "PREFER_NOT_TO_SAY"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderPreferNotToSay:
		return true
	}
	return false
}

type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

func (b BloodType) IsValid() bool {
	switch b {
	case BloodTypeAPos, BloodTypeANeg, BloodTypeBPos, BloodTypeBNeg,
		BloodTypeABPos, BloodTypeABNeg, BloodTypeOPos, BloodTypeONeg:
		return true
	}
	return false
}

// Status represents the lifecycle state of a patient record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

type ContactInfo struct {
	Email            string            `json:"email"`
	Phone            string            `json:"phone"`
	Address          string            `json:"address"`
	EmergencyContact *EmergencyContact `json:"emergency_contact,omitempty"`
}

type Patient struct {
	ID        uuid.UUID  `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DateOfBirth       time.Time `json:"date_of_birth"`
	Gender            Gender    `json:"gender"`
	BloodType         BloodType `json:"blood_type,omitempty"`
	MedicalIdentifier string    `json:"medical_identifier"`

	ContactInfo ContactInfo `json:"contact_info"`
	Allergies   []string    `json:"allergies"`

	Status    Status    `json:"status"`
	CreatedBy uuid.UUID `json:"created_by"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age in whole years at now.
func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.DateOfBirth.Year()
	if now.Month() < p.DateOfBirth.Month() ||
		(now.Month() == p.DateOfBirth.Month() && now.Day() < p.DateOfBirth.Day()) {
		years--
	}
	return years
}

func (p *Patient) IsActive() bool {
	return p.Status == StatusActive && p.DeletedAt == nil
}

// Deactivate soft-deletes the patient.
func (p *Patient) Deactivate() error {
	if !p.IsActive() {
		return ErrAlreadyInactive
	}
	now := time.Now().UTC()
	p.Status = StatusInactive
	p.DeletedAt = &now
	p.UpdatedAt = now
	return nil
}

func (p *Patient) Activate() error {
	if p.IsActive() {
		return ErrAlreadyActive
	}
	p.Status = StatusActive
	p.DeletedAt = nil
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Patient) UpdateContactInfo(ci ContactInfo) {
	ci.Email = strings.ToLower(strings.TrimSpace(ci.Email))
	ci.Phone = strings.TrimSpace(ci.Phone)
	p.ContactInfo = ci
	p.UpdatedAt = time.Now().UTC()
}

type AllergyOperation string

const (
	AllergySet    AllergyOperation = "SET"
	AllergyAdd    AllergyOperation = "ADD"
	AllergyRemove AllergyOperation = "REMOVE"
)

func (o AllergyOperation) IsValid() bool {
	switch o {
	case AllergySet, AllergyAdd, AllergyRemove:
		return true
	}
	return false
}

// UpdateAllergies applies op to the allergy list. ADD skips entries already
// present; REMOVE drops every listed entry.
func (p *Patient) UpdateAllergies(op AllergyOperation, allergies []string) error {
	var next []string
	switch op {
	case AllergySet:
		next = dedupe(allergies)
	case AllergyAdd:
		next = slices.Clone(p.Allergies)
		for _, a := range allergies {
			if a = strings.TrimSpace(a); a != "" && !slices.Contains(next, a) {
				next = append(next, a)
			}
		}
	case AllergyRemove:
		for _, a := range p.Allergies {
			if !slices.Contains(allergies, a) {
				next = append(next, a)
			}
		}
	default:
		return ErrInvalidAllergyOperation
	}
	if next == nil {
		next = []string{}
	}
	p.Allergies = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" && !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

type CreatePatientCommand struct {
	FirstName         string
	LastName          string
	DateOfBirth       time.Time
	Gender            Gender
	BloodType         BloodType
	MedicalIdentifier string
	ContactInfo       ContactInfo
	Allergies         []string
	CreatedBy         uuid.UUID
}

type UpdatePatientCommand struct {
	FirstName   *string
	LastName    *string
	DateOfBirth *time.Time
	Gender      *Gender
	BloodType   *BloodType
	UpdatedBy   uuid.UUID
}

// ListPatientsQuery defines filtering and pagination for patient list queries.
type ListPatientsQuery struct {
	FirstName         string // case-insensitive substring
	LastName          string // case-insensitive substring
	MedicalIdentifier string
	Email             string
	Active            *bool
	Page              int
	PageSize          int
}

type PagedPatients struct {
	Patients   []*Patient `json:"patients"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
