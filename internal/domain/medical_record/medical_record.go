package medical_record

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	EntryConsultation EntryType = "CONSULTATION"
	EntryLabResult    EntryType = "LAB_RESULT"
	EntryImaging      EntryType = "IMAGING"
	EntryProcedure    EntryType = "PROCEDURE"
	EntrySurgery      EntryType = "SURGERY"
	EntryReferral     EntryType = "REFERRAL"
	EntryFollowUp     EntryType = "FOLLOW_UP"
)

func (t EntryType) IsValid() bool {
	switch t {
	case EntryConsultation, EntryLabResult, EntryImaging, EntryProcedure,
		EntrySurgery, EntryReferral, EntryFollowUp:
		return true
	}
	return false
}

type VitalSigns struct {
	TemperatureCelsius     *float64 `json:"temperature_celsius,omitempty"`
	BloodPressureSystolic  *int     `json:"bp_systolic,omitempty"`
	BloodPressureDiastolic *int     `json:"bp_diastolic,omitempty"`
	HeartRateBPM           *int     `json:"heart_rate_bpm,omitempty"`
	RespiratoryRate        *int     `json:"respiratory_rate,omitempty"`
	OxygenSaturation       *float64 `json:"oxygen_saturation,omitempty"`
	WeightKg               *float64 `json:"weight_kg,omitempty"`
	HeightCm               *float64 `json:"height_cm,omitempty"`
}

// BMI returns the body mass index rounded to one decimal, or false when
// weight or height is missing.
func (v *VitalSigns) BMI() (float64, bool) {
	if v == nil || v.WeightKg == nil || v.HeightCm == nil || *v.HeightCm <= 0 {
		return 0, false
	}
	m := *v.HeightCm / 100
	return math.Round(*v.WeightKg/(m*m)*10) / 10, true
}

// Attachment represents a file attached to an entry (e.g., lab PDF).
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	URL         string    `json:"url"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Entry is immutable once appended to a record.
type Entry struct {
	ID              uuid.UUID    `json:"id"`
	Type            EntryType    `json:"type"`
	DoctorID        uuid.UUID    `json:"doctor_id"`
	Date            time.Time    `json:"date"`
	Description     string       `json:"description"`
	Diagnosis       string       `json:"diagnosis,omitempty"`
	PrescriptionIDs []uuid.UUID  `json:"prescription_ids,omitempty"`
	TreatmentIDs    []uuid.UUID  `json:"treatment_ids,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	VitalSigns      *VitalSigns  `json:"vital_signs,omitempty"`
	CreatedBy       uuid.UUID    `json:"created_by"`
}

// MedicalRecord is the single chart of a patient. Entries are append-only.
type MedicalRecord struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Entries   []Entry   `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *MedicalRecord) AddEntry(e Entry) {
	r.Entries = append(r.Entries, e)
	r.UpdatedAt = time.Now().UTC()
}

// LatestEntry returns the entry with the most recent Date.
func (r *MedicalRecord) LatestEntry() (Entry, bool) {
	if len(r.Entries) == 0 {
		return Entry{}, false
	}
	latest := r.Entries[0]
	for _, e := range r.Entries[1:] {
		if e.Date.After(latest.Date) {
			latest = e
		}
	}
	return latest, true
}

// FilterEntries returns matching entries ordered by date, newest first.
func (r *MedicalRecord) FilterEntries(f EntryFilter) []Entry {
	out := make([]Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

type EntryFilter struct {
	Type     *EntryType
	DoctorID *uuid.UUID
	From     *time.Time
	To       *time.Time
}

// Matches treats From and To as inclusive bounds.
func (f EntryFilter) Matches(e Entry) bool {
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.DoctorID != nil && e.DoctorID != *f.DoctorID {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	return true
}

type AddEntryCommand struct {
	RecordID        uuid.UUID
	Type            EntryType
	DoctorID        uuid.UUID
	Date            time.Time
	Description     string
	Diagnosis       string
	PrescriptionIDs []uuid.UUID
	TreatmentIDs    []uuid.UUID
	Attachments     []Attachment
	VitalSigns      *VitalSigns
	CreatedBy       uuid.UUID
}
