package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	mr "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
)

func TestMedicalRecordEntries(t *testing.T) {
	ctx := context.Background()
	p := &patient.Patient{ID: uuid.New(), Status: patient.StatusActive}
	repo := newMockRecordRepo()
	audit := newTestAudit(t)
	svc := NewMedicalRecordService(repo, newMockPatientRepo(p), audit.svc, zap.NewNop())
	doctor := staff(domain.RoleDoctor)

	if _, err := svc.OpenRecord(ctx, p.ID, staff(domain.RoleReceptionist)); !errors.Is(err, ErrForbidden) {
		t.Errorf("receptionist open: err = %v, want ErrForbidden", err)
	}
	record, err := svc.OpenRecord(ctx, p.ID, doctor)
	if err != nil {
		t.Fatalf("OpenRecord: %v", err)
	}
	if _, err := svc.OpenRecord(ctx, p.ID, doctor); !errors.Is(err, mr.ErrRecordExists) {
		t.Errorf("second record: err = %v, want ErrRecordExists", err)
	}

	if _, err := svc.LatestEntry(ctx, record.ID, doctor); !errors.Is(err, mr.ErrNoEntries) {
		t.Errorf("empty record: err = %v, want ErrNoEntries", err)
	}

	jan := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	for _, cmd := range []*mr.AddEntryCommand{
		{RecordID: record.ID, Type: mr.EntryConsultation, DoctorID: doctor.UserID, Date: feb, Description: "follow-up visit"},
		{RecordID: record.ID, Type: mr.EntryLabResult, DoctorID: doctor.UserID, Date: jan, Description: "blood panel",
			Attachments: []mr.Attachment{{FileName: "panel.pdf"}}},
	} {
		if _, err := svc.AddEntry(ctx, cmd, doctor); err != nil {
			t.Fatalf("AddEntry(%s): %v", cmd.Type, err)
		}
	}

	var verr *ValidationError
	if _, err := svc.AddEntry(ctx, &mr.AddEntryCommand{RecordID: record.ID, Type: "GOSSIP"}, doctor); !errors.As(err, &verr) || len(verr.Fields) != 3 {
		t.Errorf("invalid entry: err = %v, want 3 validation problems", err)
	}

	latest, err := svc.LatestEntry(ctx, record.ID, doctor)
	if err != nil {
		t.Fatalf("LatestEntry: %v", err)
	}
	if latest.Description != "follow-up visit" {
		t.Errorf("latest = %q, want the February entry", latest.Description)
	}

	lab := mr.EntryLabResult
	entries, err := svc.ListEntries(ctx, record.ID, mr.EntryFilter{Type: &lab}, patientCaller(p.ID))
	if err != nil {
		t.Fatalf("ListEntries as patient: %v", err)
	}
	if len(entries) != 1 || len(entries[0].Attachments) != 1 || entries[0].Attachments[0].ID == uuid.Nil {
		t.Errorf("entries = %+v, want one lab result with an attachment id", entries)
	}

	if _, err := svc.GetRecord(ctx, record.ID, staff(domain.RoleReceptionist)); !errors.Is(err, ErrForbidden) {
		t.Errorf("receptionist read: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetRecordByPatient(ctx, p.ID, patientCaller(uuid.New())); !errors.Is(err, ErrForbidden) {
		t.Errorf("other patient read: err = %v, want ErrForbidden", err)
	}

	var added int
	for _, e := range audit.flush() {
		if e.Changes != nil && strings.Contains(*e.Changes, "entry_added") {
			added++
		}
	}
	if added != 2 {
		t.Errorf("entry_added audits = %d, want 2", added)
	}
}

func newPrescriptionFixture(t *testing.T, rxs ...*prescription.Prescription) (*PrescriptionService, *mockPrescriptionRepo, uuid.UUID) {
	t.Helper()
	p := &patient.Patient{ID: uuid.New(), Status: patient.StatusActive}
	repo := newMockPrescriptionRepo(rxs...)
	svc := NewPrescriptionService(repo, newMockPatientRepo(p), newTestAudit(t).svc, nil, zap.NewNop())
	svc.now = func() time.Time { return clinicNow }
	return svc, repo, p.ID
}

func activeRx() *prescription.Prescription {
	return &prescription.Prescription{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Medications: []prescription.Medication{
			{ID: uuid.New(), Name: "Ibuprofen", Dosage: "400mg", Frequency: "3 times a day", Duration: "5 days"},
		},
		IssueDate:      clinicNow.Add(-24 * time.Hour),
		ExpirationDate: clinicNow.Add(30 * 24 * time.Hour),
		Status:         prescription.StatusActive,
	}
}

func TestCreatePrescription(t *testing.T) {
	ctx := context.Background()
	svc, repo, patientID := newPrescriptionFixture(t)
	cmd := &prescription.CreatePrescriptionCommand{
		PatientID:      patientID,
		DoctorID:       uuid.New(),
		Medications:    []prescription.Medication{{Name: "Oxycodone", Dosage: "5mg", Frequency: "2 times a day", IsControlled: true}},
		ExpirationDate: clinicNow.Add(14 * 24 * time.Hour),
	}

	if _, err := svc.CreatePrescription(ctx, cmd, staff(domain.RoleNurse)); !errors.Is(err, ErrForbidden) {
		t.Errorf("nurse: err = %v, want ErrForbidden", err)
	}

	rx, err := svc.CreatePrescription(ctx, cmd, staff(domain.RoleDoctor))
	if err != nil {
		t.Fatalf("CreatePrescription: %v", err)
	}
	if !rx.IssueDate.Equal(clinicNow) {
		t.Errorf("IssueDate = %v, want defaulted to now", rx.IssueDate)
	}
	if rx.Medications[0].ID == uuid.Nil {
		t.Error("medication id was not assigned")
	}
	if !rx.HasControlledSubstance() {
		t.Error("controlled flag lost")
	}
	if _, ok := repo.prescriptions[rx.ID]; !ok {
		t.Error("prescription was not persisted")
	}

	expired := *cmd
	expired.IssueDate = clinicNow
	expired.ExpirationDate = clinicNow.Add(-time.Hour)
	expired.Medications = nil
	var verr *ValidationError
	if _, err := svc.CreatePrescription(ctx, &expired, staff(domain.RoleDoctor)); !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Errorf("err = %v, want 2 validation problems", err)
	}
}

func TestPrescriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	doctor := staff(domain.RoleDoctor)

	t.Run("medications", func(t *testing.T) {
		rx := activeRx()
		svc, repo, _ := newPrescriptionFixture(t, rx)

		got, err := svc.AddMedication(ctx, rx.ID, prescription.Medication{Name: "Omeprazole", Dosage: "20mg", Frequency: "once a day"}, doctor)
		if err != nil {
			t.Fatalf("AddMedication: %v", err)
		}
		if len(got.Medications) != 2 {
			t.Fatalf("medications = %d, want 2", len(got.Medications))
		}

		if _, err := svc.RemoveMedication(ctx, rx.ID, got.Medications[1].ID, doctor); err != nil {
			t.Fatalf("RemoveMedication: %v", err)
		}
		if _, err := svc.RemoveMedication(ctx, rx.ID, rx.Medications[0].ID, doctor); !errors.Is(err, prescription.ErrNoMedications) {
			t.Errorf("removing last: err = %v, want ErrNoMedications", err)
		}
		if n := len(repo.prescriptions[rx.ID].Medications); n != 1 {
			t.Errorf("stored medications = %d, want 1", n)
		}

		var verr *ValidationError
		if _, err := svc.AddMedication(ctx, rx.ID, prescription.Medication{Name: "x"}, doctor); !errors.As(err, &verr) {
			t.Errorf("incomplete medication: err = %v, want *ValidationError", err)
		}
	})

	t.Run("fulfil once", func(t *testing.T) {
		rx := activeRx()
		svc, _, _ := newPrescriptionFixture(t, rx)

		if _, err := svc.FulfillPrescription(ctx, rx.ID, staff(domain.RoleReceptionist)); !errors.Is(err, ErrForbidden) {
			t.Errorf("receptionist: err = %v, want ErrForbidden", err)
		}
		got, err := svc.FulfillPrescription(ctx, rx.ID, staff(domain.RoleNurse))
		if err != nil {
			t.Fatalf("FulfillPrescription: %v", err)
		}
		if got.Status != prescription.StatusFulfilled {
			t.Errorf("Status = %q, want FULFILLED", got.Status)
		}
		if _, err := svc.CancelPrescription(ctx, rx.ID, "", doctor); !errors.Is(err, prescription.ErrAlreadyFulfilled) {
			t.Errorf("cancel after fulfil: err = %v, want ErrAlreadyFulfilled", err)
		}
	})

	t.Run("expired cannot be fulfilled", func(t *testing.T) {
		rx := activeRx()
		rx.ExpirationDate = clinicNow.Add(-time.Minute)
		svc, _, _ := newPrescriptionFixture(t, rx)

		if _, err := svc.FulfillPrescription(ctx, rx.ID, doctor); !errors.Is(err, prescription.ErrPrescriptionExpired) {
			t.Errorf("err = %v, want ErrPrescriptionExpired", err)
		}
	})

	t.Run("renew must extend", func(t *testing.T) {
		rx := activeRx()
		svc, _, _ := newPrescriptionFixture(t, rx)

		if _, err := svc.RenewPrescription(ctx, rx.ID, rx.ExpirationDate.Add(-time.Hour), doctor); !errors.Is(err, prescription.ErrInvalidRenewalDate) {
			t.Errorf("earlier date: err = %v, want ErrInvalidRenewalDate", err)
		}
		later := rx.ExpirationDate.Add(30 * 24 * time.Hour)
		got, err := svc.RenewPrescription(ctx, rx.ID, later, doctor)
		if err != nil {
			t.Fatalf("RenewPrescription: %v", err)
		}
		if !got.ExpirationDate.Equal(later) || !strings.Contains(got.Notes, "Renewed until") {
			t.Errorf("renewal not recorded: %+v", got)
		}
	})

	t.Run("patients see only their own", func(t *testing.T) {
		rx := activeRx()
		svc, _, _ := newPrescriptionFixture(t, rx)

		if _, err := svc.GetPrescription(ctx, rx.ID, patientCaller(rx.PatientID)); err != nil {
			t.Errorf("own: unexpected error: %v", err)
		}
		if _, err := svc.GetPrescription(ctx, rx.ID, patientCaller(uuid.New())); !errors.Is(err, ErrForbidden) {
			t.Errorf("other: err = %v, want ErrForbidden", err)
		}
	})
}
