package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	mr "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type MedicalRecordService struct {
	repo        mr.Repository
	patientRepo patient.Repository
	auditSvc    *AuditService
	log         *zap.Logger
}

func NewMedicalRecordService(repo mr.Repository, patientRepo patient.Repository, auditSvc *AuditService, log *zap.Logger) *MedicalRecordService {
	return &MedicalRecordService{repo: repo, patientRepo: patientRepo, auditSvc: auditSvc, log: log}
}

// OpenRecord creates the single medical record a patient may have.
func (s *MedicalRecordService) OpenRecord(ctx context.Context, patientID uuid.UUID, caller Caller) (*mr.MedicalRecord, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse) {
		return nil, ErrForbidden
	}

	// Checking Patient Existence
	if _, err := s.patientRepo.GetByID(ctx, patientID); err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	record := &mr.MedicalRecord{
		ID:        uuid.New(),
		PatientID: patientID,
		Entries:   []mr.Entry{},
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("creating medical record: %w", err)
	}

	s.auditSvc.Record(ctx, caller, domain.ActionCreate, "medical_record", record.ID.String())
	return record, nil
}

func (s *MedicalRecordService) GetRecord(ctx context.Context, id uuid.UUID, caller Caller) (*mr.MedicalRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.authorizeRead(ctx, record, caller)
}

func (s *MedicalRecordService) GetRecordByPatient(ctx context.Context, patientID uuid.UUID, caller Caller) (*mr.MedicalRecord, error) {
	if !caller.CanAccessPatient(patientID) {
		return nil, ErrForbidden
	}
	record, err := s.repo.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.authorizeRead(ctx, record, caller)
}

func (s *MedicalRecordService) authorizeRead(ctx context.Context, record *mr.MedicalRecord, caller Caller) (*mr.MedicalRecord, error) {
	if !caller.CanAccessPatient(record.PatientID) {
		return nil, ErrForbidden
	}
	if !caller.IsPatient() && !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse) {
		return nil, ErrForbidden
	}
	s.auditSvc.Record(ctx, caller, domain.ActionRead, "medical_record", record.ID.String())
	return record, nil
}

// AddEntry appends a clinical entry; existing entries are never rewritten.
func (s *MedicalRecordService) AddEntry(ctx context.Context, cmd *mr.AddEntryCommand, caller Caller) (*mr.Entry, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse) {
		return nil, ErrForbidden
	}

	var errs []string
	if !cmd.Type.IsValid() {
		errs = append(errs, mr.ErrInvalidEntryType.Error())
	}
	if strings.TrimSpace(cmd.Description) == "" {
		errs = append(errs, mr.ErrEntryDescription.Error())
	}
	if cmd.DoctorID == uuid.Nil {
		errs = append(errs, "doctor_id is required")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if cmd.Date.IsZero() {
		cmd.Date = time.Now()
	}
	attachments := make([]mr.Attachment, len(cmd.Attachments))
	for i, a := range cmd.Attachments {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.UploadedAt.IsZero() {
			a.UploadedAt = time.Now().UTC()
		}
		attachments[i] = a
	}

	entry := mr.Entry{
		ID:              uuid.New(),
		Type:            cmd.Type,
		DoctorID:        cmd.DoctorID,
		Date:            cmd.Date.UTC(),
		Description:     strings.TrimSpace(cmd.Description),
		Diagnosis:       strings.TrimSpace(cmd.Diagnosis),
		PrescriptionIDs: cmd.PrescriptionIDs,
		TreatmentIDs:    cmd.TreatmentIDs,
		Attachments:     attachments,
		VitalSigns:      cmd.VitalSigns,
		CreatedBy:       caller.UserID,
	}

	if err := s.repo.AppendEntry(ctx, cmd.RecordID, entry); err != nil {
		return nil, fmt.Errorf("adding medical record entry: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: caller.Role,
		Action: string(domain.ActionUpdate), ResourceType: "medical_record", ResourceID: cmd.RecordID.String(),
		IPAddress: caller.IP, RequestID: caller.RequestID,
		Changes: fmt.Sprintf(`{"action":"entry_added","entry_id":%q}`, entry.ID),
	})

	return &entry, nil
}

func (s *MedicalRecordService) ListEntries(ctx context.Context, recordID uuid.UUID, f mr.EntryFilter, caller Caller) ([]mr.Entry, error) {
	record, err := s.GetRecord(ctx, recordID, caller)
	if err != nil {
		return nil, err
	}
	return record.FilterEntries(f), nil
}

func (s *MedicalRecordService) LatestEntry(ctx context.Context, recordID uuid.UUID, caller Caller) (*mr.Entry, error) {
	record, err := s.GetRecord(ctx, recordID, caller)
	if err != nil {
		return nil, err
	}
	e, ok := record.LatestEntry()
	if !ok {
		return nil, mr.ErrNoEntries
	}
	return &e, nil
}

type PrescriptionService struct {
	repo        prescription.Repository
	patientRepo patient.Repository
	auditSvc    *AuditService
	metrics     *metrics.Collector
	log         *zap.Logger
	now         func() time.Time
}

func NewPrescriptionService(repo prescription.Repository, patientRepo patient.Repository, auditSvc *AuditService, m *metrics.Collector, log *zap.Logger) *PrescriptionService {
	return &PrescriptionService{repo: repo, patientRepo: patientRepo, auditSvc: auditSvc, metrics: m, log: log, now: time.Now}
}

// Only doctors can prescribe medications.
func (s *PrescriptionService) CreatePrescription(ctx context.Context, cmd *prescription.CreatePrescriptionCommand, caller Caller) (*prescription.Prescription, error) {
	if !caller.HasRole(domain.RoleDoctor, domain.RoleAdmin) {
		return nil, ErrForbidden
	}

	if cmd.IssueDate.IsZero() {
		cmd.IssueDate = s.now()
	}
	if err := validateCreatePrescription(cmd); err != nil {
		return nil, err
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return nil, &ValidationError{Fields: []string{"patient is not active"}}
	}

	meds := make([]prescription.Medication, len(cmd.Medications))
	for i, m := range cmd.Medications {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		meds[i] = m
	}

	rx := &prescription.Prescription{
		ID:             uuid.New(),
		PatientID:      cmd.PatientID,
		DoctorID:       cmd.DoctorID,
		AppointmentID:  cmd.AppointmentID,
		Medications:    meds,
		IssueDate:      cmd.IssueDate.UTC(),
		ExpirationDate: cmd.ExpirationDate.UTC(),
		Status:         prescription.StatusActive,
		Notes:          strings.TrimSpace(cmd.Notes),
		CreatedBy:      caller.UserID,
	}

	if err := s.repo.Create(ctx, rx); err != nil {
		return nil, fmt.Errorf("creating prescription: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PrescriptionsIssued.Inc()
	}
	s.auditSvc.Record(ctx, caller, domain.ActionCreate, "prescription", rx.ID.String())
	if rx.HasControlledSubstance() {
		s.log.Info("controlled substance prescribed",
			zap.String("prescription_id", rx.ID.String()),
			zap.String("doctor_id", rx.DoctorID.String()),
		)
	}

	return rx, nil
}

func (s *PrescriptionService) GetPrescription(ctx context.Context, id uuid.UUID, caller Caller) (*prescription.Prescription, error) {
	rx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccessPatient(rx.PatientID) {
		return nil, ErrForbidden
	}
	s.auditSvc.Record(ctx, caller, domain.ActionRead, "prescription", id.String())
	return rx, nil
}

func (s *PrescriptionService) ListPrescriptions(ctx context.Context, q *prescription.ListPrescriptionsQuery, caller Caller) (*prescription.PagedPrescriptions, error) {
	if caller.IsPatient() {
		if caller.PatientID == nil {
			return nil, ErrForbidden
		}
		q.PatientID = caller.PatientID
	}
	normalizePage(&q.Page, &q.PageSize)
	return s.repo.List(ctx, q)
}

func (s *PrescriptionService) AddMedication(ctx context.Context, id uuid.UUID, m prescription.Medication, caller Caller) (*prescription.Prescription, error) {
	if errs := validateMedication(m, 0); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return s.mutate(ctx, id, caller, `{"action":"medication_added"}`, func(rx *prescription.Prescription) error {
		return rx.AddMedication(m)
	})
}

func (s *PrescriptionService) RemoveMedication(ctx context.Context, id, medicationID uuid.UUID, caller Caller) (*prescription.Prescription, error) {
	return s.mutate(ctx, id, caller, `{"action":"medication_removed"}`, func(rx *prescription.Prescription) error {
		return rx.RemoveMedication(medicationID)
	})
}

func (s *PrescriptionService) FulfillPrescription(ctx context.Context, id uuid.UUID, caller Caller) (*prescription.Prescription, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse) {
		return nil, ErrForbidden
	}
	return s.apply(ctx, id, caller, `{"status":"FULFILLED"}`, func(rx *prescription.Prescription) error {
		return rx.Fulfill(s.now().UTC())
	})
}

func (s *PrescriptionService) CancelPrescription(ctx context.Context, id uuid.UUID, reason string, caller Caller) (*prescription.Prescription, error) {
	return s.mutate(ctx, id, caller, `{"status":"CANCELLED"}`, func(rx *prescription.Prescription) error {
		return rx.Cancel(reason, s.now().UTC())
	})
}

func (s *PrescriptionService) RenewPrescription(ctx context.Context, id uuid.UUID, newExpiration time.Time, caller Caller) (*prescription.Prescription, error) {
	return s.mutate(ctx, id, caller, `{"action":"renewed"}`, func(rx *prescription.Prescription) error {
		return rx.Renew(newExpiration.UTC(), s.now().UTC())
	})
}

// mutate is restricted to prescribers.
func (s *PrescriptionService) mutate(ctx context.Context, id uuid.UUID, caller Caller, changes string, fn func(*prescription.Prescription) error) (*prescription.Prescription, error) {
	if !caller.HasRole(domain.RoleDoctor, domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	return s.apply(ctx, id, caller, changes, fn)
}

func (s *PrescriptionService) apply(ctx context.Context, id uuid.UUID, caller Caller, changes string, fn func(*prescription.Prescription) error) (*prescription.Prescription, error) {
	rx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(rx); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rx); err != nil {
		return nil, fmt.Errorf("updating prescription: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: caller.Role,
		Action: string(domain.ActionUpdate), ResourceType: "prescription", ResourceID: id.String(),
		IPAddress: caller.IP, RequestID: caller.RequestID,
		Changes: changes,
	})
	return rx, nil
}

func validateCreatePrescription(cmd *prescription.CreatePrescriptionCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.DoctorID == uuid.Nil {
		errs = append(errs, "doctor_id is required")
	}
	if len(cmd.Medications) == 0 {
		errs = append(errs, prescription.ErrNoMedications.Error())
	}
	for i, m := range cmd.Medications {
		errs = append(errs, validateMedication(m, i)...)
	}
	if !cmd.ExpirationDate.After(cmd.IssueDate) {
		errs = append(errs, prescription.ErrInvalidExpiration.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateMedication(m prescription.Medication, idx int) []string {
	var errs []string
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, fmt.Sprintf("medications[%d].name is required", idx))
	}
	if strings.TrimSpace(m.Dosage) == "" {
		errs = append(errs, fmt.Sprintf("medications[%d].dosage is required", idx))
	}
	if strings.TrimSpace(m.Frequency) == "" {
		errs = append(errs, fmt.Sprintf("medications[%d].frequency is required", idx))
	}
	if m.Quantity < 0 {
		errs = append(errs, fmt.Sprintf("medications[%d].quantity cannot be negative", idx))
	}
	return errs
}
