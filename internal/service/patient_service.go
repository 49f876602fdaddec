package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type PatientService struct {
	repo     patient.Repository
	auditSvc *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewPatientService(repo patient.Repository, auditSvc *AuditService, m *metrics.Collector, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:     repo,
		auditSvc: auditSvc,
		metrics:  m,
		log:      log,
	}
}

func (s *PatientService) CreatePatient(ctx context.Context, cmd *patient.CreatePatientCommand, caller Caller) (*patient.Patient, error) {
	if caller.IsPatient() {
		return nil, ErrForbidden
	}
	if err := validateCreatePatient(cmd); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByMedicalIdentifier(ctx, cmd.MedicalIdentifier, nil)
	if err != nil {
		s.log.Error("failed to check medical identifier uniqueness", zap.Error(err))
		return nil, fmt.Errorf("checking uniqueness: %w", err)
	}
	if exists {
		return nil, patient.ErrPatientAlreadyExists
	}

	p := &patient.Patient{
		ID:                uuid.New(),
		FirstName:         strings.TrimSpace(cmd.FirstName),
		LastName:          strings.TrimSpace(cmd.LastName),
		DateOfBirth:       cmd.DateOfBirth.UTC(),
		Gender:            cmd.Gender,
		BloodType:         cmd.BloodType,
		MedicalIdentifier: strings.TrimSpace(cmd.MedicalIdentifier),
		Status:            patient.StatusActive,
		CreatedBy:         caller.UserID,
	}
	p.UpdateContactInfo(cmd.ContactInfo)
	if err := p.UpdateAllergies(patient.AllergySet, cmd.Allergies); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PatientsCreatedTotal.Inc()
	}
	s.auditSvc.Record(ctx, caller, domain.ActionCreate, "patient", p.ID.String())

	s.log.Info("patient created",
		zap.String("patient_id", p.ID.String()),
		zap.String("created_by", caller.UserID.String()),
	)

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id uuid.UUID, caller Caller) (*patient.Patient, error) {
	// RBAC: patients can only read their own record
	if !caller.CanAccessPatient(id) {
		return nil, ErrForbidden
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, caller, domain.ActionRead, "patient", id.String())
	return p, nil
}

func (s *PatientService) ListPatients(ctx context.Context, q *patient.ListPatientsQuery, caller Caller) (*patient.PagedPatients, error) {
	if caller.IsPatient() {
		return nil, ErrForbidden
	}
	normalizePage(&q.Page, &q.PageSize)
	return s.repo.List(ctx, q)
}

func (s *PatientService) UpdatePatient(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand, caller Caller) (*patient.Patient, error) {
	if caller.IsPatient() {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, caller, func(p *patient.Patient) error {
		var errs []string
		if cmd.FirstName != nil {
			if p.FirstName = strings.TrimSpace(*cmd.FirstName); p.FirstName == "" {
				errs = append(errs, "first_name cannot be empty")
			}
		}
		if cmd.LastName != nil {
			if p.LastName = strings.TrimSpace(*cmd.LastName); p.LastName == "" {
				errs = append(errs, "last_name cannot be empty")
			}
		}
		if cmd.DateOfBirth != nil {
			if cmd.DateOfBirth.After(time.Now()) {
				errs = append(errs, patient.ErrInvalidDateOfBirth.Error())
			}
			p.DateOfBirth = cmd.DateOfBirth.UTC()
		}
		if cmd.Gender != nil {
			if !cmd.Gender.IsValid() {
				errs = append(errs, patient.ErrInvalidGender.Error())
			}
			p.Gender = *cmd.Gender
		}
		if cmd.BloodType != nil {
			if *cmd.BloodType != "" && !cmd.BloodType.IsValid() {
				errs = append(errs, patient.ErrInvalidBloodType.Error())
			}
			p.BloodType = *cmd.BloodType
		}
		if len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}
		return nil
	})
}

// UpdateContactInfo is open to the patient themselves.
func (s *PatientService) UpdateContactInfo(ctx context.Context, id uuid.UUID, ci patient.ContactInfo, caller Caller) (*patient.Patient, error) {
	if !caller.CanAccessPatient(id) {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, caller, func(p *patient.Patient) error {
		p.UpdateContactInfo(ci)
		return nil
	})
}

func (s *PatientService) UpdateAllergies(ctx context.Context, id uuid.UUID, op patient.AllergyOperation, allergies []string, caller Caller) (*patient.Patient, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse) {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, caller, func(p *patient.Patient) error {
		return p.UpdateAllergies(op, allergies)
	})
}

func (s *PatientService) DeactivatePatient(ctx context.Context, id uuid.UUID, caller Caller) (*patient.Patient, error) {
	if !caller.HasRole(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, caller, func(p *patient.Patient) error {
		return p.Deactivate()
	})
}

func (s *PatientService) ActivatePatient(ctx context.Context, id uuid.UUID, caller Caller) (*patient.Patient, error) {
	if !caller.HasRole(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, caller, func(p *patient.Patient) error {
		return p.Activate()
	})
}

func (s *PatientService) mutate(ctx context.Context, id uuid.UUID, caller Caller, fn func(*patient.Patient) error) (*patient.Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("updating patient: %w", err)
	}
	s.auditSvc.Record(ctx, caller, domain.ActionUpdate, "patient", id.String())
	return p, nil
}

func validateCreatePatient(cmd *patient.CreatePatientCommand) error {
	var errs []string

	if strings.TrimSpace(cmd.FirstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		errs = append(errs, "last_name is required")
	}
	if cmd.DateOfBirth.IsZero() {
		errs = append(errs, "date_of_birth is required")
	}
	if cmd.DateOfBirth.After(time.Now()) {
		errs = append(errs, patient.ErrInvalidDateOfBirth.Error())
	}
	if !cmd.Gender.IsValid() {
		errs = append(errs, patient.ErrInvalidGender.Error())
	}
	if cmd.BloodType != "" && !cmd.BloodType.IsValid() {
		errs = append(errs, patient.ErrInvalidBloodType.Error())
	}
	if strings.TrimSpace(cmd.MedicalIdentifier) == "" {
		errs = append(errs, "medical_identifier is required")
	}
	if strings.TrimSpace(cmd.ContactInfo.Phone) == "" && strings.TrimSpace(cmd.ContactInfo.Email) == "" {
		errs = append(errs, "contact_info requires a phone or email")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
