package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/treatment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type TreatmentService struct {
	repo        treatment.Repository
	patientRepo patient.Repository
	auditSvc    *AuditService
	metrics     *metrics.Collector
	log         *zap.Logger
}

func NewTreatmentService(repo treatment.Repository, patientRepo patient.Repository, auditSvc *AuditService, m *metrics.Collector, log *zap.Logger) *TreatmentService {
	return &TreatmentService{repo: repo, patientRepo: patientRepo, auditSvc: auditSvc, metrics: m, log: log}
}

func (s *TreatmentService) CreateTreatment(ctx context.Context, cmd *treatment.CreateTreatmentCommand, caller Caller) (*treatment.Treatment, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor) {
		return nil, ErrForbidden
	}
	if err := validateCreateTreatment(cmd); err != nil {
		return nil, err
	}

	if _, err := s.patientRepo.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	t := &treatment.Treatment{
		ID:           uuid.New(),
		PatientID:    cmd.PatientID,
		DoctorID:     cmd.DoctorID,
		Name:         strings.TrimSpace(cmd.Name),
		Description:  strings.TrimSpace(cmd.Description),
		Type:         cmd.Type,
		Status:       treatment.StatusActive,
		StartDate:    cmd.StartDate.UTC(),
		EndDate:      utc(cmd.EndDate),
		Instructions: strings.TrimSpace(cmd.Instructions),
		Notes:        strings.TrimSpace(cmd.Notes),
		CreatedBy:    caller.UserID,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		s.log.Error("failed to create treatment", zap.Error(err))
		return nil, fmt.Errorf("creating treatment: %w", err)
	}

	s.auditSvc.Record(ctx, caller, domain.ActionCreate, "treatment", t.ID.String())
	return t, nil
}

func (s *TreatmentService) GetTreatment(ctx context.Context, id uuid.UUID, caller Caller) (*treatment.Treatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccessPatient(t.PatientID) {
		return nil, ErrForbidden
	}
	s.auditSvc.Record(ctx, caller, domain.ActionRead, "treatment", id.String())
	return t, nil
}

func (s *TreatmentService) ListTreatments(ctx context.Context, q *treatment.ListTreatmentsQuery, caller Caller) (*treatment.PagedTreatments, error) {
	if caller.IsPatient() {
		if caller.PatientID == nil {
			return nil, ErrForbidden
		}
		q.PatientID = caller.PatientID
	}
	normalizePage(&q.Page, &q.PageSize)
	return s.repo.List(ctx, q)
}

func (s *TreatmentService) ActiveForPatient(ctx context.Context, patientID uuid.UUID, caller Caller) ([]*treatment.Treatment, error) {
	if !caller.CanAccessPatient(patientID) {
		return nil, ErrForbidden
	}
	return s.repo.ListActiveByPatient(ctx, patientID)
}

// UpdateTreatment edits the plan of an ACTIVE treatment.
func (s *TreatmentService) UpdateTreatment(ctx context.Context, id uuid.UUID, cmd *treatment.UpdateTreatmentCommand, caller Caller) (*treatment.Treatment, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor) {
		return nil, ErrForbidden
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, treatment.ErrNotActive
	}

	var errs []string
	if cmd.Name != nil {
		if t.Name = strings.TrimSpace(*cmd.Name); t.Name == "" {
			errs = append(errs, "name cannot be empty")
		}
	}
	if cmd.Description != nil {
		t.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.Type != nil {
		if !cmd.Type.IsValid() {
			errs = append(errs, treatment.ErrInvalidType.Error())
		}
		t.Type = *cmd.Type
	}
	if cmd.Instructions != nil {
		t.Instructions = strings.TrimSpace(*cmd.Instructions)
	}
	if cmd.StartDate != nil {
		t.StartDate = cmd.StartDate.UTC()
	}
	switch {
	case cmd.ClearEndDate:
		t.EndDate = nil
	case cmd.EndDate != nil:
		t.EndDate = utc(cmd.EndDate)
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		errs = append(errs, treatment.ErrEndBeforeStart.Error())
	}
	if cmd.Notes != nil {
		t.Notes = strings.TrimSpace(*cmd.Notes)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("updating treatment: %w", err)
	}
	s.auditSvc.Record(ctx, caller, domain.ActionUpdate, "treatment", id.String())
	return t, nil
}

// CompleteTreatment refuses a treatment that is already completed.
func (s *TreatmentService) CompleteTreatment(ctx context.Context, id uuid.UUID, notes string, caller Caller) (*treatment.Treatment, error) {
	return s.transition(ctx, id, caller, treatment.OpComplete, func(t *treatment.Treatment) error {
		if t.Status == treatment.StatusCompleted {
			return treatment.ErrAlreadyCompleted
		}
		if err := t.Complete(); err != nil {
			return err
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			t.AppendNote(notes)
		}
		return nil
	})
}

func (s *TreatmentService) CancelTreatment(ctx context.Context, id uuid.UUID, reason string, caller Caller) (*treatment.Treatment, error) {
	return s.transition(ctx, id, caller, treatment.OpCancel, func(t *treatment.Treatment) error {
		return t.Cancel(reason)
	})
}

func (s *TreatmentService) ReactivateTreatment(ctx context.Context, id uuid.UUID, notes string, caller Caller) (*treatment.Treatment, error) {
	return s.transition(ctx, id, caller, treatment.OpReactivate, func(t *treatment.Treatment) error {
		if err := t.Reactivate(); err != nil {
			return err
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			t.AppendNote("[Reactivated: " + notes + "]")
		}
		return nil
	})
}

func (s *TreatmentService) transition(ctx context.Context, id uuid.UUID, caller Caller, op treatment.Operation, apply func(*treatment.Treatment) error) (t *treatment.Treatment, err error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor) {
		return nil, ErrForbidden
	}

	ctx, span := startSpan(ctx, "TreatmentService."+string(op), attribute.String("treatment_id", id.String()))
	defer func() { endSpan(span, err) }()

	t, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = apply(t)
	if s.metrics != nil {
		s.metrics.TreatmentTransitions.WithLabelValues(string(op), metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("updating treatment status: %w", err)
	}
	s.auditSvc.Record(ctx, caller, domain.ActionUpdate, "treatment", id.String())
	return t, nil
}

func validateCreateTreatment(cmd *treatment.CreateTreatmentCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.DoctorID == uuid.Nil {
		errs = append(errs, "doctor_id is required")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !cmd.Type.IsValid() {
		errs = append(errs, treatment.ErrInvalidType.Error())
	}
	if cmd.StartDate.IsZero() {
		errs = append(errs, "start_date is required")
	}
	if cmd.EndDate != nil && cmd.EndDate.Before(cmd.StartDate) {
		errs = append(errs, treatment.ErrEndBeforeStart.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
