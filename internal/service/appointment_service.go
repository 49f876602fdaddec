package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

// DoctorLookup resolves the user behind a doctor id.
type DoctorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type AvailabilityResult struct {
	DoctorID     uuid.UUID             `json:"doctor_id"`
	Start        time.Time             `json:"start"`
	DurationMins int                   `json:"duration_mins"`
	Available    bool                  `json:"available"`
	Conflicts    []appointment.Booking `json:"conflicts"`
}

type AppointmentService struct {
	repo        appointment.Repository
	patientRepo patient.Repository
	doctors     DoctorLookup
	checker     *appointment.AvailabilityChecker
	auditSvc    *AuditService
	metrics     *metrics.Collector
	log         *zap.Logger
	now         func() time.Time
}

func NewAppointmentService(
	repo appointment.Repository,
	patientRepo patient.Repository,
	doctors DoctorLookup,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		repo:        repo,
		patientRepo: patientRepo,
		doctors:     doctors,
		checker:     appointment.NewAvailabilityChecker(repo),
		auditSvc:    auditSvc,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

func (s *AppointmentService) ScheduleAppointment(ctx context.Context, cmd *appointment.CreateAppointmentCommand, caller Caller) (a *appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "AppointmentService.ScheduleAppointment",
		attribute.String("doctor_id", cmd.DoctorID.String()),
		attribute.String("patient_id", cmd.PatientID.String()),
	)
	defer func() { endSpan(span, err) }()

	if !caller.CanAccessPatient(cmd.PatientID) {
		return nil, ErrForbidden
	}

	// -------- Input Validation -----------
	if cmd.Type == "" {
		cmd.Type = appointment.TypeConsultation
	}
	if err := validateCreateAppointment(cmd); err != nil {
		return nil, err
	}
	if cmd.ScheduledAt.Before(s.now()) {
		return nil, appointment.ErrScheduledInPast
	}

	if err := s.verifyParticipants(ctx, cmd.PatientID, cmd.DoctorID); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, cmd.DoctorID, cmd.ScheduledAt, cmd.DurationMins, nil); err != nil {
		return nil, err
	}

	a = &appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    cmd.PatientID,
		DoctorID:     cmd.DoctorID,
		ScheduledAt:  cmd.ScheduledAt.UTC(),
		DurationMins: cmd.DurationMins,
		Type:         cmd.Type,
		Status:       appointment.StatusScheduled,
		Reason:       strings.TrimSpace(cmd.Reason),
		Notes:        strings.TrimSpace(cmd.Notes),
		Room:         strings.TrimSpace(cmd.Room),
		CreatedBy:    caller.UserID,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, appointment.ErrAppointmentConflict) {
			s.countConflict()
			return nil, err
		}
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsScheduled.Inc()
	}
	s.auditSvc.Record(ctx, caller, domain.ActionCreate, "appointment", a.ID.String())
	s.log.Info("appointment scheduled",
		zap.String("appointment_id", a.ID.String()),
		zap.String("doctor_id", a.DoctorID.String()),
		zap.Time("scheduled_at", a.ScheduledAt),
	)

	return a, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !caller.CanAccessPatient(a.PatientID) {
		return nil, ErrForbidden
	}

	s.auditSvc.Record(ctx, caller, domain.ActionRead, "appointment", id.String())
	return a, nil
}

func (s *AppointmentService) ListAppointments(ctx context.Context, q *appointment.ListAppointmentsQuery, caller Caller) (*appointment.PagedAppointments, error) {
	// Patients can only see their own appointments
	if caller.IsPatient() {
		if caller.PatientID == nil {
			return nil, ErrForbidden
		}
		q.PatientID = caller.PatientID
	}
	normalizePage(&q.Page, &q.PageSize)
	return s.repo.List(ctx, q)
}

// UpdateAppointment changes details of an appointment that still occupies the
// doctor's calendar. A new slot is re-checked with the appointment itself excluded.
func (s *AppointmentService) UpdateAppointment(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand, caller Caller) (a *appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "AppointmentService.UpdateAppointment", attribute.String("appointment_id", id.String()))
	defer func() { endSpan(span, err) }()

	if caller.IsPatient() {
		return nil, ErrForbidden
	}

	a, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	start, duration := a.ScheduledAt, a.DurationMins
	if cmd.ScheduledAt != nil {
		start = cmd.ScheduledAt.UTC()
	}
	if cmd.DurationMins != nil {
		duration = *cmd.DurationMins
	}

	var errs []string
	if duration < appointment.MinDurationMins || duration > appointment.MaxDurationMins {
		errs = append(errs, appointment.ErrInvalidDuration.Error())
	}
	if cmd.Type != nil && !cmd.Type.IsValid() {
		errs = append(errs, appointment.ErrInvalidAppointmentType.Error())
	}
	if cmd.Reason != nil && strings.TrimSpace(*cmd.Reason) == "" {
		errs = append(errs, "reason cannot be empty")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if err := a.Reschedule(start, duration); err != nil {
		return nil, err
	}

	if cmd.ChangesSlot() {
		if start.Before(s.now()) {
			return nil, appointment.ErrScheduledInPast
		}
		if err := s.ensureAvailable(ctx, a.DoctorID, start, duration, &a.ID); err != nil {
			return nil, err
		}
	}

	if cmd.Type != nil {
		a.Type = *cmd.Type
	}
	if cmd.Reason != nil {
		a.Reason = strings.TrimSpace(*cmd.Reason)
	}
	if cmd.Notes != nil {
		a.Notes = strings.TrimSpace(*cmd.Notes)
	}
	if cmd.Room != nil {
		a.Room = strings.TrimSpace(*cmd.Room)
	}

	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, appointment.ErrAppointmentConflict) {
			s.countConflict()
			return nil, err
		}
		return nil, fmt.Errorf("updating appointment: %w", err)
	}

	s.auditSvc.Record(ctx, caller, domain.ActionUpdate, "appointment", id.String())
	return a, nil
}

func (s *AppointmentService) ConfirmAppointment(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	if caller.IsPatient() {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, caller, appointment.OpConfirm, func(a *appointment.Appointment) error {
		return a.Confirm()
	})
}

func (s *AppointmentService) StartAppointment(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse) {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, caller, appointment.OpStartProgress, func(a *appointment.Appointment) error {
		return a.StartProgress()
	})
}

func (s *AppointmentService) CompleteAppointment(ctx context.Context, id uuid.UUID, cmd *appointment.CompleteAppointmentCommand, caller Caller) (*appointment.Appointment, error) {
	if !caller.HasRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse) {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, caller, appointment.OpComplete, func(a *appointment.Appointment) error {
		return a.Complete(cmd.Notes)
	})
}

// CancelAppointment refuses an appointment that is already cancelled, even
// though the status table itself tolerates the repeat.
func (s *AppointmentService) CancelAppointment(ctx context.Context, id uuid.UUID, cmd *appointment.CancelAppointmentCommand, caller Caller) (*appointment.Appointment, error) {
	return s.transition(ctx, id, caller, appointment.OpCancel, func(a *appointment.Appointment) error {
		if !caller.CanAccessPatient(a.PatientID) {
			return ErrForbidden
		}
		if a.Status == appointment.StatusCancelled {
			return appointment.ErrAlreadyCancelled
		}
		return a.Cancel(cmd.Reason, caller.UserID)
	})
}

func (s *AppointmentService) MarkMissed(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	if caller.IsPatient() {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, caller, appointment.OpMarkMissed, func(a *appointment.Appointment) error {
		return a.MarkAsMissed()
	})
}

func (s *AppointmentService) CheckAvailability(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMins int) (*AvailabilityResult, error) {
	if durationMins < appointment.MinDurationMins || durationMins > appointment.MaxDurationMins {
		return nil, &ValidationError{Fields: []string{appointment.ErrInvalidDuration.Error()}}
	}
	conflicts, err := s.checker.Conflicts(ctx, doctorID, start.UTC(), durationMins, nil)
	if err != nil {
		return nil, fmt.Errorf("checking availability: %w", err)
	}
	if conflicts == nil {
		conflicts = []appointment.Booking{}
	}
	return &AvailabilityResult{
		DoctorID:     doctorID,
		Start:        start.UTC(),
		DurationMins: durationMins,
		Available:    len(conflicts) == 0,
		Conflicts:    conflicts,
	}, nil
}

func (s *AppointmentService) transition(
	ctx context.Context,
	id uuid.UUID,
	caller Caller,
	op appointment.Operation,
	apply func(*appointment.Appointment) error,
) (a *appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "AppointmentService."+string(op), attribute.String("appointment_id", id.String()))
	defer func() { endSpan(span, err) }()

	a, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := a.Status
	err = apply(a)
	if s.metrics != nil && !errors.Is(err, ErrForbidden) {
		s.metrics.AppointmentTransitions.WithLabelValues(string(op), metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       string(domain.ActionUpdate),
		ResourceType: "appointment",
		ResourceID:   id.String(),
		IPAddress:    caller.IP,
		RequestID:    caller.RequestID,
		Changes:      fmt.Sprintf(`{"status":{"from":%q,"to":%q}}`, from, a.Status),
	})

	return a, nil
}

func (s *AppointmentService) verifyParticipants(ctx context.Context, patientID, doctorID uuid.UUID) error {
	p, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		return fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return appointment.ErrPatientInactive
	}

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return appointment.ErrDoctorUnavailable
	}
	if err != nil {
		return fmt.Errorf("verifying doctor: %w", err)
	}
	if !doctor.IsActiveDoctor() {
		return appointment.ErrDoctorUnavailable
	}
	return nil
}

func (s *AppointmentService) ensureAvailable(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMins int, excludeID *uuid.UUID) error {
	ok, err := s.checker.IsAvailable(ctx, doctorID, start, durationMins, excludeID)
	if err != nil {
		s.log.Error("availability check failed", zap.Error(err))
		return fmt.Errorf("checking conflicts: %w", err)
	}
	if !ok {
		s.countConflict()
		return appointment.ErrAppointmentConflict
	}
	return nil
}

func (s *AppointmentService) countConflict() {
	if s.metrics != nil {
		s.metrics.SchedulingConflicts.Inc()
	}
}

func validateCreateAppointment(cmd *appointment.CreateAppointmentCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.DoctorID == uuid.Nil {
		errs = append(errs, "doctor_id is required")
	}
	if cmd.ScheduledAt.IsZero() {
		errs = append(errs, "scheduled_at is required")
	}
	if cmd.DurationMins < appointment.MinDurationMins || cmd.DurationMins > appointment.MaxDurationMins {
		errs = append(errs, appointment.ErrInvalidDuration.Error())
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		errs = append(errs, "reason is required")
	}
	if !cmd.Type.IsValid() {
		errs = append(errs, appointment.ErrInvalidAppointmentType.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
