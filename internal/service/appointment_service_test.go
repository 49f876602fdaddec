package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

var clinicNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type appointmentFixture struct {
	svc       *AppointmentService
	repo      *mockAppointmentRepo
	audit     *auditHarness
	metrics   *metrics.Collector
	patientID uuid.UUID
	doctorID  uuid.UUID
}

func newAppointmentFixture(t *testing.T, existing ...*appointment.Appointment) *appointmentFixture {
	t.Helper()

	p := &patient.Patient{ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Status: patient.StatusActive}
	doctor := &domain.User{ID: uuid.New(), Email: "house@clinic.test", Role: domain.RoleDoctor, IsActive: true}
	nurse := &domain.User{ID: uuid.New(), Email: "nurse@clinic.test", Role: domain.RoleNurse, IsActive: true}

	repo := newMockAppointmentRepo(existing...)
	audit := newTestAudit(t)
	m := metrics.NewCollector("test", prometheus.NewRegistry())

	svc := NewAppointmentService(repo, newMockPatientRepo(p), newMockUserRepo(doctor, nurse), audit.svc, m, zap.NewNop())
	svc.now = func() time.Time { return clinicNow }

	return &appointmentFixture{
		svc:       svc,
		repo:      repo,
		audit:     audit,
		metrics:   m,
		patientID: p.ID,
		doctorID:  doctor.ID,
	}
}

func (f *appointmentFixture) command(start time.Time, durationMins int) *appointment.CreateAppointmentCommand {
	return &appointment.CreateAppointmentCommand{
		PatientID:    f.patientID,
		DoctorID:     f.doctorID,
		ScheduledAt:  start,
		DurationMins: durationMins,
		Reason:       "annual check",
	}
}

func booked(doctorID uuid.UUID, start time.Time, durationMins int, status appointment.Status) *appointment.Appointment {
	return &appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		DoctorID:     doctorID,
		ScheduledAt:  start,
		DurationMins: durationMins,
		Type:         appointment.TypeConsultation,
		Status:       status,
		Reason:       "existing",
	}
}

func TestScheduleAppointment(t *testing.T) {
	ctx := context.Background()
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("books a free slot", func(t *testing.T) {
		f := newAppointmentFixture(t)

		a, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 30), staff(domain.RoleReceptionist))
		if err != nil {
			t.Fatalf("ScheduleAppointment: unexpected error: %v", err)
		}
		if a.Status != appointment.StatusScheduled {
			t.Errorf("Status = %q, want %q", a.Status, appointment.StatusScheduled)
		}
		if a.Type != appointment.TypeConsultation {
			t.Errorf("Type = %q, want default %q", a.Type, appointment.TypeConsultation)
		}
		if got := f.repo.stored(a.ID); got.ID != a.ID {
			t.Errorf("appointment %s was not persisted", a.ID)
		}
		if got := testutil.ToFloat64(f.metrics.AppointmentsScheduled); got != 1 {
			t.Errorf("AppointmentsScheduled = %v, want 1", got)
		}

		entries := f.audit.flush()
		if len(entries) != 1 || entries[0].Action != domain.ActionCreate || entries[0].ResourceID != a.ID.String() {
			t.Errorf("audit entries = %+v, want one create for %s", entries, a.ID)
		}
	})

	t.Run("rejects an overlapping slot", func(t *testing.T) {
		f := newAppointmentFixture(t)
		existing := booked(f.doctorID, nine, 60, appointment.StatusConfirmed)
		f.repo.appointments[existing.ID] = *existing

		_, err := f.svc.ScheduleAppointment(ctx, f.command(nine.Add(30*time.Minute), 30), staff(domain.RoleReceptionist))
		if !errors.Is(err, appointment.ErrAppointmentConflict) {
			t.Fatalf("err = %v, want ErrAppointmentConflict", err)
		}
		if got := testutil.ToFloat64(f.metrics.SchedulingConflicts); got != 1 {
			t.Errorf("SchedulingConflicts = %v, want 1", got)
		}
		if len(f.repo.appointments) != 1 {
			t.Errorf("stored appointments = %d, want 1", len(f.repo.appointments))
		}
	})

	t.Run("touching endpoints do not conflict", func(t *testing.T) {
		f := newAppointmentFixture(t)
		existing := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		f.repo.appointments[existing.ID] = *existing

		if _, err := f.svc.ScheduleAppointment(ctx, f.command(nine.Add(30*time.Minute), 30), staff(domain.RoleAdmin)); err != nil {
			t.Fatalf("slot starting at previous end: unexpected error: %v", err)
		}
		if _, err := f.svc.ScheduleAppointment(ctx, f.command(nine.Add(-15*time.Minute), 15), staff(domain.RoleAdmin)); err != nil {
			t.Fatalf("slot ending at next start: unexpected error: %v", err)
		}
	})

	t.Run("released statuses free the slot", func(t *testing.T) {
		for _, status := range []appointment.Status{appointment.StatusCancelled, appointment.StatusMissed, appointment.StatusCompleted} {
			f := newAppointmentFixture(t)
			existing := booked(f.doctorID, nine, 60, status)
			f.repo.appointments[existing.ID] = *existing

			if _, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 60), staff(domain.RoleAdmin)); err != nil {
				t.Errorf("over %s booking: unexpected error: %v", status, err)
			}
		}
	})

	t.Run("another doctor's booking does not conflict", func(t *testing.T) {
		f := newAppointmentFixture(t)
		existing := booked(uuid.New(), nine, 60, appointment.StatusScheduled)
		f.repo.appointments[existing.ID] = *existing

		if _, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 60), staff(domain.RoleAdmin)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects a start in the past", func(t *testing.T) {
		f := newAppointmentFixture(t)
		_, err := f.svc.ScheduleAppointment(ctx, f.command(clinicNow.Add(-time.Minute), 30), staff(domain.RoleAdmin))
		if !errors.Is(err, appointment.ErrScheduledInPast) {
			t.Fatalf("err = %v, want ErrScheduledInPast", err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		f := newAppointmentFixture(t)
		cmd := f.command(nine, 2)
		cmd.Reason = "  "
		cmd.Type = "HOUSE_CALL"

		_, err := f.svc.ScheduleAppointment(ctx, cmd, staff(domain.RoleAdmin))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want *ValidationError", err)
		}
		if len(verr.Fields) != 3 {
			t.Errorf("Fields = %v, want 3 problems", verr.Fields)
		}
	})

	t.Run("rejects an inactive patient", func(t *testing.T) {
		f := newAppointmentFixture(t)
		pr := f.svc.patientRepo.(*mockPatientRepo)
		p := pr.patients[f.patientID]
		p.Status = patient.StatusInactive
		pr.patients[f.patientID] = p

		_, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 30), staff(domain.RoleAdmin))
		if !errors.Is(err, appointment.ErrPatientInactive) {
			t.Fatalf("err = %v, want ErrPatientInactive", err)
		}
	})

	t.Run("rejects a non-doctor or unknown doctor", func(t *testing.T) {
		f := newAppointmentFixture(t)
		users := f.svc.doctors.(*mockUserRepo)
		var nurseID uuid.UUID
		for id, u := range users.users {
			if u.Role == domain.RoleNurse {
				nurseID = id
			}
		}

		for _, doctorID := range []uuid.UUID{nurseID, uuid.New()} {
			cmd := f.command(nine, 30)
			cmd.DoctorID = doctorID
			_, err := f.svc.ScheduleAppointment(ctx, cmd, staff(domain.RoleAdmin))
			if !errors.Is(err, appointment.ErrDoctorUnavailable) {
				t.Errorf("doctor %s: err = %v, want ErrDoctorUnavailable", doctorID, err)
			}
		}
	})

	t.Run("patient may only book for themselves", func(t *testing.T) {
		f := newAppointmentFixture(t)

		if _, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 30), patientCaller(uuid.New())); !errors.Is(err, ErrForbidden) {
			t.Errorf("other patient: err = %v, want ErrForbidden", err)
		}
		if _, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 30), patientCaller(f.patientID)); err != nil {
			t.Errorf("own booking: unexpected error: %v", err)
		}
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		f := newAppointmentFixture(t)
		f.repo.occupancyErr = errStore

		_, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 30), staff(domain.RoleAdmin))
		if !errors.Is(err, errStore) {
			t.Fatalf("err = %v, want wrapped errStore", err)
		}
		if errors.Is(err, appointment.ErrAppointmentConflict) {
			t.Error("store failure must not be reported as a conflict")
		}
	})
}

func TestUpdateAppointment(t *testing.T) {
	ctx := context.Background()
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("extending over itself is not a conflict", func(t *testing.T) {
		f := newAppointmentFixture(t)
		own := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		f.repo.appointments[own.ID] = *own

		duration := 45
		a, err := f.svc.UpdateAppointment(ctx, own.ID, &appointment.UpdateAppointmentCommand{DurationMins: &duration}, staff(domain.RoleReceptionist))
		if err != nil {
			t.Fatalf("UpdateAppointment: unexpected error: %v", err)
		}
		if a.DurationMins != 45 {
			t.Errorf("DurationMins = %d, want 45", a.DurationMins)
		}
	})

	t.Run("moving onto another booking conflicts", func(t *testing.T) {
		f := newAppointmentFixture(t)
		own := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		other := booked(f.doctorID, nine.Add(time.Hour), 30, appointment.StatusInProgress)
		f.repo.appointments[own.ID] = *own
		f.repo.appointments[other.ID] = *other

		start := nine.Add(70 * time.Minute)
		_, err := f.svc.UpdateAppointment(ctx, own.ID, &appointment.UpdateAppointmentCommand{ScheduledAt: &start}, staff(domain.RoleAdmin))
		if !errors.Is(err, appointment.ErrAppointmentConflict) {
			t.Fatalf("err = %v, want ErrAppointmentConflict", err)
		}
		if got := f.repo.stored(own.ID); !got.ScheduledAt.Equal(nine) {
			t.Errorf("stored ScheduledAt = %v, want unchanged %v", got.ScheduledAt, nine)
		}
	})

	t.Run("detail-only edit skips the availability check", func(t *testing.T) {
		f := newAppointmentFixture(t)
		own := booked(f.doctorID, nine, 30, appointment.StatusConfirmed)
		f.repo.appointments[own.ID] = *own

		room := " B-12 "
		a, err := f.svc.UpdateAppointment(ctx, own.ID, &appointment.UpdateAppointmentCommand{Room: &room}, staff(domain.RoleAdmin))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Room != "B-12" {
			t.Errorf("Room = %q, want %q", a.Room, "B-12")
		}
		if f.repo.occupancyCalls != 0 {
			t.Errorf("occupancy lookups = %d, want 0", f.repo.occupancyCalls)
		}
	})

	t.Run("terminal appointments cannot be rescheduled", func(t *testing.T) {
		f := newAppointmentFixture(t)
		done := booked(f.doctorID, nine, 30, appointment.StatusCompleted)
		f.repo.appointments[done.ID] = *done

		start := nine.Add(2 * time.Hour)
		_, err := f.svc.UpdateAppointment(ctx, done.ID, &appointment.UpdateAppointmentCommand{ScheduledAt: &start}, staff(domain.RoleAdmin))
		if !errors.Is(err, domain.ErrRuleViolation) {
			t.Fatalf("err = %v, want rule violation", err)
		}
	})

	t.Run("patients cannot edit", func(t *testing.T) {
		f := newAppointmentFixture(t)
		own := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		own.PatientID = f.patientID
		f.repo.appointments[own.ID] = *own

		notes := "x"
		_, err := f.svc.UpdateAppointment(ctx, own.ID, &appointment.UpdateAppointmentCommand{Notes: &notes}, patientCaller(f.patientID))
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestAppointmentTransitions(t *testing.T) {
	ctx := context.Background()
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("full visit lifecycle", func(t *testing.T) {
		f := newAppointmentFixture(t)
		a := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		f.repo.appointments[a.ID] = *a
		doctor := staff(domain.RoleDoctor)

		if _, err := f.svc.ConfirmAppointment(ctx, a.ID, doctor); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if _, err := f.svc.StartAppointment(ctx, a.ID, doctor); err != nil {
			t.Fatalf("Start: %v", err)
		}
		got, err := f.svc.CompleteAppointment(ctx, a.ID, &appointment.CompleteAppointmentCommand{Notes: "all good"}, doctor)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if got.Status != appointment.StatusCompleted || got.CompletedAt == nil {
			t.Errorf("Status = %q CompletedAt = %v, want COMPLETED with timestamp", got.Status, got.CompletedAt)
		}
		if !strings.Contains(got.Notes, "all good") {
			t.Errorf("Notes = %q, want completion notes", got.Notes)
		}

		entries := f.audit.flush()
		if len(entries) != 3 {
			t.Fatalf("audit entries = %d, want 3", len(entries))
		}
		if c := entries[2].Changes; c == nil || !strings.Contains(*c, `"to":"COMPLETED"`) {
			t.Errorf("last audit changes = %v, want transition to COMPLETED", c)
		}
	})

	t.Run("invalid transition leaves the store untouched", func(t *testing.T) {
		f := newAppointmentFixture(t)
		a := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		f.repo.appointments[a.ID] = *a

		_, err := f.svc.CompleteAppointment(ctx, a.ID, &appointment.CompleteAppointmentCommand{}, staff(domain.RoleDoctor))
		var rv *domain.RuleViolation
		if !errors.As(err, &rv) {
			t.Fatalf("err = %v, want *domain.RuleViolation", err)
		}
		if rv.From != string(appointment.StatusScheduled) {
			t.Errorf("From = %q, want SCHEDULED", rv.From)
		}
		if got := f.repo.stored(a.ID).Status; got != appointment.StatusScheduled {
			t.Errorf("stored Status = %q, want SCHEDULED", got)
		}
		if got := testutil.ToFloat64(f.metrics.AppointmentTransitions.WithLabelValues("complete", "rejected")); got != 1 {
			t.Errorf("rejected completes = %v, want 1", got)
		}
	})

	t.Run("cancelling twice is refused", func(t *testing.T) {
		f := newAppointmentFixture(t)
		a := booked(f.doctorID, nine, 30, appointment.StatusConfirmed)
		f.repo.appointments[a.ID] = *a
		cmd := &appointment.CancelAppointmentCommand{Reason: "patient request"}

		got, err := f.svc.CancelAppointment(ctx, a.ID, cmd, staff(domain.RoleReceptionist))
		if err != nil {
			t.Fatalf("first cancel: %v", err)
		}
		if got.CancellationReason != "patient request" || got.CancelledBy == nil {
			t.Errorf("cancellation details not recorded: %+v", got)
		}

		if _, err := f.svc.CancelAppointment(ctx, a.ID, cmd, staff(domain.RoleReceptionist)); !errors.Is(err, appointment.ErrAlreadyCancelled) {
			t.Errorf("second cancel: err = %v, want ErrAlreadyCancelled", err)
		}
	})

	t.Run("cancelled slot can be rebooked", func(t *testing.T) {
		f := newAppointmentFixture(t)
		a := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		f.repo.appointments[a.ID] = *a

		if _, err := f.svc.CancelAppointment(ctx, a.ID, &appointment.CancelAppointmentCommand{}, staff(domain.RoleAdmin)); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, err := f.svc.ScheduleAppointment(ctx, f.command(nine, 30), staff(domain.RoleAdmin)); err != nil {
			t.Fatalf("rebook: unexpected error: %v", err)
		}
	})

	t.Run("patients cancel only their own", func(t *testing.T) {
		f := newAppointmentFixture(t)
		a := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
		a.PatientID = f.patientID
		f.repo.appointments[a.ID] = *a

		if _, err := f.svc.CancelAppointment(ctx, a.ID, &appointment.CancelAppointmentCommand{}, patientCaller(uuid.New())); !errors.Is(err, ErrForbidden) {
			t.Errorf("foreign cancel: err = %v, want ErrForbidden", err)
		}
		if _, err := f.svc.CancelAppointment(ctx, a.ID, &appointment.CancelAppointmentCommand{}, patientCaller(f.patientID)); err != nil {
			t.Errorf("own cancel: unexpected error: %v", err)
		}
	})

	t.Run("receptionists cannot start a visit", func(t *testing.T) {
		f := newAppointmentFixture(t)
		a := booked(f.doctorID, nine, 30, appointment.StatusConfirmed)
		f.repo.appointments[a.ID] = *a

		if _, err := f.svc.StartAppointment(ctx, a.ID, staff(domain.RoleReceptionist)); !errors.Is(err, ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("missing appointment", func(t *testing.T) {
		f := newAppointmentFixture(t)
		if _, err := f.svc.MarkMissed(ctx, uuid.New(), staff(domain.RoleAdmin)); !errors.Is(err, appointment.ErrAppointmentNotFound) {
			t.Errorf("err = %v, want ErrAppointmentNotFound", err)
		}
	})
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newAppointmentFixture(t)
	existing := booked(f.doctorID, nine, 60, appointment.StatusScheduled)
	f.repo.appointments[existing.ID] = *existing

	tests := []struct {
		name      string
		start     time.Time
		duration  int
		available bool
	}{
		{"inside", nine.Add(15 * time.Minute), 15, false},
		{"straddling start", nine.Add(-30 * time.Minute), 45, false},
		{"after end", nine.Add(time.Hour), 30, true},
		{"before start", nine.Add(-30 * time.Minute), 30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.CheckAvailability(ctx, f.doctorID, tt.start, tt.duration)
			if err != nil {
				t.Fatalf("CheckAvailability: %v", err)
			}
			if res.Available != tt.available {
				t.Errorf("Available = %v, want %v", res.Available, tt.available)
			}
			if !tt.available && (len(res.Conflicts) != 1 || res.Conflicts[0].ID != existing.ID) {
				t.Errorf("Conflicts = %+v, want the existing booking", res.Conflicts)
			}
		})
	}

	if _, err := f.svc.CheckAvailability(ctx, f.doctorID, nine, 0); err == nil {
		t.Error("zero duration: expected validation error")
	}
}

func TestListAppointmentsScopesPatients(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newAppointmentFixture(t)
	mine := booked(f.doctorID, nine, 30, appointment.StatusScheduled)
	mine.PatientID = f.patientID
	theirs := booked(f.doctorID, nine.Add(time.Hour), 30, appointment.StatusScheduled)
	f.repo.appointments[mine.ID] = *mine
	f.repo.appointments[theirs.ID] = *theirs

	other := uuid.New()
	q := &appointment.ListAppointmentsQuery{PatientID: &other, PageSize: 500}
	res, err := f.svc.ListAppointments(context.Background(), q, patientCaller(f.patientID))
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(res.Appointments) != 1 || res.Appointments[0].ID != mine.ID {
		t.Errorf("Appointments = %+v, want only the caller's own", res.Appointments)
	}
	if res.PageSize != 20 || res.Page != 1 {
		t.Errorf("paging = %d/%d, want 1/20", res.Page, res.PageSize)
	}
}
