package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	mr "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/treatment"
)

// Every mock stores and returns copies so a service mutating an entity it
// never saved cannot leak into the repository.

var errStore = errors.New("store unavailable")

// ---------------------------------------------------------------------------
// audit
// ---------------------------------------------------------------------------

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (m *mockAuditRepo) Create(_ context.Context, e *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) snapshot() []*domain.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuditLog(nil), m.entries...)
}

type auditHarness struct {
	svc  *AuditService
	repo *mockAuditRepo
	once sync.Once
}

// flush stops the worker and returns everything it persisted.
func (h *auditHarness) flush() []*domain.AuditLog {
	h.once.Do(h.svc.Shutdown)
	return h.repo.snapshot()
}

func newTestAudit(t *testing.T) *auditHarness {
	t.Helper()
	repo := &mockAuditRepo{}
	h := &auditHarness{svc: NewAuditService(repo, nil, zap.NewNop()), repo: repo}
	t.Cleanup(func() { h.once.Do(h.svc.Shutdown) })
	return h
}

// ---------------------------------------------------------------------------
// users
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
	// attempts records UpdateLoginAttempt calls in order.
	attempts []bool
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[uuid.UUID]domain.User)}
	for _, u := range users {
		m.users[u.ID] = *u
	}
	return m
}

func (m *mockUserRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) List(_ context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		if q.Role != nil && u.Role != *q.Role {
			continue
		}
		cp := u
		out = append(out, &cp)
	}
	return &domain.PagedUsers{Users: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockUserRepo) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[u.ID] = *u
	return nil
}

func (m *mockUserRepo) UpdateLoginAttempt(_ context.Context, id uuid.UUID, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, success)
	u := m.users[id]
	if success {
		u.FailedLoginCount = 0
		u.LockedUntil = nil
	} else {
		u.FailedLoginCount++
	}
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

// ---------------------------------------------------------------------------
// patients
// ---------------------------------------------------------------------------

type mockPatientRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]patient.Patient
}

func newMockPatientRepo(patients ...*patient.Patient) *mockPatientRepo {
	m := &mockPatientRepo{patients: make(map[uuid.UUID]patient.Patient)}
	for _, p := range patients {
		m.patients[p.ID] = *p
	}
	return m
}

func (m *mockPatientRepo) Create(_ context.Context, p *patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = *p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return &p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; !ok {
		return patient.ErrPatientNotFound
	}
	m.patients[p.ID] = *p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*patient.Patient
	for _, p := range m.patients {
		cp := p
		out = append(out, &cp)
	}
	return &patient.PagedPatients{Patients: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockPatientRepo) ExistsByMedicalIdentifier(_ context.Context, medicalID string, excludeID *uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.patients {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if p.MedicalIdentifier == medicalID {
			return true, nil
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// appointments
// ---------------------------------------------------------------------------

type mockAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]appointment.Appointment
	occupancyErr error
	// occupancyCalls counts FindOccupyingAppointments invocations.
	occupancyCalls int
}

func newMockAppointmentRepo(appts ...*appointment.Appointment) *mockAppointmentRepo {
	m := &mockAppointmentRepo{appointments: make(map[uuid.UUID]appointment.Appointment)}
	for _, a := range appts {
		m.appointments[a.ID] = *a
	}
	return m
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[a.ID] = *a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *mockAppointmentRepo) List(_ context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*appointment.Appointment
	for _, a := range m.appointments {
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		cp := a
		out = append(out, &cp)
	}
	return &appointment.PagedAppointments{Appointments: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[a.ID]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	m.appointments[a.ID] = *a
	return nil
}

func (m *mockAppointmentRepo) FindOccupyingAppointments(_ context.Context, doctorID uuid.UUID) ([]appointment.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.occupancyCalls++
	if m.occupancyErr != nil {
		return nil, m.occupancyErr
	}
	var out []appointment.Booking
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status.IsOccupying() {
			out = append(out, a.Booking())
		}
	}
	return out, nil
}

func (m *mockAppointmentRepo) stored(id uuid.UUID) appointment.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[id]
}

// ---------------------------------------------------------------------------
// treatments
// ---------------------------------------------------------------------------

type mockTreatmentRepo struct {
	mu         sync.Mutex
	treatments map[uuid.UUID]treatment.Treatment
}

func newMockTreatmentRepo(ts ...*treatment.Treatment) *mockTreatmentRepo {
	m := &mockTreatmentRepo{treatments: make(map[uuid.UUID]treatment.Treatment)}
	for _, t := range ts {
		m.treatments[t.ID] = *t
	}
	return m
}

func (m *mockTreatmentRepo) Create(_ context.Context, t *treatment.Treatment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.treatments[t.ID] = *t
	return nil
}

func (m *mockTreatmentRepo) GetByID(_ context.Context, id uuid.UUID) (*treatment.Treatment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.treatments[id]
	if !ok {
		return nil, treatment.ErrTreatmentNotFound
	}
	return &t, nil
}

func (m *mockTreatmentRepo) Update(_ context.Context, t *treatment.Treatment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.treatments[t.ID]; !ok {
		return treatment.ErrTreatmentNotFound
	}
	m.treatments[t.ID] = *t
	return nil
}

func (m *mockTreatmentRepo) List(_ context.Context, q *treatment.ListTreatmentsQuery) (*treatment.PagedTreatments, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*treatment.Treatment
	for _, t := range m.treatments {
		if q.PatientID != nil && t.PatientID != *q.PatientID {
			continue
		}
		cp := t
		out = append(out, &cp)
	}
	return &treatment.PagedTreatments{Treatments: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockTreatmentRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*treatment.Treatment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*treatment.Treatment
	for _, t := range m.treatments {
		if t.PatientID == patientID && t.IsActive() {
			cp := t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// prescriptions
// ---------------------------------------------------------------------------

type mockPrescriptionRepo struct {
	mu            sync.Mutex
	prescriptions map[uuid.UUID]prescription.Prescription
}

func newMockPrescriptionRepo(ps ...*prescription.Prescription) *mockPrescriptionRepo {
	m := &mockPrescriptionRepo{prescriptions: make(map[uuid.UUID]prescription.Prescription)}
	for _, p := range ps {
		m.prescriptions[p.ID] = clonePrescription(*p)
	}
	return m
}

func clonePrescription(p prescription.Prescription) prescription.Prescription {
	p.Medications = append([]prescription.Medication(nil), p.Medications...)
	return p
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *prescription.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prescriptions[p.ID] = clonePrescription(*p)
	return nil
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, prescription.ErrPrescriptionNotFound
	}
	cp := clonePrescription(p)
	return &cp, nil
}

func (m *mockPrescriptionRepo) Update(_ context.Context, p *prescription.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prescriptions[p.ID]; !ok {
		return prescription.ErrPrescriptionNotFound
	}
	m.prescriptions[p.ID] = clonePrescription(*p)
	return nil
}

func (m *mockPrescriptionRepo) List(_ context.Context, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*prescription.Prescription
	for _, p := range m.prescriptions {
		if q.PatientID != nil && p.PatientID != *q.PatientID {
			continue
		}
		cp := clonePrescription(p)
		out = append(out, &cp)
	}
	return &prescription.PagedPrescriptions{Prescriptions: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize}, nil
}

// ---------------------------------------------------------------------------
// medical records
// ---------------------------------------------------------------------------

type mockRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]mr.MedicalRecord
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[uuid.UUID]mr.MedicalRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *mr.MedicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.PatientID == r.PatientID {
			return mr.ErrRecordExists
		}
	}
	m.records[r.ID] = *r
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, mr.ErrRecordNotFound
	}
	r.Entries = append([]mr.Entry(nil), r.Entries...)
	return &r, nil
}

func (m *mockRecordRepo) GetByPatientID(ctx context.Context, patientID uuid.UUID) (*mr.MedicalRecord, error) {
	m.mu.Lock()
	var id uuid.UUID
	for rid, r := range m.records {
		if r.PatientID == patientID {
			id = rid
		}
	}
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *mockRecordRepo) AppendEntry(_ context.Context, recordID uuid.UUID, e mr.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return mr.ErrRecordNotFound
	}
	r.Entries = append(append([]mr.Entry(nil), r.Entries...), e)
	m.records[recordID] = r
	return nil
}

// ---------------------------------------------------------------------------
// callers
// ---------------------------------------------------------------------------

func staff(role domain.Role) Caller {
	return Caller{UserID: uuid.New(), Role: string(role), IP: "127.0.0.1", RequestID: "req-test"}
}

func patientCaller(patientID uuid.UUID) Caller {
	return Caller{UserID: uuid.New(), Role: string(domain.RolePatient), PatientID: &patientID, IP: "127.0.0.1"}
}
