package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

type PatientService interface {
	CreatePatient(ctx context.Context, cmd *patient.CreatePatientCommand, caller service.Caller) (*patient.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID, caller service.Caller) (*patient.Patient, error)
	ListPatients(ctx context.Context, q *patient.ListPatientsQuery, caller service.Caller) (*patient.PagedPatients, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand, caller service.Caller) (*patient.Patient, error)
	UpdateContactInfo(ctx context.Context, id uuid.UUID, ci patient.ContactInfo, caller service.Caller) (*patient.Patient, error)
	UpdateAllergies(ctx context.Context, id uuid.UUID, op patient.AllergyOperation, allergies []string, caller service.Caller) (*patient.Patient, error)
	DeactivatePatient(ctx context.Context, id uuid.UUID, caller service.Caller) (*patient.Patient, error)
	ActivatePatient(ctx context.Context, id uuid.UUID, caller service.Caller) (*patient.Patient, error)
}

type PatientHandler struct {
	svc PatientService
}

func NewPatientHandler(svc PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type createPatientRequest struct {
	FirstName         string              `json:"first_name" binding:"required"`
	LastName          string              `json:"last_name" binding:"required"`
	DateOfBirth       time.Time           `json:"date_of_birth" binding:"required"`
	Gender            patient.Gender      `json:"gender" binding:"required"`
	BloodType         patient.BloodType   `json:"blood_type"`
	MedicalIdentifier string              `json:"medical_identifier" binding:"required"`
	ContactInfo       patient.ContactInfo `json:"contact_info"`
	Allergies         []string            `json:"allergies"`
}

type updatePatientRequest struct {
	FirstName   *string            `json:"first_name"`
	LastName    *string            `json:"last_name"`
	DateOfBirth *time.Time         `json:"date_of_birth"`
	Gender      *patient.Gender    `json:"gender"`
	BloodType   *patient.BloodType `json:"blood_type"`
}

type updateAllergiesRequest struct {
	Operation patient.AllergyOperation `json:"operation" binding:"required"`
	Allergies []string                 `json:"allergies"`
}

func (h *PatientHandler) Create(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.CreatePatient(c.Request.Context(), &patient.CreatePatientCommand{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DateOfBirth:       req.DateOfBirth,
		Gender:            req.Gender,
		BloodType:         req.BloodType,
		MedicalIdentifier: req.MedicalIdentifier,
		ContactInfo:       req.ContactInfo,
		Allergies:         req.Allergies,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *PatientHandler) Get(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPatient(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) List(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	page, err := h.svc.ListPatients(c.Request.Context(), &patient.ListPatientsQuery{
		FirstName:         c.Query("first_name"),
		LastName:          c.Query("last_name"),
		MedicalIdentifier: c.Query("medical_identifier"),
		Email:             c.Query("email"),
		Active:            active,
		Page:              parseQueryInt(c, "page", 1),
		PageSize:          parseQueryInt(c, "page_size", 20),
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *PatientHandler) Update(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.UpdatePatient(c.Request.Context(), id, &patient.UpdatePatientCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		BloodType:   req.BloodType,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) UpdateContactInfo(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req patient.ContactInfo
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.UpdateContactInfo(c.Request.Context(), id, req, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) UpdateAllergies(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateAllergiesRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.UpdateAllergies(c.Request.Context(), id, req.Operation, req.Allergies, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) Deactivate(c *gin.Context) {
	h.toggle(c, h.svc.DeactivatePatient)
}

func (h *PatientHandler) Activate(c *gin.Context) {
	h.toggle(c, h.svc.ActivatePatient)
}

func (h *PatientHandler) toggle(c *gin.Context, fn func(context.Context, uuid.UUID, service.Caller) (*patient.Patient, error)) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := fn(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}
