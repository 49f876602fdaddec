package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

type PrescriptionService interface {
	CreatePrescription(ctx context.Context, cmd *prescription.CreatePrescriptionCommand, caller service.Caller) (*prescription.Prescription, error)
	GetPrescription(ctx context.Context, id uuid.UUID, caller service.Caller) (*prescription.Prescription, error)
	ListPrescriptions(ctx context.Context, q *prescription.ListPrescriptionsQuery, caller service.Caller) (*prescription.PagedPrescriptions, error)
	AddMedication(ctx context.Context, id uuid.UUID, m prescription.Medication, caller service.Caller) (*prescription.Prescription, error)
	RemoveMedication(ctx context.Context, id, medicationID uuid.UUID, caller service.Caller) (*prescription.Prescription, error)
	FulfillPrescription(ctx context.Context, id uuid.UUID, caller service.Caller) (*prescription.Prescription, error)
	CancelPrescription(ctx context.Context, id uuid.UUID, reason string, caller service.Caller) (*prescription.Prescription, error)
	RenewPrescription(ctx context.Context, id uuid.UUID, newExpiration time.Time, caller service.Caller) (*prescription.Prescription, error)
}

type PrescriptionHandler struct {
	svc PrescriptionService
}

func NewPrescriptionHandler(svc PrescriptionService) *PrescriptionHandler {
	return &PrescriptionHandler{svc: svc}
}

type medicationRequest struct {
	Name         string `json:"name" binding:"required"`
	Dosage       string `json:"dosage" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
	Quantity     int    `json:"quantity"`
	IsControlled bool   `json:"is_controlled"`
}

func (r medicationRequest) toMedication() prescription.Medication {
	return prescription.Medication{
		Name:         r.Name,
		Dosage:       r.Dosage,
		Frequency:    r.Frequency,
		Duration:     r.Duration,
		Instructions: r.Instructions,
		Quantity:     r.Quantity,
		IsControlled: r.IsControlled,
	}
}

type createPrescriptionRequest struct {
	PatientID      uuid.UUID           `json:"patient_id" binding:"required"`
	DoctorID       uuid.UUID           `json:"doctor_id" binding:"required"`
	AppointmentID  *uuid.UUID          `json:"appointment_id"`
	Medications    []medicationRequest `json:"medications" binding:"required,min=1,dive"`
	IssueDate      time.Time           `json:"issue_date"`
	ExpirationDate time.Time           `json:"expiration_date" binding:"required"`
	Notes          string              `json:"notes"`
}

type renewPrescriptionRequest struct {
	ExpirationDate time.Time `json:"expiration_date" binding:"required"`
}

func (h *PrescriptionHandler) Create(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req createPrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	meds := make([]prescription.Medication, 0, len(req.Medications))
	for _, m := range req.Medications {
		meds = append(meds, m.toMedication())
	}
	rx, err := h.svc.CreatePrescription(c.Request.Context(), &prescription.CreatePrescriptionCommand{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		AppointmentID:  req.AppointmentID,
		Medications:    meds,
		IssueDate:      req.IssueDate,
		ExpirationDate: req.ExpirationDate,
		Notes:          req.Notes,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rx)
}

func (h *PrescriptionHandler) Get(c *gin.Context) {
	h.byID(c, h.svc.GetPrescription)
}

func (h *PrescriptionHandler) List(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	patientID, ok := queryUUID(c, "patient_id")
	if !ok {
		return
	}
	doctorID, ok := queryUUID(c, "doctor_id")
	if !ok {
		return
	}
	validAt, ok := queryTime(c, "valid_at")
	if !ok {
		return
	}
	page, err := h.svc.ListPrescriptions(c.Request.Context(), &prescription.ListPrescriptionsQuery{
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    queryString[prescription.Status](c, "status"),
		ValidAt:   validAt,
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *PrescriptionHandler) AddMedication(c *gin.Context) {
	var req medicationRequest
	if !bindJSON(c, &req) {
		return
	}
	h.byID(c, func(ctx context.Context, id uuid.UUID, caller service.Caller) (*prescription.Prescription, error) {
		return h.svc.AddMedication(ctx, id, req.toMedication(), caller)
	})
}

func (h *PrescriptionHandler) RemoveMedication(c *gin.Context) {
	medicationID, ok := parseUUID(c, "medication_id")
	if !ok {
		return
	}
	h.byID(c, func(ctx context.Context, id uuid.UUID, caller service.Caller) (*prescription.Prescription, error) {
		return h.svc.RemoveMedication(ctx, id, medicationID, caller)
	})
}

func (h *PrescriptionHandler) Fulfill(c *gin.Context) {
	h.byID(c, h.svc.FulfillPrescription)
}

func (h *PrescriptionHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.byID(c, func(ctx context.Context, id uuid.UUID, caller service.Caller) (*prescription.Prescription, error) {
		return h.svc.CancelPrescription(ctx, id, req.Reason, caller)
	})
}

func (h *PrescriptionHandler) Renew(c *gin.Context) {
	var req renewPrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	h.byID(c, func(ctx context.Context, id uuid.UUID, caller service.Caller) (*prescription.Prescription, error) {
		return h.svc.RenewPrescription(ctx, id, req.ExpirationDate, caller)
	})
}

func (h *PrescriptionHandler) byID(c *gin.Context, fn func(context.Context, uuid.UUID, service.Caller) (*prescription.Prescription, error)) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	rx, err := fn(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rx)
}
