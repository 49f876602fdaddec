package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/treatment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

type TreatmentService interface {
	CreateTreatment(ctx context.Context, cmd *treatment.CreateTreatmentCommand, caller service.Caller) (*treatment.Treatment, error)
	GetTreatment(ctx context.Context, id uuid.UUID, caller service.Caller) (*treatment.Treatment, error)
	ListTreatments(ctx context.Context, q *treatment.ListTreatmentsQuery, caller service.Caller) (*treatment.PagedTreatments, error)
	ActiveForPatient(ctx context.Context, patientID uuid.UUID, caller service.Caller) ([]*treatment.Treatment, error)
	UpdateTreatment(ctx context.Context, id uuid.UUID, cmd *treatment.UpdateTreatmentCommand, caller service.Caller) (*treatment.Treatment, error)
	CompleteTreatment(ctx context.Context, id uuid.UUID, notes string, caller service.Caller) (*treatment.Treatment, error)
	CancelTreatment(ctx context.Context, id uuid.UUID, reason string, caller service.Caller) (*treatment.Treatment, error)
	ReactivateTreatment(ctx context.Context, id uuid.UUID, notes string, caller service.Caller) (*treatment.Treatment, error)
}

type TreatmentHandler struct {
	svc TreatmentService
}

func NewTreatmentHandler(svc TreatmentService) *TreatmentHandler {
	return &TreatmentHandler{svc: svc}
}

type createTreatmentRequest struct {
	PatientID    uuid.UUID      `json:"patient_id" binding:"required"`
	DoctorID     uuid.UUID      `json:"doctor_id" binding:"required"`
	Name         string         `json:"name" binding:"required"`
	Description  string         `json:"description"`
	Type         treatment.Type `json:"type" binding:"required"`
	Instructions string         `json:"instructions"`
	StartDate    time.Time      `json:"start_date" binding:"required"`
	EndDate      *time.Time     `json:"end_date"`
	Notes        string         `json:"notes"`
}

type updateTreatmentRequest struct {
	Name         *string         `json:"name"`
	Description  *string         `json:"description"`
	Type         *treatment.Type `json:"type"`
	Instructions *string         `json:"instructions"`
	StartDate    *time.Time      `json:"start_date"`
	EndDate      *time.Time      `json:"end_date"`
	ClearEndDate bool            `json:"clear_end_date"`
	Notes        *string         `json:"notes"`
}

func (h *TreatmentHandler) Create(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req createTreatmentRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.svc.CreateTreatment(c.Request.Context(), &treatment.CreateTreatmentCommand{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		Instructions: req.Instructions,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Notes:        req.Notes,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, t)
}

func (h *TreatmentHandler) Get(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.GetTreatment(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, t)
}

func (h *TreatmentHandler) List(c *gin.Context) {
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
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	from, ok := queryTime(c, "start_from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "start_to")
	if !ok {
		return
	}
	page, err := h.svc.ListTreatments(c.Request.Context(), &treatment.ListTreatmentsQuery{
		PatientID:     patientID,
		DoctorID:      doctorID,
		Status:        queryString[treatment.Status](c, "status"),
		Type:          queryString[treatment.Type](c, "type"),
		Active:        active,
		StartDateFrom: from,
		StartDateTo:   to,
		Page:          parseQueryInt(c, "page", 1),
		PageSize:      parseQueryInt(c, "page_size", 20),
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

// ActiveForPatient serves GET /patients/:id/treatments/active.
func (h *TreatmentHandler) ActiveForPatient(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	ts, err := h.svc.ActiveForPatient(c.Request.Context(), patientID, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ts)
}

func (h *TreatmentHandler) Update(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateTreatmentRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.svc.UpdateTreatment(c.Request.Context(), id, &treatment.UpdateTreatmentCommand{
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		Instructions: req.Instructions,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		ClearEndDate: req.ClearEndDate,
		Notes:        req.Notes,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, t)
}

func (h *TreatmentHandler) Complete(c *gin.Context) {
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, req.Notes, h.svc.CompleteTreatment)
}

func (h *TreatmentHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, req.Reason, h.svc.CancelTreatment)
}

func (h *TreatmentHandler) Reactivate(c *gin.Context) {
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, req.Notes, h.svc.ReactivateTreatment)
}

func (h *TreatmentHandler) transition(c *gin.Context, text string, fn func(context.Context, uuid.UUID, string, service.Caller) (*treatment.Treatment, error)) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	t, err := fn(c.Request.Context(), id, text, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, t)
}
