package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	mr "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

type MedicalRecordService interface {
	OpenRecord(ctx context.Context, patientID uuid.UUID, caller service.Caller) (*mr.MedicalRecord, error)
	GetRecord(ctx context.Context, id uuid.UUID, caller service.Caller) (*mr.MedicalRecord, error)
	GetRecordByPatient(ctx context.Context, patientID uuid.UUID, caller service.Caller) (*mr.MedicalRecord, error)
	AddEntry(ctx context.Context, cmd *mr.AddEntryCommand, caller service.Caller) (*mr.Entry, error)
	ListEntries(ctx context.Context, recordID uuid.UUID, f mr.EntryFilter, caller service.Caller) ([]mr.Entry, error)
	LatestEntry(ctx context.Context, recordID uuid.UUID, caller service.Caller) (*mr.Entry, error)
}

type MedicalRecordHandler struct {
	svc MedicalRecordService
}

func NewMedicalRecordHandler(svc MedicalRecordService) *MedicalRecordHandler {
	return &MedicalRecordHandler{svc: svc}
}

type openRecordRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
}

type addEntryRequest struct {
	Type            mr.EntryType    `json:"type" binding:"required"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description" binding:"required"`
	Diagnosis       string          `json:"diagnosis"`
	PrescriptionIDs []uuid.UUID     `json:"prescription_ids"`
	TreatmentIDs    []uuid.UUID     `json:"treatment_ids"`
	Attachments     []mr.Attachment `json:"attachments"`
	VitalSigns      *mr.VitalSigns  `json:"vital_signs"`
}

func (h *MedicalRecordHandler) Open(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req openRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.svc.OpenRecord(c.Request.Context(), req.PatientID, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rec)
}

func (h *MedicalRecordHandler) Get(c *gin.Context) {
	h.record(c, "id", h.svc.GetRecord)
}

func (h *MedicalRecordHandler) GetByPatient(c *gin.Context) {
	h.record(c, "patient_id", h.svc.GetRecordByPatient)
}

func (h *MedicalRecordHandler) record(c *gin.Context, param string, fn func(context.Context, uuid.UUID, service.Caller) (*mr.MedicalRecord, error)) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, param)
	if !ok {
		return
	}
	rec, err := fn(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rec)
}

func (h *MedicalRecordHandler) AddEntry(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req addEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	doctorID := req.DoctorID
	if doctorID == uuid.Nil && caller.HasRole(domain.RoleDoctor) {
		doctorID = caller.UserID
	}
	entry, err := h.svc.AddEntry(c.Request.Context(), &mr.AddEntryCommand{
		RecordID:        id,
		Type:            req.Type,
		DoctorID:        doctorID,
		Date:            req.Date,
		Description:     req.Description,
		Diagnosis:       req.Diagnosis,
		PrescriptionIDs: req.PrescriptionIDs,
		TreatmentIDs:    req.TreatmentIDs,
		Attachments:     req.Attachments,
		VitalSigns:      req.VitalSigns,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, entry)
}

func (h *MedicalRecordHandler) ListEntries(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	doctorID, ok := queryUUID(c, "doctor_id")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}
	entries, err := h.svc.ListEntries(c.Request.Context(), id, mr.EntryFilter{
		Type:     queryString[mr.EntryType](c, "type"),
		DoctorID: doctorID,
		From:     from,
		To:       to,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, entries)
}

func (h *MedicalRecordHandler) LatestEntry(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.svc.LatestEntry(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, entry)
}
