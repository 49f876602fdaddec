package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

type AppointmentService interface {
	ScheduleAppointment(ctx context.Context, cmd *appointment.CreateAppointmentCommand, caller service.Caller) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID, caller service.Caller) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, q *appointment.ListAppointmentsQuery, caller service.Caller) (*appointment.PagedAppointments, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand, caller service.Caller) (*appointment.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID, caller service.Caller) (*appointment.Appointment, error)
	StartAppointment(ctx context.Context, id uuid.UUID, caller service.Caller) (*appointment.Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID, cmd *appointment.CompleteAppointmentCommand, caller service.Caller) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, cmd *appointment.CancelAppointmentCommand, caller service.Caller) (*appointment.Appointment, error)
	MarkMissed(ctx context.Context, id uuid.UUID, caller service.Caller) (*appointment.Appointment, error)
	CheckAvailability(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMins int) (*service.AvailabilityResult, error)
}

type AppointmentHandler struct {
	svc AppointmentService
}

func NewAppointmentHandler(svc AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type scheduleAppointmentRequest struct {
	PatientID    uuid.UUID                   `json:"patient_id" binding:"required"`
	DoctorID     uuid.UUID                   `json:"doctor_id" binding:"required"`
	ScheduledAt  time.Time                   `json:"scheduled_at" binding:"required"`
	DurationMins int                         `json:"duration_mins" binding:"required"`
	Type         appointment.AppointmentType `json:"type"`
	Reason       string                      `json:"reason" binding:"required"`
	Notes        string                      `json:"notes"`
	Room         string                      `json:"room"`
}

type updateAppointmentRequest struct {
	ScheduledAt  *time.Time                   `json:"scheduled_at"`
	DurationMins *int                         `json:"duration_mins"`
	Type         *appointment.AppointmentType `json:"type"`
	Reason       *string                      `json:"reason"`
	Notes        *string                      `json:"notes"`
	Room         *string                      `json:"room"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Schedule(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req scheduleAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.svc.ScheduleAppointment(c.Request.Context(), &appointment.CreateAppointmentCommand{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Type:         req.Type,
		Reason:       req.Reason,
		Notes:        req.Notes,
		Room:         req.Room,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.GetAppointment(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) List(c *gin.Context) {
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
	from, ok := queryTime(c, "date_from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "date_to")
	if !ok {
		return
	}
	page, err := h.svc.ListAppointments(c.Request.Context(), &appointment.ListAppointmentsQuery{
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    queryString[appointment.Status](c, "status"),
		Type:      queryString[appointment.AppointmentType](c, "type"),
		DateFrom:  from,
		DateTo:    to,
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *AppointmentHandler) Update(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.svc.UpdateAppointment(c.Request.Context(), id, &appointment.UpdateAppointmentCommand{
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Type:         req.Type,
		Reason:       req.Reason,
		Notes:        req.Notes,
		Room:         req.Room,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	h.transition(c, h.svc.ConfirmAppointment)
}

func (h *AppointmentHandler) Start(c *gin.Context) {
	h.transition(c, h.svc.StartAppointment)
}

func (h *AppointmentHandler) MarkMissed(c *gin.Context) {
	h.transition(c, h.svc.MarkMissed)
}

func (h *AppointmentHandler) Complete(c *gin.Context) {
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, id uuid.UUID, caller service.Caller) (*appointment.Appointment, error) {
		return h.svc.CompleteAppointment(ctx, id, &appointment.CompleteAppointmentCommand{Notes: req.Notes}, caller)
	})
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, id uuid.UUID, caller service.Caller) (*appointment.Appointment, error) {
		return h.svc.CancelAppointment(ctx, id, &appointment.CancelAppointmentCommand{Reason: req.Reason}, caller)
	})
}

func (h *AppointmentHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID, service.Caller) (*appointment.Appointment, error)) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := fn(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

// Availability answers GET /appointments/availability?doctor_id=&start=&duration_mins=.
func (h *AppointmentHandler) Availability(c *gin.Context) {
	doctorID, ok := queryUUID(c, "doctor_id")
	if !ok {
		return
	}
	start, ok := queryTime(c, "start")
	if !ok {
		return
	}
	if doctorID == nil || start == nil {
		respondError(c, http.StatusBadRequest, "doctor_id and start are required")
		return
	}
	res, err := h.svc.CheckAvailability(c.Request.Context(), *doctorID, *start, parseQueryInt(c, "duration_mins", 30))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, res)
}
