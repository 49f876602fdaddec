package v1

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	mr "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/treatment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondServiceError is the single place service and domain errors become
// HTTP statuses. Unknown errors are recorded on the gin context for the
// access log and answered with a generic 500.
func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	var violation *domain.RuleViolation
	if errors.As(err, &violation) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: violation.Error(),
			Code:  "RULE_VIOLATION",
			Details: map[string]string{
				"entity":    violation.Entity,
				"operation": violation.Operation,
				"from":      violation.From,
			},
		})
		return
	}

	switch {
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, treatment.ErrTreatmentNotFound),
		errors.Is(err, mr.ErrRecordNotFound),
		errors.Is(err, mr.ErrNoEntries),
		errors.Is(err, prescription.ErrPrescriptionNotFound),
		errors.Is(err, prescription.ErrMedicationNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, appointment.ErrAppointmentConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "SCHEDULING_CONFLICT"})

	case errors.Is(err, patient.ErrPatientAlreadyExists),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, mr.ErrRecordExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrRuleViolation),
		errors.Is(err, appointment.ErrInvalidStatusTransition),
		errors.Is(err, appointment.ErrAlreadyCancelled),
		errors.Is(err, appointment.ErrScheduledInPast),
		errors.Is(err, appointment.ErrDoctorUnavailable),
		errors.Is(err, appointment.ErrPatientInactive),
		errors.Is(err, treatment.ErrInvalidStatusTransition),
		errors.Is(err, treatment.ErrAlreadyCompleted),
		errors.Is(err, treatment.ErrNotActive),
		errors.Is(err, patient.ErrAlreadyActive),
		errors.Is(err, patient.ErrAlreadyInactive),
		errors.Is(err, prescription.ErrNotActive),
		errors.Is(err, prescription.ErrPrescriptionExpired),
		errors.Is(err, prescription.ErrAlreadyFulfilled),
		errors.Is(err, prescription.ErrAlreadyCancelled),
		errors.Is(err, prescription.ErrInvalidRenewalDate),
		errors.Is(err, prescription.ErrNoMedications):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})

	case errors.Is(err, appointment.ErrInvalidDuration),
		errors.Is(err, appointment.ErrInvalidAppointmentType),
		errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, patient.ErrInvalidGender),
		errors.Is(err, patient.ErrInvalidBloodType),
		errors.Is(err, patient.ErrInvalidDateOfBirth),
		errors.Is(err, patient.ErrInvalidAllergyOperation),
		errors.Is(err, treatment.ErrInvalidType),
		errors.Is(err, treatment.ErrEndBeforeStart),
		errors.Is(err, prescription.ErrInvalidExpiration),
		errors.Is(err, mr.ErrInvalidEntryType),
		errors.Is(err, mr.ErrEntryDescription),
		errors.Is(err, service.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})

	case errors.Is(err, service.ErrAccountInactive):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "account is inactive", Code: "ACCOUNT_INACTIVE"})

	case errors.Is(err, service.ErrAccountLocked):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "account temporarily locked",
			Code:  "ACCOUNT_LOCKED",
		})

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

// callerOf returns the authenticated principal. Routes using it are always
// mounted behind middleware.Authenticate.
func callerOf(c *gin.Context) (service.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
	}
	return caller, ok
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

func queryUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + key + ": must be a valid UUID"})
		return nil, false
	}
	return &id, true
}

// queryTime accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + key + ": expected RFC 3339 or YYYY-MM-DD"})
	return nil, false
}

func queryBool(c *gin.Context, key string) (*bool, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + key + ": must be true or false"})
		return nil, false
	}
	return &v, true
}

func queryString[T ~string](c *gin.Context, key string) *T {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v := T(raw)
	return &v
}

// bindOptionalJSON accepts an empty body for endpoints whose payload is optional.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, obj)
}
