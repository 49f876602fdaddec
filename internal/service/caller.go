package service

import (
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
)

// Caller identifies the authenticated principal behind a service call.
type Caller struct {
	UserID    uuid.UUID
	Role      string
	PatientID *uuid.UUID
	IP        string
	RequestID string
}

func (c Caller) HasRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if c.Role == string(r) {
			return true
		}
	}
	return false
}

func (c Caller) IsPatient() bool {
	return c.Role == string(domain.RolePatient)
}

// CanAccessPatient is false only for patient callers looking at someone else.
func (c Caller) CanAccessPatient(patientID uuid.UUID) bool {
	if !c.IsPatient() {
		return true
	}
	return c.PatientID != nil && *c.PatientID == patientID
}
