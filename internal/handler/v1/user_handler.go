package v1

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

type UserService interface {
	Register(ctx context.Context, cmd *service.RegisterUserCommand, caller service.Caller) (*domain.User, error)
	Get(ctx context.Context, id uuid.UUID, caller service.Caller) (*domain.User, error)
	List(ctx context.Context, q *domain.ListUsersQuery, caller service.Caller) (*domain.PagedUsers, error)
	UpdatePersonalInfo(ctx context.Context, id uuid.UUID, cmd *service.UpdatePersonalInfoCommand, caller service.Caller) (*domain.User, error)
	UpdateProfessionalInfo(ctx context.Context, id uuid.UUID, cmd *service.UpdateProfessionalInfoCommand, caller service.Caller) (*domain.User, error)
	ChangeRole(ctx context.Context, id uuid.UUID, role domain.Role, caller service.Caller) (*domain.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool, caller service.Caller) (*domain.User, error)
}

type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type registerUserRequest struct {
	Email          string      `json:"email" binding:"required"`
	Password       string      `json:"password" binding:"required"`
	FirstName      string      `json:"first_name" binding:"required"`
	LastName       string      `json:"last_name" binding:"required"`
	ContactPhone   string      `json:"contact_phone"`
	Role           domain.Role `json:"role" binding:"required"`
	Specialization string      `json:"specialization"`
	LicenseNumber  string      `json:"license_number"`
	PatientID      *uuid.UUID  `json:"patient_id"`
}

type updatePersonalInfoRequest struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	ContactPhone *string `json:"contact_phone"`
}

type updateProfessionalInfoRequest struct {
	Specialization *string `json:"specialization"`
	LicenseNumber  *string `json:"license_number"`
}

type changeRoleRequest struct {
	Role domain.Role `json:"role" binding:"required"`
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *UserHandler) Register(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req registerUserRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.Register(c.Request.Context(), &service.RegisterUserCommand{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		ContactPhone:   req.ContactPhone,
		Role:           req.Role,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
		PatientID:      req.PatientID,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, u)
}

func (h *UserHandler) Me(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), caller.UserID, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *UserHandler) Get(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *UserHandler) List(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	q := &domain.ListUsersQuery{
		Role:     queryString[domain.Role](c, "role"),
		Active:   active,
		Search:   c.Query("search"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	page, err := h.svc.List(c.Request.Context(), q, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *UserHandler) UpdatePersonalInfo(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updatePersonalInfoRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.UpdatePersonalInfo(c.Request.Context(), id, &service.UpdatePersonalInfoCommand{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ContactPhone: req.ContactPhone,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *UserHandler) UpdateProfessionalInfo(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateProfessionalInfoRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.UpdateProfessionalInfo(c.Request.Context(), id, &service.UpdateProfessionalInfoCommand{
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *UserHandler) ChangeRole(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req changeRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.ChangeRole(c.Request.Context(), id, req.Role, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *UserHandler) SetActive(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req setActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.SetActive(c.Request.Context(), id, *req.Active, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}
