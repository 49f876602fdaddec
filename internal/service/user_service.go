package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
)

type RegisterUserCommand struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	ContactPhone   string
	Role           domain.Role
	Specialization string
	LicenseNumber  string
	PatientID      *uuid.UUID
}

type UpdatePersonalInfoCommand struct {
	FirstName    *string
	LastName     *string
	ContactPhone *string
}

type UpdateProfessionalInfoCommand struct {
	Specialization *string
	LicenseNumber  *string
}

type UserService struct {
	repo     UserRepository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewUserService(repo UserRepository, auditSvc *AuditService, log *zap.Logger) *UserService {
	return &UserService{repo: repo, auditSvc: auditSvc, log: log}
}

func (s *UserService) Register(ctx context.Context, cmd *RegisterUserCommand, caller Caller) (*domain.User, error) {
	if caller.Role != string(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	if err := validateRegisterCommand(cmd); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &domain.User{
		Email:             strings.ToLower(strings.TrimSpace(cmd.Email)),
		PasswordHash:      string(hash),
		FirstName:         strings.TrimSpace(cmd.FirstName),
		LastName:          strings.TrimSpace(cmd.LastName),
		ContactPhone:      strings.TrimSpace(cmd.ContactPhone),
		Role:              cmd.Role,
		Specialization:    strings.TrimSpace(cmd.Specialization),
		LicenseNumber:     strings.TrimSpace(cmd.LicenseNumber),
		PatientID:         cmd.PatientID,
		IsActive:          true,
		PasswordChangedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.auditSvc.Record(ctx, caller, domain.ActionCreate, "user", u.ID.String())
	s.log.Info("user registered",
		zap.String("user_id", u.ID.String()),
		zap.String("role", string(u.Role)),
		zap.String("created_by", caller.UserID.String()),
	)
	return u, nil
}

// Get lets admins read any user and everyone else read themselves.
func (s *UserService) Get(ctx context.Context, id uuid.UUID, caller Caller) (*domain.User, error) {
	if caller.Role != string(domain.RoleAdmin) && caller.UserID != id {
		return nil, ErrForbidden
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.auditSvc.Record(ctx, caller, domain.ActionRead, "user", id.String())
	return u, nil
}

func (s *UserService) List(ctx context.Context, q *domain.ListUsersQuery, caller Caller) (*domain.PagedUsers, error) {
	if caller.Role != string(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	normalizePage(&q.Page, &q.PageSize)
	return s.repo.List(ctx, q)
}

func (s *UserService) UpdatePersonalInfo(ctx context.Context, id uuid.UUID, cmd *UpdatePersonalInfoCommand, caller Caller) (*domain.User, error) {
	if caller.Role != string(domain.RoleAdmin) && caller.UserID != id {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, caller, func(u *domain.User) error {
		var errs []string
		if cmd.FirstName != nil {
			if u.FirstName = strings.TrimSpace(*cmd.FirstName); u.FirstName == "" {
				errs = append(errs, "first_name cannot be empty")
			}
		}
		if cmd.LastName != nil {
			if u.LastName = strings.TrimSpace(*cmd.LastName); u.LastName == "" {
				errs = append(errs, "last_name cannot be empty")
			}
		}
		if cmd.ContactPhone != nil {
			u.ContactPhone = strings.TrimSpace(*cmd.ContactPhone)
		}
		if len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}
		return nil
	})
}

func (s *UserService) UpdateProfessionalInfo(ctx context.Context, id uuid.UUID, cmd *UpdateProfessionalInfoCommand, caller Caller) (*domain.User, error) {
	if caller.Role != string(domain.RoleAdmin) && caller.UserID != id {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, caller, func(u *domain.User) error {
		if u.Role == domain.RolePatient {
			return &ValidationError{Fields: []string{"professional info only applies to staff accounts"}}
		}
		if cmd.Specialization != nil {
			u.Specialization = strings.TrimSpace(*cmd.Specialization)
		}
		if cmd.LicenseNumber != nil {
			u.LicenseNumber = strings.TrimSpace(*cmd.LicenseNumber)
		}
		return nil
	})
}

func (s *UserService) ChangeRole(ctx context.Context, id uuid.UUID, role domain.Role, caller Caller) (*domain.User, error) {
	if caller.Role != string(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	if !role.IsValid() {
		return nil, &ValidationError{Fields: []string{"role is invalid"}}
	}
	return s.mutate(ctx, id, caller, func(u *domain.User) error {
		u.Role = role
		return nil
	})
}

func (s *UserService) SetActive(ctx context.Context, id uuid.UUID, active bool, caller Caller) (*domain.User, error) {
	if caller.Role != string(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	if caller.UserID == id && !active {
		return nil, &ValidationError{Fields: []string{"admins cannot deactivate their own account"}}
	}
	return s.mutate(ctx, id, caller, func(u *domain.User) error {
		u.IsActive = active
		return nil
	})
}

func (s *UserService) mutate(ctx context.Context, id uuid.UUID, caller Caller, fn func(*domain.User) error) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	s.auditSvc.Record(ctx, caller, domain.ActionUpdate, "user", id.String())
	return u, nil
}

func validateRegisterCommand(cmd *RegisterUserCommand) error {
	var errs []string

	if _, err := mail.ParseAddress(strings.TrimSpace(cmd.Email)); err != nil {
		errs = append(errs, "email is invalid")
	}
	if len(cmd.Password) < minPasswordLength {
		errs = append(errs, ErrWeakPassword.Error())
	}
	if strings.TrimSpace(cmd.FirstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		errs = append(errs, "last_name is required")
	}
	if !cmd.Role.IsValid() {
		errs = append(errs, "role is invalid")
	}
	if cmd.Role == domain.RolePatient && cmd.PatientID == nil {
		errs = append(errs, "patient_id is required for patient accounts")
	}
	if cmd.Role == domain.RoleDoctor && strings.TrimSpace(cmd.LicenseNumber) == "" {
		errs = append(errs, "license_number is required for doctors")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
