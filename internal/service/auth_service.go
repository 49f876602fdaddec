package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrWeakPassword       = errors.New("password must be at least 12 characters")
)

const minPasswordLength = 12

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error)
	Update(ctx context.Context, u *domain.User) error
	UpdateLoginAttempt(ctx context.Context, id uuid.UUID, success bool) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	auditSvc   *AuditService
	log        *zap.Logger
	now        func() time.Time
}

func NewAuthService(userRepo UserRepository, jwtManager *auth.JWTManager, auditSvc *AuditService, log *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		auditSvc:   auditSvc,
		log:        log,
		now:        time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string, ip string) (*domain.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error("failed to load user for login", zap.Error(err))
		}
		// Hash anyway so response time does not reveal whether the email exists.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if user.IsLocked(s.now()) {
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		// Record failed attempt; the repository locks at domain.MaxFailedLogins
		if err := s.userRepo.UpdateLoginAttempt(ctx, user.ID, false); err != nil {
			s.log.Error("failed to record login attempt", zap.Error(err))
		}
		s.log.Warn("failed login attempt",
			zap.String("user_id", user.ID.String()),
			zap.String("ip", ip),
		)
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLoginAttempt(ctx, user.ID, true); err != nil {
		s.log.Error("failed to reset login attempts", zap.Error(err))
	}

	pair, err := s.jwtManager.GenerateTokenPair(claimsFor(user))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.auditSvc.Record(ctx, Caller{UserID: user.ID, Role: string(user.Role), IP: ip},
		domain.ActionLogin, "user", user.ID.String())

	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
	)

	return pair, nil
}

// RefreshToken issues a new access token given a valid refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// Re-validate user is still active
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	// A password change revokes every refresh token issued before it.
	if claims.IssuedAt.Before(user.PasswordChangedAt.Truncate(time.Second)) {
		return nil, ErrInvalidCredentials
	}

	return s.jwtManager.GenerateTokenPair(claimsFor(user))
}

// ChangePassword updates a user's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if err := validatePasswordStrength(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, userID, string(hash))
}

func claimsFor(u *domain.User) *domain.Claims {
	return &domain.Claims{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		PatientID: u.PatientID,
	}
}

func validatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
