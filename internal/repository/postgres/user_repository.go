// Package postgres implements the identity and audit repositories with gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
)

type UserRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = normalizeEmail(u.Email)

	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", normalizeEmail(email))
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Where(query, arg).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Where("deleted_at IS NULL")
	if q.Role != nil {
		tx = tx.Where("role = ?", *q.Role)
	}
	if q.Active != nil {
		tx = tx.Where("is_active = ?", *q.Active)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR email LIKE ?", like, like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	var users []*domain.User
	err := tx.Order("last_name, first_name").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	pages := 0
	if q.PageSize > 0 {
		pages = int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	}
	return &domain.PagedUsers{
		Users:      users,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pages,
	}, nil
}

// Update persists profile, role and activation fields. Credentials and login
// counters are only written through UpdatePassword and UpdateLoginAttempt.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	res := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND deleted_at IS NULL", u.ID).
		Updates(map[string]any{
			"first_name":     u.FirstName,
			"last_name":      u.LastName,
			"contact_phone":  u.ContactPhone,
			"role":           u.Role,
			"specialization": u.Specialization,
			"license_number": u.LicenseNumber,
			"patient_id":     u.PatientID,
			"is_active":      u.IsActive,
		})
	if res.Error != nil {
		return fmt.Errorf("updating user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateLoginAttempt resets the counters on success. On failure it increments
// the counter and locks the account once it reaches domain.MaxFailedLogins,
// in a single statement so concurrent attempts cannot lose an increment.
func (r *UserRepository) UpdateLoginAttempt(ctx context.Context, id uuid.UUID, success bool) error {
	now := r.now()

	var updates map[string]any
	if success {
		updates = map[string]any{
			"failed_login_count": 0,
			"locked_until":       nil,
			"last_login_at":      now,
		}
	} else {
		updates = map[string]any{
			"failed_login_count": gorm.Expr("failed_login_count + 1"),
			"locked_until": gorm.Expr(
				"CASE WHEN failed_login_count + 1 >= ? THEN ? ELSE locked_until END",
				domain.MaxFailedLogins, now.Add(domain.LockDuration),
			),
		}
	}

	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("recording login attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"password_hash":       hash,
			"password_changed_at": r.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("updating password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
