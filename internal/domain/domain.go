package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleReceptionist  Role = "receptionist"
	RoleLabTechnician Role = "lab_technician"
	RolePatient       Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RoleLabTechnician, RolePatient:
		return true
	}
	return false
}

// IsClinical reports whether the role may read and write clinical data.
func (r Role) IsClinical() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RoleNurse
}

const (
	MaxFailedLogins = 5
	LockDuration    = 15 * time.Minute
)

type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	Email        string `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	FirstName    string `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName     string `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	ContactPhone string `gorm:"column:contact_phone;type:varchar(30)" json:"contact_phone,omitempty"`
	Role         Role   `gorm:"column:role;type:varchar(30);not null;index" json:"role"`

	// Professional details for clinical staff
	Specialization string `gorm:"column:specialization;type:varchar(100)" json:"specialization,omitempty"`
	LicenseNumber  string `gorm:"column:license_number;type:varchar(50)" json:"license_number,omitempty"`

	// For patient role, links to their patient record
	PatientID *uuid.UUID `gorm:"column:patient_id;type:uuid;index" json:"patient_id,omitempty"`

	IsActive          bool       `gorm:"column:is_active;default:true;index" json:"is_active"`
	FailedLoginCount  int        `gorm:"column:failed_login_count;default:0" json:"-"`
	LockedUntil       *time.Time `gorm:"column:locked_until" json:"-"`
	LastLoginAt       *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	PasswordChangedAt time.Time  `gorm:"column:password_changed_at" json:"-"`
}

func (User) TableName() string {
	return "auth.users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// IsActiveDoctor is the check appointment scheduling runs on the doctor id.
func (u *User) IsActiveDoctor() bool {
	return u.IsActive && u.DeletedAt == nil && u.Role == RoleDoctor
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionLogin  AuditAction = "login"
	ActionLogout AuditAction = "logout"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	UserRole  Role      `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID  string `gorm:"column:request_id;type:varchar(50);index"`
	UserAgent  string `gorm:"column:user_agent;type:text"`
	StatusCode int    `gorm:"column:status_code"`

	Changes *string `gorm:"column:changes;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

type Claims struct {
	UserID    uuid.UUID  `json:"sub"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	// IssuedAt is filled when claims are read back from a token.
	IssuedAt time.Time `json:"-"`
}

type ListUsersQuery struct {
	Role     *Role
	Active   *bool
	Search   string // case-insensitive match on name or email
	Page     int
	PageSize int
}

type PagedUsers struct {
	Users      []*User `json:"users"`
	TotalCount int64   `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}
