package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	UserAgent    string
	StatusCode   int
	Changes      string
}

// normalizePage applies the shared paging defaults.
func normalizePage(page, pageSize *int) {
	if *pageSize <= 0 || *pageSize > 100 {
		*pageSize = 20
	}
	if *page <= 0 {
		*page = 1
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
