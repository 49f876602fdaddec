package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

type AuditService struct {
	repo    AuditRepository
	metrics *metrics.Collector
	log     *zap.Logger
	entries chan *domain.AuditLog
	done    chan struct{}

	// mu guards closed; senders hold it shared so Shutdown cannot close
	// entries underneath an in-flight send.
	mu     sync.RWMutex
	closed bool
}

const auditBufferSize = 10_000

// NewAuditService starts the persistence worker. m may be nil.
func NewAuditService(repo AuditRepository, m *metrics.Collector, log *zap.Logger) *AuditService {
	return newAuditService(repo, m, log, auditBufferSize)
}

func newAuditService(repo AuditRepository, m *metrics.Collector, log *zap.Logger, size int) *AuditService {
	svc := &AuditService{
		repo:    repo,
		metrics: m,
		log:     log,
		entries: make(chan *domain.AuditLog, size),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// LogAsync enqueues an audit entry for async persistence.
// If the buffer is full or the service has shut down, the entry is dropped
// and a warning is emitted.
func (s *AuditService) LogAsync(ctx context.Context, entry AuditEntry) {
	al := &domain.AuditLog{
		UserID:       entry.UserID,
		UserRole:     domain.Role(entry.UserRole),
		Action:       domain.AuditAction(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		UserAgent:    entry.UserAgent,
		StatusCode:   entry.StatusCode,
	}
	if entry.Changes != "" {
		changes := entry.Changes
		al.Changes = &changes
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(entry, "audit service stopped, dropping entry")
		return
	}

	select {
	case s.entries <- al:
	default:
		s.drop(entry, "audit log buffer full, dropping entry")
	}
}

func (s *AuditService) drop(entry AuditEntry, msg string) {
	if s.metrics != nil {
		s.metrics.AuditBufferDropped.Inc()
	}
	s.log.Warn(msg,
		zap.String("action", entry.Action),
		zap.String("resource", entry.ResourceType),
	)
}

// Record is the shorthand services use for a caller acting on one resource.
func (s *AuditService) Record(ctx context.Context, c Caller, action domain.AuditAction, resourceType, resourceID string) {
	s.LogAsync(ctx, AuditEntry{
		UserID:       c.UserID,
		UserRole:     c.Role,
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    c.IP,
		RequestID:    c.RequestID,
	})
}

// Shutdown stops accepting entries and waits for the worker to flush the
// buffer. It is safe to call more than once; later LogAsync calls are dropped.
func (s *AuditService) Shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("audit service shutdown timed out; some entries may be lost")
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Error("failed to persist audit log", zap.Error(err))
		} else if s.metrics != nil {
			s.metrics.AuditEntriesTotal.Inc()
		}
		cancel()
	}
}
