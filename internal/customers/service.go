package customers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ngaotu/misa-crm-backend/internal/clock"
	"github.com/ngaotu/misa-crm-backend/internal/core"
)

// Store is the persistence the customer service needs. *Repository
// satisfies it.
type Store interface {
	core.Store[Customer]

	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Customer, error)
	Page(ctx context.Context, req core.PagedRequest) (core.PagedResult[Customer], error)
	AssignCustomerType(ctx context.Context, ids []uuid.UUID, customerType *string) (int64, error)
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Service is the generic record service specialised for customers.
type Service struct {
	*core.Service[Customer]

	store   Store
	limiter *core.ImportLimiter
	clock   clock.Clock
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithImportLimiter bounds concurrent imports.
func WithImportLimiter(l *core.ImportLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithClock sets the time source used for export file names.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a customer service over store.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		Service: core.NewService[Customer](store, logger),
		store:   store,
		clock:   clock.NewRealClock(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paged returns one page of non-deleted customers.
func (s *Service) Paged(ctx context.Context, req core.PagedRequest) (core.PagedResult[Customer], error) {
	return s.store.Page(ctx, req)
}

// ExistsByEmail reports whether another customer already uses email.
// A blank email never exists.
func (s *Service) ExistsByEmail(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	return s.existsBy(ctx, "CustomerEmail", email, excludeID)
}

// ExistsByPhone reports whether another customer already uses phone.
// A blank phone never exists.
func (s *Service) ExistsByPhone(ctx context.Context, phone string, excludeID *uuid.UUID) (bool, error) {
	return s.existsBy(ctx, "CustomerPhone", phone, excludeID)
}

func (s *Service) existsBy(ctx context.Context, field, value string, excludeID *uuid.UUID) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	return s.store.ExistsByProperty(ctx, field, value, excludeID)
}

// AssignCustomerType sets the type of the given customers. The type must be
// blank or one of AllowedTypes.
func (s *Service) AssignCustomerType(ctx context.Context, ids []uuid.UUID, customerType *string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if !IsValidType(customerType) {
		return 0, core.Validation("CustomerType", InvalidTypeMessage)
	}
	customerType = core.CleanString(customerType)

	n, err := s.store.AssignCustomerType(ctx, ids, customerType)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, core.NotFound(core.MsgNotFound)
	}

	detail := ""
	if customerType != nil {
		detail = *customerType
	}
	core.LogAudit(ctx, s.logger, core.AuditEntry{
		Action:       core.ActionAssignType,
		Collection:   "customer",
		RowsAffected: n,
		Detail:       detail,
	})
	return n, nil
}

// BulkDelete soft-deletes the given customers.
func (s *Service) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.store.BulkDelete(ctx, ids)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, core.NotFound(core.MsgNotFound)
	}
	core.LogAudit(ctx, s.logger, core.AuditEntry{
		Action:       core.ActionBulkDelete,
		Collection:   "customer",
		RowsAffected: n,
	})
	return n, nil
}
