package core

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Store is the persistence a Service needs. *Repository[T] satisfies it.
type Store[T any] interface {
	ExistenceChecker

	Descriptor() *Descriptor
	GetAll(ctx context.Context) ([]T, error)
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	Insert(ctx context.Context, rec *T) (int64, error)
	Update(ctx context.Context, id uuid.UUID, rec *T) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	GenerateCode(ctx context.Context) (string, error)
}

// Service runs validation and duplicate detection in front of a Store.
type Service[T any] struct {
	store  Store[T]
	logger *slog.Logger
}

// NewService creates a service over store.
func NewService[T any](store Store[T], logger *slog.Logger) *Service[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service[T]{
		store:  store,
		logger: logger,
	}
}

func (s *Service[T]) GetAll(ctx context.Context) ([]T, error) {
	return s.store.GetAll(ctx)
}

func (s *Service[T]) GetByID(ctx context.Context, id uuid.UUID) (*T, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service[T]) GenerateCode(ctx context.Context) (string, error) {
	return s.store.GenerateCode(ctx)
}

// Insert validates rec, rejects duplicates, and stores it.
func (s *Service[T]) Insert(ctx context.Context, rec *T) (int64, error) {
	d := s.store.Descriptor()
	if err := Validate(d, rec); err != nil {
		return 0, err
	}
	if err := CheckDuplicates(ctx, d, s.store, rec, nil); err != nil {
		return 0, err
	}

	n, err := s.store.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}
	LogAudit(ctx, s.logger, AuditEntry{
		Action:       ActionInsert,
		Collection:   d.Collection,
		RecordID:     s.keyOf(rec),
		RowsAffected: n,
	})
	return n, nil
}

// Update validates rec, rejects values held by other records, and writes it
// over the record with id.
func (s *Service[T]) Update(ctx context.Context, id uuid.UUID, rec *T) (int64, error) {
	d := s.store.Descriptor()
	if err := Validate(d, rec); err != nil {
		return 0, err
	}
	if err := CheckDuplicates(ctx, d, s.store, rec, &id); err != nil {
		return 0, err
	}

	n, err := s.store.Update(ctx, id, rec)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, NotFound(MsgNotFound)
	}
	LogAudit(ctx, s.logger, AuditEntry{
		Action:       ActionUpdate,
		Collection:   d.Collection,
		RecordID:     id.String(),
		RowsAffected: n,
	})
	return n, nil
}

// Delete removes (or soft-deletes) the record with id.
func (s *Service[T]) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, NotFound(MsgNotFound)
	}
	LogAudit(ctx, s.logger, AuditEntry{
		Action:       ActionDelete,
		Collection:   s.store.Descriptor().Collection,
		RecordID:     id.String(),
		RowsAffected: n,
	})
	return n, nil
}

func (s *Service[T]) keyOf(rec *T) string {
	d := s.store.Descriptor()
	v, err := recordValue(d, rec)
	if err != nil {
		return ""
	}
	f, _ := d.Field(d.Key)
	return textOf(fieldInterface(v, f))
}
