package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind discriminates the failures the engines report.
type Kind int

const (
	KindSystem Kind = iota
	KindValidation
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "system"
	}
}

// Messages shared by the service layer.
const (
	MsgNotFound  = "Không tìm thấy dữ liệu"
	MsgSystem    = "Lỗi hệ thống"
	MsgDuplicate = "Dữ liệu đã tồn tại trong hệ thống"
)

// Error is a classified failure carrying a human-readable message.
// Err holds the underlying cause for system failures.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports a failed field rule.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// Conflict reports a uniqueness violation.
func Conflict(field, msg string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: msg}
}

// NotFound reports a missing lookup, update or delete target.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// System wraps an unexpected fault.
func System(err error) *Error {
	return &Error{Kind: KindSystem, Err: err}
}

// KindOf classifies err. Anything that is not an *Error is a system failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// FromStore classifies a database error. Unique-constraint violations become
// conflicts with MsgDuplicate; missing rows become NotFound; everything else
// is wrapped with op as context.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(MsgNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return &Error{
			Kind:    KindConflict,
			Message: MsgDuplicate,
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
