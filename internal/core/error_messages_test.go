package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "validation keeps its message",
			err:         Validation("CustomerEmail", "Email không đúng định dạng"),
			wantCode:    "VAL001",
			wantMessage: "Email không đúng định dạng",
		},
		{
			name:        "wrapped conflict keeps its message",
			err:         fmt.Errorf("insert: %w", Conflict("CustomerPhone", "Số điện thoại bị trùng.")),
			wantCode:    "DUP001",
			wantMessage: "Số điện thoại bị trùng.",
		},
		{
			name:        "wrapped not found without message",
			err:         fmt.Errorf("get: %w", &Error{Kind: KindNotFound, Err: errors.New("row gone")}),
			wantCode:    "NF001",
			wantMessage: "row gone",
		},
		{
			name:        "not found",
			err:         NotFound(MsgNotFound),
			wantCode:    "NF001",
			wantMessage: MsgNotFound,
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB001",
			wantMessage: "Không thể kết nối cơ sở dữ liệu",
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("query: %w", context.DeadlineExceeded),
			wantCode: "DB003",
		},
		{
			name:     "import limiter",
			err:      ErrTooManyImports,
			wantCode: "IMP001",
		},
		{
			name:        "unknown falls back",
			err:         errors.New("something odd"),
			wantCode:    "ERR000",
			wantMessage: MsgSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError().Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
	got := FormatUserError(NotFound(MsgNotFound))
	want := MsgNotFound + " (Code: NF001). Tải lại danh sách và thử lại"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(Validation("X", "bad")) {
		t.Error("validation error should be user facing")
	}
	if IsUserFacing(errors.New("random")) {
		t.Error("unmatched error should not be user facing")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("F", "m"), KindValidation},
		{"conflict wrapped", fmt.Errorf("x: %w", Conflict("F", "m")), KindConflict},
		{"not found", NotFound("m"), KindNotFound},
		{"system", System(errors.New("boom")), KindSystem},
		{"plain", errors.New("boom"), KindSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromStore(t *testing.T) {
	if FromStore("op", nil) != nil {
		t.Fatal("FromStore(nil) should be nil")
	}

	if err := FromStore("get", pgx.ErrNoRows); !IsKind(err, KindNotFound) {
		t.Errorf("ErrNoRows -> %v, want not found", err)
	}

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "ux_customer_phone"}
	err := FromStore("insert", unique)
	if !IsKind(err, KindConflict) {
		t.Fatalf("unique violation -> %v, want conflict", err)
	}
	if !errors.Is(err, unique) {
		t.Error("conflict should wrap the pg error")
	}
	if err.Error() != MsgDuplicate {
		t.Errorf("unique violation message = %q, want %q", err.Error(), MsgDuplicate)
	}

	other := errors.New("broken pipe")
	err = FromStore("insert customer", other)
	if !IsKind(err, KindSystem) || !errors.Is(err, other) {
		t.Errorf("FromStore(other) = %v, want wrapped system error", err)
	}
	if err.Error() != "insert customer: broken pipe" {
		t.Errorf("FromStore(other).Error() = %q", err.Error())
	}
}
