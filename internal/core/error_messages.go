package core

// error_messages.go turns errors into user-facing messages with support codes.
//
// Classified errors (*Error) keep their own message and get a code per kind:
//
//	VAL001 - a field rule failed (required, email, phone, length)
//	DUP001 - a unique field already holds this value
//	NF001  - the target record does not exist
//
// Unclassified errors are matched against known store and transport patterns
// so a user sees something actionable instead of a driver message:
//
//	DB001  - connection refused
//	DB002  - connection reset
//	DB003  - timeout
//	DB004  - deadlock
//	FILE001 - file too large
//	FILE002 - invalid CSV
//	IMP001 - too many imports running
//	REQ001 - request cancelled
//
// Anything else is ERR000; support staff should check the logs for the
// technical error behind it.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var kindMessages = map[Kind]UserMessage{
	KindValidation: {Action: "Kiểm tra lại dữ liệu nhập", Code: "VAL001"},
	KindConflict:   {Action: "Sử dụng giá trị khác", Code: "DUP001"},
	KindNotFound:   {Action: "Tải lại danh sách và thử lại", Code: "NF001"},
}

var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Không thể kết nối cơ sở dữ liệu", Action: "Vui lòng thử lại sau ít phút", Code: "DB001"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "Kết nối cơ sở dữ liệu bị gián đoạn", Action: "Vui lòng thử lại", Code: "DB002"},
	},
	{
		pattern: "deadline exceeded",
		msg:     UserMessage{Message: "Thao tác quá thời gian cho phép", Action: "Thử lại với tệp nhỏ hơn hoặc thử lại sau", Code: "DB003"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Thao tác quá thời gian cho phép", Action: "Thử lại với tệp nhỏ hơn hoặc thử lại sau", Code: "DB003"},
	},
	{
		pattern: "deadlock",
		msg:     UserMessage{Message: "Cơ sở dữ liệu đang bận", Action: "Vui lòng thử lại", Code: "DB004"},
	},
	{
		pattern: "file too large",
		msg:     UserMessage{Message: "Kích thước file vượt quá giới hạn", Action: "Chia nhỏ file và thử lại", Code: "FILE001"},
	},
	{
		pattern: "invalid csv",
		msg:     UserMessage{Message: "File không đúng định dạng CSV", Action: "Lưu file dưới dạng CSV UTF-8", Code: "FILE002"},
	},
	{
		pattern: "too many concurrent imports",
		msg:     UserMessage{Message: "Hệ thống đang xử lý nhiều lượt nhập khẩu", Action: "Vui lòng chờ và thử lại", Code: "IMP001"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Yêu cầu đã bị hủy", Action: "Vui lòng thử lại", Code: "REQ001"},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: MsgSystem,
	Action:  "Vui lòng thử lại hoặc liên hệ hỗ trợ",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. Classified errors keep
// their own message; other errors are matched case-insensitively against the
// pattern table, falling back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var e *Error
	if errors.As(err, &e) && e.Kind != KindSystem {
		msg := kindMessages[e.Kind]
		msg.Message = messageOr(e.Message, e.Error())
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
