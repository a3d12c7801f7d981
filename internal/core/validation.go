package core

// validation.go evaluates the declared field rules of a record.
//
// Fields are checked in declaration order and the first failure is returned.
// Within a field, Required runs first; the format rules only run when the
// value is present and then always in the order email, phone, max length,
// whatever order they were declared in.

import (
	"fmt"
	"net/mail"
	"unicode/utf8"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 11
)

// Default messages, used when a rule carries none.
const (
	defaultRequiredMsg  = "%s không được để trống"
	defaultEmailMsg     = "Email không đúng định dạng"
	defaultPhoneMsg     = "Số điện thoại phải có 10-11 chữ số"
	defaultMaxLengthMsg = "%s không được vượt quá %d ký tự"
	defaultUniqueMsg    = "%s bị trùng."
)

// formatCheck evaluates one format rule against present text. It returns the
// failure message, or "" when the rule does not apply or passes.
type formatCheck func(f Field, r Rule, text string) string

var formatChecks = []formatCheck{checkEmail, checkPhone, checkMaxLength}

// Validate checks rec (a *T for the descriptor's type) against its rules.
// The returned error is a KindValidation *Error, or nil.
func Validate(d *Descriptor, rec any) error {
	v, err := recordValue(d, rec)
	if err != nil {
		return System(err)
	}

	for _, f := range d.Fields {
		if len(f.Rules) == 0 {
			continue
		}
		if err := validateField(f, fieldInterface(v, f)); err != nil {
			return err
		}
	}
	return nil
}

func validateField(f Field, value any) error {
	blank := isBlank(value)

	for _, r := range f.Rules {
		if req, ok := r.(Required); ok && blank {
			return Validation(f.Name, messageOr(req.Message, fmt.Sprintf(defaultRequiredMsg, f.Name)))
		}
	}
	if blank {
		return nil
	}

	text := textOf(value)
	for _, check := range formatChecks {
		for _, r := range f.Rules {
			if msg := check(f, r, text); msg != "" {
				return Validation(f.Name, msg)
			}
		}
	}
	return nil
}

func checkEmail(_ Field, r Rule, text string) string {
	rule, ok := r.(EmailFormat)
	if !ok || IsEmail(text) {
		return ""
	}
	return messageOr(rule.Message, defaultEmailMsg)
}

func checkPhone(_ Field, r Rule, text string) string {
	rule, ok := r.(PhoneDigits)
	if !ok || IsPhone(text) {
		return ""
	}
	return messageOr(rule.Message, defaultPhoneMsg)
}

func checkMaxLength(f Field, r Rule, text string) string {
	rule, ok := r.(MaxLength)
	if !ok || utf8.RuneCountInString(text) <= rule.Max {
		return ""
	}
	return messageOr(rule.Message, fmt.Sprintf(defaultMaxLengthMsg, f.Name, rule.Max))
}

// IsEmail reports whether s parses as a mail address and is exactly that
// address, with no display name or surrounding text.
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// IsPhone reports whether s contains 10 or 11 digits once every other
// character is dropped.
func IsPhone(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}

func messageOr(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}
