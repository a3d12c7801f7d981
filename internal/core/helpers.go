package core

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// toSnakeCase converts a Go field name to its default column name.
// "CustomerFullName" -> "customer_full_name", "CustomerID" -> "customer_id".
// Names that are already snake_case pass through unchanged.
func toSnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)

	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteColumns quotes multiple column names for use in SQL.
func quoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdentifier(col)
	}
	return quoted
}

// recordValue returns the addressable struct value behind rec, which must be
// a non-nil pointer to the descriptor's type.
func recordValue(d *Descriptor, rec any) (reflect.Value, error) {
	v := reflect.ValueOf(rec)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("record must be a non-nil *%s, got %T", d.Type.Name(), rec)
	}
	v = v.Elem()
	if v.Type() != d.Type {
		return reflect.Value{}, fmt.Errorf("record must be *%s, got %T", d.Type.Name(), rec)
	}
	return v, nil
}

// fieldInterface returns the field's value with one level of pointer removed;
// a nil pointer yields nil.
func fieldInterface(v reflect.Value, f Field) any {
	fv := v.FieldByIndex(f.Index)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

// textOf renders a non-nil field value as text for rule evaluation.
func textOf(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// isBlank reports whether a dereferenced field value counts as absent.
func isBlank(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
