package core

// convert.go turns raw CSV cells into record values.
//
// Spreadsheet exports carry artifacts: a leading apostrophe or comma that
// forces text formatting, stray whitespace, and dates in whatever layout the
// author's locale produced. The helpers here normalize those.

import (
	"strings"
	"time"
)

// DateLayout is the day-first layout used for import and export.
const DateLayout = "02/01/2006"

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts tried after DateLayout, split by year format for proper 2-digit
// year handling. Numeric layouts are day-first; the unpadded "2" and "1"
// elements also accept zero-padded input.
var (
	fourDigitYearLayouts = []string{
		"2006-01-02",
		"2/1/2006", "2-1-2006", "2.1.2006",
		"2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "2-1-06", "2.1.06",
	}
)

// CleanString normalizes an optional text cell. Missing or whitespace-only
// input yields nil; otherwise leading apostrophes and commas are stripped and
// the result trimmed.
func CleanString(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	cleaned := strings.TrimSpace(strings.TrimLeft(*s, "',"))
	return &cleaned
}

// ParseDate reads a date cell. Day-first dd/MM/yyyy wins, then ISO, then a
// set of common layouts. Missing or unparsable input yields nil.
func ParseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}

	if t, err := time.Parse(DateLayout, v); err == nil {
		return &t
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return &t
		}
	}
	return nil
}

// FormatDate renders t as dd/MM/yyyy, or "" for nil and the zero time.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// HeaderIndex maps a trimmed CSV header name to its column position.
type HeaderIndex map[string]int

// MakeHeaderIndex indexes a header row. Names are matched exactly after
// trimming; on duplicates the first occurrence wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.TrimSpace(h)
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// Get returns the cell under name, or nil when the header has no such column
// or the row is too short.
func (h HeaderIndex) Get(row []string, name string) *string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return nil
	}
	v := row[i]
	return &v
}
